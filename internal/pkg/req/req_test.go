package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/pkg/errs"
)

type createInput struct {
	Name string `json:"name"`
}

func newRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestBindJSON(t *testing.T) {
	t.Run("decodes valid body", func(t *testing.T) {
		var in createInput
		err := BindJSON(httptest.NewRecorder(), newRequest(`{"name":"rust"}`, "application/json"), &in)
		require.Nil(t, err)
		assert.Equal(t, "rust", in.Name)
	})

	t.Run("rejects wrong content type", func(t *testing.T) {
		var in createInput
		err := BindJSON(httptest.NewRecorder(), newRequest(`{"name":"rust"}`, "text/plain"), &in)
		require.NotNil(t, err)
		assert.Equal(t, errs.ErrUnsupportedMediaType, err.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		var in createInput
		err := BindJSON(httptest.NewRecorder(), newRequest(`{"title":"rust"}`, "application/json"), &in)
		require.NotNil(t, err)
		assert.Equal(t, errs.ErrInvalidJSONFormat, err.Code)
	})

	t.Run("rejects trailing content", func(t *testing.T) {
		var in createInput
		err := BindJSON(httptest.NewRecorder(), newRequest(`{"name":"a"}{"name":"b"}`, "application/json; charset=utf-8"), &in)
		require.NotNil(t, err)
		assert.Equal(t, errs.ErrExtraContentInBody, err.Code)
	})
}
