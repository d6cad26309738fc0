package logx

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 with port", "203.0.113.42:5555", "203.0.113.0"},
		{"ipv4 bare", "198.51.100.7", "198.51.100.0"},
		{"loopback", "127.0.0.1:8080", "127.0.0.1"},
		{"ipv6", "[2001:db8:abcd:12:1:2:3:4]:443", "2001:db8:abcd:12::"},
		{"garbage", "not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}

func TestComponentLoggerTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	logger := Component("RoomRegistry")
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"RoomRegistry"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestOddFieldsAreIgnored(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	Info("odd fields", "only_key")

	assert.Contains(t, buf.String(), "odd number of fields")
	assert.Contains(t, buf.String(), `"message":"odd fields"`)
}
