package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// ServiceName is reported by the health probe.
const ServiceName = "chatrelay"

// HandleHealth reports process liveness.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()

		resp.RespondSuccess(w, r, map[string]any{
			"status":    "ok",
			"service":   ServiceName,
			"uptime":    int64(now.Sub(deps.StartedAt).Seconds()),
			"timestamp": now.UnixMilli(),
		})
	}
}

// HandleSessionStats returns session registry aggregates.
func HandleSessionStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Service.SessionStats())
	}
}

// HandleDeactivateSession marks a session soft-offline.
func HandleDeactivateSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")

		sess, err := deps.Service.DeactivateSession(sessionID)
		if err != nil {
			logx.Warn("Deactivate rejected: session not found", "session_id", sessionID)
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, sess)
	}
}

// HandleReactivateSession marks a soft-offline session active again.
func HandleReactivateSession(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")

		sess, err := deps.Service.ReactivateSession(sessionID)
		if err != nil {
			logx.Warn("Reactivate rejected: session not found", "session_id", sessionID)
			resp.RespondError(w, r, err)
			return
		}
		resp.RespondSuccess(w, r, sess)
	}
}

// HandleUserActive reports whether a username has an active session (?username=...).
func HandleUserActive(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := strings.TrimSpace(r.URL.Query().Get("username"))
		if username == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"username": username,
			"active":   deps.Service.IsUserActive(username),
		})
	}
}
