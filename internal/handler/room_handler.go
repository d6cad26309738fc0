/*
Package handler provides HTTP handler functions for the room management endpoints.
*/
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/req"
	"chatrelay/internal/pkg/resp"
)

// DefaultInactiveMinutes is the cleanup threshold used when the query omits one.
const DefaultInactiveMinutes = 30

type CreateRoomInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsPrivate   bool   `json:"isPrivate,omitempty"`
}

// HandleListRooms returns every room.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Rooms.ListRooms())
	}
}

// HandleCreateRoom creates a room with a fresh id.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		info, customErr := deps.Service.CreateRoom(input.Name, input.Description, input.IsPrivate)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondCreated(w, r, info)
	}
}

// HandleGetRoom returns one room.
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := deps.Rooms.GetRoom(chi.URLParam(r, "id"))
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		resp.RespondSuccess(w, r, info)
	}
}

// HandleDeleteRoom deletes a room and detaches its members.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "id")

		info, customErr := deps.Service.DeleteRoom(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Room deleted via management API", "room_id", roomID, "evicted", info.UserCount)
		resp.RespondSuccess(w, r, info)
	}
}

// HandleListRoomUsers returns the members of a room.
func HandleListRoomUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "id")

		if !deps.Rooms.Exists(roomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		resp.RespondSuccess(w, r, deps.Rooms.ListUsers(roomID))
	}
}

// HandleRoomStats returns room aggregates and the number of live connections.
func HandleRoomStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := deps.Service.RoomStats()

		resp.RespondSuccess(w, r, map[string]any{
			"totalRooms":        st.TotalRooms,
			"totalUsers":        st.TotalUsers,
			"totalMessages":     st.TotalMessages,
			"activeConnections": deps.Hub.Len(),
		})
	}
}

// HandleCleanup runs a stale sweep with the caller's threshold (?inactiveMinutes=N).
func HandleCleanup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		minutes := DefaultInactiveMinutes

		if raw := r.URL.Query().Get("inactiveMinutes"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				logx.Warn("Cleanup request rejected: invalid inactiveMinutes", "value", raw)
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
				return
			}
			minutes = n
		}

		report := deps.Cleanup.Sweep(time.Duration(minutes) * time.Minute)

		resp.RespondSuccess(w, r, map[string]any{
			"inactiveMinutes":    minutes,
			"sessionsRemoved":    report.SessionsRemoved,
			"roomMembersRemoved": report.RoomMembersRemoved,
		})
	}
}
