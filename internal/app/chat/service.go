/*
Package chat contains the Broadcast Service, the single place where inbound chat operations
are validated, rate limited, applied to the registries and turned into outbound events.

Each operation is a short sequence of registry calls. Registries only return values; this
service decides which events follow and hands them to the Publisher after every registry
call has returned, so no event is ever produced under a registry lock.
*/
package chat

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/ratelimit"
	"chatrelay/internal/app/room"
	"chatrelay/internal/app/session"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/clockx"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

// Config holds the service's tunables.
type Config struct {
	// MaxContentLength is the message length limit in characters. Zero means
	// DefaultMaxContentLength.
	MaxContentLength int
}

// SYSTEM notices sent to a session that is taken out of a room.
const (
	RoomDeletedNotice = "This room has been deleted"
	InactivityNotice  = "You were removed from the room for inactivity"
)

// CleanupReport summarizes one stale sweep.
type CleanupReport struct {
	SessionsRemoved    int `json:"sessionsRemoved"`
	RoomMembersRemoved int `json:"roomMembersRemoved"`
}

// Service orchestrates sessions, rooms and the rate limiter.
type Service struct {
	sessions  *session.Registry
	rooms     *room.Registry
	limiter   *ratelimit.Limiter
	publisher Publisher
	clock     clockx.Clock

	maxContentLength int

	logger zerolog.Logger
}

// NewService wires the registries, the limiter and the publisher together.
func NewService(
	sessions *session.Registry,
	rooms *room.Registry,
	limiter *ratelimit.Limiter,
	publisher Publisher,
	clock clockx.Clock,
	cfg Config,
) *Service {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}

	return &Service{
		sessions:         sessions,
		rooms:            rooms,
		limiter:          limiter,
		publisher:        publisher,
		clock:            clock,
		maxContentLength: cfg.MaxContentLength,
		logger:           logx.Component("ChatService"),
	}
}

// SendMessage validates, rate limits, sanitizes and broadcasts a chat message.
// Failures are delivered to the session as an error event and also returned.
func (s *Service) SendMessage(sessionID, roomID, sender, content string) *errs.CustomError {
	if err := ValidateRoomID(roomID); err != nil {
		return s.reject(sessionID, err)
	}
	sender, err := ValidateUsername(sender)
	if err != nil {
		return s.reject(sessionID, err)
	}
	content, err = ValidateContent(content, s.maxContentLength)
	if err != nil {
		return s.reject(sessionID, err)
	}

	if err := s.checkRate(sessionID, ratelimit.ClassMessage); err != nil {
		return err
	}

	msg := Message{
		ID:        randx.MessageID(),
		RoomID:    roomID,
		Sender:    sender,
		Content:   Sanitize(content),
		Type:      TypeChat,
		Timestamp: s.nowMillis(),
	}

	s.rooms.IncrementMessageCount(roomID)
	s.rooms.TouchUser(roomID, sessionID)
	s.sessions.TouchActivity(sessionID)

	s.logger.Debug().
		Str("room_id", roomID).
		Str("session_id", sessionID).
		Str("message_id", msg.ID).
		Msg("Chat message accepted.")

	s.publisher.BroadcastToRoom(roomID, MessageEvent(msg))
	return nil
}

// JoinRoom puts the session into roomID as username, leaving its previous room first.
// Joining the room the session is already in refreshes it without new events.
func (s *Service) JoinRoom(sessionID, roomID, username string) *errs.CustomError {
	if err := ValidateRoomID(roomID); err != nil {
		return s.reject(sessionID, err)
	}
	username, err := ValidateUsername(username)
	if err != nil {
		return s.reject(sessionID, err)
	}

	if err := s.checkRate(sessionID, ratelimit.ClassRoomOp); err != nil {
		return err
	}

	prev, existed := s.sessions.Get(sessionID)
	s.sessions.CreateOrUpdate(sessionID, username)

	if existed && prev.RoomID != "" && prev.RoomID != roomID {
		s.leave(sessionID, prev.RoomID, prev.Username)
	}

	joined := s.rooms.AddUser(roomID, username, sessionID)
	s.sessions.AssignRoom(sessionID, roomID)

	if !joined {
		return nil
	}

	now := s.nowMillis()
	s.publisher.BroadcastToRoom(roomID, MessageEvent(Message{
		ID:        randx.MessageID(),
		RoomID:    roomID,
		Sender:    username,
		Content:   fmt.Sprintf("%s joined the room", username),
		Type:      TypeJoin,
		Timestamp: now,
	}))
	s.publisher.BroadcastToRoom(roomID, PresenceEvent(Presence{
		Username:  username,
		Status:    StatusJoined,
		Timestamp: now,
	}))
	return nil
}

// LeaveRoom takes the session out of roomID. Leaving a room the session is not in does nothing.
func (s *Service) LeaveRoom(sessionID, roomID, username string) {
	if cur, ok := s.sessions.Get(sessionID); ok && cur.Username != "" {
		username = cur.Username
	}

	s.leave(sessionID, roomID, username)
	s.sessions.TouchActivity(sessionID)
}

// leave removes the membership, clears the session's room if it still points at roomID and
// tells the remaining members.
func (s *Service) leave(sessionID, roomID, username string) {
	removed := s.rooms.RemoveUser(roomID, sessionID)
	s.sessions.ClearRoom(sessionID, roomID)

	if !removed {
		return
	}
	s.announceLeave(roomID, username)
}

func (s *Service) announceLeave(roomID, username string) {
	now := s.nowMillis()
	s.publisher.BroadcastToRoom(roomID, MessageEvent(Message{
		ID:        randx.MessageID(),
		RoomID:    roomID,
		Sender:    username,
		Content:   fmt.Sprintf("%s left the room", username),
		Type:      TypeLeave,
		Timestamp: now,
	}))
	s.publisher.BroadcastToRoom(roomID, PresenceEvent(Presence{
		Username:  username,
		Status:    StatusLeft,
		Timestamp: now,
	}))
}

// Disconnect handles a closed transport: the session leaves its room and is removed.
// The rate-limit entry is kept so a quick reconnect does not reset penalties.
func (s *Service) Disconnect(sessionID string) {
	cur, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}

	if cur.RoomID != "" {
		s.leave(sessionID, cur.RoomID, cur.Username)
	}
	s.sessions.Remove(sessionID)

	s.logger.Info().
		Str("session_id", sessionID).
		Str("username", cur.Username).
		Str("room_id", cur.RoomID).
		Msg("Session disconnected.")
}

// CreateRoom validates and creates a room with a fresh id.
func (s *Service) CreateRoom(name, description string, isPrivate bool) (room.Info, *errs.CustomError) {
	name, description, err := ValidateRoomDetails(name, description)
	if err != nil {
		return room.Info{}, err
	}
	return s.rooms.CreateRoom(name, description, isPrivate), nil
}

// DeleteRoom removes a room and detaches its members, each of whom gets a SYSTEM notice.
func (s *Service) DeleteRoom(roomID string) (room.Info, *errs.CustomError) {
	info, members, ok := s.rooms.DeleteRoom(roomID)
	if !ok {
		return room.Info{}, errs.NewError(errs.ErrRoomNotFound)
	}

	for _, m := range members {
		s.sessions.ClearRoom(m.SessionID, roomID)
		s.notify(m.SessionID, roomID, RoomDeletedNotice)
	}
	return info, nil
}

// CleanupStale removes sessions and room members idle for longer than threshold.
// Every removed member's room is told it left, and its session no longer points at the room.
func (s *Service) CleanupStale(threshold time.Duration) CleanupReport {
	var report CleanupReport

	report.SessionsRemoved = s.sessions.SweepStaleFunc(threshold, func(sess user.Session) {
		if sess.RoomID != "" && s.rooms.RemoveUser(sess.RoomID, sess.SessionID) {
			report.RoomMembersRemoved++
			s.notify(sess.SessionID, sess.RoomID, InactivityNotice)
			s.announceLeave(sess.RoomID, sess.Username)
		}
	})

	report.RoomMembersRemoved += s.rooms.SweepStaleFunc(threshold, func(m user.Session) {
		s.sessions.ClearRoom(m.SessionID, m.RoomID)
		s.notify(m.SessionID, m.RoomID, InactivityNotice)
		s.announceLeave(m.RoomID, m.Username)
	})

	s.logger.Info().
		Int("sessions_removed", report.SessionsRemoved).
		Int("members_removed", report.RoomMembersRemoved).
		Dur("threshold", threshold).
		Msg("Stale cleanup finished.")
	return report
}

// RoomStats returns the room registry aggregate.
func (s *Service) RoomStats() room.Stats {
	return s.rooms.Stats()
}

// SessionStats returns the session registry aggregate.
func (s *Service) SessionStats() session.Stats {
	return s.sessions.Stats()
}

// DeactivateSession marks a session soft-offline. Its room membership is kept.
func (s *Service) DeactivateSession(sessionID string) (user.Session, *errs.CustomError) {
	if !s.sessions.Deactivate(sessionID) {
		return user.Session{}, errs.NewError(errs.ErrSessionNotFound)
	}
	sess, _ := s.sessions.Get(sessionID)
	return sess, nil
}

// ReactivateSession marks a soft-offline session active again.
func (s *Service) ReactivateSession(sessionID string) (user.Session, *errs.CustomError) {
	if !s.sessions.Reactivate(sessionID) {
		return user.Session{}, errs.NewError(errs.ErrSessionNotFound)
	}
	sess, _ := s.sessions.Get(sessionID)
	return sess, nil
}

// IsUserActive reports whether any active session uses username.
func (s *Service) IsUserActive(username string) bool {
	return s.sessions.IsUserActive(username)
}

// notify sends a SYSTEM message about roomID to a single session.
func (s *Service) notify(sessionID, roomID, content string) {
	s.publisher.SendToSession(sessionID, MessageEvent(Message{
		ID:        randx.MessageID(),
		RoomID:    roomID,
		Sender:    SystemSender,
		Content:   content,
		Type:      TypeSystem,
		Timestamp: s.nowMillis(),
	}))
}

// checkRate charges one operation and reports a rejection to the session.
func (s *Service) checkRate(sessionID string, class ratelimit.Class) *errs.CustomError {
	d := s.limiter.Allow(sessionID, class)
	if d.Allowed {
		return nil
	}

	err := errs.NewError(errs.ErrRateLimitExceeded)
	s.publisher.SendToSession(sessionID, ErrorEvent(ErrorPayload{
		Message:      err.Message,
		Code:         err.Code,
		Timestamp:    s.nowMillis(),
		RetryAfterMs: d.RetryAfter.Milliseconds(),
	}))
	return err
}

// reject delivers a validation error to the session and returns it.
func (s *Service) reject(sessionID string, err *errs.CustomError) *errs.CustomError {
	s.logger.Debug().Str("session_id", sessionID).Int("code", err.Code).Msg("Operation rejected.")

	s.publisher.SendToSession(sessionID, ErrorEvent(ErrorPayload{
		Message:   err.Message,
		Code:      err.Code,
		Timestamp: s.nowMillis(),
	}))
	return err
}

func (s *Service) nowMillis() int64 {
	return s.clock.Now().UnixMilli()
}
