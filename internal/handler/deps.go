package handler

import (
	"time"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/cleanup"
	"chatrelay/internal/app/gateway"
	"chatrelay/internal/app/room"
	"chatrelay/internal/configs"
)

// AppDeps carries everything the HTTP handlers need.
type AppDeps struct {
	Service   *chat.Service
	Rooms     *room.Registry
	Hub       *gateway.Hub
	Cleanup   *cleanup.Scheduler
	Config    *configs.AppConfig
	StartedAt time.Time
}
