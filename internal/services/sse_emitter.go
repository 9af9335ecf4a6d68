package services

import (
	"context"

	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
	"github.com/yungbote/checklist-advisor/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

type HubEmitter struct{ Hub *realtime.SSEHub }

func (e *HubEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.Hub.Broadcast(msg)
}

// RedisEmitter publishes to the bus; every replica's forwarder delivers to its
// own hub. When publishing fails the message still reaches Local.
type RedisEmitter struct {
	Bus   bus.Bus
	Local *realtime.SSEHub
	Log   *logger.Logger
}

func (e *RedisEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	err := e.Bus.Publish(ctx, msg)
	if err == nil {
		return
	}
	if e.Log != nil {
		e.Log.Warn("progress publish failed; delivering locally", "channel", msg.Channel, "error", err)
	}
	if e.Local != nil {
		e.Local.Broadcast(msg)
	}
}
