package services

import (
	"context"
	"sync"
	"time"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
)

// ProgressBroadcaster relays every progress change to the realtime layer on
// channel generation:<kind>.
type ProgressBroadcaster struct {
	tracker ProgressTracker
	emit    SSEEmitter
	log     *logger.Logger

	mu    sync.Mutex
	unsub func()
}

func NewProgressBroadcaster(tracker ProgressTracker, emit SSEEmitter, baseLog *logger.Logger) *ProgressBroadcaster {
	return &ProgressBroadcaster{
		tracker: tracker,
		emit:    emit,
		log:     baseLog.With("service", "ProgressBroadcaster"),
	}
}

func (b *ProgressBroadcaster) Start() {
	if b == nil || b.emit == nil || b.tracker == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsub != nil {
		return
	}
	b.unsub = b.tracker.SubscribeAll(b.publish)
}

func (b *ProgressBroadcaster) Stop() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

func (b *ProgressBroadcaster) publish(state types.ProgressState) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b.emit.Emit(ctx, ProgressMessage(state))
}

// ProgressMessage wraps a state as the realtime message the stream endpoint sends.
func ProgressMessage(state types.ProgressState) realtime.SSEMessage {
	event := realtime.SSEEventGenerationProgress
	switch state.Status {
	case types.StatusCompleted:
		event = realtime.SSEEventGenerationCompleted
	case types.StatusFailed:
		event = realtime.SSEEventGenerationFailed
	}
	return realtime.SSEMessage{
		Channel: realtime.GenerationChannel(string(state.Kind)),
		Event:   event,
		Data:    state,
	}
}
