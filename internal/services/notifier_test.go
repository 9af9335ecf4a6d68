package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/yungbote/checklist-advisor/internal/data/repos/testutil"
	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/realtime"
)

type captureEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (c *captureEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func TestProgressBroadcasterEmitsPerKindChannel(t *testing.T) {
	log := testutil.Logger(t)
	tr := NewProgressTracker(log)
	em := &captureEmitter{}
	b := NewProgressBroadcaster(tr, em, log)
	b.Start()
	b.Start()

	tr.Update(types.KindAdvice, types.ProgressUpdate{Status: ptr(types.StatusRunning)})
	tr.Update(types.KindAdvice, types.ProgressUpdate{Status: ptr(types.StatusCompleted)})
	b.Stop()
	tr.Update(types.KindVirtualEvidence, types.ProgressUpdate{Status: ptr(types.StatusRunning)})

	if len(em.msgs) != 2 {
		t.Fatalf("messages: want=2 got=%d", len(em.msgs))
	}
	if em.msgs[0].Channel != "generation:advice" || em.msgs[0].Event != realtime.SSEEventGenerationProgress {
		t.Fatalf("first message: %+v", em.msgs[0])
	}
	if em.msgs[1].Event != realtime.SSEEventGenerationCompleted {
		t.Fatalf("second message event: %s", em.msgs[1].Event)
	}
}

func TestHubEmitterDeliversToSubscribers(t *testing.T) {
	log := testutil.Logger(t)
	hub := realtime.NewSSEHub(log)
	client := hub.Subscribe(realtime.GenerationChannel("advice"))
	defer hub.Unsubscribe(client)

	em := &HubEmitter{Hub: hub}
	em.Emit(context.Background(), ProgressMessage(types.ProgressState{Kind: types.KindAdvice, Status: types.StatusFailed}))

	select {
	case msg := <-client.Outbound:
		if msg.Event != realtime.SSEEventGenerationFailed {
			t.Fatalf("event: %s", msg.Event)
		}
	default:
		t.Fatalf("no message delivered")
	}
}

type flakyBus struct {
	err       error
	published []realtime.SSEMessage
}

func (b *flakyBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, msg)
	return nil
}

func (b *flakyBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	return nil
}

func (b *flakyBus) Close() error { return nil }

func TestRedisEmitterFallsBackToLocalHub(t *testing.T) {
	log := testutil.Logger(t)
	hub := realtime.NewSSEHub(log)
	channel := realtime.GenerationChannel("advice")
	client := hub.Subscribe(channel)
	defer hub.Unsubscribe(client)
	msg := realtime.SSEMessage{Channel: channel, Event: realtime.SSEEventGenerationProgress}

	ok := &flakyBus{}
	(&RedisEmitter{Bus: ok, Local: hub, Log: log}).Emit(context.Background(), msg)
	if len(ok.published) != 1 || len(client.Outbound) != 0 {
		t.Fatalf("healthy bus: published=%d local=%d", len(ok.published), len(client.Outbound))
	}

	down := &flakyBus{err: errors.New("connection refused")}
	(&RedisEmitter{Bus: down, Local: hub, Log: log}).Emit(context.Background(), msg)
	if len(client.Outbound) != 1 {
		t.Fatalf("failed publish should deliver locally, got %d", len(client.Outbound))
	}
}
