package services

import (
	"sync"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
)

// ProgressObserver receives a private copy of the full state after every change.
type ProgressObserver func(state types.ProgressState)

// ProgressTracker holds one ProgressState per kind. Observers run synchronously
// and in update order; an observer must not call Update, Reset or Subscribe.
type ProgressTracker interface {
	Get(kind types.Kind) types.ProgressState
	Update(kind types.Kind, upd types.ProgressUpdate) types.ProgressState
	Reset(kind types.Kind) types.ProgressState
	Subscribe(kind types.Kind, obs ProgressObserver) (unsubscribe func())
	// SubscribeAll observes every kind, including kinds first touched later.
	SubscribeAll(obs ProgressObserver) (unsubscribe func())
}

type progressTracker struct {
	log *logger.Logger

	// notify serializes mutate+deliver per kind so observers see states in order.
	notifyMu sync.Mutex
	notify   map[types.Kind]*sync.Mutex

	mu        sync.Mutex
	states    map[types.Kind]*types.ProgressState
	observers map[types.Kind]map[uint64]ProgressObserver
	global    map[uint64]ProgressObserver
	nextID    uint64
}

func NewProgressTracker(baseLog *logger.Logger) ProgressTracker {
	return &progressTracker{
		log:       baseLog.With("service", "ProgressTracker"),
		notify:    map[types.Kind]*sync.Mutex{},
		states:    map[types.Kind]*types.ProgressState{},
		observers: map[types.Kind]map[uint64]ProgressObserver{},
		global:    map[uint64]ProgressObserver{},
	}
}

func (t *progressTracker) kindLock(kind types.Kind) *sync.Mutex {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	m, ok := t.notify[kind]
	if !ok {
		m = &sync.Mutex{}
		t.notify[kind] = m
	}
	return m
}

// stateLocked returns the live state for kind, creating an idle one. Caller holds t.mu.
func (t *progressTracker) stateLocked(kind types.Kind) *types.ProgressState {
	s, ok := t.states[kind]
	if !ok {
		idle := types.IdleProgress(kind)
		s = &idle
		t.states[kind] = s
	}
	return s
}

func (t *progressTracker) observersLocked(kind types.Kind) []ProgressObserver {
	out := make([]ProgressObserver, 0, len(t.observers[kind])+len(t.global))
	for _, obs := range t.observers[kind] {
		out = append(out, obs)
	}
	for _, obs := range t.global {
		out = append(out, obs)
	}
	return out
}

func (t *progressTracker) Get(kind types.Kind) types.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked(kind).Clone()
}

func (t *progressTracker) Update(kind types.Kind, upd types.ProgressUpdate) types.ProgressState {
	kl := t.kindLock(kind)
	kl.Lock()
	defer kl.Unlock()

	t.mu.Lock()
	s := t.stateLocked(kind)
	t.merge(s, upd)
	snapshot := s.Clone()
	observers := t.observersLocked(kind)
	t.mu.Unlock()

	deliver(observers, snapshot)
	return snapshot
}

func (t *progressTracker) Reset(kind types.Kind) types.ProgressState {
	kl := t.kindLock(kind)
	kl.Lock()
	defer kl.Unlock()

	t.mu.Lock()
	idle := types.IdleProgress(kind)
	t.states[kind] = &idle
	snapshot := idle.Clone()
	observers := t.observersLocked(kind)
	t.mu.Unlock()

	deliver(observers, snapshot)
	return snapshot
}

func (t *progressTracker) Subscribe(kind types.Kind, obs ProgressObserver) func() {
	if obs == nil {
		return func() {}
	}
	kl := t.kindLock(kind)
	kl.Lock()
	defer kl.Unlock()

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	if t.observers[kind] == nil {
		t.observers[kind] = map[uint64]ProgressObserver{}
	}
	t.observers[kind][id] = obs
	snapshot := t.stateLocked(kind).Clone()
	t.mu.Unlock()

	obs(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.observers[kind], id)
			t.mu.Unlock()
		})
	}
}

func (t *progressTracker) SubscribeAll(obs ProgressObserver) func() {
	if obs == nil {
		return func() {}
	}
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.global[id] = obs
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.global, id)
			t.mu.Unlock()
		})
	}
}

// merge applies a partial update. Illegal status transitions are ignored and
// completed_items never decreases nor passes total_items.
func (t *progressTracker) merge(s *types.ProgressState, upd types.ProgressUpdate) {
	if upd.Status != nil {
		if s.Status.CanTransition(*upd.Status) {
			s.Status = *upd.Status
		} else {
			t.log.Warn("ignoring illegal progress transition", "kind", s.Kind, "from", s.Status, "to", *upd.Status)
		}
	}
	if upd.Version != nil {
		s.Version = *upd.Version
	}
	if upd.TotalItems != nil && *upd.TotalItems >= 0 {
		s.TotalItems = *upd.TotalItems
	}
	if upd.CompletedItems != nil && *upd.CompletedItems > s.CompletedItems {
		s.CompletedItems = *upd.CompletedItems
	}
	if s.CompletedItems > s.TotalItems {
		s.CompletedItems = s.TotalItems
	}
	if upd.CurrentLanguage != nil {
		s.CurrentLanguage = *upd.CurrentLanguage
	}
	if upd.CurrentItem != nil {
		s.CurrentItem = *upd.CurrentItem
	}
	if upd.CurrentItemTitle != nil {
		s.CurrentItemTitle = *upd.CurrentItemTitle
	}
	if upd.StartTime != nil {
		st := *upd.StartTime
		s.StartTime = &st
	}
	if upd.EndTime != nil {
		et := *upd.EndTime
		s.EndTime = &et
	}
	if len(upd.AppendErrors) > 0 {
		s.Errors = append(s.Errors, upd.AppendErrors...)
	}
}

func deliver(observers []ProgressObserver, snapshot types.ProgressState) {
	for i, obs := range observers {
		if i == 0 {
			obs(snapshot)
			continue
		}
		obs(snapshot.Clone())
	}
}

func ptr[T any](v T) *T { return &v }
