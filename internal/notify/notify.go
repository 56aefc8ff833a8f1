package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"docshare/internal/logging"
	"docshare/internal/model"
)

// Notifier is told once about each share that reached completed status.
// A returned error asks the caller to retry the event later.
type Notifier interface {
	Notify(ctx context.Context, ev model.CompletionEvent) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, ev model.CompletionEvent) error

func (f Func) Notify(ctx context.Context, ev model.CompletionEvent) error { return f(ctx, ev) }

// Multi fans an event out to every notifier and joins their errors.
// A notifier that already accepted an event for a share is skipped when the
// same event is retried, so only the failed notifiers see it again.
func Multi(ns ...Notifier) Notifier {
	m := &multi{delivered: make(map[string]map[int]struct{})}
	for _, n := range ns {
		if n != nil {
			m.ns = append(m.ns, n)
		}
	}
	return m
}

type multi struct {
	ns []Notifier

	mu        sync.Mutex
	delivered map[string]map[int]struct{}
}

func (m *multi) Notify(ctx context.Context, ev model.CompletionEvent) error {
	var errs []error
	for i, n := range m.ns {
		if m.done(ev.ShareID, i) {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
			continue
		}
		m.markDone(ev.ShareID, i)
	}
	if len(errs) == 0 {
		m.forget(ev.ShareID)
	}
	return errors.Join(errs...)
}

func (m *multi) done(shareID string, i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.delivered[shareID][i]
	return ok
}

func (m *multi) markDone(shareID string, i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivered[shareID] == nil {
		m.delivered[shareID] = make(map[int]struct{}, len(m.ns))
	}
	m.delivered[shareID][i] = struct{}{}
}

// forget drops the partial state once every notifier has the event.
func (m *multi) forget(shareID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delivered, shareID)
}

// Inbox keeps the most recent completion events in memory for the owner's UI.
// An event for a share already in the inbox is ignored.
type Inbox struct {
	mu     sync.RWMutex
	events []model.CompletionEvent
	size   int
}

// NewInbox returns an Inbox holding at most size events.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 100
	}
	return &Inbox{size: size}
}

func (b *Inbox) Notify(_ context.Context, ev model.CompletionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.events {
		if e.ShareID == ev.ShareID {
			return nil
		}
	}
	b.events = append(b.events, ev)
	if over := len(b.events) - b.size; over > 0 {
		b.events = append([]model.CompletionEvent(nil), b.events[over:]...)
	}
	return nil
}

// Recent returns a copy of the held events, newest first.
func (b *Inbox) Recent() []model.CompletionEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.CompletionEvent, 0, len(b.events))
	for i := len(b.events) - 1; i >= 0; i-- {
		out = append(out, b.events[i])
	}
	return out
}

// LogNotifier writes one log line per completion.
type LogNotifier struct {
	log *logging.Logger
}

func NewLogNotifier(l *logging.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Notify(_ context.Context, ev model.CompletionEvent) error {
	n.log.Log(map[string]any{
		"component":     "watcher",
		"event":         "share_completed",
		"status":        "success",
		"msg":           "all signatures received",
		"share_id":      ev.ShareID,
		"document_type": string(ev.DocumentType),
		"completed_at":  ev.CompletedAt.In(n.log.Location()).Format(time.RFC3339),
	})
	return nil
}
