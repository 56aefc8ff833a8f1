package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"docshare/internal/logging"
	"docshare/internal/metrics"
	"docshare/internal/model"
	"docshare/internal/notify"
	"docshare/internal/repository"
)

// DefaultInterval is the polling period when none is configured.
const DefaultInterval = 30 * time.Second

// Watcher detects shares that reached completed status and reports each one
// to its notifier exactly once per session, or once overall when marks are persisted.
type Watcher struct {
	store    repository.KeyValueStore
	notifier notify.Notifier
	interval time.Duration
	persist  bool
	log      *logging.Logger
	metrics  *metrics.Sharing
	now      func() time.Time

	// pollMu serializes passes so two overlapping polls cannot report the same share.
	pollMu   sync.Mutex
	mu       sync.Mutex
	notified map[string]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithPersistedMarks mirrors the notified set to notified:<id> keys so a
// restarted process does not report the same completion again.
func WithPersistedMarks(enabled bool) Option {
	return func(w *Watcher) { w.persist = enabled }
}

func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

func WithMetrics(m *metrics.Sharing) Option {
	return func(w *Watcher) { w.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// New creates a Watcher. It does nothing until Poll or Start is called.
func New(store repository.KeyValueStore, notifier notify.Notifier, opts ...Option) *Watcher {
	w := &Watcher{
		store:    store,
		notifier: notifier,
		interval: DefaultInterval,
		now:      time.Now,
		notified: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Interval returns the polling period.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Poll runs one reconciliation pass and returns how many completions were reported.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	if w.persist {
		if err := w.loadMarks(ctx); err != nil {
			return 0, err
		}
	}

	entries, err := w.store.List(ctx, model.ShareKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list shares: %w", err)
	}

	reported := 0
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			return reported, ctx.Err()
		}

		shareID := strings.TrimPrefix(e.Key, model.ShareKeyPrefix)
		if w.seen(shareID) {
			continue
		}

		var rec model.ShareRecord
		if err := json.Unmarshal([]byte(e.Value), &rec); err != nil {
			w.log.Log(map[string]any{
				"component":     "watcher",
				"event":         "share_decode_failed",
				"status":        "error",
				"share_id":      shareID,
				"error_message": err.Error(),
			})
			continue
		}
		if !rec.AllSigned() {
			continue
		}

		ev := model.CompletionEvent{
			ShareID:      shareID,
			DocumentType: rec.DocumentType,
			CompletedAt:  rec.CompletedAt(),
			DetectedAt:   w.now().UTC(),
		}
		if err := w.notifier.Notify(ctx, ev); err != nil {
			// Left unmarked so the next cycle retries it. notify.Multi only
			// resends to the notifiers that failed.
			errs = append(errs, fmt.Errorf("notify %s: %w", shareID, err))
			continue
		}

		w.mark(shareID)
		if w.persist {
			if err := w.persistMark(ctx, shareID); err != nil {
				errs = append(errs, err)
			}
		}
		w.metrics.CompletionNotified()
		reported++
	}
	return reported, errors.Join(errs...)
}

func (w *Watcher) seen(shareID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.notified[shareID]
	return ok
}

func (w *Watcher) mark(shareID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notified[shareID] = struct{}{}
}

func (w *Watcher) loadMarks(ctx context.Context) error {
	marks, err := w.store.List(ctx, model.NotifiedKeyPrefix)
	if err != nil {
		return fmt.Errorf("list notification marks: %w", err)
	}
	for _, m := range marks {
		w.mark(strings.TrimPrefix(m.Key, model.NotifiedKeyPrefix))
	}
	return nil
}

func (w *Watcher) persistMark(ctx context.Context, shareID string) error {
	_, err := w.store.Create(ctx, model.NotifiedKey(shareID), w.now().UTC().Format(time.RFC3339Nano))
	if err != nil && !errors.Is(err, repository.ErrKeyExists) {
		return fmt.Errorf("persist notification mark %s: %w", shareID, err)
	}
	return nil
}

// Handle controls a running watch loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop ends the loop. It returns without waiting for an in-flight poll and
// is safe to call more than once or on a nil Handle.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
}

// Done is closed once the loop goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start polls immediately and then once per interval until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()

	return h
}

func (w *Watcher) runOnce(ctx context.Context) {
	start := time.Now()
	n, err := w.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.metrics.PollFailed()
		w.log.Log(map[string]any{
			"component":     "watcher",
			"event":         "watch_poll_failed",
			"status":        "error",
			"error_message": err.Error(),
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return
	}
	if n > 0 {
		w.log.Log(map[string]any{
			"component":   "watcher",
			"event":       "watch_poll",
			"status":      "success",
			"reported":    n,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}
