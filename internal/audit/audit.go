package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"docshare/internal/logging"
	"docshare/internal/model"
	"docshare/internal/repository"
)

// Actions written by the sharing workflow.
const (
	ActionShareCreated       = "SHARE_CREATED"
	ActionSignatureSubmitted = "SIGNATURE_SUBMITTED"
	ActionShareCompleted     = "SHARE_COMPLETED"
	ActionShareDeleted       = "SHARE_DELETED"
)

// DefaultMaxEntries bounds the trail when no limit is configured.
const DefaultMaxEntries = 1000

// Trail is an append-only action log kept in the key-value store under
// audit:<xid>. xid ids sort by creation time, so key order is chronological.
type Trail struct {
	store      repository.KeyValueStore
	maxEntries int
	log        *logging.Logger
	now        func() time.Time
}

// Option configures a Trail.
type Option func(*Trail)

// WithMaxEntries caps the number of retained entries; the oldest are dropped first.
func WithMaxEntries(n int) Option {
	return func(t *Trail) {
		if n > 0 {
			t.maxEntries = n
		}
	}
}

// WithLogger sets the logger used to report write failures.
func WithLogger(l *logging.Logger) Option {
	return func(t *Trail) { t.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) { t.now = now }
}

// New creates a Trail over store.
func New(store repository.KeyValueStore, opts ...Option) *Trail {
	t := &Trail{
		store:      store,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Record appends an entry. Failures are logged and never returned, so an
// audit outage does not fail the operation being audited.
func (t *Trail) Record(ctx context.Context, action, shareID string, details map[string]any) {
	if t == nil {
		return
	}
	if err := t.append(ctx, action, shareID, details); err != nil {
		t.log.Log(map[string]any{
			"component":     "audit",
			"event":         "audit_write_failed",
			"status":        "error",
			"action":        action,
			"share_id":      shareID,
			"error_message": err.Error(),
		})
	}
}

func (t *Trail) append(ctx context.Context, action, shareID string, details map[string]any) error {
	now := t.now().UTC()
	id := xid.NewWithTime(now)
	entry := model.AuditEntry{
		ID:        id.String(),
		Timestamp: now,
		Action:    action,
		ShareID:   shareID,
		Details:   details,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	if _, err := t.store.Create(ctx, model.AuditKeyPrefix+entry.ID, string(raw)); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return t.trim(ctx)
}

// trim drops the oldest entries above maxEntries.
func (t *Trail) trim(ctx context.Context) error {
	entries, err := t.store.List(ctx, model.AuditKeyPrefix)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}
	excess := len(entries) - t.maxEntries
	for i := 0; i < excess; i++ {
		if err := t.store.Delete(ctx, entries[i].Key); err != nil {
			return fmt.Errorf("trim audit entry: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all.
func (t *Trail) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	entries, err := t.store.List(ctx, model.AuditKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	out := make([]model.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		var e model.AuditEntry
		if err := json.Unmarshal([]byte(entries[i].Value), &e); err != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
