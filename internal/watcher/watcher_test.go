package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"docshare/internal/logging"
	"docshare/internal/model"
	"docshare/internal/notify"
	"docshare/internal/repository"
	"docshare/internal/repository/memory"
	repoMocks "docshare/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []model.CompletionEvent
	fail   error
}

func (r *recorder) Notify(_ context.Context, ev model.CompletionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.ShareID)
	}
	return out
}

func (r *recorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func putShare(t *testing.T, store repository.KeyValueStore, id string, signed ...model.Role) {
	t.Helper()
	rec := model.NewShareRecord(id, "pw", model.DocumentCertificatNaissance,
		json.RawMessage(`{"enfant_nom":"Dupont"}`),
		[]model.Role{model.RoleMother, model.RoleFather},
		time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC))
	for i, r := range signed {
		rec.Signatures[r] = &model.SignatureEntry{
			ImageData: "data:image/png;base64,AA",
			SignedAt:  time.Date(2024, 3, 14, 10, i, 0, 0, time.UTC),
		}
	}
	rec.RefreshStatus()
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	ctx := context.Background()
	e, err := store.Get(ctx, model.ShareKey(id))
	if errors.Is(err, repository.ErrNotFound) {
		_, err = store.Create(ctx, model.ShareKey(id), string(raw))
		require.NoError(t, err)
		return
	}
	require.NoError(t, err)
	_, err = store.Update(ctx, model.ShareKey(id), string(raw), e.Version)
	require.NoError(t, err)
}

func TestWatcher_Poll_ReportsEachCompletionOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recorder{}
	w := New(store, rec)

	putShare(t, store, "done", model.RoleMother, model.RoleFather)
	putShare(t, store, "half", model.RoleMother)
	putShare(t, store, "fresh")

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"done"}, rec.ids())

	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	putShare(t, store, "half", model.RoleMother, model.RoleFather)

	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"done", "half"}, rec.ids())

	for i := 0; i < 3; i++ {
		n, err = w.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}
	assert.Len(t, rec.ids(), 2)
}

func TestWatcher_Poll_EventFields(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recorder{}
	detected := time.Date(2024, 3, 14, 11, 0, 0, 0, time.UTC)
	w := New(store, rec, WithClock(func() time.Time { return detected }))

	putShare(t, store, "s1", model.RoleMother, model.RoleFather)

	_, err := w.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, rec.events, 1)

	ev := rec.events[0]
	assert.Equal(t, "s1", ev.ShareID)
	assert.Equal(t, model.DocumentCertificatNaissance, ev.DocumentType)
	assert.Equal(t, time.Date(2024, 3, 14, 10, 1, 0, 0, time.UTC), ev.CompletedAt)
	assert.Equal(t, detected, ev.DetectedAt)
}

func TestWatcher_Poll_RetriesFailedNotification(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rec := &recorder{fail: errors.New("inbox full")}
	w := New(store, rec)

	putShare(t, store, "s1", model.RoleMother, model.RoleFather)

	n, err := w.Poll(ctx)
	assert.ErrorContains(t, err, "notify s1: inbox full")
	assert.Equal(t, 0, n)

	rec.setFail(nil)

	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"s1"}, rec.ids())
}

func TestWatcher_Poll_FanOutFailureDoesNotRepeatOtherNotifiers(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	inbox := notify.NewInbox(10)
	logged := &recorder{}
	archive := &recorder{fail: errors.New("minio down")}
	w := New(store, notify.Multi(inbox, logged, archive))

	putShare(t, store, "s1", model.RoleMother, model.RoleFather)

	for i := 0; i < 3; i++ {
		n, err := w.Poll(ctx)
		assert.ErrorContains(t, err, "notify s1: minio down")
		assert.Equal(t, 0, n)
	}
	assert.Equal(t, []string{"s1"}, logged.ids())
	assert.Len(t, inbox.Recent(), 1)

	archive.setFail(nil)

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"s1"}, archive.ids())

	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"s1"}, logged.ids())
}

func TestWatcher_Poll_SkipsUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	var logs bytes.Buffer
	rec := &recorder{}
	w := New(store, rec, WithLogger(logging.New(&logs, time.UTC)))

	_, err := store.Create(ctx, model.ShareKey("broken"), "{not json")
	require.NoError(t, err)
	putShare(t, store, "ok", model.RoleMother, model.RoleFather)

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"ok"}, rec.ids())
	assert.Contains(t, logs.String(), "share_decode_failed")
}

func TestWatcher_PersistedMarks(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	putShare(t, store, "s1", model.RoleMother, model.RoleFather)

	first := &recorder{}
	n, err := New(store, first, WithPersistedMarks(true)).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, model.NotifiedKey("s1"))
	require.NoError(t, err)

	// A new process over the same store must not report s1 again.
	second := &recorder{}
	n, err = New(store, second, WithPersistedMarks(true)).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, second.ids())

	// Without persisted marks the set is per session.
	third := &recorder{}
	n, err = New(store, third).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWatcher_Poll_ListError(t *testing.T) {
	ctx := context.Background()
	store := new(repoMocks.MockKeyValueStore)
	store.On("List", mock.Anything, model.ShareKeyPrefix).Return(nil, errors.New("db down"))

	n, err := New(store, &recorder{}).Poll(ctx)

	assert.EqualError(t, err, "list shares: db down")
	assert.Equal(t, 0, n)
}

func TestWatcher_StartStop(t *testing.T) {
	store := memory.New()
	inbox := notify.NewInbox(10)
	w := New(store, inbox, WithInterval(10*time.Millisecond))

	h := w.Start(context.Background())

	putShare(t, store, "s1", model.RoleMother, model.RoleFather)
	require.Eventually(t, func() bool {
		return len(inbox.Recent()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	putShare(t, store, "s2", model.RoleMother, model.RoleFather)
	require.Eventually(t, func() bool {
		return len(inbox.Recent()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not exit after Stop")
	}

	putShare(t, store, "s3", model.RoleMother, model.RoleFather)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, inbox.Recent(), 2)
}

type flakyStore struct {
	*memory.Store
	failures int32
	lists    atomic.Int32
}

func (f *flakyStore) List(ctx context.Context, prefix string) ([]repository.Entry, error) {
	if f.lists.Add(1) <= f.failures {
		return nil, errors.New("db down")
	}
	return f.Store.List(ctx, prefix)
}

func TestWatcher_StartKeepsRunningAfterPollErrors(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failures: 2}
	putShare(t, store.Store, "s1", model.RoleMother, model.RoleFather)

	var logs syncBuffer
	rec := &recorder{}
	w := New(store, rec, WithInterval(5*time.Millisecond), WithLogger(logging.New(&logs, time.UTC)))

	h := w.Start(context.Background())
	defer h.Stop()

	require.Eventually(t, func() bool {
		return len(rec.ids()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, store.lists.Load(), int32(3))
	assert.Contains(t, logs.String(), "watch_poll_failed")
}

func TestWatcher_StopOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(memory.New(), &recorder{}, WithInterval(time.Hour)).Start(ctx)

	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not exit after context cancel")
	}
	h.Stop()
}

func TestHandle_NilStop(t *testing.T) {
	var h *Handle
	assert.NotPanics(t, func() { h.Stop() })
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
