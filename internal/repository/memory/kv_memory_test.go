package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"docshare/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	e, err := s.Create(ctx, "share:1", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)

	got, err := s.Get(ctx, "share:1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Value)

	_, err = s.Create(ctx, "share:1", "other")
	assert.ErrorIs(t, err, repository.ErrKeyExists)

	_, err = s.Get(ctx, "share:missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_UpdateCompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Create(ctx, "k", "a")
	require.NoError(t, err)

	e, err := s.Update(ctx, "k", "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Version)

	_, err = s.Update(ctx, "k", "stale", 1)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	got, _ := s.Get(ctx, "k")
	assert.Equal(t, "b", got.Value)

	_, err = s.Update(ctx, "absent", "x", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ConcurrentUpdatesSerialize(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Create(ctx, "k", "0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wins := make(chan int64, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if e, err := s.Update(ctx, "k", fmt.Sprint(i), 1); err == nil {
				wins <- e.Version
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1)
}

func TestStore_DeleteAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, k := range []string{"share:b", "share:a", "notified:a", "audit:1"} {
		_, err := s.Create(ctx, k, k)
		require.NoError(t, err)
	}

	list, err := s.List(ctx, "share:")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "share:a", list[0].Key)
	assert.Equal(t, "share:b", list[1].Key)

	require.NoError(t, s.Delete(ctx, "share:a"))
	require.NoError(t, s.Delete(ctx, "share:a"))

	list, err = s.List(ctx, "share:")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 3, s.Len())

	empty, err := s.List(ctx, "nothing:")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestStore_Closed(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), repository.ErrStoreClosed)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrStoreClosed)
	_, err = s.Create(ctx, "k", "v")
	assert.ErrorIs(t, err, repository.ErrStoreClosed)
	_, err = s.Update(ctx, "k", "v", 1)
	assert.ErrorIs(t, err, repository.ErrStoreClosed)
	assert.ErrorIs(t, s.Delete(ctx, "k"), repository.ErrStoreClosed)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, repository.ErrStoreClosed)
}
