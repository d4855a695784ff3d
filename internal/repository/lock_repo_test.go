package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/domain"
)

func TestLockRepository_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewLockRepository(newTestDB(t))

	code, err := repo.Get(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionIdle, code)

	require.NoError(t, repo.Set(ctx, 1, 0, domain.ActionStarted))
	require.NoError(t, repo.Set(ctx, 1, 0, domain.ActionModeSelect))

	code, err = repo.Get(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionModeSelect, code)

	// Same user in a group chat has its own row.
	code, err = repo.Get(ctx, 1, -100)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionIdle, code)

	require.NoError(t, repo.Delete(ctx, 1, 0))
	require.NoError(t, repo.Delete(ctx, 1, 0))

	code, err = repo.Get(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionIdle, code)
}

func TestLockRepository_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewLockRepository(newTestDB(t))

	ok, err := repo.CompareAndSwap(ctx, 7, 0, domain.ActionIdle, domain.ActionStarted)
	require.NoError(t, err)
	assert.True(t, ok, "missing row counts as idle")

	ok, err = repo.CompareAndSwap(ctx, 7, 0, domain.ActionIdle, domain.ActionStarted)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CompareAndSwap(ctx, 7, 0, domain.ActionStarted, domain.ActionModeSelect)
	require.NoError(t, err)
	assert.True(t, ok)

	code, err := repo.Get(ctx, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionModeSelect, code)
}

func TestLockRepository_ConcurrentSwapHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewLockRepository(newTestDB(t))
	require.NoError(t, repo.Set(ctx, 9, 9, domain.ActionModeSelect))

	const contenders = 8
	var wins int32
	var wg sync.WaitGroup
	errs := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CompareAndSwap(ctx, 9, 9, domain.ActionModeSelect, domain.ActionAwaitingKeywords)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("swap failed: %v", err)
	}
	assert.EqualValues(t, 1, wins)
}
