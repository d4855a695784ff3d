package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/repository"
)

func newLockService(t *testing.T) (*LockService, *repository.RegistrationRepository) {
	t.Helper()
	db := newTestDB(t)
	regs := repository.NewRegistrationRepository(db)
	return NewLockService(repository.NewLockRepository(db), regs), regs
}

func TestLockService_StartIsExclusive(t *testing.T) {
	locks, _ := newLockService(t)
	ctx := context.Background()

	require.NoError(t, locks.Start(ctx, 42, 0))

	err := locks.Start(ctx, 42, 0)
	assert.ErrorIs(t, err, ErrLockBusy)
	assert.ErrorIs(t, err, ErrLockStale)

	// Other keys are independent.
	assert.NoError(t, locks.Start(ctx, 42, -100))
	assert.NoError(t, locks.Start(ctx, 43, 0))
}

func TestLockService_BeginSelection(t *testing.T) {
	ctx := context.Background()
	user := domain.UserIdentity(42)

	t.Run("unregistered resets lock", func(t *testing.T) {
		locks, _ := newLockService(t)
		require.NoError(t, locks.Start(ctx, 42, 0))

		err := locks.BeginSelection(ctx, user, 42, 0)
		assert.ErrorIs(t, err, ErrNotRegistered)

		state, err := locks.State(ctx, 42, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionIdle, state)
	})

	t.Run("from started and idle", func(t *testing.T) {
		locks, regs := newLockService(t)
		_, err := regs.Create(ctx, user, domain.LanguagePrimary)
		require.NoError(t, err)

		require.NoError(t, locks.BeginSelection(ctx, user, 42, 0))
		state, err := locks.State(ctx, 42, 0)
		require.NoError(t, err)
		assert.Equal(t, domain.ActionModeSelect, state)

		assert.ErrorIs(t, locks.BeginSelection(ctx, user, 42, 0), ErrLockBusy)

		require.NoError(t, locks.Cancel(ctx, 42, 0))
		require.NoError(t, locks.Start(ctx, 42, 0))
		assert.NoError(t, locks.BeginSelection(ctx, user, 42, 0))
	})
}

func TestLockService_Transitions(t *testing.T) {
	locks, regs := newLockService(t)
	ctx := context.Background()
	user := domain.UserIdentity(42)
	_, err := regs.Create(ctx, user, domain.LanguagePrimary)
	require.NoError(t, err)

	stateIs := func(want domain.ActionCode) {
		t.Helper()
		got, err := locks.State(ctx, 42, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Random branch: a second click is stale.
	require.NoError(t, locks.BeginSelection(ctx, user, 42, 0))
	require.NoError(t, locks.ChooseRandom(ctx, 42, 0))
	stateIs(domain.ActionIdle)
	assert.ErrorIs(t, locks.ChooseRandom(ctx, 42, 0), ErrLockStale)

	// Keyword branch.
	require.NoError(t, locks.BeginSelection(ctx, user, 42, 0))
	require.NoError(t, locks.ChooseKeywords(ctx, 42, 0))
	stateIs(domain.ActionAwaitingKeywords)
	assert.ErrorIs(t, locks.ChooseKeywords(ctx, 42, 0), ErrLockStale)

	ok, err := locks.ConsumeKeywords(ctx, 42, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	stateIs(domain.ActionIdle)

	ok, err = locks.ConsumeKeywords(ctx, 42, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// Raw advance and cancel.
	ok, err = locks.Advance(ctx, 42, 0, domain.ActionIdle, domain.ActionStarted)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = locks.Advance(ctx, 42, 0, domain.ActionIdle, domain.ActionStarted)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locks.Cancel(ctx, 42, 0))
	stateIs(domain.ActionIdle)

	require.NoError(t, locks.Start(ctx, 42, 0))
	require.NoError(t, locks.Complete(ctx, 42, 0))
	stateIs(domain.ActionIdle)
}

func TestLockService_ConcurrentChoiceHasOneWinner(t *testing.T) {
	locks, regs := newLockService(t)
	ctx := context.Background()
	user := domain.UserIdentity(42)
	_, err := regs.Create(ctx, user, domain.LanguagePrimary)
	require.NoError(t, err)
	require.NoError(t, locks.BeginSelection(ctx, user, 42, 0))

	const clicks = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locks.ChooseRandom(ctx, 42, 0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
