package service

import (
	"context"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/metrics"
	"github.com/timmy/memebot/internal/repository"
)

// LockService drives the per-(user, chat) action lock. Every transition is
// a compare-and-swap on the stored code, so two concurrent commands on the
// same key can never both succeed.
type LockService struct {
	locks         *repository.LockRepository
	registrations *repository.RegistrationRepository
}

// NewLockService creates a new lock service
func NewLockService(locks *repository.LockRepository, registrations *repository.RegistrationRepository) *LockService {
	return &LockService{locks: locks, registrations: registrations}
}

// State returns the current code, ActionIdle when no lock exists.
func (s *LockService) State(ctx context.Context, userID, chatID int64) (domain.ActionCode, error) {
	return s.locks.Get(ctx, userID, chatID)
}

// Start opens a session. It fails with ErrLockBusy while another command
// holds the lock.
func (s *LockService) Start(ctx context.Context, userID, chatID int64) error {
	ok, err := s.locks.CompareAndSwap(ctx, userID, chatID, domain.ActionIdle, domain.ActionStarted)
	if err != nil {
		return err
	}
	if !ok {
		return reject(ErrLockBusy, "busy")
	}
	return nil
}

// BeginSelection moves an idle or started session to mode selection.
// Unregistered identities get their lock reset and ErrNotRegistered.
func (s *LockService) BeginSelection(ctx context.Context, identity domain.Identity, userID, chatID int64) error {
	registered, err := s.registrations.Exists(ctx, identity)
	if err != nil {
		return err
	}
	if !registered {
		if err := s.locks.Set(ctx, userID, chatID, domain.ActionIdle); err != nil {
			return err
		}
		return reject(ErrNotRegistered, "not_registered")
	}

	current, err := s.locks.Get(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if current != domain.ActionIdle && current != domain.ActionStarted {
		return reject(ErrLockBusy, "busy")
	}

	ok, err := s.locks.CompareAndSwap(ctx, userID, chatID, current, domain.ActionModeSelect)
	if err != nil {
		return err
	}
	if !ok {
		return reject(ErrLockStale, "stale")
	}
	return nil
}

// Advance moves the lock from expected to next and reports whether the
// transition happened.
func (s *LockService) Advance(ctx context.Context, userID, chatID int64, expected, next domain.ActionCode) (bool, error) {
	return s.locks.CompareAndSwap(ctx, userID, chatID, expected, next)
}

// ChooseRandom takes the random branch of mode selection and releases the
// lock. Only one of several concurrent clicks succeeds; the rest get
// ErrLockStale.
func (s *LockService) ChooseRandom(ctx context.Context, userID, chatID int64) error {
	return s.require(ctx, userID, chatID, domain.ActionModeSelect, domain.ActionIdle)
}

// ChooseKeywords takes the keyword branch: the next free-text message is
// treated as search keywords.
func (s *LockService) ChooseKeywords(ctx context.Context, userID, chatID int64) error {
	return s.require(ctx, userID, chatID, domain.ActionModeSelect, domain.ActionAwaitingKeywords)
}

// ConsumeKeywords releases a lock waiting for keywords. It reports false,
// without error, when the lock was not waiting for keywords.
func (s *LockService) ConsumeKeywords(ctx context.Context, userID, chatID int64) (bool, error) {
	return s.locks.CompareAndSwap(ctx, userID, chatID, domain.ActionAwaitingKeywords, domain.ActionIdle)
}

// Cancel drops the lock whatever its state. A fetch already running is
// not interrupted.
func (s *LockService) Cancel(ctx context.Context, userID, chatID int64) error {
	return s.locks.Delete(ctx, userID, chatID)
}

// Complete returns the lock to idle.
func (s *LockService) Complete(ctx context.Context, userID, chatID int64) error {
	return s.locks.Set(ctx, userID, chatID, domain.ActionIdle)
}

func (s *LockService) require(ctx context.Context, userID, chatID int64, expected, next domain.ActionCode) error {
	ok, err := s.locks.CompareAndSwap(ctx, userID, chatID, expected, next)
	if err != nil {
		return err
	}
	if !ok {
		return reject(ErrLockStale, "stale")
	}
	return nil
}

func reject(err error, reason string) error {
	metrics.LockRejections.WithLabelValues(reason).Inc()
	return err
}
