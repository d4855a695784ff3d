package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/memebot/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockRepository stores one action lock row per (user, chat) pair. Every
// mutation is a single statement, so the row itself is the mutex.
type LockRepository struct {
	db *gorm.DB
}

// NewLockRepository creates a new LockRepository.
func NewLockRepository(db *gorm.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Get returns the current action code, ActionIdle when no row exists.
func (r *LockRepository) Get(ctx context.Context, userID, chatID int64) (domain.ActionCode, error) {
	var lock domain.ActionLock
	err := r.db.WithContext(ctx).First(&lock, "user_id = ? AND chat_id = ?", userID, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ActionIdle, nil
	}
	if err != nil {
		return domain.ActionIdle, fmt.Errorf("get lock: %w", err)
	}
	return lock.ActionCode, nil
}

// Set upserts the lock row with code, last write wins.
func (r *LockRepository) Set(ctx context.Context, userID, chatID int64, code domain.ActionCode) error {
	lock := &domain.ActionLock{UserID: userID, ChatID: chatID, ActionCode: code, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action_code", "updated_at"}),
	}).Create(lock).Error
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return nil
}

// CompareAndSwap moves the lock from expected to next and reports whether
// this call made the transition. A missing row counts as ActionIdle.
func (r *LockRepository) CompareAndSwap(ctx context.Context, userID, chatID int64, expected, next domain.ActionCode) (bool, error) {
	db := r.db.WithContext(ctx)

	if expected == domain.ActionIdle {
		seed := &domain.ActionLock{UserID: userID, ChatID: chatID, ActionCode: domain.ActionIdle, UpdatedAt: time.Now()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
			return false, fmt.Errorf("seed lock: %w", err)
		}
	}

	res := db.Model(&domain.ActionLock{}).
		Where("user_id = ? AND chat_id = ? AND action_code = ?", userID, chatID, expected).
		Updates(map[string]interface{}{
			"action_code": next,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("swap lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Delete removes the lock row. Deleting a missing row is not an error.
func (r *LockRepository) Delete(ctx context.Context, userID, chatID int64) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&domain.ActionLock{}).Error
	if err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
