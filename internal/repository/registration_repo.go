package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/memebot/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrationRepository handles the registered users and chats.
type RegistrationRepository struct {
	db *gorm.DB
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get returns the registration for identity, nil when not registered.
func (r *RegistrationRepository) Get(ctx context.Context, identity domain.Identity) (*domain.Registration, error) {
	var reg domain.Registration
	err := r.db.WithContext(ctx).
		First(&reg, "identity_kind = ? AND identity_value = ?", identity.Kind, identity.Value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return &reg, nil
}

// Exists reports whether identity is registered.
func (r *RegistrationRepository) Exists(ctx context.Context, identity domain.Identity) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Registration{}).
		Where("identity_kind = ? AND identity_value = ?", identity.Kind, identity.Value).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return count > 0, nil
}

// Create registers identity with lang. It returns false when the identity
// was already registered; the stored language is left untouched then.
func (r *RegistrationRepository) Create(ctx context.Context, identity domain.Identity, lang domain.Language) (bool, error) {
	reg := &domain.Registration{
		IdentityKind:  identity.Kind,
		IdentityValue: identity.Value,
		Language:      lang,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reg)
	if res.Error != nil {
		return false, fmt.Errorf("create registration: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetLanguage updates the interface language of a registered identity.
func (r *RegistrationRepository) SetLanguage(ctx context.Context, identity domain.Identity, lang domain.Language) error {
	err := r.db.WithContext(ctx).Model(&domain.Registration{}).
		Where("identity_kind = ? AND identity_value = ?", identity.Kind, identity.Value).
		Update("language", lang).Error
	if err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	return nil
}
