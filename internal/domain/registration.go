package domain

import "time"

// Registration marks an identity as allowed to request memes and stores
// its interface language.
type Registration struct {
	IdentityKind  IdentityKind `gorm:"type:text;primaryKey" json:"identity_kind"`
	IdentityValue int64        `gorm:"primaryKey;autoIncrement:false" json:"identity_value"`
	Language      Language     `gorm:"type:text;not null;default:eng" json:"language"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TableName returns the database table name for Registration.
func (Registration) TableName() string {
	return "registrations"
}
