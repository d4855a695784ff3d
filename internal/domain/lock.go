package domain

import "time"

// ActionCode is the state of an identity's in-flight command.
type ActionCode int

const (
	ActionIdle             ActionCode = 0
	ActionStarted          ActionCode = 1
	ActionModeSelect       ActionCode = 2
	ActionAwaitingKeywords ActionCode = 3
)

// String returns a readable name for logs.
func (c ActionCode) String() string {
	switch c {
	case ActionIdle:
		return "idle"
	case ActionStarted:
		return "started"
	case ActionModeSelect:
		return "mode_select"
	case ActionAwaitingKeywords:
		return "awaiting_keywords"
	default:
		return "unknown"
	}
}

// ActionLock is the single row gating commands for a (user, chat) pair.
// ChatID is 0 for private interactions.
type ActionLock struct {
	UserID     int64      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ChatID     int64      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	ActionCode ActionCode `gorm:"not null;default:0" json:"action_code"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ActionLock.
func (ActionLock) TableName() string {
	return "action_locks"
}
