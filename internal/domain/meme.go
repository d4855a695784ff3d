package domain

import "time"

// KeywordsNone is stored in place of empty search keywords.
const KeywordsNone = "none"

// MemeAsset is a single meme image identified by its source URL.
// Rows are immutable once created.
type MemeAsset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	URL       string    `gorm:"type:text;not null;uniqueIndex:idx_meme_assets_url" json:"url"`
	Title     string    `gorm:"type:text" json:"title"`
	Source    string    `gorm:"type:text" json:"source"`
	CreatedAt time.Time `gorm:"index:idx_meme_assets_created" json:"created_at"`
}

// TableName returns the database table name for MemeAsset.
func (MemeAsset) TableName() string {
	return "meme_assets"
}

// DeliveryRecord is one delivery of an asset to an identity. The set of
// records for an identity is its blacklist.
type DeliveryRecord struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	AssetID       uint         `gorm:"not null;index:idx_delivery_asset" json:"asset_id"`
	IdentityKind  IdentityKind `gorm:"type:text;not null;index:idx_delivery_identity,priority:1" json:"identity_kind"`
	IdentityValue int64        `gorm:"not null;index:idx_delivery_identity,priority:2" json:"identity_value"`
	ServedAt      time.Time    `gorm:"autoCreateTime" json:"served_at"`
}

// TableName returns the database table name for DeliveryRecord.
func (DeliveryRecord) TableName() string {
	return "delivery_records"
}

// KeywordUsage records which search criteria surfaced an asset for an
// identity. Cache lookups with criteria only consider assets that carry a
// matching usage row.
type KeywordUsage struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	AssetID       uint         `gorm:"not null;index:idx_keyword_usage_asset" json:"asset_id"`
	Keywords      *string      `gorm:"type:text" json:"keywords,omitempty"`
	Language      *Language    `gorm:"type:text" json:"language,omitempty"`
	IdentityKind  IdentityKind `gorm:"type:text;not null" json:"identity_kind"`
	IdentityValue int64        `gorm:"not null" json:"identity_value"`
	CreatedAt     time.Time    `json:"created_at"`
}

// TableName returns the database table name for KeywordUsage.
func (KeywordUsage) TableName() string {
	return "keyword_usages"
}
