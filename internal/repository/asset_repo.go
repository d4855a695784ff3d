package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/memebot/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetRepository is the persistent meme cache: assets, their delivery
// history and the criteria they were surfaced under.
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil.
func (r *AssetRepository) WithTx(ctx context.Context, fn func(tx *AssetRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AssetRepository{db: tx})
	})
}

// CacheLookup returns the newest asset that was never delivered to
// identity. When keywords or lang are set, the asset must also carry a
// keyword usage row with the same keywords and/or language. Assets whose
// IDs are in skip are ignored.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keywords: search keywords; empty means no keyword filter.
//   - lang: language track; empty means no language filter.
//   - identity: requester whose history is excluded.
//   - skip: asset IDs to leave out, such as ones that failed to download.
//
// Returns:
//   - *domain.MemeAsset: matching asset, nil when there is none.
//   - error: non-nil if the query fails.
func (r *AssetRepository) CacheLookup(ctx context.Context, keywords string, lang domain.Language, identity domain.Identity, skip ...uint) (*domain.MemeAsset, error) {
	query := r.db.WithContext(ctx).
		Table("meme_assets AS a").
		Select("a.*").
		Joins("LEFT JOIN delivery_records AS d ON d.asset_id = a.id AND d.identity_kind = ? AND d.identity_value = ?",
			identity.Kind, identity.Value).
		Where("d.id IS NULL")
	if len(skip) > 0 {
		query = query.Where("a.id NOT IN ?", skip)
	}

	if keywords != "" || lang != "" {
		usage := r.db.Table("keyword_usages AS k").Select("1").Where("k.asset_id = a.id")
		if keywords != "" {
			usage = usage.Where("k.keywords = ?", keywords)
		}
		if lang != "" {
			usage = usage.Where("k.language = ?", lang)
		}
		query = query.Where("EXISTS (?)", usage)
	}

	var asset domain.MemeAsset
	err := query.Order("a.created_at DESC").Order("a.id DESC").Limit(1).Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return &asset, nil
}

// FindAssetIDByURL returns the asset ID for url, or 0 when unknown.
func (r *AssetRepository) FindAssetIDByURL(ctx context.Context, url string) (uint, error) {
	var asset domain.MemeAsset
	err := r.db.WithContext(ctx).Select("id").First(&asset, "url = ?", url).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find asset by url: %w", err)
	}
	return asset.ID, nil
}

// InsertAsset stores a new asset and returns its ID. Inserting a URL that
// already exists returns the existing ID instead of creating a row.
func (r *AssetRepository) InsertAsset(ctx context.Context, url, title, source string) (uint, error) {
	asset := &domain.MemeAsset{URL: url, Title: title, Source: source}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(asset).Error
	if err != nil {
		return 0, fmt.Errorf("insert asset: %w", err)
	}
	if asset.ID != 0 {
		return asset.ID, nil
	}

	id, err := r.FindAssetIDByURL(ctx, url)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("insert asset: %s vanished after conflict", url)
	}
	return id, nil
}

// ResolveAsset returns the ID for url, inserting the asset on first sight.
func (r *AssetRepository) ResolveAsset(ctx context.Context, url, title, source string) (uint, error) {
	id, err := r.FindAssetIDByURL(ctx, url)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, nil
	}
	return r.InsertAsset(ctx, url, title, source)
}

// RecordDelivery appends a delivery of assetID to identity.
func (r *AssetRepository) RecordDelivery(ctx context.Context, assetID uint, identity domain.Identity) error {
	rec := &domain.DeliveryRecord{
		AssetID:       assetID,
		IdentityKind:  identity.Kind,
		IdentityValue: identity.Value,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// RecordKeywordUsage appends the criteria that led to assetID being
// delivered. Empty keywords are stored as domain.KeywordsNone; an empty
// language is stored as NULL.
func (r *AssetRepository) RecordKeywordUsage(ctx context.Context, assetID uint, keywords string, lang domain.Language, identity domain.Identity) error {
	if keywords == "" {
		keywords = domain.KeywordsNone
	}
	usage := &domain.KeywordUsage{
		AssetID:       assetID,
		Keywords:      &keywords,
		IdentityKind:  identity.Kind,
		IdentityValue: identity.Value,
	}
	if lang != "" {
		usage.Language = &lang
	}
	if err := r.db.WithContext(ctx).Create(usage).Error; err != nil {
		return fmt.Errorf("record keyword usage: %w", err)
	}
	return nil
}

// RecordServe stores one delivery of asset in a single transaction:
// resolve-or-insert the asset (skipped when asset.ID is set), the delivery
// row, then a keyword usage row when keywords or lang were given. On
// success asset.ID holds the stored ID.
func (r *AssetRepository) RecordServe(ctx context.Context, asset *domain.MemeAsset, identity domain.Identity, keywords string, lang domain.Language) error {
	return r.WithTx(ctx, func(tx *AssetRepository) error {
		id := asset.ID
		if id == 0 {
			var err error
			if id, err = tx.ResolveAsset(ctx, asset.URL, asset.Title, asset.Source); err != nil {
				return err
			}
		}
		if err := tx.RecordDelivery(ctx, id, identity); err != nil {
			return err
		}
		if keywords != "" || lang != "" {
			if err := tx.RecordKeywordUsage(ctx, id, keywords, lang, identity); err != nil {
				return err
			}
		}
		asset.ID = id
		return nil
	})
}

// BlacklistFor returns every asset URL ever delivered to identity.
func (r *AssetRepository) BlacklistFor(ctx context.Context, identity domain.Identity) (map[string]struct{}, error) {
	var urls []string
	err := r.db.WithContext(ctx).
		Table("meme_assets AS a").
		Joins("JOIN delivery_records AS d ON d.asset_id = a.id").
		Where("d.identity_kind = ? AND d.identity_value = ?", identity.Kind, identity.Value).
		Distinct().
		Pluck("a.url", &urls).Error
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	blacklist := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		blacklist[u] = struct{}{}
	}
	return blacklist, nil
}

// CountAssets returns the number of stored assets.
func (r *AssetRepository) CountAssets(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.MemeAsset{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountDeliveries returns how many deliveries identity has received.
func (r *AssetRepository) CountDeliveries(ctx context.Context, identity domain.Identity) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.DeliveryRecord{}).
		Where("identity_kind = ? AND identity_value = ?", identity.Kind, identity.Value).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
