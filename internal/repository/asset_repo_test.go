package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/domain"
	"gorm.io/gorm"
)

func TestInsertAsset_IdempotentOnURL(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t))

	first, err := repo.InsertAsset(ctx, "https://i.redd.it/a.jpg", "a", "r/memes")
	require.NoError(t, err)
	require.NotZero(t, first)

	second, err := repo.InsertAsset(ctx, "https://i.redd.it/a.jpg", "other title", "meme-api/memes")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	count, err := repo.CountAssets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	resolved, err := repo.ResolveAsset(ctx, "https://i.redd.it/a.jpg", "", "")
	require.NoError(t, err)
	assert.Equal(t, first, resolved)
}

func TestFindAssetIDByURL_Unknown(t *testing.T) {
	repo := NewAssetRepository(newTestDB(t))

	id, err := repo.FindAssetIDByURL(context.Background(), "https://nowhere/x.png")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestCacheLookup_ExcludesDeliveredAndPrefersNewest(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAssetRepository(db)
	user := domain.UserIdentity(42)

	older := seedAsset(t, db, "https://x/older.jpg", time.Now().Add(-time.Hour))
	newer := seedAsset(t, db, "https://x/newer.jpg", time.Now())

	got, err := repo.CacheLookup(ctx, "", "", user)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer, got.ID)

	require.NoError(t, repo.RecordDelivery(ctx, newer, user))

	got, err = repo.CacheLookup(ctx, "", "", user)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older, got.ID)

	require.NoError(t, repo.RecordDelivery(ctx, older, user))

	got, err = repo.CacheLookup(ctx, "", "", user)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Another identity still sees both.
	got, err = repo.CacheLookup(ctx, "", "", domain.ChatIdentity(42))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer, got.ID)
}

func TestCacheLookup_Skip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAssetRepository(db)
	now := time.Now()
	older := seedAsset(t, db, "https://x/older.jpg", now.Add(-time.Hour))
	newer := seedAsset(t, db, "https://x/newer.jpg", now)
	user := domain.UserIdentity(9)

	got, err := repo.CacheLookup(ctx, "", "", user, newer)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, older, got.ID)

	got, err = repo.CacheLookup(ctx, "", "", user, newer, older)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheLookup_RequiresMatchingKeywordUsage(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAssetRepository(db)
	alice := domain.UserIdentity(1)
	bob := domain.UserIdentity(2)

	cat := seedAsset(t, db, "https://x/cat.jpg", time.Now().Add(-time.Minute))
	dog := seedAsset(t, db, "https://x/dog.jpg", time.Now())

	require.NoError(t, repo.RecordKeywordUsage(ctx, cat, "кот", domain.LanguageSecondary, alice))
	require.NoError(t, repo.RecordKeywordUsage(ctx, dog, "", domain.LanguagePrimary, alice))

	tests := []struct {
		name     string
		keywords string
		lang     domain.Language
		want     uint
	}{
		{name: "keywords and language", keywords: "кот", lang: domain.LanguageSecondary, want: cat},
		{name: "language only", lang: domain.LanguagePrimary, want: dog},
		{name: "keywords wrong language", keywords: "кот", lang: domain.LanguagePrimary},
		{name: "empty keywords stored as none", keywords: domain.KeywordsNone, want: dog},
		{name: "no criteria picks newest", want: dog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.CacheLookup(ctx, tt.keywords, tt.lang, bob)
			require.NoError(t, err)
			if tt.want == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestBlacklistFor(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t))
	chat := domain.ChatIdentity(777)

	a, err := repo.InsertAsset(ctx, "https://x/a.jpg", "a", "t")
	require.NoError(t, err)
	b, err := repo.InsertAsset(ctx, "https://x/b.jpg", "b", "t")
	require.NoError(t, err)
	_, err = repo.InsertAsset(ctx, "https://x/c.jpg", "c", "t")
	require.NoError(t, err)

	require.NoError(t, repo.RecordDelivery(ctx, a, chat))
	require.NoError(t, repo.RecordDelivery(ctx, b, chat))
	require.NoError(t, repo.RecordDelivery(ctx, b, domain.UserIdentity(777)))

	blacklist, err := repo.BlacklistFor(ctx, chat)
	require.NoError(t, err)
	assert.Len(t, blacklist, 2)
	assert.Contains(t, blacklist, "https://x/a.jpg")
	assert.Contains(t, blacklist, "https://x/b.jpg")
	assert.NotContains(t, blacklist, "https://x/c.jpg")
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(newTestDB(t))
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(tx *AssetRepository) error {
		id, err := tx.InsertAsset(ctx, "https://x/tx.jpg", "tx", "t")
		if err != nil {
			return err
		}
		if err := tx.RecordDelivery(ctx, id, domain.UserIdentity(5)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := repo.CountAssets(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	deliveries, err := repo.CountDeliveries(ctx, domain.UserIdentity(5))
	require.NoError(t, err)
	assert.Zero(t, deliveries)
}

func TestRecordServe(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAssetRepository(db)
	chat := domain.ChatIdentity(777)

	asset := &domain.MemeAsset{URL: "https://x/serve.gif", Title: "serve", Source: "giphy/abc"}
	require.NoError(t, repo.RecordServe(ctx, asset, chat, "", domain.LanguageSecondary))
	require.NotZero(t, asset.ID)

	// A second serve of a known asset reuses its row.
	again := &domain.MemeAsset{URL: asset.URL}
	require.NoError(t, repo.RecordServe(ctx, again, domain.UserIdentity(1), "", ""))
	assert.Equal(t, asset.ID, again.ID)

	count, err := repo.CountAssets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	var usages []domain.KeywordUsage
	require.NoError(t, db.Find(&usages).Error)
	require.Len(t, usages, 1, "no usage row without keywords or language")
	require.NotNil(t, usages[0].Keywords)
	assert.Equal(t, domain.KeywordsNone, *usages[0].Keywords)
	require.NotNil(t, usages[0].Language)
	assert.Equal(t, domain.LanguageSecondary, *usages[0].Language)

	blacklist, err := repo.BlacklistFor(ctx, chat)
	require.NoError(t, err)
	assert.Contains(t, blacklist, asset.URL)
}

func seedAsset(t *testing.T, db *gorm.DB, url string, createdAt time.Time) uint {
	t.Helper()
	asset := &domain.MemeAsset{URL: url, Title: url, Source: "test", CreatedAt: createdAt}
	require.NoError(t, db.Create(asset).Error)
	return asset.ID
}
