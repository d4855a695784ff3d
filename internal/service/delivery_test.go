package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/repository"
)

type deliveryFixture struct {
	assets   *repository.AssetRepository
	random   *fakeRandom
	search   *fakeSearcher
	files    *fakeFiles
	delivery *DeliveryService
}

func newDeliveryFixture(t *testing.T, script ...string) *deliveryFixture {
	t.Helper()
	db := newTestDB(t)
	f := &deliveryFixture{
		assets: repository.NewAssetRepository(db),
		random: &fakeRandom{script: script},
		search: &fakeSearcher{name: "reddit"},
		files:  &fakeFiles{broken: map[string]bool{}},
	}
	agg := NewAggregator(Providers{Random: f.random, Search: f.search}, AggregatorConfig{}, seededRand())
	f.delivery = NewDeliveryService(f.assets, agg, f.files, logger.Discard(), &DeliveryConfig{})
	return f
}

// User 42 asks for a Primary meme with no keywords against an empty store.
func TestFetchFor_User42FirstRequest(t *testing.T) {
	f := newDeliveryFixture(t, "https://i.redd.it/x.jpg")
	ctx := context.Background()
	user := domain.UserIdentity(42)

	d, err := f.delivery.FetchFor(ctx, user, "", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.False(t, d.FromCache)
	assert.Equal(t, "https://i.redd.it/x.jpg", d.Asset.URL)
	assert.Equal(t, "/memes/x.jpg", d.Path)
	assert.NotZero(t, d.Asset.ID)
	assert.Equal(t, 1, d.Attempts)

	blacklist, err := f.assets.BlacklistFor(ctx, user)
	require.NoError(t, err)
	assert.Contains(t, blacklist, "https://i.redd.it/x.jpg")

	// The usage row makes the asset a cache hit for the same criteria.
	hit, err := f.assets.CacheLookup(ctx, domain.KeywordsNone, domain.LanguagePrimary, domain.UserIdentity(43))
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, d.Asset.ID, hit.ID)
}

func TestFetchFor_NeverRepeats(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg", "https://r/a.jpg", "https://r/b.jpg", "https://r/a.jpg", "https://r/b.jpg", "https://r/c.jpg")
	ctx := context.Background()
	user := domain.UserIdentity(42)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		d, err := f.delivery.FetchFor(ctx, user, "", domain.LanguagePrimary)
		require.NoError(t, err)
		assert.False(t, seen[d.Asset.URL], "repeated %s", d.Asset.URL)
		seen[d.Asset.URL] = true
	}
	assert.Len(t, seen, 3)

	count, err := f.assets.CountDeliveries(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestFetchFor_CacheFirst(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg")
	ctx := context.Background()

	first, err := f.delivery.FetchFor(ctx, domain.UserIdentity(1), "", domain.LanguagePrimary)
	require.NoError(t, err)
	require.Equal(t, 1, f.random.calls())

	second, err := f.delivery.FetchFor(ctx, domain.ChatIdentity(777), "", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Asset.ID, second.Asset.ID)
	assert.Zero(t, second.Attempts)
	assert.Equal(t, 1, f.random.calls(), "cache hit must not call providers")
	assert.Zero(t, f.search.calls())
}

func TestFetchFor_IdempotentAssetCreation(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg")
	ctx := context.Background()

	a, err := f.delivery.FetchFor(ctx, domain.UserIdentity(1), "", domain.LanguagePrimary)
	require.NoError(t, err)

	// Different keywords miss the cache, the search is empty and the
	// random pick offers the same URL again.
	b, err := f.delivery.FetchFor(ctx, domain.UserIdentity(2), "cat", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.False(t, b.FromCache)
	assert.Equal(t, a.Asset.ID, b.Asset.ID)

	n, err := f.assets.CountAssets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFetchFor_DownloadFailureRetries(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/broken.jpg", "https://r/broken.jpg", "https://r/ok.jpg")
	f.files.broken["https://r/broken.jpg"] = true
	ctx := context.Background()

	d, err := f.delivery.FetchFor(ctx, domain.UserIdentity(42), "", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.Equal(t, "https://r/ok.jpg", d.Asset.URL)
	assert.Equal(t, 3, d.Attempts)

	id, err := f.assets.FindAssetIDByURL(ctx, "https://r/broken.jpg")
	require.NoError(t, err)
	assert.Zero(t, id, "unconfirmed candidates must not be stored")
}

func TestFetchFor_CachedDownloadFailureFallsThrough(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/old.jpg", "https://r/new.jpg")
	ctx := context.Background()

	_, err := f.delivery.FetchFor(ctx, domain.UserIdentity(1), "", domain.LanguagePrimary)
	require.NoError(t, err)

	f.files.broken["https://r/old.jpg"] = true
	d, err := f.delivery.FetchFor(ctx, domain.UserIdentity(2), "", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.False(t, d.FromCache)
	assert.Equal(t, "https://r/new.jpg", d.Asset.URL)

	blacklist, err := f.assets.BlacklistFor(ctx, domain.UserIdentity(2))
	require.NoError(t, err)
	assert.NotContains(t, blacklist, "https://r/old.jpg")
}

func TestFetchFor_CachedDownloadFailureSkipsToOlderAsset(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/old.jpg", "https://r/new.jpg", "https://r/fresh.jpg")
	ctx := context.Background()
	first := domain.UserIdentity(1)

	for _, want := range []string{"https://r/old.jpg", "https://r/new.jpg"} {
		d, err := f.delivery.FetchFor(ctx, first, "", domain.LanguagePrimary)
		require.NoError(t, err)
		require.Equal(t, want, d.Asset.URL)
	}
	require.Equal(t, 2, f.random.calls())

	f.files.broken["https://r/new.jpg"] = true
	d, err := f.delivery.FetchFor(ctx, domain.UserIdentity(2), "", domain.LanguagePrimary)
	require.NoError(t, err)
	assert.True(t, d.FromCache)
	assert.Equal(t, "https://r/old.jpg", d.Asset.URL)
	assert.Equal(t, 2, f.random.calls(), "no provider call while a live cached asset exists")

	blacklist, err := f.assets.BlacklistFor(ctx, domain.UserIdentity(2))
	require.NoError(t, err)
	assert.NotContains(t, blacklist, "https://r/new.jpg")
}

func TestFetchFor_Exhausted(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg")
	ctx := context.Background()
	user := domain.UserIdentity(42)

	_, err := f.delivery.FetchFor(ctx, user, "", domain.LanguagePrimary)
	require.NoError(t, err)

	_, err = f.delivery.FetchFor(ctx, user, "", domain.LanguagePrimary)
	assert.ErrorIs(t, err, ErrExternalFetchExhausted)
	assert.Equal(t, 1+DefaultMaxAttempts, f.random.calls())
}

func TestFetchFor_AllDownloadsFail(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg", "https://r/b.jpg")
	f.files.broken["https://r/a.jpg"] = true
	f.files.broken["https://r/b.jpg"] = true

	_, err := f.delivery.FetchFor(context.Background(), domain.UserIdentity(42), "", domain.LanguagePrimary)
	assert.ErrorIs(t, err, ErrExternalFetchExhausted)
	assert.Equal(t, DefaultMaxAttempts, f.random.calls())
	assert.Len(t, f.files.calls, 2)
}

func TestFetchFor_NoCandidate(t *testing.T) {
	f := newDeliveryFixture(t)

	_, err := f.delivery.FetchFor(context.Background(), domain.UserIdentity(42), "", domain.LanguagePrimary)
	assert.ErrorIs(t, err, ErrNoCandidateFound)
}

func TestFetchFor_InvalidIdentity(t *testing.T) {
	f := newDeliveryFixture(t, "https://r/a.jpg")

	_, err := f.delivery.FetchFor(context.Background(), domain.Identity{Kind: "team", Value: 1}, "", "")
	assert.Error(t, err)
	assert.Zero(t, f.random.calls())
}
