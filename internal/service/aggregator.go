package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/source"
)

const (
	DefaultMaxAttempts    = 20
	DefaultSecondaryQuery = "мем"
)

var (
	DefaultPrimaryCategories   = []string{"memes", "dankmemes", "me_irl"}
	DefaultSecondaryCategories = []string{"ru_memes", "RussianMemes", "pikabu"}
)

// Providers groups the provider clients the aggregator draws from. Any of
// them may be nil, in which case its stage is skipped.
type Providers struct {
	// Random serves primary requests without keywords, and primary
	// keyword requests whose search came back empty.
	Random source.RandomPicker
	// Search is the first stage for both languages.
	Search source.Searcher
	// SecondarySearch is the second secondary stage.
	SecondarySearch source.Searcher
	// SecondaryFallback is the last secondary stage. It receives the raw
	// keywords; an empty query asks it for random content.
	SecondaryFallback source.Searcher
}

// AggregatorConfig holds aggregator tuning.
type AggregatorConfig struct {
	PrimaryCategories     []string
	SecondaryCategories   []string
	DefaultSecondaryQuery string
	MaxAttempts           int
}

// Aggregator picks one candidate per call from the configured providers,
// routing by language.
type Aggregator struct {
	providers Providers
	cfg       AggregatorConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAggregator creates a new Aggregator. A nil rng is seeded from the clock.
func NewAggregator(providers Providers, cfg AggregatorConfig, rng *rand.Rand) *Aggregator {
	if len(cfg.PrimaryCategories) == 0 {
		cfg.PrimaryCategories = DefaultPrimaryCategories
	}
	if len(cfg.SecondaryCategories) == 0 {
		cfg.SecondaryCategories = DefaultSecondaryCategories
	}
	if cfg.DefaultSecondaryQuery == "" {
		cfg.DefaultSecondaryQuery = DefaultSecondaryQuery
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Aggregator{providers: providers, cfg: cfg, rng: rng}
}

// Pick returns one candidate for keywords in lang.
//
// Primary: keyword search first, random pick from a random primary
// category when there are no keywords or the search is empty.
// Secondary: search, then SecondarySearch, then SecondaryFallback; the
// first non-empty stage wins.
//
// Returns ErrNoCandidateFound when nothing could be produced.
func (a *Aggregator) Pick(ctx context.Context, keywords string, lang domain.Language) (source.Candidate, error) {
	if lang == domain.LanguageSecondary {
		return a.pickSecondary(ctx, keywords)
	}
	return a.pickPrimary(ctx, keywords)
}

func (a *Aggregator) pickPrimary(ctx context.Context, keywords string) (source.Candidate, error) {
	if keywords != "" && a.providers.Search != nil {
		found := a.providers.Search.Search(ctx, keywords, source.Constraints{
			Language:   domain.LanguagePrimary,
			Categories: a.cfg.PrimaryCategories,
		})
		if c, ok := a.choose(found); ok {
			return c, nil
		}
	}

	if a.providers.Random == nil {
		return source.Candidate{}, ErrNoCandidateFound
	}
	category := a.pickCategory(a.cfg.PrimaryCategories)
	c, ok := a.providers.Random.RandomPick(ctx, category)
	if !ok {
		return source.Candidate{}, ErrNoCandidateFound
	}
	return c, nil
}

func (a *Aggregator) pickSecondary(ctx context.Context, keywords string) (source.Candidate, error) {
	query := keywords
	if query == "" {
		query = a.cfg.DefaultSecondaryQuery
	}
	constraints := source.Constraints{
		Language:   domain.LanguageSecondary,
		Categories: a.cfg.SecondaryCategories,
	}

	stages := []struct {
		provider source.Searcher
		query    string
	}{
		{a.providers.Search, query},
		{a.providers.SecondarySearch, query},
		{a.providers.SecondaryFallback, keywords},
	}

	for _, stage := range stages {
		if stage.provider == nil {
			continue
		}
		found := stage.provider.Search(ctx, stage.query, constraints)
		if c, ok := a.choose(found); ok {
			return c, nil
		}
		logger.FromContext(ctx).
			WithField(logger.FieldProvider, stage.provider.Name()).
			Debug("Provider stage empty, falling through")
	}
	return source.Candidate{}, ErrNoCandidateFound
}

// PickUnique draws until it finds a candidate not in blacklist, at most
// MaxAttempts times.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - keywords: search terms, may be empty.
//   - lang: language track.
//   - blacklist: URLs already delivered to the requester.
//
// Returns:
//   - source.Candidate: the first non-blacklisted candidate.
//   - error: ErrNoCandidateFound as soon as a draw comes back empty,
//     ErrExternalFetchExhausted when every draw was blacklisted.
func (a *Aggregator) PickUnique(ctx context.Context, keywords string, lang domain.Language, blacklist map[string]struct{}) (source.Candidate, error) {
	c, _, err := a.pickUniqueWithin(ctx, keywords, lang, blacklist, a.cfg.MaxAttempts)
	return c, err
}

// pickUniqueWithin is PickUnique with an explicit budget. It also returns
// how many draws were spent.
func (a *Aggregator) pickUniqueWithin(ctx context.Context, keywords string, lang domain.Language, blacklist map[string]struct{}, budget int) (source.Candidate, int, error) {
	for attempt := 1; attempt <= budget; attempt++ {
		if err := ctx.Err(); err != nil {
			return source.Candidate{}, attempt - 1, err
		}

		c, err := a.Pick(ctx, keywords, lang)
		if err != nil {
			return source.Candidate{}, attempt, err
		}
		if _, seen := blacklist[c.URL]; seen {
			continue
		}
		return c, attempt, nil
	}
	return source.Candidate{}, budget, ErrExternalFetchExhausted
}

// MaxAttempts returns the per-request draw budget.
func (a *Aggregator) MaxAttempts() int {
	return a.cfg.MaxAttempts
}

func (a *Aggregator) choose(found []source.Candidate) (source.Candidate, bool) {
	if len(found) == 0 {
		return source.Candidate{}, false
	}
	a.mu.Lock()
	i := a.rng.IntN(len(found))
	a.mu.Unlock()
	return found[i], true
}

func (a *Aggregator) pickCategory(items []string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return items[a.rng.IntN(len(items))]
}
