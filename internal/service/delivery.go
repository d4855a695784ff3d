package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/metrics"
	"github.com/timmy/memebot/internal/repository"
	"github.com/timmy/memebot/internal/storage"
)

// DeliveryService serves memes cache-first and never hands the same URL to
// the same identity twice.
type DeliveryService struct {
	assets      *repository.AssetRepository
	aggregator  *Aggregator
	files       storage.Materializer
	logger      *logger.Logger
	maxAttempts int
}

// DeliveryConfig holds configuration for the delivery service
type DeliveryConfig struct {
	MaxAttempts int
}

// Delivery is one served meme.
type Delivery struct {
	Asset     domain.MemeAsset
	Path      string
	FromCache bool
	// Attempts is the number of aggregator draws spent, 0 for cache hits.
	Attempts int
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	assets *repository.AssetRepository,
	aggregator *Aggregator,
	files storage.Materializer,
	log *logger.Logger,
	cfg *DeliveryConfig,
) *DeliveryService {
	maxAttempts := aggregator.MaxAttempts()
	if cfg != nil && cfg.MaxAttempts > 0 {
		maxAttempts = cfg.MaxAttempts
	}
	return &DeliveryService{
		assets:      assets,
		aggregator:  aggregator,
		files:       files,
		logger:      log,
		maxAttempts: maxAttempts,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *DeliveryService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// FetchFor returns a meme identity has never received.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - identity: requester scope for the no-repeat rule.
//   - keywords: search terms, empty for any meme.
//   - lang: language track, empty for no language constraint.
//
// Returns:
//   - *Delivery: the served meme with its local file path.
//   - error: ErrNoCandidateFound or ErrExternalFetchExhausted when no new
//     meme exists; other errors are store or filesystem faults.
func (s *DeliveryService) FetchFor(ctx context.Context, identity domain.Identity, keywords string, lang domain.Language) (*Delivery, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	ctx = s.log(ctx).WithField(logger.FieldIdentity, identity.String()).WithContext(ctx)
	start := time.Now()

	d, err := s.fromCache(ctx, identity, keywords, lang)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("store").Inc()
		return nil, err
	}
	path := "cache"
	if d == nil {
		path = "fetch"
		d, err = s.fromProviders(ctx, identity, keywords, lang)
		if err != nil {
			metrics.FetchFailures.WithLabelValues(failureReason(err)).Inc()
			return nil, err
		}
		metrics.FetchAttempts.Observe(float64(d.Attempts))
	}

	metrics.Deliveries.WithLabelValues(path, string(lang)).Inc()
	logger.With(logger.Fields{
		logger.FieldFromCache: d.FromCache,
		logger.FieldAttempt:   d.Attempts,
	}).WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Delivered meme %d from %s", d.Asset.ID, d.Asset.Source)
	return d, nil
}

// fromCache serves the newest cached asset identity has not received.
// Assets that fail to download are skipped for the rest of the request,
// up to maxAttempts of them; nothing is recorded for them.
func (s *DeliveryService) fromCache(ctx context.Context, identity domain.Identity, keywords string, lang domain.Language) (*Delivery, error) {
	var skip []uint
	for len(skip) < s.maxAttempts {
		asset, err := s.assets.CacheLookup(ctx, keywords, lang, identity, skip...)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			return nil, nil
		}

		path, err := s.files.Materialize(ctx, asset.URL)
		if err != nil {
			s.log(ctx).WithError(err).Warnf("Cached meme %d unavailable", asset.ID)
			skip = append(skip, asset.ID)
			continue
		}

		if err := s.assets.RecordServe(ctx, asset, identity, keywords, lang); err != nil {
			return nil, fmt.Errorf("record delivery: %w", err)
		}
		return &Delivery{Asset: *asset, Path: path, FromCache: true}, nil
	}
	return nil, nil
}

func (s *DeliveryService) fromProviders(ctx context.Context, identity domain.Identity, keywords string, lang domain.Language) (*Delivery, error) {
	exclude, err := s.assets.BlacklistFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	attempts := 0
	for attempts < s.maxAttempts {
		candidate, used, err := s.aggregator.pickUniqueWithin(ctx, keywords, lang, exclude, s.maxAttempts-attempts)
		attempts += used
		if err != nil {
			return nil, err
		}

		path, err := s.files.Materialize(ctx, candidate.URL)
		if err != nil {
			s.log(ctx).WithError(err).Warnf("Candidate %s could not be downloaded", candidate.URL)
			exclude[candidate.URL] = struct{}{}
			continue
		}

		asset := domain.MemeAsset{URL: candidate.URL, Title: candidate.Title, Source: candidate.SourceTag}
		if err := s.assets.RecordServe(ctx, &asset, identity, keywords, lang); err != nil {
			return nil, fmt.Errorf("record delivery: %w", err)
		}
		return &Delivery{Asset: asset, Path: path, Attempts: attempts}, nil
	}
	return nil, ErrExternalFetchExhausted
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoCandidateFound):
		return "no_candidate"
	case errors.Is(err, ErrExternalFetchExhausted):
		return "exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal"
	}
}
