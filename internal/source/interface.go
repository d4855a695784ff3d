package source

import (
	"context"

	"github.com/timmy/memebot/internal/domain"
)

// Candidate is an image offered by a provider.
type Candidate struct {
	URL       string
	Title     string
	SourceTag string // e.g. "r/memes", "giphy/<id>"
}

// Constraints narrow a provider search.
type Constraints struct {
	Language domain.Language
	// Categories are provider-specific buckets (subreddits) that count
	// as belonging to Language.
	Categories []string
}

// Searcher is a provider that answers keyword queries.
//
// Implementations never return transport errors: a failed or malformed
// upstream response yields an empty result.
type Searcher interface {
	// Name returns a stable provider identifier for logs and metrics.
	Name() string

	// Search returns candidates for query under constraints.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - query: search terms; providers may accept an empty query.
	//   - c: language and category constraints.
	// Returns:
	//   - []Candidate: zero or more candidates.
	Search(ctx context.Context, query string, c Constraints) []Candidate
}

// RandomPicker is a provider that returns one random meme per call.
type RandomPicker interface {
	Name() string

	// RandomPick returns a random meme from category. The bool is false
	// when the provider could not produce one.
	RandomPick(ctx context.Context, category string) (Candidate, bool)
}
