package pikabu

import (
	"context"
	"encoding/json"

	"github.com/timmy/memebot/internal/source"
)

const (
	SourceID   = "pikabu"
	SourceName = "Pikabu"
)

// Adapter implements source.Searcher over the Pikabu story API. An empty
// query asks for random posts instead of a tag search.
type Adapter struct {
	http *source.HTTPClient
}

// NewAdapter creates a new Pikabu adapter
func NewAdapter(http *source.HTTPClient) *Adapter {
	return &Adapter{http: http}
}

// Name returns the provider identifier
func (a *Adapter) Name() string {
	return SourceID
}

type story struct {
	StoryID json.Number `json:"story_id"`
	ID      json.Number `json:"id"`
	Title   string      `json:"title"`
	Preview string      `json:"preview"`
}

type storiesResponse struct {
	Stories []story `json:"stories"`
	Posts   []story `json:"posts"`
}

// Search returns stories tagged with query, or random posts when query is
// empty. Constraints are ignored; Pikabu content is secondary-language.
func (a *Adapter) Search(ctx context.Context, query string, _ source.Constraints) []source.Candidate {
	path := "/v1/post/random"
	var params map[string]string
	if query != "" {
		path = "/v1/story"
		params = map[string]string{"tag": query}
	}

	var resp storiesResponse
	if err := a.http.GetJSON(ctx, path, params, &resp); err != nil {
		a.http.Degrade(ctx, err)
		return nil
	}

	items := resp.Stories
	if len(items) == 0 {
		items = resp.Posts
	}

	out := make([]source.Candidate, 0, len(items))
	for _, s := range items {
		if s.Preview == "" {
			continue
		}
		id := s.StoryID.String()
		if id == "" {
			id = s.ID.String()
		}
		out = append(out, source.Candidate{
			URL:       s.Preview,
			Title:     source.CleanTitle(s.Title),
			SourceTag: "pikabu/" + id,
		})
	}

	a.http.Observe(len(out))
	return out
}
