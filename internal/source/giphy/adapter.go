package giphy

import (
	"context"
	"strconv"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/source"
)

const (
	SourceID   = "giphy"
	SourceName = "Giphy"

	defaultLimit  = 25
	defaultRating = "pg-13"
)

// Config holds Giphy request parameters.
type Config struct {
	APIKey string
	Limit  int
	Rating string
}

// Adapter implements source.Searcher over the Giphy GIF search API.
// Without an API key it is disabled and returns no candidates.
type Adapter struct {
	http *source.HTTPClient
	cfg  Config
}

// NewAdapter creates a new Giphy adapter
func NewAdapter(http *source.HTTPClient, cfg Config) *Adapter {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Rating == "" {
		cfg.Rating = defaultRating
	}
	return &Adapter{http: http, cfg: cfg}
}

// Name returns the provider identifier
func (a *Adapter) Name() string {
	return SourceID
}

// Enabled reports whether an API key is configured.
func (a *Adapter) Enabled() bool {
	return a.cfg.APIKey != ""
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL string `json:"url"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

// Search returns GIFs for query in the constraint language.
func (a *Adapter) Search(ctx context.Context, query string, c source.Constraints) []source.Candidate {
	if !a.Enabled() {
		return nil
	}

	var resp searchResponse
	err := a.http.GetJSON(ctx, "/v1/gifs/search", map[string]string{
		"api_key": a.cfg.APIKey,
		"q":       query,
		"lang":    langParam(c.Language),
		"limit":   strconv.Itoa(a.cfg.Limit),
		"rating":  a.cfg.Rating,
	}, &resp)
	if err != nil {
		a.http.Degrade(ctx, err)
		return nil
	}

	out := make([]source.Candidate, 0, len(resp.Data))
	for _, g := range resp.Data {
		u := g.Images.Original.URL
		if u == "" {
			continue
		}
		title := source.CleanTitle(g.Title)
		if title == "" {
			title = query
		}
		out = append(out, source.Candidate{
			URL:       u,
			Title:     title,
			SourceTag: "giphy/" + g.ID,
		})
	}

	a.http.Observe(len(out))
	return out
}

func langParam(lang domain.Language) string {
	if lang == domain.LanguageSecondary {
		return "ru"
	}
	return "en"
}
