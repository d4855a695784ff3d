package memeapi

import (
	"context"
	"net/url"

	"github.com/timmy/memebot/internal/source"
)

const (
	SourceID   = "meme-api"
	SourceName = "meme-api.com"
)

// Adapter implements source.RandomPicker for the meme-api "gimme" endpoint.
type Adapter struct {
	http *source.HTTPClient
}

// NewAdapter creates a new meme-api adapter
func NewAdapter(http *source.HTTPClient) *Adapter {
	return &Adapter{http: http}
}

// Name returns the provider identifier
func (a *Adapter) Name() string {
	return SourceID
}

type gimmeResponse struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	NSFW  bool   `json:"nsfw"`
}

// RandomPick returns one random meme from the given subreddit.
func (a *Adapter) RandomPick(ctx context.Context, category string) (source.Candidate, bool) {
	var resp gimmeResponse
	if err := a.http.GetJSON(ctx, "/gimme/"+url.PathEscape(category), nil, &resp); err != nil {
		a.http.Degrade(ctx, err)
		return source.Candidate{}, false
	}

	if resp.URL == "" || resp.NSFW {
		a.http.Observe(0)
		return source.Candidate{}, false
	}
	a.http.Observe(1)

	return source.Candidate{
		URL:       resp.URL,
		Title:     source.CleanTitle(resp.Title),
		SourceTag: SourceID + "/" + category,
	}, true
}
