package reddit

import (
	"context"
	"strconv"
	"strings"

	"github.com/timmy/memebot/internal/domain"
	"github.com/timmy/memebot/internal/source"
)

const (
	SourceID   = "reddit"
	SourceName = "Reddit search"

	searchLimit = 100
)

// Adapter implements source.Searcher over Reddit's public search listing.
type Adapter struct {
	http *source.HTTPClient
}

// NewAdapter creates a new Reddit search adapter
func NewAdapter(http *source.HTTPClient) *Adapter {
	return &Adapter{http: http}
}

// Name returns the provider identifier
func (a *Adapter) Name() string {
	return SourceID
}

type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	Title     string `json:"title"`
	Subreddit string `json:"subreddit"`
	PostHint  string `json:"post_hint"`
	URL       string `json:"url_overridden_by_dest"`
	Over18    bool   `json:"over_18"`
}

// Search queries Reddit and keeps image posts whose language matches.
//
// For the secondary language a post qualifies when its title has Cyrillic
// letters or it was posted to one of c.Categories. For the primary
// language posts with Cyrillic titles are dropped.
func (a *Adapter) Search(ctx context.Context, query string, c source.Constraints) []source.Candidate {
	var resp listing
	err := a.http.GetJSON(ctx, "/search.json", map[string]string{
		"q":     query,
		"sort":  "relevance",
		"t":     "year",
		"limit": strconv.Itoa(searchLimit),
	}, &resp)
	if err != nil {
		a.http.Degrade(ctx, err)
		return nil
	}

	subs := make(map[string]struct{}, len(c.Categories))
	for _, s := range c.Categories {
		subs[strings.ToLower(s)] = struct{}{}
	}

	var out []source.Candidate
	for _, child := range resp.Data.Children {
		p := child.Data
		if p.PostHint != "image" || p.URL == "" || p.Over18 {
			continue
		}

		cyrillic := source.HasCyrillic(p.Title)
		if c.Language == domain.LanguageSecondary {
			if _, ok := subs[strings.ToLower(p.Subreddit)]; !ok && !cyrillic {
				continue
			}
		} else if cyrillic {
			continue
		}

		out = append(out, source.Candidate{
			URL:       p.URL,
			Title:     source.CleanTitle(p.Title),
			SourceTag: "r/" + p.Subreddit,
		})
	}

	a.http.Observe(len(out))
	return out
}
