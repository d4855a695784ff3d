package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/timmy/memebot/internal/repository"
	"github.com/timmy/memebot/internal/source"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "memes.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seededRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

// fakeSearcher returns a fixed result set and records queries.
type fakeSearcher struct {
	name    string
	results []source.Candidate

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, query string, c source.Constraints) []source.Candidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results
}

func (f *fakeSearcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakeRandom returns its script in order, then repeats the last entry.
// An empty URL in the script means "no meme".
type fakeRandom struct {
	script []string

	mu         sync.Mutex
	categories []string
}

func (f *fakeRandom) Name() string { return "random" }

func (f *fakeRandom) RandomPick(ctx context.Context, category string) (source.Candidate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categories = append(f.categories, category)
	if len(f.script) == 0 {
		return source.Candidate{}, false
	}
	i := len(f.categories) - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	u := f.script[i]
	if u == "" {
		return source.Candidate{}, false
	}
	return source.Candidate{URL: u, Title: "title " + u, SourceTag: "meme-api/" + category}, true
}

func (f *fakeRandom) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.categories)
}

// fakeFiles materializes every URL except those marked broken.
type fakeFiles struct {
	mu     sync.Mutex
	broken map[string]bool
	calls  []string
}

var errBrokenImage = errors.New("broken image")

func (f *fakeFiles) Materialize(ctx context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.broken[rawURL] {
		return "", errBrokenImage
	}
	return "/memes/" + filepath.Base(rawURL), nil
}

func candidates(urls ...string) []source.Candidate {
	out := make([]source.Candidate, 0, len(urls))
	for _, u := range urls {
		out = append(out, source.Candidate{URL: u, Title: u, SourceTag: "test"})
	}
	return out
}
