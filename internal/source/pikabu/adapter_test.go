package pikabu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/memebot/internal/source"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/story":
			assert.Equal(t, "кот", r.URL.Query().Get("tag"))
			w.Write([]byte(`{"stories":[
				{"story_id":101,"title":"Кот","preview":"https://cs.pikabu.ru/101.jpg"},
				{"story_id":102,"title":"Без картинки"}
			]}`))
		case "/v1/post/random":
			w.Write([]byte(`{"posts":[{"id":"7","title":"Случайный","preview":"https://cs.pikabu.ru/7.jpg"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewAdapter(source.NewHTTPClient(source.ClientConfig{Name: SourceID, BaseURL: srv.URL}))

	tests := []struct {
		name  string
		query string
		want  source.Candidate
	}{
		{
			name:  "tag search",
			query: "кот",
			want:  source.Candidate{URL: "https://cs.pikabu.ru/101.jpg", Title: "Кот", SourceTag: "pikabu/101"},
		},
		{
			name:  "random posts",
			query: "",
			want:  source.Candidate{URL: "https://cs.pikabu.ru/7.jpg", Title: "Случайный", SourceTag: "pikabu/7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Search(context.Background(), tt.query, source.Constraints{})
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestSearch_FailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewAdapter(source.NewHTTPClient(source.ClientConfig{Name: SourceID, BaseURL: srv.URL}))
	assert.Empty(t, a.Search(context.Background(), "кот", source.Constraints{}))
}
