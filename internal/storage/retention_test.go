package storage

import (
	"context"
	"testing"
)

type countingPruner struct{ calls int }

func (p *countingPruner) Prune(keep int) (int, error) {
	p.calls++
	return 0, nil
}

func TestStartRetention(t *testing.T) {
	tests := []struct {
		name    string
		cron    string
		wantErr bool
	}{
		{name: "disabled", cron: ""},
		{name: "valid", cron: "*/10 * * * *"},
		{name: "invalid", cron: "every ten minutes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancel, err := StartRetention(context.Background(), &countingPruner{}, tt.cron, 500)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			cancel()
		})
	}
}
