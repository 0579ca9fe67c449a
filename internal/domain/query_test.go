package domain

import (
	"testing"

	"github.com/nichesupply/listingsearch/internal/domain/filter"
)

func TestNewQuery_LimitClamping(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero selects default", 0, DefaultSearchLimit},
		{"negative selects default", -5, DefaultSearchLimit},
		{"in range kept", 3, 3},
		{"above max clamped", 1000, MaxSearchLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery("copper scrap", tt.limit, filter.Filter{})
			if q.Limit() != tt.want {
				t.Errorf("Limit() = %d, want %d", q.Limit(), tt.want)
			}
		})
	}
}

func TestNewQuery_EmptyTextAllowed(t *testing.T) {
	q := NewQuery("", 0, filter.Filter{})
	if q.Text() != "" {
		t.Errorf("Text() = %q", q.Text())
	}
	if q.Limit() != DefaultSearchLimit {
		t.Errorf("Limit() = %d", q.Limit())
	}
}
