package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/maidr/pkg/store"
)

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
		{30 * 24 * time.Hour, "May 16, 2025"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("formatRelativeTime(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestRunTable(t *testing.T) {
	now := time.Now()
	runs := []*store.Run{
		{ID: "run-b", Title: "Tips", Layers: 2, Degraded: 1, SpecHash: "0123456789abcdef", CreatedAt: now},
		{ID: "run-a", Title: "Iris", Layers: 1, SpecHash: "ff", CreatedAt: now.Add(-2 * time.Hour)},
	}
	out := runTable(runs, now)
	for _, want := range []string{"run-b", "run-a", "Tips", "0123456789ab", "2h ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("runTable() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0123456789abcdef") {
		t.Error("runTable() did not shorten the spec hash")
	}
}

func TestStatsLine(t *testing.T) {
	tests := []struct {
		layers, degraded int
		cached           bool
		want             []string
	}{
		{1, 0, false, []string{"1 layer", "fresh"}},
		{3, 1, true, []string{"3 layers", "1 degraded", "cached"}},
	}
	for _, tt := range tests {
		got := statsLine(tt.layers, tt.degraded, tt.cached)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("statsLine(%d, %d, %v) = %q, missing %q", tt.layers, tt.degraded, tt.cached, got, w)
			}
		}
	}
}
