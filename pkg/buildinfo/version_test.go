package buildinfo

import (
	"strings"
	"testing"
)

func TestTemplate(t *testing.T) {
	got := Template()
	for _, want := range []string{"{{.Name}}", Version, "commit: " + Commit, "built: " + Date} {
		if !strings.Contains(got, want) {
			t.Errorf("Template() = %q, missing %q", got, want)
		}
	}
}
