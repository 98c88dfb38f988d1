package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origSHA := Version, GitSHA
	defer func() { Version, GitSHA = origVersion, origSHA }()

	Version = "1.2.3"
	GitSHA = "abc123"
	got := String()
	if !strings.Contains(got, "1.2.3") || !strings.Contains(got, "abc123") {
		t.Errorf("String() = %q, want version and sha", got)
	}
}
