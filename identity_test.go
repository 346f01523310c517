package brightpath

import (
	"strings"
	"testing"
)

func TestBundleFileName(t *testing.T) {
	if got := BundleFileName("42"); got != "42.html" {
		t.Fatalf("BundleFileName = %q, want 42.html", got)
	}
}

func TestValidateGameID(t *testing.T) {
	cases := []struct {
		name string
		id   string
		ok   bool
	}{
		{"simple", "1", true},
		{"alnum", "game-42", true},
		{"empty", "", false},
		{"traversal", "../etc/passwd", false},
		{"slash", "a/b", false},
		{"backslash", `a\b`, false},
		{"too long", strings.Repeat("x", 129), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGameID(tc.id)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
