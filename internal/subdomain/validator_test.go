package subdomain

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		want      bool
		reason    string
	}{
		{"simple", "acme", true, ""},
		{"digits", "123", true, ""},
		{"inner hyphen", "acme-salon", true, ""},
		{"double inner hyphen", "a--b", true, ""},
		{"exactly three", "abc", true, ""},
		{"exactly 63", strings.Repeat("a", 63), true, ""},
		{"empty", "", false, ReasonEmpty},
		{"too short", "ab", false, ReasonTooShort},
		{"too long", strings.Repeat("a", 64), false, ReasonTooLong},
		{"leading hyphen", "-acme", false, ReasonFormat},
		{"trailing hyphen", "acme-", false, ReasonFormat},
		{"uppercase", "Acme", false, ReasonFormat},
		{"underscore", "ac_me", false, ReasonFormat},
		{"dot", "ac.me", false, ReasonFormat},
		{"space", "ac me", false, ReasonFormat},
		{"unicode", "acmé", false, ReasonFormat},
		{"reserved www", "www", false, ReasonReserved},
		{"reserved product name", "meet-lines", false, ReasonReserved},
		{"reserved billing", "billing", false, ReasonReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := IsValid(tt.candidate)
			if got != tt.want {
				t.Fatalf("IsValid(%q) = %v, want %v (reason %q)", tt.candidate, got, tt.want, reason)
			}
			if reason != tt.reason {
				t.Errorf("IsValid(%q) reason = %q, want %q", tt.candidate, reason, tt.reason)
			}
		})
	}
}

func TestEveryReservedWordIsRejected(t *testing.T) {
	for _, word := range Reserved() {
		if ok, reason := IsValid(word); ok || reason != ReasonReserved {
			t.Errorf("IsValid(%q) = %v, %q; want reserved", word, ok, reason)
		}
	}
}

// The acceptance rule written out independently of the implementation.
var reference = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61}[a-z0-9])?$`)

func expected(s string) bool {
	return len(s) >= MinLength && len(s) <= MaxLength && reference.MatchString(s) && !IsReserved(s)
}

func TestIsValidRandomized(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789-_.A"
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		n := rng.Intn(70)
		var b strings.Builder
		for j := 0; j < n; j++ {
			b.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		s := b.String()
		if got, _ := IsValid(s); got != expected(s) {
			t.Fatalf("IsValid(%q) = %v, want %v", s, got, expected(s))
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Acme-Salon "); got != "acme-salon" {
		t.Errorf("Normalize = %q, want %q", got, "acme-salon")
	}
}

func TestIsReserved(t *testing.T) {
	for _, word := range []string{"www", "api", "admin"} {
		if !IsReserved(word) {
			t.Errorf("IsReserved(%q) = false", word)
		}
	}
	for _, word := range []string{"acme", "API", " www", ""} {
		if IsReserved(word) {
			t.Errorf("IsReserved(%q) = true, want exact lowercase match only", word)
		}
	}
}
