// Package subdomain holds the single acceptance rule for tenant subdomains.
// Tenant resolution and project create/rename both go through IsValid so a
// name accepted in one place is accepted everywhere.
package subdomain

import (
	"regexp"
	"strings"
)

const (
	MinLength = 3
	MaxLength = 63
)

// Rejection reasons returned by IsValid.
const (
	ReasonEmpty    = "subdomain is required"
	ReasonTooShort = "subdomain must be at least 3 characters"
	ReasonTooLong  = "subdomain must be at most 63 characters"
	ReasonFormat   = "subdomain may contain only lowercase letters, digits and inner hyphens"
	ReasonReserved = "subdomain is reserved"
)

var pattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61}[a-z0-9])?$`)

var reserved = map[string]struct{}{
	"www": {}, "api": {}, "admin": {}, "app": {}, "dashboard": {}, "cdn": {},
	"mail": {}, "ftp": {}, "smtp": {}, "pop": {}, "imap": {},
	"meetlines": {}, "meet-lines": {}, "meetline": {}, "meet-line": {},
	"support": {}, "help": {}, "blog": {}, "status": {},
	"dev": {}, "staging": {}, "test": {},
	"auth": {}, "login": {}, "register": {}, "signup": {}, "signin": {},
	"account": {}, "profile": {}, "billing": {},
}

// IsValid reports whether candidate may be used as a tenant subdomain. When
// it may not, reason says why. The candidate is not normalized: "Acme" is
// rejected, callers lowercase hosts before asking.
func IsValid(candidate string) (bool, string) {
	switch n := len(candidate); {
	case n == 0:
		return false, ReasonEmpty
	case n < MinLength:
		return false, ReasonTooShort
	case n > MaxLength:
		return false, ReasonTooLong
	}
	if !pattern.MatchString(candidate) {
		return false, ReasonFormat
	}
	if IsReserved(candidate) {
		return false, ReasonReserved
	}
	return true, ""
}

// IsReserved reports whether candidate is on the reserved word list. It does
// not normalize, so callers pass an already lowercased label.
func IsReserved(candidate string) bool {
	_, ok := reserved[candidate]
	return ok
}

// Reserved returns a copy of the reserved word list.
func Reserved() []string {
	out := make([]string, 0, len(reserved))
	for word := range reserved {
		out = append(out, word)
	}
	return out
}

// Normalize lowercases and trims a user supplied name before validation.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
