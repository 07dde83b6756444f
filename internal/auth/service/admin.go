package service

import "strings"

// AdminGate decides whether an email may use the admin entry points. The
// allowlist is fixed at construction.
type AdminGate struct {
	allowed map[string]struct{}
}

// NewAdminGate builds a gate from the given emails. Blank entries are
// ignored; a gate without entries authorizes nobody.
func NewAdminGate(emails ...string) *AdminGate {
	g := &AdminGate{allowed: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = NormalizeEmail(e); e != "" {
			g.allowed[e] = struct{}{}
		}
	}
	return g
}

// ParseAdminEmails splits a comma separated AUTH_ADMIN_EMAILS value.
func ParseAdminEmails(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = NormalizeEmail(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAuthorized reports whether email is on the allowlist, ignoring case and
// surrounding whitespace.
func (g *AdminGate) IsAuthorized(email string) bool {
	if g == nil {
		return false
	}
	_, ok := g.allowed[NormalizeEmail(email)]
	return ok
}

// Len returns the number of allowlisted emails.
func (g *AdminGate) Len() int {
	if g == nil {
		return 0
	}
	return len(g.allowed)
}
