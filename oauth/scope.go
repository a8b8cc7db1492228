package oauth

import "strings"

// NormalizeScope flattens the given scope values into a flat set of scope
// strings. Each value may itself be a space-separated list. Duplicates are
// dropped keeping the first occurrence, comparison is case-sensitive, and an
// empty result is nil.
//
// Scope handling happens at several lifecycle points (authorize, code
// persistence, token issuance) and must behave identically at each, so they
// all route through here.
func NormalizeScope(values ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, value := range values {
		for _, scope := range strings.Fields(value) {
			if !seen[scope] {
				seen[scope] = true
				out = append(out, scope)
			}
		}
	}
	return out
}

// ParseScopes parses a space-separated scope string into a slice.
func ParseScopes(scopeStr string) []string {
	if scopeStr == "" {
		return nil
	}
	return strings.Fields(scopeStr)
}

// FormatScopes formats a slice of scopes into a space-separated string.
func FormatScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ContainsScope reports whether scope is present in scopes.
func ContainsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeSubset reports whether every requested scope is present in granted.
// Requesting a stricter subset of granted scopes succeeds; equality is not
// required.
func ScopeSubset(granted, requested []string) bool {
	for _, s := range requested {
		if !ContainsScope(granted, s) {
			return false
		}
	}
	return true
}
