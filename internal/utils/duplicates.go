package utils

import (
	"strings"
)

// SuggestionFilter tracks which tokens or identities were already seen.
// It is not safe for concurrent use.
type SuggestionFilter struct {
	seen  map[string]bool
	input string
}

// NewSuggestionFilter creates a new filter instance that will exclude the given input
func NewSuggestionFilter(input string) *SuggestionFilter {
	seen := make(map[string]bool)
	lowerInput := strings.ToLower(input)
	seen[lowerInput] = true

	return &SuggestionFilter{
		seen:  seen,
		input: lowerInput,
	}
}

// ShouldInclude checks if a key should be included in results (not a duplicate)
// Returns true if the key should be included, false if it's a duplicate
func (f *SuggestionFilter) ShouldInclude(key string) bool {
	lowerKey := strings.ToLower(key)
	if f.seen[lowerKey] {
		return false
	}
	f.seen[lowerKey] = true
	return true
}

// NewIdentityFilter creates a filter that compares keys exactly.
func NewIdentityFilter(seen ...string) *IdentityFilter {
	f := &IdentityFilter{seen: make(map[string]bool, len(seen))}
	for _, key := range seen {
		f.seen[key] = true
	}
	return f
}

// IdentityFilter is a case-sensitive SuggestionFilter for datum identities.
type IdentityFilter struct {
	seen map[string]bool
}

func (f *IdentityFilter) ShouldInclude(key string) bool {
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}
