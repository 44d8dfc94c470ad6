package authz

import (
	"sort"
	"strings"
)

// Scope is one permission tag a token may carry. The set is closed; tags
// outside it grant nothing.
type Scope string

const (
	ScopeCheck             Scope = "check"
	ScopeRead              Scope = "read"
	ScopeWrite             Scope = "write"
	ScopeExpand            Scope = "expand"
	ScopeList              Scope = "list"
	ScopeListRelationships Scope = "list-relationships"
	ScopeListSubjects      Scope = "list-subjects"
	ScopeListResources     Scope = "list-resources"
)

var knownScopes = map[Scope]struct{}{
	ScopeCheck:             {},
	ScopeRead:              {},
	ScopeWrite:             {},
	ScopeExpand:            {},
	ScopeList:              {},
	ScopeListRelationships: {},
	ScopeListSubjects:      {},
	ScopeListResources:     {},
}

// ScopeSet is the set of scopes granted by a token.
type ScopeSet map[Scope]struct{}

// ParseScopes parses a space-delimited scope claim. Unknown tags are
// dropped; they grant nothing.
func ParseScopes(raw string) ScopeSet {
	set := make(ScopeSet)
	for _, field := range strings.Fields(raw) {
		sc := Scope(field)
		if _, ok := knownScopes[sc]; ok {
			set[sc] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains the scope.
func (s ScopeSet) Has(sc Scope) bool {
	_, ok := s[sc]
	return ok
}

// HasAny reports whether the set contains at least one of the scopes.
func (s ScopeSet) HasAny(scopes ...Scope) bool {
	for _, sc := range scopes {
		if s.Has(sc) {
			return true
		}
	}
	return false
}

func (s ScopeSet) String() string {
	tags := make([]string, 0, len(s))
	for sc := range s {
		tags = append(tags, string(sc))
	}
	sort.Strings(tags)
	return strings.Join(tags, " ")
}
