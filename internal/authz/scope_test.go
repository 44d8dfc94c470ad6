package authz

import "testing"

func TestParseScopesDropsUnknownTags(t *testing.T) {
	set := ParseScopes("check  write admin:everything list-subjects")
	if len(set) != 3 {
		t.Fatalf("expected 3 recognized scopes, got %v", set)
	}
	if !set.Has(ScopeCheck) || !set.Has(ScopeWrite) || !set.Has(ScopeListSubjects) {
		t.Fatalf("missing expected scopes: %v", set)
	}
	if set.Has(Scope("admin:everything")) {
		t.Fatalf("unknown tag must grant nothing")
	}
}

func TestParseScopesEmpty(t *testing.T) {
	set := ParseScopes("")
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
	if set.HasAny(ScopeCheck, ScopeList) {
		t.Fatalf("empty set should grant nothing")
	}
}

func TestScopeSetString(t *testing.T) {
	set := ParseScopes("write check")
	if got := set.String(); got != "check write" {
		t.Fatalf("String() = %q", got)
	}
}

func TestClaimsClientID(t *testing.T) {
	c := &Claims{}
	c.Subject = "client:client-42"
	id, ok := c.ClientID()
	if !ok || id != "client-42" {
		t.Fatalf("ClientID = %q, %v", id, ok)
	}

	for _, bad := range []string{"", "client:", "user:alice"} {
		c.Subject = bad
		if _, ok := c.ClientID(); ok {
			t.Fatalf("subject %q should not parse", bad)
		}
	}
}
