package schema

import (
	"errors"
	"testing"
)

func TestNewRejectsBadReferences(t *testing.T) {
	_, err := New(Namespace{
		Type: "document",
		Relations: map[string]Rule{
			"viewer": ComputedUserset("owner"),
		},
	})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for dangling computed userset, got %v", err)
	}

	_, err = New(Namespace{
		Type: "document",
		Relations: map[string]Rule{
			"viewer": TupleToUserset("parent", "viewer"),
		},
	})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for dangling tupleset, got %v", err)
	}
}

func TestNewRejectsMalformedBooleans(t *testing.T) {
	_, err := New(Namespace{
		Type: "document",
		Relations: map[string]Rule{
			"viewer": Union(),
		},
	})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for empty union, got %v", err)
	}

	_, err = New(Namespace{
		Type: "document",
		Relations: map[string]Rule{
			"viewer": {Kind: KindExclusion, Children: []Rule{Direct()}},
		},
	})
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for one-armed exclusion, got %v", err)
	}
}

func TestRuleForFallsBackToDirect(t *testing.T) {
	var nilSchema *Schema
	if got := nilSchema.RuleFor("document", "viewer"); got.Kind != KindDirect {
		t.Fatalf("nil schema: expected direct fallback, got %v", got.Kind)
	}

	s, err := New(Namespace{
		Type: "document",
		Relations: map[string]Rule{
			"owner": Direct(),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.RuleFor("folder", "viewer"); got.Kind != KindDirect {
		t.Fatalf("unknown namespace: expected direct fallback, got %v", got.Kind)
	}
	if got := s.RuleFor("document", "viewer"); got.Kind != KindDirect {
		t.Fatalf("unknown relation: expected direct fallback, got %v", got.Kind)
	}
}

func TestParseDocument(t *testing.T) {
	doc := []byte(`{
		"namespaces": {
			"document": {
				"relations": {
					"owner": {"this": {}},
					"parent": {"this": {}},
					"banned": {"this": {}},
					"editor": {"union": [
						{"this": {}},
						{"computed_userset": {"relation": "owner"}}
					]},
					"viewer": {"exclusion": {
						"base": {"union": [
							{"this": {}},
							{"computed_userset": {"relation": "editor"}},
							{"tuple_to_userset": {"tupleset": "parent", "computed_userset": "viewer"}}
						]},
						"subtract": {"computed_userset": {"relation": "banned"}}
					}}
				}
			}
		}
	}`)
	s, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	viewer := s.RuleFor("document", "viewer")
	if viewer.Kind != KindExclusion {
		t.Fatalf("viewer: expected exclusion, got %v", viewer.Kind)
	}
	if len(viewer.Children) != 2 {
		t.Fatalf("viewer: expected base and subtract, got %d children", len(viewer.Children))
	}
	base := viewer.Children[0]
	if base.Kind != KindUnion || len(base.Children) != 3 {
		t.Fatalf("viewer base: unexpected shape %+v", base)
	}
	if base.Children[2].Kind != KindTupleToUserset || base.Children[2].TuplesetRelation != "parent" {
		t.Fatalf("viewer base ttu: unexpected %+v", base.Children[2])
	}
}

func TestParseRejectsAmbiguousRule(t *testing.T) {
	doc := []byte(`{
		"namespaces": {
			"document": {
				"relations": {
					"viewer": {"this": {}, "union": [{"this": {}}]}
				}
			}
		}
	}`)
	if _, err := Parse(doc); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for two-form rule, got %v", err)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"namespaces":`)); !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for truncated document, got %v", err)
	}
}
