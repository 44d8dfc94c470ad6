package schema

import (
	"errors"
	"fmt"
)

// ErrInvalidSchema marks a malformed rewrite rule. It is surfaced at load
// time; the evaluator never treats a malformed rule as permissive.
var ErrInvalidSchema = errors.New("schema: invalid schema")

// Kind enumerates the closed set of rewrite rule forms.
type Kind int

const (
	// KindDirect resolves a relation from tuples naming it directly.
	KindDirect Kind = iota
	// KindComputedUserset resolves to another relation on the same object.
	KindComputedUserset
	// KindTupleToUserset walks a tupleset relation to other objects and
	// evaluates a computed relation on each of them.
	KindTupleToUserset
	// KindUnion succeeds when any child succeeds.
	KindUnion
	// KindIntersection succeeds when every child succeeds.
	KindIntersection
	// KindExclusion succeeds when the base child succeeds and the subtract
	// child does not.
	KindExclusion
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "this"
	case KindComputedUserset:
		return "computed_userset"
	case KindTupleToUserset:
		return "tuple_to_userset"
	case KindUnion:
		return "union"
	case KindIntersection:
		return "intersection"
	case KindExclusion:
		return "exclusion"
	}
	return "unknown"
}

// Rule is one node of a permission rewrite tree.
type Rule struct {
	Kind Kind

	// ComputedUserset.
	Relation string

	// TupleToUserset.
	TuplesetRelation string
	ComputedRelation string

	// Union, Intersection, Exclusion (base first, subtract second).
	Children []Rule
}

// Direct matches tuples naming the relation itself.
func Direct() Rule { return Rule{Kind: KindDirect} }

// ComputedUserset rewrites to another relation on the same object.
func ComputedUserset(relation string) Rule {
	return Rule{Kind: KindComputedUserset, Relation: relation}
}

// TupleToUserset follows tupleset subjects and evaluates computed on each.
func TupleToUserset(tupleset, computed string) Rule {
	return Rule{Kind: KindTupleToUserset, TuplesetRelation: tupleset, ComputedRelation: computed}
}

func Union(children ...Rule) Rule {
	return Rule{Kind: KindUnion, Children: children}
}

func Intersection(children ...Rule) Rule {
	return Rule{Kind: KindIntersection, Children: children}
}

// Exclusion grants base minus subtract.
func Exclusion(base, subtract Rule) Rule {
	return Rule{Kind: KindExclusion, Children: []Rule{base, subtract}}
}

// Namespace defines the relations and permissions of one object type.
type Namespace struct {
	Type      string
	Relations map[string]Rule
}

// Schema is the full permission model for a deployment. A nil or empty schema
// is valid: every permission then resolves as a direct relation of the same
// name.
type Schema struct {
	Namespaces map[string]Namespace
}

// New builds a schema from namespaces and validates it.
func New(namespaces ...Namespace) (*Schema, error) {
	s := &Schema{Namespaces: make(map[string]Namespace, len(namespaces))}
	for _, ns := range namespaces {
		if ns.Type == "" {
			return nil, fmt.Errorf("%w: namespace with empty type", ErrInvalidSchema)
		}
		if _, dup := s.Namespaces[ns.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate namespace %q", ErrInvalidSchema, ns.Type)
		}
		s.Namespaces[ns.Type] = ns
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// RuleFor resolves the rewrite rule for a relation on an object type. Unknown
// pairs fall back to a direct relation, matching graphs operated without an
// explicit schema.
func (s *Schema) RuleFor(objectType, relation string) Rule {
	if s == nil {
		return Direct()
	}
	ns, ok := s.Namespaces[objectType]
	if !ok {
		return Direct()
	}
	rule, ok := ns.Relations[relation]
	if !ok {
		return Direct()
	}
	return rule
}

// Validate checks every rewrite rule once at load time so evaluation never
// encounters a malformed rule.
func (s *Schema) Validate() error {
	if s == nil {
		return nil
	}
	for typeName, ns := range s.Namespaces {
		for relName, rule := range ns.Relations {
			if relName == "" {
				return fmt.Errorf("%w: namespace %q has a relation with empty name", ErrInvalidSchema, typeName)
			}
			if err := s.validateRule(ns, relName, rule); err != nil {
				return fmt.Errorf("%w: %s#%s: %v", ErrInvalidSchema, typeName, relName, err)
			}
		}
	}
	return nil
}

func (s *Schema) validateRule(ns Namespace, relName string, rule Rule) error {
	switch rule.Kind {
	case KindDirect:
		if rule.Relation != "" || rule.TuplesetRelation != "" || len(rule.Children) != 0 {
			return errors.New("direct rule carries extra fields")
		}
	case KindComputedUserset:
		if rule.Relation == "" {
			return errors.New("computed userset requires a relation")
		}
		if _, ok := ns.Relations[rule.Relation]; !ok {
			return fmt.Errorf("computed userset references undefined relation %q", rule.Relation)
		}
	case KindTupleToUserset:
		if rule.TuplesetRelation == "" || rule.ComputedRelation == "" {
			return errors.New("tuple-to-userset requires tupleset and computed relations")
		}
		if _, ok := ns.Relations[rule.TuplesetRelation]; !ok {
			return fmt.Errorf("tuple-to-userset references undefined tupleset relation %q", rule.TuplesetRelation)
		}
	case KindUnion, KindIntersection:
		if len(rule.Children) == 0 {
			return fmt.Errorf("%s requires at least one child", rule.Kind)
		}
		for _, child := range rule.Children {
			if err := s.validateRule(ns, relName, child); err != nil {
				return err
			}
		}
	case KindExclusion:
		if len(rule.Children) != 2 {
			return errors.New("exclusion requires exactly base and subtract children")
		}
		for _, child := range rule.Children {
			if err := s.validateRule(ns, relName, child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown rule kind %d", rule.Kind)
	}
	return nil
}
