package evaluate

import (
	"context"
	"fmt"

	"vaultgraph.org/internal/schema"
	"vaultgraph.org/internal/tuple"
)

const defaultMaxDepth = 25

// Evaluator answers permission queries over a vault's tuple graph. It is
// read-only and side-effect-free: traversals run fully in parallel across
// requests, bounded by the depth guard rather than external timeouts.
type Evaluator struct {
	store    tuple.Store
	schema   *schema.Schema
	maxDepth int
}

// Option configures Evaluator behavior.
type Option func(*Evaluator)

// WithMaxDepth overrides the traversal depth bound.
func WithMaxDepth(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

func New(store tuple.Store, sch *schema.Schema, opts ...Option) *Evaluator {
	e := &Evaluator{store: store, schema: sch, maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// goal is one frontier node of a traversal: resolve relation on object.
type goal struct {
	object   tuple.Object
	relation string
	depth    int
}

func (g goal) key() string {
	return g.object.String() + "#" + g.relation
}

// run holds per-traversal state. The visited set guards cycles: a repeated
// (object, relation) goal or an exceeded depth bound contributes "not found
// under bounded search", which resolves to false, never an error.
type run struct {
	visited map[string]struct{}
}

func newRun() *run {
	return &run{visited: make(map[string]struct{})}
}

// Check reports whether subject holds permission on resource within the
// vault. Existential semantics: ORed branches stop at the first satisfying
// path; intersection and exclusion operands are evaluated in full.
func (e *Evaluator) Check(ctx context.Context, vaultID string, resource tuple.Object, permission string, subject tuple.Subject) (bool, error) {
	start := goal{object: resource, relation: permission}
	return e.evalGoals(ctx, vaultID, newRun(), []goal{start}, subject)
}

// evalGoals drains a worklist of goals, short-circuiting on the first direct
// hit. Goals discovered through userset indirection are appended with an
// incremented depth.
func (e *Evaluator) evalGoals(ctx context.Context, vaultID string, r *run, queue []goal, subject tuple.Subject) (bool, error) {
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if g.depth > e.maxDepth {
			continue
		}
		if _, seen := r.visited[g.key()]; seen {
			continue
		}
		r.visited[g.key()] = struct{}{}

		rule := e.schema.RuleFor(g.object.Type, g.relation)
		ok, next, err := e.evalRule(ctx, vaultID, g, rule, subject)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		queue = append(queue, next...)
	}
	return false, nil
}

// evalRule resolves a single rewrite rule for a goal. It either decides the
// goal (true) or yields the follow-up goals its usersets point at.
func (e *Evaluator) evalRule(ctx context.Context, vaultID string, g goal, rule schema.Rule, subject tuple.Subject) (bool, []goal, error) {
	switch rule.Kind {
	case schema.KindDirect:
		var next []goal
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     g.relation,
		}) {
			if err != nil {
				return false, nil, err
			}
			if t.Subject == subject {
				return true, nil, nil
			}
			if t.Subject.IsUserset() {
				next = append(next, goal{
					object:   t.Subject.Object,
					relation: t.Subject.Relation,
					depth:    g.depth + 1,
				})
			}
		}
		return false, next, nil

	case schema.KindComputedUserset:
		return false, []goal{{object: g.object, relation: rule.Relation, depth: g.depth + 1}}, nil

	case schema.KindTupleToUserset:
		var next []goal
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     rule.TuplesetRelation,
		}) {
			if err != nil {
				return false, nil, err
			}
			next = append(next, goal{
				object:   t.Subject.Object,
				relation: rule.ComputedRelation,
				depth:    g.depth + 1,
			})
		}
		return false, next, nil

	case schema.KindUnion:
		var next []goal
		for _, child := range rule.Children {
			ok, n, err := e.evalRule(ctx, vaultID, g, child, subject)
			if err != nil {
				return false, nil, err
			}
			if ok {
				return true, nil, nil
			}
			next = append(next, n...)
		}
		return false, next, nil

	case schema.KindIntersection:
		for _, child := range rule.Children {
			ok, err := e.evalOperand(ctx, vaultID, g, child, subject)
			if err != nil {
				return false, nil, err
			}
			if !ok {
				return false, nil, nil
			}
		}
		return true, nil, nil

	case schema.KindExclusion:
		base, err := e.evalOperand(ctx, vaultID, g, rule.Children[0], subject)
		if err != nil {
			return false, nil, err
		}
		if !base {
			return false, nil, nil
		}
		subtracted, err := e.evalOperand(ctx, vaultID, g, rule.Children[1], subject)
		if err != nil {
			return false, nil, err
		}
		return !subtracted, nil, nil
	}

	// Schemas are validated at load time; an unknown kind here is an internal
	// fault and must never resolve to a grant.
	return false, nil, fmt.Errorf("%w: unhandled rule kind %d for %s", schema.ErrInvalidSchema, rule.Kind, g.key())
}

// evalOperand runs a full nested traversal for one intersection or exclusion
// operand. Operands get their own visited set: sharing the outer one could
// suppress goals the outer traversal abandoned after a short-circuit.
func (e *Evaluator) evalOperand(ctx context.Context, vaultID string, g goal, rule schema.Rule, subject tuple.Subject) (bool, error) {
	r := newRun()
	ok, next, err := e.evalRule(ctx, vaultID, g, rule, subject)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return e.evalGoals(ctx, vaultID, r, next, subject)
}
