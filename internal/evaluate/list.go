package evaluate

import (
	"context"
	"sort"

	"vaultgraph.org/internal/schema"
	"vaultgraph.org/internal/tuple"
)

// ListRelationships enumerates existing tuples matching the filter. No
// rewrite rules are applied; this is direct tuple inspection.
func (e *Evaluator) ListRelationships(ctx context.Context, vaultID string, filter tuple.Filter) ([]tuple.Tuple, error) {
	return tuple.Collect(e.store.Query(ctx, vaultID, filter))
}

// ListObjects returns the ids of objects of the given type on which the
// subject holds the permission. Only objects with at least one tuple can
// grant anything, so those are the candidate set; each candidate gets its own
// bounded Check traversal.
func (e *Evaluator) ListObjects(ctx context.Context, vaultID, objectType, permission string, subject tuple.Subject) ([]string, error) {
	candidates := make(map[string]struct{})
	for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{ResourceType: objectType}) {
		if err != nil {
			return nil, err
		}
		candidates[t.Resource.ID] = struct{}{}
	}
	var out []string
	for id := range candidates {
		ok, err := e.Check(ctx, vaultID, tuple.Object{Type: objectType, ID: id}, permission, subject)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ListSubjects flattens every concrete subject reachable through the
// permission's rewrite tree on the resource. Userset references are followed
// under the same depth and cycle guards as Check; intersection and exclusion
// operands contribute their base branches (the listing is an
// over-approximation there and callers needing exact membership should Check
// each subject).
func (e *Evaluator) ListSubjects(ctx context.Context, vaultID string, resource tuple.Object, permission string) ([]string, error) {
	r := newRun()
	seen := make(map[string]struct{})
	queue := []goal{{object: resource, relation: permission}}
	for len(queue) > 0 {
		g := queue[0]
		queue = queue[1:]
		if g.depth > e.maxDepth {
			continue
		}
		if _, dup := r.visited[g.key()]; dup {
			continue
		}
		r.visited[g.key()] = struct{}{}

		rule := e.schema.RuleFor(g.object.Type, g.relation)
		next, err := e.collectSubjects(ctx, vaultID, g, rule, seen)
		if err != nil {
			return nil, err
		}
		queue = append(queue, next...)
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Evaluator) collectSubjects(ctx context.Context, vaultID string, g goal, rule schema.Rule, seen map[string]struct{}) ([]goal, error) {
	switch rule.Kind {
	case schema.KindDirect:
		var next []goal
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     g.relation,
		}) {
			if err != nil {
				return nil, err
			}
			if t.Subject.IsUserset() {
				next = append(next, goal{object: t.Subject.Object, relation: t.Subject.Relation, depth: g.depth + 1})
				continue
			}
			seen[t.Subject.String()] = struct{}{}
		}
		return next, nil

	case schema.KindComputedUserset:
		return []goal{{object: g.object, relation: rule.Relation, depth: g.depth + 1}}, nil

	case schema.KindTupleToUserset:
		var next []goal
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     rule.TuplesetRelation,
		}) {
			if err != nil {
				return nil, err
			}
			next = append(next, goal{object: t.Subject.Object, relation: rule.ComputedRelation, depth: g.depth + 1})
		}
		return next, nil

	case schema.KindUnion:
		var next []goal
		for _, child := range rule.Children {
			n, err := e.collectSubjects(ctx, vaultID, g, child, seen)
			if err != nil {
				return nil, err
			}
			next = append(next, n...)
		}
		return next, nil

	case schema.KindIntersection, schema.KindExclusion:
		// Base branch only; see doc comment.
		return e.collectSubjects(ctx, vaultID, g, rule.Children[0], seen)
	}
	return nil, schema.ErrInvalidSchema
}
