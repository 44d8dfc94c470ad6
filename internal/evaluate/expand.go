package evaluate

import (
	"context"
	"sort"

	"vaultgraph.org/internal/schema"
	"vaultgraph.org/internal/tuple"
)

// NodeKind labels one node of an expansion tree.
type NodeKind string

const (
	NodeLeaf         NodeKind = "leaf"
	NodeUnion        NodeKind = "union"
	NodeIntersection NodeKind = "intersection"
	NodeExclusion    NodeKind = "exclusion"
)

// Node is one node of the tree of tuples and usersets contributing to a
// permission. Leaf nodes carry the direct subjects of a relation; userset
// subjects are additionally expanded as children until the depth bound.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Object   string   `json:"object"`
	Relation string   `json:"relation"`
	Subjects []string `json:"subjects,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Expand materializes the contribution tree for a permission on a resource.
func (e *Evaluator) Expand(ctx context.Context, vaultID string, resource tuple.Object, permission string) (*Node, error) {
	r := newRun()
	return e.expandGoal(ctx, vaultID, r, goal{object: resource, relation: permission})
}

func (e *Evaluator) expandGoal(ctx context.Context, vaultID string, r *run, g goal) (*Node, error) {
	node := &Node{Object: g.object.String(), Relation: g.relation}
	if g.depth > e.maxDepth {
		node.Kind = NodeLeaf
		return node, nil
	}
	if _, seen := r.visited[g.key()]; seen {
		node.Kind = NodeLeaf
		return node, nil
	}
	r.visited[g.key()] = struct{}{}

	rule := e.schema.RuleFor(g.object.Type, g.relation)
	return e.expandRule(ctx, vaultID, r, g, rule)
}

func (e *Evaluator) expandRule(ctx context.Context, vaultID string, r *run, g goal, rule schema.Rule) (*Node, error) {
	node := &Node{Object: g.object.String(), Relation: g.relation}
	switch rule.Kind {
	case schema.KindDirect:
		node.Kind = NodeLeaf
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     g.relation,
		}) {
			if err != nil {
				return nil, err
			}
			node.Subjects = append(node.Subjects, t.Subject.String())
			if t.Subject.IsUserset() {
				child, err := e.expandGoal(ctx, vaultID, r, goal{
					object:   t.Subject.Object,
					relation: t.Subject.Relation,
					depth:    g.depth + 1,
				})
				if err != nil {
					return nil, err
				}
				node.Children = append(node.Children, child)
			}
		}
		sort.Strings(node.Subjects)
		return node, nil

	case schema.KindComputedUserset:
		node.Kind = NodeUnion
		child, err := e.expandGoal(ctx, vaultID, r, goal{object: g.object, relation: rule.Relation, depth: g.depth + 1})
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
		return node, nil

	case schema.KindTupleToUserset:
		node.Kind = NodeUnion
		for t, err := range e.store.Query(ctx, vaultID, tuple.Filter{
			ResourceType: g.object.Type,
			ResourceID:   g.object.ID,
			Relation:     rule.TuplesetRelation,
		}) {
			if err != nil {
				return nil, err
			}
			child, err := e.expandGoal(ctx, vaultID, r, goal{
				object:   t.Subject.Object,
				relation: rule.ComputedRelation,
				depth:    g.depth + 1,
			})
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil

	case schema.KindUnion, schema.KindIntersection, schema.KindExclusion:
		switch rule.Kind {
		case schema.KindUnion:
			node.Kind = NodeUnion
		case schema.KindIntersection:
			node.Kind = NodeIntersection
		case schema.KindExclusion:
			node.Kind = NodeExclusion
		}
		for _, childRule := range rule.Children {
			child, err := e.expandRule(ctx, vaultID, r, g, childRule)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}
	return nil, schema.ErrInvalidSchema
}
