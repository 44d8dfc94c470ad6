package authz

import (
	"context"
	"errors"
	"testing"

	"vaultgraph.org/internal/evaluate"
	"vaultgraph.org/internal/stream"
	"vaultgraph.org/internal/tuple"
)

func testPrincipal(scopes string, role string) Principal {
	return Principal{
		ClientID:  "client-1",
		OrgID:     "org-1",
		VaultID:   "vault-1",
		VaultRole: role,
		Scopes:    ParseScopes(scopes),
	}
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *tuple.MemoryStore) {
	t.Helper()
	store := tuple.NewMemoryStore()
	return NewService(evaluate.New(store, nil), store, opts...), store
}

func TestEvaluatePreservesBatchOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("check write", VaultRoleWrite)

	if err := svc.WriteRelationships(ctx, p, []Relationship{
		{Resource: "document:1", Relation: "viewer", Subject: "user:alice"},
	}); err != nil {
		t.Fatalf("WriteRelationships: %v", err)
	}

	out, err := svc.Evaluate(ctx, p, []Evaluation{
		{Resource: "document:1", Permission: "viewer", Subject: "user:bob"},
		{Resource: "document:1", Permission: "viewer", Subject: "user:alice"},
		{Resource: "document:2", Permission: "viewer", Subject: "user:alice"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []bool{false, true, false}
	for i, o := range out {
		if o.Allowed != want[i] {
			t.Fatalf("result %d = %v, want %v", i, o.Allowed, want[i])
		}
	}
}

func TestEvaluateRequiresCheckScope(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("write", VaultRoleWrite)

	_, err := svc.Evaluate(ctx, p, []Evaluation{
		{Resource: "document:1", Permission: "viewer", Subject: "user:alice"},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestEvaluateRejectsEmptyBatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Evaluate(ctx, testPrincipal("check", VaultRoleRead), nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEvaluateRejectsMalformedReferences(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("check", VaultRoleRead)

	cases := []Evaluation{
		{Resource: "document", Permission: "viewer", Subject: "user:alice"},
		{Resource: "document:1", Permission: "", Subject: "user:alice"},
		{Resource: "document:1", Permission: "viewer", Subject: "user:alice#"},
	}
	for i, ev := range cases {
		if _, err := svc.Evaluate(ctx, p, []Evaluation{ev}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestEvaluatePublishesDecisions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := stream.New()
	svc, store := newTestService(t, WithEvents(events))
	p := testPrincipal("check", VaultRoleRead)

	tp, _ := tuple.New("document:1", "viewer", "user:alice")
	if err := store.Write(ctx, "vault-1", []tuple.Tuple{tp}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ch := events.Subscribe(ctx)
	if _, err := svc.Evaluate(ctx, p, []Evaluation{
		{Resource: "document:1", Permission: "viewer", Subject: "user:alice"},
	}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	ev := <-ch
	if ev.VaultID != "vault-1" || !ev.Allowed || ev.Resource != "document:1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestWriteRequiresWriteRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("write", VaultRoleRead)

	err := svc.WriteRelationships(ctx, p, []Relationship{
		{Resource: "document:1", Relation: "viewer", Subject: "user:alice"},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for read role, got %v", err)
	}
}

func TestWriteRequiresWriteScope(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("check", VaultRoleWrite)

	err := svc.WriteRelationships(ctx, p, []Relationship{
		{Resource: "document:1", Relation: "viewer", Subject: "user:alice"},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden without write scope, got %v", err)
	}
}

func TestDeleteRelationships(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	p := testPrincipal("check write", VaultRoleWrite)

	rels := []Relationship{{Resource: "document:1", Relation: "viewer", Subject: "user:alice"}}
	if err := svc.WriteRelationships(ctx, p, rels); err != nil {
		t.Fatalf("WriteRelationships: %v", err)
	}
	if err := svc.DeleteRelationships(ctx, p, rels); err != nil {
		t.Fatalf("DeleteRelationships: %v", err)
	}

	out, err := svc.Evaluate(ctx, p, []Evaluation{
		{Resource: "document:1", Permission: "viewer", Subject: "user:alice"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if out[0].Allowed {
		t.Fatalf("grant survived deletion")
	}

	// deleting again is a no-op
	if err := svc.DeleteRelationships(ctx, p, rels); err != nil {
		t.Fatalf("repeat DeleteRelationships: %v", err)
	}
}

func TestExpandAndListScopes(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	tp, _ := tuple.New("document:1", "viewer", "user:alice")
	if err := store.Write(ctx, "vault-1", []tuple.Tuple{tp}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := svc.Expand(ctx, testPrincipal("check", VaultRoleRead), "document:1", "viewer"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("Expand without scope: %v", err)
	}
	node, err := svc.Expand(ctx, testPrincipal("expand", VaultRoleRead), "document:1", "viewer")
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(node.Subjects) != 1 {
		t.Fatalf("unexpected expand tree: %+v", node)
	}

	if _, err := svc.ListSubjects(ctx, testPrincipal("check", VaultRoleRead), "document:1", "viewer"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("ListSubjects without scope: %v", err)
	}
	// the broad list scope covers every list operation
	broad := testPrincipal("list", VaultRoleRead)
	if _, err := svc.ListSubjects(ctx, broad, "document:1", "viewer"); err != nil {
		t.Fatalf("ListSubjects with list scope: %v", err)
	}
	if _, err := svc.ListResources(ctx, broad, "document", "viewer", "user:alice"); err != nil {
		t.Fatalf("ListResources with list scope: %v", err)
	}
	if _, err := svc.ListRelationships(ctx, broad, "", "", ""); err != nil {
		t.Fatalf("ListRelationships with list scope: %v", err)
	}
}

func TestListRelationshipsFilters(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	a, _ := tuple.New("document:1", "viewer", "user:alice")
	b, _ := tuple.New("document:2", "viewer", "user:bob")
	if err := store.Write(ctx, "vault-1", []tuple.Tuple{a, b}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	p := testPrincipal("list-relationships", VaultRoleRead)

	rels, err := svc.ListRelationships(ctx, p, "document:1", "", "")
	if err != nil {
		t.Fatalf("ListRelationships: %v", err)
	}
	if len(rels) != 1 || rels[0].Subject != "user:alice" {
		t.Fatalf("unexpected relationships: %+v", rels)
	}

	if _, err := svc.ListRelationships(ctx, p, "bogus", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for malformed resource, got %v", err)
	}
}
