package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vaultgraph.org/internal/evaluate"
	"vaultgraph.org/internal/obs"
	"vaultgraph.org/internal/stream"
	"vaultgraph.org/internal/tuple"
)

// Service is the façade the transport layer talks to. It enforces scope and
// vault-role requirements per operation, then delegates to the evaluator and
// tuple store scoped to the principal's vault.
type Service struct {
	eval   *evaluate.Evaluator
	tuples tuple.Store
	events *stream.Stream
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithEvents wires a decision event stream; nil disables publishing.
func WithEvents(s *stream.Stream) ServiceOption {
	return func(svc *Service) { svc.events = s }
}

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(svc *Service) {
		if fn != nil {
			svc.now = fn
		}
	}
}

func NewService(eval *evaluate.Evaluator, tuples tuple.Store, opts ...ServiceOption) *Service {
	svc := &Service{eval: eval, tuples: tuples, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Evaluation is one (resource, permission, subject) triple of a batch.
type Evaluation struct {
	Resource   string `json:"resource"`
	Permission string `json:"permission"`
	Subject    string `json:"subject"`
}

// Outcome is the decision for one evaluation, order-preserving with the
// request batch.
type Outcome struct {
	Allowed bool `json:"allowed"`
}

// Relationship is the wire form of one tuple in a write or delete batch.
type Relationship struct {
	Resource string `json:"resource"`
	Relation string `json:"relation"`
	Subject  string `json:"subject"`
}

// Evaluate answers a batch of permission checks. Requires the check scope.
func (s *Service) Evaluate(ctx context.Context, p Principal, evals []Evaluation) ([]Outcome, error) {
	if err := requireScope(p, ScopeCheck); err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, fmt.Errorf("%w: empty evaluation batch", ErrInvalidInput)
	}
	out := make([]Outcome, len(evals))
	for i, ev := range evals {
		resource, err := tuple.ParseObject(ev.Resource)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		subject, err := tuple.ParseSubject(ev.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if ev.Permission == "" {
			return nil, fmt.Errorf("%w: permission is required", ErrInvalidInput)
		}

		start := s.now()
		allowed, err := s.eval.Check(ctx, p.VaultID, resource, ev.Permission, subject)
		if err != nil {
			return nil, evalError(err)
		}
		obs.ObserveCheck(s.now().Sub(start), allowed)
		out[i] = Outcome{Allowed: allowed}

		if s.events != nil {
			s.events.Publish(stream.DecisionEvent{
				VaultID:    p.VaultID,
				Resource:   ev.Resource,
				Permission: ev.Permission,
				Subject:    ev.Subject,
				Allowed:    allowed,
				Timestamp:  s.now().UTC(),
			})
		}
	}
	return out, nil
}

// WriteRelationships applies a batch of tuples atomically. Requires the
// write scope and a write vault role.
func (s *Service) WriteRelationships(ctx context.Context, p Principal, rels []Relationship) error {
	if err := requireScope(p, ScopeWrite); err != nil {
		return err
	}
	if !p.CanWrite() {
		return fmt.Errorf("%w: vault role %q cannot write", ErrForbidden, p.VaultRole)
	}
	tuples, err := parseRelationships(rels)
	if err != nil {
		return err
	}
	return writeError(s.tuples.Write(ctx, p.VaultID, tuples))
}

// DeleteRelationships removes a batch of tuples atomically. Deleting a tuple
// that does not exist is a no-op. Requires the write scope and a write vault
// role.
func (s *Service) DeleteRelationships(ctx context.Context, p Principal, rels []Relationship) error {
	if err := requireScope(p, ScopeWrite); err != nil {
		return err
	}
	if !p.CanWrite() {
		return fmt.Errorf("%w: vault role %q cannot write", ErrForbidden, p.VaultRole)
	}
	tuples, err := parseRelationships(rels)
	if err != nil {
		return err
	}
	return writeError(s.tuples.Delete(ctx, p.VaultID, tuples))
}

// Expand materializes the contribution tree for a permission on a resource.
// Requires the expand scope.
func (s *Service) Expand(ctx context.Context, p Principal, resource, permission string) (*evaluate.Node, error) {
	if err := requireScope(p, ScopeExpand); err != nil {
		return nil, err
	}
	obj, err := tuple.ParseObject(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if permission == "" {
		return nil, fmt.Errorf("%w: permission is required", ErrInvalidInput)
	}
	node, err := s.eval.Expand(ctx, p.VaultID, obj, permission)
	if err != nil {
		return nil, evalError(err)
	}
	return node, nil
}

// ListRelationships enumerates existing tuples matching the filter. Requires
// the list-relationships scope (or the broad list scope).
func (s *Service) ListRelationships(ctx context.Context, p Principal, resource, relation, subject string) ([]Relationship, error) {
	if err := requireAnyScope(p, ScopeListRelationships, ScopeList); err != nil {
		return nil, err
	}
	filter := tuple.Filter{Relation: relation}
	if resource != "" {
		obj, err := tuple.ParseObject(resource)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		filter.ResourceType = obj.Type
		filter.ResourceID = obj.ID
	}
	if subject != "" {
		sub, err := tuple.ParseSubject(subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		filter.Subject = &sub
	}
	found, err := s.eval.ListRelationships(ctx, p.VaultID, filter)
	if err != nil {
		return nil, evalError(err)
	}
	out := make([]Relationship, len(found))
	for i, t := range found {
		out[i] = Relationship{
			Resource: t.Resource.String(),
			Relation: t.Relation,
			Subject:  t.Subject.String(),
		}
	}
	return out, nil
}

// ListResources returns ids of objects of a type on which the subject holds
// the permission. Requires the list-resources scope (or list).
func (s *Service) ListResources(ctx context.Context, p Principal, objectType, permission, subject string) ([]string, error) {
	if err := requireAnyScope(p, ScopeListResources, ScopeList); err != nil {
		return nil, err
	}
	if objectType == "" || permission == "" {
		return nil, fmt.Errorf("%w: type and permission are required", ErrInvalidInput)
	}
	sub, err := tuple.ParseSubject(subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ids, err := s.eval.ListObjects(ctx, p.VaultID, objectType, permission, sub)
	if err != nil {
		return nil, evalError(err)
	}
	return ids, nil
}

// ListSubjects flattens the subjects holding a permission on a resource.
// Requires the list-subjects scope (or list).
func (s *Service) ListSubjects(ctx context.Context, p Principal, resource, permission string) ([]string, error) {
	if err := requireAnyScope(p, ScopeListSubjects, ScopeList); err != nil {
		return nil, err
	}
	obj, err := tuple.ParseObject(resource)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if permission == "" {
		return nil, fmt.Errorf("%w: permission is required", ErrInvalidInput)
	}
	subjects, err := s.eval.ListSubjects(ctx, p.VaultID, obj, permission)
	if err != nil {
		return nil, evalError(err)
	}
	return subjects, nil
}

func parseRelationships(rels []Relationship) ([]tuple.Tuple, error) {
	if len(rels) == 0 {
		return nil, fmt.Errorf("%w: empty relationship batch", ErrInvalidInput)
	}
	out := make([]tuple.Tuple, len(rels))
	for i, r := range rels {
		t, err := tuple.New(r.Resource, r.Relation, r.Subject)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		out[i] = t
	}
	return out, nil
}

func requireScope(p Principal, sc Scope) error {
	if !p.Scopes.Has(sc) {
		return fmt.Errorf("%w: scope %s required", ErrForbidden, sc)
	}
	return nil
}

func requireAnyScope(p Principal, scopes ...Scope) error {
	if !p.Scopes.HasAny(scopes...) {
		return fmt.Errorf("%w: scope %s required", ErrForbidden, scopes[0])
	}
	return nil
}

// evalError maps evaluator and tuple store failures onto the taxonomy.
func evalError(err error) error {
	switch {
	case errors.Is(err, tuple.ErrVaultNotFound):
		return fmt.Errorf("%w: vault", ErrNotFound)
	case errors.Is(err, tuple.ErrInvalidTuple):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func writeError(err error) error {
	if err == nil {
		return nil
	}
	return evalError(err)
}
