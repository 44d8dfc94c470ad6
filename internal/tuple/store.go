package tuple

import (
	"context"
	"errors"
	"iter"
)

// ErrVaultNotFound marks queries against a deleted or unknown vault graph. It
// is distinct from an empty result: a deleted vault must never silently
// empty-pass.
var ErrVaultNotFound = errors.New("tuple: vault not found")

// Store is vault-scoped durable storage of relationship tuples.
//
// Write and Delete apply their batch atomically: either every tuple in the
// call lands or none does. Writing an existing tuple and deleting a missing
// one are both no-ops.
//
// Query returns a lazy sequence of tuples matching the filter. The sequence is
// restartable: ranging over it again re-runs the query. Iteration order is
// stable for a given snapshot but otherwise unspecified. A deleted vault
// yields ErrVaultNotFound through the sequence.
type Store interface {
	Write(ctx context.Context, vaultID string, tuples []Tuple) error
	Delete(ctx context.Context, vaultID string, tuples []Tuple) error
	Query(ctx context.Context, vaultID string, filter Filter) iter.Seq2[Tuple, error]

	// DeleteVault drops the vault's entire graph. Subsequent queries observe
	// ErrVaultNotFound, not an empty result.
	DeleteVault(ctx context.Context, vaultID string) error
}

// Collect drains a query sequence into a slice. Intended for handlers and
// tests; the evaluator iterates lazily.
func Collect(seq iter.Seq2[Tuple, error]) ([]Tuple, error) {
	var out []Tuple
	for t, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
