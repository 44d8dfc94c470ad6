package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"vaultgraph.org/internal/trust"
	"vaultgraph.org/internal/tuple"
)

func (s *Store) Write(ctx context.Context, vaultID string, tuples []tuple.Tuple) error {
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	if err := s.requireVault(ctx, vaultID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tuples {
		if _, err := tx.ExecContext(ctx, `
			insert into relationship_tuples
				(vault_id, resource_type, resource_id, relation, subject_type, subject_id, subject_relation)
			values ($1, $2, $3, $4, $5, $6, $7)
			on conflict do nothing
		`, vaultID, t.Resource.Type, t.Resource.ID, t.Relation,
			t.Subject.Object.Type, t.Subject.Object.ID, t.Subject.Relation); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, vaultID string, tuples []tuple.Tuple) error {
	if err := s.requireVault(ctx, vaultID); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range tuples {
		if _, err := tx.ExecContext(ctx, `
			delete from relationship_tuples
			where vault_id = $1 and resource_type = $2 and resource_id = $3
			  and relation = $4 and subject_type = $5 and subject_id = $6 and subject_relation = $7
		`, vaultID, t.Resource.Type, t.Resource.ID, t.Relation,
			t.Subject.Object.Type, t.Subject.Object.ID, t.Subject.Relation); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Query(ctx context.Context, vaultID string, filter tuple.Filter) iter.Seq2[tuple.Tuple, error] {
	return func(yield func(tuple.Tuple, error) bool) {
		if err := s.requireVault(ctx, vaultID); err != nil {
			yield(tuple.Tuple{}, err)
			return
		}

		where := []string{"vault_id = $1"}
		args := []any{vaultID}
		arg := func(v any) string {
			args = append(args, v)
			return fmt.Sprintf("$%d", len(args))
		}
		if filter.ResourceType != "" {
			where = append(where, "resource_type = "+arg(filter.ResourceType))
		}
		if filter.ResourceID != "" {
			where = append(where, "resource_id = "+arg(filter.ResourceID))
		}
		if filter.Relation != "" {
			where = append(where, "relation = "+arg(filter.Relation))
		}
		if filter.Subject != nil {
			where = append(where, "subject_type = "+arg(filter.Subject.Object.Type))
			where = append(where, "subject_id = "+arg(filter.Subject.Object.ID))
			where = append(where, "subject_relation = "+arg(filter.Subject.Relation))
		}

		rows, err := s.db.QueryContext(ctx, `
			select resource_type, resource_id, relation, subject_type, subject_id, subject_relation
			from relationship_tuples
			where `+strings.Join(where, " and ")+`
			order by resource_type, resource_id, relation, subject_type, subject_id, subject_relation
		`, args...)
		if err != nil {
			yield(tuple.Tuple{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var t tuple.Tuple
			if err := rows.Scan(
				&t.Resource.Type, &t.Resource.ID, &t.Relation,
				&t.Subject.Object.Type, &t.Subject.Object.ID, &t.Subject.Relation,
			); err != nil {
				yield(tuple.Tuple{}, err)
				return
			}
			if !yield(t, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(tuple.Tuple{}, err)
		}
	}
}

func (s *Store) DeleteVault(ctx context.Context, vaultID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		delete from relationship_tuples where vault_id = $1
	`, vaultID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update vaults set status = 'deleted' where id = $1
	`, vaultID); err != nil {
		return err
	}
	return tx.Commit()
}

// requireVault rejects graph operations against unknown or deleted vaults so
// a dropped graph is observed as "not found", never as silently empty.
func (s *Store) requireVault(ctx context.Context, vaultID string) error {
	var status trust.VaultStatus
	err := s.db.QueryRowContext(ctx, `
		select status from vaults where id = $1
	`, vaultID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return tuple.ErrVaultNotFound
	}
	if err != nil {
		return err
	}
	if status != trust.VaultActive {
		return tuple.ErrVaultNotFound
	}
	return nil
}
