package pg

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vaultgraph.org/internal/trust"
	"vaultgraph.org/internal/tuple"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store backs both the trust store and the tuple store with postgres.
type Store struct {
	db *sql.DB
}

var (
	_ trust.Store = (*Store)(nil)
	_ tuple.Store = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle; used by the sqlmock tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Organization(ctx context.Context, id string) (trust.Organization, error) {
	var org trust.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, status, created_at, updated_at
		from organizations where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return trust.Organization{}, trust.ErrNotFound
	}
	if err != nil {
		return trust.Organization{}, err
	}
	return org, nil
}

func (s *Store) Vault(ctx context.Context, orgID, vaultID string) (trust.Vault, error) {
	var v trust.Vault
	err := s.db.QueryRowContext(ctx, `
		select id, org_id, name, status, created_at
		from vaults where id = $1 and org_id = $2
	`, vaultID, orgID).Scan(&v.ID, &v.OrgID, &v.Name, &v.Status, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return trust.Vault{}, trust.ErrNotFound
	}
	if err != nil {
		return trust.Vault{}, err
	}
	return v, nil
}

func (s *Store) Client(ctx context.Context, id string) (trust.Client, error) {
	var c trust.Client
	err := s.db.QueryRowContext(ctx, `
		select id, org_id, name, status, created_at
		from clients where id = $1
	`, id).Scan(&c.ID, &c.OrgID, &c.Name, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return trust.Client{}, trust.ErrNotFound
	}
	if err != nil {
		return trust.Client{}, err
	}
	return c, nil
}

func (s *Store) CertificateByKid(ctx context.Context, kid string) (trust.Certificate, error) {
	var (
		cert trust.Certificate
		key  []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, client_id, kid, public_key, status, issued_at, revoked_at
		from certificates where kid = $1
	`, kid).Scan(&cert.ID, &cert.ClientID, &cert.Kid, &key, &cert.Status, &cert.IssuedAt, &cert.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return trust.Certificate{}, trust.ErrNotFound
	}
	if err != nil {
		return trust.Certificate{}, err
	}
	cert.PublicKey = ed25519.PublicKey(key)
	return cert, nil
}

// Management-side mutators. The authorization core never calls these; they
// exist for the management collaborator and the seed tooling.

func (s *Store) PutOrganization(ctx context.Context, org trust.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		insert into organizations (id, name, status, created_at, updated_at)
		values ($1, $2, $3, now(), now())
		on conflict (id) do update set name = excluded.name, status = excluded.status, updated_at = now()
	`, org.ID, org.Name, org.Status)
	return err
}

func (s *Store) SetOrganizationStatus(ctx context.Context, id string, status trust.OrgStatus) error {
	return s.expectOneRow(s.db.ExecContext(ctx, `
		update organizations set status = $2, updated_at = now() where id = $1
	`, id, status))
}

func (s *Store) PutVault(ctx context.Context, v trust.Vault) error {
	_, err := s.db.ExecContext(ctx, `
		insert into vaults (id, org_id, name, status, created_at)
		values ($1, $2, $3, $4, now())
		on conflict (id) do update set name = excluded.name, status = excluded.status
	`, v.ID, v.OrgID, v.Name, v.Status)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return trust.ErrNotFound
	}
	return err
}

func (s *Store) SetVaultStatus(ctx context.Context, id string, status trust.VaultStatus) error {
	return s.expectOneRow(s.db.ExecContext(ctx, `
		update vaults set status = $2 where id = $1
	`, id, status))
}

func (s *Store) PutClient(ctx context.Context, c trust.Client) error {
	_, err := s.db.ExecContext(ctx, `
		insert into clients (id, org_id, name, status, created_at)
		values ($1, $2, $3, $4, now())
		on conflict (id) do update set name = excluded.name, status = excluded.status
	`, c.ID, c.OrgID, c.Name, c.Status)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return trust.ErrNotFound
	}
	return err
}

func (s *Store) SetClientStatus(ctx context.Context, id string, status trust.ClientStatus) error {
	return s.expectOneRow(s.db.ExecContext(ctx, `
		update clients set status = $2 where id = $1
	`, id, status))
}

func (s *Store) PutCertificate(ctx context.Context, cert trust.Certificate) error {
	_, err := s.db.ExecContext(ctx, `
		insert into certificates (id, client_id, kid, public_key, status, issued_at)
		values ($1, $2, $3, $4, $5, $6)
	`, cert.ID, cert.ClientID, cert.Kid, []byte(cert.PublicKey), cert.Status, cert.IssuedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return trust.ErrConflict
	}
	return err
}

func (s *Store) RevokeCertificate(ctx context.Context, kid string) error {
	return s.expectOneRow(s.db.ExecContext(ctx, `
		update certificates set status = 'revoked', revoked_at = now() where kid = $1
	`, kid))
}

func (s *Store) expectOneRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return trust.ErrNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
