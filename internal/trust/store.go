package trust

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("trust: not found")
	ErrConflict = errors.New("trust: already exists")
)

// Store is the durable record of organizations, vaults, clients and
// certificates. The authorization core only reads it; all mutation flows
// through the external management interface, which is expected to fire the
// Directory invalidation hooks afterwards.
type Store interface {
	Organization(ctx context.Context, id string) (Organization, error)
	Vault(ctx context.Context, orgID, vaultID string) (Vault, error)
	Client(ctx context.Context, id string) (Client, error)
	CertificateByKid(ctx context.Context, kid string) (Certificate, error)
}
