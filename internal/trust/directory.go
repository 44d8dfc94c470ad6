package trust

import (
	"context"
	"errors"
	"time"

	"vaultgraph.org/internal/cache"
	"vaultgraph.org/internal/obs"
	"vaultgraph.org/internal/tuple"
)

// Default TTLs. Certificates favor read throughput with a long window;
// org/client/vault status changes have a wider blast radius and use a short
// one. Expiry is the sole correctness backstop; the invalidation hooks below
// are a best-effort optimization.
const (
	DefaultCertTTL   = 15 * time.Minute
	DefaultStatusTTL = time.Minute
)

const (
	kindOrganization = "organization"
	kindVault        = "vault"
	kindClient       = "client"
	kindCertificate  = "certificate"
)

// Directory serves trust lookups through the staleness-bounded cache,
// reading through to the Store on miss. It also carries the management
// mutation hooks that invalidate affected keys.
type Directory struct {
	store  Store
	cache  *cache.Cache
	tuples tuple.Store

	certTTL   time.Duration
	statusTTL time.Duration
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithCertificateTTL overrides the certificate cache TTL.
func WithCertificateTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.certTTL = ttl
		}
	}
}

// WithStatusTTL overrides the organization/client/vault status cache TTL.
func WithStatusTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.statusTTL = ttl
		}
	}
}

// NewDirectory wires the trust store, the cache, and the tuple store whose
// graphs the vault-deletion hook drops.
func NewDirectory(store Store, c *cache.Cache, tuples tuple.Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store:     store,
		cache:     c,
		tuples:    tuples,
		certTTL:   DefaultCertTTL,
		statusTTL: DefaultStatusTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// cached consults the cache and records the lookup outcome. Stale entries are
// reported but never used: expiry is the correctness backstop.
func (d *Directory) cached(key cache.Key) (any, bool) {
	v, state := d.cache.Get(key)
	obs.CacheLookup(key.Kind, state.String())
	return v, state == cache.Fresh
}

// Organization returns the organization's last-known record, at most
// statusTTL behind the store.
func (d *Directory) Organization(ctx context.Context, id string) (Organization, error) {
	key := cache.Key{Kind: kindOrganization, ID: id, Attribute: "status"}
	if v, ok := d.cached(key); ok {
		return v.(Organization), nil
	}
	org, err := d.store.Organization(ctx, id)
	if err != nil {
		return Organization{}, err
	}
	d.cache.Put(key, org, d.statusTTL)
	return org, nil
}

// Vault returns the vault's last-known record under the owning organization.
func (d *Directory) Vault(ctx context.Context, orgID, vaultID string) (Vault, error) {
	key := cache.Key{Kind: kindVault, ID: vaultID, Attribute: "status"}
	if v, ok := d.cached(key); ok {
		vault := v.(Vault)
		if vault.OrgID != orgID {
			return Vault{}, ErrNotFound
		}
		return vault, nil
	}
	vault, err := d.store.Vault(ctx, orgID, vaultID)
	if err != nil {
		return Vault{}, err
	}
	d.cache.Put(key, vault, d.statusTTL)
	return vault, nil
}

// Client returns the client's last-known record.
func (d *Directory) Client(ctx context.Context, id string) (Client, error) {
	key := cache.Key{Kind: kindClient, ID: id, Attribute: "status"}
	if v, ok := d.cached(key); ok {
		return v.(Client), nil
	}
	c, err := d.store.Client(ctx, id)
	if err != nil {
		return Client{}, err
	}
	d.cache.Put(key, c, d.statusTTL)
	return c, nil
}

// CertificateByKid returns the certificate record for a signing kid, at most
// certTTL behind the store.
func (d *Directory) CertificateByKid(ctx context.Context, kid string) (Certificate, error) {
	key := cache.Key{Kind: kindCertificate, ID: kid, Attribute: "status"}
	if v, ok := d.cached(key); ok {
		return v.(Certificate), nil
	}
	cert, err := d.store.CertificateByKid(ctx, kid)
	if err != nil {
		return Certificate{}, err
	}
	d.cache.Put(key, cert, d.certTTL)
	return cert, nil
}

// Management mutation hooks. Each drops the affected cache keys so live
// traffic converges faster than the TTL; skipping them only widens staleness
// to the TTL bound, never past it.

// OrganizationChanged invalidates the cached status for an organization.
func (d *Directory) OrganizationChanged(id string) {
	d.cache.Invalidate(cache.Key{Kind: kindOrganization, ID: id, Attribute: "status"})
}

// ClientChanged invalidates the cached status for a client.
func (d *Directory) ClientChanged(id string) {
	d.cache.Invalidate(cache.Key{Kind: kindClient, ID: id, Attribute: "status"})
}

// CertificateChanged invalidates the cached record for a signing kid. Fired
// on both issuance and revocation.
func (d *Directory) CertificateChanged(kid string) {
	d.cache.Invalidate(cache.Key{Kind: kindCertificate, ID: kid, Attribute: "status"})
}

// VaultDeleted invalidates the cached vault status and drops the vault's
// tuple graph so subsequent evaluations observe "not found".
func (d *Directory) VaultDeleted(ctx context.Context, vaultID string) error {
	d.cache.Invalidate(cache.Key{Kind: kindVault, ID: vaultID, Attribute: "status"})
	if d.tuples == nil {
		return nil
	}
	if err := d.tuples.DeleteVault(ctx, vaultID); err != nil && !errors.Is(err, tuple.ErrVaultNotFound) {
		return err
	}
	return nil
}
