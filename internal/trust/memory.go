package trust

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store with the mutators the management
// collaborator needs. Used when no database DSN is configured and throughout
// the test suite. Writes to a given entity are serialized by the store lock;
// readers observe either the pre- or post-mutation record, never a partial
// one.
type MemoryStore struct {
	mu            sync.RWMutex
	organizations map[string]Organization
	vaults        map[string]Vault
	clients       map[string]Client
	certsByKid    map[string]Certificate
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		organizations: make(map[string]Organization),
		vaults:        make(map[string]Vault),
		clients:       make(map[string]Client),
		certsByKid:    make(map[string]Certificate),
	}
}

func (s *MemoryStore) Organization(ctx context.Context, id string) (Organization, error) {
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.organizations[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (s *MemoryStore) Vault(ctx context.Context, orgID, vaultID string) (Vault, error) {
	if err := ctx.Err(); err != nil {
		return Vault{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[vaultID]
	if !ok || v.OrgID != orgID {
		return Vault{}, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Client(ctx context.Context, id string) (Client, error) {
	if err := ctx.Err(); err != nil {
		return Client{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) CertificateByKid(ctx context.Context, kid string) (Certificate, error) {
	if err := ctx.Err(); err != nil {
		return Certificate{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certsByKid[kid]
	if !ok {
		return Certificate{}, ErrNotFound
	}
	return cert, nil
}

// PutOrganization inserts or replaces an organization record.
func (s *MemoryStore) PutOrganization(org Organization) {
	s.mu.Lock()
	s.organizations[org.ID] = org
	s.mu.Unlock()
}

// SetOrganizationStatus updates the status of an existing organization.
func (s *MemoryStore) SetOrganizationStatus(id string, status OrgStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.organizations[id]
	if !ok {
		return ErrNotFound
	}
	org.Status = status
	s.organizations[id] = org
	return nil
}

// PutVault inserts or replaces a vault record.
func (s *MemoryStore) PutVault(v Vault) {
	s.mu.Lock()
	s.vaults[v.ID] = v
	s.mu.Unlock()
}

// SetVaultStatus updates the status of an existing vault.
func (s *MemoryStore) SetVaultStatus(id string, status VaultStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	s.vaults[id] = v
	return nil
}

// PutClient inserts or replaces a client record.
func (s *MemoryStore) PutClient(c Client) {
	s.mu.Lock()
	s.clients[c.ID] = c
	s.mu.Unlock()
}

// SetClientStatus updates the status of an existing client.
func (s *MemoryStore) SetClientStatus(id string, status ClientStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	s.clients[id] = c
	return nil
}

// PutCertificate inserts a certificate record. At most one certificate may
// exist per kid.
func (s *MemoryStore) PutCertificate(cert Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.certsByKid[cert.Kid]; ok && existing.ID != cert.ID {
		return fmt.Errorf("%w: kid %s", ErrConflict, cert.Kid)
	}
	s.certsByKid[cert.Kid] = cert
	return nil
}

// RevokeCertificate marks the certificate for kid as revoked.
func (s *MemoryStore) RevokeCertificate(kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cert, ok := s.certsByKid[kid]
	if !ok {
		return ErrNotFound
	}
	cert.Status = CertRevoked
	s.certsByKid[kid] = cert
	return nil
}
