package trust

import (
	"crypto/ed25519"
	"time"
)

// OrgStatus is the lifecycle state of an organization.
type OrgStatus string

const (
	OrgActive    OrgStatus = "active"
	OrgSuspended OrgStatus = "suspended"
	OrgDeleted   OrgStatus = "deleted"
)

// VaultStatus is the lifecycle state of a vault.
type VaultStatus string

const (
	VaultActive  VaultStatus = "active"
	VaultDeleted VaultStatus = "deleted"
)

// ClientStatus is the lifecycle state of an API client.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

// CertStatus is the lifecycle state of a signing certificate. There is no
// implicit expiry tied to rotation, only explicit revocation.
type CertStatus string

const (
	CertActive  CertStatus = "active"
	CertRevoked CertStatus = "revoked"
)

// Organization owns vaults and clients. Suspension and deletion are
// authoritative immediately in the store; cached reads may lag by at most the
// configured TTL.
type Organization struct {
	ID        string
	Name      string
	Status    OrgStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Vault is a tenant-isolated relationship graph owned by one organization.
type Vault struct {
	ID        string
	OrgID     string
	Name      string
	Status    VaultStatus
	CreatedAt time.Time
}

// Client is an API identity owned by one organization. A client may hold
// several certificates at once to support rotation grace periods.
type Client struct {
	ID        string
	OrgID     string
	Name      string
	Status    ClientStatus
	CreatedAt time.Time
}

// Certificate is an Ed25519 signing key record. At most one certificate
// exists per kid.
type Certificate struct {
	ID        string
	ClientID  string
	Kid       string
	PublicKey ed25519.PublicKey
	Status    CertStatus
	IssuedAt  time.Time
	RevokedAt *time.Time
}
