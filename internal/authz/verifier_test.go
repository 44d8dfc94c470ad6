package authz

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vaultgraph.org/internal/cache"
	"vaultgraph.org/internal/trust"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixture is a fully wired trust side for verifier tests: one active org,
// vault, client, and signing certificate.
type fixture struct {
	clock *fakeClock
	store *trust.MemoryStore
	dir   *trust.Directory
	priv  ed25519.PrivateKey
	kid   string
}

func newFixture(t *testing.T, opts ...trust.DirectoryOption) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	clock := newFakeClock()
	store := trust.NewMemoryStore()
	store.PutOrganization(trust.Organization{ID: "org-1", Status: trust.OrgActive})
	store.PutVault(trust.Vault{ID: "vault-1", OrgID: "org-1", Status: trust.VaultActive})
	store.PutClient(trust.Client{ID: "client-1", OrgID: "org-1", Status: trust.ClientActive})
	if err := store.PutCertificate(trust.Certificate{
		ID: "cert-1", ClientID: "client-1", Kid: "kid-1",
		PublicKey: pub, Status: trust.CertActive, IssuedAt: clock.Now(),
	}); err != nil {
		t.Fatalf("PutCertificate: %v", err)
	}
	dir := trust.NewDirectory(store, cache.New(cache.WithClock(clock.Now)), nil, opts...)
	return &fixture{clock: clock, store: store, dir: dir, priv: priv, kid: "kid-1"}
}

func (f *fixture) verifier(t *testing.T, opts ...VerifierOption) *Verifier {
	t.Helper()
	opts = append([]VerifierOption{WithVerifierClock(f.clock.Now)}, opts...)
	return NewVerifier(f.dir, opts...)
}

func (f *fixture) claims() *Claims {
	now := f.clock.Now()
	return &Claims{
		VaultID:   "vault-1",
		OrgID:     "org-1",
		Scope:     "check write",
		VaultRole: VaultRoleWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "vaultgraph",
			Subject:   "client:client-1",
			Audience:  jwt.ClaimStrings{"https://api.example.test"},
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        "jti-1",
		},
	}
}

func (f *fixture) mint(t *testing.T, claims *Claims) string {
	t.Helper()
	return mintWith(t, f.priv, f.kid, claims)
}

func mintWith(t *testing.T, priv ed25519.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	raw, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return raw
}

func TestVerifyValidToken(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)

	p, err := v.Verify(context.Background(), f.mint(t, f.claims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ClientID != "client-1" || p.OrgID != "org-1" || p.VaultID != "vault-1" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.Scopes.Has(ScopeCheck) || !p.Scopes.Has(ScopeWrite) {
		t.Fatalf("scopes not parsed: %+v", p.Scopes)
	}
	if !p.CanWrite() {
		t.Fatalf("write role not carried")
	}
}

func TestVerifyMissingKid(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)

	_, err := v.Verify(context.Background(), mintWith(t, f.priv, "", f.claims()))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyUnknownKid(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)

	_, err := v.Verify(context.Background(), mintWith(t, f.priv, "kid-nope", f.claims()))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestVerifyWrongKey(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	_, err = v.Verify(context.Background(), mintWith(t, otherPriv, f.kid, f.claims()))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad signature, got %v", err)
	}
}

func TestVerifyRevokedCertificate(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	raw := f.mint(t, f.claims())

	if err := f.store.RevokeCertificate(f.kid); err != nil {
		t.Fatalf("RevokeCertificate: %v", err)
	}
	f.dir.CertificateChanged(f.kid)

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after revocation, got %v", err)
	}
}

func TestVerifyRevocationStalenessBound(t *testing.T) {
	f := newFixture(t, trust.WithCertificateTTL(15*time.Minute))
	v := f.verifier(t)
	claims := f.claims()
	claims.ExpiresAt = jwt.NewNumericDate(f.clock.Now().Add(time.Hour))
	raw := f.mint(t, claims)

	// warm the cache, then revoke without firing the hook
	if _, err := v.Verify(context.Background(), raw); err != nil {
		t.Fatalf("warmup Verify: %v", err)
	}
	if err := f.store.RevokeCertificate(f.kid); err != nil {
		t.Fatalf("RevokeCertificate: %v", err)
	}

	// inside the TTL the cached active record may still win
	if _, err := v.Verify(context.Background(), raw); err != nil {
		t.Fatalf("Verify within staleness bound: %v", err)
	}

	f.clock.Advance(16 * time.Minute)
	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revocation must be enforced past the TTL, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	raw := f.mint(t, f.claims())

	f.clock.Advance(11 * time.Minute)
	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyFutureIssuedAt(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	claims := f.claims()
	claims.IssuedAt = jwt.NewNumericDate(f.clock.Now().Add(time.Minute))

	if _, err := v.Verify(context.Background(), f.mint(t, claims)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired for future iat, got %v", err)
	}
}

func TestVerifyMissingIssuedAt(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	claims := f.claims()
	claims.IssuedAt = nil

	if _, err := v.Verify(context.Background(), f.mint(t, claims)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired for missing iat, got %v", err)
	}
}

func TestVerifyInactiveClient(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	raw := f.mint(t, f.claims())

	if err := f.store.SetClientStatus("client-1", trust.ClientInactive); err != nil {
		t.Fatalf("SetClientStatus: %v", err)
	}
	f.dir.ClientChanged("client-1")

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for inactive client, got %v", err)
	}
}

func TestVerifySuspendedOrganization(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	raw := f.mint(t, f.claims())

	if err := f.store.SetOrganizationStatus("org-1", trust.OrgSuspended); err != nil {
		t.Fatalf("SetOrganizationStatus: %v", err)
	}
	f.dir.OrganizationChanged("org-1")

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for suspended org, got %v", err)
	}
}

func TestVerifyDeletedVault(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	raw := f.mint(t, f.claims())

	if err := f.store.SetVaultStatus("vault-1", trust.VaultDeleted); err != nil {
		t.Fatalf("SetVaultStatus: %v", err)
	}
	if err := f.dir.VaultDeleted(context.Background(), "vault-1"); err != nil {
		t.Fatalf("VaultDeleted: %v", err)
	}

	if _, err := v.Verify(context.Background(), raw); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted vault, got %v", err)
	}
}

func TestVerifyForeignCertificate(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)
	claims := f.claims()
	claims.Subject = "client:client-2"
	f.store.PutClient(trust.Client{ID: "client-2", OrgID: "org-1", Status: trust.ClientActive})

	if _, err := v.Verify(context.Background(), f.mint(t, claims)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for cert/subject mismatch, got %v", err)
	}
}

func TestVerifyIssuerAndAudiencePins(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t, WithIssuer("vaultgraph"), WithAudience("https://api.example.test"))

	if _, err := v.Verify(context.Background(), f.mint(t, f.claims())); err != nil {
		t.Fatalf("Verify with matching pins: %v", err)
	}

	claims := f.claims()
	claims.Issuer = "someone-else"
	if _, err := v.Verify(context.Background(), f.mint(t, claims)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for issuer mismatch, got %v", err)
	}

	claims = f.claims()
	claims.Audience = jwt.ClaimStrings{"https://other.example.test"}
	if _, err := v.Verify(context.Background(), f.mint(t, claims)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for audience mismatch, got %v", err)
	}
}

func TestVerifyDuringKeyRotation(t *testing.T) {
	f := newFixture(t)
	v := f.verifier(t)

	pub2, priv2, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if err := f.store.PutCertificate(trust.Certificate{
		ID: "cert-2", ClientID: "client-1", Kid: "kid-2",
		PublicKey: pub2, Status: trust.CertActive, IssuedAt: f.clock.Now(),
	}); err != nil {
		t.Fatalf("PutCertificate: %v", err)
	}

	// tokens under either kid verify while both certs are active
	if _, err := v.Verify(context.Background(), f.mint(t, f.claims())); err != nil {
		t.Fatalf("old kid: %v", err)
	}
	if _, err := v.Verify(context.Background(), mintWith(t, priv2, "kid-2", f.claims())); err != nil {
		t.Fatalf("new kid: %v", err)
	}

	// revoking the old one leaves the new one serving
	if err := f.store.RevokeCertificate(f.kid); err != nil {
		t.Fatalf("RevokeCertificate: %v", err)
	}
	f.dir.CertificateChanged(f.kid)
	if _, err := v.Verify(context.Background(), f.mint(t, f.claims())); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old kid after revocation: %v", err)
	}
	if _, err := v.Verify(context.Background(), mintWith(t, priv2, "kid-2", f.claims())); err != nil {
		t.Fatalf("new kid after old revocation: %v", err)
	}
}
