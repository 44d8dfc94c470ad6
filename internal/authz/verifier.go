package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vaultgraph.org/internal/obs"
	"vaultgraph.org/internal/trust"
)

// Clock skew tolerated when validating issued-at.
const issuedAtSkew = 5 * time.Second

// Verifier validates bearer tokens against the trust directory. It is pure
// with respect to the tuple store: relationship data is never inspected here.
type Verifier struct {
	dir      *trust.Directory
	issuer   string
	audience string
	now      func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithIssuer pins the expected issuer claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithAudience pins the expected audience claim (the server base URL).
func WithAudience(aud string) VerifierOption {
	return func(v *Verifier) { v.audience = aud }
}

// WithVerifierClock overrides the time source (useful for tests).
func WithVerifierClock(fn func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

func NewVerifier(dir *trust.Directory, opts ...VerifierOption) *Verifier {
	v := &Verifier{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs the ordered verification steps against a raw bearer token:
// signature against the kid's certificate, expiry/issued-at sanity, client
// status, organization status, vault status. Scope presence is enforced
// per-operation by the Service. Every failure maps to exactly one taxonomy
// error; trust lookups may be served from cache within the configured TTLs.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	p, err := v.verify(ctx, raw)
	obs.TokenVerification(outcomeLabel(err))
	return p, err
}

func (v *Verifier) verify(ctx context.Context, raw string) (Principal, error) {
	var cert trust.Certificate

	keyfunc := func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header missing kid", ErrUnauthorized)
		}
		c, err := v.dir.CertificateByKid(ctx, kid)
		if err != nil {
			if errors.Is(err, trust.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown kid %s", ErrUnauthorized, kid)
			}
			return nil, storeError(err)
		}
		if c.Status != trust.CertActive {
			return nil, fmt.Errorf("%w: certificate %s revoked", ErrUnauthorized, kid)
		}
		cert = c
		return c.PublicKey, nil
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if _, err := parser.ParseWithClaims(raw, claims, keyfunc); err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnavailable):
			return Principal{}, err
		case errors.Is(err, jwt.ErrTokenExpired):
			return Principal{}, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return Principal{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}

	if err := v.sanity(claims); err != nil {
		return Principal{}, err
	}

	clientID, ok := claims.ClientID()
	if !ok {
		return Principal{}, fmt.Errorf("%w: malformed subject %q", ErrUnauthorized, claims.Subject)
	}
	if cert.ClientID != clientID {
		return Principal{}, fmt.Errorf("%w: certificate does not belong to subject", ErrUnauthorized)
	}

	client, err := v.dir.Client(ctx, clientID)
	if err != nil {
		if errors.Is(err, trust.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: unknown client", ErrForbidden)
		}
		return Principal{}, storeError(err)
	}
	if client.Status != trust.ClientActive {
		return Principal{}, fmt.Errorf("%w: client inactive", ErrForbidden)
	}
	if client.OrgID != claims.OrgID {
		return Principal{}, fmt.Errorf("%w: client org mismatch", ErrForbidden)
	}

	org, err := v.dir.Organization(ctx, claims.OrgID)
	if err != nil {
		if errors.Is(err, trust.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: unknown organization", ErrForbidden)
		}
		return Principal{}, storeError(err)
	}
	if org.Status != trust.OrgActive {
		return Principal{}, fmt.Errorf("%w: organization %s", ErrForbidden, org.Status)
	}

	vault, err := v.dir.Vault(ctx, claims.OrgID, claims.VaultID)
	if err != nil {
		if errors.Is(err, trust.ErrNotFound) {
			return Principal{}, fmt.Errorf("%w: vault", ErrNotFound)
		}
		return Principal{}, storeError(err)
	}
	if vault.Status != trust.VaultActive {
		// Deleted vaults are indistinguishable from never-existed.
		return Principal{}, fmt.Errorf("%w: vault", ErrNotFound)
	}

	return Principal{
		ClientID:  clientID,
		OrgID:     claims.OrgID,
		VaultID:   claims.VaultID,
		VaultRole: claims.VaultRole,
		Scopes:    ParseScopes(claims.Scope),
	}, nil
}

// sanity covers the claim checks the parser does not: issued-at ordering,
// and the pinned issuer/audience when configured.
func (v *Verifier) sanity(claims *Claims) error {
	if claims.IssuedAt == nil {
		return fmt.Errorf("%w: issued-at missing", ErrExpired)
	}
	now := v.now()
	if claims.IssuedAt.Time.After(now.Add(issuedAtSkew)) {
		return fmt.Errorf("%w: token issued in the future", ErrExpired)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return fmt.Errorf("%w: expiry precedes issued-at", ErrExpired)
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return fmt.Errorf("%w: unexpected issuer %q", ErrUnauthorized, claims.Issuer)
	}
	if v.audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == v.audience {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
		}
	}
	return nil
}

// storeError degrades trust store failures to a retryable Unavailable instead
// of leaking driver errors or crashing the request path.
func storeError(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "unauthorized"
	}
}
