package authz

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const clientSubjectPrefix = "client:"

// Vault roles carried in tokens. Write implies read.
const (
	VaultRoleRead  = "read"
	VaultRoleWrite = "write"
)

// Claims is the bearer token payload. A token is self-contained proof of
// identity; its trustworthiness depends entirely on current trust store state
// at verification time.
type Claims struct {
	VaultID   string `json:"vault_id"`
	OrgID     string `json:"org_id"`
	Scope     string `json:"scope"`
	VaultRole string `json:"vault_role"`
	jwt.RegisteredClaims
}

// ClientID extracts the client id from the "client:<id>" subject.
func (c *Claims) ClientID() (string, bool) {
	if !strings.HasPrefix(c.Subject, clientSubjectPrefix) {
		return "", false
	}
	id := c.Subject[len(clientSubjectPrefix):]
	return id, id != ""
}

// Principal is a verified caller identity bound to one vault.
type Principal struct {
	ClientID  string
	OrgID     string
	VaultID   string
	VaultRole string
	Scopes    ScopeSet
}

// CanWrite reports whether the vault role permits relationship mutation.
func (p Principal) CanWrite() bool {
	return p.VaultRole == VaultRoleWrite
}

type ctxKey string

const principalKey ctxKey = "authz_principal"

// ContextWithPrincipal stores the verified principal in the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the verified principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
