// Package auth provides the authorization primitive that proves a caller
// controls an address. The ledger calls Authorizer.RequireAuth before any
// mutating operation and aborts when it fails.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/greenscore/types"
)

// ErrNoPrincipal is returned when the context carries no authenticated principal.
var ErrNoPrincipal = errors.New("auth: no authenticated principal")

// Authorizer checks that the current caller controls addr.
type Authorizer interface {
	RequireAuth(ctx context.Context, addr types.Address) error
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(ctx context.Context, addr types.Address) error

// RequireAuth implements Authorizer.
func (f AuthorizerFunc) RequireAuth(ctx context.Context, addr types.Address) error {
	return f(ctx, addr)
}

type principalKey struct{}

// WithPrincipal returns a context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, addr types.Address) context.Context {
	return context.WithValue(ctx, principalKey{}, addr)
}

// PrincipalFrom returns the authenticated caller stored in ctx.
func PrincipalFrom(ctx context.Context) (types.Address, bool) {
	addr, ok := ctx.Value(principalKey{}).(types.Address)
	return addr, ok && !addr.IsZero()
}

// ContextAuthorizer accepts a call when the principal placed in the
// context by an authenticating transport (see JWTVerifier) equals the
// claimed address.
type ContextAuthorizer struct{}

// RequireAuth implements Authorizer.
func (ContextAuthorizer) RequireAuth(ctx context.Context, addr types.Address) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrNoPrincipal
	}
	if addr.IsZero() || principal != addr {
		return fmt.Errorf("auth: principal %q does not control %q", principal, addr)
	}
	return nil
}
