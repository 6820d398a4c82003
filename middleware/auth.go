package middleware

import (
	pk "github.com/pipelinekit/pipelinekit"
)

// Authenticator verifies the caller identity carried in a command's
// execution metadata. Concrete credential schemes (JWT, mTLS, API keys) are
// an external collaborator's concern; this package only defines the
// integration contract and the middleware wiring it into dispatch.
type Authenticator interface {
	Authenticate(ctx *pk.Context, meta pk.Metadata) error
}

// AuthenticatorFunc adapts a plain function to Authenticator.
type AuthenticatorFunc func(ctx *pk.Context, meta pk.Metadata) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx *pk.Context, meta pk.Metadata) error {
	return f(ctx, meta)
}

// AuthenticationMiddleware rejects a command when the configured
// Authenticator fails to verify its execution metadata.
type AuthenticationMiddleware[C pk.Command, R any] struct {
	auth Authenticator
}

// NewAuthenticationMiddleware wraps auth as middleware.
func NewAuthenticationMiddleware[C pk.Command, R any](auth Authenticator) *AuthenticationMiddleware[C, R] {
	return &AuthenticationMiddleware[C, R]{auth: auth}
}

// Priority implements pk.Middleware.
func (m *AuthenticationMiddleware[C, R]) Priority() int { return pk.PrioritySecurity }

// Name implements pk.Name.
func (m *AuthenticationMiddleware[C, R]) Name() string { return "authentication" }

// IsNextGuardSuppressing implements pk.NextGuardSuppressing.
func (m *AuthenticationMiddleware[C, R]) IsNextGuardSuppressing() bool { return true }

// Execute implements pk.Middleware.
func (m *AuthenticationMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	if err := m.auth.Authenticate(ctx, ctx.Metadata()); err != nil {
		return zero, pk.NewError(pk.KindAuthentication, err, "authentication")
	}
	return next(ctx, cmd)
}

// Authorizer decides whether the authenticated caller may execute cmd,
// returning the required permission and the caller's actual permission on
// denial so the DispatchError can report both. Concrete policy
// implementations (RBAC, ABAC, policy engines) are external collaborators.
type Authorizer[C pk.Command] interface {
	Authorize(ctx *pk.Context, cmd C) (required, actual string, allowed bool)
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc[C pk.Command] func(ctx *pk.Context, cmd C) (required, actual string, allowed bool)

// Authorize implements Authorizer.
func (f AuthorizerFunc[C]) Authorize(ctx *pk.Context, cmd C) (string, string, bool) {
	return f(ctx, cmd)
}

// AuthorizationMiddleware rejects a command the configured Authorizer denies.
type AuthorizationMiddleware[C pk.Command, R any] struct {
	authz Authorizer[C]
}

// NewAuthorizationMiddleware wraps authz as middleware.
func NewAuthorizationMiddleware[C pk.Command, R any](authz Authorizer[C]) *AuthorizationMiddleware[C, R] {
	return &AuthorizationMiddleware[C, R]{authz: authz}
}

// Priority implements pk.Middleware.
func (m *AuthorizationMiddleware[C, R]) Priority() int { return pk.After(pk.PrioritySecurity) }

// Name implements pk.Name.
func (m *AuthorizationMiddleware[C, R]) Name() string { return "authorization" }

// IsNextGuardSuppressing implements pk.NextGuardSuppressing.
func (m *AuthorizationMiddleware[C, R]) IsNextGuardSuppressing() bool { return true }

// Execute implements pk.Middleware.
func (m *AuthorizationMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	required, actual, allowed := m.authz.Authorize(ctx, cmd)
	if !allowed {
		return zero, pk.NewAuthorizationError(required, actual)
	}
	return next(ctx, cmd)
}
