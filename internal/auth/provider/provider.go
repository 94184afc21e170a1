package provider

import (
	"context"
	"net/url"

	"github.com/Housri/steam-auth-public/internal/auth"
)

// AuthRequest carries the per-attempt values the handler generated and
// stored in short-lived cookies.
type AuthRequest struct {
	State         string
	CodeChallenge string // PKCE S256 challenge; ignored by providers without PKCE
}

// Callback is the raw redirect back from the provider.
type Callback struct {
	Params       url.Values
	CodeVerifier string
}

// Provider defines the contract every external auth provider must
// implement. Implementations return identity facts only and must not
// perform user creation, linking, or session management.
type Provider interface {
	// Name returns the provider identifier used in routes (e.g. "steam").
	Name() string

	// BeginAuth returns the provider URL the browser is redirected to.
	BeginAuth(ctx context.Context, req AuthRequest) (string, error)

	// CompleteAuth verifies the callback and returns a fully populated
	// assertion, or an error wrapping auth.ErrVerificationFailed.
	CompleteAuth(ctx context.Context, cb Callback) (*auth.Assertion, error)
}
