package reconciler

import (
	"context"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/user"
)

// Reconciler maps a verified external identity to exactly one local user
// record. It is the ONLY place where identity-to-user mapping logic lives.
type Reconciler interface {
	Reconcile(ctx context.Context, assertion *auth.Assertion) (*Result, error)

	// Revert undoes a reconciliation whose login could not be completed.
	// Only records created by that reconciliation are removed.
	Revert(ctx context.Context, res *Result) error
}

// Result is the canonical record plus whether this call created it.
type Result struct {
	User    *user.Record
	Created bool
}
