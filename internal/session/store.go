package session

import (
	"context"
	"time"
)

// Session is the server-side half of a login. It stores only the external
// id of the user, never a copy of the profile, so every request sees the
// current user record.
type Session struct {
	SessionID         string    `json:"session_id"`
	ExternalID        string    `json:"external_id"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`          // sliding idle expiry
	AbsoluteExpiresAt time.Time `json:"absolute_expires_at"` // hard cap, never extended
}

// Store defines how sessions are stored and retrieved.
// Implementations (e.g., Redis) must remain stateless and opaque.
type Store interface {
	Create(ctx context.Context, s Session) error

	// Get returns nil, nil when the session does not exist.
	Get(ctx context.Context, sessionID string) (*Session, error)

	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, sessionID string) error

	// DeleteByExternalID removes every session bound to the user and
	// reports how many were removed.
	DeleteByExternalID(ctx context.Context, externalID string) (int, error)
}
