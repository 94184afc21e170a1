package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Housri/steam-auth-public/internal/logger"
	"github.com/Housri/steam-auth-public/internal/user"
)

// SessionRevoker drops every session bound to an external id.
type SessionRevoker interface {
	InvalidateUser(ctx context.Context, externalID string) (int, error)
}

// Service exposes operator actions on local users.
type Service struct {
	users    user.Store
	sessions SessionRevoker
}

func NewService(users user.Store, sessions SessionRevoker) *Service {
	return &Service{users: users, sessions: sessions}
}

func (s *Service) GetUser(ctx context.Context, externalID string) (*user.Record, error) {
	rec, err := s.users.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", externalID, err)
	}
	return rec, nil
}

// DeleteUser removes the record first, then revokes sessions. Sessions that
// survive a failed revoke still stop resolving once the record is gone.
func (s *Service) DeleteUser(ctx context.Context, externalID string) (revoked int, err error) {
	if err := s.users.Delete(ctx, externalID); err != nil {
		return 0, fmt.Errorf("delete user %s: %w", externalID, err)
	}

	logger.Info("user deleted", map[string]any{
		"external_id": externalID,
	})

	if s.sessions == nil {
		return 0, nil
	}

	revoked, err = s.sessions.InvalidateUser(ctx, externalID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for %s: %w", externalID, err)
	}
	return revoked, nil
}

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, user.ErrNotFound)
}
