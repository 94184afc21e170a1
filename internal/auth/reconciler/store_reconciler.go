package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Housri/steam-auth-public/internal/auth"
	"github.com/Housri/steam-auth-public/internal/logger"
	"github.com/Housri/steam-auth-public/internal/metrics"
	"github.com/Housri/steam-auth-public/internal/user"
)

// StoreReconciler reconciles identities against a user.Store. The store's
// unique constraint on external_id is the only synchronization between
// concurrent logins; no in-process locks are taken.
type StoreReconciler struct {
	users   user.Store
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

type Option func(*StoreReconciler)

// WithClock overrides the time source used for created_at/last_login_at.
func WithClock(now func() time.Time) Option {
	return func(r *StoreReconciler) { r.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *StoreReconciler) { r.metrics = m }
}

func NewStoreReconciler(users user.Store, opts ...Option) *StoreReconciler {
	r := &StoreReconciler{
		users: users,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StoreReconciler) Reconcile(
	ctx context.Context,
	assertion *auth.Assertion,
) (*Result, error) {

	if assertion == nil || strings.TrimSpace(assertion.ExternalID) == "" {
		r.metrics.Reconcile("error")
		return nil, fmt.Errorf("%w: assertion has no external id", auth.ErrStoreUnavailable)
	}

	// stored timestamps have millisecond precision
	now := r.now().UTC().Truncate(time.Millisecond)
	profile := profileOf(assertion)

	// 1. Look up by external id
	existing, err := r.users.FindByExternalID(ctx, assertion.ExternalID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return nil, r.storeFailure("find", assertion, err)
	}

	// 2. First login: insert, guarded by the unique constraint
	if existing == nil {
		created, err := r.users.Insert(ctx, user.Record{
			LocalID:     r.newID(),
			ExternalID:  assertion.ExternalID,
			DisplayName: profile.DisplayName,
			ProfileURL:  profile.ProfileURL,
			Avatar:      profile.Avatar,
			CreatedAt:   now,
			LastLoginAt: now,
		})
		if err == nil {
			r.metrics.Reconcile("created")
			logger.Info("user created", map[string]any{
				"provider":    assertion.Provider,
				"external_id": created.ExternalID,
				"local_id":    created.LocalID,
			})
			return &Result{User: created, Created: true}, nil
		}
		if !errors.Is(err, user.ErrDuplicateExternalID) {
			return nil, r.storeFailure("insert", assertion, err)
		}

		// A concurrent login created the row first; continue as an update
		// of the winner's record.
		r.metrics.Reconcile("race")
		logger.Warn("lost user creation race", map[string]any{
			"external_id": assertion.ExternalID,
		})

		existing, err = r.users.FindByExternalID(ctx, assertion.ExternalID)
		if err != nil {
			return nil, r.storeFailure("find after race", assertion, err)
		}
	}

	// 3. Existing user: refresh profile and advance last login.
	lastLogin := now
	if !lastLogin.After(existing.LastLoginAt) {
		lastLogin = existing.LastLoginAt.Add(time.Millisecond)
	}

	updated, err := r.users.Update(ctx, assertion.ExternalID, profile, lastLogin)
	if err != nil {
		return nil, r.storeFailure("update", assertion, err)
	}

	r.metrics.Reconcile("updated")
	logger.Info("user updated", map[string]any{
		"provider":    assertion.Provider,
		"external_id": updated.ExternalID,
		"local_id":    updated.LocalID,
	})

	return &Result{User: updated}, nil
}

func (r *StoreReconciler) Revert(ctx context.Context, res *Result) error {
	if res == nil || !res.Created || res.User == nil {
		return nil
	}

	err := r.users.Delete(ctx, res.User.ExternalID)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("%w: revert user %s: %w", auth.ErrStoreUnavailable, res.User.ExternalID, err)
	}

	logger.Warn("reverted user creation", map[string]any{
		"external_id": res.User.ExternalID,
	})
	return nil
}

func (r *StoreReconciler) storeFailure(op string, a *auth.Assertion, err error) error {
	r.metrics.Reconcile("error")
	logger.Error("reconcile failed", map[string]any{
		"op":          op,
		"external_id": a.ExternalID,
		"error":       err.Error(),
	})
	return fmt.Errorf("%w: %s: %w", auth.ErrStoreUnavailable, op, err)
}

func profileOf(a *auth.Assertion) user.Profile {
	return user.Profile{
		DisplayName: a.DisplayName,
		ProfileURL:  a.ProfileURL,
		Avatar: user.Avatar{
			Small:  a.AvatarSmall,
			Medium: a.AvatarMedium,
			Large:  a.AvatarLarge,
		},
	}
}

var _ Reconciler = (*StoreReconciler)(nil)
