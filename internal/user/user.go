package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateExternalID is returned by Insert when the store-level
	// unique constraint on external_id rejects the row.
	ErrDuplicateExternalID = errors.New("user with external id already exists")
)

// Avatar holds the three avatar sizes published by the provider.
type Avatar struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

// Record is the durable local identity of an externally authenticated
// user. It is built once at the store boundary and passed around as is.
type Record struct {
	LocalID     string    `json:"local_id"`
	ExternalID  string    `json:"external_id"`
	DisplayName string    `json:"display_name"`
	ProfileURL  string    `json:"profile_url"`
	Avatar      Avatar    `json:"avatar"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// Profile is the mutable part of a Record, refreshed on every login.
type Profile struct {
	DisplayName string
	ProfileURL  string
	Avatar      Avatar
}

// Store persists user records. ExternalID must be unique at the store
// level, not only in application code.
type Store interface {
	FindByExternalID(ctx context.Context, externalID string) (*Record, error)

	// Insert creates the record as given, including LocalID and both
	// timestamps, and returns the stored row.
	Insert(ctx context.Context, rec Record) (*Record, error)

	// Update overwrites the profile fields and last login time of the
	// record with the given external id and returns the stored row.
	Update(ctx context.Context, externalID string, p Profile, lastLoginAt time.Time) (*Record, error)

	Delete(ctx context.Context, externalID string) error
}
