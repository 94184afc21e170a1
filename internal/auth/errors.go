package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrVerificationFailed means the provider rejected the assertion, the
	// callback was malformed, or the provider round-trip failed.
	ErrVerificationFailed = errors.New("auth: verification failed")

	// ErrStoreUnavailable means the verified identity could not be
	// persisted. The login must not proceed.
	ErrStoreUnavailable = errors.New("auth: user store unavailable")

	// ErrUnauthenticated is the resolved state "no valid session".
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrSessionCorrupted is a present but unparseable or tampered token.
	// It is treated exactly like ErrUnauthenticated.
	ErrSessionCorrupted = fmt.Errorf("%w: session token corrupted", ErrUnauthenticated)
)
