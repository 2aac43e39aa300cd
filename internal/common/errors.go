// Package common defines shared constants and sentinel errors used across
// the sync engine, codec and repository layers. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Key-resolution errors. ErrKeyNotFound means the requested rotation
	// is unknown to the vault; the caller may refresh vault metadata and
	// retry once.
	ErrKeyNotFound = errors.New("vault key not found for rotation")

	// Codec errors. Both are fatal for the revision being processed and
	// must never be downgraded to warnings.
	ErrSignatureVerification     = errors.New("signature verification failed")
	ErrUnsupportedContentVersion = errors.New("unsupported content format version")

	// Remote-reported errors.
	ErrRevisionConflict  = errors.New("revision conflict")
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// Item state machine errors.
	ErrAlreadyTrashed = errors.New("item is already trashed")

	// Auth errors surfaced by the remote client.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
