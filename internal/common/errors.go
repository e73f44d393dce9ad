// Package common defines shared constants and sentinel errors used across
// the Wellspring server layers. Callers should use errors.Is to match these.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Sync errors reported per entry; the batch itself never fails on these.
	ErrUnknownEntryType = errors.New("unknown entry type")
	ErrMissingServerID  = errors.New("missing id field")
	ErrSyncConflict     = errors.New("sync conflict: pending resolution")

	// Validation errors.
	ErrorValidation    = errors.New("validation error")
	ErrorAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
