// Package common defines shared constants and sentinel errors used across
// the offline engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnknownCollection  = errors.New("unknown collection")
	ErrUnknownIndex       = errors.New("unknown index")
	ErrNotFound           = errors.New("not found")

	// Encryption errors.
	ErrEncryptionUnsupported = errors.New("encryption unsupported")

	// Connectivity errors. Probe failures are connectivity state, never
	// user-facing errors.
	ErrProbeFailed = errors.New("probe failed")

	// Remote-write classification.
	ErrRemoteWriteFailed = errors.New("remote write failed")
	ErrDuplicateEffect   = errors.New("duplicate effect")
	ErrPermissionDenied  = errors.New("permission denied")

	// Sync-pass flow control. A record whose parent still carries a
	// temporary identifier is deferred, not failed.
	ErrReferenceUnresolved = errors.New("reference unresolved")

	// Capture-path errors.
	ErrOfflineQueueFailed = errors.New("cannot queue offline write")
	ErrValidation         = errors.New("validation error")
)
