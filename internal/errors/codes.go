// Package errors provides structured storage errors with machine-readable codes.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an error that carries no domain code.
	CodeUnknown Code = "UNKNOWN"

	// CodeUnknownTenantKind means no migration sequence is registered for a kind.
	CodeUnknownTenantKind Code = "UNKNOWN_TENANT_KIND"
	// CodeStorageUnavailable means the backing file could not be created or opened.
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	// CodeMigrationFailed means a schema upgrade was rolled back.
	CodeMigrationFailed Code = "MIGRATION_FAILED"
	// CodeDuplicateChannel means a channel id is already registered.
	CodeDuplicateChannel Code = "DUPLICATE_CHANNEL"
	// CodeInvalidRange means a time window's lower bound is not before its upper bound.
	CodeInvalidRange Code = "INVALID_RANGE"
	// CodeDataIntegrity means a stored row violates an application invariant.
	CodeDataIntegrity Code = "DATA_INTEGRITY"
)

// Sentinels for errors.Is; matching is by code only.
var (
	ErrUnknownTenantKind  = New(CodeUnknownTenantKind, "unknown tenant kind")
	ErrStorageUnavailable = New(CodeStorageUnavailable, "storage unavailable")
	ErrMigrationFailed    = New(CodeMigrationFailed, "migration failed")
	ErrDuplicateChannel   = New(CodeDuplicateChannel, "channel already registered")
	ErrInvalidRange       = New(CodeInvalidRange, "invalid time range")
	ErrDataIntegrity      = New(CodeDataIntegrity, "data integrity violation")
)
