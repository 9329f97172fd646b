// Package errors provides structured, coded error handling for the
// session synchronization core.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeVaultUnavailable Code = "VAULT_UNAVAILABLE"

	// Token errors
	CodeTokenEmptyAccess  Code = "TOKEN_EMPTY_ACCESS"
	CodeTokenEmptyUserID  Code = "TOKEN_EMPTY_USER_ID"
	CodeTokenInvalidClaim Code = "TOKEN_INVALID_CLAIM"

	// Vault errors
	CodeAccountEmptyUserID      Code = "ACCOUNT_EMPTY_USER_ID"
	CodeAccountEmptyEmail       Code = "ACCOUNT_EMPTY_EMAIL"
	CodeAccountEmptyFingerprint Code = "ACCOUNT_EMPTY_FINGERPRINT"

	// Sync errors
	CodeSlotUnavailable Code = "SLOT_UNAVAILABLE"
)
