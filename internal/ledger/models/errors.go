package models

import dErrors "timevault/pkg/domain-errors"

// Ledger error codes. Every validation failure aborts its whole operation
// with one of these; callers never see an ambiguous generic failure for the
// conditions below.
const (
	CodeUsernameTooLong    dErrors.Code = "USERNAME_TOO_LONG"
	CodeTitleTooLong       dErrors.Code = "TITLE_TOO_LONG"
	CodeMessageTooLong     dErrors.Code = "MESSAGE_TOO_LONG"
	CodeInvalidUnlockDate  dErrors.Code = "INVALID_UNLOCK_DATE"
	CodeCapsuleStillLocked dErrors.Code = "CAPSULE_STILL_LOCKED"
	CodeAlreadyUnlocked    dErrors.Code = "ALREADY_UNLOCKED"
	CodeCapsuleCancelled   dErrors.Code = "CAPSULE_CANCELLED"
	CodeInsufficientFunds  dErrors.Code = "INSUFFICIENT_FUNDS"
)
