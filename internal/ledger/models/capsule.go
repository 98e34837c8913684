package models

import (
	"fmt"
	"time"

	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
)

// Field bounds for capsule content.
const (
	MaxTitleLen   = 64
	MaxMessageLen = 280
)

// CapsuleType is a descriptive tag carried for presentation purposes. It does
// not influence the state machine.
type CapsuleType uint8

const (
	CapsuleTypePersonal CapsuleType = iota
	CapsuleTypeGift
	CapsuleTypeCollective
	CapsuleTypeLegacy
)

var capsuleTypeNames = map[CapsuleType]string{
	CapsuleTypePersonal:   "personal",
	CapsuleTypeGift:       "gift",
	CapsuleTypeCollective: "collective",
	CapsuleTypeLegacy:     "legacy",
}

func (t CapsuleType) String() string {
	if name, ok := capsuleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("capsule-type(%d)", uint8(t))
}

// ParseCapsuleType maps the wire name to a CapsuleType.
func ParseCapsuleType(s string) (CapsuleType, error) {
	for t, name := range capsuleTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, dErrors.Newf(dErrors.CodeBadRequest, "unknown capsule type %q", s)
}

// MarshalText renders the type by name in JSON payloads.
func (t CapsuleType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CapsuleType) UnmarshalText(text []byte) error {
	parsed, err := ParseCapsuleType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Capsule is the central escrow record.
//
// Invariants:
//   - Creator, CapsuleID, and CreatedAt are immutable after creation
//   - UnlockAt is strictly after CreatedAt
//   - UnlockedAt is set exactly once, and only at or after UnlockAt
//   - Cancelled and UnlockedAt are mutually exclusive terminal states; a
//     capsule reaches at most one of them
//   - Recipient changes only while the capsule is live (neither terminal)
//   - LockedAmount may be zero; content-only capsules still time-gate
//
// Public is a visibility hint only. Access control is by identity, never by
// this flag.
type Capsule struct {
	Address      domain.Address `json:"address"`
	Creator      domain.Address `json:"creator"`
	Recipient    domain.Address `json:"recipient"`
	CapsuleID    uint64         `json:"capsule_id"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	LockedAmount uint64         `json:"locked_amount"`
	CreatedAt    time.Time      `json:"created_at"`
	UnlockAt     time.Time      `json:"unlock_at"`
	UnlockedAt   *time.Time     `json:"unlocked_at,omitempty"`
	Cancelled    bool           `json:"is_cancelled"`
	Public       bool           `json:"is_public"`
	Type         CapsuleType    `json:"capsule_type"`
	Bump         uint8          `json:"bump"`
}

// NewCapsule validates content bounds and the unlock date, then builds a live
// capsule.
func NewCapsule(address domain.Address, bump uint8, creator, recipient domain.Address, capsuleID uint64, title, message string, lockedAmount uint64, unlockAt time.Time, public bool, capsuleType CapsuleType, now time.Time) (*Capsule, error) {
	if len(title) > MaxTitleLen {
		return nil, dErrors.Newf(CodeTitleTooLong, "title exceeds %d characters", MaxTitleLen)
	}
	if len(message) > MaxMessageLen {
		return nil, dErrors.Newf(CodeMessageTooLong, "message exceeds %d characters", MaxMessageLen)
	}
	if !unlockAt.After(now) {
		return nil, dErrors.New(CodeInvalidUnlockDate, "unlock time must be in the future")
	}
	return &Capsule{
		Address:      address,
		Creator:      creator,
		Recipient:    recipient,
		CapsuleID:    capsuleID,
		Title:        title,
		Message:      message,
		LockedAmount: lockedAmount,
		CreatedAt:    now.UTC(),
		UnlockAt:     unlockAt.UTC(),
		Public:       public,
		Type:         capsuleType,
		Bump:         bump,
	}, nil
}

// IsUnlocked reports whether the capsule has been unlocked.
func (c *Capsule) IsUnlocked() bool {
	return c.UnlockedAt != nil
}

// IsTerminal reports whether the capsule reached a terminal state.
func (c *Capsule) IsTerminal() bool {
	return c.Cancelled || c.IsUnlocked()
}

// CanUnlock checks the unlock preconditions at the given ledger time.
// Cancellation is checked first so a cancelled capsule always reports
// CAPSULE_CANCELLED regardless of the clock.
func (c *Capsule) CanUnlock(now time.Time) error {
	if c.Cancelled {
		return dErrors.New(CodeCapsuleCancelled, "capsule is cancelled")
	}
	if c.IsUnlocked() {
		return dErrors.New(CodeAlreadyUnlocked, "capsule is already unlocked")
	}
	if now.Before(c.UnlockAt) {
		return dErrors.New(CodeCapsuleStillLocked, "capsule is still locked")
	}
	return nil
}

// ApplyUnlock marks the capsule unlocked. Call CanUnlock first.
func (c *Capsule) ApplyUnlock(now time.Time) {
	t := now.UTC()
	c.UnlockedAt = &t
}

// CanCancel checks the cancel preconditions.
func (c *Capsule) CanCancel() error {
	if c.IsUnlocked() {
		return dErrors.New(CodeAlreadyUnlocked, "capsule is already unlocked")
	}
	if c.Cancelled {
		return dErrors.New(CodeCapsuleCancelled, "capsule is cancelled")
	}
	return nil
}

// ApplyCancel marks the capsule cancelled. Call CanCancel first.
func (c *Capsule) ApplyCancel() {
	c.Cancelled = true
}

// CanTransferRecipient checks that the capsule is still live. Rerouting a
// terminal capsule is meaningless, so both terminal states are rejected.
func (c *Capsule) CanTransferRecipient() error {
	return c.CanCancel()
}

// ApplyTransferRecipient reroutes the capsule. Call CanTransferRecipient first.
func (c *Capsule) ApplyTransferRecipient(newRecipient domain.Address) {
	c.Recipient = newRecipient
}

// CanDelete checks that the capsule is terminal. Deleting a live capsule
// would orphan its vault and strand the locked funds.
func (c *Capsule) CanDelete() error {
	if !c.IsTerminal() {
		return dErrors.New(CodeCapsuleStillLocked, "capsule is still locked")
	}
	return nil
}

// Clone returns a deep copy.
func (c *Capsule) Clone() *Capsule {
	clone := *c
	if c.UnlockedAt != nil {
		t := *c.UnlockedAt
		clone.UnlockedAt = &t
	}
	return &clone
}
