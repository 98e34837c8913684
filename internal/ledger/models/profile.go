package models

import (
	"time"

	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
)

// MaxUsernameLen bounds the profile display name.
const MaxUsernameLen = 32

// UserProfile is the per-identity participant record.
//
// Invariants:
//   - Owner is immutable after creation
//   - Username length <= 32
//   - At most one profile per identity, enforced by the deterministic
//     address (owner-derived) colliding on a second create
type UserProfile struct {
	Address               domain.Address `json:"address"`
	Owner                 domain.Address `json:"owner"`
	Username              string         `json:"username"`
	TotalCapsulesCreated  uint32         `json:"total_capsules_created"`
	TotalCapsulesReceived uint32         `json:"total_capsules_received"`
	CreatedAt             time.Time      `json:"created_at"`
	Bump                  uint8          `json:"bump"`
}

// NewUserProfile validates inputs and builds a profile with zeroed counters.
func NewUserProfile(address domain.Address, bump uint8, owner domain.Address, username string, now time.Time) (*UserProfile, error) {
	if len(username) > MaxUsernameLen {
		return nil, dErrors.Newf(CodeUsernameTooLong, "username exceeds %d characters", MaxUsernameLen)
	}
	return &UserProfile{
		Address:   address,
		Owner:     owner,
		Username:  username,
		CreatedAt: now.UTC(),
		Bump:      bump,
	}, nil
}

// ApplyCapsuleCreated bumps the created counter.
func (p *UserProfile) ApplyCapsuleCreated() {
	p.TotalCapsulesCreated++
}

// ApplyCapsuleReceived bumps the received counter.
func (p *UserProfile) ApplyCapsuleReceived() {
	p.TotalCapsulesReceived++
}

// ApplyCapsuleForfeited decrements the received counter, saturating at zero.
// Cancel and recipient transfer both retract a pending capsule from a profile.
func (p *UserProfile) ApplyCapsuleForfeited() {
	if p.TotalCapsulesReceived > 0 {
		p.TotalCapsulesReceived--
	}
}

// Clone returns a deep copy.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	return &c
}
