package models

import (
	"timevault/pkg/domain"
)

// GlobalRegistry is the process-wide singleton record.
//
// Invariants:
//   - Exactly one instance ever exists; the constant derivation tag is the
//     uniqueness guard (creating a second one collides at the same address)
//   - Admin and FeeWallet never change after initialization
//   - PlatformFeeBps is in [0, 10000] and is set once at init
//   - TotalCapsules and TotalUnlocked are monotonic
//   - TotalValueLocked is cumulative-ever-locked volume: incremented on
//     create, never decremented on unlock or cancel. It is not an outstanding
//     balance gauge.
//
// Counters are mutated only inside the same transaction as their triggering
// event, so they never observe a capsule mid-transition.
type GlobalRegistry struct {
	Address          domain.Address `json:"address"`
	Admin            domain.Address `json:"admin"`
	FeeWallet        domain.Address `json:"fee_wallet"`
	TotalCapsules    uint64         `json:"total_capsules"`
	TotalUnlocked    uint64         `json:"total_unlocked"`
	TotalValueLocked uint64         `json:"total_value_locked"`
	PlatformFeeBps   uint16         `json:"platform_fee_bps"`
	Bump             uint8          `json:"bump"`
}

// MaxFeeBps is the upper bound of the platform fee (100%).
const MaxFeeBps = 10000

// Fee returns floor(amount * PlatformFeeBps / 10000).
//
// Split into quotient and remainder so the intermediate product never
// overflows 64 bits: amount = q*10000 + r, so
// floor(amount*bps/10000) = q*bps + floor(r*bps/10000) exactly.
// Floor division only; rounding up could disburse more than was locked.
func (g *GlobalRegistry) Fee(amount uint64) uint64 {
	bps := uint64(g.PlatformFeeBps)
	return (amount/MaxFeeBps)*bps + (amount%MaxFeeBps)*bps/MaxFeeBps
}

// Clone returns a deep copy.
func (g *GlobalRegistry) Clone() *GlobalRegistry {
	c := *g
	return &c
}
