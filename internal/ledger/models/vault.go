package models

import (
	"timevault/pkg/domain"
)

// CapsuleVault is the value-custody record of an active capsule. The locked
// amount itself is held as native balance at the vault's address in the
// balance ledger; this record only ties that address back to its capsule.
//
// A vault exists exactly while its capsule is live with LockedAmount > 0: it
// is created alongside the capsule and drained and deleted on unlock or
// cancel. It never survives either transition.
type CapsuleVault struct {
	Address domain.Address `json:"address"`
	Capsule domain.Address `json:"capsule"`
	Bump    uint8          `json:"bump"`
}

// Clone returns a deep copy.
func (v *CapsuleVault) Clone() *CapsuleVault {
	c := *v
	return &c
}
