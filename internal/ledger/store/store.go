// Package store defines the persistence contract of the ledger.
//
// The ledger's concurrency model is transactional, not lock-based: every
// operation declares the records it touches by reading and writing them
// inside one RunInTx callback, and the implementation guarantees the whole
// callback commits atomically or leaves no trace. Operations on the same
// record are totally ordered by commit; operations on disjoint records may
// commit in any relative order.
package store

import (
	"context"

	"timevault/internal/ledger/models"
	"timevault/pkg/domain"
)

// Tx exposes record-level access inside one atomic transaction.
//
// Create methods are the uniqueness guard of deterministic addressing: they
// fail with sentinel.ErrConflict when a record already occupies the address.
// Get methods fail with sentinel.ErrNotFound. Debit fails with
// sentinel.ErrInsufficientBalance rather than going negative.
type Tx interface {
	GetRegistry(ctx context.Context) (*models.GlobalRegistry, error)
	CreateRegistry(ctx context.Context, registry *models.GlobalRegistry) error
	SaveRegistry(ctx context.Context, registry *models.GlobalRegistry) error

	GetProfile(ctx context.Context, address domain.Address) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	SaveProfile(ctx context.Context, profile *models.UserProfile) error

	GetCapsule(ctx context.Context, address domain.Address) (*models.Capsule, error)
	CreateCapsule(ctx context.Context, capsule *models.Capsule) error
	SaveCapsule(ctx context.Context, capsule *models.Capsule) error
	DeleteCapsule(ctx context.Context, address domain.Address) error

	GetVault(ctx context.Context, address domain.Address) (*models.CapsuleVault, error)
	CreateVault(ctx context.Context, vault *models.CapsuleVault) error
	DeleteVault(ctx context.Context, address domain.Address) error

	// Balance returns the native balance at an address; absent accounts
	// hold zero.
	Balance(ctx context.Context, address domain.Address) (uint64, error)
	Credit(ctx context.Context, address domain.Address, amount uint64) error
	Debit(ctx context.Context, address domain.Address, amount uint64) error
}

// Store runs atomic transactions over the record set.
type Store interface {
	// RunInTx executes fn inside one transaction. If fn returns an error
	// the transaction rolls back and the error is returned unchanged.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
