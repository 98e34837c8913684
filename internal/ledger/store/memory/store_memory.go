// Package memory provides an in-memory Store for unit tests and
// database-less development. Transactions stage their writes and apply them
// only on commit, so a failed callback leaves the base state untouched.
package memory

import (
	"context"
	"sync"

	"timevault/internal/ledger/models"
	"timevault/internal/ledger/store"
	"timevault/pkg/domain"
	"timevault/pkg/platform/sentinel"
)

// Store is a mutex-serialized in-memory record set. A single lock is enough:
// the transactional contract only promises that conflicting transactions do
// not interleave, and full serialization satisfies that trivially.
type Store struct {
	mu       sync.Mutex
	registry *models.GlobalRegistry
	profiles map[domain.Address]*models.UserProfile
	capsules map[domain.Address]*models.Capsule
	vaults   map[domain.Address]*models.CapsuleVault
	balances map[domain.Address]uint64
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		profiles: make(map[domain.Address]*models.UserProfile),
		capsules: make(map[domain.Address]*models.Capsule),
		vaults:   make(map[domain.Address]*models.CapsuleVault),
		balances: make(map[domain.Address]uint64),
	}
}

// RunInTx implements store.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemTx(s)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// memTx stages writes against the base store. Reads consult the stage first,
// then the base, always returning clones so callback mutations stay private
// until commit.
type memTx struct {
	base *Store

	registry        *models.GlobalRegistry
	registryWritten bool

	profiles map[domain.Address]*models.UserProfile
	capsules map[domain.Address]*models.Capsule
	vaults   map[domain.Address]*models.CapsuleVault
	balances map[domain.Address]uint64

	capsuleDeletes map[domain.Address]bool
	vaultDeletes   map[domain.Address]bool
}

func newMemTx(base *Store) *memTx {
	return &memTx{
		base:           base,
		profiles:       make(map[domain.Address]*models.UserProfile),
		capsules:       make(map[domain.Address]*models.Capsule),
		vaults:         make(map[domain.Address]*models.CapsuleVault),
		balances:       make(map[domain.Address]uint64),
		capsuleDeletes: make(map[domain.Address]bool),
		vaultDeletes:   make(map[domain.Address]bool),
	}
}

func (t *memTx) commit() {
	if t.registryWritten {
		t.base.registry = t.registry
	}
	for addr, p := range t.profiles {
		t.base.profiles[addr] = p
	}
	for addr, c := range t.capsules {
		t.base.capsules[addr] = c
	}
	for addr := range t.capsuleDeletes {
		delete(t.base.capsules, addr)
	}
	for addr, v := range t.vaults {
		t.base.vaults[addr] = v
	}
	for addr := range t.vaultDeletes {
		delete(t.base.vaults, addr)
	}
	for addr, b := range t.balances {
		if b == 0 {
			delete(t.base.balances, addr)
			continue
		}
		t.base.balances[addr] = b
	}
}

func (t *memTx) GetRegistry(ctx context.Context) (*models.GlobalRegistry, error) {
	if t.registryWritten {
		return t.registry.Clone(), nil
	}
	if t.base.registry == nil {
		return nil, sentinel.ErrNotFound
	}
	return t.base.registry.Clone(), nil
}

func (t *memTx) CreateRegistry(ctx context.Context, registry *models.GlobalRegistry) error {
	if t.registryWritten || t.base.registry != nil {
		return sentinel.ErrConflict
	}
	t.registry = registry.Clone()
	t.registryWritten = true
	return nil
}

func (t *memTx) SaveRegistry(ctx context.Context, registry *models.GlobalRegistry) error {
	if !t.registryWritten && t.base.registry == nil {
		return sentinel.ErrNotFound
	}
	t.registry = registry.Clone()
	t.registryWritten = true
	return nil
}

func (t *memTx) GetProfile(ctx context.Context, address domain.Address) (*models.UserProfile, error) {
	if p, ok := t.profiles[address]; ok {
		return p.Clone(), nil
	}
	if p, ok := t.base.profiles[address]; ok {
		return p.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (t *memTx) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	if _, ok := t.profiles[profile.Address]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := t.base.profiles[profile.Address]; ok {
		return sentinel.ErrConflict
	}
	t.profiles[profile.Address] = profile.Clone()
	return nil
}

func (t *memTx) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	if _, err := t.GetProfile(ctx, profile.Address); err != nil {
		return err
	}
	t.profiles[profile.Address] = profile.Clone()
	return nil
}

func (t *memTx) GetCapsule(ctx context.Context, address domain.Address) (*models.Capsule, error) {
	if t.capsuleDeletes[address] {
		return nil, sentinel.ErrNotFound
	}
	if c, ok := t.capsules[address]; ok {
		return c.Clone(), nil
	}
	if c, ok := t.base.capsules[address]; ok {
		return c.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (t *memTx) CreateCapsule(ctx context.Context, capsule *models.Capsule) error {
	if _, err := t.GetCapsule(ctx, capsule.Address); err == nil {
		return sentinel.ErrConflict
	}
	delete(t.capsuleDeletes, capsule.Address)
	t.capsules[capsule.Address] = capsule.Clone()
	return nil
}

func (t *memTx) SaveCapsule(ctx context.Context, capsule *models.Capsule) error {
	if _, err := t.GetCapsule(ctx, capsule.Address); err != nil {
		return err
	}
	t.capsules[capsule.Address] = capsule.Clone()
	return nil
}

func (t *memTx) DeleteCapsule(ctx context.Context, address domain.Address) error {
	if _, err := t.GetCapsule(ctx, address); err != nil {
		return err
	}
	delete(t.capsules, address)
	t.capsuleDeletes[address] = true
	return nil
}

func (t *memTx) GetVault(ctx context.Context, address domain.Address) (*models.CapsuleVault, error) {
	if t.vaultDeletes[address] {
		return nil, sentinel.ErrNotFound
	}
	if v, ok := t.vaults[address]; ok {
		return v.Clone(), nil
	}
	if v, ok := t.base.vaults[address]; ok {
		return v.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (t *memTx) CreateVault(ctx context.Context, vault *models.CapsuleVault) error {
	if _, err := t.GetVault(ctx, vault.Address); err == nil {
		return sentinel.ErrConflict
	}
	delete(t.vaultDeletes, vault.Address)
	t.vaults[vault.Address] = vault.Clone()
	return nil
}

func (t *memTx) DeleteVault(ctx context.Context, address domain.Address) error {
	if _, err := t.GetVault(ctx, address); err != nil {
		return err
	}
	delete(t.vaults, address)
	t.vaultDeletes[address] = true
	return nil
}

func (t *memTx) Balance(ctx context.Context, address domain.Address) (uint64, error) {
	if b, ok := t.balances[address]; ok {
		return b, nil
	}
	return t.base.balances[address], nil
}

func (t *memTx) Credit(ctx context.Context, address domain.Address, amount uint64) error {
	current, _ := t.Balance(ctx, address)
	t.balances[address] = current + amount
	return nil
}

func (t *memTx) Debit(ctx context.Context, address domain.Address, amount uint64) error {
	current, _ := t.Balance(ctx, address)
	if current < amount {
		return sentinel.ErrInsufficientBalance
	}
	t.balances[address] = current - amount
	return nil
}

var _ store.Tx = (*memTx)(nil)
var _ store.Store = (*Store)(nil)
