package service

import (
	"context"

	"timevault/internal/ledger/models"
	"timevault/internal/ledger/store"
	"timevault/pkg/domain"
)

// GetRegistry returns the global registry.
func (s *Service) GetRegistry(ctx context.Context) (*models.GlobalRegistry, error) {
	var registry *models.GlobalRegistry
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		r, err := tx.GetRegistry(ctx)
		if err != nil {
			return translateStoreErr(err, "global registry not initialized")
		}
		registry = r
		return nil
	})
	return registry, err
}

// GetProfile returns the profile at the given derived address.
func (s *Service) GetProfile(ctx context.Context, address domain.Address) (*models.UserProfile, error) {
	var profile *models.UserProfile
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		p, err := tx.GetProfile(ctx, address)
		if err != nil {
			return translateStoreErr(err, "user profile")
		}
		profile = p
		return nil
	})
	return profile, err
}

// GetCapsule returns the capsule at the given derived address.
func (s *Service) GetCapsule(ctx context.Context, address domain.Address) (*models.Capsule, error) {
	var capsule *models.Capsule
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := s.loadCapsule(ctx, tx, address)
		if err != nil {
			return err
		}
		capsule = c
		return nil
	})
	return capsule, err
}

// GetBalance returns the native balance at an address; absent accounts hold
// zero.
func (s *Service) GetBalance(ctx context.Context, address domain.Address) (uint64, error) {
	var balance uint64
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		b, err := tx.Balance(ctx, address)
		if err != nil {
			return err
		}
		balance = b
		return nil
	})
	return balance, err
}
