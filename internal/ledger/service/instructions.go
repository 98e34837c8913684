package service

import (
	"context"
	"errors"
	"time"

	"timevault/internal/ledger/addr"
	"timevault/internal/ledger/events"
	"timevault/internal/ledger/models"
	"timevault/internal/ledger/store"
	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/platform/sentinel"
	"timevault/pkg/requestcontext"
)

// InitializeGlobalState creates the singleton registry. The signer becomes
// the immutable admin. Fails with a conflict when the registry already
// occupies its derived address.
func (s *Service) InitializeGlobalState(ctx context.Context, feeWallet domain.Address, platformFeeBps uint16) (*models.GlobalRegistry, error) {
	ctx, span := s.span(ctx, "ledger.InitializeGlobalState")
	defer span.End()

	admin, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	if platformFeeBps > models.MaxFeeBps {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "platform fee must be at most %d bps", models.MaxFeeBps)
	}
	if feeWallet.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "fee wallet is required")
	}

	address, bump := addr.GlobalState()
	registry := &models.GlobalRegistry{
		Address:        address,
		Admin:          admin,
		FeeWallet:      feeWallet,
		PlatformFeeBps: platformFeeBps,
		Bump:           bump,
	}

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateRegistry(ctx, registry); err != nil {
			return translateStoreErr(err, "global registry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// InitializeUserProfile creates the signer's profile at its owner-derived
// address. One profile per identity; a second create collides.
func (s *Service) InitializeUserProfile(ctx context.Context, username string) (*models.UserProfile, error) {
	ctx, span := s.span(ctx, "ledger.InitializeUserProfile")
	defer span.End()

	owner, err := signer(ctx)
	if err != nil {
		return nil, err
	}

	address, bump := addr.UserProfile(owner)
	profile, err := models.NewUserProfile(address, bump, owner, username, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProfile(ctx, profile); err != nil {
			return translateStoreErr(err, "user profile")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.New(events.TypeProfileCreated, domain.Address{}, owner, 0, profile.CreatedAt))
	return profile, nil
}

// CreateCapsuleParams carries the caller-chosen capsule fields.
type CreateCapsuleParams struct {
	CapsuleID    uint64
	Recipient    domain.Address
	Title        string
	Message      string
	UnlockAt     time.Time
	LockedAmount uint64
	Public       bool
	Type         models.CapsuleType
}

// CreateTimeCapsule creates a capsule and, when value is locked, its vault.
// Atomically: the capsule record, the vault with the deposit moved out of the
// creator's spendable balance, both profile counters, and the registry
// totals. Creator and recipient must both hold profiles.
func (s *Service) CreateTimeCapsule(ctx context.Context, params CreateCapsuleParams) (*models.Capsule, error) {
	ctx, span := s.span(ctx, "ledger.CreateTimeCapsule")
	defer span.End()

	creator, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	if params.Recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "recipient is required")
	}

	now := requestcontext.Now(ctx)
	capsuleAddr, capsuleBump := addr.TimeCapsule(creator, params.CapsuleID)
	capsule, err := models.NewCapsule(capsuleAddr, capsuleBump, creator, params.Recipient,
		params.CapsuleID, params.Title, params.Message, params.LockedAmount,
		params.UnlockAt, params.Public, params.Type, now)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		creatorProfileAddr, _ := addr.UserProfile(creator)
		creatorProfile, err := tx.GetProfile(ctx, creatorProfileAddr)
		if err != nil {
			return translateStoreErr(err, "creator profile not initialized")
		}
		recipientProfileAddr, _ := addr.UserProfile(params.Recipient)
		recipientProfile, err := tx.GetProfile(ctx, recipientProfileAddr)
		if err != nil {
			return translateStoreErr(err, "recipient profile not initialized")
		}
		registry, err := tx.GetRegistry(ctx)
		if err != nil {
			return translateStoreErr(err, "global registry not initialized")
		}

		if err := tx.CreateCapsule(ctx, capsule); err != nil {
			return translateStoreErr(err, "capsule")
		}

		if params.LockedAmount > 0 {
			vaultAddr, vaultBump := addr.CapsuleVault(capsuleAddr)
			if err := tx.CreateVault(ctx, &models.CapsuleVault{
				Address: vaultAddr,
				Capsule: capsuleAddr,
				Bump:    vaultBump,
			}); err != nil {
				return translateStoreErr(err, "capsule vault")
			}
			if err := tx.Debit(ctx, creator, params.LockedAmount); err != nil {
				if errors.Is(err, sentinel.ErrInsufficientBalance) {
					return dErrors.New(models.CodeInsufficientFunds, "insufficient funds to lock")
				}
				return err
			}
			if err := tx.Credit(ctx, vaultAddr, params.LockedAmount); err != nil {
				return err
			}
		}

		creatorProfile.ApplyCapsuleCreated()
		if err := tx.SaveProfile(ctx, creatorProfile); err != nil {
			return err
		}
		recipientProfile.ApplyCapsuleReceived()
		if err := tx.SaveProfile(ctx, recipientProfile); err != nil {
			return err
		}

		registry.TotalCapsules++
		registry.TotalValueLocked += params.LockedAmount
		return tx.SaveRegistry(ctx, registry)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CapsulesCreated.Inc()
		s.metrics.ValueLocked.Add(float64(params.LockedAmount))
	}
	s.emit(ctx, events.New(events.TypeCapsuleCreated, capsuleAddr, creator, params.LockedAmount, now))
	return capsule, nil
}

// UnlockTimeCapsule releases a capsule to its recipient at or after its
// unlock time. The platform fee goes to the registry's fee wallet, the
// remainder to the recipient, and the vault is drained and deleted. A
// value-less capsule only gets its unlock timestamp set.
func (s *Service) UnlockTimeCapsule(ctx context.Context, capsuleAddr domain.Address) (*models.Capsule, error) {
	ctx, span := s.span(ctx, "ledger.UnlockTimeCapsule")
	defer span.End()

	caller, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var capsule *models.Capsule
	var fee uint64
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := s.loadCapsule(ctx, tx, capsuleAddr)
		if err != nil {
			return err
		}
		if err := assertSigner(c.Recipient, caller); err != nil {
			return err
		}
		if err := c.CanUnlock(now); err != nil {
			return err
		}

		registry, err := tx.GetRegistry(ctx)
		if err != nil {
			return translateStoreErr(err, "global registry not initialized")
		}

		if c.LockedAmount > 0 {
			fee = registry.Fee(c.LockedAmount)
			if err := s.drainVault(ctx, tx, c, fee, registry.FeeWallet, c.Recipient); err != nil {
				return err
			}
		}

		c.ApplyUnlock(now)
		if err := tx.SaveCapsule(ctx, c); err != nil {
			return err
		}

		registry.TotalUnlocked++
		if err := tx.SaveRegistry(ctx, registry); err != nil {
			return err
		}
		capsule = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CapsulesUnlocked.Inc()
		s.metrics.FeesCollected.Add(float64(fee))
	}
	s.emit(ctx, events.New(events.TypeCapsuleUnlocked, capsuleAddr, caller, capsule.LockedAmount, now))
	return capsule, nil
}

// CancelTimeCapsule returns the full vault balance to the creator and marks
// the capsule cancelled. The capsule record survives so history stays
// queryable; the cumulative locked-volume counter is deliberately untouched.
func (s *Service) CancelTimeCapsule(ctx context.Context, capsuleAddr domain.Address) (*models.Capsule, error) {
	ctx, span := s.span(ctx, "ledger.CancelTimeCapsule")
	defer span.End()

	caller, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	var capsule *models.Capsule
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := s.loadCapsule(ctx, tx, capsuleAddr)
		if err != nil {
			return err
		}
		if err := assertSigner(c.Creator, caller); err != nil {
			return err
		}
		if err := c.CanCancel(); err != nil {
			return err
		}

		if c.LockedAmount > 0 {
			if err := s.drainVault(ctx, tx, c, 0, domain.Address{}, c.Creator); err != nil {
				return err
			}
		}

		c.ApplyCancel()
		if err := tx.SaveCapsule(ctx, c); err != nil {
			return err
		}

		recipientProfileAddr, _ := addr.UserProfile(c.Recipient)
		recipientProfile, err := tx.GetProfile(ctx, recipientProfileAddr)
		if err != nil {
			return translateStoreErr(err, "recipient profile")
		}
		recipientProfile.ApplyCapsuleForfeited()
		if err := tx.SaveProfile(ctx, recipientProfile); err != nil {
			return err
		}
		capsule = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CapsulesCancelled.Inc()
	}
	s.emit(ctx, events.New(events.TypeCapsuleCancelled, capsuleAddr, caller, capsule.LockedAmount, now))
	return capsule, nil
}

// DeleteTimeCapsule reclaims a terminal capsule's record. Deletion is refused
// while a vault still holds balance for the capsule, which would strand funds.
func (s *Service) DeleteTimeCapsule(ctx context.Context, capsuleAddr domain.Address) error {
	ctx, span := s.span(ctx, "ledger.DeleteTimeCapsule")
	defer span.End()

	caller, err := signer(ctx)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := s.loadCapsule(ctx, tx, capsuleAddr)
		if err != nil {
			return err
		}
		if err := assertSigner(c.Creator, caller); err != nil {
			return err
		}
		if err := c.CanDelete(); err != nil {
			return err
		}

		vaultAddr, _ := addr.CapsuleVault(capsuleAddr)
		if _, err := tx.GetVault(ctx, vaultAddr); err == nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "capsule vault still exists")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		return tx.DeleteCapsule(ctx, capsuleAddr)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CapsulesDeleted.Inc()
	}
	s.emit(ctx, events.New(events.TypeCapsuleDeleted, capsuleAddr, caller, 0, now))
	return nil
}

// TransferCapsuleRecipient reroutes a live capsule to a new recipient, moving
// one pending-capsule count from the old recipient's profile to the new one.
// The system-wide received count is conserved.
func (s *Service) TransferCapsuleRecipient(ctx context.Context, capsuleAddr, newRecipient domain.Address) (*models.Capsule, error) {
	ctx, span := s.span(ctx, "ledger.TransferCapsuleRecipient")
	defer span.End()

	caller, err := signer(ctx)
	if err != nil {
		return nil, err
	}
	if newRecipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "new recipient is required")
	}
	now := requestcontext.Now(ctx)

	var capsule *models.Capsule
	err = s.store.RunInTx(ctx, func(tx store.Tx) error {
		c, err := s.loadCapsule(ctx, tx, capsuleAddr)
		if err != nil {
			return err
		}
		if err := assertSigner(c.Creator, caller); err != nil {
			return err
		}
		if err := c.CanTransferRecipient(); err != nil {
			return err
		}
		if c.Recipient == newRecipient {
			return dErrors.New(dErrors.CodeBadRequest, "new recipient matches current recipient")
		}

		oldProfileAddr, _ := addr.UserProfile(c.Recipient)
		oldProfile, err := tx.GetProfile(ctx, oldProfileAddr)
		if err != nil {
			return translateStoreErr(err, "current recipient profile")
		}
		newProfileAddr, _ := addr.UserProfile(newRecipient)
		newProfile, err := tx.GetProfile(ctx, newProfileAddr)
		if err != nil {
			return translateStoreErr(err, "new recipient profile not initialized")
		}

		oldProfile.ApplyCapsuleForfeited()
		if err := tx.SaveProfile(ctx, oldProfile); err != nil {
			return err
		}
		newProfile.ApplyCapsuleReceived()
		if err := tx.SaveProfile(ctx, newProfile); err != nil {
			return err
		}

		c.ApplyTransferRecipient(newRecipient)
		if err := tx.SaveCapsule(ctx, c); err != nil {
			return err
		}
		capsule = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.New(events.TypeRecipientTransferred, capsuleAddr, caller, 0, now))
	return capsule, nil
}

// Deposit credits spendable balance to an account. Only the registry admin
// may fund accounts; external funding rails are a platform concern.
func (s *Service) Deposit(ctx context.Context, to domain.Address, amount uint64) error {
	ctx, span := s.span(ctx, "ledger.Deposit")
	defer span.End()

	caller, err := signer(ctx)
	if err != nil {
		return err
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}

	return s.store.RunInTx(ctx, func(tx store.Tx) error {
		registry, err := tx.GetRegistry(ctx)
		if err != nil {
			return translateStoreErr(err, "global registry not initialized")
		}
		if err := assertSigner(registry.Admin, caller); err != nil {
			return err
		}
		return tx.Credit(ctx, to, amount)
	})
}

// loadCapsule fetches a capsule and proves the claimed address by re-deriving
// it from the record's embedded creator and capsule ID. A mismatch means the
// record was written outside the derivation contract and must not be trusted.
func (s *Service) loadCapsule(ctx context.Context, tx store.Tx, capsuleAddr domain.Address) (*models.Capsule, error) {
	c, err := tx.GetCapsule(ctx, capsuleAddr)
	if err != nil {
		return nil, translateStoreErr(err, "capsule")
	}
	if derived, bump := addr.TimeCapsule(c.Creator, c.CapsuleID); derived != capsuleAddr || bump != c.Bump {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "capsule address does not match derivation")
	}
	return c, nil
}

// drainVault moves the capsule's full locked amount out of its vault: fee to
// the fee wallet, the remainder to the residual receiver, then deletes the
// vault record. fee + remainder always equals the locked amount exactly.
func (s *Service) drainVault(ctx context.Context, tx store.Tx, c *models.Capsule, fee uint64, feeWallet, receiver domain.Address) error {
	vaultAddr, _ := addr.CapsuleVault(c.Address)
	if _, err := tx.GetVault(ctx, vaultAddr); err != nil {
		return translateStoreErr(err, "capsule vault")
	}
	if err := tx.Debit(ctx, vaultAddr, c.LockedAmount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "vault balance below locked amount")
	}
	if fee > 0 {
		if err := tx.Credit(ctx, feeWallet, fee); err != nil {
			return err
		}
	}
	if err := tx.Credit(ctx, receiver, c.LockedAmount-fee); err != nil {
		return err
	}
	return tx.DeleteVault(ctx, vaultAddr)
}
