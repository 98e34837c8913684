package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"timevault/internal/ledger/addr"
	"timevault/internal/ledger/events"
	"timevault/internal/ledger/models"
	"timevault/internal/ledger/service"
	"timevault/internal/ledger/store/memory"
	"timevault/mocks"
	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/requestcontext"
)

func identity(b byte) domain.Address {
	var a domain.Address
	for i := range a {
		a[i] = b
	}
	return a
}

var (
	admin     = identity(0xa0)
	feeWallet = identity(0xfe)
	alice     = identity(0x01)
	bob       = identity(0x02)
	carol     = identity(0x03)

	genesis = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

type ServiceSuite struct {
	suite.Suite

	store   *memory.Store
	svc     *service.Service
	sink    *events.MemoryPublisher
	now     time.Time
	baseCtx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = memory.New()
	s.sink = events.NewMemoryPublisher()
	s.svc = service.New(s.store, service.WithPublisher(s.sink))
	s.now = genesis
	s.baseCtx = context.Background()
}

// as returns a context authenticated as the given identity at the suite's
// current ledger time.
func (s *ServiceSuite) as(who domain.Address) context.Context {
	ctx := requestcontext.WithSigner(s.baseCtx, who)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ServiceSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *ServiceSuite) initRegistry(bps uint16) *models.GlobalRegistry {
	registry, err := s.svc.InitializeGlobalState(s.as(admin), feeWallet, bps)
	s.Require().NoError(err)
	return registry
}

func (s *ServiceSuite) initProfile(who domain.Address, username string) *models.UserProfile {
	profile, err := s.svc.InitializeUserProfile(s.as(who), username)
	s.Require().NoError(err)
	return profile
}

func (s *ServiceSuite) fund(who domain.Address, amount uint64) {
	s.Require().NoError(s.svc.Deposit(s.as(admin), who, amount))
}

func (s *ServiceSuite) createCapsule(creator domain.Address, params service.CreateCapsuleParams) *models.Capsule {
	capsule, err := s.svc.CreateTimeCapsule(s.as(creator), params)
	s.Require().NoError(err)
	return capsule
}

func (s *ServiceSuite) balance(who domain.Address) uint64 {
	b, err := s.svc.GetBalance(s.baseCtx, who)
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) profile(who domain.Address) *models.UserProfile {
	profileAddr, _ := addr.UserProfile(who)
	p, err := s.svc.GetProfile(s.baseCtx, profileAddr)
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) registry() *models.GlobalRegistry {
	r, err := s.svc.GetRegistry(s.baseCtx)
	s.Require().NoError(err)
	return r
}

// setupLedger initializes the registry at 50 bps and profiles for alice and
// bob, funding alice.
func (s *ServiceSuite) setupLedger(aliceFunds uint64) {
	s.initRegistry(50)
	s.initProfile(alice, "alice")
	s.initProfile(bob, "bob")
	if aliceFunds > 0 {
		s.fund(alice, aliceFunds)
	}
}

func (s *ServiceSuite) lockedCapsule(capsuleID, amount uint64) *models.Capsule {
	return s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID:    capsuleID,
		Recipient:    bob,
		Title:        "for bob",
		Message:      "see you on the other side",
		UnlockAt:     s.now.Add(30 * 24 * time.Hour),
		LockedAmount: amount,
		Type:         models.CapsuleTypeGift,
	})
}

func (s *ServiceSuite) TestInitializeGlobalState() {
	registry := s.initRegistry(250)

	expectedAddr, expectedBump := addr.GlobalState()
	s.Equal(expectedAddr, registry.Address)
	s.Equal(expectedBump, registry.Bump)
	s.Equal(admin, registry.Admin)
	s.Equal(feeWallet, registry.FeeWallet)
	s.Equal(uint16(250), registry.PlatformFeeBps)
	s.Zero(registry.TotalCapsules)

	_, err := s.svc.InitializeGlobalState(s.as(bob), feeWallet, 250)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The second attempt did not replace the admin.
	s.Equal(admin, s.registry().Admin)
}

func (s *ServiceSuite) TestInitializeGlobalStateRejectsExcessiveFee() {
	_, err := s.svc.InitializeGlobalState(s.as(admin), feeWallet, models.MaxFeeBps+1)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestInitializeUserProfile() {
	profile := s.initProfile(alice, "alice")

	expectedAddr, _ := addr.UserProfile(alice)
	s.Equal(expectedAddr, profile.Address)
	s.Equal(alice, profile.Owner)

	_, err := s.svc.InitializeUserProfile(s.as(alice), "alice-again")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateRequiresProfilesAndRegistry() {
	s.initRegistry(50)
	s.initProfile(alice, "alice")

	_, err := s.svc.CreateTimeCapsule(s.as(alice), service.CreateCapsuleParams{
		CapsuleID: 1,
		Recipient: bob,
		UnlockAt:  s.now.Add(time.Hour),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "recipient has no profile")
}

func (s *ServiceSuite) TestCreateWithInsufficientFunds() {
	s.setupLedger(100)

	_, err := s.svc.CreateTimeCapsule(s.as(alice), service.CreateCapsuleParams{
		CapsuleID:    1,
		Recipient:    bob,
		UnlockAt:     s.now.Add(time.Hour),
		LockedAmount: 101,
	})
	s.True(dErrors.HasCode(err, models.CodeInsufficientFunds))

	// The failed create left nothing behind.
	s.Equal(uint64(100), s.balance(alice))
	s.Zero(s.registry().TotalCapsules)
	s.Zero(s.profile(alice).TotalCapsulesCreated)
}

func (s *ServiceSuite) TestCreateMovesDepositIntoVault() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 600_000)

	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Equal(uint64(400_000), s.balance(alice))
	s.Equal(uint64(600_000), s.balance(vaultAddr))

	s.Equal(uint32(1), s.profile(alice).TotalCapsulesCreated)
	s.Equal(uint32(1), s.profile(bob).TotalCapsulesReceived)

	registry := s.registry()
	s.Equal(uint64(1), registry.TotalCapsules)
	s.Equal(uint64(600_000), registry.TotalValueLocked)
}

func (s *ServiceSuite) TestCreateContentOnlyCapsule() {
	s.setupLedger(0)
	capsule := s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 7,
		Recipient: bob,
		Title:     "just words",
		UnlockAt:  s.now.Add(time.Hour),
	})

	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Zero(s.balance(vaultAddr))
	s.Equal(uint64(1), s.registry().TotalCapsules)

	// No vault means the time gate alone applies.
	s.advance(2 * time.Hour)
	unlocked, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.Require().NoError(err)
	s.NotNil(unlocked.UnlockedAt)
	s.Zero(s.balance(bob))
}

func (s *ServiceSuite) TestCreateDuplicateCapsuleID() {
	s.setupLedger(0)
	s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour),
	})

	_, err := s.svc.CreateTimeCapsule(s.as(alice), service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// Full lifecycle with exact fee arithmetic: 100_000_000 locked at 50 bps pays
// 500_000 to the fee wallet and 99_500_000 to the recipient.
func (s *ServiceSuite) TestUnlockPaysRecipientMinusFee() {
	s.setupLedger(100_000_000)
	capsule := s.lockedCapsule(1, 100_000_000)

	s.advance(31 * 24 * time.Hour)
	unlocked, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.Require().NoError(err)

	s.Equal(uint64(99_500_000), s.balance(bob))
	s.Equal(uint64(500_000), s.balance(feeWallet))
	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Zero(s.balance(vaultAddr))

	s.Require().NotNil(unlocked.UnlockedAt)
	s.Equal(s.now, *unlocked.UnlockedAt)
	s.Equal(uint64(1), s.registry().TotalUnlocked)

	// Cumulative locked volume is untouched by the unlock.
	s.Equal(uint64(100_000_000), s.registry().TotalValueLocked)
}

func (s *ServiceSuite) TestUnlockBeforeTimeFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	s.advance(time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, models.CodeCapsuleStillLocked))

	// Nothing moved.
	s.Zero(s.balance(bob))
	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Equal(uint64(1_000_000), s.balance(vaultAddr))
	s.Zero(s.registry().TotalUnlocked)
}

func (s *ServiceSuite) TestUnlockExactlyAtUnlockTime() {
	s.setupLedger(1_000_000)
	capsule := s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour), LockedAmount: 1_000_000,
	})

	s.advance(time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.NoError(err)
}

func (s *ServiceSuite) TestUnlockTwiceFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	s.advance(31 * 24 * time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.Require().NoError(err)

	bobBalance := s.balance(bob)
	_, err = s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, models.CodeAlreadyUnlocked))
	s.Equal(bobBalance, s.balance(bob), "second unlock must not pay again")
}

func (s *ServiceSuite) TestUnlockByNonRecipientFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	s.advance(31 * 24 * time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(alice), capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.UnlockTimeCapsule(s.baseCtx, capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "no signer at all")
}

func (s *ServiceSuite) TestCancelRefundsCreatorWithoutFee() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)
	s.Equal(uint64(0), s.balance(alice))

	cancelled, err := s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.Require().NoError(err)

	s.True(cancelled.Cancelled)
	s.Equal(uint64(1_000_000), s.balance(alice), "refund is fee-free")
	s.Zero(s.balance(feeWallet))
	s.Zero(s.balance(bob))

	// The vault is drained and gone.
	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Zero(s.balance(vaultAddr))

	// The pending capsule is retracted from the recipient.
	s.Zero(s.profile(bob).TotalCapsulesReceived)
	s.Equal(uint32(1), s.profile(alice).TotalCapsulesCreated)
}

func (s *ServiceSuite) TestCancelByNonCreatorLeavesStateUnchanged() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	_, err := s.svc.CancelTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	got, err := s.svc.GetCapsule(s.baseCtx, capsule.Address)
	s.Require().NoError(err)
	s.False(got.Cancelled)
	vaultAddr, _ := addr.CapsuleVault(capsule.Address)
	s.Equal(uint64(1_000_000), s.balance(vaultAddr))
}

func (s *ServiceSuite) TestUnlockAfterCancelFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	_, err := s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.Require().NoError(err)

	s.advance(31 * 24 * time.Hour)
	_, err = s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, models.CodeCapsuleCancelled))
}

func (s *ServiceSuite) TestCancelAfterUnlockFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	s.advance(31 * 24 * time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.Require().NoError(err)

	_, err = s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.True(dErrors.HasCode(err, models.CodeAlreadyUnlocked))
}

func (s *ServiceSuite) TestDeleteRequiresTerminalState() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)

	err := s.svc.DeleteTimeCapsule(s.as(alice), capsule.Address)
	s.True(dErrors.HasCode(err, models.CodeCapsuleStillLocked))

	_, err = s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.DeleteTimeCapsule(s.as(alice), capsule.Address))

	_, err = s.svc.GetCapsule(s.baseCtx, capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteByNonCreatorFails() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)
	_, err := s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.Require().NoError(err)

	err = s.svc.DeleteTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestTransferRecipientMovesPendingCount() {
	s.setupLedger(1_000_000)
	s.initProfile(carol, "carol")
	capsule := s.lockedCapsule(1, 1_000_000)

	transferred, err := s.svc.TransferCapsuleRecipient(s.as(alice), capsule.Address, carol)
	s.Require().NoError(err)
	s.Equal(carol, transferred.Recipient)

	s.Zero(s.profile(bob).TotalCapsulesReceived)
	s.Equal(uint32(1), s.profile(carol).TotalCapsulesReceived)

	// The new recipient can unlock once the time gate opens.
	s.advance(31 * 24 * time.Hour)
	_, err = s.svc.UnlockTimeCapsule(s.as(carol), capsule.Address)
	s.Require().NoError(err)
	s.Equal(uint64(999_500), s.balance(carol))

	_, err = s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestTransferToSameRecipientFails() {
	s.setupLedger(0)
	capsule := s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour),
	})

	_, err := s.svc.TransferCapsuleRecipient(s.as(alice), capsule.Address, bob)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal(uint32(1), s.profile(bob).TotalCapsulesReceived)
}

func (s *ServiceSuite) TestTransferRequiresNewRecipientProfile() {
	s.setupLedger(0)
	capsule := s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour),
	})

	_, err := s.svc.TransferCapsuleRecipient(s.as(alice), capsule.Address, carol)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(uint32(1), s.profile(bob).TotalCapsulesReceived, "failed transfer rolls back")
}

func (s *ServiceSuite) TestTransferTerminalCapsuleFails() {
	s.setupLedger(0)
	s.initProfile(carol, "carol")
	capsule := s.createCapsule(alice, service.CreateCapsuleParams{
		CapsuleID: 1, Recipient: bob, UnlockAt: s.now.Add(time.Hour),
	})
	_, err := s.svc.CancelTimeCapsule(s.as(alice), capsule.Address)
	s.Require().NoError(err)

	_, err = s.svc.TransferCapsuleRecipient(s.as(alice), capsule.Address, carol)
	s.True(dErrors.HasCode(err, models.CodeCapsuleCancelled))
}

// Value conservation across the whole lifecycle: every unit that entered the
// system is accounted for across spendable balances and the fee wallet.
func (s *ServiceSuite) TestValueConservation() {
	s.setupLedger(10_000_000)
	c1 := s.lockedCapsule(1, 4_000_000)
	c2 := s.lockedCapsule(2, 3_000_000)

	s.advance(31 * 24 * time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), c1.Address)
	s.Require().NoError(err)
	_, err = s.svc.CancelTimeCapsule(s.as(alice), c2.Address)
	s.Require().NoError(err)

	total := s.balance(alice) + s.balance(bob) + s.balance(feeWallet)
	s.Equal(uint64(10_000_000), total)

	// Cumulative locked volume reflects both creates even after the refund.
	s.Equal(uint64(7_000_000), s.registry().TotalValueLocked)
}

func (s *ServiceSuite) TestDepositRequiresAdmin() {
	s.initRegistry(50)

	err := s.svc.Deposit(s.as(alice), alice, 100)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	err = s.svc.Deposit(s.as(admin), alice, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestLifecycleEventsPublished() {
	s.setupLedger(1_000_000)
	capsule := s.lockedCapsule(1, 1_000_000)
	s.advance(31 * 24 * time.Hour)
	_, err := s.svc.UnlockTimeCapsule(s.as(bob), capsule.Address)
	s.Require().NoError(err)

	var types []events.Type
	for _, e := range s.sink.Events() {
		types = append(types, e.Type)
	}
	s.Equal([]events.Type{
		events.TypeProfileCreated,
		events.TypeProfileCreated,
		events.TypeCapsuleCreated,
		events.TypeCapsuleUnlocked,
	}, types)
}

// A publisher failure is logged and swallowed; the state transition still
// lands.
func TestPublisherFailureDoesNotFailOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(context.DeadlineExceeded)

	svc := service.New(memory.New(), service.WithPublisher(publisher))
	ctx := requestcontext.WithSigner(context.Background(), alice)

	profile, err := svc.InitializeUserProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("profile create failed: %v", err)
	}
	if profile.Owner != alice {
		t.Fatalf("unexpected owner %v", profile.Owner)
	}
}
