// Package postgres persists the ledger in PostgreSQL via the pgx driver.
// Transactions run serializable so the store, not the service, provides the
// concurrency control between conflicting operations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"timevault/internal/ledger/models"
	"timevault/internal/ledger/store"
	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
	"timevault/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// Store implements store.Store on a PostgreSQL database.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// RunInTx implements store.Store. The transaction is serializable and bounded
// by a default timeout when the caller's context carries no deadline.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetRegistry(ctx context.Context) (*models.GlobalRegistry, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT address, admin, fee_wallet, total_capsules, total_unlocked,
		       total_value_locked, platform_fee_bps, bump
		FROM registry`)

	var g models.GlobalRegistry
	var address, admin, feeWallet []byte
	var totalCapsules, totalUnlocked, totalValueLocked int64
	var feeBps, bump int16
	err := row.Scan(&address, &admin, &feeWallet, &totalCapsules, &totalUnlocked,
		&totalValueLocked, &feeBps, &bump)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}

	if g.Address, err = domain.AddressFromBytes(address); err != nil {
		return nil, err
	}
	if g.Admin, err = domain.AddressFromBytes(admin); err != nil {
		return nil, err
	}
	if g.FeeWallet, err = domain.AddressFromBytes(feeWallet); err != nil {
		return nil, err
	}
	g.TotalCapsules = uint64(totalCapsules)
	g.TotalUnlocked = uint64(totalUnlocked)
	g.TotalValueLocked = uint64(totalValueLocked)
	g.PlatformFeeBps = uint16(feeBps)
	g.Bump = uint8(bump)
	return &g, nil
}

func (t *pgTx) CreateRegistry(ctx context.Context, g *models.GlobalRegistry) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO registry (address, admin, fee_wallet, total_capsules,
		                      total_unlocked, total_value_locked, platform_fee_bps, bump)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO NOTHING`,
		g.Address.Bytes(), g.Admin.Bytes(), g.FeeWallet.Bytes(),
		int64(g.TotalCapsules), int64(g.TotalUnlocked), int64(g.TotalValueLocked),
		int16(g.PlatformFeeBps), int16(g.Bump))
	if err != nil {
		return fmt.Errorf("insert registry: %w", err)
	}
	return requireInserted(res, sentinel.ErrConflict)
}

func (t *pgTx) SaveRegistry(ctx context.Context, g *models.GlobalRegistry) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE registry
		SET total_capsules = $2, total_unlocked = $3, total_value_locked = $4
		WHERE address = $1`,
		g.Address.Bytes(), int64(g.TotalCapsules), int64(g.TotalUnlocked),
		int64(g.TotalValueLocked))
	if err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	return requireUpdated(res)
}

func (t *pgTx) GetProfile(ctx context.Context, address domain.Address) (*models.UserProfile, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT address, owner, username, capsules_created, capsules_received,
		       created_at, bump
		FROM profiles WHERE address = $1`, address.Bytes())

	var p models.UserProfile
	var addr, owner []byte
	var created, received int64
	var bump int16
	err := row.Scan(&addr, &owner, &p.Username, &created, &received, &p.CreatedAt, &bump)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile: %w", err)
	}

	if p.Address, err = domain.AddressFromBytes(addr); err != nil {
		return nil, err
	}
	if p.Owner, err = domain.AddressFromBytes(owner); err != nil {
		return nil, err
	}
	p.TotalCapsulesCreated = uint32(created)
	p.TotalCapsulesReceived = uint32(received)
	p.CreatedAt = p.CreatedAt.UTC()
	p.Bump = uint8(bump)
	return &p, nil
}

func (t *pgTx) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO profiles (address, owner, username, capsules_created,
		                      capsules_received, created_at, bump)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO NOTHING`,
		p.Address.Bytes(), p.Owner.Bytes(), p.Username,
		int64(p.TotalCapsulesCreated), int64(p.TotalCapsulesReceived),
		p.CreatedAt, int16(p.Bump))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return requireInserted(res, sentinel.ErrConflict)
}

func (t *pgTx) SaveProfile(ctx context.Context, p *models.UserProfile) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE profiles
		SET username = $2, capsules_created = $3, capsules_received = $4
		WHERE address = $1`,
		p.Address.Bytes(), p.Username, int64(p.TotalCapsulesCreated),
		int64(p.TotalCapsulesReceived))
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireUpdated(res)
}

func (t *pgTx) GetCapsule(ctx context.Context, address domain.Address) (*models.Capsule, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT address, creator, recipient, capsule_id, title, message,
		       locked_amount, created_at, unlock_at, unlocked_at,
		       is_cancelled, is_public, capsule_type, bump
		FROM capsules WHERE address = $1`, address.Bytes())

	var c models.Capsule
	var addr, creator, recipient []byte
	var capsuleID, lockedAmount int64
	var unlockedAt sql.NullTime
	var capsuleType, bump int16
	err := row.Scan(&addr, &creator, &recipient, &capsuleID, &c.Title, &c.Message,
		&lockedAmount, &c.CreatedAt, &c.UnlockAt, &unlockedAt,
		&c.Cancelled, &c.Public, &capsuleType, &bump)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query capsule: %w", err)
	}

	if c.Address, err = domain.AddressFromBytes(addr); err != nil {
		return nil, err
	}
	if c.Creator, err = domain.AddressFromBytes(creator); err != nil {
		return nil, err
	}
	if c.Recipient, err = domain.AddressFromBytes(recipient); err != nil {
		return nil, err
	}
	c.CapsuleID = uint64(capsuleID)
	c.LockedAmount = uint64(lockedAmount)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UnlockAt = c.UnlockAt.UTC()
	if unlockedAt.Valid {
		ts := unlockedAt.Time.UTC()
		c.UnlockedAt = &ts
	}
	c.Type = models.CapsuleType(capsuleType)
	c.Bump = uint8(bump)
	return &c, nil
}

func (t *pgTx) CreateCapsule(ctx context.Context, c *models.Capsule) error {
	var unlockedAt sql.NullTime
	if c.UnlockedAt != nil {
		unlockedAt = sql.NullTime{Time: *c.UnlockedAt, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO capsules (address, creator, recipient, capsule_id, title,
		                      message, locked_amount, created_at, unlock_at,
		                      unlocked_at, is_cancelled, is_public, capsule_type, bump)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (address) DO NOTHING`,
		c.Address.Bytes(), c.Creator.Bytes(), c.Recipient.Bytes(),
		int64(c.CapsuleID), c.Title, c.Message, int64(c.LockedAmount),
		c.CreatedAt, c.UnlockAt, unlockedAt, c.Cancelled, c.Public,
		int16(c.Type), int16(c.Bump))
	if err != nil {
		return fmt.Errorf("insert capsule: %w", err)
	}
	return requireInserted(res, sentinel.ErrConflict)
}

func (t *pgTx) SaveCapsule(ctx context.Context, c *models.Capsule) error {
	var unlockedAt sql.NullTime
	if c.UnlockedAt != nil {
		unlockedAt = sql.NullTime{Time: *c.UnlockedAt, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE capsules
		SET recipient = $2, unlocked_at = $3, is_cancelled = $4
		WHERE address = $1`,
		c.Address.Bytes(), c.Recipient.Bytes(), unlockedAt, c.Cancelled)
	if err != nil {
		return fmt.Errorf("update capsule: %w", err)
	}
	return requireUpdated(res)
}

func (t *pgTx) DeleteCapsule(ctx context.Context, address domain.Address) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM capsules WHERE address = $1`, address.Bytes())
	if err != nil {
		return fmt.Errorf("delete capsule: %w", err)
	}
	return requireUpdated(res)
}

func (t *pgTx) GetVault(ctx context.Context, address domain.Address) (*models.CapsuleVault, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT address, capsule, bump FROM vaults WHERE address = $1`, address.Bytes())

	var v models.CapsuleVault
	var addr, capsule []byte
	var bump int16
	err := row.Scan(&addr, &capsule, &bump)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query vault: %w", err)
	}

	if v.Address, err = domain.AddressFromBytes(addr); err != nil {
		return nil, err
	}
	if v.Capsule, err = domain.AddressFromBytes(capsule); err != nil {
		return nil, err
	}
	v.Bump = uint8(bump)
	return &v, nil
}

func (t *pgTx) CreateVault(ctx context.Context, v *models.CapsuleVault) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO vaults (address, capsule, bump)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO NOTHING`,
		v.Address.Bytes(), v.Capsule.Bytes(), int16(v.Bump))
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	return requireInserted(res, sentinel.ErrConflict)
}

func (t *pgTx) DeleteVault(ctx context.Context, address domain.Address) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM vaults WHERE address = $1`, address.Bytes())
	if err != nil {
		return fmt.Errorf("delete vault: %w", err)
	}
	return requireUpdated(res)
}

func (t *pgTx) Balance(ctx context.Context, address domain.Address) (uint64, error) {
	var balance int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE address = $1`, address.Bytes()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return uint64(balance), nil
}

func (t *pgTx) Credit(ctx context.Context, address domain.Address, amount uint64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET balance = balances.balance + EXCLUDED.balance`,
		address.Bytes(), int64(amount))
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

func (t *pgTx) Debit(ctx context.Context, address domain.Address, amount uint64) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE balances SET balance = balance - $2
		WHERE address = $1 AND balance >= $2`,
		address.Bytes(), int64(amount))
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrInsufficientBalance
	}
	return nil
}

func requireInserted(res sql.Result, conflict error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return conflict
	}
	return nil
}

func requireUpdated(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

var _ store.Tx = (*pgTx)(nil)
var _ store.Store = (*Store)(nil)
