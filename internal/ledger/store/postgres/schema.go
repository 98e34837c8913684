package postgres

// Amounts and counters are stored as BIGINT; the service's native unit keeps
// realistic values far below the signed 64-bit ceiling.
const schema = `
CREATE TABLE IF NOT EXISTS registry (
	address            BYTEA PRIMARY KEY,
	admin              BYTEA NOT NULL,
	fee_wallet         BYTEA NOT NULL,
	total_capsules     BIGINT NOT NULL DEFAULT 0,
	total_unlocked     BIGINT NOT NULL DEFAULT 0,
	total_value_locked BIGINT NOT NULL DEFAULT 0,
	platform_fee_bps   SMALLINT NOT NULL CHECK (platform_fee_bps BETWEEN 0 AND 10000),
	bump               SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	address           BYTEA PRIMARY KEY,
	owner             BYTEA NOT NULL UNIQUE,
	username          TEXT NOT NULL CHECK (char_length(username) <= 32),
	capsules_created  BIGINT NOT NULL DEFAULT 0,
	capsules_received BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL,
	bump              SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS capsules (
	address       BYTEA PRIMARY KEY,
	creator       BYTEA NOT NULL,
	recipient     BYTEA NOT NULL,
	capsule_id    BIGINT NOT NULL,
	title         TEXT NOT NULL,
	message       TEXT NOT NULL,
	locked_amount BIGINT NOT NULL CHECK (locked_amount >= 0),
	created_at    TIMESTAMPTZ NOT NULL,
	unlock_at     TIMESTAMPTZ NOT NULL,
	unlocked_at   TIMESTAMPTZ,
	is_cancelled  BOOLEAN NOT NULL DEFAULT FALSE,
	is_public     BOOLEAN NOT NULL DEFAULT FALSE,
	capsule_type  SMALLINT NOT NULL,
	bump          SMALLINT NOT NULL,
	UNIQUE (creator, capsule_id)
);

CREATE TABLE IF NOT EXISTS vaults (
	address BYTEA PRIMARY KEY,
	capsule BYTEA NOT NULL UNIQUE,
	bump    SMALLINT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
	address BYTEA PRIMARY KEY,
	balance BIGINT NOT NULL CHECK (balance >= 0)
);
`
