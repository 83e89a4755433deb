// Package postgres owns the database handle and the schema the stores rely
// on.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Schema is the DDL the stores expect. The partial unique index on
// memberships(number) is the hard backstop for card number uniqueness: even
// if two transactions race past the in-memory checks, only one commit wins.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id              UUID PRIMARY KEY,
    first_name      TEXT,
    last_name       TEXT,
    birth_date      TIMESTAMPTZ,
    address         TEXT,
    city            TEXT,
    postal_code     TEXT,
    province        TEXT,
    consent_terms   BOOLEAN NOT NULL DEFAULT FALSE,
    consent_privacy BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS memberships (
    id                  UUID PRIMARY KEY,
    user_id             UUID NOT NULL,
    status              TEXT NOT NULL,
    payment_status      TEXT NOT NULL,
    payment_provider_id TEXT,
    payment_amount      BIGINT,
    number              TEXT,
    previous_number     TEXT,
    start_date          TIMESTAMPTZ,
    end_date            TIMESTAMPTZ,
    card_assigned_at    TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    updated_by          TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS memberships_number_unique
    ON memberships (number) WHERE number IS NOT NULL;

CREATE INDEX IF NOT EXISTS memberships_user_created
    ON memberships (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS card_number_ranges (
    id           UUID PRIMARY KEY,
    start_number BIGINT NOT NULL,
    end_number   BIGINT NOT NULL,
    created_by   TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL
);
`

// Open connects to Postgres and verifies the connection.
func Open(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema applies the schema. Safe to run on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
