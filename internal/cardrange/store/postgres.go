package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tessera/internal/cardrange/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// Postgres persists card number ranges in PostgreSQL. Pure I/O; overlap and
// usage rules live in the registry service, inside its transaction.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, r *models.Range) error {
	query := `
		INSERT INTO card_number_ranges (id, start_number, end_number, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(r.ID), r.Start, r.End, r.CreatedBy, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("create range: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, rangeID id.RangeID) error {
	result, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM card_number_ranges WHERE id = $1`, uuid.UUID(rangeID))
	if err != nil {
		return fmt.Errorf("delete range: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete range rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, rangeID id.RangeID) (*models.Range, error) {
	query := `
		SELECT id, start_number, end_number, created_by, created_at
		FROM card_number_ranges
		WHERE id = $1
	`
	row := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(rangeID))
	r, err := scanRange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find range: %w", err)
	}
	return r, nil
}

// ListAll returns every registered range ordered by start ascending.
func (s *Postgres) ListAll(ctx context.Context) ([]*models.Range, error) {
	query := `
		SELECT id, start_number, end_number, created_by, created_at
		FROM card_number_ranges
		ORDER BY start_number ASC
	`
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ranges: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Range
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ranges: %w", err)
	}
	return out, nil
}

type rangeRow interface {
	Scan(dest ...any) error
}

func scanRange(row rangeRow) (*models.Range, error) {
	var (
		r   models.Range
		rID uuid.UUID
	)
	if err := row.Scan(&rID, &r.Start, &r.End, &r.CreatedBy, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ID = id.RangeID(rID)
	return &r, nil
}
