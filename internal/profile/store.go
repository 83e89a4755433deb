// Package profile reads the user/profile facts the classifier consumes. This
// core never writes profiles; registration and profile editing live in the
// member-facing application.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// Memory is the in-memory profile source for unit tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[id.UserID]*models.Profile
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[id.UserID]*models.Profile)}
}

// Put stores or replaces a profile. Test setup helper.
func (s *Memory) Put(userID id.UserID, p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.rows[userID] = &clone
}

func (s *Memory) FindByUser(_ context.Context, userID id.UserID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[userID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

// Postgres reads profiles from the users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindByUser(ctx context.Context, userID id.UserID) (*models.Profile, error) {
	query := `
		SELECT first_name, last_name, birth_date, address, city, postal_code,
		       province, consent_terms, consent_privacy
		FROM users
		WHERE id = $1
	`
	var (
		p         models.Profile
		birthDate sql.NullTime
	)
	err := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&p.FirstName, &p.LastName, &birthDate, &p.Address, &p.City,
		&p.PostalCode, &p.Province, &p.ConsentTerms, &p.ConsentPrivacy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if birthDate.Valid {
		p.BirthDate = &birthDate.Time
	}
	return &p, nil
}
