package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
)

// Postgres persists memberships in PostgreSQL. This store is pure I/O; the
// lifecycle and allocation services own the business rules and transactions.
//
// The partial unique index on number is the last line of defense against an
// allocation race slipping past transaction isolation: a violating write
// surfaces as sentinel.ErrAlreadyUsed instead of silently overwriting.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const membershipColumns = `id, user_id, status, payment_status, payment_provider_id,
	payment_amount, number, previous_number, start_date, end_date,
	card_assigned_at, created_at, updated_at, updated_by`

func (s *Postgres) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.ID), uuid.UUID(m.UserID), m.Status, m.PaymentStatus,
		m.PaymentProviderID, m.PaymentAmount, cardNumberArg(m.Number),
		cardNumberArg(m.PreviousNumber), m.StartDate, m.EndDate,
		m.CardAssignedAt, m.CreatedAt, m.UpdatedAt, m.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("create membership: %w", translateUnique(err))
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, m *models.Membership) error {
	query := `
		UPDATE memberships
		SET status = $2, payment_status = $3, payment_provider_id = $4,
		    payment_amount = $5, number = $6, previous_number = $7,
		    start_date = $8, end_date = $9, card_assigned_at = $10,
		    updated_at = $11, updated_by = $12
		WHERE id = $1
	`
	result, err := tx.QuerierFor(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(m.ID), m.Status, m.PaymentStatus, m.PaymentProviderID,
		m.PaymentAmount, cardNumberArg(m.Number), cardNumberArg(m.PreviousNumber),
		m.StartDate, m.EndDate, m.CardAssignedAt, m.UpdatedAt, m.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update membership: %w", translateUnique(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update membership rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE id = $1`
	return s.findOne(ctx, query, uuid.UUID(membershipID))
}

func (s *Postgres) FindByNumber(ctx context.Context, number id.CardNumber) (*models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships WHERE number = $1`
	return s.findOne(ctx, query, string(number))
}

// FindLiveByUser returns the user's membership currently occupying the single
// live slot. The predicate mirrors Membership.IsLive; expired rows never block.
func (s *Postgres) FindLiveByUser(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		  AND (status = 'active'
		       OR (status <> 'expired' AND payment_status = 'pending')
		       OR (status = 'pending' AND payment_status = 'succeeded'))
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

func (s *Postgres) FindLatestByUser(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

// FindLatestNumbered returns the user's most recent membership that ever held
// a card number, live or historical. Renewal conservation reads this.
func (s *Postgres) FindLatestNumbered(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		  AND COALESCE(number, previous_number) IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

func (s *Postgres) FindPendingPaymentByUser(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		  AND payment_status = 'pending'
		  AND status NOT IN ('expired', 'canceled')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

// FindAssignableByUser returns the user's membership eligible for card
// allocation, oldest first when several qualify.
func (s *Postgres) FindAssignableByUser(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE user_id = $1
		  AND payment_status = 'succeeded'
		  AND number IS NULL
		  AND status NOT IN ('expired', 'canceled')
		ORDER BY created_at ASC
		LIMIT 1
	`
	return s.findOne(ctx, query, uuid.UUID(userID))
}

// ListAssignable returns memberships eligible for card allocation in FIFO
// order by creation time: first to pay is first served.
func (s *Postgres) ListAssignable(ctx context.Context) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE payment_status = 'succeeded'
		  AND number IS NULL
		  AND status NOT IN ('expired', 'canceled')
		ORDER BY created_at ASC, id ASC
	`
	return s.findMany(ctx, query)
}

// ListActiveExpired returns active memberships whose rolling window elapsed
// before now.
func (s *Postgres) ListActiveExpired(ctx context.Context, now time.Time) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date < $1
		ORDER BY created_at ASC, id ASC
	`
	return s.findMany(ctx, query, now)
}

// AssignedNumbers returns the numeric values of every currently held number.
func (s *Postgres) AssignedNumbers(ctx context.Context) ([]int64, error) {
	query := `SELECT (number)::bigint FROM memberships WHERE number IS NOT NULL`
	return s.scanNumbers(ctx, query)
}

// AssignedNumbersInInterval returns currently held numbers inside [start, end].
func (s *Postgres) AssignedNumbersInInterval(ctx context.Context, start, end int64) ([]int64, error) {
	query := `
		SELECT (number)::bigint
		FROM memberships
		WHERE number IS NOT NULL AND (number)::bigint BETWEEN $1 AND $2
		ORDER BY 1 ASC
	`
	return s.scanNumbers(ctx, query, start, end)
}

// CountEverAssignedInInterval counts distinct numbers inside [start, end] that
// any membership holds or ever held, including retired previous numbers.
func (s *Postgres) CountEverAssignedInInterval(ctx context.Context, start, end int64) (int, error) {
	query := `
		SELECT COUNT(DISTINCT n) FROM (
			SELECT (number)::bigint AS n FROM memberships WHERE number IS NOT NULL
			UNION ALL
			SELECT (previous_number)::bigint FROM memberships WHERE previous_number IS NOT NULL
		) used
		WHERE n BETWEEN $1 AND $2
	`
	var count int
	err := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ever assigned: %w", err)
	}
	return count, nil
}

func (s *Postgres) findOne(ctx context.Context, query string, args ...any) (*models.Membership, error) {
	row := tx.QuerierFor(ctx, s.db).QueryRowContext(ctx, query, args...)
	m, err := scanMembership(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return m, nil
}

func (s *Postgres) findMany(ctx context.Context, query string, args ...any) ([]*models.Membership, error) {
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return out, nil
}

func (s *Postgres) scanNumbers(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := tx.QuerierFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assigned numbers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []int64
	for rows.Next() {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan assigned number: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assigned numbers: %w", err)
	}
	return out, nil
}

type membershipRow interface {
	Scan(dest ...any) error
}

func scanMembership(row membershipRow) (*models.Membership, error) {
	var (
		m          models.Membership
		mID, uID   uuid.UUID
		providerID sql.NullString
		amount     sql.NullInt64
		number     sql.NullString
		prevNumber sql.NullString
		startDate  sql.NullTime
		endDate    sql.NullTime
		assignedAt sql.NullTime
	)
	if err := row.Scan(&mID, &uID, &m.Status, &m.PaymentStatus, &providerID,
		&amount, &number, &prevNumber, &startDate, &endDate, &assignedAt,
		&m.CreatedAt, &m.UpdatedAt, &m.UpdatedBy); err != nil {
		return nil, err
	}
	m.ID = id.MembershipID(mID)
	m.UserID = id.UserID(uID)
	if providerID.Valid {
		m.PaymentProviderID = &providerID.String
	}
	if amount.Valid {
		m.PaymentAmount = &amount.Int64
	}
	if number.Valid {
		n := id.CardNumber(number.String)
		m.Number = &n
	}
	if prevNumber.Valid {
		n := id.CardNumber(prevNumber.String)
		m.PreviousNumber = &n
	}
	if startDate.Valid {
		m.StartDate = &startDate.Time
	}
	if endDate.Valid {
		m.EndDate = &endDate.Time
	}
	if assignedAt.Valid {
		m.CardAssignedAt = &assignedAt.Time
	}
	return &m, nil
}

func cardNumberArg(n *id.CardNumber) any {
	if n == nil {
		return nil
	}
	return string(*n)
}

// translateUnique maps the number unique index violation to the store-level
// already-used sentinel.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrAlreadyUsed
	}
	return err
}
