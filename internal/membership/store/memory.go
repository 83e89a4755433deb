package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
)

// Memory is the in-memory membership store backing unit tests and local
// development. It hands out clones so callers cannot mutate shared state
// outside a service transaction.
type Memory struct {
	mu   sync.RWMutex
	rows map[id.MembershipID]*models.Membership
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[id.MembershipID]*models.Membership)}
}

func (s *Memory) Create(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[m.ID]; exists {
		return sentinel.ErrConflict
	}
	if m.Number != nil {
		for _, row := range s.rows {
			if row.Number != nil && *row.Number == *m.Number {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	s.rows[m.ID] = m.Clone()
	return nil
}

func (s *Memory) Update(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[m.ID]; !exists {
		return sentinel.ErrNotFound
	}
	if m.Number != nil {
		for _, row := range s.rows {
			if row.ID != m.ID && row.Number != nil && *row.Number == *m.Number {
				return sentinel.ErrAlreadyUsed
			}
		}
	}
	s.rows[m.ID] = m.Clone()
	return nil
}

func (s *Memory) FindByID(_ context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[membershipID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *Memory) FindByNumber(_ context.Context, number id.CardNumber) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.Number != nil && *row.Number == number {
			return row.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindLiveByUser returns the user's membership currently occupying the single
// live slot, if any.
func (s *Memory) FindLiveByUser(_ context.Context, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.UserID == userID && row.IsLive() {
			return row.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// FindLatestByUser returns the user's most recently created membership row.
func (s *Memory) FindLatestByUser(_ context.Context, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Membership
	for _, row := range s.rows {
		if row.UserID != userID {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

// FindLatestNumbered returns the user's most recent membership that ever held
// a card number, live or historical.
func (s *Memory) FindLatestNumbered(_ context.Context, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Membership
	for _, row := range s.rows {
		if row.UserID != userID || row.HeldNumber() == nil {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

// FindPendingPaymentByUser returns the user's most recent row still awaiting
// a payment outcome. The payment webhook resolves provider callbacks with it.
func (s *Memory) FindPendingPaymentByUser(_ context.Context, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Membership
	for _, row := range s.rows {
		if row.UserID != userID || row.PaymentStatus != models.PaymentPending {
			continue
		}
		if row.Status == models.StatusExpired || row.Status == models.StatusCanceled {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

// FindAssignableByUser returns the user's membership eligible for card
// allocation, oldest first when several qualify.
func (s *Memory) FindAssignableByUser(_ context.Context, userID id.UserID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest *models.Membership
	for _, row := range s.rows {
		if row.UserID != userID || !row.IsAssignable() {
			continue
		}
		if oldest == nil || row.CreatedAt.Before(oldest.CreatedAt) {
			oldest = row
		}
	}
	if oldest == nil {
		return nil, sentinel.ErrNotFound
	}
	return oldest.Clone(), nil
}

// ListAssignable returns every membership eligible for card allocation in
// FIFO order by creation time: first to pay is first served.
func (s *Memory) ListAssignable(_ context.Context) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Membership
	for _, row := range s.rows {
		if row.IsAssignable() {
			out = append(out, row.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListActiveExpired returns active memberships whose rolling window elapsed
// before now. The daily sweep consumes this.
func (s *Memory) ListActiveExpired(_ context.Context, now time.Time) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Membership
	for _, row := range s.rows {
		if row.IsExpiredAt(now) {
			out = append(out, row.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// AssignedNumbers returns the numeric values of every currently held card
// number. The range registry diffs this against the configured ranges.
func (s *Memory) AssignedNumbers(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for _, row := range s.rows {
		if row.Number == nil {
			continue
		}
		v, err := row.Number.Value()
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// AssignedNumbersInInterval returns currently held numbers inside [start, end].
func (s *Memory) AssignedNumbersInInterval(ctx context.Context, start, end int64) ([]int64, error) {
	all, err := s.AssignedNumbers(ctx)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, v := range all {
		if v >= start && v <= end {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// CountEverAssignedInInterval counts numbers inside [start, end] that any
// membership holds or ever held (including retired previous numbers).
func (s *Memory) CountEverAssignedInInterval(_ context.Context, start, end int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	record := func(n *id.CardNumber) {
		if n == nil {
			return
		}
		if v, err := n.Value(); err == nil && v >= start && v <= end {
			seen[v] = struct{}{}
		}
	}
	for _, row := range s.rows {
		record(row.Number)
		record(row.PreviousNumber)
	}
	return len(seen), nil
}

func sortByCreatedAt(rows []*models.Membership) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID.String() < rows[j].ID.String()
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
}
