// Package service implements the card number range registry: the set of
// non-overlapping intervals card numbers may be drawn from, and the
// availability math against the currently assigned numbers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tessera/internal/cardrange/models"
	"tessera/internal/events"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// RangeStore persists the declared ranges.
type RangeStore interface {
	Create(ctx context.Context, r *models.Range) error
	Delete(ctx context.Context, rangeID id.RangeID) error
	FindByID(ctx context.Context, rangeID id.RangeID) (*models.Range, error)
	ListAll(ctx context.Context) ([]*models.Range, error)
}

// NumberSource reads the assigned-number facts owned by the membership store.
// The registry never owns the assigned set; it is recomputed on read inside
// the transaction rather than cached in a separately synchronized structure.
type NumberSource interface {
	AssignedNumbers(ctx context.Context) ([]int64, error)
	AssignedNumbersInInterval(ctx context.Context, start, end int64) ([]int64, error)
	CountEverAssignedInInterval(ctx context.Context, start, end int64) (int, error)
}

// StatsCache holds the display snapshot for the admin dashboard. Optional.
type StatsCache interface {
	Get(ctx context.Context) ([]*models.Stats, bool)
	Set(ctx context.Context, stats []*models.Stats) error
	Invalidate(ctx context.Context) error
}

// Service is the range registry.
type Service struct {
	ranges    RangeStore
	numbers   NumberSource
	tx        tx.Runner
	logger    *slog.Logger
	cache     StatsCache
	publisher events.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithStatsCache(cache StatsCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// New constructs the registry service.
func New(ranges RangeStore, numbers NumberSource, opts ...Option) (*Service, error) {
	if ranges == nil {
		return nil, fmt.Errorf("range store is required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("number source is required")
	}
	s := &Service{ranges: ranges, numbers: numbers}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// AddRange validates shape, assigned-number conflicts and overlaps, then
// persists the range. Reads and the write share one transaction.
func (s *Service) AddRange(ctx context.Context, start, end int64, createdBy string) (*models.Range, error) {
	newRange, err := models.NewRange(id.NewRangeID(), start, end, createdBy, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		assigned, err := s.numbers.AssignedNumbersInInterval(txCtx, start, end)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read assigned numbers")
		}
		if len(assigned) > 0 {
			return dErrors.Newf(dErrors.CodeConflict,
				"range [%d, %d] contains already assigned numbers: %s",
				start, end, elideNumbers(assigned, 10))
		}

		existing, err := s.ranges.ListAll(txCtx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ranges")
		}
		var overlapping []*models.Range
		for _, r := range existing {
			if r.Overlaps(newRange) {
				overlapping = append(overlapping, r)
			}
		}
		if len(overlapping) > 0 {
			return dErrors.Newf(dErrors.CodeConflict,
				"range [%d, %d] overlaps existing ranges: %s",
				start, end, describeRanges(overlapping))
		}

		if err := s.ranges.Create(txCtx, newRange); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create range")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.emit(ctx, events.Event{
		Type:    events.TypeRangeAdded,
		RangeID: newRange.ID.String(),
		Actor:   createdBy,
	})
	return newRange, nil
}

// RemoveRange deletes a range that is provably unused: no number inside it
// has ever been assigned, including retired previous numbers, so renewal
// conservation can never point into a deleted range.
func (s *Service) RemoveRange(ctx context.Context, rangeID id.RangeID) error {
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		r, err := s.ranges.FindByID(txCtx, rangeID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "range not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load range")
		}

		used, err := s.numbers.CountEverAssignedInInterval(txCtx, r.Start, r.End)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count used numbers")
		}
		if used > 0 {
			return dErrors.Newf(dErrors.CodeConflict,
				"range [%d, %d] is in use: %d of its numbers have been assigned",
				r.Start, r.End, used)
		}

		if err := s.ranges.Delete(txCtx, rangeID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete range")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateStats(ctx)
	s.emit(ctx, events.Event{
		Type:    events.TypeRangeRemoved,
		RangeID: rangeID.String(),
		Actor:   requestcontext.AdminID(ctx),
	})
	return nil
}

// ListWithStats returns per-range usage for the admin dashboard. Display
// only: a slightly stale snapshot is acceptable, so the result is served from
// the cache when present.
func (s *Service) ListWithStats(ctx context.Context) ([]*models.Stats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.Get(ctx); ok {
			return stats, nil
		}
	}

	ranges, err := s.ranges.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ranges")
	}

	stats := make([]*models.Stats, 0, len(ranges))
	for _, r := range ranges {
		assigned, err := s.numbers.AssignedNumbersInInterval(ctx, r.Start, r.End)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read assigned numbers")
		}
		free := freeNumbers(r, assigned)
		stats = append(stats, &models.Stats{
			Range:     r,
			Total:     r.Size(),
			Used:      int64(len(assigned)),
			Available: int64(len(free)),
			Free:      models.GroupContiguous(free),
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.WarnContext(ctx, "failed to cache range stats", "error", err.Error())
		}
	}
	return stats, nil
}

// AvailableNumbers returns every configured number not currently assigned,
// ranges by ascending start and numbers ascending within a range. This
// ordering is the allocation order: lower numbers are always offered first.
func (s *Service) AvailableNumbers(ctx context.Context) ([]int64, error) {
	ranges, err := s.ranges.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ranges")
	}
	assigned, err := s.numbers.AssignedNumbers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read assigned numbers")
	}
	taken := make(map[int64]struct{}, len(assigned))
	for _, n := range assigned {
		taken[n] = struct{}{}
	}

	var out []int64
	for _, r := range ranges {
		for n := r.Start; n <= r.End; n++ {
			if _, used := taken[n]; !used {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// IsNumberConfigured reports whether n falls inside any registered range.
func (s *Service) IsNumberConfigured(ctx context.Context, n int64) (bool, error) {
	outside, err := s.ValidateConfigured(ctx, n, n)
	if err != nil {
		return false, err
	}
	return len(outside) == 0, nil
}

// ValidateConfigured returns the numbers in [start, end] that fall outside
// every registered range. Batch operations reject unconfigured intervals with
// this before assigning anything.
func (s *Service) ValidateConfigured(ctx context.Context, start, end int64) ([]int64, error) {
	if start > end {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"invalid range: start %d is greater than end %d", start, end)
	}
	ranges, err := s.ranges.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ranges")
	}

	var outside []int64
	for n := start; n <= end; n++ {
		configured := false
		for _, r := range ranges {
			if r.Contains(n) {
				configured = true
				break
			}
		}
		if !configured {
			outside = append(outside, n)
		}
	}
	return outside, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate range stats cache", "error", err.Error())
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit range event", "type", string(event.Type), "error", err.Error())
	}
}

func freeNumbers(r *models.Range, assigned []int64) []int64 {
	taken := make(map[int64]struct{}, len(assigned))
	for _, n := range assigned {
		taken[n] = struct{}{}
	}
	var out []int64
	for n := r.Start; n <= r.End; n++ {
		if _, used := taken[n]; !used {
			out = append(out, n)
		}
	}
	return out
}

// elideNumbers renders at most max numbers, summarizing the rest, so conflict
// messages stay readable for large ranges.
func elideNumbers(nums []int64, max int) string {
	sorted := make([]int64, len(nums))
	copy(sorted, nums)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	shown := sorted
	if len(shown) > max {
		shown = shown[:max]
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = fmt.Sprintf("%d", n)
	}
	text := strings.Join(parts, ", ")
	if rest := len(sorted) - len(shown); rest > 0 {
		text = fmt.Sprintf("%s and %d more", text, rest)
	}
	return text
}

func describeRanges(ranges []*models.Range) string {
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("[%d, %d]", r.Start, r.End)
	}
	return strings.Join(parts, ", ")
}
