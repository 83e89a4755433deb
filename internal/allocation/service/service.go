// Package service implements card number allocation: the only component
// permitted to write a membership number. Every entry point runs its
// eligibility read, availability read and assignment writes inside a single
// transaction so two concurrent invocations can never select the same number.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	allocmetrics "tessera/internal/allocation/metrics"
	"tessera/internal/events"
	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// MembershipStore is the slice of the membership store allocation needs.
type MembershipStore interface {
	Update(ctx context.Context, m *models.Membership) error
	FindByNumber(ctx context.Context, number id.CardNumber) (*models.Membership, error)
	FindAssignableByUser(ctx context.Context, userID id.UserID) (*models.Membership, error)
	ListAssignable(ctx context.Context) ([]*models.Membership, error)
}

// Registry answers configuration and availability questions. Both calls run
// inside the allocation transaction so the snapshot cannot go stale mid-batch.
type Registry interface {
	IsNumberConfigured(ctx context.Context, n int64) (bool, error)
	AvailableNumbers(ctx context.Context) ([]int64, error)
}

// CacheInvalidator drops display snapshots after assignments change the
// assigned set. Optional.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Assignment records one user receiving one number.
type Assignment struct {
	UserID       id.UserID       `json:"user_id"`
	MembershipID id.MembershipID `json:"membership_id"`
	Number       id.CardNumber   `json:"number"`
}

// BatchResult reports a batch assignment. Leftover users and numbers are a
// normal outcome, not an error.
type BatchResult struct {
	Assigned         []Assignment    `json:"assigned"`
	Skipped          []id.CardNumber `json:"skipped"`
	Remaining        []id.CardNumber `json:"remaining"`
	UsersWithoutCard []id.UserID     `json:"users_without_card"`
}

// AutoResult reports an automatic assignment from the global pool.
type AutoResult struct {
	Assigned         []Assignment `json:"assigned"`
	UsersWithoutCard []id.UserID  `json:"users_without_card"`
	AvailableCount   int          `json:"available_count"`
	RequestedCount   int          `json:"requested_count"`
}

// Service is the allocation engine.
type Service struct {
	memberships MembershipStore
	registry    Registry
	tx          tx.Runner
	logger      *slog.Logger
	metrics     *allocmetrics.Metrics
	publisher   events.Publisher
	cache       CacheInvalidator
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithMetrics(m *allocmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithCacheInvalidator(cache CacheInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

// New constructs the allocation service.
func New(memberships MembershipStore, registry Registry, opts ...Option) (*Service, error) {
	if memberships == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	s := &Service{memberships: memberships, registry: registry}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = tx.NewMemoryRunner()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.tracer = otel.Tracer("tessera/internal/allocation")
	return s, nil
}

// AssignSingle gives one explicit number to one user.
func (s *Service) AssignSingle(ctx context.Context, userID id.UserID, number id.CardNumber) (*Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.AssignSingle")
	defer span.End()

	value, err := number.Value()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	var assignment *Assignment
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.memberships.FindByNumber(txCtx, number); err == nil {
			return dErrors.Newf(dErrors.CodeConflict, "number %s is already assigned", number)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check number usage")
		}

		configured, err := s.registry.IsNumberConfigured(txCtx, value)
		if err != nil {
			return err
		}
		if !configured {
			return dErrors.Newf(dErrors.CodeFailedPrecondition,
				"number %s is outside every configured range", number)
		}

		m, err := s.memberships.FindAssignableByUser(txCtx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeConflict,
					"user %s has no membership eligible for assignment", userID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
		}
		if err := m.CanAssign(); err != nil {
			return err
		}
		m.ApplyAssignment(number, requestcontext.Now(txCtx))
		if err := s.update(txCtx, m); err != nil {
			return err
		}
		assignment = &Assignment{UserID: m.UserID, MembershipID: m.ID, Number: number}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterAssign(ctx, []Assignment{*assignment})
	return assignment, nil
}

// AssignBatch generates the literal candidate sequence prefix+pad(i) for i in
// [start, end], preserving the zero-padding width implied by start's string
// form, and hands available candidates to eligible users in FIFO order.
//
// The whole batch is either accepted (leftovers reported, never raised) or
// rejected upfront when any candidate falls outside the configured ranges.
func (s *Service) AssignBatch(ctx context.Context, prefix, start, end string, userIDs []id.UserID) (*BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.AssignBatch")
	defer span.End()

	if s.metrics != nil {
		defer s.metrics.ObserveBatch(time.Now())
	}

	candidates, err := buildCandidates(prefix, start, end)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var unconfigured []id.CardNumber
		for _, c := range candidates {
			configured, err := s.registry.IsNumberConfigured(txCtx, c.value)
			if err != nil {
				return err
			}
			if !configured {
				unconfigured = append(unconfigured, c.number)
			}
		}
		if len(unconfigured) > 0 {
			return dErrors.Newf(dErrors.CodeFailedPrecondition,
				"candidates outside every configured range: %s", elideCardNumbers(unconfigured, 5))
		}

		var available []id.CardNumber
		for _, c := range candidates {
			_, err := s.memberships.FindByNumber(txCtx, c.number)
			switch {
			case err == nil:
				result.Skipped = append(result.Skipped, c.number)
			case errors.Is(err, sentinel.ErrNotFound):
				available = append(available, c.number)
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check number usage")
			}
		}

		eligible, err := s.eligibleOf(txCtx, userIDs)
		if err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		for i, m := range eligible {
			if i >= len(available) {
				result.UsersWithoutCard = append(result.UsersWithoutCard, m.UserID)
				continue
			}
			m.ApplyAssignment(available[i], now)
			if err := s.update(txCtx, m); err != nil {
				return err
			}
			result.Assigned = append(result.Assigned, Assignment{
				UserID: m.UserID, MembershipID: m.ID, Number: available[i],
			})
		}
		result.Remaining = available[len(result.Assigned):]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterAssign(ctx, result.Assigned)
	return result, nil
}

// AssignAuto draws from the whole configured pool in ascending order instead
// of an explicit literal range.
func (s *Service) AssignAuto(ctx context.Context, userIDs []id.UserID) (*AutoResult, error) {
	ctx, span := s.tracer.Start(ctx, "allocation.AssignAuto")
	defer span.End()

	if s.metrics != nil {
		defer s.metrics.ObserveAuto(time.Now())
	}

	result := &AutoResult{RequestedCount: len(userIDs)}
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pool, err := s.registry.AvailableNumbers(txCtx)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return dErrors.New(dErrors.CodeExhausted,
				"no numbers available: configure a card number range first")
		}
		result.AvailableCount = len(pool)

		eligible, err := s.eligibleOf(txCtx, userIDs)
		if err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		for i, m := range eligible {
			if i >= len(pool) {
				result.UsersWithoutCard = append(result.UsersWithoutCard, m.UserID)
				continue
			}
			number := id.FormatCardNumber(pool[i])
			m.ApplyAssignment(number, now)
			if err := s.update(txCtx, m); err != nil {
				return err
			}
			result.Assigned = append(result.Assigned, Assignment{
				UserID: m.UserID, MembershipID: m.ID, Number: number,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterAssign(ctx, result.Assigned)
	return result, nil
}

// eligibleOf restricts the FIFO-ordered assignable memberships to the
// requested users. Store order is preserved: first to pay is first served.
func (s *Service) eligibleOf(ctx context.Context, userIDs []id.UserID) ([]*models.Membership, error) {
	assignable, err := s.memberships.ListAssignable(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list assignable memberships")
	}
	requested := make(map[id.UserID]struct{}, len(userIDs))
	for _, u := range userIDs {
		requested[u] = struct{}{}
	}
	var out []*models.Membership
	for _, m := range assignable {
		if _, ok := requested[m.UserID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Service) update(ctx context.Context, m *models.Membership) error {
	if err := s.memberships.Update(ctx, m); err != nil {
		// The store-level unique index is the last line of defense against a
		// race slipping past isolation; surface it as the assignment conflict.
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Newf(dErrors.CodeConflict, "number %s is already assigned", *m.Number)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store assignment")
	}
	return nil
}

func (s *Service) afterAssign(ctx context.Context, assigned []Assignment) {
	if len(assigned) == 0 {
		return
	}
	if s.metrics != nil {
		s.metrics.AddCardsAssigned(len(assigned))
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate range stats cache", "error", err.Error())
		}
	}
	if s.publisher != nil {
		now := requestcontext.Now(ctx)
		actor := requestcontext.AdminID(ctx)
		for _, a := range assigned {
			err := s.publisher.Emit(ctx, events.Event{
				Type:         events.TypeCardAssigned,
				Timestamp:    now,
				UserID:       a.UserID.String(),
				MembershipID: a.MembershipID.String(),
				CardNumber:   a.Number.String(),
				Actor:        actor,
			})
			if err != nil {
				s.logger.WarnContext(ctx, "failed to emit assignment event", "error", err.Error())
			}
		}
	}
}

type candidate struct {
	number id.CardNumber
	value  int64
}

// buildCandidates materializes the literal sequence for a batch. The padding
// width comes from start's string form: start "001" yields 001, 002, ...
func buildCandidates(prefix, start, end string) ([]candidate, error) {
	startVal, err := parseBound("start", start)
	if err != nil {
		return nil, err
	}
	endVal, err := parseBound("end", end)
	if err != nil {
		return nil, err
	}
	if startVal > endVal {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"invalid batch bounds: start %s is greater than end %s", start, end)
	}

	width := len(start)
	out := make([]candidate, 0, endVal-startVal+1)
	for i := startVal; i <= endVal; i++ {
		literal := id.CardNumber(fmt.Sprintf("%s%0*d", prefix, width, i))
		value, err := literal.Value()
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"candidate %s is not a valid card number", literal)
		}
		out = append(out, candidate{number: literal, value: value})
	}
	return out, nil
}

func parseBound(name, raw string) (int64, error) {
	n, err := id.ParseCardNumber(raw)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeValidation, "invalid batch %s %q", name, raw)
	}
	return n.Value()
}

// elideCardNumbers renders at most max numbers, summarizing the rest.
func elideCardNumbers(nums []id.CardNumber, max int) string {
	shown := nums
	if len(shown) > max {
		shown = shown[:max]
	}
	parts := make([]string, len(shown))
	for i, n := range shown {
		parts[i] = n.String()
	}
	text := strings.Join(parts, ", ")
	if rest := len(nums) - len(shown); rest > 0 {
		text = fmt.Sprintf("%s and %d more", text, rest)
	}
	return text
}
