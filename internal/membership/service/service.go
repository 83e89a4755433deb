// Package service implements the membership lifecycle transitions: creation
// for payment, the daily expiration sweep, administrative cancellation, and
// renewal with number conservation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tessera/internal/events"
	"tessera/internal/membership/classifier"
	memmetrics "tessera/internal/membership/metrics"
	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// Store is the slice of the membership store the lifecycle needs.
type Store interface {
	Create(ctx context.Context, m *models.Membership) error
	Update(ctx context.Context, m *models.Membership) error
	FindByID(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error)
	FindLiveByUser(ctx context.Context, userID id.UserID) (*models.Membership, error)
	FindLatestByUser(ctx context.Context, userID id.UserID) (*models.Membership, error)
	FindLatestNumbered(ctx context.Context, userID id.UserID) (*models.Membership, error)
	ListActiveExpired(ctx context.Context, now time.Time) ([]*models.Membership, error)
}

// ProfileSource looks up the completeness facts for the classifier. A missing
// profile classifies like an empty one.
type ProfileSource interface {
	FindByUser(ctx context.Context, userID id.UserID) (*models.Profile, error)
}

// Service orchestrates membership lifecycle transitions.
type Service struct {
	memberships Store
	profiles    ProfileSource
	fee         int64
	tx          tx.Runner
	logger      *slog.Logger
	metrics     *memmetrics.Metrics
	publisher   events.Publisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithMetrics(m *memmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// New constructs the lifecycle service. Fee is the membership fee snapshot
// recorded on each new row, in cents.
func New(memberships Store, profiles ProfileSource, fee int64, opts ...Option) (*Service, error) {
	if memberships == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile source is required")
	}
	s := &Service{memberships: memberships, profiles: profiles, fee: fee}
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

// CreateForPayment creates the pending/pending row a payment attempt hangs
// off. A user may hold at most one live membership: an active row, a row
// still awaiting payment, or a paid row awaiting a number all block a new
// attempt. Expired memberships never block - a lapsed member may start over.
func (s *Service) CreateForPayment(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}

	var created *models.Membership
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.memberships.FindLiveByUser(txCtx, userID); err == nil {
			return dErrors.New(dErrors.CodeConflict,
				"user already has a membership in progress")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing memberships")
		}

		m := models.NewPending(id.NewMembershipID(), userID, s.fee, requestcontext.Now(txCtx))
		if err := s.memberships.Create(txCtx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create membership")
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MembershipsCreated.Inc()
	}
	s.emit(ctx, events.Event{
		Type:         events.TypeMembershipCreated,
		UserID:       userID.String(),
		MembershipID: created.ID.String(),
	})
	return created, nil
}

// SweepExpirations retires every active membership whose rolling window
// elapsed before now: the number moves to previousNumber, the window closes,
// the row becomes expired. Each row is retired in its own transaction; the
// sweep is idempotent because it only selects rows still active and past due.
func (s *Service) SweepExpirations(ctx context.Context, now time.Time) (int, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveSweep(time.Now())
	}

	expired, err := s.memberships.ListActiveExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list expired memberships")
	}

	swept := 0
	for _, row := range expired {
		m := row
		err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			// Re-read inside the transaction: a concurrent cancel or an
			// earlier sweep run may already have retired this row.
			current, err := s.memberships.FindByID(txCtx, m.ID)
			if err != nil {
				return err
			}
			if !current.IsExpiredAt(now) {
				return nil
			}
			number := current.Number
			current.ApplyExpiration(now)
			if err := s.memberships.Update(txCtx, current); err != nil {
				return err
			}
			swept++
			s.emit(txCtx, events.Event{
				Type:         events.TypeMembershipExpired,
				UserID:       current.UserID.String(),
				MembershipID: current.ID.String(),
				CardNumber:   cardNumberString(number),
			})
			return nil
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to sweep membership",
				"membership_id", m.ID.String(),
				"error", err.Error(),
			)
			continue
		}
	}

	if s.metrics != nil && swept > 0 {
		s.metrics.MembershipsExpired.Add(float64(swept))
	}
	return swept, nil
}

// Cancel retires the number and marks the membership canceled, recording the
// acting administrator.
func (s *Service) Cancel(ctx context.Context, membershipID id.MembershipID, adminID string) (*models.Membership, error) {
	var canceled *models.Membership
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.memberships.FindByID(txCtx, membershipID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "membership not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
		}
		if err := m.CanCancel(); err != nil {
			return dErrors.New(dErrors.CodeConflict, "membership is already canceled")
		}
		number := m.Number
		m.ApplyCancellation(requestcontext.Now(txCtx), adminID)
		if err := s.memberships.Update(txCtx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store cancellation")
		}
		canceled = m
		s.emit(txCtx, events.Event{
			Type:         events.TypeMembershipCanceled,
			UserID:       m.UserID.String(),
			MembershipID: m.ID.String(),
			CardNumber:   cardNumberString(number),
			Actor:        adminID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MembershipsCanceled.Inc()
	}
	return canceled, nil
}

// RenewWithConservation renews a lapsed member. When the user ever held a
// card number the new membership is created active with that same number
// conserved - no allocation needed; otherwise a fresh pending row awaits
// normal allocation. Rolling dates are set from now regardless.
func (s *Service) RenewWithConservation(ctx context.Context, userID id.UserID) (*models.Membership, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}

	var renewed *models.Membership
	var conserved bool
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.memberships.FindLiveByUser(txCtx, userID); err == nil {
			return dErrors.New(dErrors.CodeConflict,
				"user already has a membership in progress")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing memberships")
		}

		now := requestcontext.Now(txCtx)
		m := models.NewPending(id.NewMembershipID(), userID, s.fee, now)

		previous, err := s.memberships.FindLatestNumbered(txCtx, userID)
		switch {
		case err == nil:
			m.PaymentStatus = models.PaymentSucceeded
			m.ApplyAssignment(*previous.HeldNumber(), now)
			conserved = true
		case errors.Is(err, sentinel.ErrNotFound):
			// First-time member: normal allocation will serve them.
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up previous number")
		}

		if err := s.memberships.Create(txCtx, m); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				// The conserved number was reissued to someone else while this
				// membership was lapsed. Fall back to a pending row.
				m = models.NewPending(id.NewMembershipID(), userID, s.fee, now)
				m.PaymentStatus = models.PaymentSucceeded
				conserved = false
				if err := s.memberships.Create(txCtx, m); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create renewal")
				}
			} else {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create renewal")
			}
		}
		renewed = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil && conserved {
		s.metrics.MembershipsRenewed.Inc()
	}
	s.emit(ctx, events.Event{
		Type:         events.TypeMembershipRenewed,
		UserID:       userID.String(),
		MembershipID: renewed.ID.String(),
		CardNumber:   cardNumberString(renewed.Number),
	})
	return renewed, nil
}

// Status classifies the user's latest membership against their profile. The
// unknown fallback is logged here at critical severity - the classifier
// itself stays pure.
func (s *Service) Status(ctx context.Context, userID id.UserID) (classifier.Result, error) {
	var m *models.Membership
	latest, err := s.memberships.FindLatestByUser(ctx, userID)
	switch {
	case err == nil:
		m = latest
	case errors.Is(err, sentinel.ErrNotFound):
		// No membership row: classified on profile completeness alone.
	default:
		return classifier.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
	}

	profile, err := s.profiles.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return classifier.Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}

	result := classifier.Classify(m, profile, requestcontext.Now(ctx))
	if result.State == classifier.StateUnknown {
		s.logger.ErrorContext(ctx, "unrecognized membership fact combination, failing closed",
			"user_id", userID.String(),
			"membership_id", m.ID.String(),
			"status", string(m.Status),
			"payment_status", string(m.PaymentStatus),
		)
		if s.metrics != nil {
			s.metrics.UnknownStates.Inc()
		}
	}
	return result, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if event.Actor == "" {
		event.Actor = requestcontext.AdminID(ctx)
	}
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit lifecycle event",
			"type", string(event.Type), "error", err.Error())
	}
}

func cardNumberString(n *id.CardNumber) string {
	if n == nil {
		return ""
	}
	return n.String()
}
