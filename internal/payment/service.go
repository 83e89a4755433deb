// Package payment reacts to payment-provider webhooks. This core never
// initiates a charge; it only records the provider's verdict on the user's
// pending membership so the classifier and the allocation eligibility filter
// see it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tessera/internal/membership/models"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/platform/sentinel"
	"tessera/pkg/platform/tx"
	"tessera/pkg/requestcontext"
)

// Store is the slice of the membership store the webhook needs.
type Store interface {
	Update(ctx context.Context, m *models.Membership) error
	FindPendingPaymentByUser(ctx context.Context, userID id.UserID) (*models.Membership, error)
}

// Service applies provider callbacks to pending memberships.
type Service struct {
	memberships Store
	tx          tx.Runner
	logger      *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithTx(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

// New constructs the webhook service.
func New(memberships Store, opts ...Option) (*Service, error) {
	if memberships == nil {
		return nil, fmt.Errorf("membership store is required")
	}
	s := &Service{memberships: memberships}
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

// Started records that a payment attempt began with the provider. The
// membership stays pending/pending; the provider reference moves the member
// into the processing-payment state.
func (s *Service) Started(ctx context.Context, userID id.UserID, providerID string) error {
	if providerID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "provider id is required")
	}
	return s.apply(ctx, userID, func(m *models.Membership) {
		m.PaymentProviderID = &providerID
	})
}

// Completed records the provider's terminal verdict.
func (s *Service) Completed(ctx context.Context, userID id.UserID, providerID string, outcome models.PaymentStatus, amount int64) error {
	switch outcome {
	case models.PaymentSucceeded, models.PaymentFailed, models.PaymentCanceled:
	default:
		return dErrors.Newf(dErrors.CodeBadRequest, "unknown payment outcome %q", string(outcome))
	}
	return s.apply(ctx, userID, func(m *models.Membership) {
		m.PaymentStatus = outcome
		if providerID != "" {
			m.PaymentProviderID = &providerID
		}
		if amount > 0 {
			m.PaymentAmount = &amount
		}
	})
}

func (s *Service) apply(ctx context.Context, userID id.UserID, mutate func(m *models.Membership)) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user id is required")
	}
	return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		m, err := s.memberships.FindPendingPaymentByUser(txCtx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "no pending membership for user")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load membership")
		}
		mutate(m)
		m.UpdatedAt = requestcontext.Now(txCtx)
		if err := s.memberships.Update(txCtx, m); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store payment update")
		}
		return nil
	})
}
