package models

import (
	"time"

	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Period is the rolling membership window measured from card assignment.
const Period = 365 * 24 * time.Hour

// Status is the lifecycle axis of a membership row.
//
// Transitions are monotonic: pending → active is the only forward
// non-terminal transition; expired and canceled are terminal for the row.
// Renewal creates a new row instead of resurrecting a terminal one.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusCanceled Status = "canceled"
)

// PaymentStatus is the payment axis, independent from Status. It is flipped
// by the payment-webhook collaborator, never by this core.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Membership is one membership period attempt for a user.
//
// Invariants:
//   - Number non-nil ⇒ StartDate and EndDate non-nil and Status active
//     (transiently expired before the daily sweep retires the number)
//   - Number is unique across all rows when non-nil; only the allocation
//     service writes it
//   - At most one membership per user may be live (pending/active) at a time;
//     enforced by the lifecycle service, not the model
type Membership struct {
	ID                id.MembershipID `json:"id"`
	UserID            id.UserID       `json:"user_id"`
	Status            Status          `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentProviderID *string         `json:"payment_provider_id,omitempty"`
	PaymentAmount     *int64          `json:"payment_amount,omitempty"`
	Number            *id.CardNumber  `json:"number,omitempty"`
	PreviousNumber    *id.CardNumber  `json:"previous_number,omitempty"`
	StartDate         *time.Time      `json:"start_date,omitempty"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	CardAssignedAt    *time.Time      `json:"card_assigned_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
}

// NewPending builds the pending/pending row created when a user initiates
// payment. Fee is the snapshot of the membership fee at creation time.
func NewPending(membershipID id.MembershipID, userID id.UserID, fee int64, now time.Time) *Membership {
	return &Membership{
		ID:            membershipID,
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		PaymentAmount: &fee,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsLive reports whether this row still occupies the user's single live slot.
// Expired memberships never block a new attempt.
func (m *Membership) IsLive() bool {
	if m.Status == StatusActive {
		return true
	}
	if m.Status != StatusExpired && m.PaymentStatus == PaymentPending {
		return true
	}
	if m.Status == StatusPending && m.PaymentStatus == PaymentSucceeded {
		return true
	}
	return false
}

// IsAssignable reports whether this row qualifies for card allocation:
// the member has paid, holds no number yet, and the row is not terminal.
func (m *Membership) IsAssignable() bool {
	return m.PaymentStatus == PaymentSucceeded &&
		m.Number == nil &&
		m.Status != StatusExpired &&
		m.Status != StatusCanceled
}

// CanAssign validates the allocation precondition for this row.
func (m *Membership) CanAssign() error {
	if !m.IsAssignable() {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership is not assignable")
	}
	return nil
}

// ApplyAssignment populates the card number and opens the rolling window.
// Call CanAssign first; the allocation service holds the transaction.
func (m *Membership) ApplyAssignment(number id.CardNumber, now time.Time) {
	end := now.Add(Period)
	m.Number = &number
	m.Status = StatusActive
	m.StartDate = &now
	m.EndDate = &end
	m.CardAssignedAt = &now
	m.UpdatedAt = now
}

// IsExpiredAt reports whether the rolling window has elapsed but the row has
// not been swept yet.
func (m *Membership) IsExpiredAt(now time.Time) bool {
	return m.Status == StatusActive && m.EndDate != nil && m.EndDate.Before(now)
}

// retireNumber moves the card number aside so renewal can conserve it, and
// closes the rolling window. Shared by expiration and cancellation.
func (m *Membership) retireNumber() {
	if m.Number != nil {
		prev := *m.Number
		m.PreviousNumber = &prev
		m.Number = nil
	}
	m.StartDate = nil
	m.EndDate = nil
}

// ApplyExpiration retires the number and marks the row expired. Idempotent at
// the service level: the sweep only selects active rows past their end date.
func (m *Membership) ApplyExpiration(now time.Time) {
	m.retireNumber()
	m.Status = StatusExpired
	m.UpdatedAt = now
}

// CanCancel checks the cancellation transition.
func (m *Membership) CanCancel() error {
	if m.Status == StatusCanceled {
		return dErrors.New(dErrors.CodeInvariantViolation, "membership is already canceled")
	}
	return nil
}

// ApplyCancellation retires the number and marks the row canceled, recording
// the acting administrator. Call CanCancel first.
func (m *Membership) ApplyCancellation(now time.Time, adminID string) {
	m.retireNumber()
	m.Status = StatusCanceled
	m.UpdatedAt = now
	m.UpdatedBy = adminID
}

// HeldNumber returns the number this row holds or once held, preferring the
// live one. Renewal conservation reads this.
func (m *Membership) HeldNumber() *id.CardNumber {
	if m.Number != nil {
		return m.Number
	}
	return m.PreviousNumber
}

// Clone returns a deep copy. Memory stores hand out clones so callers cannot
// mutate shared state outside a transaction.
func (m *Membership) Clone() *Membership {
	c := *m
	c.PaymentProviderID = clonePtr(m.PaymentProviderID)
	c.PaymentAmount = clonePtr(m.PaymentAmount)
	c.Number = clonePtr(m.Number)
	c.PreviousNumber = clonePtr(m.PreviousNumber)
	c.StartDate = clonePtr(m.StartDate)
	c.EndDate = clonePtr(m.EndDate)
	c.CardAssignedAt = clonePtr(m.CardAssignedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
