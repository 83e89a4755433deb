// Package classifier maps a membership's persisted facts to exactly one
// member-facing state. It is a pure function: no store reads, no clock reads,
// no logging. Callers pass the current time and log the unknown fallback.
package classifier

import (
	"time"

	"tessera/internal/membership/models"
)

// State is the member-facing lifecycle state.
type State string

const (
	// StateNone: no usable membership and an incomplete profile.
	StateNone State = "none"
	// StateProfileComplete: profile complete, ready to start a purchase.
	StateProfileComplete State = "profile_complete"
	// StateProcessingPayment: a payment attempt is in flight with the provider.
	StateProcessingPayment State = "processing_payment"
	// StatePaymentFailed: the last payment attempt failed or was canceled.
	StatePaymentFailed State = "payment_failed"
	// StateAwaitingNumber: paid, waiting for an administrator to assign a card.
	StateAwaitingNumber State = "awaiting_number"
	// StateActive: card assigned and the rolling window is open.
	StateActive State = "active"
	// StateExpired: the rolling window elapsed (swept or pre-sweep).
	StateExpired State = "expired"
	// StateCanceled: an administrator canceled the membership.
	StateCanceled State = "canceled"
	// StateUnknown: unrecognized fact combination. Fail closed: the member
	// sees a contact-support message and purchase stays blocked until the
	// inconsistency is investigated.
	StateUnknown State = "unknown"
)

// Result is what UIs and reports render. Message is human-readable and safe
// to show to the member; CanPurchase gates the buy button.
type Result struct {
	State       State
	CanPurchase bool
	Message     string
}

// Classify evaluates the ordered rules against one membership row (nil when
// the user has none) and the profile facts. Evaluation order is part of the
// contract: several facts can be simultaneously true, and the first matching
// rule wins.
func Classify(m *models.Membership, p *models.Profile, now time.Time) Result {
	if m == nil {
		if p.Complete() {
			return Result{State: StateProfileComplete, CanPurchase: true,
				Message: "Your profile is complete. You can purchase a membership."}
		}
		return Result{State: StateNone, CanPurchase: false,
			Message: "Complete your profile to purchase a membership."}
	}

	switch {
	case m.Status == models.StatusCanceled:
		return Result{State: StateCanceled, CanPurchase: false,
			Message: "Your membership was canceled. Contact support for details."}

	case m.Status == models.StatusExpired:
		return Result{State: StateExpired, CanPurchase: true,
			Message: "Your membership has expired. Renew to receive a card again."}

	case m.PaymentStatus == models.PaymentFailed || m.PaymentStatus == models.PaymentCanceled:
		return Result{State: StatePaymentFailed, CanPurchase: true,
			Message: "Your payment did not complete. Please try again."}

	case m.PaymentStatus == models.PaymentPending && m.PaymentProviderID != nil && m.Number == nil:
		return Result{State: StateProcessingPayment, CanPurchase: false,
			Message: "Your payment is being processed."}

	case m.PaymentStatus == models.PaymentPending:
		// A pending attempt already exists, so purchase stays blocked either way.
		if p.Complete() {
			return Result{State: StateProfileComplete, CanPurchase: false,
				Message: "A membership purchase is already in progress."}
		}
		return Result{State: StateNone, CanPurchase: false,
			Message: "Complete your profile to continue your membership purchase."}

	case m.PaymentStatus == models.PaymentSucceeded && m.Number == nil:
		return Result{State: StateAwaitingNumber, CanPurchase: false,
			Message: "Payment received. Your card number will be assigned shortly."}

	case m.Number != nil && m.Status == models.StatusActive && m.EndDate != nil && !m.EndDate.Before(now):
		return Result{State: StateActive, CanPurchase: false,
			Message: "Your membership is active."}

	case m.Number != nil && m.EndDate != nil && m.EndDate.Before(now):
		// The daily sweep has not retired the number yet.
		return Result{State: StateExpired, CanPurchase: true,
			Message: "Your membership has expired. Renew to receive a card again."}
	}

	return Result{State: StateUnknown, CanPurchase: false,
		Message: "We cannot determine your membership state. Please contact support."}
}
