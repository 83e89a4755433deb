// Package events carries lifecycle events out of the domain services. Events
// are facts, not commands: consumers (reporting, newsletters, dashboards) must
// tolerate replays.
package events

import (
	"context"
	"time"
)

// Type enumerates the lifecycle facts this core emits.
type Type string

const (
	TypeMembershipCreated  Type = "membership.created"
	TypeCardAssigned       Type = "card.assigned"
	TypeMembershipExpired  Type = "membership.expired"
	TypeMembershipCanceled Type = "membership.canceled"
	TypeMembershipRenewed  Type = "membership.renewed"
	TypeRangeAdded         Type = "range.added"
	TypeRangeRemoved       Type = "range.removed"
)

// Event is transport-agnostic so sinks can fan out (Kafka, log, test capture).
type Event struct {
	Type         Type      `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"user_id,omitempty"`
	MembershipID string    `json:"membership_id,omitempty"`
	RangeID      string    `json:"range_id,omitempty"`
	CardNumber   string    `json:"card_number,omitempty"`
	Actor        string    `json:"actor,omitempty"`
}

// Publisher is implemented by the Kafka producer and by test capture sinks.
// Emission must never fail a domain transaction; implementations log and drop
// on sink errors.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
