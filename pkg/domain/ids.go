// Package domain holds typed identifiers and domain primitives shared across
// features. Keeping them in one place prevents accidental ID mix-ups at call
// sites (a MembershipID cannot be passed where a UserID is expected).
package domain

import "github.com/google/uuid"

// UserID identifies a member account.
type UserID uuid.UUID

// MembershipID identifies one membership period attempt for a user.
type MembershipID uuid.UUID

// RangeID identifies an administrator-declared card number range.
type RangeID uuid.UUID

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id MembershipID) String() string { return uuid.UUID(id).String() }
func (id RangeID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id MembershipID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RangeID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// NewUserID returns a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewMembershipID returns a fresh random MembershipID.
func NewMembershipID() MembershipID { return MembershipID(uuid.New()) }

// NewRangeID returns a fresh random RangeID.
func NewRangeID() RangeID { return RangeID(uuid.New()) }

// ParseUserID parses a UserID from its string form.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}

// ParseMembershipID parses a MembershipID from its string form.
func ParseMembershipID(s string) (MembershipID, error) {
	u, err := uuid.Parse(s)
	return MembershipID(u), err
}

// ParseRangeID parses a RangeID from its string form.
func ParseRangeID(s string) (RangeID, error) {
	u, err := uuid.Parse(s)
	return RangeID(u), err
}
