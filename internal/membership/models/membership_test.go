package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tessera/pkg/domain"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNewPending(t *testing.T) {
	membershipID := id.NewMembershipID()
	userID := id.NewUserID()

	m := NewPending(membershipID, userID, 2500, now)

	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, PaymentPending, m.PaymentStatus)
	require.NotNil(t, m.PaymentAmount)
	assert.Equal(t, int64(2500), *m.PaymentAmount)
	assert.Nil(t, m.Number)
	assert.Nil(t, m.StartDate)
	assert.True(t, m.IsLive())
	assert.False(t, m.IsAssignable())
}

func TestIsLive(t *testing.T) {
	tests := []struct {
		name          string
		status        Status
		paymentStatus PaymentStatus
		live          bool
	}{
		{"pending payment occupies the slot", StatusPending, PaymentPending, true},
		{"paid awaiting number occupies the slot", StatusPending, PaymentSucceeded, true},
		{"active occupies the slot", StatusActive, PaymentSucceeded, true},
		{"failed payment frees the slot", StatusPending, PaymentFailed, false},
		{"canceled payment frees the slot", StatusPending, PaymentCanceled, false},
		{"expired frees the slot", StatusExpired, PaymentSucceeded, false},
		{"canceled frees the slot", StatusCanceled, PaymentSucceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Membership{Status: tt.status, PaymentStatus: tt.paymentStatus}
			assert.Equal(t, tt.live, m.IsLive())
		})
	}
}

func TestAssignment(t *testing.T) {
	m := NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	assert.Error(t, m.CanAssign(), "unpaid membership must not be assignable")

	m.PaymentStatus = PaymentSucceeded
	require.NoError(t, m.CanAssign())

	number := id.CardNumber("100007")
	m.ApplyAssignment(number, now)

	assert.Equal(t, StatusActive, m.Status)
	require.NotNil(t, m.Number)
	assert.Equal(t, number, *m.Number)
	require.NotNil(t, m.StartDate)
	require.NotNil(t, m.EndDate)
	assert.Equal(t, now, *m.StartDate)
	assert.Equal(t, now.Add(Period), *m.EndDate)
	assert.Error(t, m.CanAssign(), "a numbered membership must not be assignable again")
}

func TestApplyExpirationRetiresNumber(t *testing.T) {
	m := NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	m.PaymentStatus = PaymentSucceeded
	number := id.CardNumber("100007")
	m.ApplyAssignment(number, now)

	later := now.Add(Period).Add(24 * time.Hour)
	assert.True(t, m.IsExpiredAt(later))
	assert.False(t, m.IsExpiredAt(now))

	m.ApplyExpiration(later)

	assert.Equal(t, StatusExpired, m.Status)
	assert.Nil(t, m.Number)
	assert.Nil(t, m.StartDate)
	assert.Nil(t, m.EndDate)
	require.NotNil(t, m.PreviousNumber)
	assert.Equal(t, number, *m.PreviousNumber)
	require.NotNil(t, m.HeldNumber())
	assert.Equal(t, number, *m.HeldNumber())
	assert.False(t, m.IsExpiredAt(later.Add(time.Hour)), "expired rows never match the sweep again")
}

func TestApplyCancellation(t *testing.T) {
	m := NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	m.PaymentStatus = PaymentSucceeded
	number := id.CardNumber("100009")
	m.ApplyAssignment(number, now)

	require.NoError(t, m.CanCancel())
	m.ApplyCancellation(now.Add(time.Hour), "admin-1")

	assert.Equal(t, StatusCanceled, m.Status)
	assert.Nil(t, m.Number)
	require.NotNil(t, m.PreviousNumber)
	assert.Equal(t, number, *m.PreviousNumber)
	assert.Equal(t, "admin-1", m.UpdatedBy)
	assert.Error(t, m.CanCancel(), "cancellation is terminal")
}

func TestCloneIsDeep(t *testing.T) {
	m := NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	m.PaymentStatus = PaymentSucceeded
	m.ApplyAssignment(id.CardNumber("100010"), now)

	c := m.Clone()
	*c.Number = id.CardNumber("999999")
	c.EndDate = nil

	assert.Equal(t, id.CardNumber("100010"), *m.Number)
	assert.NotNil(t, m.EndDate)
}
