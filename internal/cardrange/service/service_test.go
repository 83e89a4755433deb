package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tessera/internal/cardrange/models"
	rangestore "tessera/internal/cardrange/store"
	memmodels "tessera/internal/membership/models"
	memstore "tessera/internal/membership/store"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

type RangeServiceSuite struct {
	suite.Suite
	ctx         context.Context
	ranges      *rangestore.Memory
	memberships *memstore.Memory
	service     *Service
}

func TestRangeServiceSuite(t *testing.T) {
	suite.Run(t, new(RangeServiceSuite))
}

func (s *RangeServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ranges = rangestore.NewMemory()
	s.memberships = memstore.NewMemory()

	svc, err := New(s.ranges, s.memberships,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(s.T(), err)
	s.service = svc
}

// seedAssigned creates an active membership holding the given number.
func (s *RangeServiceSuite) seedAssigned(number int64) *memmodels.Membership {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := memmodels.NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	m.PaymentStatus = memmodels.PaymentSucceeded
	m.ApplyAssignment(id.FormatCardNumber(number), now)
	require.NoError(s.T(), s.memberships.Create(s.ctx, m))
	return m
}

// seedRetired creates an expired membership that once held the given number.
func (s *RangeServiceSuite) seedRetired(number int64) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := memmodels.NewPending(id.NewMembershipID(), id.NewUserID(), 2500, now)
	m.PaymentStatus = memmodels.PaymentSucceeded
	m.ApplyAssignment(id.FormatCardNumber(number), now)
	m.ApplyExpiration(now.Add(memmodels.Period).Add(time.Hour))
	require.NoError(s.T(), s.memberships.Create(s.ctx, m))
}

// === AddRange ===

func (s *RangeServiceSuite) TestAddRange() {
	created, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)
	s.Equal(int64(100), created.Start)
	s.Equal("admin-1", created.CreatedBy)

	stored, err := s.ranges.FindByID(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.Start, stored.Start)
}

func (s *RangeServiceSuite) TestAddRangeRejectsInvalidShape() {
	_, err := s.service.AddRange(s.ctx, 200, 100, "admin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.AddRange(s.ctx, 1, 2000, "admin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RangeServiceSuite) TestAddRangeRejectsOverlap() {
	_, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)

	tests := []struct {
		name       string
		start, end int64
	}{
		{"touching lower bound", 50, 100},
		{"touching upper bound", 199, 250},
		{"contained", 120, 180},
		{"containing", 50, 250},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.AddRange(s.ctx, tt.start, tt.end, "admin-1")
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		})
	}

	// Adjacent but disjoint is fine.
	_, err = s.service.AddRange(s.ctx, 200, 299, "admin-1")
	s.Require().NoError(err)
}

func (s *RangeServiceSuite) TestAddRangeRejectsAssignedNumbersInside() {
	s.seedAssigned(150)

	_, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Contains(err.Error(), "150")
}

// === RemoveRange ===

func (s *RangeServiceSuite) TestRemoveRange() {
	created, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)

	s.Require().NoError(s.service.RemoveRange(s.ctx, created.ID))

	_, err = s.ranges.FindByID(s.ctx, created.ID)
	s.Require().Error(err)
}

func (s *RangeServiceSuite) TestRemoveRangeNotFound() {
	err := s.service.RemoveRange(s.ctx, id.NewRangeID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RangeServiceSuite) TestRemoveRangeInUse() {
	created, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)
	s.seedAssigned(150)

	err = s.service.RemoveRange(s.ctx, created.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *RangeServiceSuite) TestRemoveRangeBlockedByRetiredNumber() {
	// A previously held number still counts as usage: renewal conservation
	// may point back into this range.
	created, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)
	s.seedRetired(150)

	err = s.service.RemoveRange(s.ctx, created.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// === Stats and availability ===

func (s *RangeServiceSuite) TestListWithStats() {
	_, err := s.service.AddRange(s.ctx, 100, 109, "admin-1")
	s.Require().NoError(err)
	s.seedAssigned(103)
	s.seedAssigned(104)
	s.seedAssigned(108)

	stats, err := s.service.ListWithStats(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 1)

	s.Equal(int64(10), stats[0].Total)
	s.Equal(int64(3), stats[0].Used)
	s.Equal(int64(7), stats[0].Available)
	s.Equal([]models.Interval{
		{Start: 100, End: 102},
		{Start: 105, End: 107},
		{Start: 109, End: 109},
	}, stats[0].Free)
}

func (s *RangeServiceSuite) TestAvailableNumbersAscendingAcrossRanges() {
	_, err := s.service.AddRange(s.ctx, 200, 202, "admin-1")
	s.Require().NoError(err)
	_, err = s.service.AddRange(s.ctx, 100, 102, "admin-1")
	s.Require().NoError(err)
	s.seedAssigned(101)

	available, err := s.service.AvailableNumbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int64{100, 102, 200, 201, 202}, available)
}

func (s *RangeServiceSuite) TestIsNumberConfigured() {
	_, err := s.service.AddRange(s.ctx, 100, 199, "admin-1")
	s.Require().NoError(err)

	configured, err := s.service.IsNumberConfigured(s.ctx, 150)
	s.Require().NoError(err)
	s.True(configured)

	configured, err = s.service.IsNumberConfigured(s.ctx, 250)
	s.Require().NoError(err)
	s.False(configured)
}

func (s *RangeServiceSuite) TestValidateConfigured() {
	_, err := s.service.AddRange(s.ctx, 100, 104, "admin-1")
	s.Require().NoError(err)
	_, err = s.service.AddRange(s.ctx, 107, 110, "admin-1")
	s.Require().NoError(err)

	outside, err := s.service.ValidateConfigured(s.ctx, 103, 108)
	s.Require().NoError(err)
	s.Equal([]int64{105, 106}, outside)
}
