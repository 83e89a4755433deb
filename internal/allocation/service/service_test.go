package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	rangeservice "tessera/internal/cardrange/service"
	rangestore "tessera/internal/cardrange/store"
	"tessera/internal/membership/models"
	memstore "tessera/internal/membership/store"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/requestcontext"
)

type AllocationSuite struct {
	suite.Suite
	ctx         context.Context
	now         time.Time
	memberships *memstore.Memory
	service     *Service
	registry    *rangeservice.Service
}

func TestAllocationSuite(t *testing.T) {
	suite.Run(t, new(AllocationSuite))
}

func (s *AllocationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.memberships = memstore.NewMemory()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := rangeservice.New(rangestore.NewMemory(), s.memberships,
		rangeservice.WithLogger(logger))
	require.NoError(s.T(), err)
	s.registry = registry

	svc, err := New(s.memberships, registry, WithLogger(logger))
	require.NoError(s.T(), err)
	s.service = svc
}

func (s *AllocationSuite) addRange(start, end int64) {
	_, err := s.registry.AddRange(s.ctx, start, end, "admin-1")
	s.Require().NoError(err)
}

// seedPaid creates a paid membership awaiting a number. CreatedAt offsets
// order the FIFO queue.
func (s *AllocationSuite) seedPaid(offset time.Duration) *models.Membership {
	m := models.NewPending(id.NewMembershipID(), id.NewUserID(), 2500, s.now.Add(offset))
	m.PaymentStatus = models.PaymentSucceeded
	s.Require().NoError(s.memberships.Create(s.ctx, m))
	return m
}

func (s *AllocationSuite) numberOf(userID id.UserID, result []Assignment) id.CardNumber {
	for _, a := range result {
		if a.UserID == userID {
			return a.Number
		}
	}
	s.T().Fatalf("user %s not assigned", userID)
	return ""
}

// === AssignSingle ===

func (s *AllocationSuite) TestAssignSingle() {
	s.addRange(100, 199)
	m := s.seedPaid(0)

	assigned, err := s.service.AssignSingle(s.ctx, m.UserID, id.CardNumber("150"))
	s.Require().NoError(err)
	s.Equal(m.UserID, assigned.UserID)
	s.Equal(id.CardNumber("150"), assigned.Number)

	stored, err := s.memberships.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
	s.Require().NotNil(stored.Number)
	s.Equal(id.CardNumber("150"), *stored.Number)
	s.Require().NotNil(stored.EndDate)
	s.Equal(s.now.Add(models.Period), *stored.EndDate)
}

func (s *AllocationSuite) TestAssignSingleRejectsUsedNumber() {
	s.addRange(100, 199)
	first := s.seedPaid(0)
	second := s.seedPaid(time.Minute)

	_, err := s.service.AssignSingle(s.ctx, first.UserID, id.CardNumber("150"))
	s.Require().NoError(err)

	_, err = s.service.AssignSingle(s.ctx, second.UserID, id.CardNumber("150"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AllocationSuite) TestAssignSingleRejectsUnconfiguredNumber() {
	s.addRange(100, 199)
	m := s.seedPaid(0)

	_, err := s.service.AssignSingle(s.ctx, m.UserID, id.CardNumber("500"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))
}

func (s *AllocationSuite) TestAssignSingleRequiresEligibleMembership() {
	s.addRange(100, 199)

	_, err := s.service.AssignSingle(s.ctx, id.NewUserID(), id.CardNumber("150"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AllocationSuite) TestAssignSingleRejectsMalformedNumber() {
	_, err := s.service.AssignSingle(s.ctx, id.NewUserID(), id.CardNumber("12ab"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// === AssignBatch ===

func (s *AllocationSuite) TestAssignBatchFIFO() {
	s.addRange(100, 199)
	third := s.seedPaid(2 * time.Minute)
	first := s.seedPaid(0)
	second := s.seedPaid(time.Minute)

	result, err := s.service.AssignBatch(s.ctx, "", "100", "102",
		[]id.UserID{third.UserID, first.UserID, second.UserID})
	s.Require().NoError(err)
	s.Require().Len(result.Assigned, 3)

	// Oldest membership gets the lowest number regardless of request order.
	s.Equal(id.CardNumber("100"), s.numberOf(first.UserID, result.Assigned))
	s.Equal(id.CardNumber("101"), s.numberOf(second.UserID, result.Assigned))
	s.Equal(id.CardNumber("102"), s.numberOf(third.UserID, result.Assigned))
}

func (s *AllocationSuite) TestAssignBatchSkipsUsedAndReportsRemaining() {
	s.addRange(100, 199)
	holder := s.seedPaid(0)
	_, err := s.service.AssignSingle(s.ctx, holder.UserID, id.CardNumber("101"))
	s.Require().NoError(err)

	m := s.seedPaid(time.Minute)
	result, err := s.service.AssignBatch(s.ctx, "", "100", "103", []id.UserID{m.UserID})
	s.Require().NoError(err)

	s.Require().Len(result.Assigned, 1)
	s.Equal(id.CardNumber("100"), result.Assigned[0].Number)
	s.Equal([]id.CardNumber{"101"}, result.Skipped)
	s.Equal([]id.CardNumber{"102", "103"}, result.Remaining)
	s.Empty(result.UsersWithoutCard)
}

func (s *AllocationSuite) TestAssignBatchMoreUsersThanNumbers() {
	s.addRange(100, 199)
	first := s.seedPaid(0)
	second := s.seedPaid(time.Minute)

	result, err := s.service.AssignBatch(s.ctx, "", "100", "100",
		[]id.UserID{first.UserID, second.UserID})
	s.Require().NoError(err)

	s.Require().Len(result.Assigned, 1)
	s.Equal(first.UserID, result.Assigned[0].UserID)
	s.Equal([]id.UserID{second.UserID}, result.UsersWithoutCard)
	s.Empty(result.Remaining)
}

func (s *AllocationSuite) TestAssignBatchRejectsUnconfiguredCandidates() {
	s.addRange(100, 102)
	m := s.seedPaid(0)

	_, err := s.service.AssignBatch(s.ctx, "", "100", "105", []id.UserID{m.UserID})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeFailedPrecondition))

	// All-or-nothing: nothing was assigned.
	stored, err := s.memberships.FindByID(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Nil(stored.Number)
}

func (s *AllocationSuite) TestAssignBatchPrefixAndPadding() {
	s.addRange(9001, 9003)
	first := s.seedPaid(0)
	second := s.seedPaid(time.Minute)

	result, err := s.service.AssignBatch(s.ctx, "9", "001", "002",
		[]id.UserID{first.UserID, second.UserID})
	s.Require().NoError(err)
	s.Require().Len(result.Assigned, 2)

	s.Equal(id.CardNumber("9001"), s.numberOf(first.UserID, result.Assigned))
	s.Equal(id.CardNumber("9002"), s.numberOf(second.UserID, result.Assigned))
}

func (s *AllocationSuite) TestAssignBatchRejectsInvertedBounds() {
	_, err := s.service.AssignBatch(s.ctx, "", "105", "100", nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AllocationSuite) TestAssignBatchIgnoresIneligibleUsers() {
	s.addRange(100, 199)
	paid := s.seedPaid(0)

	unpaid := models.NewPending(id.NewMembershipID(), id.NewUserID(), 2500, s.now)
	s.Require().NoError(s.memberships.Create(s.ctx, unpaid))

	result, err := s.service.AssignBatch(s.ctx, "", "100", "101",
		[]id.UserID{paid.UserID, unpaid.UserID})
	s.Require().NoError(err)

	s.Require().Len(result.Assigned, 1)
	s.Equal(paid.UserID, result.Assigned[0].UserID)
	s.Empty(result.UsersWithoutCard, "users with no assignable membership are not counted as waiting")
}

// === AssignAuto ===

func (s *AllocationSuite) TestAssignAutoDrawsLowestAvailable() {
	s.addRange(100, 199)
	holder := s.seedPaid(0)
	_, err := s.service.AssignSingle(s.ctx, holder.UserID, id.CardNumber("100"))
	s.Require().NoError(err)

	first := s.seedPaid(time.Minute)
	second := s.seedPaid(2 * time.Minute)

	result, err := s.service.AssignAuto(s.ctx, []id.UserID{second.UserID, first.UserID})
	s.Require().NoError(err)
	s.Require().Len(result.Assigned, 2)
	s.Equal(2, result.RequestedCount)
	s.Equal(99, result.AvailableCount)

	s.Equal(id.CardNumber("101"), s.numberOf(first.UserID, result.Assigned))
	s.Equal(id.CardNumber("102"), s.numberOf(second.UserID, result.Assigned))
}

func (s *AllocationSuite) TestAssignAutoPoolSmallerThanRequest() {
	s.addRange(100, 100)
	first := s.seedPaid(0)
	second := s.seedPaid(time.Minute)

	result, err := s.service.AssignAuto(s.ctx, []id.UserID{first.UserID, second.UserID})
	s.Require().NoError(err)

	s.Require().Len(result.Assigned, 1)
	s.Equal(first.UserID, result.Assigned[0].UserID)
	s.Equal([]id.UserID{second.UserID}, result.UsersWithoutCard)
}

func (s *AllocationSuite) TestAssignAutoWithoutRangesIsExhausted() {
	m := s.seedPaid(0)

	_, err := s.service.AssignAuto(s.ctx, []id.UserID{m.UserID})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeExhausted))
}

// === uniqueness under interleaving ===

func (s *AllocationSuite) TestSequentialAssignmentsNeverReuseANumber() {
	s.addRange(100, 109)
	var users []id.UserID
	for i := 0; i < 10; i++ {
		users = append(users, s.seedPaid(time.Duration(i)*time.Second).UserID)
	}

	seen := make(map[id.CardNumber]bool)
	for _, u := range users {
		result, err := s.service.AssignAuto(s.ctx, []id.UserID{u})
		s.Require().NoError(err)
		s.Require().Len(result.Assigned, 1)
		number := result.Assigned[0].Number
		s.False(seen[number], "number %s assigned twice", number)
		seen[number] = true
	}
	s.Len(seen, 10)
}
