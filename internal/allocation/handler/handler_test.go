package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	allocservice "tessera/internal/allocation/service"
	rangeservice "tessera/internal/cardrange/service"
	rangestore "tessera/internal/cardrange/store"
	"tessera/internal/membership/models"
	memstore "tessera/internal/membership/store"
	"tessera/internal/platform/middleware"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/testutil"
)

type stubValidator struct {
	claims map[string]*middleware.JWTClaims
}

func (v stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type AllocationHandlerSuite struct {
	suite.Suite
	router      chi.Router
	memberships *memstore.Memory
	registry    *rangeservice.Service
	now         time.Time
}

func TestAllocationHandlerSuite(t *testing.T) {
	suite.Run(t, new(AllocationHandlerSuite))
}

func (s *AllocationHandlerSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.memberships = memstore.NewMemory()

	registry, err := rangeservice.New(rangestore.NewMemory(), s.memberships,
		rangeservice.WithLogger(logger))
	require.NoError(s.T(), err)
	s.registry = registry

	allocation, err := allocservice.New(s.memberships, registry,
		allocservice.WithLogger(logger))
	require.NoError(s.T(), err)

	validator := stubValidator{claims: map[string]*middleware.JWTClaims{
		"admin-token": {UserID: id.NewUserID().String(), Role: middleware.RoleAdmin},
	}}

	s.router = chi.NewRouter()
	New(allocation, logger, validator).Register(s.router)
}

func (s *AllocationHandlerSuite) asAdmin(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer admin-token")
	return req
}

// seedPaid creates a paid membership awaiting a number.
func (s *AllocationHandlerSuite) seedPaid() id.UserID {
	userID := id.NewUserID()
	m := models.NewPending(id.NewMembershipID(), userID, 2500, s.now)
	m.PaymentStatus = models.PaymentSucceeded
	s.Require().NoError(s.memberships.Create(context.Background(), m))
	return userID
}

func (s *AllocationHandlerSuite) addRange(start, end int64) {
	_, err := s.registry.AddRange(context.Background(), start, end, "admin-1")
	s.Require().NoError(err)
}

func (s *AllocationHandlerSuite) TestAssignSingle() {
	s.addRange(100, 199)
	userID := s.seedPaid()

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign",
		map[string]string{"user_id": userID.String(), "number": "142"}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "number", "142")
	testutil.AssertJSONContains(s.T(), rr, "user_id", userID.String())
}

func (s *AllocationHandlerSuite) TestAssignSingleRequiresToken() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign",
		map[string]string{"user_id": id.NewUserID().String(), "number": "142"})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *AllocationHandlerSuite) TestAssignSingleBadNumber() {
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign",
		map[string]string{"user_id": id.NewUserID().String(), "number": "12ab"}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *AllocationHandlerSuite) TestAssignSingleOutsideRanges() {
	userID := s.seedPaid()

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign",
		map[string]string{"user_id": userID.String(), "number": "999"}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "failed_precondition")
}

func (s *AllocationHandlerSuite) TestAssignBatch() {
	s.addRange(100, 199)
	first := s.seedPaid()

	body := map[string]any{
		"prefix":   "",
		"start":    "100",
		"end":      "102",
		"user_ids": []string{first.String()},
	}
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign-batch", body))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[allocservice.BatchResult](s.T(), rr)
	s.Require().Len(resp.Assigned, 1)
	s.Equal(id.CardNumber("100"), resp.Assigned[0].Number)
	s.Equal([]id.CardNumber{"101", "102"}, resp.Remaining)
}

func (s *AllocationHandlerSuite) TestAssignBatchDedupesUserIDs() {
	s.addRange(100, 199)
	userID := s.seedPaid()

	// The same ID twice, once with stray whitespace, collapses to one assignment.
	body := map[string]any{
		"start":    "100",
		"end":      "101",
		"user_ids": []string{userID.String(), " " + userID.String() + " "},
	}
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign-batch", body))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[allocservice.BatchResult](s.T(), rr)
	s.Len(resp.Assigned, 1)
}

func (s *AllocationHandlerSuite) TestAssignBatchEmptyUserIDs() {
	body := map[string]any{"start": "100", "end": "102", "user_ids": []string{" "}}
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign-batch", body))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *AllocationHandlerSuite) TestAssignAuto() {
	s.addRange(100, 199)
	userID := s.seedPaid()

	body := map[string]any{"user_ids": []string{userID.String()}}
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign-auto", body))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[allocservice.AutoResult](s.T(), rr)
	s.Require().Len(resp.Assigned, 1)
	s.Equal(id.CardNumber("100"), resp.Assigned[0].Number)
	s.Equal(99, resp.AvailableCount)
}

func (s *AllocationHandlerSuite) TestAssignAutoExhausted() {
	userID := s.seedPaid()

	body := map[string]any{"user_ids": []string{userID.String()}}
	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/cards/assign-auto", body))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, "exhausted")
}
