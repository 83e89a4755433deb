package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tessera/internal/cardrange/handler/mocks"
	"tessera/internal/cardrange/models"
	"tessera/internal/platform/middleware"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/testutil"
)

// stubValidator resolves fixed tokens to fixed claims.
type stubValidator struct {
	claims map[string]*middleware.JWTClaims
}

func (v stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type RangeHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	adminID string
}

func TestRangeHandlerSuite(t *testing.T) {
	suite.Run(t, new(RangeHandlerSuite))
}

func (s *RangeHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.adminID = id.NewUserID().String()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := stubValidator{claims: map[string]*middleware.JWTClaims{
		"admin-token":  {UserID: s.adminID, Role: middleware.RoleAdmin},
		"member-token": {UserID: id.NewUserID().String(), Role: "member"},
	}}

	s.router = chi.NewRouter()
	New(s.service, logger, validator).Register(s.router)
}

func (s *RangeHandlerSuite) asAdmin(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer admin-token")
	return req
}

// === auth ===

func (s *RangeHandlerSuite) TestRequiresToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/ranges")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *RangeHandlerSuite) TestRequiresAdminRole() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/admin/ranges")
	req.Header.Set("Authorization", "Bearer member-token")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

// === add ===

func (s *RangeHandlerSuite) TestAddRange() {
	created := &models.Range{
		ID:        id.NewRangeID(),
		Start:     100,
		End:       199,
		CreatedBy: s.adminID,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	s.service.EXPECT().
		AddRange(gomock.Any(), int64(100), int64(199), s.adminID).
		Return(created, nil)

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/ranges",
		map[string]int64{"start": 100, "end": 199}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "id", created.ID.String())
	testutil.AssertJSONContains(s.T(), rr, "created_by", s.adminID)
}

func (s *RangeHandlerSuite) TestAddRangeMalformedBody() {
	req := s.asAdmin(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/admin/ranges", "{not json"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *RangeHandlerSuite) TestAddRangeOverlapConflict() {
	s.service.EXPECT().
		AddRange(gomock.Any(), int64(100), int64(199), s.adminID).
		Return(nil, dErrors.New(dErrors.CodeConflict, "range overlaps an existing range"))

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/ranges",
		map[string]int64{"start": 100, "end": 199}))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

func (s *RangeHandlerSuite) TestAddRangeMasksInternalErrors() {
	s.service.EXPECT().
		AddRange(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused"))

	req := s.asAdmin(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/ranges",
		map[string]int64{"start": 100, "end": 199}))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	s.NotContains(rr.Body.String(), "connection refused")
}

// === remove ===

func (s *RangeHandlerSuite) TestRemoveRange() {
	rangeID := id.NewRangeID()
	s.service.EXPECT().RemoveRange(gomock.Any(), rangeID).Return(nil)

	req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/ranges/"+rangeID.String()))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
}

func (s *RangeHandlerSuite) TestRemoveRangeInvalidID() {
	req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/ranges/not-a-uuid"))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *RangeHandlerSuite) TestRemoveRangeInUse() {
	rangeID := id.NewRangeID()
	s.service.EXPECT().RemoveRange(gomock.Any(), rangeID).
		Return(dErrors.New(dErrors.CodeConflict, "range has assigned numbers"))

	req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodDelete, "/admin/ranges/"+rangeID.String()))
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
}

// === list ===

func (s *RangeHandlerSuite) TestListRanges() {
	stats := []*models.Stats{{
		Range:     &models.Range{ID: id.NewRangeID(), Start: 100, End: 109},
		Total:     10,
		Used:      3,
		Available: 7,
		Free:      []models.Interval{{Start: 103, End: 109}},
	}}
	s.service.EXPECT().ListWithStats(gomock.Any()).Return(stats, nil)

	req := s.asAdmin(testutil.NewRequest(s.T(), http.MethodGet, "/admin/ranges"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONHasKey(s.T(), rr, "ranges")
	s.Contains(rr.Body.String(), `"available":7`)
}
