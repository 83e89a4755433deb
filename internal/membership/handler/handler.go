package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/membership/classifier"
	"tessera/internal/membership/models"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/requestcontext"
)

// Service defines the interface for membership lifecycle operations.
type Service interface {
	CreateForPayment(ctx context.Context, userID id.UserID) (*models.Membership, error)
	RenewWithConservation(ctx context.Context, userID id.UserID) (*models.Membership, error)
	Cancel(ctx context.Context, membershipID id.MembershipID, adminID string) (*models.Membership, error)
	Status(ctx context.Context, userID id.UserID) (classifier.Result, error)
}

// Handler exposes the member-facing lifecycle endpoints plus the admin
// cancel.
type Handler struct {
	logger       *slog.Logger
	memberships  Service
	jwtValidator middleware.JWTValidator
}

// New creates a new membership Handler.
func New(memberships Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		memberships:  memberships,
		jwtValidator: jwtValidator,
	}
}

// Register registers the membership routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/membership/status", h.handleStatus)
		r.Post("/membership", h.handleCreate)
		r.Post("/membership/renew", h.handleRenew)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.jwtValidator, h.logger))
		r.Post("/admin/memberships/{membershipID}/cancel", h.handleCancel)
	})
}

type statusResponse struct {
	State       string `json:"state"`
	CanPurchase bool   `json:"can_purchase"`
	Message     string `json:"message"`
}

type membershipResponse struct {
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	Number        *string `json:"number,omitempty"`
	StartDate     *string `json:"start_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	result, err := h.memberships.Status(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to compute status", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, statusResponse{
		State:       string(result.State),
		CanPurchase: result.CanPurchase,
		Message:     result.Message,
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	m, err := h.memberships.CreateForPayment(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create membership", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toMembershipResponse(m))
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.authedUser(ctx, w)
	if !ok {
		return
	}

	m, err := h.memberships.RenewWithConservation(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to renew membership", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toMembershipResponse(m))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	membershipID, err := id.ParseMembershipID(chi.URLParam(r, "membershipID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid membership id"))
		return
	}

	m, err := h.memberships.Cancel(ctx, membershipID, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to cancel membership", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toMembershipResponse(m))
}

func (h *Handler) authedUser(ctx context.Context, w http.ResponseWriter) (id.UserID, bool) {
	raw := middleware.GetUserID(ctx)
	if raw == "" {
		// Should never happen behind RequireAuth.
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.UserID{}, false
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid token subject"))
		return id.UserID{}, false
	}
	return userID, true
}

func toMembershipResponse(m *models.Membership) membershipResponse {
	resp := membershipResponse{
		ID:            m.ID.String(),
		Status:        string(m.Status),
		PaymentStatus: string(m.PaymentStatus),
	}
	if m.Number != nil {
		n := string(*m.Number)
		resp.Number = &n
	}
	if m.StartDate != nil {
		s := m.StartDate.Format("2006-01-02")
		resp.StartDate = &s
	}
	if m.EndDate != nil {
		e := m.EndDate.Format("2006-01-02")
		resp.EndDate = &e
	}
	return resp
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, msg))
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestID,
		"error", err.Error(),
	)
	shared.WriteError(w, err)
}
