package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/allocation/service"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	pkgstrings "tessera/pkg/platform/strings"
)

// Service defines the interface for card assignment operations.
type Service interface {
	AssignSingle(ctx context.Context, userID id.UserID, number id.CardNumber) (*service.Assignment, error)
	AssignBatch(ctx context.Context, prefix, start, end string, userIDs []id.UserID) (*service.BatchResult, error)
	AssignAuto(ctx context.Context, userIDs []id.UserID) (*service.AutoResult, error)
}

// Handler exposes the card assignment admin endpoints.
type Handler struct {
	logger       *slog.Logger
	allocation   Service
	jwtValidator middleware.JWTValidator
}

// New creates a new allocation Handler.
func New(allocation Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		allocation:   allocation,
		jwtValidator: jwtValidator,
	}
}

// Register registers the assignment routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.jwtValidator, h.logger))
		r.Post("/admin/cards/assign", h.handleAssignSingle)
		r.Post("/admin/cards/assign-batch", h.handleAssignBatch)
		r.Post("/admin/cards/assign-auto", h.handleAssignAuto)
	})
}

type assignSingleRequest struct {
	UserID string `json:"user_id"`
	Number string `json:"number"`
}

func (h *Handler) handleAssignSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assignSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	number, err := id.ParseCardNumber(req.Number)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid card number"))
		return
	}

	assigned, err := h.allocation.AssignSingle(ctx, userID, number)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to assign card", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, assigned)
}

type assignBatchRequest struct {
	Prefix  string   `json:"prefix"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	UserIDs []string `json:"user_ids"`
}

func (h *Handler) handleAssignBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assignBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userIDs, err := parseUserIDs(req.UserIDs)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.allocation.AssignBatch(ctx, req.Prefix, req.Start, req.End, userIDs)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to assign batch", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

type assignAutoRequest struct {
	UserIDs []string `json:"user_ids"`
}

func (h *Handler) handleAssignAuto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assignAutoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	userIDs, err := parseUserIDs(req.UserIDs)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.allocation.AssignAuto(ctx, userIDs)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to auto-assign", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

// parseUserIDs validates the request list. Duplicates are collapsed up front;
// FIFO ordering downstream works off membership age, not request order.
func parseUserIDs(raw []string) ([]id.UserID, error) {
	raw = pkgstrings.DedupeIDs(raw)
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user_ids is required")
	}
	userIDs := make([]id.UserID, 0, len(raw))
	for _, s := range raw {
		userID, err := id.ParseUserID(s)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "invalid user id %q", s)
		}
		userIDs = append(userIDs, userID)
	}
	return userIDs, nil
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
