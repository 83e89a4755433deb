package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/cardrange/models"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
	"tessera/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks

// Service defines the interface for range administration.
type Service interface {
	AddRange(ctx context.Context, start, end int64, createdBy string) (*models.Range, error)
	RemoveRange(ctx context.Context, rangeID id.RangeID) error
	ListWithStats(ctx context.Context) ([]*models.Stats, error)
}

// Handler exposes the range admin endpoints.
type Handler struct {
	logger       *slog.Logger
	ranges       Service
	jwtValidator middleware.JWTValidator
}

// New creates a new range Handler.
func New(ranges Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ranges:       ranges,
		jwtValidator: jwtValidator,
	}
}

// Register registers the range routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.jwtValidator, h.logger))
		r.Post("/admin/ranges", h.handleAddRange)
		r.Delete("/admin/ranges/{rangeID}", h.handleRemoveRange)
		r.Get("/admin/ranges", h.handleListRanges)
	})
}

type addRangeRequest struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (h *Handler) handleAddRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req addRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid add range request",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.ranges.AddRange(ctx, req.Start, req.End, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "failed to add range", err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRemoveRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rangeID, err := id.ParseRangeID(chi.URLParam(r, "rangeID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid range id"))
		return
	}

	if err := h.ranges.RemoveRange(ctx, rangeID); err != nil {
		h.writeServiceError(ctx, w, "failed to remove range", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListRanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.ranges.ListWithStats(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list ranges", err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]any{"ranges": stats})
}

// writeServiceError logs at the right level and preserves coded errors while
// masking internals.
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
