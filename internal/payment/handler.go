package payment

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tessera/internal/membership/models"
	"tessera/internal/platform/middleware"
	"tessera/internal/transport/http/shared"
	id "tessera/pkg/domain"
	dErrors "tessera/pkg/domain-errors"
)

// Handler exposes the provider webhook. The route is not behind user auth;
// the provider authenticates with a shared secret header instead.
type Handler struct {
	logger  *slog.Logger
	service *Service
	secret  string
}

func NewHandler(service *Service, logger *slog.Logger, secret string) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		secret:  secret,
	}
}

// Register registers the webhook route with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/webhooks/payment", h.handleWebhook)
}

type webhookRequest struct {
	UserID     string `json:"user_id"`
	ProviderID string `json:"provider_id"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	secret := r.Header.Get("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		h.logger.WarnContext(ctx, "webhook secret mismatch",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook secret"))
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid webhook payload",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return
	}

	switch req.Status {
	case "started":
		err = h.service.Started(ctx, userID, req.ProviderID)
	default:
		err = h.service.Completed(ctx, userID, req.ProviderID, models.PaymentStatus(req.Status), req.Amount)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "webhook rejected",
			"request_id", requestID,
			"status", req.Status,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
