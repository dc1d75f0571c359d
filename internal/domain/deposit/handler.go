package deposit

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/middleware"
	"github.com/bundlemart/bundlemart-api/internal/pkg/paystack"
	"github.com/bundlemart/bundlemart-api/internal/pkg/response"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
)

type Handler struct {
	service       *Service
	webhookSecret string
}

func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

type initiateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Initiate opens a deposit and returns the gateway authorization URL
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req initiateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	result, err := h.service.Initiate(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount):
			response.BadRequest(w, "amount must be positive")
		case errors.Is(err, wallet.ErrUserNotApproved):
			response.Forbidden(w, "account is not approved for transactions")
		case errors.Is(err, wallet.ErrDuplicateReference):
			response.Conflict(w, "deposit reference already exists")
		default:
			log.Error().Err(err).Msg("Failed to initiate deposit")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

// Webhook receives gateway event deliveries. The signature is checked against
// the exact raw body; after that the response is always 200 so the gateway
// never retries an event we have already absorbed.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "unable to read request body")
		return
	}

	signature := r.Header.Get(paystack.SignatureHeader)
	if !paystack.VerifySignature(raw, signature, h.webhookSecret) {
		log.Warn().Str("ip", r.RemoteAddr).Msg("Webhook signature verification failed")
		response.Unauthorized(w, "invalid signature")
		return
	}

	event, err := paystack.ParseWebhook(raw)
	if err != nil {
		log.Warn().Err(err).Msg("Unparseable webhook payload")
		response.OK(w, map[string]interface{}{"received": true})
		return
	}

	if event.Event != paystack.EventChargeSuccess {
		response.OK(w, map[string]interface{}{"received": true})
		return
	}

	result, err := h.service.ProcessSuccessfulPayment(r.Context(), event.Reference, SourceWebhook,
		event.Amount, map[string]interface{}{
			"gateway_fees": event.Fees.String(),
		})
	if err != nil {
		// Reconciliation failures are logged and retried by the poller; the
		// gateway still gets its 200.
		log.Error().Err(err).Str("reference", event.Reference).Msg("Webhook reconciliation failed")
		response.OK(w, map[string]interface{}{"received": true})
		return
	}

	response.OK(w, map[string]interface{}{"received": true, "outcome": result.Outcome})
}

// Verify is the redirect-return endpoint: the user lands here after paying,
// and we confirm with the gateway rather than trusting the redirect.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		reference = chi.URLParam(r, "reference")
	}
	if reference == "" {
		response.BadRequest(w, "reference is required")
		return
	}

	result, err := h.service.VerifyAndProcess(r.Context(), reference, SourceRedirect)
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentFailed):
			response.Error(w, http.StatusPaymentRequired, "PAYMENT_NOT_SUCCESSFUL", "payment has not been completed")
		case errors.Is(err, ErrAmountMismatch):
			response.Conflict(w, "payment amount does not match the deposit")
		case errors.Is(err, retry.ErrStoreUnavailable):
			response.ServiceUnavailable(w, 5)
		default:
			log.Error().Err(err).Str("reference", reference).Msg("Deposit verification failed")
			response.InternalError(w)
		}
		return
	}

	switch result.Outcome {
	case OutcomeNotFound:
		response.NotFound(w, "deposit not found")
	case OutcomeBeingProcessed:
		response.OK(w, map[string]interface{}{
			"reference":          result.Reference,
			"is_being_processed": true,
			"message":            "deposit is being processed, check back shortly",
		})
	default:
		response.OK(w, result)
	}
}

// Status returns the current state of a deposit by reference
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	reference := chi.URLParam(r, "reference")
	txn, err := h.service.GetByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "deposit not found")
			return
		}
		response.InternalError(w)
		return
	}
	if txn.UserID != userID {
		response.NotFound(w, "deposit not found")
		return
	}

	response.OK(w, txn)
}

// Routes mounts the deposit endpoints. The webhook and verify endpoints are
// unauthenticated: the webhook authenticates by signature, and verify is hit
// by a browser redirect before any session exists.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/webhook", h.Webhook)
	r.Get("/verify", h.Verify)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Initiate)
		r.Get("/{reference}", h.Status)
	})

	return r
}
