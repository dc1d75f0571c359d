package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bundlemart/bundlemart-api/internal/domain/bundle"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/middleware"
	"github.com/bundlemart/bundlemart-api/internal/pkg/fulfillment"
	"github.com/bundlemart/bundlemart-api/internal/pkg/response"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
	"github.com/bundlemart/bundlemart-api/internal/pkg/validator"
)

type Handler struct {
	service *Orchestrator
}

func NewHandler(service *Orchestrator) *Handler {
	return &Handler{service: service}
}

type placeOrderRequest struct {
	BundleID  string `json:"bundle_id" validate:"required,uuid"`
	Recipient string `json:"recipient" validate:"required,msisdn"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req placeOrderRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	bundleID, err := uuid.Parse(req.BundleID)
	if err != nil {
		response.BadRequest(w, "invalid bundle id")
		return
	}

	o, err := h.service.PlaceOrder(r.Context(), userID, bundleID, req.Recipient, req.Quantity)
	if err != nil {
		h.placeError(w, err)
		return
	}

	response.Created(w, o)
}

func (h *Handler) placeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bundle.ErrNotFound):
		response.NotFound(w, "bundle not found")
	case errors.Is(err, bundle.ErrNotActive):
		response.Error(w, http.StatusUnprocessableEntity, "BUNDLE_INACTIVE", "bundle is not available")
	case errors.Is(err, bundle.ErrInsufficientStock):
		response.Error(w, http.StatusConflict, "OUT_OF_STOCK", "not enough stock to fulfil this order")
	case errors.Is(err, bundle.ErrInvalidQuantity):
		response.BadRequest(w, "quantity must be positive")
	case errors.Is(err, ErrInvalidRecipient):
		response.BadRequest(w, "recipient number is invalid")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "wallet balance cannot cover this order")
	case errors.Is(err, wallet.ErrUserNotApproved):
		response.Forbidden(w, "account is not approved for transactions")
	case errors.Is(err, fulfillment.ErrRejected):
		var rej *fulfillment.RejectionError
		msg := "fulfillment provider declined the order, stock released, no charge applied"
		if errors.As(err, &rej) && rej.Reason != "" {
			msg = "provider declined: " + rej.Reason
		}
		response.Error(w, http.StatusBadGateway, "PROVIDER_REJECTED", msg)
	case errors.Is(err, retry.ErrStoreUnavailable):
		response.ServiceUnavailable(w, 5)
	default:
		log.Error().Err(err).Msg("Failed to place order")
		response.InternalError(w)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	o, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "order not found")
			return
		}
		response.InternalError(w)
		return
	}
	if o.UserID != userID {
		response.NotFound(w, "order not found")
		return
	}

	response.OK(w, o)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"orders": orders})
}

// ListAll is the staff view across all users
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := Status(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		response.BadRequest(w, "invalid status filter")
		return
	}

	orders, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"orders": orders})
}

// UpdateStatus applies an editor transition to an order
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	actorRole := middleware.GetRole(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid order id")
		return
	}

	var req updateStatusRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), orderID, Status(req.Status), actorID, actorRole, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "order not found")
		case errors.Is(err, ErrSameStatus):
			response.Conflict(w, "order already has this status")
		case errors.Is(err, ErrInvalidTransition):
			response.Error(w, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error())
		case errors.Is(err, ErrStaleOrder):
			response.Conflict(w, "order changed concurrently, reload and retry")
		case errors.Is(err, bundle.ErrStockInconsistent):
			log.Error().Err(err).Str("order_id", orderID.String()).Msg("Stock inconsistency during order transition")
			response.InternalError(w)
		default:
			log.Error().Err(err).Str("order_id", orderID.String()).Msg("Failed to update order status")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, o)
}

// Routes mounts order endpoints; staff routes are gated on the order-status
// capability.
func (h *Handler) Routes(authMiddleware, orderStaff func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Place)
	r.Get("/", h.ListMine)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(orderStaff)
		r.Get("/all", h.ListAll)
		r.Patch("/{id}/status", h.UpdateStatus)
	})

	return r
}
