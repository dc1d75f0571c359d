package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/user"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/middleware"
	"github.com/bundlemart/bundlemart-api/internal/pkg/response"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
	"github.com/bundlemart/bundlemart-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletAdjustRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type" validate:"omitempty,oneof=credit reward refund"`
	Reference string          `json:"reference" validate:"max=100"`
	Reason    string          `json:"reason" validate:"required,max=500"`
}

func (h *Handler) creditType(raw string) wallet.TransactionType {
	switch raw {
	case "reward":
		return wallet.TypeReward
	case "refund":
		return wallet.TypeRefund
	default:
		return wallet.TypeCredit
	}
}

func (h *Handler) CreditWallet(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	var req walletAdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	txn, err := h.service.CreditWallet(r.Context(), actorID, targetID,
		req.Amount, h.creditType(req.Type), req.Reference, req.Reason)
	if err != nil {
		h.walletError(w, err)
		return
	}
	response.OK(w, txn)
}

func (h *Handler) DebitWallet(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	var req walletAdjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	txn, err := h.service.DebitWallet(r.Context(), actorID, targetID, req.Amount, req.Reference, req.Reason)
	if err != nil {
		h.walletError(w, err)
		return
	}
	response.OK(w, txn)
}

func (h *Handler) walletError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount):
		response.BadRequest(w, "invalid amount or transaction type")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Error(w, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", "debit exceeds current balance")
	case errors.Is(err, wallet.ErrUserNotFound):
		response.NotFound(w, "user not found")
	case errors.Is(err, wallet.ErrUserNotApproved):
		response.Forbidden(w, "target account is not approved")
	case errors.Is(err, wallet.ErrDuplicateReference):
		response.Conflict(w, "reference already used with a different amount or type")
	case errors.Is(err, wallet.ErrReferenceConflict):
		response.Conflict(w, "reference already used with a different amount or type")
	case errors.Is(err, retry.ErrStoreUnavailable):
		response.ServiceUnavailable(w, 5)
	default:
		log.Error().Err(err).Msg("Admin wallet adjustment failed")
		response.InternalError(w)
	}
}

func (h *Handler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, h.service.ApproveUser)
}

func (h *Handler) RejectUser(w http.ResponseWriter, r *http.Request) {
	h.decideUser(w, r, h.service.RejectUser)
}

func (h *Handler) decideUser(w http.ResponseWriter, r *http.Request,
	decide func(ctx context.Context, actorID, targetID uuid.UUID) error) {

	actorID := middleware.GetUserID(r.Context())
	targetID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "invalid user id")
		return
	}

	if err := decide(r.Context(), actorID, targetID); err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			response.NotFound(w, "user not found")
		case errors.Is(err, user.ErrAlreadyDecided):
			response.Conflict(w, "registration has already been decided")
		default:
			log.Error().Err(err).Str("user_id", targetID.String()).Msg("User approval decision failed")
			response.InternalError(w)
		}
		return
	}

	response.NoContent(w)
}

func (h *Handler) ListPendingUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.service.ListPendingUsers(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"users": users})
}

type reconcileRequest struct {
	BatchSize int `json:"batch_size" validate:"omitempty,min=1,max=200"`
}

func (h *Handler) ReconcileDeposits(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())

	var req reconcileRequest
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
		if details := validator.Validate(req); details != nil {
			response.ValidationError(w, details)
			return
		}
	}

	credited, checked, err := h.service.ReconcileDeposits(r.Context(), actorID, req.BatchSize)
	if err != nil {
		if errors.Is(err, retry.ErrStoreUnavailable) {
			response.ServiceUnavailable(w, 5)
			return
		}
		log.Error().Err(err).Msg("Admin deposit reconciliation failed")
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"checked": checked, "credited": credited})
}

func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "targetID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.AuditTrail(r.Context(), targetID, limit)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"entries": entries})
}

// Routes mounts the staff endpoints, each group gated on its capability
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapability(func(role string) bool {
			return user.Role(role).CanCreditWallet()
		}))
		r.Post("/wallets/{userID}/credit", h.CreditWallet)
		r.Post("/wallets/{userID}/debit", h.DebitWallet)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapability(func(role string) bool {
			return user.Role(role).CanApproveUsers()
		}))
		r.Get("/users/pending", h.ListPendingUsers)
		r.Post("/users/{userID}/approve", h.ApproveUser)
		r.Post("/users/{userID}/reject", h.RejectUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapability(func(role string) bool {
			return user.Role(role).CanReconcileDeposits()
		}))
		r.Post("/deposits/reconcile", h.ReconcileDeposits)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireCapability(func(role string) bool {
			return user.Role(role).CanApproveUsers()
		}))
		r.Get("/audit/{targetID}", h.AuditTrail)
	})

	return r
}
