package bundle

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bundlemart/bundlemart-api/internal/middleware"
	"github.com/bundlemart/bundlemart-api/internal/pkg/response"
	"github.com/bundlemart/bundlemart-api/internal/pkg/validator"
)

type Handler struct {
	engine *StockEngine
}

func NewHandler(engine *StockEngine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bundles, err := h.engine.ListActive(r.Context())
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"bundles": bundles})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid bundle id")
		return
	}
	b, err := h.engine.Get(r.Context(), id)
	if err != nil {
		response.NotFound(w, "bundle not found")
		return
	}
	response.OK(w, b)
}

type restockRequest struct {
	Quantity int    `json:"quantity" validate:"required,gte=1"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

type adjustRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid bundle id")
		return
	}

	var req restockRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	actorID := middleware.GetUserID(r.Context())
	if err := h.engine.Restock(r.Context(), id, req.Quantity, actorID, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "bundle not found")
		default:
			response.InternalError(w)
		}
		return
	}

	b, err := h.engine.Get(r.Context(), id)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, b)
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid bundle id")
		return
	}

	var req adjustRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		response.ValidationError(w, fieldErrors)
		return
	}

	actorID := middleware.GetUserID(r.Context())
	if err := h.engine.Adjust(r.Context(), id, req.Delta, actorID, req.Reason); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(w, "bundle not found")
		case errors.Is(err, ErrInvalidAdjustment):
			response.Conflict(w, "adjustment would drive stock negative")
		case errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(w, "delta must be non-zero")
		default:
			response.InternalError(w)
		}
		return
	}

	b, err := h.engine.Get(r.Context(), id)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, b)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid bundle id")
		return
	}
	entries, err := h.engine.History(r.Context(), id, 50)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"history": entries})
}

// Routes mounts catalog routes; stock mutation routes are gated on the
// stock-management capability.
func (h *Handler) Routes(authMiddleware, stockAdmin func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(stockAdmin)
		r.Post("/{id}/restock", h.Restock)
		r.Post("/{id}/adjust", h.Adjust)
		r.Get("/{id}/history", h.History)
	})
	return r
}
