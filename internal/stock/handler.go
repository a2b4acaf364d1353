package stock

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
	"github.com/mandi-erp/mandi/internal/shared"
)

// Handler wires HTTP endpoints for the stock mirror.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.listMovements)
	r.Get("/{productID}/card", h.card)
	r.Post("/{productID}/adjust", h.adjust)
}

type adjustRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Date     string          `json:"date"`
	Note     string          `json:"note" validate:"max=255"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Adjust(r.Context(), AdjustInput{ProductID: productID, Quantity: req.Quantity, Date: date, Note: req.Note})
	if err != nil {
		h.logger.Error("stock adjust failed", slog.Int64("product_id", productID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) card(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	window, err := httpx.QueryWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Card(r.Context(), productID, window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "entries": entries})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	window, err := httpx.QueryWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.Movements(r.Context(), MovementFilter{
		ProductID:     productID,
		ReferenceType: r.URL.Query().Get("reference_type"),
		Direction:     Direction(r.URL.Query().Get("type")),
		Window:        window,
		Limit:         500,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}
