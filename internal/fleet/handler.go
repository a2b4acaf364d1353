package fleet

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
	"github.com/mandi-erp/mandi/internal/shared"
)

// Handler wires HTTP endpoints for vehicle inventory.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs fleet handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers vehicle inventory routes under /fleet/{vehicleID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.inventory)
	r.Get("/movements", h.movements)
	r.Get("/load-summary", h.loadSummary)
	r.Post("/load", h.load)
	r.Post("/deduct", h.deduct)
	r.Post("/adjust", h.adjust)
}

type movementRequest struct {
	ProductID     int64           `json:"product_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	Date          string          `json:"date"`
	Notes         string          `json:"notes" validate:"max=255"`
	MirrorProduct bool            `json:"mirror_product"`
}

func (h *Handler) decode(r *http.Request) (int64, movementRequest, error) {
	var req movementRequest
	vehicleID, err := httpx.IDParam(r, "vehicleID")
	if err != nil {
		return 0, req, err
	}
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		return 0, req, err
	}
	return vehicleID, req, nil
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) {
	vehicleID, req, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Load(r.Context(), LoadInput{VehicleID: vehicleID, ProductID: req.ProductID, Quantity: req.Quantity, Date: date, Notes: req.Notes})
	if err != nil {
		h.logger.Error("vehicle load failed", slog.Int64("vehicle_id", vehicleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) deduct(w http.ResponseWriter, r *http.Request) {
	vehicleID, req, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Deduct(r.Context(), DeductInput{
		VehicleID:     vehicleID,
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Date:          date,
		Notes:         req.Notes,
		MirrorProduct: req.MirrorProduct,
	})
	if err != nil {
		h.logger.Error("vehicle deduct failed", slog.Int64("vehicle_id", vehicleID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	vehicleID, req, err := h.decode(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Adjust(r.Context(), AdjustInput{VehicleID: vehicleID, ProductID: req.ProductID, Quantity: req.Quantity, Date: date})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := httpx.IDParam(r, "vehicleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Inventory(r.Context(), vehicleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vehicle_id": vehicleID, "items": items})
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := httpx.IDParam(r, "vehicleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.Movements(r.Context(), MovementFilter{VehicleID: vehicleID, ProductID: productID, Limit: 500})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": items})
}

func (h *Handler) loadSummary(w http.ResponseWriter, r *http.Request) {
	vehicleID, err := httpx.IDParam(r, "vehicleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.LoadSummary(r.Context(), vehicleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}
