package purchasing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
	"github.com/mandi-erp/mandi/internal/shared"
)

// Handler manages purchasing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountPurchases registers /purchases routes.
func (h *Handler) MountPurchases(r chi.Router) {
	r.Get("/", h.listPurchases)
	r.Post("/", h.createPurchase)
	r.Get("/{id}", h.showPurchase)
}

// MountReturns registers /vendor-returns routes.
func (h *Handler) MountReturns(r chi.Router) {
	r.Get("/", h.listReturns)
	r.Post("/", h.createReturn)
	r.Get("/{id}", h.showReturn)
}

// MountPayments registers /vendor-payments routes.
func (h *Handler) MountPayments(r chi.Router) {
	r.Get("/", h.listPayments)
	r.Post("/", h.createPayment)
	r.Get("/{id}", h.showPayment)
	r.Put("/{id}", h.updatePayment)
	r.Delete("/{id}", h.deletePayment)
}

type purchaseRequest struct {
	VendorID  int64       `json:"vendor_id" validate:"required,gt=0"`
	VehicleID *int64      `json:"vehicle_id" validate:"omitempty,gt=0"`
	Date      string      `json:"date"`
	Notes     string      `json:"notes" validate:"max=500"`
	Items     []LineInput `json:"items" validate:"required,min=1,dive"`
}

type returnRequest struct {
	VendorID   int64       `json:"vendor_id" validate:"required,gt=0"`
	VehicleID  *int64      `json:"vehicle_id" validate:"omitempty,gt=0"`
	PurchaseID *int64      `json:"purchase_id" validate:"omitempty,gt=0"`
	Date       string      `json:"date"`
	Notes      string      `json:"notes" validate:"max=500"`
	Items      []LineInput `json:"items" validate:"required,min=1,dive"`
}

type paymentRequest struct {
	VendorID      int64           `json:"vendor_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"payment_method" validate:"max=32"`
	Notes         string          `json:"notes" validate:"max=500"`
}

func (req paymentRequest) input() (PaymentInput, error) {
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		return PaymentInput{}, err
	}
	return PaymentInput{VendorID: req.VendorID, Amount: req.Amount, Date: date, PaymentMethod: req.PaymentMethod, Notes: req.Notes}, nil
}

func listFilter(r *http.Request) (ListFilter, error) {
	vendorID, err := httpx.QueryInt64(r, "vendor_id")
	if err != nil {
		return ListFilter{}, err
	}
	window, err := httpx.QueryWindow(r)
	if err != nil {
		return ListFilter{}, err
	}
	page := httpx.Page(r)
	return ListFilter{VendorID: vendorID, Window: window, Limit: page.PerPage, Offset: page.Offset()}, nil
}

func (h *Handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := httpx.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	purchase, err := h.service.CreatePurchase(r.Context(), CreatePurchaseInput{
		VendorID:       req.VendorID,
		VehicleID:      req.VehicleID,
		Date:           date,
		Notes:          req.Notes,
		Items:          req.Items,
		IdempotencyKey: key,
	})
	if err != nil {
		h.logger.Error("create purchase failed", slog.Int64("vendor_id", req.VendorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, purchase)
}

func (h *Handler) showPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	purchase, err := h.service.GetPurchase(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListPurchases(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := httpx.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ret, err := h.service.CreateReturn(r.Context(), CreateReturnInput{
		VendorID:       req.VendorID,
		VehicleID:      req.VehicleID,
		PurchaseID:     req.PurchaseID,
		Date:           date,
		Notes:          req.Notes,
		Items:          req.Items,
		IdempotencyKey: key,
	})
	if err != nil {
		h.logger.Error("create vendor return failed", slog.Int64("vendor_id", req.VendorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) showReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ret, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) listReturns(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListReturns(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.CreatePayment(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.input()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.UpdatePayment(r.Context(), id, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeletePayment(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
