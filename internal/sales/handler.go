package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
	"github.com/mandi-erp/mandi/internal/shared"
)

// Handler exposes sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountInvoices registers /invoices routes.
func (h *Handler) MountInvoices(r chi.Router) {
	r.Get("/", h.listInvoices)
	r.Post("/", h.createInvoice)
	r.Post("/bulk-delete", h.bulkDelete)
	r.Get("/{id}", h.showInvoice)
	r.Patch("/{id}", h.updateInvoice)
	r.Post("/{id}/complete", h.completeInvoice)
	r.Patch("/{id}/items/{itemID}", h.updateItem)
}

// MountPayments registers /customer-payments routes.
func (h *Handler) MountPayments(r chi.Router) {
	r.Get("/", h.listPayments)
	r.Post("/", h.createPayment)
	r.Get("/{id}", h.showPayment)
	r.Put("/{id}", h.updatePayment)
	r.Delete("/{id}", h.deletePayment)
}

// MountHamali registers /hamali-payments routes.
func (h *Handler) MountHamali(r chi.Router) {
	r.Get("/", h.listHamali)
	r.Post("/", h.createHamali)
}

type invoiceRequest struct {
	CustomerID    int64       `json:"customer_id" validate:"required,gt=0"`
	VehicleID     *int64      `json:"vehicle_id" validate:"omitempty,gt=0"`
	InvoiceNumber string      `json:"invoice_number" validate:"required,max=64"`
	Date          string      `json:"date"`
	Notes         string      `json:"notes" validate:"max=500"`
	Items         []ItemInput `json:"items" validate:"required,min=1,dive"`
	HamaliInput
}

type updateRequest struct {
	Items  []ItemInput    `json:"items" validate:"omitempty,min=1,dive"`
	Hamali *HamaliInput   `json:"hamali"`
	Status *InvoiceStatus `json:"status"`
	Notes  *string        `json:"notes" validate:"omitempty,max=500"`
}

type itemRequest struct {
	Quantity        *decimal.Decimal   `json:"quantity"`
	UnitPrice       *decimal.Decimal   `json:"unit_price"`
	WeightBreakdown *[]decimal.Decimal `json:"weight_breakdown"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

type paymentRequest struct {
	CustomerID    int64           `json:"customer_id" validate:"required,gt=0"`
	InvoiceID     *int64          `json:"invoice_id" validate:"omitempty,gt=0"`
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
	return PaymentInput{
		CustomerID:    req.CustomerID,
		InvoiceID:     req.InvoiceID,
		Amount:        req.Amount,
		Date:          date,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}, nil
}

type hamaliRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
	Notes  string          `json:"notes" validate:"max=500"`
}

func listFilter(r *http.Request) (ListFilter, error) {
	customerID, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		return ListFilter{}, err
	}
	vehicleID, err := httpx.QueryInt64(r, "vehicle_id")
	if err != nil {
		return ListFilter{}, err
	}
	window, err := httpx.QueryWindow(r)
	if err != nil {
		return ListFilter{}, err
	}
	page := httpx.Page(r)
	return ListFilter{
		CustomerID: customerID,
		VehicleID:  vehicleID,
		Status:     InvoiceStatus(r.URL.Query().Get("status")),
		Window:     window,
		Limit:      page.PerPage,
		Offset:     page.Offset(),
	}, nil
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
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
	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		CustomerID:     req.CustomerID,
		VehicleID:      req.VehicleID,
		InvoiceNumber:  req.InvoiceNumber,
		Date:           date,
		Items:          req.Items,
		Hamali:         req.HamaliInput,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		h.logger.Error("create invoice failed",
			slog.Int64("customer_id", req.CustomerID),
			slog.String("invoice_number", req.InvoiceNumber),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv.Rounded())
}

func (h *Handler) showInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv.Rounded())
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items := make([]Invoice, len(invoices))
	for i, inv := range invoices {
		items[i] = inv.Rounded()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateInvoice(r.Context(), id, UpdateInvoiceInput{
		Items:  req.Items,
		Hamali: req.Hamali,
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		h.logger.Error("update invoice failed", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv.Rounded())
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.UpdateInvoiceItem(r.Context(), id, itemID, ItemPatch(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv.Rounded())
}

func (h *Handler) completeInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.CompleteInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv.Rounded())
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		h.logger.Error("bulk delete invoices failed", slog.Any("ids", req.IDs), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
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

func (h *Handler) createHamali(w http.ResponseWriter, r *http.Request) {
	var req hamaliRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := shared.ParseDateOrToday(req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payment, err := h.service.CreateHamaliPayment(r.Context(), HamaliPaymentInput{Amount: req.Amount, Date: date, Notes: req.Notes})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) listHamali(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListHamaliPayments(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}
