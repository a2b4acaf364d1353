package ledger

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
)

// Handler wires HTTP endpoints for balances.
type Handler struct {
	service *Service
}

// NewHandler constructs ledger handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/vendors", h.list(PartyVendor))
	r.Get("/vendors/{id}", h.balance(PartyVendor))
	r.Get("/vendors/{id}/statement", h.statement(PartyVendor))
	r.Get("/customers", h.list(PartyCustomer))
	r.Get("/customers/{id}", h.balance(PartyCustomer))
	r.Get("/customers/{id}/statement", h.statement(PartyCustomer))
}

func (h *Handler) list(party Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.service.Summaries(r.Context(), party)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		for i := range items {
			items[i] = items[i].Rounded()
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *Handler) balance(party Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		var sum Summary
		if party == PartyVendor {
			sum, err = h.service.VendorBalance(r.Context(), id)
		} else {
			sum, err = h.service.CustomerBalance(r.Context(), id)
		}
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, sum.Rounded())
	}
}

func (h *Handler) statement(party Party) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		window, err := httpx.QueryWindow(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		st, err := h.service.Statement(r.Context(), party, id, window)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, st.Rounded())
	}
}
