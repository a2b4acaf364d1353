package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mandi-erp/mandi/internal/platform/httpx"
)

// Handler exposes report endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers /reports routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/daily", h.daily)
	r.Get("/profit-loss", h.profitLoss)
	r.Get("/hamali", h.hamali)
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	window, err := httpx.QueryWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Daily(r.Context(), window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report.Rounded())
}

func (h *Handler) profitLoss(w http.ResponseWriter, r *http.Request) {
	window, err := httpx.QueryWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.ProfitLoss(r.Context(), window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report.Rounded())
}

func (h *Handler) hamali(w http.ResponseWriter, r *http.Request) {
	window, err := httpx.QueryWindow(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Hamali(r.Context(), window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report.Rounded())
}
