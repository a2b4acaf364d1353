package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mandi-erp/mandi/internal/audit"
	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/ledger"
	"github.com/mandi-erp/mandi/internal/masterdata/customers"
	"github.com/mandi-erp/mandi/internal/masterdata/products"
	"github.com/mandi-erp/mandi/internal/masterdata/vehicles"
	"github.com/mandi-erp/mandi/internal/masterdata/vendors"
	"github.com/mandi-erp/mandi/internal/observability"
	"github.com/mandi-erp/mandi/internal/purchasing"
	"github.com/mandi-erp/mandi/internal/reports"
	"github.com/mandi-erp/mandi/internal/sales"
	"github.com/mandi-erp/mandi/internal/stock"
	"github.com/mandi-erp/mandi/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	DB      Pinger

	ProductsHandler   *products.Handler
	VendorsHandler    *vendors.Handler
	CustomersHandler  *customers.Handler
	VehiclesHandler   *vehicles.Handler
	FleetHandler      *fleet.Handler
	StockHandler      *stock.Handler
	PurchasingHandler *purchasing.Handler
	SalesHandler      *sales.Handler
	LedgerHandler     *ledger.Handler
	ReportsHandler    *reports.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with the API mounted under /api.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.DB != nil {
			if err := params.DB.Ping(r.Context()); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("health check: database unreachable", slog.Any("error", err))
				}
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded","database":"unreachable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.VendorsHandler != nil {
			r.Route("/vendors", params.VendorsHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.VehiclesHandler != nil {
			r.Route("/vehicles", params.VehiclesHandler.MountRoutes)
		}
		if params.FleetHandler != nil {
			r.Route("/fleet/{vehicleID}", params.FleetHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.PurchasingHandler != nil {
			r.Route("/purchases", params.PurchasingHandler.MountPurchases)
			r.Route("/vendor-returns", params.PurchasingHandler.MountReturns)
			r.Route("/vendor-payments", params.PurchasingHandler.MountPayments)
		}
		if params.SalesHandler != nil {
			r.Route("/invoices", params.SalesHandler.MountInvoices)
			r.Route("/customer-payments", params.SalesHandler.MountPayments)
			r.Route("/hamali-payments", params.SalesHandler.MountHamali)
		}
		if params.LedgerHandler != nil {
			r.Route("/balances", params.LedgerHandler.MountRoutes)
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
