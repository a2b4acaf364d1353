package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mandi-erp/mandi/internal/shared"
)

// RepositoryPort lists the aggregates Service needs.
type RepositoryPort interface {
	DailySales(ctx context.Context, w shared.Window) ([]DailyRow, error)
	DailyCashHamali(ctx context.Context, w shared.Window) (map[time.Time]decimal.Decimal, error)
	SalesTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error)
	PurchaseTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error)
	ReturnTotal(ctx context.Context, w shared.Window) (decimal.Decimal, error)
	InvoiceHamali(ctx context.Context, w shared.Window) (HamaliTotals, error)
	StandaloneHamali(ctx context.Context, w shared.Window) (decimal.Decimal, error)
}

// Service builds reports. Identical concurrent requests share one build.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

func (s *Service) collapse(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.DebugContext(ctx, "report build shared", slog.String("key", key))
		}
		return res.Val, res.Err
	}
}

// Daily returns per-date sales, hamali and weight.
func (s *Service) Daily(ctx context.Context, w shared.Window) (DailySummary, error) {
	v, err := s.collapse(ctx, "daily:"+w.Key(), func(ctx context.Context) (any, error) {
		var (
			sales []DailyRow
			cash  map[time.Time]decimal.Decimal
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			sales, err = s.repo.DailySales(ctx, w)
			return err
		})
		g.Go(func() error {
			var err error
			cash, err = s.repo.DailyCashHamali(ctx, w)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return MergeDaily(w, sales, cash), nil
	})
	if err != nil {
		return DailySummary{}, err
	}
	return v.(DailySummary), nil
}

// ProfitLoss returns sales less net purchase cost.
func (s *Service) ProfitLoss(ctx context.Context, w shared.Window) (ProfitLoss, error) {
	v, err := s.collapse(ctx, "pl:"+w.Key(), func(ctx context.Context) (any, error) {
		var sales, purchases, returns decimal.Decimal
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			sales, err = s.repo.SalesTotal(ctx, w)
			return err
		})
		g.Go(func() error {
			var err error
			purchases, err = s.repo.PurchaseTotal(ctx, w)
			return err
		})
		g.Go(func() error {
			var err error
			returns, err = s.repo.ReturnTotal(ctx, w)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return BuildProfitLoss(w, sales, purchases, returns), nil
	})
	if err != nil {
		return ProfitLoss{}, err
	}
	return v.(ProfitLoss), nil
}

// Hamali returns handling charges collected on invoices and in cash.
func (s *Service) Hamali(ctx context.Context, w shared.Window) (HamaliCollected, error) {
	v, err := s.collapse(ctx, "hamali:"+w.Key(), func(ctx context.Context) (any, error) {
		var (
			invoice    HamaliTotals
			standalone decimal.Decimal
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			invoice, err = s.repo.InvoiceHamali(ctx, w)
			return err
		})
		g.Go(func() error {
			var err error
			standalone, err = s.repo.StandaloneHamali(ctx, w)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return BuildHamali(w, invoice, standalone), nil
	})
	if err != nil {
		return HamaliCollected{}, err
	}
	return v.(HamaliCollected), nil
}
