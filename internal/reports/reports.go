// Package reports derives daily, profit and loss and hamali summaries from
// stored documents. Every figure is recomputed on request.
package reports

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// DailyRow aggregates one calendar date.
type DailyRow struct {
	Date       time.Time       `json:"date"`
	Invoices   int             `json:"invoices"`
	Sales      decimal.Decimal `json:"sales"`
	Hamali     decimal.Decimal `json:"hamali"`
	CashHamali decimal.Decimal `json:"cash_hamali"`
	Weight     decimal.Decimal `json:"weight_kg"`
}

// DailySummary lists per-date totals over a window.
type DailySummary struct {
	From   time.Time  `json:"from"`
	To     time.Time  `json:"to"`
	Rows   []DailyRow `json:"rows"`
	Totals DailyRow   `json:"totals"`
}

// ProfitLoss compares billed sales with net purchase cost.
type ProfitLoss struct {
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Sales     decimal.Decimal   `json:"sales"`
	Purchases decimal.Decimal   `json:"purchases"`
	Returns   decimal.Decimal   `json:"returns"`
	NetCost   decimal.Decimal   `json:"net_cost"`
	Profit    decimal.Decimal   `json:"profit"`
	Display   map[string]string `json:"display"`
}

// HamaliCollected splits handling charges by where they were collected.
// Invoice hamali already includes charges paid in cash at billing time;
// Standalone counts cash payments not tied to an invoice.
type HamaliCollected struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Invoice     decimal.Decimal `json:"invoice"`
	InvoiceCash decimal.Decimal `json:"invoice_paid_by_cash"`
	Standalone  decimal.Decimal `json:"standalone_cash"`
	Total       decimal.Decimal `json:"total"`
	Display     string          `json:"display"`
}

// HamaliTotals is the invoice-side hamali aggregate.
type HamaliTotals struct {
	Charged    decimal.Decimal
	PaidByCash decimal.Decimal
}

// MergeDaily joins invoice rows with cash hamali per date and totals them.
// Dates with only cash hamali still appear.
func MergeDaily(window shared.Window, sales []DailyRow, cash map[time.Time]decimal.Decimal) DailySummary {
	byDate := make(map[time.Time]*DailyRow, len(sales)+len(cash))
	var dates []time.Time
	row := func(date time.Time) *DailyRow {
		day := shared.Day(date)
		if r, ok := byDate[day]; ok {
			return r
		}
		r := &DailyRow{Date: day, Sales: decimal.Zero, Hamali: decimal.Zero, CashHamali: decimal.Zero, Weight: decimal.Zero}
		byDate[day] = r
		dates = append(dates, day)
		return r
	}
	for _, s := range sales {
		r := row(s.Date)
		r.Invoices += s.Invoices
		r.Sales = r.Sales.Add(s.Sales)
		r.Hamali = r.Hamali.Add(s.Hamali)
		r.Weight = r.Weight.Add(s.Weight)
	}
	for date, amount := range cash {
		r := row(date)
		r.CashHamali = r.CashHamali.Add(amount)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	summary := DailySummary{
		From:   window.From,
		To:     window.To,
		Rows:   make([]DailyRow, 0, len(dates)),
		Totals: DailyRow{Sales: decimal.Zero, Hamali: decimal.Zero, CashHamali: decimal.Zero, Weight: decimal.Zero},
	}
	for _, date := range dates {
		r := *byDate[date]
		summary.Rows = append(summary.Rows, r)
		summary.Totals.Invoices += r.Invoices
		summary.Totals.Sales = summary.Totals.Sales.Add(r.Sales)
		summary.Totals.Hamali = summary.Totals.Hamali.Add(r.Hamali)
		summary.Totals.CashHamali = summary.Totals.CashHamali.Add(r.CashHamali)
		summary.Totals.Weight = summary.Totals.Weight.Add(r.Weight)
	}
	return summary
}

// BuildProfitLoss computes sales − (purchases − returns).
func BuildProfitLoss(window shared.Window, sales, purchases, returns decimal.Decimal) ProfitLoss {
	net := purchases.Sub(returns)
	pl := ProfitLoss{
		From:      window.From,
		To:        window.To,
		Sales:     sales,
		Purchases: purchases,
		Returns:   returns,
		NetCost:   net,
		Profit:    sales.Sub(net),
	}
	pl.Display = map[string]string{
		"sales":    shared.FormatINR(pl.Sales),
		"net_cost": shared.FormatINR(pl.NetCost),
		"profit":   shared.FormatINR(pl.Profit),
	}
	return pl
}

// BuildHamali totals invoice and standalone hamali.
func BuildHamali(window shared.Window, invoice HamaliTotals, standalone decimal.Decimal) HamaliCollected {
	h := HamaliCollected{
		From:        window.From,
		To:          window.To,
		Invoice:     invoice.Charged,
		InvoiceCash: invoice.PaidByCash,
		Standalone:  standalone,
		Total:       invoice.Charged.Add(standalone),
	}
	h.Display = shared.FormatINR(h.Total)
	return h
}

// Rounded returns a copy with money rounded to paise.
func (s DailySummary) Rounded() DailySummary {
	rows := make([]DailyRow, len(s.Rows))
	for i, r := range s.Rows {
		rows[i] = r.rounded()
	}
	s.Rows = rows
	s.Totals = s.Totals.rounded()
	return s
}

func (r DailyRow) rounded() DailyRow {
	r.Sales = shared.Round2(r.Sales)
	r.Hamali = shared.Round2(r.Hamali)
	r.CashHamali = shared.Round2(r.CashHamali)
	return r
}

// Rounded returns a copy with money rounded to paise.
func (pl ProfitLoss) Rounded() ProfitLoss {
	pl.Sales = shared.Round2(pl.Sales)
	pl.Purchases = shared.Round2(pl.Purchases)
	pl.Returns = shared.Round2(pl.Returns)
	pl.NetCost = shared.Round2(pl.NetCost)
	pl.Profit = shared.Round2(pl.Profit)
	return pl
}

// Rounded returns a copy with money rounded to paise.
func (h HamaliCollected) Rounded() HamaliCollected {
	h.Invoice = shared.Round2(h.Invoice)
	h.InvoiceCash = shared.Round2(h.InvoiceCash)
	h.Standalone = shared.Round2(h.Standalone)
	h.Total = shared.Round2(h.Total)
	return h
}
