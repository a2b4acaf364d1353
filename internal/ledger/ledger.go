// Package ledger derives vendor and customer balances from the document and
// payment history. Nothing here stores a running balance.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mandi-erp/mandi/internal/shared"
)

// Party distinguishes vendor and customer ledgers.
type Party string

const (
	// PartyVendor is a supplier ledger: purchases less payments and returns.
	PartyVendor Party = "vendor"
	// PartyCustomer is a buyer ledger: invoices less payments.
	PartyCustomer Party = "customer"
)

// Kind classifies an entry's effect on the balance.
type Kind string

const (
	// KindBilled increases the balance.
	KindBilled Kind = "billed"
	// KindPaid decreases the balance.
	KindPaid Kind = "paid"
	// KindReturned decreases the balance.
	KindReturned Kind = "returned"
)

// Entry is one balance-affecting document.
type Entry struct {
	Date      time.Time       `json:"date"`
	Kind      Kind            `json:"kind"`
	Source    string          `json:"source"`
	SourceID  int64           `json:"source_id"`
	Reference string          `json:"reference,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// Signed returns the entry's contribution to the balance.
func (e Entry) Signed() decimal.Decimal {
	if e.Kind == KindBilled {
		return e.Amount
	}
	return e.Amount.Neg()
}

// Summary totals a ledger.
type Summary struct {
	PartyID  int64           `json:"party_id"`
	Party    Party           `json:"party"`
	Name     string          `json:"name,omitempty"`
	Billed   decimal.Decimal `json:"billed"`
	Paid     decimal.Decimal `json:"paid"`
	Returned decimal.Decimal `json:"returned"`
	Balance  decimal.Decimal `json:"balance"`
}

// StatementLine is an entry with the balance after it.
type StatementLine struct {
	Entry
	Running decimal.Decimal `json:"running"`
}

// Statement is a period view of a ledger.
type Statement struct {
	PartyID int64           `json:"party_id"`
	Party   Party           `json:"party"`
	From    time.Time       `json:"from"`
	To      time.Time       `json:"to"`
	Opening decimal.Decimal `json:"opening"`
	Billed  decimal.Decimal `json:"billed"`
	Settled decimal.Decimal `json:"settled"`
	Closing decimal.Decimal `json:"closing"`
	Lines   []StatementLine `json:"lines"`
}

// Balance is billed − paid − returned over all entries.
func Balance(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return total
}

// BalanceAsOf is Balance restricted to entries dated on or before asOf.
func BalanceAsOf(entries []Entry, asOf time.Time) decimal.Decimal {
	day := shared.Day(asOf)
	total := decimal.Zero
	for _, e := range entries {
		if !shared.Day(e.Date).After(day) {
			total = total.Add(e.Signed())
		}
	}
	return total
}

// Summarise totals entries by kind.
func Summarise(entries []Entry) Summary {
	s := Summary{Billed: decimal.Zero, Paid: decimal.Zero, Returned: decimal.Zero}
	for _, e := range entries {
		switch e.Kind {
		case KindBilled:
			s.Billed = s.Billed.Add(e.Amount)
		case KindPaid:
			s.Paid = s.Paid.Add(e.Amount)
		case KindReturned:
			s.Returned = s.Returned.Add(e.Amount)
		}
	}
	s.Balance = s.Billed.Sub(s.Paid).Sub(s.Returned)
	return s
}

// BuildStatement splits entries around the window: everything before From
// forms the opening balance and entries inside the window become lines.
// A zero From starts the statement at the beginning of history.
func BuildStatement(entries []Entry, window shared.Window) Statement {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return shared.Day(sorted[i].Date).Before(shared.Day(sorted[j].Date))
	})
	st := Statement{
		From:    window.From,
		To:      window.To,
		Opening: decimal.Zero,
		Billed:  decimal.Zero,
		Settled: decimal.Zero,
		Lines:   []StatementLine{},
	}
	for _, e := range sorted {
		day := shared.Day(e.Date)
		if !window.From.IsZero() && day.Before(window.From) {
			st.Opening = st.Opening.Add(e.Signed())
		}
	}
	running := st.Opening
	for _, e := range sorted {
		if !window.Contains(e.Date) {
			continue
		}
		running = running.Add(e.Signed())
		if e.Kind == KindBilled {
			st.Billed = st.Billed.Add(e.Amount)
		} else {
			st.Settled = st.Settled.Add(e.Amount)
		}
		st.Lines = append(st.Lines, StatementLine{Entry: e, Running: running})
	}
	st.Closing = st.Opening.Add(st.Billed).Sub(st.Settled)
	return st
}

// Rounded returns a copy with amounts rounded to paise for presentation.
func (s Summary) Rounded() Summary {
	s.Billed = shared.Round2(s.Billed)
	s.Paid = shared.Round2(s.Paid)
	s.Returned = shared.Round2(s.Returned)
	s.Balance = shared.Round2(s.Balance)
	return s
}

// Rounded returns a copy with amounts rounded to paise for presentation.
func (st Statement) Rounded() Statement {
	st.Opening = shared.Round2(st.Opening)
	st.Billed = shared.Round2(st.Billed)
	st.Settled = shared.Round2(st.Settled)
	st.Closing = shared.Round2(st.Closing)
	lines := make([]StatementLine, len(st.Lines))
	for i, l := range st.Lines {
		l.Amount = shared.Round2(l.Amount)
		l.Running = shared.Round2(l.Running)
		lines[i] = l
	}
	st.Lines = lines
	return st
}
