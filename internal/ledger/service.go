package ledger

import (
	"context"
	"fmt"

	"github.com/mandi-erp/mandi/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	VendorEntries(ctx context.Context, vendorID int64) ([]Entry, error)
	CustomerEntries(ctx context.Context, customerID int64) ([]Entry, error)
	PartyExists(ctx context.Context, party Party, id int64) (bool, error)
	ListSummaries(ctx context.Context, party Party) ([]Summary, error)
}

// Service answers balance queries.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// VendorBalance returns purchases − payments − returns for the vendor.
func (s *Service) VendorBalance(ctx context.Context, vendorID int64) (Summary, error) {
	return s.summary(ctx, PartyVendor, vendorID)
}

// CustomerBalance returns invoices − payments for the customer.
func (s *Service) CustomerBalance(ctx context.Context, customerID int64) (Summary, error) {
	return s.summary(ctx, PartyCustomer, customerID)
}

// Statement returns the opening balance, in-window entries and closing
// balance of a ledger.
func (s *Service) Statement(ctx context.Context, party Party, id int64, window shared.Window) (Statement, error) {
	entries, err := s.load(ctx, party, id)
	if err != nil {
		return Statement{}, err
	}
	st := BuildStatement(entries, window)
	st.PartyID = id
	st.Party = party
	return st, nil
}

// Summaries lists the balance of every vendor or customer.
func (s *Service) Summaries(ctx context.Context, party Party) ([]Summary, error) {
	if err := validParty(party); err != nil {
		return nil, err
	}
	return s.repo.ListSummaries(ctx, party)
}

func (s *Service) summary(ctx context.Context, party Party, id int64) (Summary, error) {
	entries, err := s.load(ctx, party, id)
	if err != nil {
		return Summary{}, err
	}
	sum := Summarise(entries)
	sum.PartyID = id
	sum.Party = party
	return sum, nil
}

func (s *Service) load(ctx context.Context, party Party, id int64) ([]Entry, error) {
	if err := validParty(party); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, party)
	}
	ok, err := s.repo.PartyExists(ctx, party, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", shared.ErrNotFound, party, id)
	}
	if party == PartyVendor {
		return s.repo.VendorEntries(ctx, id)
	}
	return s.repo.CustomerEntries(ctx, id)
}

func validParty(party Party) error {
	if party != PartyVendor && party != PartyCustomer {
		return fmt.Errorf("%w: unknown party %q", shared.ErrValidation, party)
	}
	return nil
}
