package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mandi-erp/mandi/internal/shared"
)

type stubTimelineRepo struct {
	rows      []TimelineRow
	lastQuery WindowQuery
}

func (s *stubTimelineRepo) TimelineWindow(_ context.Context, q WindowQuery) ([]TimelineRow, error) {
	s.lastQuery = q
	if q.Limit < len(s.rows) {
		return s.rows[:q.Limit], nil
	}
	return s.rows, nil
}

func mockRow(at, action, entity, id string) TimelineRow {
	ts, _ := time.Parse(time.RFC3339, at)
	return TimelineRow{At: ts, Action: action, Entity: entity, EntityID: id}
}

func TestServiceTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mockRow("2024-03-10T10:00:00Z", "invoice.update", "invoice", "1"),
		mockRow("2024-03-09T09:00:00Z", "invoice.create", "invoice", "1"),
		mockRow("2024-03-08T08:00:00Z", "purchase.create", "purchase", "3"),
	}}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Page:     1,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext || result.Paging.NextPage != 2 {
		t.Fatalf("expected next page 2, got %+v", result.Paging)
	}
	if repo.lastQuery.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastQuery.Limit)
	}
	if repo.lastQuery.Offset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastQuery.Offset)
	}
	wantTo := time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC)
	if !repo.lastQuery.To.Equal(wantTo) {
		t.Fatalf("expected inclusive end %s, got %s", wantTo, repo.lastQuery.To)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 500, Entity: " invoice "})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastQuery.Limit != maxPageSize+1 {
		t.Fatalf("expected limit %d, got %d", maxPageSize+1, repo.lastQuery.Limit)
	}
	if repo.lastQuery.Offset != 2*maxPageSize {
		t.Fatalf("expected offset %d, got %d", 2*maxPageSize, repo.lastQuery.Offset)
	}
	if repo.lastQuery.Entity != "invoice" {
		t.Fatalf("expected trimmed entity, got %q", repo.lastQuery.Entity)
	}
	if result.Paging.PrevPage != 2 || result.Paging.HasNext {
		t.Fatalf("unexpected paging %+v", result.Paging)
	}
	if result.Rows == nil {
		t.Fatalf("expected empty slice, got nil")
	}
}

func TestServiceTimelineRejectsInvertedWindow(t *testing.T) {
	svc := NewService(&stubTimelineRepo{})
	_, err := svc.Timeline(context.Background(), TimelineFilters{
		From: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
