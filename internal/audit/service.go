package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/supplyhub/supplyhub/internal/shared"
)

// Repository reads audit entries, newest first.
type Repository interface {
	Window(ctx context.Context, filters Filters, offset, limit int) ([]Entry, error)
	All(ctx context.Context, filters Filters) ([]Entry, error)
}

// Service serves the admin audit timeline.
type Service struct {
	repo Repository
}

// NewService builds the timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of entries. One extra row is fetched to detect a next page.
func (s *Service) Timeline(ctx context.Context, actor shared.Actor, filters Filters) (Result, error) {
	if err := s.authorize(actor, filters); err != nil {
		return Result{}, err
	}
	f := filters.normalized()
	offset := (f.Page - 1) * f.PageSize
	rows, err := s.repo.Window(ctx, f, offset, f.PageSize+1)
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasNext := len(rows) > f.PageSize
	if hasNext {
		rows = rows[:f.PageSize]
	}
	paging := Paging{Page: f.Page, PageSize: f.PageSize, HasNext: hasNext}
	if f.Page > 1 {
		paging.PrevPage = f.Page - 1
	}
	if hasNext {
		paging.NextPage = f.Page + 1
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Entries: rows, Paging: paging}, nil
}

// Export returns every matching entry.
func (s *Service) Export(ctx context.Context, actor shared.Actor, filters Filters) ([]Entry, error) {
	if err := s.authorize(actor, filters); err != nil {
		return nil, err
	}
	rows, err := s.repo.All(ctx, filters.normalized())
	if err != nil {
		return nil, fmt.Errorf("audit: export: %w", err)
	}
	return rows, nil
}

func (s *Service) authorize(actor shared.Actor, filters Filters) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if actor.ID == "" {
		return shared.ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return fmt.Errorf("%w: audit trail is restricted to admins", shared.ErrUnauthorized)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	return nil
}
