package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/agromonitor/fincas-geom/internal/domain/capture"
	"github.com/agromonitor/fincas-geom/internal/domain/farm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListParams carries the moderation UI's listing filters. String fields are
// raw external values and get validated here.
type ListParams struct {
	Search     string
	Status     string
	Kind       string
	FarmID     *int64
	CapturedBy *int64
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// Pagination describes one page of results.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Service provides read-only projections over captures and farm history.
type Service struct {
	repo   capture.Repository
	logger zerolog.Logger
}

// NewService creates a query service.
func NewService(repo capture.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "query").Logger(),
	}
}

// List returns one page of captures matching the filter.
func (s *Service) List(ctx context.Context, p ListParams) ([]*capture.Capture, *Pagination, error) {
	filter := capture.Filter{
		FarmID:     p.FarmID,
		CapturedBy: p.CapturedBy,
		From:       p.From,
		To:         p.To,
	}
	if p.Search != "" {
		q := p.Search
		filter.Search = &q
	}
	if p.Status != "" {
		st, err := capture.ParseStatus(p.Status)
		if err != nil {
			return nil, nil, err
		}
		filter.Status = &st
	}
	if p.Kind != "" {
		k, err := capture.ParseKind(p.Kind)
		if err != nil {
			return nil, nil, err
		}
		filter.Kind = &k
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	items, total, err := s.repo.List(ctx, filter, p.SortBy, p.SortOrder, size, (page-1)*size)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list captures")
		return nil, nil, fmt.Errorf("failed to list captures: %w", err)
	}
	totalPages := int((total + int64(size) - 1) / int64(size))
	return items, &Pagination{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Detail returns one capture with its farm name joined.
func (s *Service) Detail(ctx context.Context, id int64) (*capture.Capture, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id must be a positive integer", capture.ErrInvalidArgument)
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("captureId", id).Msg("failed to fetch capture")
		return nil, fmt.Errorf("failed to fetch capture %d: %w", id, err)
	}
	if c == nil {
		return nil, capture.ErrNotFound
	}
	return c, nil
}

// FarmHistory returns the farm's approved geometry versions, newest first.
func (s *Service) FarmHistory(ctx context.Context, farmID int64) ([]*farm.HistoryEntry, error) {
	if farmID <= 0 {
		return nil, fmt.Errorf("%w: id_finca must be a positive integer", capture.ErrInvalidArgument)
	}
	exists, err := s.repo.FarmExists(ctx, farmID)
	if err != nil {
		s.logger.Error().Err(err).Int64("farmId", farmID).Msg("failed to check farm")
		return nil, fmt.Errorf("failed to check farm %d: %w", farmID, err)
	}
	if !exists {
		return nil, capture.ErrNotFound
	}
	entries, err := s.repo.FarmHistory(ctx, farmID)
	if err != nil {
		s.logger.Error().Err(err).Int64("farmId", farmID).Msg("failed to fetch farm history")
		return nil, fmt.Errorf("failed to fetch history for farm %d: %w", farmID, err)
	}
	return entries, nil
}
