// Package service orchestrates grid acquisition for the HTTP layer: request
// canonicalization, the fetch-or-cache decision via the coordinator, point
// sampling against the most recently served grid, and fetch auditing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/saltline/oceangrid/internal/coordinator"
	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/raster"
)

// tileResolution is the grid resolution requested for tile rendering. Tiles
// reuse the same coordinator path as direct grid requests, so adjacent tiles
// over the same region share one cached fetch.
const tileResolution = 60

// Coordinator resolves a canonical grid request to a grid.
type Coordinator interface {
	Get(ctx context.Context, req domain.GridRequest) (coordinator.Result, error)
}

// Auditor records completed upstream fetches. Implemented by the Kafka
// publisher; nil disables auditing.
type Auditor interface {
	PublishFetch(ctx context.Context, req domain.GridRequest, grid domain.Grid, dataPoints int) error
}

// GridResult is a resolved grid plus the presentation metadata the API
// reports alongside it.
type GridResult struct {
	Request    domain.GridRequest
	Grid       domain.Grid
	Stats      domain.Stats
	DataPoints int
	Cached     bool
	CacheDate  string
}

// Service is the application core behind the HTTP handlers.
type Service struct {
	grids       Coordinator
	auditor     Auditor
	logger      *slog.Logger
	probeClient *http.Client

	ready atomic.Bool
	last  atomic.Pointer[domain.Grid]
}

// New creates a Service. auditor may be nil.
func New(grids Coordinator, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{
		grids:       grids,
		auditor:     auditor,
		logger:      logger,
		probeClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetGrid resolves the latest-analysis grid around (lat, lon).
func (s *Service) GetGrid(ctx context.Context, lat, lon, region float64, resolution int) (GridResult, error) {
	return s.get(ctx, domain.GridRequest{
		CenterLat:  lat,
		CenterLon:  lon,
		RegionSize: region,
		Resolution: resolution,
	})
}

// GetHistoricalGrid resolves the grid for a past analysis date (YYYY-MM-DD).
func (s *Service) GetHistoricalGrid(ctx context.Context, lat, lon, region float64, resolution int, date string) (GridResult, error) {
	if date == "" {
		return GridResult{}, fmt.Errorf("%w: date is required", domain.ErrInvalidRequest)
	}
	return s.get(ctx, domain.GridRequest{
		CenterLat:  lat,
		CenterLon:  lon,
		RegionSize: region,
		Resolution: resolution,
		Date:       date,
	})
}

func (s *Service) get(ctx context.Context, req domain.GridRequest) (GridResult, error) {
	if err := req.Validate(); err != nil {
		return GridResult{}, err
	}
	req = req.Snap()

	res, err := s.grids.Get(ctx, req)
	if err != nil {
		return GridResult{}, err
	}

	grid := res.Grid
	stats, points := grid.ComputeStats()
	s.last.Store(&grid)
	s.ready.Store(true)

	if !res.Cached && s.auditor != nil {
		// Audit failures never fail the request.
		if err := s.auditor.PublishFetch(ctx, req, grid, points); err != nil {
			s.logger.Warn("fetch audit publish failed", "key", req.CacheKey(), "error", err)
		}
	}

	return GridResult{
		Request:    req,
		Grid:       grid,
		Stats:      stats,
		DataPoints: points,
		Cached:     res.Cached,
		CacheDate:  res.CacheDate,
	}, nil
}

// Sample reads the temperature at (lat, lon) from the most recently served
// grid. No upstream I/O: before any grid has been served it reports no data.
func (s *Service) Sample(lat, lon float64) (float64, bool) {
	return domain.SampleNearest(s.last.Load(), lat, lon, domain.DefaultSampleRadius)
}

// TileGrid resolves a grid covering XYZ tile z/x/y. date is empty for the
// latest analysis. The tile's extent is snapped onto the request lattice, so
// wide tiles are served from the largest supported region and render with
// partial coverage.
func (s *Service) TileGrid(ctx context.Context, date string, z, x, y int) (GridResult, error) {
	if !raster.ValidTile(z, x, y) {
		return GridResult{}, domain.ErrInvalidRequest
	}
	b := raster.TileBounds(z, x, y)
	span := b.Width()
	if h := b.Height(); h > span {
		span = h
	}
	return s.get(ctx, domain.GridRequest{
		CenterLat:  (b.MinLat + b.MaxLat) / 2,
		CenterLon:  (b.MinLon + b.MaxLon) / 2,
		RegionSize: span,
		Resolution: tileResolution,
		Date:       date,
	})
}

// CheckReadiness returns nil once at least one grid has been served.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no grid served yet")
	}
	return nil
}
