// Package httpapi exposes the grid service over HTTP: grid queries, point
// readouts, XYZ tiles, and the operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
	"github.com/saltline/oceangrid/internal/raster"
	"github.com/saltline/oceangrid/internal/service"
)

const (
	defaultResolution = 15
	defaultRegionSize = 2.0
)

// GridService is the application core the handlers delegate to.
type GridService interface {
	GetGrid(ctx context.Context, lat, lon, region float64, resolution int) (service.GridResult, error)
	GetHistoricalGrid(ctx context.Context, lat, lon, region float64, resolution int, date string) (service.GridResult, error)
	Sample(lat, lon float64) (float64, bool)
	TileGrid(ctx context.Context, date string, z, x, y int) (service.GridResult, error)
	Status(ctx context.Context) service.StatusReport
	CheckReadiness(ctx context.Context) error
}

// Server exposes the grid API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	svc        GridService
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, svc GridService, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:     svc,
		metrics: metrics,
		logger:  logger,
	}
	s.httpServer.Handler = s.withRequestID(s.withThrottle(mux))

	mux.HandleFunc("GET /grid", s.handleGrid)
	mux.HandleFunc("GET /grid/historical", s.handleHistoricalGrid)
	mux.HandleFunc("GET /temperature", s.handleTemperature)
	mux.HandleFunc("GET /tiles/sst/meta", s.handleTileMeta)
	mux.HandleFunc("GET /tiles/sst/styled/{date}/{z}/{x}/{y}", s.handleStyledTile)
	mux.HandleFunc("GET /tiles/sst/{date}/{z}/{x}/{y}", s.handleValueTile)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /sources", s.handleSources)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type gridResponse struct {
	CenterLatitude   float64         `json:"center_latitude"`
	CenterLongitude  float64         `json:"center_longitude"`
	GridSize         int             `json:"grid_size"`
	RegionSizeDeg    float64         `json:"region_size_degrees"`
	GridData         [][]domain.Cell `json:"grid_data"`
	TemperatureStats domain.Stats    `json:"temperature_stats"`
	DataPoints       int             `json:"data_points"`
	Source           string          `json:"source"`
	Timestamp        string          `json:"timestamp"`
	DataTime         string          `json:"data_time"`
	CacheInfo        cacheInfo       `json:"cache_info"`
	RequestedDate    string          `json:"requested_date,omitempty"`
	HistoricalData   bool            `json:"historical_data,omitempty"`
}

type cacheInfo struct {
	Cached    bool   `json:"cached"`
	CacheDate string `json:"cache_date,omitempty"`
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	params, err := gridParams(r)
	if err != nil {
		s.metrics.GridRequests.WithLabelValues("grid", "error").Inc()
		s.writeError(w, err)
		return
	}

	res, err := s.svc.GetGrid(r.Context(), params.lat, params.lon, params.region, params.resolution)
	if err != nil {
		s.metrics.GridRequests.WithLabelValues("grid", "error").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.GridRequests.WithLabelValues("grid", "ok").Inc()
	writeJSON(w, http.StatusOK, toGridResponse(res))
}

func (s *Server) handleHistoricalGrid(w http.ResponseWriter, r *http.Request) {
	params, err := gridParams(r)
	if err != nil {
		s.metrics.GridRequests.WithLabelValues("historical", "error").Inc()
		s.writeError(w, err)
		return
	}

	res, err := s.svc.GetHistoricalGrid(r.Context(), params.lat, params.lon, params.region, params.resolution, r.URL.Query().Get("date"))
	if err != nil {
		s.metrics.GridRequests.WithLabelValues("historical", "error").Inc()
		s.writeError(w, err)
		return
	}
	s.metrics.GridRequests.WithLabelValues("historical", "ok").Inc()

	out := toGridResponse(res)
	out.RequestedDate = res.Request.Date
	out.HistoricalData = true
	writeJSON(w, http.StatusOK, out)
}

func toGridResponse(res service.GridResult) gridResponse {
	out := gridResponse{
		CenterLatitude:   res.Request.CenterLat,
		CenterLongitude:  res.Request.CenterLon,
		GridSize:         res.Request.Resolution,
		RegionSizeDeg:    res.Request.RegionSize,
		GridData:         res.Grid.Cells,
		TemperatureStats: res.Stats,
		DataPoints:       res.DataPoints,
		Source:           res.Grid.Source,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		CacheInfo:        cacheInfo{Cached: res.Cached, CacheDate: res.CacheDate},
	}
	if !res.Grid.ObservedAt.IsZero() {
		out.DataTime = res.Grid.ObservedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		s.writeError(w, err)
		return
	}

	type readout struct {
		Latitude    float64  `json:"latitude"`
		Longitude   float64  `json:"longitude"`
		Temperature *float64 `json:"temperature"`
		Unit        string   `json:"unit"`
		NoData      bool     `json:"no_data,omitempty"`
	}
	out := readout{Latitude: lat, Longitude: lon, Unit: "celsius"}
	if temp, ok := s.svc.Sample(lat, lon); ok {
		out.Temperature = &temp
	} else {
		out.NoData = true
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValueTile(w http.ResponseWriter, r *http.Request) {
	s.serveTile(w, r, "value", raster.ValueTile, func(h http.Header) {
		h.Set("X-Value-Scale", strconv.FormatFloat(raster.ValueScale, 'g', -1, 64))
		h.Set("X-Value-Offset", strconv.FormatFloat(raster.ValueOffset, 'g', -1, 64))
	})
}

func (s *Server) handleStyledTile(w http.ResponseWriter, r *http.Request) {
	s.serveTile(w, r, "styled", raster.StyledTile, nil)
}

func (s *Server) serveTile(w http.ResponseWriter, r *http.Request, kind string, render func(*domain.Grid, int, int, int) *image.RGBA, extraHeaders func(http.Header)) {
	z, x, y, err := tileCoords(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	date := r.PathValue("date")
	if date == "current" {
		date = ""
	}

	res, err := s.svc.TileGrid(r.Context(), date, z, x, y)
	if err != nil && !errors.Is(err, domain.ErrNoData) {
		s.writeError(w, err)
		return
	}

	// No coverage renders a transparent tile rather than an error, so map
	// clients can overlay the layer globally without special-casing land.
	grid := &domain.Grid{}
	if err == nil {
		grid = &res.Grid
	}

	start := time.Now()
	img := render(grid, z, x, y)
	s.metrics.RasterDuration.Observe(time.Since(start).Seconds())

	data, err := raster.EncodePNG(img)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.TilesRendered.WithLabelValues(kind).Inc()

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Cache-Control", "public, max-age=3600")
	if extraHeaders != nil {
		extraHeaders(h)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client gone mid-tile is not actionable
}

func (s *Server) handleTileMeta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"encoding":  "rgb24",
		"scale":     raster.ValueScale,
		"offset":    raster.ValueOffset,
		"tile_size": raster.TileSize,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	writeJSON(w, http.StatusOK, s.svc.Status(ctx))
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": service.Sources()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.svc.CheckReadiness(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type gridQuery struct {
	lat, lon   float64
	region     float64
	resolution int
}

func gridParams(r *http.Request) (gridQuery, error) {
	lat, err := queryFloat(r, "lat")
	if err != nil {
		return gridQuery{}, err
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		return gridQuery{}, err
	}

	q := gridQuery{lat: lat, lon: lon, region: defaultRegionSize, resolution: defaultResolution}
	if raw := r.URL.Query().Get("region"); raw != "" {
		if q.region, err = strconv.ParseFloat(raw, 64); err != nil {
			return gridQuery{}, fmt.Errorf("%w: region %q is not a number", domain.ErrInvalidRequest, raw)
		}
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		if q.resolution, err = strconv.Atoi(raw); err != nil {
			return gridQuery{}, fmt.Errorf("%w: size %q is not an integer", domain.ErrInvalidRequest, raw)
		}
	}
	return q, nil
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing required parameter %q", domain.ErrInvalidRequest, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidRequest, name, raw)
	}
	return v, nil
}

func tileCoords(r *http.Request) (z, x, y int, err error) {
	z, err = strconv.Atoi(r.PathValue("z"))
	if err == nil {
		x, err = strconv.Atoi(r.PathValue("x"))
	}
	if err == nil {
		y, err = strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: tile coordinates must be integers", domain.ErrInvalidRequest)
	}
	return z, x, y, nil
}

// withRequestID tags every request with an ID and logs its completion.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", id,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, source := http.StatusInternalServerError, "server"
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, source = http.StatusBadRequest, "request"
	case errors.Is(err, domain.ErrNoData):
		status, source = http.StatusNotFound, "upstream"
	case errors.Is(err, domain.ErrTimeout):
		status, source = http.StatusGatewayTimeout, "upstream"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status, source = http.StatusBadGateway, "upstream"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "source": source})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
