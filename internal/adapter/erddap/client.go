// Package erddap fetches SST grid subsets from a NOAA ERDDAP griddap
// endpoint and normalizes them into domain grids.
package erddap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
)

const (
	// nativeResolution is the MUR analysis grid step in degrees.
	nativeResolution = 0.01

	// variable is the griddap variable holding the analysed SST field.
	variable = "analysed_sst"

	// analysisHour: MUR daily fields are timestamped 09:00 UTC.
	analysisHour = "09:00:00Z"

	sourceCurrent    = "NOAA MUR SST"
	sourceHistorical = "NOAA MUR SST Historical"
)

// Client fetches grid subsets from an ERDDAP griddap dataset.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an ERDDAP client. baseURL points at the dataset root,
// e.g. https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplMURSST41.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FetchGrid retrieves the grid described by req. The request is assumed to be
// validated and snapped already. Failures surface as one of the domain error
// kinds; no synthetic data is ever substituted.
func (c *Client) FetchGrid(ctx context.Context, req domain.GridRequest) (domain.Grid, error) {
	b := req.Bounds()
	latStride := stride(b.Height(), req.Resolution)
	lonStride := stride(b.Width(), req.Resolution)

	timeSel := "(last)"
	if req.Date != "" {
		timeSel = fmt.Sprintf("(%sT%s)", req.Date, analysisHour)
	}

	start := time.Now()
	rows, err := c.fetchRows(ctx, b, latStride, lonStride, timeSel)
	c.metrics.UpstreamDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(outcomeFor(err)).Inc()
		return domain.Grid{}, err
	}

	grid, err := c.assembleGrid(req, rows)
	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(outcomeFor(err)).Inc()
		return domain.Grid{}, err
	}

	c.metrics.UpstreamRequests.WithLabelValues("success").Inc()
	c.logger.Info("erddap grid fetched",
		"rows", grid.Rows(),
		"cols", grid.Cols(),
		"source", grid.Source,
		"observed_at", grid.ObservedAt,
	)
	return grid, nil
}

// stride converts a degree span and target resolution into the griddap
// sampling interval over the native axis.
func stride(span float64, resolution int) int {
	if resolution < 2 {
		resolution = 2
	}
	s := int(math.Round(span / float64(resolution-1) / nativeResolution))
	if s < 1 {
		return 1
	}
	return s
}

// point is one parsed upstream sample before matrix assembly.
type point struct {
	t   string
	lat float64
	lon float64
	val *float64
}

// fetchRows issues the griddap query. ERDDAP installations disagree on
// whether the latitude axis must be requested south→north or north→south, so
// a 4xx answer gets exactly one retry with the axis order reversed.
func (c *Client) fetchRows(ctx context.Context, b domain.Bounds, latStride, lonStride int, timeSel string) ([]point, error) {
	query := func(latA, latB float64) string {
		return fmt.Sprintf("%s[%s][(%g):%d:(%g)][(%g):%d:(%g)]",
			variable, timeSel, latA, latStride, latB, b.MinLon, lonStride, b.MaxLon)
	}

	rows, status, err := c.doRequest(ctx, query(b.MinLat, b.MaxLat))
	if err == nil {
		return rows, nil
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		c.logger.Warn("erddap rejected latitude order, retrying reversed", "status", status)
		rows, _, err2 := c.doRequest(ctx, query(b.MaxLat, b.MinLat))
		if err2 == nil {
			return rows, nil
		}
		return nil, err2
	}
	return nil, err
}

// doRequest performs one HTTP round trip and decodes the table response.
// The returned status is non-zero only for non-2xx answers.
func (c *Client) doRequest(ctx context.Context, query string) ([]point, int, error) {
	fullURL := c.baseURL + ".json?" + query
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request %q: %v: %w", fullURL, err, domain.ErrUpstreamUnavailable)
	}

	c.logger.Debug("erddap request", "url", fullURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			// Caller gave up; not an upstream failure and never retried.
			return nil, 0, fmt.Errorf("erddap request: %w", context.Canceled)
		case isTimeout(err):
			return nil, 0, fmt.Errorf("erddap request: %w", domain.ErrTimeout)
		default:
			return nil, 0, fmt.Errorf("erddap request: %w", &domain.UpstreamStatusError{Status: http.StatusBadGateway})
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil, resp.StatusCode, fmt.Errorf("erddap request: %w", &domain.UpstreamStatusError{Status: resp.StatusCode})
	}

	var table tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, 0, fmt.Errorf("decode erddap response: %w", domain.ErrUpstreamUnavailable)
	}

	return table.points(), 0, nil
}

// assembleGrid turns the sparse upstream rows into a dense south-first
// matrix. Missing cells stay nil; units and longitude domain are normalized.
func (c *Client) assembleGrid(req domain.GridRequest, rows []point) (domain.Grid, error) {
	if len(rows) == 0 {
		return domain.Grid{}, fmt.Errorf("erddap returned zero rows: %w", domain.ErrNoData)
	}

	latSet := map[float64]struct{}{}
	lonSet := map[float64]struct{}{}
	type coord struct{ lat, lon float64 }
	temps := make(map[coord]*float64, len(rows))

	observed := rows[0].t
	for _, p := range rows {
		lat := domain.Round3(p.lat)
		lon := domain.Round3(domain.NormalizeLongitude(p.lon))
		latSet[lat] = struct{}{}
		lonSet[lon] = struct{}{}
		if p.val != nil {
			temps[coord{lat, lon}] = domain.ConvertTemperature(*p.val)
		}
	}

	lats := sortedKeys(latSet)
	lons := sortedKeys(lonSet)

	cells := make([][]domain.Cell, len(lats))
	valid := 0
	for i, lat := range lats {
		row := make([]domain.Cell, len(lons))
		for j, lon := range lons {
			cell := domain.Cell{Lat: lat, Lon: lon}
			if v, ok := temps[coord{lat, lon}]; ok && v != nil {
				cell.Temp = v
				valid++
			}
			row[j] = cell
		}
		cells[i] = row
	}

	source := sourceCurrent
	if req.Date != "" {
		source = sourceHistorical
	}

	observedAt, err := time.Parse(time.RFC3339, observed)
	if err != nil {
		observedAt = time.Time{}
	}

	return domain.Grid{
		CenterLat:  req.CenterLat,
		CenterLon:  req.CenterLon,
		RegionSize: req.RegionSize,
		Cells:      cells,
		Source:     source,
		ObservedAt: observedAt,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func sortedKeys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Float64s(out)
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoData):
		return "no_data"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// Griddap tabular JSON response:
//
//	{"table": {"columnNames": ["time","latitude","longitude","analysed_sst"],
//	           "rows": [["2026-08-29T09:00:00Z", 32.7, -117.2, 18.3], ...]}}
type tableResponse struct {
	Table struct {
		ColumnNames []string `json:"columnNames"`
		Rows        [][]any  `json:"rows"`
	} `json:"table"`
}

// points maps the positional rows onto named columns, skipping rows that do
// not parse. Column order is resolved from columnNames with a positional
// fallback for servers that omit them.
func (t tableResponse) points() []point {
	idx := map[string]int{"time": 0, "latitude": 1, "longitude": 2, variable: 3}
	for i, name := range t.Table.ColumnNames {
		idx[name] = i
	}

	need := 0
	for _, i := range idx {
		if i > need {
			need = i
		}
	}

	pts := make([]point, 0, len(t.Table.Rows))
	for _, row := range t.Table.Rows {
		if len(row) <= need {
			continue
		}
		lat, okLat := asFloat(row[idx["latitude"]])
		lon, okLon := asFloat(row[idx["longitude"]])
		if !okLat || !okLon {
			continue
		}
		p := point{lat: lat, lon: lon}
		if s, ok := row[idx["time"]].(string); ok {
			p.t = s
		}
		if v, ok := asFloat(row[idx[variable]]); ok {
			p.val = &v
		}
		pts = append(pts, p)
	}
	return pts
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
