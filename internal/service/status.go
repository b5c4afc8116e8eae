package service

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// SourceInfo describes one upstream dataset in the catalog.
type SourceInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Resolution string `json:"resolution"`
	Coverage   string `json:"temporal_coverage"`
	URL        string `json:"url"`
}

// Sources returns the dataset catalog served by /sources. MUR is the
// dataset actually fetched; OI SST is listed as the coarse fallback for
// dates before the MUR record begins.
func Sources() []SourceInfo {
	return []SourceInfo{
		{
			ID:         "jplMURSST41",
			Name:       "Multi-scale Ultra-high Resolution SST Analysis",
			Resolution: "0.01 degrees",
			Coverage:   "2002-06-01 to present, daily",
			URL:        "https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplMURSST41.html",
		},
		{
			ID:         "ncdcOisst21Agg_LonPM180",
			Name:       "NOAA Optimum Interpolation SST v2.1",
			Resolution: "0.25 degrees",
			Coverage:   "1981-09-01 to present, daily",
			URL:        "https://coastwatch.pfeg.noaa.gov/erddap/griddap/ncdcOisst21Agg_LonPM180.html",
		},
	}
}

// SourceStatus is one dataset's reachability probe result.
type SourceStatus struct {
	ID        string `json:"id"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// StatusReport is the /status payload.
type StatusReport struct {
	Ready   bool           `json:"ready"`
	Sources []SourceStatus `json:"sources"`
}

// Status probes every catalog dataset in parallel and reports reachability.
// Probe failures are reported, never returned as errors.
func (s *Service) Status(ctx context.Context) StatusReport {
	sources := Sources()
	statuses := make([]SourceStatus, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			statuses[i] = s.probe(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	return StatusReport{Ready: s.ready.Load(), Sources: statuses}
}

func (s *Service) probe(ctx context.Context, src SourceInfo) SourceStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src.URL, nil)
	if err != nil {
		return SourceStatus{ID: src.ID, Error: err.Error()}
	}

	start := time.Now()
	resp, err := s.probeClient.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return SourceStatus{ID: src.ID, LatencyMS: latency, Error: err.Error()}
	}
	defer resp.Body.Close()

	return SourceStatus{
		ID:        src.ID,
		Reachable: resp.StatusCode < http.StatusInternalServerError,
		LatencyMS: latency,
	}
}
