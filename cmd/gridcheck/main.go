// Command gridcheck fetches one temperature grid straight from ERDDAP and
// prints a coverage report: dimensions, valid-cell ratio, temperature stats,
// and a coarse ASCII rendering. It bypasses cache and coordinator, so it is
// the quickest way to verify upstream behavior for a region, or to debug a
// suspect cache entry by comparing against a fresh fetch.
//
// Usage:
//
//	go run ./cmd/gridcheck -lat 32.7 -lon -117.2 -region 2.0 -size 15
//	go run ./cmd/gridcheck -lat 32.7 -lon -117.2 -date 2024-06-15
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/saltline/oceangrid/internal/adapter/erddap"
	"github.com/saltline/oceangrid/internal/domain"
	"github.com/saltline/oceangrid/internal/observability"
)

const defaultBaseURL = "https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplMURSST41"

func main() {
	lat := flag.Float64("lat", 32.7, "center latitude")
	lon := flag.Float64("lon", -117.2, "center longitude")
	region := flag.Float64("region", 2.0, "region size in degrees")
	size := flag.Int("size", 15, "grid resolution (points per side)")
	date := flag.String("date", "", "historical date YYYY-MM-DD (default: latest analysis)")
	baseURL := flag.String("url", defaultBaseURL, "ERDDAP griddap dataset URL")
	timeout := flag.Duration("timeout", 30*time.Second, "upstream request timeout")
	flag.Parse()

	if code := run(*lat, *lon, *region, *size, *date, *baseURL, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(lat, lon, region float64, size int, date, baseURL string, timeout time.Duration) int {
	req := domain.GridRequest{
		CenterLat:  lat,
		CenterLon:  lon,
		RegionSize: region,
		Resolution: size,
		Date:       date,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid request: %v\n", err)
		return 1
	}
	snapped := req.Snap()
	if snapped != req {
		fmt.Printf("snapped to center (%.2f, %.2f), region %.1f\n",
			snapped.CenterLat, snapped.CenterLon, snapped.RegionSize)
	}

	logger := observability.NewLogger("warn", "text")
	client := erddap.NewClient(baseURL, timeout, observability.NewMetrics(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()

	grid, err := client.FetchGrid(ctx, snapped)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		return 1
	}

	report(&grid, snapped)
	return 0
}

func report(grid *domain.Grid, req domain.GridRequest) {
	stats, points := grid.ComputeStats()
	total := grid.Rows() * grid.Cols()

	fmt.Printf("source:    %s\n", grid.Source)
	if !grid.ObservedAt.IsZero() {
		fmt.Printf("data time: %s\n", grid.ObservedAt.Format(time.RFC3339))
	}
	fmt.Printf("grid:      %dx%d (%d requested)\n", grid.Rows(), grid.Cols(), req.Resolution)
	if total > 0 {
		fmt.Printf("coverage:  %d/%d cells (%.0f%%)\n", points, total, 100*float64(points)/float64(total))
	}
	if stats.Min != nil {
		fmt.Printf("temps:     min %.1f, max %.1f, avg %.1f degC\n", *stats.Min, *stats.Max, *stats.Avg)
	}

	fmt.Println()
	sketch(grid, stats)
}

// sketch prints the grid as ASCII, north row first: '.' for missing data and
// a 0-9 digit for where each cell sits in the grid's own min-max range.
func sketch(grid *domain.Grid, stats domain.Stats) {
	if stats.Min == nil {
		fmt.Println("(no valid cells to draw)")
		return
	}
	span := *stats.Max - *stats.Min

	for i := grid.Rows() - 1; i >= 0; i-- {
		for _, c := range grid.Cells[i] {
			if c.Temp == nil {
				fmt.Print(".")
				continue
			}
			level := 0
			if span > 0 {
				level = int((*c.Temp - *stats.Min) / span * 9)
			}
			fmt.Printf("%d", level)
		}
		fmt.Println()
	}
}
