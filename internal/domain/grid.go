package domain

import (
	"fmt"
	"math"
	"time"
)

// Valid post-conversion temperature range for ocean surface water, in °C.
// Values outside this window are treated as sensor or parsing noise.
const (
	MinValidTemp = -5.0
	MaxValidTemp = 40.0
)

// kelvinThreshold separates Celsius from Kelvin raw values: no ocean surface
// reading is anywhere near 100 °C, while Kelvin SSTs sit around 280-300.
const kelvinThreshold = 100.0

// Cell is a single grid sample. Temp is nil where the upstream has no value.
type Cell struct {
	Lat  float64  `json:"lat"`
	Lon  float64  `json:"lon"`
	Temp *float64 `json:"temp"`
}

// Grid is a dense matrix of SST samples over a square geographic region.
// Row 0 is the southernmost row; latitudes ascend with the row index.
type Grid struct {
	CenterLat  float64   `json:"center_lat"`
	CenterLon  float64   `json:"center_lon"`
	RegionSize float64   `json:"region_size"`
	Cells      [][]Cell  `json:"cells"`
	Source     string    `json:"source"`
	ObservedAt time.Time `json:"observed_at"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Rows returns the number of latitude rows.
func (g *Grid) Rows() int { return len(g.Cells) }

// Cols returns the number of longitude columns, 0 for an empty grid.
func (g *Grid) Cols() int {
	if len(g.Cells) == 0 {
		return 0
	}
	return len(g.Cells[0])
}

// Bounds returns the geographic bounding box of the grid. When the grid
// carries center/region metadata the box is derived from it; otherwise the
// cell extents are scanned and padded by half a cell step on each side so
// edge cells are fully covered.
func (g *Grid) Bounds() (Bounds, bool) {
	if g.RegionSize > 0 {
		half := g.RegionSize / 2
		return Bounds{
			MinLat: g.CenterLat - half,
			MaxLat: g.CenterLat + half,
			MinLon: g.CenterLon - half,
			MaxLon: g.CenterLon + half,
		}, true
	}

	rows, cols := g.Rows(), g.Cols()
	if rows == 0 || cols == 0 {
		return Bounds{}, false
	}

	b := Bounds{MinLat: math.Inf(1), MaxLat: math.Inf(-1), MinLon: math.Inf(1), MaxLon: math.Inf(-1)}
	for _, row := range g.Cells {
		for _, c := range row {
			b.MinLat = math.Min(b.MinLat, c.Lat)
			b.MaxLat = math.Max(b.MaxLat, c.Lat)
			b.MinLon = math.Min(b.MinLon, c.Lon)
			b.MaxLon = math.Max(b.MaxLon, c.Lon)
		}
	}

	// Pad by half a cell step so the outermost samples sit at pixel centers
	// rather than on the box edge.
	if rows > 1 {
		pad := (b.MaxLat - b.MinLat) / float64(rows-1) / 2
		b.MinLat -= pad
		b.MaxLat += pad
	}
	if cols > 1 {
		pad := (b.MaxLon - b.MinLon) / float64(cols-1) / 2
		b.MinLon -= pad
		b.MaxLon += pad
	}
	return b, true
}

// Stats summarizes the valid temperatures of a grid for API responses.
type Stats struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
	Avg *float64 `json:"avg"`
}

// ComputeStats returns min/max/avg over the non-nil cells and the count of
// valid samples. All stat fields are nil for an all-null grid.
func (g *Grid) ComputeStats() (Stats, int) {
	var (
		count    int
		sum      float64
		min, max float64
	)
	for _, row := range g.Cells {
		for _, c := range row {
			if c.Temp == nil {
				continue
			}
			v := *c.Temp
			if count == 0 {
				min, max = v, v
			} else {
				min = math.Min(min, v)
				max = math.Max(max, v)
			}
			sum += v
			count++
		}
	}
	if count == 0 {
		return Stats{}, 0
	}
	avg := round1(sum / float64(count))
	minR, maxR := round1(min), round1(max)
	return Stats{Min: &minR, Max: &maxR, Avg: &avg}, count
}

// Bounds is a geographic bounding box in WGS-84 degrees.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Width returns the longitudinal span in degrees.
func (b Bounds) Width() float64 { return b.MaxLon - b.MinLon }

// Height returns the latitudinal span in degrees.
func (b Bounds) Height() float64 { return b.MaxLat - b.MinLat }

// Intersect returns the overlap of two boxes and whether it is non-empty.
func (b Bounds) Intersect(o Bounds) (Bounds, bool) {
	out := Bounds{
		MinLat: math.Max(b.MinLat, o.MinLat),
		MaxLat: math.Min(b.MaxLat, o.MaxLat),
		MinLon: math.Max(b.MinLon, o.MinLon),
		MaxLon: math.Min(b.MaxLon, o.MaxLon),
	}
	if out.MinLat >= out.MaxLat || out.MinLon >= out.MaxLon {
		return Bounds{}, false
	}
	return out, true
}

// ConvertTemperature maps a raw upstream value to validated Celsius.
// Values above the Kelvin threshold are shifted by -273.15 first; anything
// landing outside [MinValidTemp, MaxValidTemp] is rejected as nil.
func ConvertTemperature(raw float64) *float64 {
	if raw > kelvinThreshold {
		raw -= 273.15
	}
	if raw < MinValidTemp || raw > MaxValidTemp {
		return nil
	}
	v := round1(raw)
	return &v
}

// NormalizeLongitude maps any longitude into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	m := math.Mod(lon+180, 360)
	if m < 0 {
		m += 360
	}
	return m - 180
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Round3 rounds a coordinate to millidegree precision, the granularity kept
// in stored grids.
func Round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// EarliestHistoricalDate is the first day of the historical SST record.
var EarliestHistoricalDate = time.Date(1981, 9, 1, 0, 0, 0, 0, time.UTC)

// snapRegionSizes is the allowed set of region sizes in degrees. Requests
// snap to the nearest member so nearby viewports share cache entries.
var snapRegionSizes = []float64{2.0, 3.0, 4.0, 6.0}

// Resolution limits accepted from callers. The upstream stride math breaks
// down below 2 points per axis, and anything past 240 hammers ERDDAP for no
// visible gain at map zoom levels.
const (
	MinResolution = 2
	MaxResolution = 240
)

// GridRequest identifies one logical grid: a square region around a center
// point at a target resolution, optionally pinned to a historical date.
type GridRequest struct {
	CenterLat  float64
	CenterLon  float64
	RegionSize float64
	Resolution int
	Date       string // YYYY-MM-DD, empty for the latest analysis
}

// Validate checks parameter ranges and the historical date window.
func (r GridRequest) Validate() error {
	if r.CenterLat < -90 || r.CenterLat > 90 {
		return fmt.Errorf("%w: latitude %.4f out of range", ErrInvalidRequest, r.CenterLat)
	}
	if r.CenterLon < -180 || r.CenterLon > 180 {
		return fmt.Errorf("%w: longitude %.4f out of range", ErrInvalidRequest, r.CenterLon)
	}
	if r.RegionSize <= 0 {
		return fmt.Errorf("%w: region size must be positive", ErrInvalidRequest)
	}
	if r.Resolution < MinResolution || r.Resolution > MaxResolution {
		return fmt.Errorf("%w: resolution %d outside [%d, %d]", ErrInvalidRequest, r.Resolution, MinResolution, MaxResolution)
	}
	if r.Date != "" {
		d, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrInvalidRequest, r.Date)
		}
		if d.Before(EarliestHistoricalDate) {
			return fmt.Errorf("%w: date %s precedes historical record start %s",
				ErrInvalidRequest, r.Date, EarliestHistoricalDate.Format("2006-01-02"))
		}
		if d.After(clock.Now().UTC()) {
			return fmt.Errorf("%w: date %s is in the future", ErrInvalidRequest, r.Date)
		}
	}
	return nil
}

// Snap canonicalizes the request onto the cache-friendly parameter lattice:
// center coordinates to the 0.25° grid, region size to the nearest allowed
// value. Resolution and date pass through unchanged.
func (r GridRequest) Snap() GridRequest {
	snapCoord := func(v float64) float64 {
		return math.Round(math.Round(v/0.25)*0.25*100) / 100
	}
	best := snapRegionSizes[0]
	for _, s := range snapRegionSizes[1:] {
		if math.Abs(s-r.RegionSize) < math.Abs(best-r.RegionSize) {
			best = s
		}
	}
	r.CenterLat = snapCoord(r.CenterLat)
	r.CenterLon = snapCoord(r.CenterLon)
	r.RegionSize = best
	return r
}

// Bounds returns the square bounding box of the requested region.
func (r GridRequest) Bounds() Bounds {
	half := r.RegionSize / 2
	return Bounds{
		MinLat: r.CenterLat - half,
		MaxLat: r.CenterLat + half,
		MinLon: r.CenterLon - half,
		MaxLon: r.CenterLon + half,
	}
}

// CacheKey returns the deterministic fingerprint of the request. Centers are
// rounded to 0.01°, region sizes to 0.1°, so requests within rounding
// tolerance collide on purpose.
func (r GridRequest) CacheKey() string {
	key := fmt.Sprintf("grid_%.2f_%.2f_%.1f_%d", r.CenterLat, r.CenterLon, r.RegionSize, r.Resolution)
	if r.Date != "" {
		key += "_" + r.Date
	}
	return key
}
