package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want *float64
	}{
		{"celsius passes through", 18.34, f64(18.3)},
		{"kelvin converted", 291.45, f64(18.3)},
		{"kelvin boundary just above threshold", 268.15, f64(-5.0)},
		{"too cold rejected", -7.2, nil},
		{"too hot rejected", 45.0, nil},
		{"kelvin mapping out of range rejected", 320.0, nil},
		{"lower bound kept", -5.0, f64(-5.0)},
		{"upper bound kept", 40.0, f64(40.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertTemperature(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestNormalizeLongitude(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{-117.2, -117.2},
		{242.8, -117.2},
		{180, -180},
		{360, 0},
		{359.5, -0.5},
		{-181, 179},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalizeLongitude(tt.in), 1e-9, "input %v", tt.in)
	}
}

func TestNormalizeLongitude_WrapEquivalence(t *testing.T) {
	for _, x := range []float64{0.5, 90, 179.9, 200, 300, 359.9} {
		assert.InDelta(t, NormalizeLongitude(x), NormalizeLongitude(x-360), 1e-9, "x=%v", x)
	}
}

func TestCacheKey_RoundingCollision(t *testing.T) {
	a := GridRequest{CenterLat: 32.7012, CenterLon: -117.2049, RegionSize: 2.04, Resolution: 15}
	b := GridRequest{CenterLat: 32.6989, CenterLon: -117.1951, RegionSize: 1.96, Resolution: 15}

	assert.Equal(t, a.CacheKey(), b.CacheKey(), "requests within rounding tolerance must share a key")
	assert.Equal(t, "grid_32.70_-117.20_2.0_15", a.CacheKey())
}

func TestCacheKey_DateDistinguishes(t *testing.T) {
	cur := GridRequest{CenterLat: 32.7, CenterLon: -117.2, RegionSize: 2, Resolution: 15}
	hist := cur
	hist.Date = "2020-06-15"

	assert.NotEqual(t, cur.CacheKey(), hist.CacheKey())
	assert.Equal(t, "grid_32.70_-117.20_2.0_15_2020-06-15", hist.CacheKey())
}

func TestSnap(t *testing.T) {
	r := GridRequest{CenterLat: 32.81, CenterLon: -117.13, RegionSize: 2.7, Resolution: 60}
	s := r.Snap()

	assert.InDelta(t, 32.75, s.CenterLat, 1e-9)
	assert.InDelta(t, -117.25, s.CenterLon, 1e-9)
	assert.InDelta(t, 3.0, s.RegionSize, 1e-9)
	assert.Equal(t, 60, s.Resolution)
}

func TestSnap_RegionClampsToAllowedSet(t *testing.T) {
	assert.InDelta(t, 2.0, GridRequest{RegionSize: 0.5}.Snap().RegionSize, 1e-9)
	assert.InDelta(t, 6.0, GridRequest{RegionSize: 11.0}.Snap().RegionSize, 1e-9)
}

func TestValidate(t *testing.T) {
	valid := GridRequest{CenterLat: 32.7, CenterLon: -117.2, RegionSize: 2, Resolution: 15}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*GridRequest)
	}{
		{"latitude out of range", func(r *GridRequest) { r.CenterLat = 91 }},
		{"longitude out of range", func(r *GridRequest) { r.CenterLon = -181 }},
		{"zero region", func(r *GridRequest) { r.RegionSize = 0 }},
		{"resolution too small", func(r *GridRequest) { r.Resolution = 1 }},
		{"resolution too large", func(r *GridRequest) { r.Resolution = 500 }},
		{"malformed date", func(r *GridRequest) { r.Date = "15-06-2020" }},
		{"date before record start", func(r *GridRequest) { r.Date = "1979-01-01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestValidate_FutureDateRejected(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	r := GridRequest{CenterLat: 32.7, CenterLon: -117.2, RegionSize: 2, Resolution: 15, Date: "2026-09-15"}
	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	r.Date = "2026-08-29"
	assert.NoError(t, r.Validate())
}

func TestGridBounds_FromMetadata(t *testing.T) {
	g := &Grid{CenterLat: 33, CenterLon: -117, RegionSize: 2}
	b, ok := g.Bounds()
	require.True(t, ok)
	assert.Equal(t, Bounds{MinLat: 32, MaxLat: 34, MinLon: -118, MaxLon: -116}, b)
}

func TestGridBounds_FallbackFromCells(t *testing.T) {
	// 3x3 grid at 0.5° spacing, no center/region metadata.
	g := &Grid{Cells: make([][]Cell, 3)}
	for i := range 3 {
		g.Cells[i] = make([]Cell, 3)
		for j := range 3 {
			g.Cells[i][j] = Cell{Lat: 32 + 0.5*float64(i), Lon: -118 + 0.5*float64(j)}
		}
	}

	b, ok := g.Bounds()
	require.True(t, ok)
	// Cell extents padded by half a step (0.25°) per side.
	assert.InDelta(t, 31.75, b.MinLat, 1e-9)
	assert.InDelta(t, 33.25, b.MaxLat, 1e-9)
	assert.InDelta(t, -118.25, b.MinLon, 1e-9)
	assert.InDelta(t, -116.75, b.MaxLon, 1e-9)
}

func TestGridBounds_EmptyGrid(t *testing.T) {
	g := &Grid{}
	_, ok := g.Bounds()
	assert.False(t, ok)
}

func TestBoundsIntersect(t *testing.T) {
	a := Bounds{MinLat: 30, MaxLat: 34, MinLon: -120, MaxLon: -116}

	got, ok := a.Intersect(Bounds{MinLat: 32, MaxLat: 36, MinLon: -118, MaxLon: -114})
	require.True(t, ok)
	assert.Equal(t, Bounds{MinLat: 32, MaxLat: 34, MinLon: -118, MaxLon: -116}, got)

	_, ok = a.Intersect(Bounds{MinLat: 40, MaxLat: 44, MinLon: -120, MaxLon: -116})
	assert.False(t, ok, "disjoint latitudes")

	_, ok = a.Intersect(Bounds{MinLat: 30, MaxLat: 34, MinLon: -110, MaxLon: -100})
	assert.False(t, ok, "disjoint longitudes")
}

func TestComputeStats(t *testing.T) {
	g := &Grid{Cells: [][]Cell{
		{{Temp: f64(14.0)}, {Temp: nil}},
		{{Temp: f64(22.0)}, {Temp: f64(18.0)}},
	}}

	stats, n := g.ComputeStats()
	assert.Equal(t, 3, n)
	require.NotNil(t, stats.Min)
	assert.InDelta(t, 14.0, *stats.Min, 1e-9)
	assert.InDelta(t, 22.0, *stats.Max, 1e-9)
	assert.InDelta(t, 18.0, *stats.Avg, 1e-9)
}

func TestComputeStats_AllNull(t *testing.T) {
	g := &Grid{Cells: [][]Cell{{{Temp: nil}, {Temp: nil}}}}
	stats, n := g.ComputeStats()
	assert.Zero(t, n)
	assert.Nil(t, stats.Min)
	assert.Nil(t, stats.Max)
	assert.Nil(t, stats.Avg)
}
