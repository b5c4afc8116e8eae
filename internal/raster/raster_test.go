package raster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltline/oceangrid/internal/domain"
)

// quadGrid builds a 2x2 grid with rows stored south-first, the order the
// upstream adapter produces: row 0 holds the southern temperatures.
func quadGrid(south, north float64) *domain.Grid {
	s0, s1 := south, south
	n0, n1 := north, north
	return &domain.Grid{
		CenterLat:  0,
		CenterLon:  0,
		RegionSize: 2,
		Cells: [][]domain.Cell{
			{{Lat: -0.5, Lon: -0.5, Temp: &s0}, {Lat: -0.5, Lon: 0.5, Temp: &s1}},
			{{Lat: 0.5, Lon: -0.5, Temp: &n0}, {Lat: 0.5, Lon: 0.5, Temp: &n1}},
		},
	}
}

func TestRampColor(t *testing.T) {
	tests := []struct {
		name string
		temp float64
		want color.RGBA
	}{
		{"below range clamps to deep blue", 2.0, color.RGBA{0, 0, 139, 255}},
		{"lowest anchor", 10.0, color.RGBA{0, 0, 139, 255}},
		{"sky blue anchor", 15.6, color.RGBA{135, 206, 235, 255}},
		{"green anchor", 20.0, color.RGBA{0, 128, 0, 255}},
		{"yellow anchor", 23.3, color.RGBA{255, 255, 0, 255}},
		{"highest anchor", 26.7, color.RGBA{255, 0, 0, 255}},
		{"above range clamps to red", 35.0, color.RGBA{255, 0, 0, 255}},
		{"midpoint interpolates", 12.8, color.RGBA{68, 103, 187, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RampColor(tt.temp))
		})
	}
}

func TestPackValue_RoundTrip(t *testing.T) {
	for _, temp := range []float64{-5.0, 0.0, 15.37, 26.7, 40.0} {
		c := PackValue(temp)
		assert.Equal(t, uint8(255), c.A)
		assert.InDelta(t, temp, UnpackValue(c), 1e-9)
	}
}

func TestPackValue_ClampsBelowOffset(t *testing.T) {
	c := PackValue(-50)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, c)
	assert.InDelta(t, ValueOffset, UnpackValue(c), 1e-9)
}

func TestTileBounds(t *testing.T) {
	world := TileBounds(0, 0, 0)
	assert.InDelta(t, -180, world.MinLon, 1e-9)
	assert.InDelta(t, 180, world.MaxLon, 1e-9)
	assert.InDelta(t, 85.0511, world.MaxLat, 1e-3)
	assert.InDelta(t, -85.0511, world.MinLat, 1e-3)

	ne := TileBounds(1, 1, 0)
	assert.InDelta(t, 0, ne.MinLon, 1e-9)
	assert.InDelta(t, 180, ne.MaxLon, 1e-9)
	assert.InDelta(t, 0, ne.MinLat, 1e-9)
	assert.InDelta(t, 85.0511, ne.MaxLat, 1e-3)
}

func TestValidTile(t *testing.T) {
	assert.True(t, ValidTile(0, 0, 0))
	assert.True(t, ValidTile(5, 31, 31))
	assert.False(t, ValidTile(5, 32, 0))
	assert.False(t, ValidTile(-1, 0, 0))
	assert.False(t, ValidTile(3, 0, -1))
	assert.False(t, ValidTile(23, 0, 0))
}

func TestRasterize_NorthIsUp(t *testing.T) {
	g := quadGrid(14.0, 22.0)
	viewport := domain.Bounds{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1}

	img := Rasterize(g, viewport, 4, 4)

	top := img.RGBAAt(0, 0)    // northern half: 22 °C, green toward yellow
	bottom := img.RGBAAt(0, 3) // southern half: 14 °C, blue dominant
	require.Equal(t, uint8(255), top.A)
	require.Equal(t, uint8(255), bottom.A)
	assert.Zero(t, top.B)
	assert.Greater(t, top.G, top.B)
	assert.Greater(t, bottom.B, bottom.R)
	assert.Greater(t, bottom.B, bottom.G)
}

func TestRasterize_NullCellsTransparent(t *testing.T) {
	g := &domain.Grid{
		CenterLat:  0,
		CenterLon:  0,
		RegionSize: 2,
		Cells: [][]domain.Cell{
			{{Lat: -0.5, Lon: -0.5}, {Lat: -0.5, Lon: 0.5}},
			{{Lat: 0.5, Lon: -0.5}, {Lat: 0.5, Lon: 0.5}},
		},
	}
	viewport := domain.Bounds{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1}

	img := Rasterize(g, viewport, 4, 4)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Zero(t, img.RGBAAt(x, y).A, "pixel (%d,%d)", x, y)
		}
	}
}

func TestRasterize_DisjointViewportTransparent(t *testing.T) {
	g := quadGrid(18.0, 18.0)
	viewport := domain.Bounds{MinLat: 40, MaxLat: 42, MinLon: 40, MaxLon: 42}

	img := Rasterize(g, viewport, 4, 4)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			assert.Zero(t, img.RGBAAt(x, y).A)
		}
	}
}

func TestRasterize_NilGridTransparent(t *testing.T) {
	viewport := domain.Bounds{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1}
	img := Rasterize(nil, viewport, 2, 2)
	require.Equal(t, 2, img.Bounds().Dx())
	assert.Zero(t, img.RGBAAt(0, 0).A)
}

func TestRasterize_PartialOverlap(t *testing.T) {
	g := quadGrid(20.0, 20.0)
	// Viewport extends beyond the grid to the north and east; only the
	// lower-left quadrant of the output has coverage.
	viewport := domain.Bounds{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 2}

	img := Rasterize(g, viewport, 4, 4)

	assert.Equal(t, uint8(255), img.RGBAAt(0, 3).A, "inside grid coverage")
	assert.Zero(t, img.RGBAAt(3, 0).A, "beyond grid coverage")
	assert.Zero(t, img.RGBAAt(3, 3).A, "east of grid coverage")
}

func TestRasterize_FallbackBoundsFromCells(t *testing.T) {
	g := quadGrid(19.0, 19.0)
	g.RegionSize = 0 // force the cell-extent fallback
	viewport := domain.Bounds{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1}

	img := Rasterize(g, viewport, 4, 4)

	assert.Equal(t, uint8(255), img.RGBAAt(1, 1).A)
}

func TestRasterizeValues_EncodesTemperature(t *testing.T) {
	g := quadGrid(18.5, 18.5)
	viewport := domain.Bounds{MinLat: -1, MaxLat: 1, MinLon: -1, MaxLon: 1}

	img := RasterizeValues(g, viewport, 4, 4)

	c := img.RGBAAt(1, 1)
	require.Equal(t, uint8(255), c.A)
	assert.InDelta(t, 18.5, UnpackValue(c), 1e-9)
}

func TestStyledTile_SizeAndEncoding(t *testing.T) {
	g := quadGrid(16.0, 16.0)

	img := StyledTile(g, 0, 0, 0)
	require.Equal(t, TileSize, img.Bounds().Dx())
	require.Equal(t, TileSize, img.Bounds().Dy())

	data, err := EncodePNG(img)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}
