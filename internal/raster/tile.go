package raster

import (
	"bytes"
	"image"
	"image/png"
	"math"

	"github.com/saltline/oceangrid/internal/domain"
)

// TileSize is the edge length of served XYZ tiles in pixels.
const TileSize = 256

// TileBounds returns the geographic bounding box of slippy tile z/x/y in
// WGS84 degrees, using the standard Web Mercator tiling scheme.
func TileBounds(z, x, y int) domain.Bounds {
	n := math.Exp2(float64(z))
	return domain.Bounds{
		MinLon: float64(x)/n*360 - 180,
		MaxLon: float64(x+1)/n*360 - 180,
		MaxLat: tileLat(float64(y), n),
		MinLat: tileLat(float64(y+1), n),
	}
}

// ValidTile reports whether z/x/y names a real tile.
func ValidTile(z, x, y int) bool {
	if z < 0 || z > 22 {
		return false
	}
	n := 1 << z
	return x >= 0 && x < n && y >= 0 && y < n
}

func tileLat(y, n float64) float64 {
	return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
}

// StyledTile renders tile z/x/y from grid using the display ramp.
func StyledTile(g *domain.Grid, z, x, y int) *image.RGBA {
	return Rasterize(g, TileBounds(z, x, y), TileSize, TileSize)
}

// ValueTile renders tile z/x/y from grid using value-pixel encoding.
func ValueTile(g *domain.Grid, z, x, y int) *image.RGBA {
	return RasterizeValues(g, TileBounds(z, x, y), TileSize, TileSize)
}

// EncodePNG serializes an image for the tile endpoints.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
