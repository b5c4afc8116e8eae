package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/saltline/oceangrid/internal/domain"
)

// Rasterize paints grid as a ramp-styled image of the given dimensions
// covering the viewport. Pixels outside the grid's coverage or over null
// cells are fully transparent.
func Rasterize(g *domain.Grid, viewport domain.Bounds, w, h int) *image.RGBA {
	return rasterize(g, viewport, w, h, RampColor)
}

// RasterizeValues is Rasterize with value-pixel encoding instead of display
// colors.
func RasterizeValues(g *domain.Grid, viewport domain.Bounds, w, h int) *image.RGBA {
	return rasterize(g, viewport, w, h, PackValue)
}

func rasterize(g *domain.Grid, viewport domain.Bounds, w, h int, paint func(float64) color.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if g == nil || g.Rows() == 0 || g.Cols() == 0 {
		return out
	}
	gridBounds, ok := g.Bounds()
	if !ok {
		return out
	}
	overlap, ok := gridBounds.Intersect(viewport)
	if !ok {
		return out
	}

	native := northUp(g)
	rows, cols := len(native), len(native[0])

	// Output pixel range covered by the overlap. Only this sub-rectangle is
	// painted; everything else stays transparent. Sampling per pixel center
	// keeps cell edges crisp and avoids the seam artifacts of scaling the
	// whole grid through a mismatched aspect ratio.
	vw, vh := viewport.Width(), viewport.Height()
	x0 := clampInt(int(math.Floor((overlap.MinLon-viewport.MinLon)/vw*float64(w))), 0, w)
	x1 := clampInt(int(math.Ceil((overlap.MaxLon-viewport.MinLon)/vw*float64(w))), 0, w)
	y0 := clampInt(int(math.Floor((viewport.MaxLat-overlap.MaxLat)/vh*float64(h))), 0, h)
	y1 := clampInt(int(math.Ceil((viewport.MaxLat-overlap.MinLat)/vh*float64(h))), 0, h)

	gw, gh := gridBounds.Width(), gridBounds.Height()
	for py := y0; py < y1; py++ {
		lat := viewport.MaxLat - (float64(py)+0.5)/float64(h)*vh
		ny := int((gridBounds.MaxLat - lat) / gh * float64(rows))
		if ny < 0 || ny >= rows {
			continue
		}
		for px := x0; px < x1; px++ {
			lon := viewport.MinLon + (float64(px)+0.5)/float64(w)*vw
			nx := int((lon - gridBounds.MinLon) / gw * float64(cols))
			if nx < 0 || nx >= cols {
				continue
			}
			if temp := native[ny][nx]; temp != nil {
				out.SetRGBA(px, py, paint(*temp))
			}
		}
	}
	return out
}

// northUp returns the grid's temperatures as a matrix whose row 0 is the
// northernmost latitude, flipping when the stored rows run south-first.
func northUp(g *domain.Grid) [][]*float64 {
	rows, cols := g.Rows(), g.Cols()
	flip := rows > 1 && g.Cells[0][0].Lat < g.Cells[rows-1][0].Lat

	native := make([][]*float64, rows)
	for i := 0; i < rows; i++ {
		src := g.Cells[i]
		if flip {
			src = g.Cells[rows-1-i]
		}
		row := make([]*float64, cols)
		for j := 0; j < cols && j < len(src); j++ {
			row[j] = src[j].Temp
		}
		native[i] = row
	}
	return native
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
