// Package raster paints temperature grids as RGBA images: ramp-styled
// imagery for direct display and packed value imagery for client-side
// decoding, plus the XYZ tile geometry both are served under.
package raster

import (
	"image/color"
	"math"
)

// rampStop is one anchor of the display color ramp.
type rampStop struct {
	temp    float64
	r, g, b uint8
}

// rampStops is the documented anchor table for the styled output, tuned for
// the 10-27 °C band the target coastal regions live in. Values outside the
// table clamp to the end colors.
var rampStops = []rampStop{
	{10.0, 0, 0, 139},     // deep blue
	{15.6, 135, 206, 235}, // sky blue
	{20.0, 0, 128, 0},     // green
	{23.3, 255, 255, 0},   // yellow
	{26.7, 255, 0, 0},     // red
}

// RampColor maps a temperature in °C to its display color by piecewise
// linear interpolation between the anchor stops.
func RampColor(temp float64) color.RGBA {
	first := rampStops[0]
	if temp <= first.temp {
		return color.RGBA{R: first.r, G: first.g, B: first.b, A: 255}
	}
	last := rampStops[len(rampStops)-1]
	if temp >= last.temp {
		return color.RGBA{R: last.r, G: last.g, B: last.b, A: 255}
	}

	for i := 1; i < len(rampStops); i++ {
		lo, hi := rampStops[i-1], rampStops[i]
		if temp > hi.temp {
			continue
		}
		t := (temp - lo.temp) / (hi.temp - lo.temp)
		return color.RGBA{
			R: lerp(lo.r, hi.r, t),
			G: lerp(lo.g, hi.g, t),
			B: lerp(lo.b, hi.b, t),
			A: 255,
		}
	}
	return color.RGBA{R: last.r, G: last.g, B: last.b, A: 255}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// Value-pixel encoding. Temperatures are packed into the 24 RGB bits as
// units of ValueScale °C above ValueOffset, so -10 °C encodes as 0 and each
// unit step is one hundredth of a degree. Clients decode with
// (r<<16|g<<8|b)*scale+offset.
const (
	ValueScale  = 0.01
	ValueOffset = -10.0

	maxPackedValue = 0xFFFFFF
)

// PackValue encodes a temperature as a value pixel. Alpha is always opaque;
// missing data is represented by omitting the pixel entirely.
func PackValue(temp float64) color.RGBA {
	units := math.Round((temp - ValueOffset) / ValueScale)
	if units < 0 {
		units = 0
	}
	if units > maxPackedValue {
		units = maxPackedValue
	}
	u := uint32(units)
	return color.RGBA{
		R: uint8(u >> 16),
		G: uint8(u >> 8),
		B: uint8(u),
		A: 255,
	}
}

// UnpackValue decodes a value pixel back to °C.
func UnpackValue(c color.RGBA) float64 {
	u := uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	return float64(u)*ValueScale + ValueOffset
}
