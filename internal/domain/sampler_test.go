package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGrid() *Grid {
	// 3x3 grid at 0.1° spacing around (32.8, -117.1); center cell is land.
	g := &Grid{Cells: make([][]Cell, 3)}
	for i := range 3 {
		g.Cells[i] = make([]Cell, 3)
		for j := range 3 {
			c := Cell{Lat: 32.7 + 0.1*float64(i), Lon: -117.2 + 0.1*float64(j)}
			if !(i == 1 && j == 1) {
				v := 15.0 + float64(i*3+j)
				c.Temp = &v
			}
			g.Cells[i][j] = c
		}
	}
	return g
}

func TestSampleNearest_ExactHit(t *testing.T) {
	g := sampleGrid()
	temp, ok := SampleNearest(g, 32.7, -117.2, DefaultSampleRadius)
	require.True(t, ok)
	assert.InDelta(t, 15.0, temp, 1e-9)
}

func TestSampleNearest_SkipsNullCells(t *testing.T) {
	g := sampleGrid()
	// Query at the null center cell: nearest valid neighbor is 0.1° away,
	// outside the default radius.
	_, ok := SampleNearest(g, 32.8, -117.1, DefaultSampleRadius)
	assert.False(t, ok)

	// With a wider radius the neighbor is found instead of the null cell.
	temp, ok := SampleNearest(g, 32.8, -117.1, 0.15)
	require.True(t, ok)
	assert.NotZero(t, temp)
}

func TestSampleNearest_BeyondThreshold(t *testing.T) {
	g := sampleGrid()
	_, ok := SampleNearest(g, 40.0, -130.0, DefaultSampleRadius)
	assert.False(t, ok, "far query must report no data even on a non-empty grid")
}

func TestSampleNearest_NilGrid(t *testing.T) {
	_, ok := SampleNearest(nil, 32.7, -117.2, DefaultSampleRadius)
	assert.False(t, ok)
}

func TestSampleNearest_JustInsideRadius(t *testing.T) {
	g := sampleGrid()
	temp, ok := SampleNearest(g, 32.7+0.03, -117.2, DefaultSampleRadius)
	require.True(t, ok)
	assert.InDelta(t, 15.0, temp, 1e-9)
}
