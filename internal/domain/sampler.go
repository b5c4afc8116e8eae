package domain

import "math"

// DefaultSampleRadius is the maximum distance in degrees (~5 km) between a
// query point and the nearest valid cell for a readout to count as coverage.
// A presentation tuning constant, not a hard invariant.
const DefaultSampleRadius = 0.05

// SampleNearest returns the temperature of the nearest non-nil cell within
// maxDist degrees of the query point. It performs no I/O: a nil grid or an
// empty search radius simply reports no data. The scan is linear, which is
// fine at the grid sizes in play (≤ ~150×150); callers depend only on this
// signature, so a spatial index could be swapped in without interface change.
func SampleNearest(g *Grid, lat, lon, maxDist float64) (float64, bool) {
	if g == nil || maxDist <= 0 {
		return 0, false
	}

	best := math.Inf(1)
	var temp float64
	found := false
	for _, row := range g.Cells {
		for _, c := range row {
			if c.Temp == nil {
				continue
			}
			dLat := c.Lat - lat
			dLon := c.Lon - lon
			d2 := dLat*dLat + dLon*dLon
			if d2 < best {
				best = d2
				temp = *c.Temp
				found = true
			}
		}
	}
	if !found || math.Sqrt(best) > maxDist {
		return 0, false
	}
	return temp, true
}
