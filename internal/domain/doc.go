// Package domain models NOAA sea-surface-temperature (SST) grid data.
//
// # Data Source
//
// Grids are subsets of the JPL MUR SST analysis (jplMURSST41), served by the
// NOAA CoastWatch ERDDAP at https://coastwatch.pfeg.noaa.gov/erddap/griddap.
// MUR is a daily multi-scale analysis at 0.01° native resolution; each day's
// field carries a single analysis timestamp at 09:00 UTC. Historical coverage
// begins 1981-09-01 (the OI SST record MUR is blended against).
//
// # Grid Conventions
//
// A Grid is a rectangular matrix of cells over a square geographic region
// described by a center coordinate and a region size in degrees. Row 0 is the
// southernmost row (latitude ascending); renderers that want north-up output
// flip explicitly. Every cell carries a valid lat/lon; the temperature may be
// nil where the upstream has no value (land, ice mask, missing analysis).
//
// Temperature handling:
//
//	ERDDAP serves analysed_sst in Celsius, but some mirror datasets report
//	Kelvin. Raw values above 100 are assumed Kelvin and shifted by -273.15.
//	Post-conversion values outside [-5, 40] °C are rejected as sensor or
//	parsing noise and stored as nil rather than propagated.
//
// Longitude handling:
//
//	Upstream axes may use either the [-180, 180) or [0, 360) domain. All
//	longitudes held in a Grid are normalized to [-180, 180).
//
// # Daily Update Cycle
//
// NOAA publishes the new MUR field once a day around 12:00 UTC. Cache
// validity is therefore keyed on a logical date rather than wall-clock age:
// before the cutover hour "today" still means yesterday's analysis. See
// [EffectiveCacheDate].
//
// # Request Canonicalization
//
// Grid requests are snapped to a coarse parameter lattice (center to 0.25°,
// region size to one of a small allowed set) before hashing into a cache key.
// Nearby viewports intentionally collide to the same key; precision is traded
// for cache hit rate and reduced upstream load.
package domain
