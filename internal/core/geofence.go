package core

import (
	"fmt"
	"math"
	"sort"

	"attendance.client/internal/core/model"
)

// Earth radius for the spherical approximation, in meters.
const earthRadiusM = 6371000

// HaversineMeters computes the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// GeofenceError is the client-side rejection for a fix outside a site's
// radius. It carries the raw measured distance and the configured radius so
// the worker can be messaged precisely. Distinct from a backend error.
type GeofenceError struct {
	DistanceM float64
	RadiusM   float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("not on site: distance %s, allowed radius %s",
		FormatDistance(e.DistanceM), FormatDistance(e.RadiusM))
}

// CheckGeofence decides whether a device fix is on site. The reported GPS
// accuracy is subtracted from the raw distance before comparing against the
// radius; unknown accuracy counts as zero. The boundary is inclusive.
// Returns a *GeofenceError when off site, nil when on site.
func CheckGeofence(fix model.Location, site model.Site) error {
	raw := HaversineMeters(fix.Latitude, fix.Longitude, site.Lat, site.Lon)

	accuracy := 0.0
	if fix.AccuracyM != nil {
		accuracy = *fix.AccuracyM
	}

	effective := math.Max(0, raw-accuracy)
	if effective > site.RadiusM {
		return &GeofenceError{DistanceM: raw, RadiusM: site.RadiusM}
	}
	return nil
}

// FormatDistance renders meters for display: feet below 1000 ft, otherwise
// miles with one decimal.
func FormatDistance(meters float64) string {
	feet := meters * 3.28084
	if feet < 1000 {
		return fmt.Sprintf("%d ft", int(math.Round(feet)))
	}
	miles := meters / 1609.344
	return fmt.Sprintf("%.1f mi", miles)
}

// SortSitesByDistance returns the sites ordered by ascending distance using
// the given site-id to meters map. Sites with no computed distance yet sort
// last. The input slice is not modified.
func SortSitesByDistance(sites []model.Site, distances map[string]float64) []model.Site {
	sorted := make([]model.Site, len(sites))
	copy(sorted, sites)

	dist := func(s model.Site) float64 {
		if d, ok := distances[s.ID]; ok {
			return d
		}
		return math.Inf(1)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return dist(sorted[i]) < dist(sorted[j])
	})
	return sorted
}
