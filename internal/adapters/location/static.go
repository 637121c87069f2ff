package location

import (
	"context"
	"errors"

	"attendance.client/internal/core/model"
)

// ErrNoFix is returned when no coordinates were configured; the caller
// treats it like a denied location permission, terminal for that action.
var ErrNoFix = errors.New("no location fix configured")

// StaticLocator serves a fixed coordinate pair from configuration. The CLI
// has no GPS; operators running it on a kiosk or in tests supply the
// position of the device instead.
type StaticLocator struct {
	lat, lon  float64
	accuracyM *float64
	set       bool
}

// NewStaticLocator builds a locator for the given position. accuracyM < 0
// means the accuracy is unknown.
func NewStaticLocator(lat, lon, accuracyM float64, configured bool) *StaticLocator {
	l := &StaticLocator{lat: lat, lon: lon, set: configured}
	if accuracyM >= 0 {
		a := accuracyM
		l.accuracyM = &a
	}
	return l
}

// CurrentFix returns the configured position.
func (l *StaticLocator) CurrentFix(ctx context.Context) (model.Location, error) {
	if !l.set {
		return model.Location{}, ErrNoFix
	}
	return model.Location{Latitude: l.lat, Longitude: l.lon, AccuracyM: l.accuracyM}, nil
}
