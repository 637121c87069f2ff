package ports

import "attendance.client/internal/core/model"

// DeviceMeta accompanies every mutating intent so the backend can audit
// which platform and device clock produced it.
type DeviceMeta struct {
	Platform      string `json:"platform"`
	DeviceTimeISO string `json:"deviceTimeISO"`
}

// EventRequest is the clock IN/OUT intent. Exactly one of SiteID or
// CustomSite is set for a normal event; an emergency OUT carries neither
// coordinates nor evidence.
type EventRequest struct {
	DeviceID   string
	Name       string
	Type       model.EventType
	SiteID     string
	CustomSite *model.CustomSite
	Coords     *model.Location
	Emergency  bool
	WorkNote   string
	Photos     []model.Photo
	Device     DeviceMeta
}

// OSHARequest submits a safety-credential claim. Approval happens out of
// band and is only reflected in a later snapshot.
type OSHARequest struct {
	DeviceID  string
	Name      string
	ExpiryISO string
	Photo     model.Photo
	Device    DeviceMeta
}

// AttestRequest records the daily safety attestation.
type AttestRequest struct {
	DeviceID   string
	Name       string
	Signature  string
	Statements model.Statements
	Device     DeviceMeta
}

// SiteRequest proposes a new site to the admin. The site only becomes
// selectable after a subsequent sites reload.
type SiteRequest struct {
	DeviceID string
	Name     string
	SiteName string
	Lat      float64
	Lon      float64
	RadiusM  float64
	Device   DeviceMeta
}
