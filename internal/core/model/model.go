package model

import "strings"

// EventType distinguishes the two clock actions.
type EventType string

const (
	EventIn  EventType = "IN"
	EventOut EventType = "OUT"
)

// Employee is the latest-known compliance snapshot for the worker bound to
// this device. It is replaced wholesale on every backend response and may be
// stale between refreshes.
type Employee struct {
	EmployeeID    string `json:"employeeId"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	OSHAExpiryISO string `json:"oshaExpiryISO"`
	OSHAExpired   bool   `json:"oshaExpired"`
	OSHAApproved  bool   `json:"oshaApproved"`
	AttestedToday bool   `json:"attestedToday"`
}

// IsActive treats a missing status as ACTIVE, matching the backend default
// for freshly initialized records.
func (e *Employee) IsActive() bool {
	status := e.Status
	if status == "" {
		status = "ACTIVE"
	}
	return strings.EqualFold(status, "ACTIVE")
}

// Site is a named geofenced work location defined server-side.
type Site struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radiusM"`
}

// CustomSite is a client-local stand-in for a site that does not exist on the
// backend yet. It has no id and is never geofence-checked client-side.
type CustomSite struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radiusM"`
}

// Location is a single best-effort device fix. AccuracyM is nil when the
// platform could not report horizontal accuracy.
type Location struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	AccuracyM *float64 `json:"accuracyM"`
}

// Photo is a captured image resolved to a transportable encoded payload.
// A photo without encoded bytes or a MIME type does not count as evidence.
type Photo struct {
	Base64 string `json:"base64"`
	MIME   string `json:"mime"`
}

// Present reports whether the capture pipeline actually produced bytes.
func (p Photo) Present() bool {
	return p.Base64 != "" && p.MIME != ""
}

// Snapshot is the authoritative instant-in-time basis for the live timers:
// time worked today up to the snapshot, the server wall-clock at which the
// backend computed it, and the open shift if one exists.
type Snapshot struct {
	TodayMs         int64  `json:"todayMs"`
	ServerNowISO    string `json:"serverNowISO"`
	ClockedIn       bool   `json:"clockedIn"`
	OpenInISO       string `json:"openInISO"`
	CurrentSiteName string `json:"currentSiteName"`
}

// State is what every identity-bound backend response carries: the employee
// record plus a fresh timer snapshot. Applied atomically, never merged.
type State struct {
	Employee *Employee `json:"employee"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Statements is the daily attestation checklist. Every field must be true
// before the attestation intent is sendable.
type Statements struct {
	WatchedSafetyVideo     bool `json:"watchedSafetyVideo"`
	NotUnderInfluence      bool `json:"notUnderInfluence"`
	PPEInspected           bool `json:"ppeInspected"`
	NoPreExistingInjuries  bool `json:"noPreExistingInjuries"`
	UnderstoodConsequences bool `json:"understoodConsequences"`
}

// AllAffirmed reports whether every statement has been checked.
func (s Statements) AllAffirmed() bool {
	return s.WatchedSafetyVideo &&
		s.NotUnderInfluence &&
		s.PPEInspected &&
		s.NoPreExistingInjuries &&
		s.UnderstoodConsequences
}
