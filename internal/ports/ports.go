package ports

import (
	"context"

	"attendance.client/internal/core/model"
)

// Backend is the remote script-based attendance API: one endpoint, action
// discriminated. Every identity-bound call returns a fresh state snapshot;
// the caller applies it wholesale. The backend is the source of truth and
// may still reject actions that passed client-side checks.
type Backend interface {
	Sites(ctx context.Context) ([]model.Site, error)
	Init(ctx context.Context, deviceID, name string) (*model.State, error)
	Me(ctx context.Context, deviceID string) (*model.State, error)
	Event(ctx context.Context, req EventRequest) (*model.State, error)
	RegisterOSHA(ctx context.Context, req OSHARequest) (*model.State, error)
	Attest(ctx context.Context, req AttestRequest) (*model.State, error)
	SiteRequest(ctx context.Context, req SiteRequest) (*model.State, error)
}

// Locator supplies a single best-effort device fix. Implementations must
// return an error on permission denial or timeout, never block forever.
type Locator interface {
	CurrentFix(ctx context.Context) (model.Location, error)
}

// Camera captures one image and resolves it to an encoded payload with a
// MIME type. A capture that cannot produce encoded bytes is an error for
// that photo, not a silent retry.
type Camera interface {
	Capture(ctx context.Context, source string) (model.Photo, error)
}

// Store is the local persisted key-value layer: device identity, display
// name, language, and best-effort caches of the last-known sites and state.
// Cache reads never substitute for an authoritative network refresh.
type Store interface {
	Setting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
	CachedSites(ctx context.Context) ([]model.Site, error)
	SaveSites(ctx context.Context, sites []model.Site) error
	CachedState(ctx context.Context) (*model.State, error)
	SaveState(ctx context.Context, state *model.State) error
}

// Well-known settings keys.
const (
	KeyDeviceID = "deviceId"
	KeyName     = "name"
	KeyLang     = "lang"
)
