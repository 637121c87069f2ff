package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"attendance.client/internal/core/model"
	"attendance.client/internal/ports"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// defaultCustomRadiusM is the radius attached to a custom site when the
// worker does not supply one.
const defaultCustomRadiusM = 120

var (
	ErrBusy               = errors.New("another action is already in flight")
	ErrNameTooShort       = errors.New("name needs at least 2 characters")
	ErrBadExpiryDate      = errors.New("expiry date must be YYYY-MM-DD")
	ErrSignatureRequired  = errors.New("a typed signature is required")
	ErrStatementsRequired = errors.New("every attestation statement must be affirmed")
	ErrBadSiteRequest     = errors.New("site request needs a name and a positive radius")
	ErrNoSiteSelected     = errors.New("no site selected")
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// BlockedError is returned when the compliance gate forbids a clock action.
type BlockedError struct {
	Reason GateReason
}

func (e *BlockedError) Error() string {
	return "blocked: " + string(e.Reason)
}

// Session is the single owner of the client's current known truth: the
// employee record, site selection, pending OUT evidence, and the live timer
// base. All state-changing intents funnel through it, one at a time.
type Session struct {
	backend  ports.Backend
	locator  ports.Locator
	camera   ports.Camera
	store    ports.Store
	clock    clockwork.Clock
	platform string

	timeBase TimeBase

	mu      sync.Mutex
	busy    bool
	version uint64 // bumps on every applied state; stale refreshes are dropped

	deviceID string
	name     string
	lang     string

	employee        *model.Employee
	currentSiteName string

	sites         []model.Site
	distances     map[string]float64
	siteID        string
	useCustom     bool
	customName    string
	customRadiusM float64

	evidence Evidence

	liveTodayMs  int64
	liveOnSiteMs int64
}

// NewSession wires the session with its collaborators. The clock is
// injectable so tests can drive the timer deterministically.
func NewSession(backend ports.Backend, locator ports.Locator, camera ports.Camera, store ports.Store, clock clockwork.Clock, platform string) *Session {
	return &Session{
		backend:       backend,
		locator:       locator,
		camera:        camera,
		store:         store,
		clock:         clock,
		platform:      platform,
		distances:     make(map[string]float64),
		customRadiusM: defaultCustomRadiusM,
	}
}

// Bootstrap loads persisted identity and best-effort caches, then refreshes
// from the network. Cache reads never block on the network; network failures
// here are logged and non-fatal so a cold start still shows cached state.
func (s *Session) Bootstrap(ctx context.Context) error {
	lang, _ := s.store.Setting(ctx, ports.KeyLang)
	deviceID, err := s.store.Setting(ctx, ports.KeyDeviceID)
	if err != nil {
		return err
	}
	if deviceID == "" {
		deviceID = "dev_" + uuid.NewString()
		if err := s.store.PutSetting(ctx, ports.KeyDeviceID, deviceID); err != nil {
			return err
		}
	}
	name, _ := s.store.Setting(ctx, ports.KeyName)

	s.mu.Lock()
	s.deviceID = deviceID
	s.name = name
	if lang == "en" || lang == "es" {
		s.lang = lang
	} else {
		s.lang = "en"
	}
	s.mu.Unlock()

	if cached, err := s.store.CachedSites(ctx); err == nil && len(cached) > 0 {
		s.setSites(ctx, cached, false)
	}
	if cached, err := s.store.CachedState(ctx); err == nil && cached != nil {
		s.apply(ctx, cached, false)
	}

	if err := s.ReloadSites(ctx); err != nil {
		log.Warn().Err(err).Msg("sites load failed on bootstrap")
	}
	if name != "" {
		if _, err := s.backend.Init(ctx, deviceID, name); err != nil {
			log.Warn().Err(err).Msg("init failed on bootstrap")
		} else if err := s.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("me load failed on bootstrap")
		}
	}
	return nil
}

// SaveName persists the display name once and binds this device to an
// employee record on the backend.
func (s *Session) SaveName(ctx context.Context, rawName string) error {
	name := strings.TrimSpace(rawName)
	if len(name) < 2 {
		return ErrNameTooShort
	}
	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	if err := s.store.PutSetting(ctx, ports.KeyName, name); err != nil {
		return err
	}
	if err := s.store.PutSetting(ctx, ports.KeyLang, s.Language()); err != nil {
		return err
	}
	s.mu.Lock()
	s.name = name
	deviceID := s.deviceID
	s.mu.Unlock()

	state, err := s.backend.Init(ctx, deviceID, name)
	if err != nil {
		return err
	}
	s.apply(ctx, state, true)
	return s.confirmMe(ctx)
}

// ClockIn submits an IN event after the gate and geofence pre-checks pass.
func (s *Session) ClockIn(ctx context.Context) error {
	return s.sendEvent(ctx, model.EventIn)
}

// ClockOut submits an OUT event. On top of the IN pre-checks it requires the
// pending evidence (note and photos) to validate; the evidence is discarded
// only after the backend accepts the event.
func (s *Session) ClockOut(ctx context.Context) error {
	s.mu.Lock()
	err := s.evidence.Validate()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := s.sendEvent(ctx, model.EventOut); err != nil {
		return err
	}
	s.mu.Lock()
	s.evidence.Reset()
	s.mu.Unlock()
	return nil
}

// sendEvent is the single submission path for both clock actions: gate
// check, location fix, geofence pre-check for registered sites, backend
// round trip, snapshot application, then a confirming me-reload.
func (s *Session) sendEvent(ctx context.Context, typ model.EventType) error {
	if gate := s.Gate(); gate.Blocked {
		return &BlockedError{Reason: gate.Reason}
	}
	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	fix, err := s.locator.CurrentFix(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	req := ports.EventRequest{
		DeviceID: s.deviceID,
		Name:     s.name,
		Type:     typ,
		Coords:   &fix,
		Device:   s.deviceMeta(),
	}
	useCustom := s.useCustom
	site, haveSite := s.selectedSiteLocked()
	customName := strings.TrimSpace(s.customName)
	customRadius := s.customRadiusM
	if typ == model.EventOut {
		req.WorkNote = strings.TrimSpace(s.evidence.Note)
		req.Photos = append([]model.Photo(nil), s.evidence.Photos...)
	}
	s.mu.Unlock()

	switch {
	case !useCustom && haveSite:
		// Local pre-check; the backend remains the final authority.
		if err := CheckGeofence(fix, site); err != nil {
			return err
		}
		req.SiteID = site.ID
	case useCustom:
		if customName == "" {
			customName = "Other site"
		}
		if customRadius <= 0 {
			customRadius = defaultCustomRadiusM
		}
		req.CustomSite = &model.CustomSite{
			Name:    customName,
			Lat:     fix.Latitude,
			Lon:     fix.Longitude,
			RadiusM: customRadius,
		}
	default:
		return ErrNoSiteSelected
	}

	state, err := s.backend.Event(ctx, req)
	if err != nil {
		return err
	}
	log.Info().Str("type", string(typ)).Msg("clock event accepted")
	s.apply(ctx, state, true)
	return s.confirmMe(ctx)
}

// EmergencyOut records an OUT without coordinates or evidence, for a worker
// who forgot to clock out on site. The supervisor reviews the entry.
func (s *Session) EmergencyOut(ctx context.Context) error {
	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	s.mu.Lock()
	req := ports.EventRequest{
		DeviceID:  s.deviceID,
		Name:      s.name,
		Type:      model.EventOut,
		Emergency: true,
		Device:    s.deviceMeta(),
	}
	s.mu.Unlock()

	state, err := s.backend.Event(ctx, req)
	if err != nil {
		return err
	}
	log.Info().Msg("emergency OUT recorded")
	s.apply(ctx, state, true)
	return s.confirmMe(ctx)
}

// RegisterOSHA submits a safety-credential claim with its expiry date and a
// captured card photo. Approval is an out-of-band admin action.
func (s *Session) RegisterOSHA(ctx context.Context, expiryISO, photoSource string) error {
	expiry := strings.TrimSpace(expiryISO)
	if !isoDateRe.MatchString(expiry) {
		return ErrBadExpiryDate
	}
	photo, err := s.camera.Capture(ctx, photoSource)
	if err != nil {
		return err
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	s.mu.Lock()
	req := ports.OSHARequest{
		DeviceID:  s.deviceID,
		Name:      s.name,
		ExpiryISO: expiry,
		Photo:     photo,
		Device:    s.deviceMeta(),
	}
	s.mu.Unlock()

	state, err := s.backend.RegisterOSHA(ctx, req)
	if err != nil {
		return err
	}
	s.apply(ctx, state, true)
	return s.confirmMe(ctx)
}

// Attest records the daily safety attestation. Every statement must be
// affirmed and the typed signature non-blank before the intent is sendable.
func (s *Session) Attest(ctx context.Context, signature string, statements model.Statements) error {
	if !statements.AllAffirmed() {
		return ErrStatementsRequired
	}
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return ErrSignatureRequired
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	s.mu.Lock()
	req := ports.AttestRequest{
		DeviceID:   s.deviceID,
		Name:       s.name,
		Signature:  sig,
		Statements: statements,
		Device:     s.deviceMeta(),
	}
	s.mu.Unlock()

	state, err := s.backend.Attest(ctx, req)
	if err != nil {
		return err
	}
	s.apply(ctx, state, true)
	return s.confirmMe(ctx)
}

// RequestSite asks the admin to create a new site at the device's current
// position. The site appears in the list only after a later sites reload;
// meanwhile the session switches to the custom-site descriptor so events can
// already be tagged with it.
func (s *Session) RequestSite(ctx context.Context, siteName string, radiusM float64) error {
	name := strings.TrimSpace(siteName)
	if name == "" || radiusM <= 0 {
		return ErrBadSiteRequest
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	fix, err := s.locator.CurrentFix(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	req := ports.SiteRequest{
		DeviceID: s.deviceID,
		Name:     s.name,
		SiteName: name,
		Lat:      fix.Latitude,
		Lon:      fix.Longitude,
		RadiusM:  radiusM,
		Device:   s.deviceMeta(),
	}
	s.mu.Unlock()

	state, err := s.backend.SiteRequest(ctx, req)
	if err != nil {
		return err
	}
	s.apply(ctx, state, true)
	if err := s.confirmMe(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.useCustom = true
	s.customName = name
	s.customRadiusM = radiusM
	s.mu.Unlock()
	return nil
}

// Refresh reloads the me-snapshot. It is read-only and may run while no
// mutation is in flight without taking the busy flag; a response that lost
// the race against a newer applied state is dropped.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	deviceID := s.deviceID
	before := s.version
	s.mu.Unlock()

	state, err := s.backend.Me(ctx, deviceID)
	if err != nil {
		return err
	}
	s.applyIfFresh(ctx, state, before)
	return nil
}

// ReloadSites fetches the site list and refreshes the local cache. The first
// site is auto-selected when nothing is selected yet.
func (s *Session) ReloadSites(ctx context.Context) error {
	sites, err := s.backend.Sites(ctx)
	if err != nil {
		return err
	}
	s.setSites(ctx, sites, true)
	return nil
}

// RefreshDistances takes a fresh fix and recomputes the distance to every
// known site, feeding the distance-sorted site list.
func (s *Session) RefreshDistances(ctx context.Context) error {
	fix, err := s.locator.CurrentFix(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distances = make(map[string]float64, len(s.sites))
	for _, site := range s.sites {
		s.distances[site.ID] = HaversineMeters(fix.Latitude, fix.Longitude, site.Lat, site.Lon)
	}
	return nil
}

// AddOutPhoto captures one photo into the pending OUT evidence. Captures
// beyond the cap are ignored; captures without encoded bytes fail.
func (s *Session) AddOutPhoto(ctx context.Context, source string) error {
	photo, err := s.camera.Capture(ctx, source)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evidence.AddPhoto(photo)
}

// SetOutNote replaces the pending OUT work note.
func (s *Session) SetOutNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence.Note = note
}

// CancelOut discards the pending OUT evidence.
func (s *Session) CancelOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence.Reset()
}

// SelectSite switches to a registered site.
func (s *Session) SelectSite(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.siteID = id
	s.useCustom = false
}

// UseCustomSite switches to the client-local custom site descriptor.
func (s *Session) UseCustomSite(name string, radiusM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.useCustom = true
	s.customName = name
	if radiusM > 0 {
		s.customRadiusM = radiusM
	} else {
		s.customRadiusM = defaultCustomRadiusM
	}
}

// SetLanguage persists the language preference.
func (s *Session) SetLanguage(ctx context.Context, lang string) error {
	if lang != "en" && lang != "es" {
		lang = "en"
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	return s.store.PutSetting(ctx, ports.KeyLang, lang)
}

// RunTicker drives the live timers at a one second cadence until the context
// is canceled. It only reads the last applied snapshot and never blocks on
// anything in flight.
func (s *Session) RunTicker(ctx context.Context) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			today, onSite := s.timeBase.Tick(s.clock.Now())
			s.mu.Lock()
			s.liveTodayMs = today
			s.liveOnSiteMs = onSite
			s.mu.Unlock()
		}
	}
}

// Gate evaluates the compliance gate against the latest-known record.
func (s *Session) Gate() GateResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return EvaluateGate(s.employee)
}

// LiveElapsed returns the last computed live durations in milliseconds.
func (s *Session) LiveElapsed() (todayMs, onSiteMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveTodayMs, s.liveOnSiteMs
}

// Employee returns a copy of the latest-known record, or nil before INIT.
func (s *Session) Employee() *model.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.employee == nil {
		return nil
	}
	cp := *s.employee
	return &cp
}

// SortedSites returns the known sites ordered by ascending distance; sites
// without a computed distance sort last.
func (s *Session) SortedSites() []model.Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SortSitesByDistance(s.sites, s.distances)
}

// SelectedSite returns the currently selected registered site, if any.
func (s *Session) SelectedSite() (model.Site, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedSiteLocked()
}

// CurrentSiteName is the backend-reported name of the open shift's site.
func (s *Session) CurrentSiteName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentSiteName
}

// ClockedIn reports whether the last applied snapshot had an open shift.
func (s *Session) ClockedIn() bool {
	return s.timeBase.ClockedIn()
}

// DeviceID returns the stable device identifier.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Name returns the persisted display name, empty before first save.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// Language returns the persisted language preference.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Busy reports whether a mutating intent is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) selectedSiteLocked() (model.Site, bool) {
	for _, site := range s.sites {
		if site.ID == s.siteID {
			return site, true
		}
	}
	return model.Site{}, false
}

func (s *Session) deviceMeta() ports.DeviceMeta {
	return ports.DeviceMeta{
		Platform:      s.platform,
		DeviceTimeISO: s.clock.Now().UTC().Format(time.RFC3339),
	}
}

func (s *Session) beginMutation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// endMutation always runs, so a failed request can never leave the session
// stuck in a busy state.
func (s *Session) endMutation() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// apply replaces the whole known state from a backend response: employee
// record, timer base, and current site name. Missing optional fields reset
// to their zero values; nothing stale is retained.
func (s *Session) apply(ctx context.Context, state *model.State, persist bool) {
	if state == nil {
		return
	}
	now := s.clock.Now()
	s.timeBase.Seed(state.Snapshot, now)

	s.mu.Lock()
	s.version++
	s.employee = state.Employee
	s.currentSiteName = state.Snapshot.CurrentSiteName
	s.liveTodayMs = state.Snapshot.TodayMs
	s.liveOnSiteMs = 0
	s.mu.Unlock()

	if persist {
		if err := s.store.SaveState(ctx, state); err != nil {
			log.Warn().Err(err).Msg("state cache write failed")
		}
	}
}

// applyIfFresh applies a read-only response only if no newer state was
// applied while it was in flight.
func (s *Session) applyIfFresh(ctx context.Context, state *model.State, before uint64) {
	s.mu.Lock()
	stale := s.version != before
	s.mu.Unlock()
	if stale {
		log.Debug().Msg("dropping stale me response")
		return
	}
	s.apply(ctx, state, true)
}

// confirmMe is the explicit read-your-writes step: even though every
// mutation response already carries the new snapshot, a follow-up me-load is
// issued and applied as the freshest truth for that action.
func (s *Session) confirmMe(ctx context.Context) error {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	state, err := s.backend.Me(ctx, deviceID)
	if err != nil {
		return err
	}
	s.apply(ctx, state, true)
	return nil
}

func (s *Session) setSites(ctx context.Context, sites []model.Site, persist bool) {
	s.mu.Lock()
	s.sites = sites
	if s.siteID == "" && len(sites) > 0 {
		s.siteID = sites[0].ID
	}
	s.mu.Unlock()

	if persist {
		if err := s.store.SaveSites(ctx, sites); err != nil {
			log.Warn().Err(err).Msg("sites cache write failed")
		}
	}
}
