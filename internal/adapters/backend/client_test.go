package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance.client/internal/core/model"
	"attendance.client/internal/ports"
)

const testAppKey = "ZAK_ATT_2026_demo"

type capturedRequest struct {
	method string
	query  map[string]string
	body   map[string]any
}

// newTestServer records every request and answers with the given payload.
func newTestServer(t *testing.T, payload map[string]any) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cr := capturedRequest{method: r.Method, query: map[string]string{}}
		for k := range r.URL.Query() {
			cr.query[k] = r.URL.Query().Get(k)
		}
		if r.Method == http.MethodPost {
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&cr.body))
		}
		captured = append(captured, cr)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func okEnvelope() map[string]any {
	return map[string]any{
		"ok": true,
		"employee": map[string]any{
			"employeeId":    "emp_1",
			"code":          "E100",
			"name":          "Maria Lopez",
			"status":        "ACTIVE",
			"oshaApproved":  true,
			"attestedToday": true,
		},
		"todayMs":         3600000,
		"clockedIn":       true,
		"openInISO":       "2026-03-09T13:30:00Z",
		"serverNowISO":    "2026-03-09T14:00:00Z",
		"currentSiteName": "Main Street Build",
	}
}

func TestSitesUsesGetQueryParams(t *testing.T) {
	srv, captured := newTestServer(t, map[string]any{
		"ok": true,
		"sites": []map[string]any{
			{"id": "s1", "name": "Main Street Build", "lat": 40.0, "lon": -74.0, "radiusM": 100.0},
		},
	})
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	sites, err := c.Sites(context.Background())
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, model.Site{ID: "s1", Name: "Main Street Build", Lat: 40.0, Lon: -74.0, RadiusM: 100}, sites[0])

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "sites", req.query["action"])
	assert.Equal(t, testAppKey, req.query["appKey"])
}

func TestMeDecodesState(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	state, err := c.Me(context.Background(), "dev_1")
	require.NoError(t, err)

	require.NotNil(t, state.Employee)
	assert.Equal(t, "Maria Lopez", state.Employee.Name)
	assert.Equal(t, int64(3600000), state.Snapshot.TodayMs)
	assert.True(t, state.Snapshot.ClockedIn)
	assert.Equal(t, "2026-03-09T13:30:00Z", state.Snapshot.OpenInISO)
	assert.Equal(t, "2026-03-09T14:00:00Z", state.Snapshot.ServerNowISO)
	assert.Equal(t, "Main Street Build", state.Snapshot.CurrentSiteName)

	req := (*captured)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "me", req.query["action"])
	assert.Equal(t, "dev_1", req.query["deviceId"])
}

func TestInitPostsJSONBody(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Init(context.Background(), "dev_1", "Maria Lopez")
	require.NoError(t, err)

	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "init", req.body["action"])
	assert.Equal(t, testAppKey, req.body["appKey"])
	assert.Equal(t, "dev_1", req.body["deviceId"])
	assert.Equal(t, "Maria Lopez", req.body["name"])
}

func TestEventWireFormat(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	acc := 8.5
	_, err := c.Event(context.Background(), ports.EventRequest{
		DeviceID: "dev_1",
		Name:     "Maria Lopez",
		Type:     model.EventOut,
		SiteID:   "s1",
		Coords:   &model.Location{Latitude: 40.0, Longitude: -74.0, AccuracyM: &acc},
		WorkNote: "poured the footings",
		Photos:   []model.Photo{{Base64: "aGk=", MIME: "image/jpeg"}},
		Device:   ports.DeviceMeta{Platform: "test", DeviceTimeISO: "2026-03-09T13:59:58Z"},
	})
	require.NoError(t, err)

	body := (*captured)[0].body
	assert.Equal(t, "event", body["action"])
	assert.Equal(t, "OUT", body["type"])
	assert.Equal(t, "s1", body["siteId"])
	assert.Nil(t, body["customSite"])
	assert.Nil(t, body["emergencyOut"])

	coords := body["coords"].(map[string]any)
	assert.Equal(t, 40.0, coords["lat"])
	assert.Equal(t, -74.0, coords["lon"])
	assert.Equal(t, 8.5, coords["accuracyM"])

	assert.Equal(t, "poured the footings", body["workNote"])
	photos := body["outPhotos"].([]any)
	require.Len(t, photos, 1)
	photo := photos[0].(map[string]any)
	assert.Equal(t, "aGk=", photo["base64"])
	assert.Equal(t, "image/jpeg", photo["mime"])

	device := body["device"].(map[string]any)
	assert.Equal(t, "test", device["platform"])
	assert.Equal(t, "2026-03-09T13:59:58Z", device["deviceTimeISO"])
}

func TestEmergencyEventOmitsEvidence(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Event(context.Background(), ports.EventRequest{
		DeviceID:  "dev_1",
		Type:      model.EventOut,
		Emergency: true,
	})
	require.NoError(t, err)

	body := (*captured)[0].body
	assert.Equal(t, true, body["emergencyOut"])
	assert.Nil(t, body["coords"])
	assert.Nil(t, body["workNote"])
	assert.Nil(t, body["outPhotos"])
}

func TestRegisterOSHAWireFormat(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.RegisterOSHA(context.Background(), ports.OSHARequest{
		DeviceID:  "dev_1",
		ExpiryISO: "2027-01-02",
		Photo:     model.Photo{Base64: "aGk=", MIME: "image/png"},
	})
	require.NoError(t, err)

	body := (*captured)[0].body
	assert.Equal(t, "register_osha", body["action"])
	assert.Equal(t, "2027-01-02", body["oshaExpiryISO"])
	assert.Equal(t, "aGk=", body["oshaPhotoBase64"])
	assert.Equal(t, "image/png", body["oshaPhotoMime"])
}

func TestAttestWireFormat(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Attest(context.Background(), ports.AttestRequest{
		DeviceID:  "dev_1",
		Signature: "Maria Lopez",
		Statements: model.Statements{
			WatchedSafetyVideo:     true,
			NotUnderInfluence:      true,
			PPEInspected:           true,
			NoPreExistingInjuries:  true,
			UnderstoodConsequences: true,
		},
	})
	require.NoError(t, err)

	body := (*captured)[0].body
	assert.Equal(t, "attest", body["action"])
	assert.Equal(t, "Maria Lopez", body["signature"])

	statements := body["statements"].(map[string]any)
	for _, key := range []string{
		"watchedSafetyVideo",
		"notUnderInfluence",
		"ppeInspected",
		"noPreExistingInjuries",
		"understoodConsequences",
	} {
		assert.Equal(t, true, statements[key], "statement %s", key)
	}
}

func TestSiteRequestWireFormat(t *testing.T) {
	srv, captured := newTestServer(t, okEnvelope())
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.SiteRequest(context.Background(), ports.SiteRequest{
		DeviceID: "dev_1",
		SiteName: "North Lot",
		Lat:      40.5,
		Lon:      -74.5,
		RadiusM:  150,
	})
	require.NoError(t, err)

	body := (*captured)[0].body
	assert.Equal(t, "site_request", body["action"])
	assert.Equal(t, "North Lot", body["siteName"])
	assert.Equal(t, 40.5, body["lat"])
	assert.Equal(t, -74.5, body["lon"])
	assert.Equal(t, 150.0, body["radiusM"])
}

func TestRejectedEnvelopeBecomesError(t *testing.T) {
	srv, _ := newTestServer(t, map[string]any{"ok": false, "error": "unknown device"})
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Me(context.Background(), "dev_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "me rejected: unknown device")
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Me(context.Background(), "dev_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, testAppKey, 5*time.Second)

	_, err := c.Me(context.Background(), "dev_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed backend response")
}
