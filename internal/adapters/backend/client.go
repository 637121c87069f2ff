package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"attendance.client/internal/core/model"
	"attendance.client/internal/ports"
	"attendance.client/pkg/logger"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Client talks to the script-based attendance backend: a single endpoint,
// action-discriminated, JSON over HTTP. Read-only actions go as GET query
// parameters, mutating actions as POST bodies. Calls run through a circuit
// breaker so a struggling backend is rejected fast instead of hammered;
// nothing is ever retried automatically.
type Client struct {
	client  *http.Client
	baseURL string
	appKey  string
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds the backend client with an instrumented transport.
func NewClient(baseURL, appKey string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name:        "attendance-backend",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
		appKey:  appKey,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

// envelope is the backend's uniform response shape. ok:false carries a
// human-readable error and no state is applied.
type envelope struct {
	OK              bool            `json:"ok"`
	Error           string          `json:"error"`
	Employee        *model.Employee `json:"employee"`
	TodayMs         int64           `json:"todayMs"`
	ClockedIn       bool            `json:"clockedIn"`
	OpenInISO       string          `json:"openInISO"`
	ServerNowISO    string          `json:"serverNowISO"`
	CurrentSiteName string          `json:"currentSiteName"`
	Sites           []model.Site    `json:"sites"`
}

func (e *envelope) state() *model.State {
	return &model.State{
		Employee: e.Employee,
		Snapshot: model.Snapshot{
			TodayMs:         e.TodayMs,
			ServerNowISO:    e.ServerNowISO,
			ClockedIn:       e.ClockedIn,
			OpenInISO:       e.OpenInISO,
			CurrentSiteName: e.CurrentSiteName,
		},
	}
}

// Sites lists the registered geofenced sites.
func (c *Client) Sites(ctx context.Context) ([]model.Site, error) {
	env, err := c.get(ctx, "sites", nil)
	if err != nil {
		return nil, err
	}
	return env.Sites, nil
}

// Init upserts the device-to-employee binding. Idempotent; must run before
// any other identity-bound action.
func (c *Client) Init(ctx context.Context, deviceID, name string) (*model.State, error) {
	body := map[string]any{
		"action":   "init",
		"appKey":   c.appKey,
		"deviceId": deviceID,
		"name":     name,
	}
	env, err := c.post(ctx, "init", body)
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// Me fetches the current employee record and timer snapshot.
func (c *Client) Me(ctx context.Context, deviceID string) (*model.State, error) {
	env, err := c.get(ctx, "me", url.Values{"deviceId": {deviceID}})
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// Event submits a clock IN/OUT.
func (c *Client) Event(ctx context.Context, req ports.EventRequest) (*model.State, error) {
	body := map[string]any{
		"action":   "event",
		"appKey":   c.appKey,
		"deviceId": req.DeviceID,
		"name":     req.Name,
		"type":     req.Type,
		"device":   req.Device,
	}
	if req.Emergency {
		body["emergencyOut"] = true
	}
	if req.Coords != nil {
		body["coords"] = map[string]any{
			"lat":       req.Coords.Latitude,
			"lon":       req.Coords.Longitude,
			"accuracyM": req.Coords.AccuracyM,
		}
	}
	if req.SiteID != "" {
		body["siteId"] = req.SiteID
	}
	if req.CustomSite != nil {
		body["customSite"] = req.CustomSite
	}
	if req.Type == model.EventOut && !req.Emergency {
		body["workNote"] = req.WorkNote
		photos := make([]map[string]string, 0, len(req.Photos))
		for _, p := range req.Photos {
			photos = append(photos, map[string]string{"base64": p.Base64, "mime": p.MIME})
		}
		body["outPhotos"] = photos
	}

	env, err := c.post(ctx, "event", body)
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// RegisterOSHA submits the safety-credential claim.
func (c *Client) RegisterOSHA(ctx context.Context, req ports.OSHARequest) (*model.State, error) {
	body := map[string]any{
		"action":          "register_osha",
		"appKey":          c.appKey,
		"deviceId":        req.DeviceID,
		"name":            req.Name,
		"oshaExpiryISO":   req.ExpiryISO,
		"oshaPhotoBase64": req.Photo.Base64,
		"oshaPhotoMime":   req.Photo.MIME,
		"device":          req.Device,
	}
	env, err := c.post(ctx, "register_osha", body)
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// Attest records the daily attestation.
func (c *Client) Attest(ctx context.Context, req ports.AttestRequest) (*model.State, error) {
	body := map[string]any{
		"action":     "attest",
		"appKey":     c.appKey,
		"deviceId":   req.DeviceID,
		"name":       req.Name,
		"signature":  req.Signature,
		"statements": req.Statements,
		"device":     req.Device,
	}
	env, err := c.post(ctx, "attest", body)
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// SiteRequest proposes a new site to the admin.
func (c *Client) SiteRequest(ctx context.Context, req ports.SiteRequest) (*model.State, error) {
	body := map[string]any{
		"action":   "site_request",
		"appKey":   c.appKey,
		"deviceId": req.DeviceID,
		"name":     req.Name,
		"siteName": req.SiteName,
		"lat":      req.Lat,
		"lon":      req.Lon,
		"radiusM":  req.RadiusM,
		"device":   req.Device,
	}
	env, err := c.post(ctx, "site_request", body)
	if err != nil {
		return nil, err
	}
	return env.state(), nil
}

// get sends a read-only action as query parameters.
func (c *Client) get(ctx context.Context, action string, query url.Values) (*envelope, error) {
	ctx, span := startSpan(ctx, action)
	defer span.End()

	if query == nil {
		query = url.Values{}
	}
	query.Set("action", action)
	query.Set("appKey", c.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	return c.do(action, req)
}

// post sends a mutating action as a JSON body.
func (c *Client) post(ctx context.Context, action string, body map[string]any) (*envelope, error) {
	ctx, span := startSpan(ctx, action)
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(action, req)
}

// startSpan opens a client span for one backend action and attaches a
// trace-aware logger to the context.
func startSpan(ctx context.Context, action string) (context.Context, trace.Span) {
	tracer := otel.Tracer("attendance-backend-client")
	ctx, span := tracer.Start(ctx, action, trace.WithSpanKind(trace.SpanKindClient))
	return logger.EnrichContextWithLogger(ctx), span
}

func (c *Client) do(action string, req *http.Request) (*envelope, error) {
	result, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to call backend: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("backend returned status %d", resp.StatusCode)
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, fmt.Errorf("malformed backend response: %w", err)
		}
		return &env, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			log.Warn().Str("action", action).Msg("circuit breaker open, backend call skipped")
		}
		return nil, err
	}

	env := result.(*envelope)
	if !env.OK {
		if env.Error != "" {
			return nil, fmt.Errorf("%s rejected: %s", action, env.Error)
		}
		return nil, fmt.Errorf("%s rejected by backend", action)
	}
	return env, nil
}
