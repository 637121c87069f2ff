// In-memory mock of the attendance backend for local testing. Implements
// the single action-discriminated endpoint: GET for reads, POST for
// mutations, shared envelope on every response.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

type site struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radiusM"`
}

type worker struct {
	EmployeeID   string
	Code         string
	Name         string
	OSHAExpiry   string
	OSHAApproved bool
	AttestedDate string

	ClockedIn   bool
	OpenIn      time.Time
	TodayMs     int64
	CurrentSite string
}

type server struct {
	mu      sync.Mutex
	workers map[string]*worker
	sites   []site
}

func newServer() *server {
	return &server{
		workers: make(map[string]*worker),
		sites: []site{
			{ID: "site_main", Name: "Main Street Build", Lat: 40.7128, Lon: -74.0060, RadiusM: 400},
			{ID: "site_river", Name: "Riverside Remodel", Lat: 40.7306, Lon: -73.9866, RadiusM: 250},
		},
	}
}

func (s *server) handle(w http.ResponseWriter, r *http.Request) {
	var action, deviceID string
	body := map[string]any{}

	if r.Method == http.MethodGet {
		action = r.URL.Query().Get("action")
		deviceID = r.URL.Query().Get("deviceId")
	} else {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			reject(w, "invalid JSON body")
			return
		}
		action, _ = body["action"].(string)
		deviceID, _ = body["deviceId"].(string)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case "sites":
		respond(w, map[string]any{"ok": true, "sites": s.sites})

	case "init":
		name, _ := body["name"].(string)
		wk, ok := s.workers[deviceID]
		if !ok {
			wk = &worker{
				EmployeeID: "emp_" + strconv.Itoa(len(s.workers)+1),
				Code:       "E" + strconv.Itoa(100+len(s.workers)),
			}
			s.workers[deviceID] = wk
		}
		if name != "" {
			wk.Name = name
		}
		s.respondState(w, wk)

	case "me":
		wk, ok := s.workers[deviceID]
		if !ok {
			reject(w, "unknown device")
			return
		}
		s.respondState(w, wk)

	case "event":
		s.handleEvent(w, deviceID, body)

	case "register_osha":
		wk, ok := s.workers[deviceID]
		if !ok {
			reject(w, "unknown device")
			return
		}
		expiry, _ := body["oshaExpiryISO"].(string)
		photo, _ := body["oshaPhotoBase64"].(string)
		if expiry == "" || photo == "" {
			reject(w, "expiry and photo required")
			return
		}
		wk.OSHAExpiry = expiry
		// Approval is an admin action; auto-approve here so the mock is
		// usable end to end without an admin console.
		wk.OSHAApproved = true
		s.respondState(w, wk)

	case "attest":
		wk, ok := s.workers[deviceID]
		if !ok {
			reject(w, "unknown device")
			return
		}
		sig, _ := body["signature"].(string)
		if sig == "" {
			reject(w, "signature required")
			return
		}
		wk.AttestedDate = time.Now().UTC().Format("2006-01-02")
		s.respondState(w, wk)

	case "site_request":
		wk, ok := s.workers[deviceID]
		if !ok {
			reject(w, "unknown device")
			return
		}
		log.Printf("site request from %s: %v", wk.Name, body["siteName"])
		s.respondState(w, wk)

	default:
		reject(w, "unknown action")
	}
}

func (s *server) handleEvent(w http.ResponseWriter, deviceID string, body map[string]any) {
	wk, ok := s.workers[deviceID]
	if !ok {
		reject(w, "unknown device")
		return
	}
	typ, _ := body["type"].(string)
	now := time.Now().UTC()

	switch typ {
	case "IN":
		if wk.ClockedIn {
			reject(w, "already clocked in")
			return
		}
		wk.ClockedIn = true
		wk.OpenIn = now
		wk.CurrentSite = s.eventSiteName(body)
	case "OUT":
		if !wk.ClockedIn {
			reject(w, "not clocked in")
			return
		}
		wk.TodayMs += now.Sub(wk.OpenIn).Milliseconds()
		wk.ClockedIn = false
		wk.CurrentSite = ""
	default:
		reject(w, "unknown event type")
		return
	}
	s.respondState(w, wk)
}

func (s *server) eventSiteName(body map[string]any) string {
	if id, _ := body["siteId"].(string); id != "" {
		for _, st := range s.sites {
			if st.ID == id {
				return st.Name
			}
		}
		return id
	}
	if custom, _ := body["customSite"].(map[string]any); custom != nil {
		if name, _ := custom["name"].(string); name != "" {
			return name
		}
	}
	return "Other site"
}

func (s *server) respondState(w http.ResponseWriter, wk *worker) {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	expired := true
	if wk.OSHAExpiry != "" {
		if exp, err := time.Parse("2006-01-02", wk.OSHAExpiry); err == nil {
			expired = exp.Before(now)
		}
	}

	resp := map[string]any{
		"ok": true,
		"employee": map[string]any{
			"employeeId":    wk.EmployeeID,
			"code":          wk.Code,
			"name":          wk.Name,
			"status":        "ACTIVE",
			"oshaExpiryISO": wk.OSHAExpiry,
			"oshaExpired":   expired,
			"oshaApproved":  wk.OSHAApproved,
			"attestedToday": wk.AttestedDate == today,
		},
		"todayMs":         wk.TodayMs,
		"clockedIn":       wk.ClockedIn,
		"serverNowISO":    now.Format(time.RFC3339),
		"currentSiteName": wk.CurrentSite,
	}
	if wk.ClockedIn {
		resp["openInISO"] = wk.OpenIn.Format(time.RFC3339)
	}
	respond(w, resp)
}

func respond(w http.ResponseWriter, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func reject(w http.ResponseWriter, msg string) {
	respond(w, map[string]any{"ok": false, "error": msg})
}

func main() {
	s := newServer()

	r := mux.NewRouter()
	r.HandleFunc("/", s.handle).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Mock backend is operational."))
	}).Methods(http.MethodGet)

	log.Println("Attendance mock backend starting on port 8090...")
	log.Fatal(http.ListenAndServe(":8090", r))
}
