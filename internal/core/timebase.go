package core

import (
	"sync"
	"time"

	"attendance.client/internal/core/model"
)

// TimeBase turns a server snapshot into live ticking durations without
// trusting the device's absolute clock. At seed time it records the offset
// between the server wall-clock and the device clock; every tick projects
// the server's "now" from that offset and derives elapsed time from it, so
// a wrong device clock cannot corrupt the worked-time figure.
//
// Seeding replaces every base value atomically: a tick never observes a mix
// of two snapshots.
type TimeBase struct {
	mu sync.Mutex

	seeded          bool
	todayBaseMs     int64
	serverNowBaseMs int64
	offsetMs        int64
	clockedIn       bool
	openInMs        int64 // 0 when no open shift

	// lastTodayMs clamps todayElapsed to be non-decreasing between seeds,
	// absorbing backward device-clock adjustments (e.g. NTP corrections).
	lastTodayMs int64
}

// Seed replaces all base values from a fresh snapshot. deviceNow must be the
// device clock reading taken when the snapshot was received.
func (tb *TimeBase) Seed(snap model.Snapshot, deviceNow time.Time) {
	serverNowMs := parseISOMs(snap.ServerNowISO)
	if serverNowMs == 0 {
		// Unparsable server clock: fall back to the device clock so the
		// offset degrades to zero rather than poisoning every tick.
		serverNowMs = deviceNow.UnixMilli()
	}

	openInMs := int64(0)
	if snap.ClockedIn && snap.OpenInISO != "" {
		openInMs = parseISOMs(snap.OpenInISO)
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.seeded = true
	tb.todayBaseMs = snap.TodayMs
	tb.serverNowBaseMs = serverNowMs
	tb.offsetMs = serverNowMs - deviceNow.UnixMilli()
	tb.clockedIn = snap.ClockedIn
	tb.openInMs = openInMs
	tb.lastTodayMs = snap.TodayMs
}

// Tick computes the live durations at the given device time: total worked
// today and time on the current site, both in milliseconds. While clocked
// out the today figure stays pinned at the snapshot base and on-site is 0.
func (tb *TimeBase) Tick(deviceNow time.Time) (todayMs, onSiteMs int64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if !tb.seeded || !tb.clockedIn {
		return tb.todayBaseMs, 0
	}

	serverNow := deviceNow.UnixMilli() + tb.offsetMs

	extra := serverNow - tb.serverNowBaseMs
	if extra < 0 {
		extra = 0
	}
	todayMs = tb.todayBaseMs + extra
	if todayMs < tb.lastTodayMs {
		todayMs = tb.lastTodayMs
	}
	tb.lastTodayMs = todayMs

	if tb.openInMs > 0 {
		onSiteMs = serverNow - tb.openInMs
		if onSiteMs < 0 {
			onSiteMs = 0
		}
	}
	return todayMs, onSiteMs
}

// ClockedIn reports whether the last applied snapshot had an open shift.
func (tb *TimeBase) ClockedIn() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.clockedIn
}

func parseISOMs(iso string) int64 {
	if iso == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
