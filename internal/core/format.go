package core

import "fmt"

// FormatHoursMinutes renders a millisecond duration as "3h 27m", the compact
// form used for the today total.
func FormatHoursMinutes(ms int64) string {
	totalMin := ms / 60000
	return fmt.Sprintf("%dh %dm", totalMin/60, totalMin%60)
}

// FormatClock renders a millisecond duration as "hh:mm:ss", used for the
// live on-site counter.
func FormatClock(ms int64) string {
	totalSec := ms / 1000
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	s := totalSec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
