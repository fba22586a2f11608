package util

import (
	"fmt"
	"time"
)

// FormatTrackDuration renders a duration as m:ss, or h:mm:ss past the
// hour. Zero and negative durations come out empty so callers can skip
// the suffix for live streams.
func FormatTrackDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
