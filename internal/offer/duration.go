package offer

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/capitalize-ai/flight-concierge/internal/model"
)

var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?)?$`)

// ParseDuration converts a PTnHnM encoded duration into minutes. A string that does not
// match is kept as the display text and yields zero minutes.
func ParseDuration(raw string) model.Duration {
	m := durationPattern.FindStringSubmatch(raw)
	if m == nil || raw == "P" || raw == "PT" {
		return model.Duration{Text: raw}
	}

	days := atoi(m[1])
	hours := atoi(m[2])
	minutes := atoi(m[3])

	total := days*24*60 + hours*60 + minutes
	return model.Duration{Text: FormatMinutes(total), Minutes: total}
}

// FormatMinutes renders minutes as "2h 30m".
func FormatMinutes(total int) string {
	h, m := total/60, total%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
