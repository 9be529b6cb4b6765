package campaign

import (
	"fmt"
	"time"

	persistenceiface "github.com/voxloop/voxloop/pkg/persistence/iface"
)

// WithinLegalHours implements the §5 legal-hours gate: now (already
// converted to the campaign's configured timezone by the caller) must
// fall inside one of the allowed intervals for its weekday. A campaign
// with no configured windows for a weekday is treated as closed that
// day; a campaign with no windows configured at all is treated as
// always open, so campaigns that don't opt into the gate keep working.
func WithinLegalHours(now time.Time, windows map[time.Weekday][]persistenceiface.LegalHoursWindow) bool {
	if len(windows) == 0 {
		return true
	}
	today, ok := windows[now.Weekday()]
	if !ok {
		return false
	}
	clock := now.Hour()*60 + now.Minute()
	for _, w := range today {
		start, err := parseClockMinutes(w.Start)
		if err != nil {
			continue
		}
		end, err := parseClockMinutes(w.End)
		if err != nil {
			continue
		}
		if clock >= start && clock <= end {
			return true
		}
	}
	return false
}

func parseClockMinutes(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("campaign: invalid legal-hours time %q: %w", hhmm, err)
	}
	return h*60 + m, nil
}
