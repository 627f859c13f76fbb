package analytics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

const (
	day          = 24 * time.Hour
	defaultRange = "30d"
	maxSpan      = 366 * day
)

var presets = map[string]time.Duration{
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
}

// reportWindow is the [start, end) interval a funnel report covers.
type reportWindow struct {
	start, end time.Time
}

// parseWindow reads either an explicit from/to pair or a preset ending at
// now. from/to accept RFC 3339 timestamps or bare dates; a bare "to" date
// covers that whole day.
func parseWindow(q url.Values, now time.Time) (reportWindow, error) {
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
	if from == "" && to == "" {
		return presetWindow(q.Get("preset"), now)
	}
	if from == "" || to == "" {
		return reportWindow{}, invalid("from and to must be provided together", "from")
	}

	start, err := parseBound(from, false)
	if err != nil {
		return reportWindow{}, invalid("from must be an RFC 3339 timestamp or YYYY-MM-DD", "from")
	}
	end, err := parseBound(to, true)
	if err != nil {
		return reportWindow{}, invalid("to must be an RFC 3339 timestamp or YYYY-MM-DD", "to")
	}
	switch {
	case !end.After(start):
		return reportWindow{}, invalid("to must be after from", "to")
	case end.Sub(start) > maxSpan:
		return reportWindow{}, invalid(fmt.Sprintf("range may not exceed %d days", int(maxSpan/day)), "to")
	}
	return reportWindow{start: start, end: end}, nil
}

func presetWindow(name string, now time.Time) (reportWindow, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = defaultRange
	}
	span, ok := presets[name]
	if !ok {
		return reportWindow{}, invalid("preset must be one of 7d, 30d, 90d", "preset")
	}
	end := now.UTC()
	return reportWindow{start: end.Add(-span), end: end}, nil
}

func parseBound(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(day)
	}
	return t, nil
}

func invalid(msg, field string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]string{field: msg})
}
