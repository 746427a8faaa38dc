package routing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Route is the JSON form of one output row. Output and channels are 1-based,
// as printed on the front panel.
type Route struct {
	Output   int   `json:"output"`
	Channels []int `json:"channels,omitempty"`
	RealTime bool  `json:"realtime,omitempty"`
}

type tableJSON struct {
	Routes []Route `json:"routes"`
}

// Routes returns the non-empty rows of the table.
func (t Table) Routes() []Route {
	routes := make([]Route, 0, Outputs)
	for o := 0; o < Outputs; o++ {
		r := Route{Output: o + 1}
		for d := 0; d < Channels; d++ {
			if t.grid[o][d] {
				r.Channels = append(r.Channels, d+1)
			}
		}
		r.RealTime = t.grid[o][RealTime]
		if len(r.Channels) > 0 || r.RealTime {
			routes = append(routes, r)
		}
	}
	return routes
}

// ApplyRoute enables the destinations of r on top of the current table.
func (t *Table) ApplyRoute(r Route) error {
	if err := CheckIndex(r.Output-1, 0); err != nil {
		return err
	}
	for _, ch := range r.Channels {
		if err := CheckIndex(r.Output-1, ch-1); err != nil || ch-1 == RealTime {
			return fmt.Errorf("%w: channel %d on output %d", ErrInvalidIndex, ch, r.Output)
		}
		t.grid[r.Output-1][ch-1] = true
	}
	if r.RealTime {
		t.grid[r.Output-1][RealTime] = true
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{Routes: t.Routes()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Table) UnmarshalJSON(data []byte) error {
	var v tableJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	var table Table
	for _, r := range v.Routes {
		if err := table.ApplyRoute(r); err != nil {
			return err
		}
	}
	*t = table
	return nil
}

// ParseRoute parses the command line form "OUTPUT:CHANNELS", e.g. "3:1,2,rt",
// "8:all", "1:none" or "2:1-4,10". "all" covers the 16 channels and RT.
func ParseRoute(s string) (output int, destinations []int, err error) {
	outStr, chStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, nil, fmt.Errorf("route %q: expected OUTPUT:CHANNELS", s)
	}

	out, err := strconv.Atoi(strings.TrimSpace(outStr))
	if err != nil {
		return 0, nil, fmt.Errorf("route %q: bad output: %w", s, err)
	}
	if err := CheckIndex(out-1, 0); err != nil {
		return 0, nil, fmt.Errorf("route %q: %w", s, err)
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(chStr, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch {
		case part == "" || part == "none":
		case part == "all":
			for d := 0; d < Destinations; d++ {
				seen[d] = true
			}
		case part == "rt":
			seen[RealTime] = true
		case strings.Contains(part, "-"):
			lo, hi, _ := strings.Cut(part, "-")
			from, err1 := strconv.Atoi(lo)
			to, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || from > to || from < 1 || to > Channels {
				return 0, nil, fmt.Errorf("route %q: %w: channel range %q", s, ErrInvalidIndex, part)
			}
			for ch := from; ch <= to; ch++ {
				seen[ch-1] = true
			}
		default:
			ch, err := strconv.Atoi(part)
			if err != nil || ch < 1 || ch > Channels {
				return 0, nil, fmt.Errorf("route %q: %w: channel %q", s, ErrInvalidIndex, part)
			}
			seen[ch-1] = true
		}
	}

	for d := range seen {
		destinations = append(destinations, d)
	}
	sort.Ints(destinations)
	return out - 1, destinations, nil
}
