// internal/domain/event/model.go

package event

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// MaxInterests is the largest number of interest tags a search may carry
const MaxInterests = 20

// DateLayout is the calendar date format used on the wire and in prompts
const DateLayout = "2006-01-02"

// Mode identifies the retrieval output contract
type Mode string

const (
	// ModeStructured expects a JSON array of event objects, optionally fenced
	ModeStructured Mode = "structured"
	// ModeText expects markdown bullet lists grouped by interest
	ModeText Mode = "text"
)

// DateRange is either a single calendar date (End is zero) or an inclusive pair
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether no date was chosen
func (d DateRange) IsZero() bool {
	return d.Start.IsZero()
}

// IsSingle reports whether the range holds one date
func (d DateRange) IsSingle() bool {
	return d.End.IsZero() || d.End.Equal(d.Start)
}

// String renders the range the way it is shown to the model
func (d DateRange) String() string {
	if d.IsZero() {
		return ""
	}
	if d.IsSingle() {
		return d.Start.Format(DateLayout)
	}
	return d.Start.Format(DateLayout) + " - " + d.End.Format(DateLayout)
}

// Validate checks the ordering of a range
func (d DateRange) Validate() error {
	if d.IsZero() && !d.End.IsZero() {
		return fmt.Errorf("%w: end date without start date", ErrInvalidDateRange)
	}
	if !d.IsSingle() && d.End.Before(d.Start) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDateRange,
			d.End.Format(DateLayout), d.Start.Format(DateLayout))
	}
	return nil
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// MarshalJSON encodes the range as calendar date strings
func (d DateRange) MarshalJSON() ([]byte, error) {
	out := dateRangeJSON{}
	if !d.Start.IsZero() {
		out.Start = d.Start.Format(DateLayout)
	}
	if !d.IsSingle() {
		out.End = d.End.Format(DateLayout)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"start": "2025-10-15", "end": "2025-10-20"}
func (d *DateRange) UnmarshalJSON(data []byte) error {
	var in dateRangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	parsed, err := ParseDateRange(in.Start, in.End)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDateRange builds a range from two date strings; end may be empty
func ParseDateRange(start, end string) (DateRange, error) {
	var d DateRange
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidDateRange, start)
		}
		d.Start = t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidDateRange, end)
		}
		d.End = t
	}

	if err := d.Validate(); err != nil {
		return DateRange{}, err
	}
	return d, nil
}

// SearchCriteria is the interests/location/date-range triple behind a search
type SearchCriteria struct {
	Interests []string  `json:"interests"`
	Location  string    `json:"location"`
	DateRange DateRange `json:"date_range"`
}

// Clone returns a copy that shares no slices with c
func (c SearchCriteria) Clone() SearchCriteria {
	out := c
	out.Interests = append([]string(nil), c.Interests...)
	return out
}

// NormalizeInterests trims entries, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling seen
func NormalizeInterests(interests []string) []string {
	trimmed := lo.FilterMap(interests, func(s string, _ int) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	})
	return lo.UniqBy(trimmed, strings.ToLower)
}

// EventRecord is the canonical unit of a recommended event. Every field is a
// string; Location holds "lat, lon".
type EventRecord struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	SourceLink  string `json:"source_link"`
	DateText    string `json:"date_text"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Coordinates is a parsed latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the pair rounded to two decimals
func (c Coordinates) String() string {
	return fmt.Sprintf("%.2f, %.2f", c.Lat, c.Lon)
}

// ParseCoordinates splits a "lat, lon" string into two finite floats within
// geographic bounds
func ParseCoordinates(location string) (Coordinates, error) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return Coordinates{}, fmt.Errorf("%w: %q does not split into two components", ErrInvalidGeometry, location)
	}

	lat, err := parseComponent(parts[0])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: latitude %q: %v", ErrInvalidGeometry, strings.TrimSpace(parts[0]), err)
	}
	lon, err := parseComponent(parts[1])
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: longitude %q: %v", ErrInvalidGeometry, strings.TrimSpace(parts[1]), err)
	}

	if lat < -90 || lat > 90 {
		return Coordinates{}, fmt.Errorf("%w: latitude %g out of range", ErrInvalidGeometry, lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinates{}, fmt.Errorf("%w: longitude %g out of range", ErrInvalidGeometry, lon)
	}

	return Coordinates{Lat: lat, Lon: lon}, nil
}

func parseComponent(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return v, nil
}

// RawResult is what the retrieval client hands back before normalization
type RawResult struct {
	Mode Mode   `json:"mode"`
	Text string `json:"text"`
}

// Result is the normalized outcome of one retrieval
type Result struct {
	Mode   Mode          `json:"mode"`
	Events []EventRecord `json:"events,omitempty"`
	Text   string        `json:"text,omitempty"`
}

// Clone returns a copy that shares no slices with r
func (r Result) Clone() Result {
	out := r
	if r.Events != nil {
		out.Events = append([]EventRecord(nil), r.Events...)
	}
	return out
}
