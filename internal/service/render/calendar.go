// internal/service/render/calendar.go

package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"locale/internal/domain/event"
)

var (
	numericDate = regexp.MustCompile(`\b(\d{4})[-./](\d{1,2})[-./](\d{1,2})\b`)
	namedDate   = regexp.MustCompile(`(?i)\b(?:(\d{1,2})\s+([a-z]{3,9})\.?|([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?),?\s+(\d{4})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// Calendar exports events as an iCalendar document. Each record becomes an
// all-day VEVENT spanning the dates found in its date text, or fallback when
// none can be read.
func (r *Renderer) Calendar(events []event.EventRecord, fallback event.DateRange, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//locale//itinerary//EN")

	for _, rec := range events {
		ev := cal.AddEvent(eventUID(rec))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(rec.Name)
		if rec.Description != "" {
			ev.SetDescription(rec.Description)
		}
		if rec.SourceLink != "" {
			ev.SetURL(rec.SourceLink)
		}
		if rec.Category != "" {
			ev.SetProperty(ics.ComponentPropertyCategories, rec.Category)
		}

		if c, err := event.ParseCoordinates(rec.Location); err == nil {
			ev.SetLocation(c.String())
			ev.SetProperty(ics.ComponentPropertyGeo, fmt.Sprintf("%.6f;%.6f", c.Lat, c.Lon))
		}

		start, end, ok := ParseDates(rec.DateText)
		if !ok && !fallback.IsZero() {
			start, end, ok = fallback.Start, fallback.End, true
			if end.IsZero() {
				end = start
			}
		}
		if ok {
			ev.SetAllDayStartAt(start)
			ev.SetAllDayEndAt(end.AddDate(0, 0, 1))
		}
	}

	return cal.Serialize()
}

// ParseDates finds the first and last calendar dates in free-form date text
func ParseDates(text string) (time.Time, time.Time, bool) {
	var found []time.Time

	for _, m := range numericDate.FindAllStringSubmatch(text, -1) {
		if t, ok := makeDate(m[1], m[2], m[3]); ok {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		for _, m := range namedDate.FindAllStringSubmatch(text, -1) {
			day, month := m[1], m[2]
			if day == "" {
				day, month = m[4], m[3]
			}
			mon, ok := months[strings.ToLower(month[:3])]
			if !ok {
				continue
			}
			if t, ok := makeDate(m[5], strconv.Itoa(int(mon)), day); ok {
				found = append(found, t)
			}
		}
	}

	if len(found) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end := found[0], found[len(found)-1]
	if end.Before(start) {
		end = start
	}
	return start, end, true
}

func makeDate(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// reject overflow such as 2025-02-31
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func eventUID(rec event.EventRecord) string {
	key := strings.Join([]string{rec.Name, rec.DateText, rec.SourceLink}, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String() + "@locale"
}
