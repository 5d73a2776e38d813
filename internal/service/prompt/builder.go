// internal/service/prompt/builder.go

// Package prompt assembles the text sent to the grounded model.
package prompt

import (
	"fmt"
	"strings"

	"locale/internal/domain/event"
)

// Instruction is the search and validation protocol for structured mode
const Instruction = `# Concierge Activity Director

You are a search and curation agent. Analyze the request, run the searches
with the web search tool, then produce the final itinerary. Do not include
planning, execution steps, commentary or explanations in the response.

## Search protocol

The request lists unique_interests, a location and a date_range.
Treat each interest as a separate search category.
Run one distinct search for each interest.
Never combine several interests into a single query.

For each interest, formulate the query from that single interest, the
location and the date range, in the form "<interest> events in <location> <date_range>".

## Validation

Only include events confirmed to take place within the date range.
Undated or rumoured events do not qualify.
Prefer official event pages or high-reliability listings such as venue
sites, tourism boards or ticketing services.

## Output

Respond with a JSON array and nothing else. Each object is one confirmed
event and carries exactly these string fields:

[
  {
    "event_category": "the interest this event was found for",
    "event_name": "official name of the event",
    "event_source_link": "direct URL to the official or reliable event page",
    "event_date": "full date or dates of the event",
    "event_location": "GPS coordinates as 'latitude, longitude' with two decimals",
    "event_description": "one or two concise sentences"
  }
]

No markdown, no comments, no text outside the JSON array.
`

// TextInstruction is the protocol for free-text mode
const TextInstruction = `# Concierge Activity Director

You are a search and curation agent. The request lists unique_interests, a
location and a date_range.
Treat each interest as a separate search category and run one distinct web
search per interest. Never combine several interests into a single query.

Only include events confirmed to take place within the date range, and
prefer official event pages or high-reliability listings.

Respond in markdown. Use one heading per interest, followed by a bullet list
of events. Each bullet gives the event name, the date, the venue and a single
source link written as [Source](URL). Do not add commentary outside the lists.
`

// Build returns the full structured-mode prompt for c. Callers must ensure
// c.Interests is non-empty.
func Build(c event.SearchCriteria) string {
	return Instruction + "\n" + Criteria(c)
}

// BuildText returns the free-text mode prompt for c
func BuildText(c event.SearchCriteria) string {
	return TextInstruction + "\n" + Criteria(c)
}

// ForMode picks the builder matching the retrieval mode
func ForMode(mode event.Mode, c event.SearchCriteria) string {
	if mode == event.ModeText {
		return BuildText(c)
	}
	return Build(c)
}

// Criteria renders the request section: each interest on its own line,
// then the location and the date range verbatim.
func Criteria(c event.SearchCriteria) string {
	var b strings.Builder

	b.WriteString("## Request\n\n")
	b.WriteString("unique_interests:\n")
	for i, interest := range c.Interests {
		fmt.Fprintf(&b, "- Interest %d: %s\n", i+1, interest)
	}
	fmt.Fprintf(&b, "location: %s\n", c.Location)
	fmt.Fprintf(&b, "date_range: %s\n", c.DateRange.String())

	return b.String()
}
