// internal/service/normalize/normalizer.go

// Package normalize turns raw model output into canonical event records.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"locale/internal/domain/event"
)

const op = "normalize"

// aliases maps every accepted key to its canonical field, earlier keys win
var aliases = []struct {
	keys []string
	set  func(*event.EventRecord, string)
}{
	{[]string{"event_category", "event_type", "category"}, func(r *event.EventRecord, v string) { r.Category = v }},
	{[]string{"event_name", "name"}, func(r *event.EventRecord, v string) { r.Name = v }},
	{[]string{"event_source_link", "source_link", "link"}, func(r *event.EventRecord, v string) { r.SourceLink = unwrapLink(v) }},
	{[]string{"event_date", "date"}, func(r *event.EventRecord, v string) { r.DateText = v }},
	{[]string{"event_location", "location"}, func(r *event.EventRecord, v string) { r.Location = v }},
	{[]string{"event_description", "description"}, func(r *event.EventRecord, v string) { r.Description = v }},
}

var markdownLink = regexp.MustCompile(`^\[[^\]]*\]\(\s*<?([^\s()<>]+)>?\s*\)$`)

// Normalize converts raw into a Result. Free text passes through untouched;
// structured output must be a strict JSON array of flat string objects
// carrying all six event fields. Values are kept as sent except that a
// markdown-wrapped source link is reduced to its URL.
func Normalize(raw event.RawResult) (event.Result, error) {
	if raw.Mode == event.ModeText {
		return event.Result{Mode: event.ModeText, Text: raw.Text}, nil
	}

	events, err := Decode(raw.Text)
	if err != nil {
		return event.Result{}, event.NewError(event.KindMalformedResponse, op, err)
	}
	return event.Result{Mode: event.ModeStructured, Events: events}, nil
}

// Decode parses fenced or bare JSON into event records
func Decode(text string) ([]event.EventRecord, error) {
	body := StripFences(text)
	if body == "" {
		return nil, errors.New("empty response body")
	}
	if body[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array, got %q", preview(body))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var objects []map[string]json.RawMessage
	if err := dec.Decode(&objects); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON array")
	}

	events := make([]event.EventRecord, 0, len(objects))
	for i, obj := range objects {
		rec, err := toRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		events = append(events, rec)
	}
	return events, nil
}

// toRecord requires every value to be a string and every canonical field to
// be present under one of its keys. Keys outside the alias table are ignored.
func toRecord(obj map[string]json.RawMessage) (event.EventRecord, error) {
	if obj == nil {
		return event.EventRecord{}, errors.New("null element")
	}

	values := make(map[string]string, len(obj))
	for key, raw := range obj {
		v, err := stringValue(raw)
		if err != nil {
			return event.EventRecord{}, fmt.Errorf("field %q: %w", key, err)
		}
		values[key] = v
	}

	var rec event.EventRecord
	var missing []string
	for _, field := range aliases {
		found := false
		for _, key := range field.keys {
			if v, ok := values[key]; ok {
				field.set(&rec, v)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field.keys[0])
		}
	}
	if len(missing) > 0 {
		return event.EventRecord{}, fmt.Errorf("missing fields %s", strings.Join(missing, ", "))
	}
	return rec, nil
}

// stringValue decodes a JSON string verbatim
func stringValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", fmt.Errorf("expected string, got %s", preview(string(trimmed)))
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", err
	}
	return s, nil
}

// StripFences removes a leading ``` or ```json line and a trailing ``` marker
// plus surrounding whitespace
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeft(s[3:], "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// unwrapLink turns "[text](url)" into "url"; anything else is returned as is
func unwrapLink(v string) string {
	if m := markdownLink.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

func preview(s string) string {
	const max = 40
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
