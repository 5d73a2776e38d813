// internal/service/render/render.go

// Package render projects normalized events onto display structures: a map
// view, detail cards and export formats.
package render

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"locale/internal/domain/event"
	"locale/internal/metrics"
)

// venueClusterKm groups events sharing a venue on the map
const venueClusterKm = 0.05

// Config holds presentation settings
type Config struct {
	SummaryLength int
	MapsBaseURL   string
}

// TimezoneFinder resolves the IANA zone at a point
type TimezoneFinder interface {
	GetTimezoneName(lng float64, lat float64) string
}

// View is the rendered form of a Result
type View struct {
	Mode    event.Mode `json:"mode"`
	Map     *MapView   `json:"map,omitempty"`
	Cards   []Card     `json:"cards"`
	Skipped []Skipped  `json:"skipped,omitempty"`
	Text    string     `json:"text,omitempty"`
}

// MapView plots every record with a valid location
type MapView struct {
	Centre   event.Coordinates `json:"centre"`
	RadiusKm float64           `json:"radius_km"`
	Bounds   [4]float64        `json:"bounds"` // min lon, min lat, max lon, max lat
	Points   []MapPoint        `json:"points"`
	Venues   [][]int           `json:"venues,omitempty"`
}

// MapPoint is one plotted record
type MapPoint struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Coordinates event.Coordinates `json:"coordinates"`
}

// Card is the detail panel of one record
type Card struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	DateText    string            `json:"date_text"`
	Coordinates event.Coordinates `json:"coordinates"`
	MapsURL     string            `json:"maps_url"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Truncated   bool              `json:"truncated"`
	SourceLink  string            `json:"source_link"`
	Timezone    string            `json:"timezone,omitempty"`
}

// Skipped reports a record left off the map and card list
type Skipped struct {
	Index    int             `json:"index"`
	Name     string          `json:"name"`
	Location string          `json:"location"`
	Kind     event.ErrorKind `json:"kind"`
	Reason   string          `json:"reason"`
}

// Renderer builds views. It is safe for concurrent use.
type Renderer struct {
	cfg     Config
	tz      TimezoneFinder
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewRenderer creates a renderer. tz may be nil.
func NewRenderer(cfg Config, tz TimezoneFinder, logger *zap.Logger, m *metrics.Metrics) *Renderer {
	if cfg.SummaryLength <= 0 {
		cfg.SummaryLength = 160
	}
	if cfg.MapsBaseURL == "" {
		cfg.MapsBaseURL = "https://www.google.com/maps/search/"
	}
	return &Renderer{
		cfg:     cfg,
		tz:      tz,
		logger:  logger.Named("render"),
		metrics: m,
	}
}

// RenderResult dispatches on the result mode
func (r *Renderer) RenderResult(res event.Result) View {
	if res.Mode == event.ModeText {
		return r.RenderText(res.Text)
	}
	return r.Render(res.Events)
}

// RenderText wraps free text for display as-is
func (r *Renderer) RenderText(text string) View {
	return View{Mode: event.ModeText, Cards: []Card{}, Text: text}
}

// Render builds a map and one card per record with a valid location. Records
// whose location does not parse are reported in Skipped and never abort the
// rest of the render.
func (r *Renderer) Render(events []event.EventRecord) View {
	view := View{Mode: event.ModeStructured, Cards: make([]Card, 0, len(events))}
	caser := cases.Title(language.Und, cases.NoLower)

	var coords []event.Coordinates
	var points []MapPoint

	for i, rec := range events {
		c, err := event.ParseCoordinates(rec.Location)
		if err != nil {
			r.logger.Warn("Skipping event with invalid location",
				zap.Int("index", i),
				zap.String("name", rec.Name),
				zap.String("location", rec.Location),
				zap.Error(err),
			)
			r.metrics.SkippedGeometry.Inc()
			view.Skipped = append(view.Skipped, Skipped{
				Index:    i,
				Name:     rec.Name,
				Location: rec.Location,
				Kind:     event.KindInvalidEventGeometry,
				Reason:   err.Error(),
			})
			continue
		}

		category := caser.String(rec.Category)
		summary, truncated := Summarize(rec.Description, r.cfg.SummaryLength)

		card := Card{
			Index:       i,
			Name:        rec.Name,
			Category:    category,
			DateText:    rec.DateText,
			Coordinates: c,
			MapsURL:     r.MapsURL(c),
			Summary:     summary,
			Description: rec.Description,
			Truncated:   truncated,
			SourceLink:  rec.SourceLink,
		}
		if r.tz != nil {
			card.Timezone = r.tz.GetTimezoneName(c.Lon, c.Lat)
		}
		view.Cards = append(view.Cards, card)

		coords = append(coords, c)
		points = append(points, MapPoint{Index: i, Name: rec.Name, Category: category, Coordinates: c})
	}

	if len(points) > 0 {
		view.Map = buildMap(coords, points)
	}
	return view
}

func buildMap(coords []event.Coordinates, points []MapPoint) *MapView {
	centre := Centre(coords)

	mp := make(orb.MultiPoint, len(coords))
	for i, c := range coords {
		mp[i] = orb.Point{c.Lon, c.Lat}
	}
	bound := mp.Bound()

	m := &MapView{
		Centre:   centre,
		RadiusKm: Radius(centre, coords),
		Bounds:   [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()},
		Points:   points,
	}

	for _, group := range Cluster(coords, venueClusterKm) {
		if len(group) < 2 {
			continue
		}
		venue := make([]int, len(group))
		for i, idx := range group {
			venue[i] = points[idx].Index
		}
		m.Venues = append(m.Venues, venue)
	}
	return m
}

// MapsURL builds a map search link for c
func (r *Renderer) MapsURL(c event.Coordinates) string {
	u, err := url.Parse(r.cfg.MapsBaseURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("api", "1")
	q.Set("query", strings.ReplaceAll(c.String(), " ", ""))
	u.RawQuery = q.Encode()
	return u.String()
}

// Summarize cuts text to at most limit runes on a word boundary, appending an
// ellipsis when anything was dropped
func Summarize(text string, limit int) (string, bool) {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text, false
	}

	cut := runes[:limit]
	for i := len(cut) - 1; i > limit/2; i-- {
		if unicode.IsSpace(cut[i]) {
			cut = cut[:i]
			break
		}
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…", true
}
