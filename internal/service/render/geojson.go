// internal/service/render/geojson.go

package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"locale/internal/domain/event"
)

// FeatureCollection exports every record with a valid location as a GeoJSON
// point feature. Invalid records are left out.
func (r *Renderer) FeatureCollection(events []event.EventRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, rec := range events {
		c, err := event.ParseCoordinates(rec.Location)
		if err != nil {
			continue
		}

		f := geojson.NewFeature(orb.Point{c.Lon, c.Lat})
		f.ID = i
		f.Properties["name"] = rec.Name
		f.Properties["category"] = rec.Category
		f.Properties["date"] = rec.DateText
		f.Properties["source_link"] = rec.SourceLink
		f.Properties["description"] = rec.Description
		f.Properties["maps_url"] = r.MapsURL(c)
		if r.tz != nil {
			f.Properties["timezone"] = r.tz.GetTimezoneName(c.Lon, c.Lat)
		}
		fc.Append(f)
	}

	return fc
}
