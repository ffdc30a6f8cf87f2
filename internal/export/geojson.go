package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
)

// WriteGeoJSON writes the canonical set to path as a FeatureCollection of
// points, one feature per record with both coordinates. Records without a
// position are counted and skipped.
func WriteGeoJSON(path string, reactors []*model.Reactor) error {
	fc := &geojson.FeatureCollection{}
	var skipped int

	for _, r := range reactors {
		if r.Latitude == nil || r.Longitude == nil {
			skipped++
			continue
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Longitude, *r.Latitude}),
			Properties: featureProperties(r),
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "export: marshal feature collection")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}

	zap.L().Info("geojson written",
		zap.String("component", "export"),
		zap.String("path", path),
		zap.Int("features", len(fc.Features)),
		zap.Int("skipped", skipped),
	)
	return nil
}

func featureProperties(r *model.Reactor) map[string]any {
	props := map[string]any{
		"name":    r.Name,
		"country": r.Country,
	}
	if r.CountryCode != "" {
		props["country_code"] = r.CountryCode
	}
	if r.IAEAId != 0 {
		props["iaea_id"] = r.IAEAId
	}
	if r.Type != "" {
		props["type"] = r.Type
	}
	if r.Capacity != nil {
		props["capacity_mw"] = *r.Capacity
	}
	if r.Status != "" {
		props["status"] = string(r.Status)
	}
	if r.WikipediaUrl != "" {
		props["wikipedia_url"] = r.WikipediaUrl
	}
	if r.WikidataOperator != "" {
		props["operator"] = r.WikidataOperator
	}
	if r.WikipediaThumbnail != "" {
		props["thumbnail"] = r.WikipediaThumbnail
	}
	return props
}
