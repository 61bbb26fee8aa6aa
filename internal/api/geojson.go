package api

import (
	"github.com/mr1hm/go-drought-forecast/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON renders records as Point features; untagged records get a null geometry.
func toGeoJSON(records []models.WeatherRecord) FeatureCollection {
	features := make([]Feature, 0, len(records))

	for _, r := range records {
		f := Feature{
			Type: "Feature",
			Properties: map[string]any{
				"id":                 r.ID,
				"date":               r.DateString(),
				"year":               r.Year,
				"month":              r.Month,
				"rainfall":           r.Rainfall,
				"spi":                r.SPI,
				"drought_occurrence": r.DroughtOccurrence,
				"drought_severity":   r.DroughtSeverity,
				"severity":           models.Severity(r.DroughtSeverity).String(),
			},
		}
		if r.Location != nil {
			f.Geometry = &Geometry{
				Type:        "Point",
				Coordinates: []float64{r.Location.Longitude, r.Location.Latitude},
			}
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
