package predictor

import (
	"fmt"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

// FeatureVersion identifies the feature contract the deployed models were trained on.
// v1 = [spi, latitude, longitude]. Changing the layout requires a new version.
const FeatureVersion = "v1"

// FeatureWidth is the number of values in a FeatureVersion vector.
const FeatureWidth = 3

type FeatureVector struct {
	Version string
	Values  []float64
}

// NewFeatureVector builds the v1 vector for an SPI value at loc.
func NewFeatureVector(spi float64, loc models.Coordinates) FeatureVector {
	return FeatureVector{
		Version: FeatureVersion,
		Values:  []float64{spi, loc.Latitude, loc.Longitude},
	}
}

// FeaturesFromRecord rebuilds the vector a persisted record was classified with.
func FeaturesFromRecord(r *models.WeatherRecord) (FeatureVector, error) {
	if r.FeatureVersion != FeatureVersion {
		return FeatureVector{}, fmt.Errorf("record %d uses feature version %q, models expect %q: %w",
			r.ID, r.FeatureVersion, FeatureVersion, models.ErrFeatureShape)
	}
	if r.Location == nil {
		return FeatureVector{}, fmt.Errorf("record %d has no location: %w", r.ID, models.ErrFeatureShape)
	}
	return NewFeatureVector(r.SPI, *r.Location), nil
}

func (fv FeatureVector) validate() error {
	if fv.Version != FeatureVersion {
		return fmt.Errorf("feature version %q, want %q: %w", fv.Version, FeatureVersion, models.ErrFeatureShape)
	}
	if len(fv.Values) != FeatureWidth {
		return fmt.Errorf("feature vector has %d values, want %d: %w", len(fv.Values), FeatureWidth, models.ErrFeatureShape)
	}
	return nil
}
