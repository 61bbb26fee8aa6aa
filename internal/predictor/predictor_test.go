package predictor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/models"
)

type stubClassifier struct {
	out   []float64
	err   error
	calls [][]float64
}

func (s *stubClassifier) Predict(_ context.Context, features []float64) ([]float64, error) {
	s.calls = append(s.calls, append([]float64(nil), features...))
	if s.err != nil {
		return nil, s.err
	}
	return s.out, nil
}

func newTestModels(t *testing.T, occ, sev *stubClassifier) *Models {
	t.Helper()
	m, err := NewModels(occ, sev, 3, metrics.NewMetricsForTesting())
	require.NoError(t, err)
	return m
}

var testFeatures = NewFeatureVector(-1.2, models.Coordinates{Latitude: 18.493, Longitude: -22.9671})

func TestOccurrenceLabel_Threshold(t *testing.T) {
	assert.Equal(t, 0, OccurrenceLabel(0.5))
	assert.Equal(t, 1, OccurrenceLabel(0.5000001))
	assert.Equal(t, 0, OccurrenceLabel(0.4999999))
	assert.Equal(t, 0, OccurrenceLabel(0))
	assert.Equal(t, 1, OccurrenceLabel(1))
}

func TestSeverityLabel_Argmax(t *testing.T) {
	got, err := SeverityLabel([]float64{0.1, 0.7, 0.2})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = SeverityLabel([]float64{0.05, 0.05, 0.1, 0.8})
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestSeverityLabel_TiesGoToLowestIndex(t *testing.T) {
	got, err := SeverityLabel([]float64{0.2, 0.4, 0.4})
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = SeverityLabel([]float64{0.25, 0.25, 0.25, 0.25})
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestSeverityLabel_Empty(t *testing.T) {
	_, err := SeverityLabel(nil)
	assert.ErrorIs(t, err, models.ErrInferenceFailure)
}

func TestClassify(t *testing.T) {
	occ := &stubClassifier{out: []float64{0.83}}
	sev := &stubClassifier{out: []float64{0.1, 0.7, 0.2}}
	m := newTestModels(t, occ, sev)

	got, err := Classify(context.Background(), m, testFeatures)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Occurrence)
	assert.Equal(t, 1, got.Severity)
	assert.Equal(t, 0.83, got.Probability)
	assert.Equal(t, []float64{0.1, 0.7, 0.2}, got.Distribution)

	require.Len(t, occ.calls, 1)
	assert.Equal(t, []float64{-1.2, 18.493, -22.9671}, occ.calls[0])
	assert.Equal(t, occ.calls, sev.calls)
}

func TestModels_FeatureShapeMismatch(t *testing.T) {
	occ := &stubClassifier{out: []float64{0.9}}
	sev := &stubClassifier{out: []float64{0.1, 0.7, 0.2}}
	m := newTestModels(t, occ, sev)

	short := FeatureVector{Version: FeatureVersion, Values: []float64{1, 2}}
	_, err := m.PredictOccurrence(context.Background(), short)
	assert.ErrorIs(t, err, models.ErrFeatureShape)

	long := FeatureVector{Version: FeatureVersion, Values: []float64{1, 2, 3, 4}}
	_, err = m.PredictSeverity(context.Background(), long)
	assert.ErrorIs(t, err, models.ErrFeatureShape)

	wrongVersion := FeatureVector{Version: "v0", Values: []float64{1, 2, 3}}
	_, err = m.PredictOccurrence(context.Background(), wrongVersion)
	assert.ErrorIs(t, err, models.ErrFeatureShape)

	assert.Empty(t, occ.calls, "mismatched vectors must never reach the model")
	assert.Empty(t, sev.calls)
}

func TestModels_InferenceFailures(t *testing.T) {
	tests := []struct {
		name string
		occ  *stubClassifier
		sev  *stubClassifier
	}{
		{"backend error", &stubClassifier{err: errors.New("connection refused")}, &stubClassifier{out: []float64{1, 0, 0}}},
		{"occurrence wrong arity", &stubClassifier{out: []float64{0.2, 0.8}}, &stubClassifier{out: []float64{1, 0, 0}}},
		{"occurrence out of range", &stubClassifier{out: []float64{1.3}}, &stubClassifier{out: []float64{1, 0, 0}}},
		{"occurrence NaN", &stubClassifier{out: []float64{math.NaN()}}, &stubClassifier{out: []float64{1, 0, 0}}},
		{"severity wrong class count", &stubClassifier{out: []float64{0.2}}, &stubClassifier{out: []float64{0.5, 0.5}}},
		{"severity negative", &stubClassifier{out: []float64{0.2}}, &stubClassifier{out: []float64{-0.1, 0.6, 0.5}}},
		{"severity backend error", &stubClassifier{out: []float64{0.2}}, &stubClassifier{err: errors.New("503")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModels(t, tt.occ, tt.sev)
			_, err := Classify(context.Background(), m, testFeatures)
			assert.ErrorIs(t, err, models.ErrInferenceFailure)
		})
	}
}

func TestNewModels_Validation(t *testing.T) {
	_, err := NewModels(nil, &stubClassifier{}, 4, nil)
	assert.Error(t, err)

	_, err = NewModels(&stubClassifier{}, &stubClassifier{}, 1, nil)
	assert.Error(t, err)
}

func TestFeaturesFromRecord(t *testing.T) {
	rec := &models.WeatherRecord{
		ID:             7,
		SPI:            -0.8,
		FeatureVersion: FeatureVersion,
		Location:       &models.Coordinates{Latitude: 1.5, Longitude: 2.5},
	}

	fv, err := FeaturesFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.8, 1.5, 2.5}, fv.Values)

	rec.Location = nil
	_, err = FeaturesFromRecord(rec)
	assert.ErrorIs(t, err, models.ErrFeatureShape)

	rec.Location = &models.Coordinates{}
	rec.FeatureVersion = "v0"
	_, err = FeaturesFromRecord(rec)
	assert.ErrorIs(t, err, models.ErrFeatureShape)
}
