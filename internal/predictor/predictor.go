package predictor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mr1hm/go-drought-forecast/internal/metrics"
	"github.com/mr1hm/go-drought-forecast/internal/models"
)

// OccurrenceThreshold is the probability that must be strictly exceeded to flag drought.
const OccurrenceThreshold = 0.5

// Classifier is an opaque, externally trained model: features in, raw outputs out.
type Classifier interface {
	Predict(ctx context.Context, features []float64) ([]float64, error)
}

// DroughtPredictor exposes the occurrence and severity models behind one capability.
type DroughtPredictor interface {
	PredictOccurrence(ctx context.Context, fv FeatureVector) (float64, error)
	PredictSeverity(ctx context.Context, fv FeatureVector) ([]float64, error)
}

type Classification struct {
	Occurrence   int
	Severity     int
	Probability  float64
	Distribution []float64
}

// Classify runs both models and applies the labelling policy.
func Classify(ctx context.Context, p DroughtPredictor, fv FeatureVector) (Classification, error) {
	prob, err := p.PredictOccurrence(ctx, fv)
	if err != nil {
		return Classification{}, err
	}
	dist, err := p.PredictSeverity(ctx, fv)
	if err != nil {
		return Classification{}, err
	}
	severity, err := SeverityLabel(dist)
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		Occurrence:   OccurrenceLabel(prob),
		Severity:     severity,
		Probability:  prob,
		Distribution: dist,
	}, nil
}

// OccurrenceLabel is 1 iff prob > 0.5; exactly 0.5 is non-occurrence.
func OccurrenceLabel(prob float64) int {
	if prob > OccurrenceThreshold {
		return 1
	}
	return 0
}

// SeverityLabel returns the argmax of dist, ties going to the lowest index.
func SeverityLabel(dist []float64) (int, error) {
	if len(dist) == 0 {
		return 0, fmt.Errorf("empty severity distribution: %w", models.ErrInferenceFailure)
	}
	best := 0
	for i := 1; i < len(dist); i++ {
		if dist[i] > dist[best] {
			best = i
		}
	}
	return best, nil
}

// Models is the production DroughtPredictor backed by two Classifiers.
type Models struct {
	occurrence      Classifier
	severity        Classifier
	severityClasses int
	metrics         *metrics.Metrics
}

func NewModels(occurrence, severity Classifier, severityClasses int, m *metrics.Metrics) (*Models, error) {
	if occurrence == nil || severity == nil {
		return nil, fmt.Errorf("both occurrence and severity classifiers are required")
	}
	if severityClasses < 2 {
		return nil, fmt.Errorf("severity classes must be at least 2, got %d", severityClasses)
	}
	return &Models{
		occurrence:      occurrence,
		severity:        severity,
		severityClasses: severityClasses,
		metrics:         m,
	}, nil
}

func (m *Models) PredictOccurrence(ctx context.Context, fv FeatureVector) (float64, error) {
	if err := fv.validate(); err != nil {
		return 0, err
	}

	out, err := m.invoke(ctx, "occurrence", m.occurrence, fv)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("occurrence model returned %d outputs, want 1: %w", len(out), models.ErrInferenceFailure)
	}
	if err := checkProbability(out[0]); err != nil {
		return 0, fmt.Errorf("occurrence model: %w", err)
	}
	return out[0], nil
}

func (m *Models) PredictSeverity(ctx context.Context, fv FeatureVector) ([]float64, error) {
	if err := fv.validate(); err != nil {
		return nil, err
	}

	out, err := m.invoke(ctx, "severity", m.severity, fv)
	if err != nil {
		return nil, err
	}
	if len(out) != m.severityClasses {
		return nil, fmt.Errorf("severity model returned %d classes, want %d: %w", len(out), m.severityClasses, models.ErrInferenceFailure)
	}
	for i, p := range out {
		if err := checkProbability(p); err != nil {
			return nil, fmt.Errorf("severity model class %d: %w", i, err)
		}
	}
	return out, nil
}

func (m *Models) invoke(ctx context.Context, name string, c Classifier, fv FeatureVector) ([]float64, error) {
	start := time.Now()
	out, err := c.Predict(ctx, fv.Values)
	if m.metrics != nil {
		m.metrics.InferenceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		m.record(name, "error")
		slog.Error("inference failed", "model", name, "error", err)
		return nil, fmt.Errorf("%s model: %w: %w", name, models.ErrInferenceFailure, err)
	}
	m.record(name, "success")
	return out, nil
}

func (m *Models) record(name, outcome string) {
	if m.metrics != nil {
		m.metrics.InferenceRequests.WithLabelValues(name, outcome).Inc()
	}
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("probability %v outside [0,1]: %w", p, models.ErrInferenceFailure)
	}
	return nil
}
