// Package spi computes the Standardized Precipitation Index of a rainfall
// observation against a trailing baseline window.
package spi

import (
	"fmt"
	"math"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

type Result struct {
	LTA     float64 // arithmetic mean of the baseline window
	Std     float64 // population standard deviation of the baseline window
	Anomaly float64 // current rainfall minus LTA
	SPI     float64 // Anomaly / Std
}

// Compute derives LTA, standard deviation, anomaly and SPI for currentRainfall.
// A window whose samples are all equal is an ErrDegenerateBaseline, never NaN or Inf.
func Compute(currentRainfall float64, baseline []float64) (Result, error) {
	if len(baseline) == 0 {
		return Result{}, fmt.Errorf("empty baseline window: %w", models.ErrDataInsufficient)
	}
	if math.IsNaN(currentRainfall) || math.IsInf(currentRainfall, 0) {
		return Result{}, fmt.Errorf("current rainfall %v: %w", currentRainfall, models.ErrInvalidInput)
	}

	var sum float64
	for _, v := range baseline {
		sum += v
	}
	mean := sum / float64(len(baseline))

	var sq float64
	for _, v := range baseline {
		d := v - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(baseline)))

	if identical(baseline) || !(std > 0) || math.IsInf(std, 0) {
		return Result{}, fmt.Errorf("std %v over %d samples: %w", std, len(baseline), models.ErrDegenerateBaseline)
	}

	anomaly := currentRainfall - mean
	return Result{
		LTA:     mean,
		Std:     std,
		Anomaly: anomaly,
		SPI:     anomaly / std,
	}, nil
}

// identical reports whether every sample equals the first. Such a window
// can still yield a tiny positive std after rounding.
func identical(baseline []float64) bool {
	for _, v := range baseline[1:] {
		if v != baseline[0] {
			return false
		}
	}
	return true
}
