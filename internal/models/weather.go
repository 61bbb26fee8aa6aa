package models

import (
	"math"
	"time"
)

// DateLayout is how observation timestamps are persisted and rendered.
const DateLayout = "2006-01-02 15:04:05"

type WeatherRecord struct {
	ID                int64     // assigned by the store; defines "most recent"
	Date              time.Time // observation / ingestion time
	Year              int
	Month             int // 1-12
	Rainfall          float64 // mm
	LTA               float64 // long-term average of the baseline window
	Std               float64 // population std-dev of the baseline window
	RainfallAnomaly   float64
	SPI               float64
	DroughtOccurrence int // 0 or 1
	DroughtSeverity   int // argmax index of the severity distribution
	FeatureVersion    string
	Location          *Coordinates // nil when the record is not location-tagged
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// locationTolerance is how close two coordinates must be to count as the same point.
const locationTolerance = 1e-6

func (c Coordinates) Matches(other Coordinates) bool {
	return math.Abs(c.Latitude-other.Latitude) < locationTolerance &&
		math.Abs(c.Longitude-other.Longitude) < locationTolerance
}

func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// SetDate stamps the record with date and keeps Year/Month consistent with it.
func (r *WeatherRecord) SetDate(date time.Time) {
	r.Date = date
	r.Year = date.Year()
	r.Month = int(date.Month())
}

// DateString formats Date with DateLayout.
func (r *WeatherRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// ForecastPoint is one projected month of a forecast.
type ForecastPoint struct {
	Year              int
	Month             int
	DroughtOccurrence int
	DroughtSeverity   int
}

// AddMonths steps (year, month) forward by n calendar months with year rollover.
func AddMonths(year, month, n int) (int, int) {
	idx := year*12 + (month - 1) + n
	return idx / 12, idx%12 + 1
}
