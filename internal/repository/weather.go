package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

const locationTolerance = 1e-6

const selectColumns = `
	SELECT id, date, year, month, rainfall, lta, std, rainfall_anomaly, spi,
		drought_occurrence, drought_severity, feature_version, latitude, longitude
	FROM weather_data`

func (s *SQLiteDB) Insert(ctx context.Context, r *models.WeatherRecord) (int64, error) {
	if err := validateRecord(r); err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrStoreWrite, err)
	}

	var lat, lon sql.NullFloat64
	if r.Location != nil {
		lat = sql.NullFloat64{Float64: r.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: r.Location.Longitude, Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_data (
			date, year, month, rainfall, lta, std, rainfall_anomaly, spi,
			drought_occurrence, drought_severity, feature_version, latitude, longitude, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DateString(), r.Year, r.Month, r.Rainfall, r.LTA, r.Std, r.RainfallAnomaly, r.SPI,
		r.DroughtOccurrence, r.DroughtSeverity, r.FeatureVersion, lat, lon, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert weather record: %w", models.ErrStoreWrite, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %w", models.ErrStoreWrite, err)
	}
	r.ID = id
	return id, nil
}

func (s *SQLiteDB) Latest(ctx context.Context) (*models.WeatherRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` ORDER BY id DESC LIMIT 1`)
	return scanOne(row)
}

func (s *SQLiteDB) LatestFor(ctx context.Context, loc models.Coordinates) (*models.WeatherRecord, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+`
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			AND ABS(latitude - ?) < ? AND ABS(longitude - ?) < ?
		ORDER BY id DESC LIMIT 1`,
		loc.Latitude, locationTolerance, loc.Longitude, locationTolerance,
	)
	return scanOne(row)
}

func (s *SQLiteDB) Recent(ctx context.Context, loc models.Coordinates, n int) ([]models.WeatherRecord, error) {
	if n <= 0 {
		return []models.WeatherRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
			AND ABS(latitude - ?) < ? AND ABS(longitude - ?) < ?
		ORDER BY id DESC LIMIT ?`,
		loc.Latitude, locationTolerance, loc.Longitude, locationTolerance, n,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying recent records: %w", err)
	}
	defer rows.Close()

	records := make([]models.WeatherRecord, 0, n)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.WeatherRecord, error) {
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return r, err
}

func scanRecord(sc scanner) (*models.WeatherRecord, error) {
	var (
		r        models.WeatherRecord
		date     string
		lat, lon sql.NullFloat64
	)
	err := sc.Scan(
		&r.ID, &date, &r.Year, &r.Month, &r.Rainfall, &r.LTA, &r.Std, &r.RainfallAnomaly, &r.SPI,
		&r.DroughtOccurrence, &r.DroughtSeverity, &r.FeatureVersion, &lat, &lon,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning weather record: %w", err)
	}

	r.Date, err = time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("error parsing date of record %d: %w", r.ID, err)
	}
	if lat.Valid && lon.Valid {
		r.Location = &models.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return &r, nil
}

func validateRecord(r *models.WeatherRecord) error {
	if r == nil {
		return errors.New("nil record")
	}
	if r.Date.IsZero() {
		return errors.New("record has no date")
	}
	if r.Year != r.Date.Year() || r.Month != int(r.Date.Month()) {
		return fmt.Errorf("year/month %d-%02d inconsistent with date %s", r.Year, r.Month, r.DateString())
	}
	if !(r.Std > 0) {
		return fmt.Errorf("std must be positive, got %v", r.Std)
	}
	if r.DroughtOccurrence != 0 && r.DroughtOccurrence != 1 {
		return fmt.Errorf("drought occurrence must be 0 or 1, got %d", r.DroughtOccurrence)
	}
	if r.DroughtSeverity < 0 {
		return fmt.Errorf("drought severity must be non-negative, got %d", r.DroughtSeverity)
	}
	if r.FeatureVersion == "" {
		return errors.New("record has no feature version")
	}
	if r.Location != nil && !r.Location.Valid() {
		return fmt.Errorf("invalid location %+v", *r.Location)
	}
	return nil
}
