package repository

import (
	"context"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

// WeatherRecordStore is the append-only record of ingestions.
// "Latest" always means highest id, never the newest date.
type WeatherRecordStore interface {
	Insert(ctx context.Context, r *models.WeatherRecord) (int64, error)
	Latest(ctx context.Context) (*models.WeatherRecord, error)
	LatestFor(ctx context.Context, loc models.Coordinates) (*models.WeatherRecord, error)
	Recent(ctx context.Context, loc models.Coordinates, n int) ([]models.WeatherRecord, error)
}
