// Package publish forwards persisted weather records to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-drought-forecast/internal/config"
	"github.com/mr1hm/go-drought-forecast/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes one message per record, keyed by record id.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, r *models.WeatherRecord) error {
	msg, err := recordMessage(r)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write record %d: %w", r.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// RecordEvent is the JSON payload written for each record.
type RecordEvent struct {
	ID                int64    `json:"id"`
	Date              string   `json:"date"`
	Year              int      `json:"year"`
	Month             int      `json:"month"`
	Rainfall          float64  `json:"rainfall"`
	LTA               float64  `json:"lta"`
	Std               float64  `json:"std"`
	RainfallAnomaly   float64  `json:"rainfall_anomaly"`
	SPI               float64  `json:"spi"`
	DroughtOccurrence int      `json:"drought_occurrence"`
	DroughtSeverity   int      `json:"drought_severity"`
	FeatureVersion    string   `json:"feature_version"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
}

func NewRecordEvent(r *models.WeatherRecord) RecordEvent {
	ev := RecordEvent{
		ID:                r.ID,
		Date:              r.DateString(),
		Year:              r.Year,
		Month:             r.Month,
		Rainfall:          r.Rainfall,
		LTA:               r.LTA,
		Std:               r.Std,
		RainfallAnomaly:   r.RainfallAnomaly,
		SPI:               r.SPI,
		DroughtOccurrence: r.DroughtOccurrence,
		DroughtSeverity:   r.DroughtSeverity,
		FeatureVersion:    r.FeatureVersion,
	}
	if r.Location != nil {
		ev.Latitude = &r.Location.Latitude
		ev.Longitude = &r.Location.Longitude
	}
	return ev
}

func recordMessage(r *models.WeatherRecord) (kafkago.Message, error) {
	data, err := json.Marshal(NewRecordEvent(r))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record %d: %w", r.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(r.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "feature_version", Value: []byte(r.FeatureVersion)},
			{Key: "drought_severity", Value: []byte(models.Severity(r.DroughtSeverity).String())},
		},
	}, nil
}
