package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr1hm/go-drought-forecast/internal/models"
)

const historyCSV = `date,totalprecip_mm
2024-08-01,10
2024-09-01,30
2024-10-01,10
2024-11-01,30
`

// upstreams stands in for the weather API, the historical dataset and both model servers.
func upstreams(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/history.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"forecast":{"forecastday":[{"day":{"totalprecip_mm":5}}]}}`)
	})
	mux.HandleFunc("/dataset.csv", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, historyCSV)
	})
	mux.HandleFunc("/v1/models/occurrence", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"predictions":[[0.83]]}`)
	})
	mux.HandleFunc("/v1/models/severity", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"predictions":[[0.05,0.15,0.7,0.1]]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupEnv(t *testing.T) {
	t.Helper()
	server := upstreams(t)
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "drought.db"))
	t.Setenv("WEATHERAPI_URL", server.URL+"/history.json")
	t.Setenv("WEATHERAPI_KEY", "test-key")
	t.Setenv("HISTORICAL_URL", server.URL+"/dataset.csv")
	t.Setenv("BASELINE_WINDOW", "4")
	t.Setenv("OCCURRENCE_MODEL_URL", server.URL+"/v1/models/occurrence")
	t.Setenv("SEVERITY_MODEL_URL", server.URL+"/v1/models/severity")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("INGEST_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func TestIngestThenForecast(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "ingest", "--latitude=-17.8292", "--longitude=31.0522", "--date", "2024-12-15")
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal([]byte(out), &record); err != nil {
		t.Fatalf("ingest output is not JSON: %q", out)
	}
	// baseline mean 20, population std 10, rainfall 5
	if record["spi"] != -1.5 {
		t.Errorf("expected spi -1.5, got %v", record["spi"])
	}
	if record["drought_occurrence"] != float64(1) || record["drought_severity"] != float64(2) {
		t.Errorf("unexpected labels %v", record)
	}
	if record["date"] != "2024-12-15 00:00:00" {
		t.Errorf("unexpected date %v", record["date"])
	}

	out, err = execute(t, "forecast", "--latitude=-17.8292", "--longitude=31.0522")
	if err != nil {
		t.Fatalf("forecast failed: %v", err)
	}
	var points []forecastPoint
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("forecast output is not JSON: %q", out)
	}
	want := []forecastPoint{
		{Month: 1, Year: 2025, DroughtOccurrence: 1, DroughtSeverity: 2, Severity: "severe"},
		{Month: 2, Year: 2025, DroughtOccurrence: 1, DroughtSeverity: 2, Severity: "severe"},
		{Month: 3, Year: 2025, DroughtOccurrence: 1, DroughtSeverity: 2, Severity: "severe"},
	}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], points[i])
		}
	}

	out, err = execute(t, "latest")
	if err != nil {
		t.Fatalf("latest failed: %v", err)
	}
	if !strings.Contains(out, `"id": 1`) {
		t.Errorf("expected record 1, got %q", out)
	}
}

func TestLatest_EmptyStore(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "latest")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestForecast_Validation(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"one coordinate", []string{"forecast", "--latitude", "1"}},
		{"not a number", []string{"forecast", "--latitude", "x", "--longitude", "1"}},
		{"horizon too long", []string{"forecast", "--horizon", "13"}},
		{"horizon zero", []string{"forecast", "--horizon", "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if !errors.Is(err, models.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestIngest_RequiresCoordinates(t *testing.T) {
	setupEnv(t)

	if _, err := execute(t, "ingest", "--latitude", "1"); err == nil {
		t.Error("expected a parse error without --longitude")
	}
}

func TestIngest_UpstreamFailureWithoutRetry(t *testing.T) {
	setupEnv(t)
	t.Setenv("WEATHERAPI_URL", "http://127.0.0.1:1/history.json")

	_, err := execute(t, "ingest", "--latitude", "1", "--longitude", "1", "--no-retry")
	if !errors.Is(err, models.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}
