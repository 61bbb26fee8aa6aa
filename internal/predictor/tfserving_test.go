package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTFServingClassifier_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/models/drought_severity:predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, [][]float64{{-1.5, 10, 20}}, req.Instances)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions": [[0.1, 0.6, 0.2, 0.1]]}`))
	}))
	defer srv.Close()

	c := NewTFServingClassifier(srv.URL+"/v1/models/drought_severity:predict", 2*time.Second)
	out, err := c.Predict(context.Background(), []float64{-1.5, 10, 20})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.6, 0.2, 0.1}, out)
}

func TestTFServingClassifier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`},
		{"model error", http.StatusOK, `{"error": "input shape mismatch"}`},
		{"malformed json", http.StatusOK, `{"predictions": [`},
		{"no predictions", http.StatusOK, `{"predictions": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewTFServingClassifier(srv.URL, time.Second)
			_, err := c.Predict(context.Background(), []float64{1, 2, 3})
			assert.Error(t, err)
		})
	}
}

func TestTFServingClassifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewTFServingClassifier(srv.URL, 50*time.Millisecond)
	_, err := c.Predict(context.Background(), []float64{1, 2, 3})
	assert.Error(t, err)
}
