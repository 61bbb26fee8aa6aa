package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TFServingClassifier calls a TensorFlow Serving REST predict endpoint,
// e.g. http://host:8501/v1/models/drought_occurrence:predict.
type TFServingClassifier struct {
	url    string
	client *http.Client
}

func NewTFServingClassifier(url string, timeout time.Duration) *TFServingClassifier {
	return &TFServingClassifier{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error"`
}

func (c *TFServingClassifier) Predict(ctx context.Context, features []float64) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: [][]float64{features}})
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status code: %d - body: %s", resp.StatusCode, bytes.TrimSpace(b))
	}

	var data predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("model error: %s", data.Error)
	}
	if len(data.Predictions) != 1 {
		return nil, fmt.Errorf("expected 1 prediction, got %d", len(data.Predictions))
	}

	return data.Predictions[0], nil
}
