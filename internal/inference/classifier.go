// Package inference submits animal images to the remote breed
// classification endpoint and normalizes its predictions. Inference is
// best-effort enrichment: the client never returns an error, it degrades
// to a default prediction so the rest of the pipeline can proceed.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/httpclient"
	"github.com/innovyom/breedscan-go/internal/logging"
	"github.com/innovyom/breedscan-go/internal/observability"
)

// ModelVersion identifies the classifier workflow version recorded with
// every prediction log entry.
const ModelVersion = "detect-and-classify-v1"

// maxPredictions caps the ranked list returned to callers.
const maxPredictions = 3

// UnknownBreed is the breed label used when the classifier yields nothing.
const UnknownBreed = "unknown"

// Prediction is a single normalized breed candidate.
type Prediction struct {
	Breed      string  `json:"breed"`
	Confidence float64 `json:"confidence"`
}

// DefaultPredictions returns the degraded single-element prediction list.
func DefaultPredictions() []Prediction {
	return []Prediction{{Breed: UnknownBreed, Confidence: 0}}
}

// classifierRequest is the wire format sent to the classifier endpoint.
type classifierRequest struct {
	Image    string `json:"image"`
	UseCache bool   `json:"use_cache"`
}

// rawPrediction mirrors the heterogeneous prediction shapes the
// classifier returns. Older workflow versions used predicted_class.
type rawPrediction struct {
	Class          string  `json:"class"`
	PredictedClass string  `json:"predicted_class"`
	Confidence     float64 `json:"confidence"`
}

type classifierResponse struct {
	Predictions []rawPrediction `json:"predictions"`
}

// Client calls the remote breed classifier.
type Client struct {
	endpoint string
	apiKey   string
	useCache bool
	timeout  time.Duration
	http     *httpclient.Client
	limiter  *rate.Limiter
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewClient creates a classifier client from settings.
func NewClient(settings *conf.Settings, hc *httpclient.Client, metrics *observability.Metrics) *Client {
	rps := settings.Classifier.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		endpoint: settings.Classifier.Endpoint,
		apiKey:   settings.Classifier.APIKey,
		useCache: settings.Classifier.UseCache,
		timeout:  settings.ClassifierTimeout(),
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		metrics:  metrics,
		logger:   logging.ForService("inference"),
	}
}

// Classify submits image bytes to the classifier and returns the ranked,
// truncated prediction list. On any failure it returns the default list;
// the returned slice is always non-empty.
func (c *Client) Classify(ctx context.Context, data []byte, contentType string) []Prediction {
	reqID := uuid.New().String()
	start := time.Now()

	preds, err := c.classify(ctx, reqID, data, contentType)
	if c.metrics != nil {
		c.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.logger.Warn("classifier call failed, using default prediction",
			"request_id", reqID,
			"error", err)
		if c.metrics != nil {
			c.metrics.DegradedInferences.Inc()
		}
		return DefaultPredictions()
	}
	if len(preds) == 0 {
		c.logger.Warn("classifier returned no predictions, using default prediction",
			"request_id", reqID)
		if c.metrics != nil {
			c.metrics.DegradedInferences.Inc()
		}
		return DefaultPredictions()
	}

	c.logger.Info("classification complete",
		"request_id", reqID,
		"predictions", len(preds),
		"top_breed", preds[0].Breed,
		"top_confidence", preds[0].Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return preds
}

func (c *Client) classify(ctx context.Context, reqID string, data []byte, contentType string) ([]Prediction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))

	body, err := json.Marshal(classifierRequest{Image: dataURL, UseCache: c.useCache})
	if err != nil {
		return nil, fmt.Errorf("marshaling classifier request: %w", err)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating classifier request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.http.Do(callCtx, req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close classifier response body", "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var parsed classifierResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding classifier response: %w", err)
	}

	return normalize(parsed.Predictions), nil
}

// normalize sorts raw predictions by descending confidence, truncates to
// the top three, resolves the breed label across the shapes the
// classifier has used, and rounds confidence to two decimal places.
func normalize(raw []rawPrediction) []Prediction {
	sorted := make([]rawPrediction, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	if len(sorted) > maxPredictions {
		sorted = sorted[:maxPredictions]
	}

	preds := make([]Prediction, 0, len(sorted))
	for _, rp := range sorted {
		breed := rp.Class
		if breed == "" {
			breed = rp.PredictedClass
		}
		if breed == "" {
			breed = UnknownBreed
		}
		preds = append(preds, Prediction{
			Breed:      breed,
			Confidence: roundConfidence(rp.Confidence),
		})
	}
	return preds
}

// roundConfidence rounds to two decimal places.
func roundConfidence(c float64) float64 {
	return math.Round(c*100) / 100
}
