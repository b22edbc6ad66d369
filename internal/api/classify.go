package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/innovyom/breedscan-go/internal/datastore"
	"github.com/innovyom/breedscan-go/internal/inference"
)

// missingFieldsMessage is the fixed validation error naming the required
// request fields.
const missingFieldsMessage = "Missing required fields: image_url, animal_id, user_id, animal_type"

// ClassificationRequest is the inbound classify payload. All four fields
// are required.
type ClassificationRequest struct {
	ImageURL   string `json:"image_url"`
	AnimalID   string `json:"animal_id"`
	UserID     string `json:"user_id"`
	AnimalType string `json:"animal_type"`
}

// validate reports whether all required fields are present and non-empty.
func (r *ClassificationRequest) validate() bool {
	return r.ImageURL != "" && r.AnimalID != "" && r.UserID != "" && r.AnimalType != ""
}

// ClassificationResponse is the success payload.
type ClassificationResponse struct {
	Success          bool                   `json:"success"`
	AnimalRecordID   uint                   `json:"animal_record_id"`
	Predictions      []inference.Prediction `json:"predictions"`
	TopPrediction    inference.Prediction   `json:"top_prediction"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// Classify runs the full pipeline for one request: validate, resolve the
// image, classify it, persist the result and build the response.
func (c *Controller) Classify(ctx echo.Context) error {
	var req ClassificationRequest
	if err := ctx.Bind(&req); err != nil || !req.validate() {
		// Short-circuit before any I/O. No datastore writes happen for
		// invalid requests.
		if c.metrics != nil {
			c.metrics.IncClassification("invalid")
		}
		return c.HandleError(ctx, nil, missingFieldsMessage, http.StatusBadRequest)
	}

	// The URL-shape check sits past initial validation, so a present but
	// malformed image_url surfaces as an internal processing failure
	// rather than a 400. Kept as-is for client compatibility.
	if !strings.HasPrefix(req.ImageURL, "http") {
		if c.metrics != nil {
			c.metrics.IncClassification("error")
		}
		return c.HandleError(ctx,
			nil,
			"Invalid image URL: "+req.ImageURL,
			http.StatusInternalServerError)
	}

	start := time.Now()
	reqCtx := ctx.Request().Context()

	img, err := c.Resolver.Resolve(reqCtx, req.ImageURL)
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncClassification("error")
		}
		return c.HandleError(ctx, err, "Failed to fetch image", http.StatusInternalServerError)
	}

	predictions := c.Classifier.Classify(reqCtx, img.Data, img.ContentType)
	top := predictions[0]

	// Processing time covers image resolution and inference, measured
	// just before the datastore write.
	processingTime := time.Since(start).Milliseconds()

	record := &datastore.AnimalRecord{
		AnimalID:        req.AnimalID,
		UserID:          req.UserID,
		AnimalType:      req.AnimalType,
		PredictedBreed:  top.Breed,
		ConfidenceScore: top.Confidence,
		ImageURL:        req.ImageURL,
	}
	if err := c.DS.UpsertAnimalRecord(record); err != nil {
		if c.metrics != nil {
			c.metrics.PersistenceFailures.Inc()
			c.metrics.IncClassification("error")
		}
		return c.HandleError(ctx, err, "Failed to save animal record", http.StatusInternalServerError)
	}

	// Drop any stale cached copy of this record.
	c.recordCache.Delete(recordCacheKey(req.AnimalID, req.UserID))

	c.appendPredictionLog(record, req.ImageURL, predictions, processingTime)

	if c.metrics != nil {
		status := "success"
		if top.Breed == inference.UnknownBreed && top.Confidence == 0 {
			status = "degraded"
		}
		c.metrics.IncClassification(status)
		c.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}

	return ctx.JSON(http.StatusOK, &ClassificationResponse{
		Success:          true,
		AnimalRecordID:   record.ID,
		Predictions:      predictions,
		TopPrediction:    top,
		ProcessingTimeMs: processingTime,
	})
}

// appendPredictionLog inserts the immutable prediction log entry. A
// failure here is logged but never alters the response; the log is
// diagnostic, not transactional with the record upsert.
func (c *Controller) appendPredictionLog(record *datastore.AnimalRecord, imageURL string,
	predictions []inference.Prediction, processingTime int64) {

	serialized, err := json.Marshal(predictions)
	if err != nil {
		c.apiLogger.Error("failed to serialize predictions for log entry",
			"animal_record_id", record.ID,
			"error", err)
		return
	}

	entry := &datastore.BreedPrediction{
		AnimalRecordID:   record.ID,
		ImageURL:         imageURL,
		PredictedBreeds:  string(serialized),
		ModelVersion:     inference.ModelVersion,
		ProcessingTimeMs: processingTime,
	}
	if err := c.DS.InsertBreedPrediction(entry); err != nil {
		if c.metrics != nil {
			c.metrics.LogWriteFailures.Inc()
		}
		c.apiLogger.Error("failed to write prediction log entry",
			"animal_record_id", record.ID,
			"error", err)
	}
}
