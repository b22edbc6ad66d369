package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/innovyom/breedscan-go/internal/datastore"
	"github.com/innovyom/breedscan-go/internal/errors"
)

func recordCacheKey(animalID, userID string) string {
	return animalID + "|" + userID
}

// GetAnimalRecord returns the persisted record for an (animal_id,
// user_id) pair. Responses are cached briefly to absorb dashboard
// polling.
func (c *Controller) GetAnimalRecord(ctx echo.Context) error {
	animalID := ctx.Param("animal_id")
	userID := ctx.QueryParam("user_id")
	if animalID == "" || userID == "" {
		return c.HandleError(ctx, nil, "animal_id and user_id are required", http.StatusBadRequest)
	}

	key := recordCacheKey(animalID, userID)
	if cached, found := c.recordCache.Get(key); found {
		if record, ok := cached.(datastore.AnimalRecord); ok {
			return ctx.JSON(http.StatusOK, record)
		}
	}

	record, err := c.DS.GetAnimalRecord(animalID, userID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, nil, "Animal record not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get animal record", http.StatusInternalServerError)
	}

	c.recordCache.SetDefault(key, record)
	return ctx.JSON(http.StatusOK, record)
}

// GetPredictionHistory returns the append-only prediction log for a
// record, most recent first.
func (c *Controller) GetPredictionHistory(ctx echo.Context) error {
	animalID := ctx.Param("animal_id")
	userID := ctx.QueryParam("user_id")
	if animalID == "" || userID == "" {
		return c.HandleError(ctx, nil, "animal_id and user_id are required", http.StatusBadRequest)
	}

	record, err := c.DS.GetAnimalRecord(animalID, userID)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryNotFound) {
			return c.HandleError(ctx, nil, "Animal record not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get animal record", http.StatusInternalServerError)
	}

	predictions, err := c.DS.GetBreedPredictions(record.ID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get prediction history", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"animal_record_id": record.ID,
		"predictions":      predictions,
	})
}
