// Package api exposes the classification pipeline over HTTP.
package api

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/innovyom/breedscan-go/internal/conf"
	"github.com/innovyom/breedscan-go/internal/datastore"
	"github.com/innovyom/breedscan-go/internal/inference"
	"github.com/innovyom/breedscan-go/internal/logging"
	"github.com/innovyom/breedscan-go/internal/observability"
	"github.com/innovyom/breedscan-go/internal/resolver"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	DS         datastore.Interface
	Settings   *conf.Settings
	Resolver   *resolver.Resolver
	Classifier *inference.Client

	metrics     *observability.Metrics
	recordCache *cache.Cache
	apiLogger   *slog.Logger
}

// New creates a new API controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings,
	imageResolver *resolver.Resolver, classifier *inference.Client,
	metrics *observability.Metrics) *Controller {

	c := &Controller{
		Echo:        e,
		DS:          ds,
		Settings:    settings,
		Resolver:    imageResolver,
		Classifier:  classifier,
		metrics:     metrics,
		recordCache: cache.New(5*time.Minute, 10*time.Minute),
		apiLogger:   logging.ForService("api"),
	}

	c.initRoutes()
	return c
}

// initRoutes registers the API routes. Every response, success or error,
// carries permissive CORS headers; the CORS middleware also answers
// preflight requests.
func (c *Controller) initRoutes() {
	c.Echo.Use(middleware.Recover())
	c.Echo.Use(middleware.CORS())
	c.Echo.HTTPErrorHandler = c.errorHandler

	c.Group = c.Echo.Group("/api/v1")

	c.Group.POST("/classify", c.Classify)
	c.Group.GET("/animals/:animal_id", c.GetAnimalRecord)
	c.Group.GET("/animals/:animal_id/predictions", c.GetPredictionHistory)
	c.Group.GET("/health", c.Health)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// ErrorResponse is the JSON error payload.
type ErrorResponse struct {
	Error         string `json:"error"`
	Details       string `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// HandleError logs err and writes the error payload with the given code.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Details = err.Error()
	}

	c.apiLogger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Details,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method)

	return ctx.JSON(code, resp)
}

// errorHandler is the top-level catch for errors no handler dealt with.
// It preserves echo HTTP errors and converts everything else into a
// generic internal failure carrying the original message as details.
func (c *Controller) errorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Internal processing error"
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, isString := httpErr.Message.(string); isString {
			message = msg
		}
	}

	if jsonErr := c.HandleError(ctx, err, message, code); jsonErr != nil {
		c.apiLogger.Error("failed to write error response", "error", jsonErr)
	}
}

// Shutdown stops the HTTP server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.Echo.Shutdown(ctx)
}

// generateCorrelationID creates a short random identifier for error tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
