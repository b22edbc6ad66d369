package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports service liveness and datastore connectivity.
func (c *Controller) Health(ctx echo.Context) error {
	status := "ok"
	code := http.StatusOK

	if err := c.DS.Ping(); err != nil {
		c.apiLogger.Error("datastore ping failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	return ctx.JSON(code, map[string]string{"status": status})
}
