package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthRoutes registers the liveness endpoint. No dependency checks.
type HealthRoutes struct{}

// NewHealthRoutes constructs health routes.
func NewHealthRoutes() *HealthRoutes {
	return &HealthRoutes{}
}

// RegisterRoutes registers the health endpoint.
func (h *HealthRoutes) RegisterRoutes(s *echo.Echo) {
	s.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}
