package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/fr0stylo/linevault/internal/webhooks"
)

// WebhookRoutes registers webhook endpoints.
type WebhookRoutes struct {
	handler *webhooks.Handler
}

// NewWebhookRoutes constructs webhook routes.
func NewWebhookRoutes(handler *webhooks.Handler) *WebhookRoutes {
	return &WebhookRoutes{handler: handler}
}

// RegisterRoutes registers webhook endpoints.
func (w *WebhookRoutes) RegisterRoutes(s *echo.Echo) {
	s.POST("/webhook", w.handleWebhook)
}

func (w *WebhookRoutes) handleWebhook(c echo.Context) error {
	return w.handler.Handle(c.Response(), c.Request())
}
