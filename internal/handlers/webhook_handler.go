package handlers

import (
	"agromarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives WhatsApp Cloud API callbacks.
type WebhookHandler struct {
	service *services.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(service *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// RegisterRoutes registers the public webhook routes.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	hooks := router.Group("/webhooks")
	hooks.Get("/whatsapp", h.HandleVerify)
	hooks.Post("/whatsapp", h.HandleDelivery)
}

// HandleVerify answers the subscription handshake.
func (h *WebhookHandler) HandleVerify(c *fiber.Ctx) error {
	challenge, ok := h.service.VerifySubscription(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Verification token mismatch",
		})
	}
	return c.SendString(challenge)
}

// HandleDelivery accepts message notifications.
func (h *WebhookHandler) HandleDelivery(c *fiber.Ctx) error {
	forwarded, err := h.service.HandleDelivery(c.UserContext(), c.Body(), c.Get("X-Hub-Signature-256"))
	if err != nil {
		return fail(c, "Webhook rejected", err)
	}
	return c.JSON(fiber.Map{"received": forwarded})
}
