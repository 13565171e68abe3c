package handlers

import (
	"fmt"

	"agromarket/internal/models"
	"agromarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles account review.
type AdminHandler struct {
	authService *services.AuthService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService *services.AuthService) *AdminHandler {
	return &AdminHandler{authService: authService}
}

// RegisterRoutes registers the admin routes. The router must already be restricted to admins.
func (h *AdminHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/users", h.HandleListUsers)
	router.Post("/users/:id/approve", h.HandleReview(true))
	router.Post("/users/:id/reject", h.HandleReview(false))
}

// HandleListUsers lists accounts by ?status= (pending by default).
func (h *AdminHandler) HandleListUsers(c *fiber.Ctx) error {
	status := models.UserStatus(c.Query("status", string(models.UserStatusPending)))
	switch status {
	case models.UserStatusPending, models.UserStatusApproved, models.UserStatusRejected:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": fmt.Sprintf("Unknown status %q", status),
		})
	}
	users, err := h.authService.ListUsers(c.UserContext(), status)
	if err != nil {
		return fail(c, "Could not list users", err)
	}
	return c.JSON(users)
}

// HandleReview approves or rejects the account in :id.
func (h *AdminHandler) HandleReview(approve bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := h.authService.ReviewUser(c.UserContext(), c.Params("id"), approve)
		if err != nil {
			return fail(c, "Could not review user", err)
		}
		return c.JSON(fiber.Map{
			"message": fmt.Sprintf("User %s is now %s", user.Email, user.Status),
			"user":    user,
		})
	}
}
