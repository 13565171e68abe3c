package handlers

import (
	"fmt"
	"path"

	"agromarket/internal/middleware"
	"agromarket/internal/models"
	"agromarket/internal/services"
	"agromarket/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validation.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/:id/documents", h.HandleListDocuments)
	orderRoutes.Post("/:id/documents", h.HandleRegenerateDocument)
	orderRoutes.Get("/:id/documents/:docID", h.HandleDownloadDocument)
}

// RegisterAdminRoutes registers order management for admins.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Patch("/orders/:id/status", h.HandleUpdateOrderStatus)
}

// HandleGetOrders lists the caller's orders, or every order for admins.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext(), middleware.Requester(c))
	if err != nil {
		return fail(c, "Could not retrieve orders", err)
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrder(c.UserContext(), orderID, middleware.Requester(c))
	if err != nil {
		return fail(c, fmt.Sprintf("Could not retrieve order %s", orderID), err)
	}
	return c.JSON(order)
}

// HandleCreateOrder turns the finalized cart into an order.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	result, err := h.service.CreateOrder(c.UserContext(), middleware.Requester(c).UserID, req)
	if err != nil {
		return fail(c, "Could not create order", err)
	}

	// Return the created order with its new ID and a 201 Created status
	return c.Status(fiber.StatusCreated).JSON(result)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	orderID := c.Params("id")
	var updateData struct {
		Status models.OrderStatus `json:"status"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return badRequest(c, "Invalid request body for status update", err)
	}

	if updateData.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Status is required for order status update.",
		})
	}

	order, err := h.service.UpdateOrderStatus(c.UserContext(), orderID, updateData.Status)
	if err != nil {
		return fail(c, fmt.Sprintf("Could not update status of order %s", orderID), err)
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", order.OrderNumber, order.Status),
		"order":   order,
	})
}

// HandleListDocuments lists the payment documents of an order.
func (h *OrderHandler) HandleListDocuments(c *fiber.Ctx) error {
	docs, err := h.service.ListDocuments(c.UserContext(), c.Params("id"), middleware.Requester(c))
	if err != nil {
		return fail(c, "Could not list documents", err)
	}
	return c.JSON(docs)
}

// HandleRegenerateDocument generates the payment document if it is missing.
// It answers 201 when a document was rendered and 200 when one already existed.
func (h *OrderHandler) HandleRegenerateDocument(c *fiber.Ctx) error {
	doc, created, err := h.service.RegenerateDocument(c.UserContext(), c.Params("id"), middleware.Requester(c))
	if err != nil {
		return fail(c, "Could not generate document", err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(doc)
}

// HandleDownloadDocument streams a stored payment document.
func (h *OrderHandler) HandleDownloadDocument(c *fiber.Ctx) error {
	doc, body, err := h.service.OpenDocument(c.UserContext(), c.Params("id"), c.Params("docID"), middleware.Requester(c))
	if err != nil {
		return fail(c, "Could not open document", err)
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", path.Base(doc.StorageURL)))
	return c.Send(body)
}
