package handlers

import (
	"errors"

	"agromarket/internal/middleware"
	"agromarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CRMHandler serves the representative's client portfolio.
type CRMHandler struct {
	service *services.ImportService
}

// NewCRMHandler creates a new CRMHandler.
func NewCRMHandler(service *services.ImportService) *CRMHandler {
	return &CRMHandler{service: service}
}

// RegisterRoutes registers the CRM routes. The router must already be
// restricted to representatives and mounted at /crm.
func (h *CRMHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/clients", h.HandleListClients)
	router.Post("/clients/import", h.HandleImportClients)
	router.Get("/commissions", h.HandleListCommissions)
}

// HandleImportClients takes a multipart "file" field. ?dry_run=true only validates.
func (h *CRMHandler) HandleImportClients(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "A CSV file is required in the 'file' field", err)
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Could not read uploaded file", err)
	}
	defer f.Close()

	dryRun := c.QueryBool("dry_run", false) || c.FormValue("dry_run") == "true"
	report, err := h.service.ImportClients(c.UserContext(), f, middleware.Requester(c).UserID, dryRun)
	if err != nil {
		return fail(c, "Could not import clients", err)
	}
	if report.Total == 0 {
		return badRequest(c, "Could not import clients", errors.New("file has no data rows"))
	}
	return c.JSON(report)
}

// HandleListClients lists the caller's clients.
func (h *CRMHandler) HandleListClients(c *fiber.Ctx) error {
	clients, err := h.service.ListClients(c.UserContext(), middleware.Requester(c).UserID)
	if err != nil {
		return fail(c, "Could not list clients", err)
	}
	return c.JSON(clients)
}

// HandleListCommissions lists the caller's commissions.
func (h *CRMHandler) HandleListCommissions(c *fiber.Ctx) error {
	commissions, err := h.service.ListCommissions(c.UserContext(), middleware.Requester(c).UserID)
	if err != nil {
		return fail(c, "Could not list commissions", err)
	}
	return c.JSON(commissions)
}
