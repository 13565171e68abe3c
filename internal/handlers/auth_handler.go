package handlers

import (
	"agromarket/internal/middleware"
	"agromarket/internal/services"
	"agromarket/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validation.New(),
	}
}

// RegisterRoutes registers the public authentication routes.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
}

// RegisterProtectedRoutes registers the routes that need a session.
func (h *AuthHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Get("/auth/me", h.HandleMe)
}

// RegisterRequest is the public sign-up form.
type RegisterRequest struct {
	Email       string `json:"email" form:"email" validate:"required,email"`
	Password    string `json:"password" form:"password" validate:"required,min=8,max=72"`
	CompanyName string `json:"company_name" form:"company_name" validate:"required,min=3,max=200"`
	CNPJ        string `json:"cnpj" form:"cnpj" validate:"required,cnpj"`
	Phone       string `json:"phone" form:"phone" validate:"required,br_phone"`

	// Bot protection. Website is a honeypot and must stay empty.
	Website        string `json:"website" form:"website"`
	FormStartedAt  int64  `json:"form_started_at" form:"form_started_at"`
	RecaptchaToken string `json:"recaptcha_token" form:"recaptcha_token"`
}

// HandleRegister handles new account applications.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	user, err := h.authService.RegisterUser(c.UserContext(), services.Registration{
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
		Document:    req.CNPJ,
		Phone:       req.Phone,
		Bot: services.BotSignals{
			Honeypot:       req.Website,
			FormStartedAt:  req.FormStartedAt,
			RecaptchaToken: req.RecaptchaToken,
			RemoteIP:       c.IP(),
		},
	})
	if err != nil {
		return fail(c, "Registration failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration received and awaiting approval",
		"user":    user,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	if err := h.validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	token, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, "Authentication failed for "+req.Email, err)
	}

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
	})
}

// HandleMe returns the account behind the current token.
func (h *AuthHandler) HandleMe(c *fiber.Ctx) error {
	who := middleware.Requester(c)
	user, err := h.authService.CurrentUser(c.UserContext(), who.UserID)
	if err != nil {
		return fail(c, "Could not load current user", err)
	}
	return c.JSON(user)
}
