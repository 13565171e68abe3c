package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/validation"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Registration is what an applicant submits.
type Registration struct {
	Email       string
	Password    string
	CompanyName string
	Document    string
	Phone       string
	Bot         BotSignals
}

// Requester identifies the authenticated caller of a service method.
type Requester struct {
	UserID string
	Role   models.Role
}

func (r Requester) IsAdmin() bool { return r.Role == models.RoleAdmin }

// AuthService handles registration, approval and token issuing.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	tokenDurat time.Duration // Duration for which JWT is valid
	guard      *BotGuard
	notifier   *NotificationService
}

// NewAuthService creates a new AuthService. guard and notifier may be nil.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, guard *BotGuard, notifier *NotificationService) *AuthService {
	if notifier == nil {
		notifier = NewNotificationService(nil)
	}
	return &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		tokenDurat: 24 * time.Hour, // Token valid for 24 hours
		guard:      guard,
		notifier:   notifier,
	}
}

// RegisterUser stores a pending customer account and alerts the admins.
func (s *AuthService) RegisterUser(ctx context.Context, reg Registration) (*models.User, error) {
	if s.guard != nil {
		if err := s.guard.Check(ctx, reg.Bot); err != nil {
			return nil, err
		}
	}

	email := strings.ToLower(strings.TrimSpace(reg.Email))
	document := validation.Digits(reg.Document)

	if existing, err := s.userRepo.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, fmt.Errorf("email '%s' %w", email, ErrAlreadyRegistered)
	}
	if existing, err := s.userRepo.GetByDocument(ctx, document); err == nil && existing != nil {
		return nil, fmt.Errorf("CNPJ '%s' %w", document, ErrAlreadyRegistered)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:       email,
		Password:    string(hashedPassword),
		CompanyName: strings.TrimSpace(reg.CompanyName),
		Document:    document,
		Phone:       validation.Digits(reg.Phone),
		Role:        models.RoleCustomer,
		Status:      models.UserStatusPending,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("account %w", ErrAlreadyRegistered)
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	admins, err := s.userRepo.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		log.Printf("Could not load admins to notify about %s: %v", user.Email, err)
	}
	s.notifier.RegistrationReceived(user, admins)

	return user, nil
}

// CreateStaff stores an already approved admin or representative account.
func (s *AuthService) CreateStaff(ctx context.Context, reg Registration, role models.Role) (*models.User, error) {
	if role != models.RoleAdmin && role != models.RoleRepresentative {
		return nil, fmt.Errorf("role %q cannot be created as staff", role)
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(reg.Email)),
		Password:    string(hashedPassword),
		CompanyName: strings.TrimSpace(reg.CompanyName),
		Document:    validation.Digits(reg.Document),
		Phone:       validation.Digits(reg.Phone),
		Role:        role,
		Status:      models.UserStatusApproved,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("account %w", ErrAlreadyRegistered)
		}
		return nil, fmt.Errorf("failed to create %s: %w", role, err)
	}
	return user, nil
}

// LoginUser authenticates an approved user and returns a JWT token.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	if user.Status != models.UserStatusApproved {
		return "", fmt.Errorf("%w: status is %s", ErrAccountNotApproved, user.Status)
	}

	return s.IssueToken(user)
}

// IssueToken signs a token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     time.Now().Add(s.tokenDurat).Unix(),
		"iat":     time.Now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// CurrentUser loads the caller from the store so session state always comes from one place.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ListUsers returns accounts in the given approval state.
func (s *AuthService) ListUsers(ctx context.Context, status models.UserStatus) ([]models.User, error) {
	return s.userRepo.ListByStatus(ctx, status)
}

// ReviewUser approves or rejects a customer account and notifies the applicant.
// Approved customers can be rejected later, which revokes their access.
// Staff accounts are not reviewed here.
func (s *AuthService) ReviewUser(ctx context.Context, id string, approve bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleCustomer {
		return nil, fmt.Errorf("user %s is %s: %w", id, user.Role, ErrForbidden)
	}

	status := models.UserStatusRejected
	if approve {
		status = models.UserStatusApproved
	}
	if !user.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: account %s -> %s", ErrInvalidStatusTransition, user.Status, status)
	}
	if err := s.userRepo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to review user %s: %w", id, err)
	}
	user.Status = status

	s.notifier.AccountReviewed(user)
	return user, nil
}
