package repositories

import (
	"context"

	"agromarket/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByDocument(ctx context.Context, document string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ListByStatus(ctx context.Context, status models.UserStatus) ([]models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}
