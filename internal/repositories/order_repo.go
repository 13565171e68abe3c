package repositories

import (
	"context"

	"agromarket/internal/models"
)

// OrderRepository defines the interface for order data access.
// Orders are never deleted.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*models.Order, error)
	// Create inserts the order and its items. A taken order number yields
	// ErrDuplicateOrderNumber and leaves nothing behind.
	Create(ctx context.Context, order *models.Order) error
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error
}

// OrderNumberAllocator hands out human readable order numbers. Uniqueness is
// only guaranteed by the orders table, not by the allocator.
type OrderNumberAllocator interface {
	Next(ctx context.Context) (string, error)
}

// OrderDocumentRepository stores pointers to generated payment documents.
type OrderDocumentRepository interface {
	Create(ctx context.Context, doc *models.OrderDocument) error
	GetByID(ctx context.Context, id string) (*models.OrderDocument, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.OrderDocument, error)
}
