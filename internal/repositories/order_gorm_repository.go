package repositories

import (
	"context"
	"fmt"
	"time"

	"agromarket/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// GetAll returns every order, newest first.
func (r *GORMOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// ListByUser returns the orders placed by userID, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).
		Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

func (r *GORMOrderRepository) getBy(ctx context.Context, column, value string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, column+" = ?", value).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("order with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order by %s %s: %w", column, value, err)
	}
	return &order, nil
}

// GetByID returns an order with its items.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getBy(ctx, "id", id)
}

// GetByOrderNumber returns an order with its items.
func (r *GORMOrderRepository) GetByOrderNumber(ctx context.Context, number string) (*models.Order, error) {
	return r.getBy(ctx, "order_number", number)
}

// Create inserts the order and its items in one transaction.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("order %s: %w", order.OrderNumber, ErrDuplicateOrderNumber)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateStatus updates the status of an order.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	return nil
}

// GORMOrderNumberAllocator derives the next number from today's order count.
// Two callers racing on the same day receive the same number; the unique
// index on orders.order_number decides who keeps it.
type GORMOrderNumberAllocator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGORMOrderNumberAllocator creates an allocator backed by the orders table.
func NewGORMOrderNumberAllocator(db *gorm.DB) *GORMOrderNumberAllocator {
	return &GORMOrderNumberAllocator{db: db, now: time.Now}
}

// Next returns ORD-<yyyymmdd>-<seq>.
func (a *GORMOrderNumberAllocator) Next(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("ORD-%s-", a.now().UTC().Format("20060102"))
	var count int64
	if err := a.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

// GORMOrderDocumentRepository is a GORM implementation of OrderDocumentRepository.
type GORMOrderDocumentRepository struct {
	db *gorm.DB
}

// NewGORMOrderDocumentRepository creates a new instance of GORMOrderDocumentRepository.
func NewGORMOrderDocumentRepository(db *gorm.DB) *GORMOrderDocumentRepository {
	return &GORMOrderDocumentRepository{db: db}
}

func (r *GORMOrderDocumentRepository) Create(ctx context.Context, doc *models.OrderDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create order document: %w", err)
	}
	return nil
}

func (r *GORMOrderDocumentRepository) GetByID(ctx context.Context, id string) (*models.OrderDocument, error) {
	var doc models.OrderDocument
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("order document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order document %s: %w", id, err)
	}
	return &doc, nil
}

func (r *GORMOrderDocumentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.OrderDocument, error) {
	var docs []models.OrderDocument
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents for order %s: %w", orderID, err)
	}
	return docs, nil
}
