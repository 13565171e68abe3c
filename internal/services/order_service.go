package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"time"

	"agromarket/internal/documents"
	"agromarket/internal/models"
	"agromarket/internal/pricing"
	"agromarket/internal/repositories"
	"agromarket/internal/retry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WarningDocumentFailed is returned when the order exists but its payment document does not.
const WarningDocumentFailed = "payment document could not be generated; it can be requested again from the order page"

// DocumentRenderer is implemented by *documents.Generator.
type DocumentRenderer interface {
	Generate(order *models.Order, productNames map[string]string) (*documents.Document, error)
}

// DocumentStore is implemented by *storage.Store.
type DocumentStore interface {
	Put(key string, data []byte) (string, error)
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// CheckoutItem is one product line chosen at checkout.
type CheckoutItem struct {
	ProductID string          `json:"product_id" validate:"required"`
	Volume    decimal.Decimal `json:"volume"`
}

// CheckoutRequest is the finalized cart.
type CheckoutRequest struct {
	Items         []CheckoutItem         `json:"items" validate:"required,min=1,dive"`
	PaymentMethod models.PaymentMethod   `json:"payment_method" validate:"required"`
	Logistics     models.LogisticsOption `json:"logistics"`
}

// CheckoutResult is returned to the customer once the order exists.
type CheckoutResult struct {
	Order    *models.Order         `json:"order"`
	Document *models.OrderDocument `json:"document,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
}

// OrderServiceDeps wires OrderService.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Numbers     repositories.OrderNumberAllocator
	Documents   repositories.OrderDocumentRepository
	Commissions repositories.CommissionRepository
	Renderer    DocumentRenderer
	Store       DocumentStore
	Notifier    *NotificationService

	// Retry governs order-number collisions. Retryable is set by the service.
	Retry retry.Policy

	CommissionMaxRate decimal.Decimal
	CommissionMinRate decimal.Decimal
}

// OrderService handles checkout and order lifecycle.
type OrderService struct {
	deps OrderServiceDeps
}

// DefaultOrderRetry allows three attempts 200ms plus up to 300ms apart.
func DefaultOrderRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, Jitter: 300 * time.Millisecond}
}

// NewOrderService creates a new OrderService.
func NewOrderService(deps OrderServiceDeps) *OrderService {
	if deps.Notifier == nil {
		deps.Notifier = NewNotificationService(nil)
	}
	if deps.Retry.MaxAttempts == 0 {
		deps.Retry = DefaultOrderRetry()
	}
	deps.Retry.Retryable = func(err error) bool {
		return errors.Is(err, repositories.ErrDuplicateOrderNumber)
	}
	return &OrderService{deps: deps}
}

// CreateOrder prices the cart, inserts the order under a fresh number and
// attaches the payment document. Only the insert is on the critical path.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, req CheckoutRequest) (*CheckoutResult, error) {
	if req.Logistics == "" {
		req.Logistics = models.LogisticsPickup
	}
	if req.Logistics != models.LogisticsPickup {
		return nil, fmt.Errorf("%w: logistics option %q is not offered", ErrInvalidCheckout, req.Logistics)
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: payment method %q is not supported", ErrInvalidCheckout, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidCheckout)
	}

	items, products, total, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		TotalAmount:   total,
		PaymentMethod: req.PaymentMethod,
		Logistics:     req.Logistics,
		Status:        models.OrderStatusPending,
	}

	err = retry.Do(ctx, s.deps.Retry, func(ctx context.Context, attempt int) error {
		number, err := s.deps.Numbers.Next(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		order.Items = cloneItems(items)
		if err := s.deps.Orders.Create(ctx, order); err != nil {
			if errors.Is(err, repositories.ErrDuplicateOrderNumber) {
				log.Printf("Order number %s taken (attempt %d)", number, attempt)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := &CheckoutResult{Order: order}

	doc, err := s.attachDocument(ctx, order, products)
	if err != nil {
		log.Printf("Warning: order %s created without payment document: %v", order.OrderNumber, err)
		result.Warnings = append(result.Warnings, WarningDocumentFailed)
	} else {
		result.Document = doc
	}

	var user *models.User
	if s.deps.Users != nil {
		if user, err = s.deps.Users.GetByID(ctx, userID); err != nil {
			log.Printf("Could not load user %s for order %s: %v", userID, order.OrderNumber, err)
			user = nil
		}
	}
	s.recordCommission(ctx, order, user, products)
	s.deps.Notifier.OrderCreated(order, user)

	return result, nil
}

func cloneItems(items []models.OrderItem) []models.OrderItem {
	out := make([]models.OrderItem, len(items))
	copy(out, items)
	return out
}

func (s *OrderService) priceItems(ctx context.Context, lines []CheckoutItem) ([]models.OrderItem, map[string]*models.Product, decimal.Decimal, error) {
	products := make(map[string]*models.Product, len(lines))
	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			p, err := s.deps.Products.GetByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return nil, nil, decimal.Zero, fmt.Errorf("%w: product %s not found", ErrInvalidCheckout, line.ProductID)
				}
				return nil, nil, decimal.Zero, err
			}
			product = p
			products[p.ID] = p
		}
		if !product.Active {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: product %s is not available", ErrInvalidCheckout, product.Name)
		}

		q, err := BandOf(product).Quote(line.Volume)
		if err != nil {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: %s: %v", ErrInvalidCheckout, product.Name, err)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Volume:    line.Volume,
			UnitPrice: q.UnitPrice,
			LineTotal: q.LineTotal,
		})
		total = total.Add(q.LineTotal)
	}
	return items, products, total.Round(2), nil
}

func productNames(products map[string]*models.Product) map[string]string {
	names := make(map[string]string, len(products))
	for id, p := range products {
		names[id] = p.Name
	}
	return names
}

func (s *OrderService) documentsConfigured() error {
	if s.deps.Renderer == nil || s.deps.Store == nil || s.deps.Documents == nil {
		return fmt.Errorf("document generation is not configured")
	}
	return nil
}

func (s *OrderService) attachDocument(ctx context.Context, order *models.Order, products map[string]*models.Product) (*models.OrderDocument, error) {
	if err := s.documentsConfigured(); err != nil {
		return nil, err
	}
	rendered, err := s.deps.Renderer.Generate(order, productNames(products))
	if err != nil {
		return nil, err
	}
	key, err := s.deps.Store.Put(path.Join("orders", order.ID, rendered.Filename), rendered.Body)
	if err != nil {
		return nil, err
	}
	doc := &models.OrderDocument{
		OrderID:     order.ID,
		Type:        rendered.Type,
		StorageURL:  key,
		ContentType: rendered.ContentType,
	}
	if err := s.deps.Documents.Create(ctx, doc); err != nil {
		if delErr := s.deps.Store.Delete(key); delErr != nil {
			log.Printf("Could not remove orphaned document %s: %v", key, delErr)
		}
		return nil, err
	}
	return doc, nil
}

func (s *OrderService) recordCommission(ctx context.Context, order *models.Order, user *models.User, products map[string]*models.Product) {
	if s.deps.Commissions == nil || user == nil || user.RepresentativeID == nil || *user.RepresentativeID == "" {
		return
	}
	amount := decimal.Zero
	for _, it := range order.Items {
		p := products[it.ProductID]
		if p == nil {
			continue
		}
		rate := pricing.CommissionRate(it.UnitPrice, BandOf(p), s.deps.CommissionMaxRate, s.deps.CommissionMinRate)
		amount = amount.Add(it.LineTotal.Mul(rate))
	}
	rate := decimal.Zero
	if order.TotalAmount.IsPositive() {
		rate = amount.Div(order.TotalAmount).Round(4)
	}
	c := &models.Commission{
		RepresentativeID: *user.RepresentativeID,
		OrderID:          order.ID,
		Rate:             rate,
		Amount:           amount.Round(2),
		Status:           models.CommissionPending,
	}
	if err := s.deps.Commissions.Create(ctx, c); err != nil {
		log.Printf("Warning: commission for order %s not recorded: %v", order.OrderNumber, err)
	}
}

// ListOrders returns every order for admins and the caller's own otherwise.
func (s *OrderService) ListOrders(ctx context.Context, who Requester) ([]models.Order, error) {
	if who.IsAdmin() {
		return s.deps.Orders.GetAll(ctx)
	}
	return s.deps.Orders.ListByUser(ctx, who.UserID)
}

// GetOrder returns an order the caller may see.
func (s *OrderService) GetOrder(ctx context.Context, id string, who Requester) (*models.Order, error) {
	order, err := s.deps.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && order.UserID != who.UserID {
		return nil, fmt.Errorf("order %s: %w", id, ErrForbidden)
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle and tells the customer.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	order, err := s.deps.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, order.Status, status)
	}
	if err := s.deps.Orders.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}
	order.Status = status

	var user *models.User
	if s.deps.Users != nil {
		if user, err = s.deps.Users.GetByID(ctx, order.UserID); err != nil {
			log.Printf("Could not load user %s for order %s: %v", order.UserID, order.OrderNumber, err)
			user = nil
		}
	}
	s.deps.Notifier.OrderStatusChanged(order, user)
	return order, nil
}

// ListDocuments returns the payment documents of an order the caller may see.
func (s *OrderService) ListDocuments(ctx context.Context, orderID string, who Requester) ([]models.OrderDocument, error) {
	if _, err := s.GetOrder(ctx, orderID, who); err != nil {
		return nil, err
	}
	return s.deps.Documents.ListByOrder(ctx, orderID)
}

// OpenDocument returns a stored document and its bytes.
func (s *OrderService) OpenDocument(ctx context.Context, orderID, docID string, who Requester) (*models.OrderDocument, []byte, error) {
	if _, err := s.GetOrder(ctx, orderID, who); err != nil {
		return nil, nil, err
	}
	doc, err := s.deps.Documents.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.OrderID != orderID {
		return nil, nil, fmt.Errorf("document %s: %w", docID, repositories.ErrNotFound)
	}
	data, err := s.deps.Store.Get(doc.StorageURL)
	if err != nil {
		return nil, nil, err
	}
	return doc, data, nil
}

// RegenerateDocument returns the order's payment document, rendering it only
// when none is stored yet. created reports whether anything was rendered.
func (s *OrderService) RegenerateDocument(ctx context.Context, orderID string, who Requester) (doc *models.OrderDocument, created bool, err error) {
	order, err := s.GetOrder(ctx, orderID, who)
	if err != nil {
		return nil, false, err
	}
	if err := s.documentsConfigured(); err != nil {
		return nil, false, err
	}

	existing, err := s.deps.Documents.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list documents for order %s: %w", order.OrderNumber, err)
	}
	want := models.DocumentTypeFor(order.PaymentMethod)
	for i := range existing {
		if existing[i].Type != want {
			continue
		}
		doc = &existing[i]
		if _, err := s.deps.Store.Get(doc.StorageURL); err == nil {
			return doc, false, nil
		}
		break
	}

	products := make(map[string]*models.Product, len(order.Items))
	for _, it := range order.Items {
		if p, err := s.deps.Products.GetByID(ctx, it.ProductID); err == nil {
			products[p.ID] = p
		}
	}

	if doc != nil {
		// The row survived but the file did not: render into the same key.
		rendered, err := s.deps.Renderer.Generate(order, productNames(products))
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate document for order %s: %w", order.OrderNumber, err)
		}
		if _, err := s.deps.Store.Put(doc.StorageURL, rendered.Body); err != nil {
			return nil, false, fmt.Errorf("failed to store document for order %s: %w", order.OrderNumber, err)
		}
		return doc, true, nil
	}

	doc, err = s.attachDocument(ctx, order, products)
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate document for order %s: %w", order.OrderNumber, err)
	}
	return doc, true, nil
}
