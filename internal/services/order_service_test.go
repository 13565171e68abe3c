package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	orders      *MockOrderRepository
	products    *MockProductRepository
	users       *MockUserRepository
	commissions *MockCommissionRepository
	numbers     *sequenceAllocator
	docs        *memDocRepo
	renderer    *stubRenderer
	store       *mapStore
	publisher   *recordingPublisher
	notifier    *services.NotificationService
	sleeps      []time.Duration
	mu          sync.Mutex
	svc         *services.OrderService
}

func testProduct() *models.Product {
	return &models.Product{
		ID:          "prod-1",
		Name:        "Glifosato 480",
		Category:    "pesticide",
		Unit:        "L",
		MaxPrice:    dec("58.90"),
		MinPrice:    dec("42.50"),
		TotalVolume: dec("20000"),
		MinVolume:   dec("1000"),
		Active:      true,
	}
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		orders:      new(MockOrderRepository),
		products:    new(MockProductRepository),
		users:       new(MockUserRepository),
		commissions: new(MockCommissionRepository),
		numbers:     &sequenceAllocator{},
		docs:        &memDocRepo{},
		renderer:    &stubRenderer{},
		store:       newMapStore(),
		publisher:   &recordingPublisher{},
	}
	f.notifier = services.NewNotificationService(f.publisher)
	policy := services.DefaultOrderRetry()
	policy.Sleep = func(ctx context.Context, d time.Duration) error {
		f.mu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.mu.Unlock()
		return nil
	}
	f.svc = services.NewOrderService(services.OrderServiceDeps{
		Orders:            f.orders,
		Products:          f.products,
		Users:             f.users,
		Numbers:           f.numbers,
		Documents:         f.docs,
		Commissions:       f.commissions,
		Renderer:          f.renderer,
		Store:             f.store,
		Notifier:          f.notifier,
		Retry:             policy,
		CommissionMaxRate: dec("0.05"),
		CommissionMinRate: dec("0.01"),
	})
	return f
}

func checkout() services.CheckoutRequest {
	return services.CheckoutRequest{
		Items:         []services.CheckoutItem{{ProductID: "prod-1", Volume: dec("10000")}},
		PaymentMethod: models.PaymentBoleto,
	}
}

func duplicateErr(number string) error {
	return fmt.Errorf("order %s: %w", number, repositories.ErrDuplicateOrderNumber)
}

func TestOrderService_CreateOrder_RetriesOnDuplicateNumber(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(duplicateErr("ORD-20261019-0001")).Once()
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(duplicateErr("ORD-20261019-0002")).Once()
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", Email: "compras@fazenda.com.br", Phone: "65999887766"}, nil)

	result, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	require.NoError(t, err)
	f.notifier.Wait()

	f.orders.AssertNumberOfCalls(t, "Create", 3)
	assert.Equal(t, "ORD-20261019-0003", result.Order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, result.Order.Status)
	assert.Equal(t, models.LogisticsPickup, result.Order.Logistics)
	assert.Equal(t, "507000", result.Order.TotalAmount.String())
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, "50.7", result.Order.Items[0].UnitPrice.String())
	assert.Empty(t, result.Warnings)
	require.NotNil(t, result.Document)
	assert.Equal(t, models.DocumentBoleto, result.Document.Type)

	require.Len(t, f.sleeps, 2)
	for _, d := range f.sleeps {
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.Less(t, d, 500*time.Millisecond)
	}

	stored, err := f.store.Get(result.Document.StorageURL)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-stub", string(stored))

	assert.Len(t, f.publisher.byKey(services.RouteOrderCreated), 1)
	assert.Len(t, f.publisher.byKey(services.RouteEmail), 1)
	assert.Len(t, f.publisher.byKey(services.RouteWhatsApp), 1)
}

func TestOrderService_CreateOrder_OtherErrorsAreNotRetried(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(errors.New("connection reset")).Once()

	result, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.NotErrorIs(t, err, repositories.ErrDuplicateOrderNumber)
	assert.Contains(t, err.Error(), "connection reset")
	f.orders.AssertNumberOfCalls(t, "Create", 1)
	assert.Empty(t, f.sleeps)
	assert.Zero(t, f.renderer.calls)
}

func TestOrderService_CreateOrder_GivesUpAfterThreeAttempts(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(duplicateErr("taken"))

	_, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	require.Error(t, err)
	assert.ErrorIs(t, err, repositories.ErrDuplicateOrderNumber)
	f.orders.AssertNumberOfCalls(t, "Create", 3)
	assert.Equal(t, 3, f.numbers.calls)
	assert.Empty(t, f.publisher.msgs)
}

func TestOrderService_CreateOrder_DocumentFailureIsAWarning(t *testing.T) {
	f := newOrderFixture()
	f.renderer.err = errors.New("font missing")
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(nil, repositories.ErrNotFound)

	result, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	require.NoError(t, err)
	f.notifier.Wait()

	assert.Nil(t, result.Document)
	assert.Equal(t, []string{services.WarningDocumentFailed}, result.Warnings)
	assert.NotEmpty(t, result.Order.OrderNumber)
	assert.Len(t, f.publisher.byKey(services.RouteOrderCreated), 1)
}

func TestOrderService_CreateOrder_RejectsInvalidCarts(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.products.On("GetByID", ctx, "missing").Return(nil, repositories.ErrNotFound)

	cases := map[string]services.CheckoutRequest{
		"no items":        {PaymentMethod: models.PaymentPIX},
		"bad method":      {Items: checkout().Items, PaymentMethod: "cash"},
		"delivery":        {Items: checkout().Items, PaymentMethod: models.PaymentPIX, Logistics: "delivery"},
		"below minimum":   {Items: []services.CheckoutItem{{ProductID: "prod-1", Volume: dec("999")}}, PaymentMethod: models.PaymentPIX},
		"unknown product": {Items: []services.CheckoutItem{{ProductID: "missing", Volume: dec("1000")}}, PaymentMethod: models.PaymentPIX},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(ctx, "user-1", req)
			assert.ErrorIs(t, err, services.ErrInvalidCheckout)
		})
	}
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_RecordsCommission(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	rep := "rep-1"

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", RepresentativeID: &rep}, nil)
	f.commissions.On("Create", ctx, mock.MatchedBy(func(c *models.Commission) bool {
		// 50.70 sits at half the band, so the rate is halfway between 1% and 5%.
		return c.RepresentativeID == rep && c.Rate.String() == "0.03" && c.Amount.String() == "15210"
	})).Return(nil).Once()

	_, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	require.NoError(t, err)
	f.notifier.Wait()
	f.commissions.AssertExpectations(t)
}

func TestOrderService_GetOrder_OwnerOrAdmin(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	order := &models.Order{ID: "order-1", UserID: "user-1"}
	f.orders.On("GetByID", ctx, "order-1").Return(order, nil)

	got, err := f.svc.GetOrder(ctx, "order-1", services.Requester{UserID: "user-1", Role: models.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, order, got)

	_, err = f.svc.GetOrder(ctx, "order-1", services.Requester{UserID: "user-2", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, services.ErrForbidden)

	_, err = f.svc.GetOrder(ctx, "order-1", services.Requester{UserID: "admin-1", Role: models.RoleAdmin})
	assert.NoError(t, err)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	f.orders.On("GetByID", ctx, "order-1").Return(&models.Order{ID: "order-1", OrderNumber: "ORD-20261019-0001", UserID: "user-1", Status: models.OrderStatusPending}, nil)
	f.orders.On("UpdateStatus", ctx, "order-1", models.OrderStatusPaid).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(&models.User{ID: "user-1", Email: "a@b.com"}, nil)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-1", models.OrderStatusPaid)
	require.NoError(t, err)
	f.notifier.Wait()
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Len(t, f.publisher.byKey(services.RouteOrderStatus), 1)

	_, err = f.svc.UpdateOrderStatus(ctx, "order-1", models.OrderStatusCompleted)
	assert.ErrorIs(t, err, services.ErrInvalidStatusTransition)
	f.orders.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestOrderService_RegenerateAndOpenDocument(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	owner := services.Requester{UserID: "user-1", Role: models.RoleCustomer}
	order := &models.Order{
		ID: "order-1", OrderNumber: "ORD-20261019-0001", UserID: "user-1",
		PaymentMethod: models.PaymentBoleto,
		Items:         []models.OrderItem{{ProductID: "prod-1", Volume: dec("1000")}},
	}
	f.orders.On("GetByID", ctx, "order-1").Return(order, nil)
	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)

	doc, created, err := f.svc.RegenerateDocument(ctx, "order-1", owner)
	require.NoError(t, err)
	assert.True(t, created)

	docs, err := f.svc.ListDocuments(ctx, "order-1", owner)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got, body, err := f.svc.OpenDocument(ctx, "order-1", doc.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "%PDF-stub", string(body))

	_, _, err = f.svc.OpenDocument(ctx, "order-1", doc.ID, services.Requester{UserID: "someone-else"})
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestOrderService_RegenerateDocument_ReturnsExisting(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	owner := services.Requester{UserID: "user-1", Role: models.RoleCustomer}
	order := &models.Order{
		ID: "order-1", OrderNumber: "ORD-20261019-0001", UserID: "user-1",
		PaymentMethod: models.PaymentBoleto,
		Items:         []models.OrderItem{{ProductID: "prod-1", Volume: dec("1000")}},
	}
	f.orders.On("GetByID", ctx, "order-1").Return(order, nil)
	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)

	first, created, err := f.svc.RegenerateDocument(ctx, "order-1", owner)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.RegenerateDocument(ctx, "order-1", owner)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.renderer.calls)

	docs, err := f.svc.ListDocuments(ctx, "order-1", owner)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// A lost file is rendered again under the same row and key.
	require.NoError(t, f.store.Delete(first.StorageURL))
	third, created, err := f.svc.RegenerateDocument(ctx, "order-1", owner)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, 2, f.renderer.calls)

	docs, _ = f.svc.ListDocuments(ctx, "order-1", owner)
	assert.Len(t, docs, 1)
	_, body, err := f.svc.OpenDocument(ctx, "order-1", first.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-stub", string(body))
}

func TestOrderService_CreateOrder_RemovesFileWhenDocumentRowFails(t *testing.T) {
	f := newOrderFixture()
	f.docs.err = errors.New("disk full")
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(testProduct(), nil)
	f.orders.On("Create", ctx, mock.AnythingOfType("*models.Order")).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(nil, repositories.ErrNotFound)

	result, err := f.svc.CreateOrder(ctx, "user-1", checkout())
	require.NoError(t, err)
	f.notifier.Wait()

	assert.Equal(t, []string{services.WarningDocumentFailed}, result.Warnings)
	assert.Equal(t, 1, f.renderer.calls)
	assert.Empty(t, f.store.data)
}

func TestOrderService_UpdateOrderStatus_MissingCustomerStillUpdates(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	f.orders.On("GetByID", ctx, "order-1").Return(&models.Order{ID: "order-1", OrderNumber: "ORD-20261019-0001", UserID: "user-1", Status: models.OrderStatusPending}, nil)
	f.orders.On("UpdateStatus", ctx, "order-1", models.OrderStatusCancelled).Return(nil).Once()
	f.users.On("GetByID", ctx, "user-1").Return(nil, repositories.ErrNotFound)

	order, err := f.svc.UpdateOrderStatus(ctx, "order-1", models.OrderStatusCancelled)
	require.NoError(t, err)
	f.notifier.Wait()

	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Len(t, f.publisher.byKey(services.RouteOrderStatus), 1)
	assert.Empty(t, f.publisher.byKey(services.RouteEmail))
	assert.Empty(t, f.publisher.byKey(services.RouteWhatsApp))
}
