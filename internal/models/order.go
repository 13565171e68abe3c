package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentBoleto PaymentMethod = "boleto"
	PaymentPIX    PaymentMethod = "pix"
	PaymentTED    PaymentMethod = "ted"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentBoleto, PaymentPIX, PaymentTED:
		return true
	}
	return false
}

// LogisticsOption is how the goods leave the warehouse. Only pickup is offered.
type LogisticsOption string

const LogisticsPickup LogisticsOption = "pickup"

// OrderStatus tracks an order after checkout.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReadyForPickup},
	OrderStatusReadyForPickup: {OrderStatusCompleted},
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem represents a single line within an order.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey"`
	OrderID   string          `json:"-" gorm:"index;type:varchar(36)"`
	ProductID string          `json:"product_id" gorm:"type:varchar(36)"`
	Volume    decimal.Decimal `json:"volume" gorm:"type:numeric(14,3)"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:numeric(14,2)"` // Price at the time of order
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:numeric(14,2)"`
}

// Order represents a customer order.
type Order struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber   string          `json:"order_number" gorm:"uniqueIndex;type:varchar(32)"`
	UserID        string          `json:"user_id" gorm:"index;type:varchar(36)"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2)"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"type:varchar(16)"`
	Logistics     LogisticsOption `json:"logistics" gorm:"type:varchar(16)"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(24)"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
