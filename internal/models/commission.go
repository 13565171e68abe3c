package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionStatus tracks payout of a representative commission.
type CommissionStatus string

const (
	CommissionPending CommissionStatus = "pending"
	CommissionPaid    CommissionStatus = "paid"
)

// Commission is what a representative earns on an order placed by one of their customers.
type Commission struct {
	ID               string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RepresentativeID string           `json:"representative_id" gorm:"index;type:varchar(36)"`
	OrderID          string           `json:"order_id" gorm:"uniqueIndex;type:varchar(36)"`
	Rate             decimal.Decimal  `json:"rate" gorm:"type:numeric(6,4)"`
	Amount           decimal.Decimal  `json:"amount" gorm:"type:numeric(14,2)"`
	Status           CommissionStatus `json:"status" gorm:"type:varchar(16)"`
	CreatedAt        time.Time        `json:"created_at"`
}
