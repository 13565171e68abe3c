package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is an agricultural input sold by volume inside a price band.
type Product struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name             string          `json:"name" validate:"required,min=3,max=100"`
	ActiveIngredient string          `json:"active_ingredient" validate:"omitempty,max=200"`
	Category         string          `json:"category" gorm:"type:varchar(16)" validate:"required,oneof=pesticide fertilizer other"`
	Unit             string          `json:"unit" gorm:"type:varchar(4)" validate:"required,oneof=L kg"`
	MaxPrice         decimal.Decimal `json:"max_price" gorm:"type:numeric(14,2)"` // band ceiling
	MinPrice         decimal.Decimal `json:"min_price" gorm:"type:numeric(14,2)"` // band floor
	TotalVolume      decimal.Decimal `json:"total_volume" gorm:"type:numeric(14,3)"`
	MinVolume        decimal.Decimal `json:"min_volume" gorm:"type:numeric(14,3)"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `json:"-" gorm:"index"`
}
