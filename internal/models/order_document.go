package models

import "time"

// DocumentType identifies the payment artifact generated for an order.
type DocumentType string

const (
	DocumentBoleto          DocumentType = "boleto"
	DocumentPIXInstructions DocumentType = "pix_instructions"
	DocumentTEDInstructions DocumentType = "ted_instructions"
)

// DocumentTypeFor maps a payment method to the document that explains how to pay it.
func DocumentTypeFor(m PaymentMethod) DocumentType {
	switch m {
	case PaymentPIX:
		return DocumentPIXInstructions
	case PaymentTED:
		return DocumentTEDInstructions
	default:
		return DocumentBoleto
	}
}

// OrderDocument points at a stored payment document.
type OrderDocument struct {
	ID          string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID     string       `json:"order_id" gorm:"index;type:varchar(36)"`
	Type        DocumentType `json:"type" gorm:"type:varchar(24)"`
	StorageURL  string       `json:"storage_url" gorm:"type:varchar(255)"`
	ContentType string       `json:"content_type" gorm:"type:varchar(64)"`
	CreatedAt   time.Time    `json:"created_at"`
}
