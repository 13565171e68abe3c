package models

import "time"

// Client is a prospect or customer company tracked by a sales representative.
type Client struct {
	ID               string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RepresentativeID string    `json:"representative_id" gorm:"uniqueIndex:idx_rep_cnpj;type:varchar(36)"`
	CompanyName      string    `json:"company_name" gorm:"type:varchar(200)" validate:"required,min=3,max=200"`
	CNPJ             string    `json:"cnpj" gorm:"uniqueIndex:idx_rep_cnpj;type:varchar(14)" validate:"required,cnpj"`
	Email            string    `json:"email" gorm:"type:varchar(255)" validate:"omitempty,email"`
	Phone            string    `json:"phone" gorm:"type:varchar(20)" validate:"required,br_phone"`
	City             string    `json:"city" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	State            string    `json:"state" gorm:"type:varchar(2)" validate:"omitempty,br_uf"`
	CreatedAt        time.Time `json:"created_at"`
}

