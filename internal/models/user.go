package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is what a user may do in the marketplace.
type Role string

const (
	RoleCustomer       Role = "customer"
	RoleRepresentative Role = "representative"
	RoleAdmin          Role = "admin"
)

// UserStatus is the registration approval state.
type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

var userTransitions = map[UserStatus][]UserStatus{
	UserStatusPending:  {UserStatusApproved, UserStatusRejected},
	UserStatusApproved: {UserStatusRejected},
	UserStatusRejected: {UserStatusApproved},
}

// CanTransitionTo reports whether an account in status s may be reviewed into next.
func (s UserStatus) CanTransitionTo(next UserStatus) bool {
	for _, allowed := range userTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// User represents a company account in the marketplace.
type User struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Email            string         `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password         string         `json:"-" gorm:"type:varchar(255)"`
	CompanyName      string         `json:"company_name" gorm:"type:varchar(200)" validate:"required,min=3,max=200"`
	Document         string         `json:"document" gorm:"uniqueIndex;type:varchar(14)" validate:"required,cnpj"`
	Phone            string         `json:"phone" gorm:"type:varchar(20)" validate:"required,br_phone"`
	Role             Role           `json:"role" gorm:"type:varchar(16)"`
	Status           UserStatus     `json:"status" gorm:"index;type:varchar(16)"`
	RepresentativeID *string        `json:"representative_id,omitempty" gorm:"type:varchar(36)"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}
