package services

import "errors"

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountNotApproved      = errors.New("account not approved")
	ErrAlreadyRegistered       = errors.New("already registered")
	ErrBotSuspected            = errors.New("request looks automated")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidCheckout         = errors.New("invalid checkout")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrInvalidImport           = errors.New("invalid import file")
	ErrInvalidProduct          = errors.New("invalid product")
	ErrNoPublisher             = errors.New("message broker not configured")
	ErrForwardFailed           = errors.New("could not forward message")
)
