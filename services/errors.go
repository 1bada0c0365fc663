package services

import "errors"

var (
	// ErrNotFound is returned when a referenced table, product or order is absent.
	ErrNotFound = errors.New("not found")

	ErrInvalidStatus       = errors.New("invalid order status")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidNotification = errors.New("notification type must be waiter or bill")
	ErrInvalidFilter       = errors.New("invalid order filter")
)
