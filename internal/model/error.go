package model

import "errors"

var (
	ErrValidation      = errors.New("validation error") // 400
	ErrOrderNotFound   = errors.New("repair order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrSaleNotFound    = errors.New("sale not found")

	ErrIllegalTransition        = errors.New("illegal state transition")
	ErrEmptyQuotation           = errors.New("quotation has no lines")
	ErrQuotationAlreadyResolved = errors.New("quotation already resolved")
	ErrPaymentRequired          = errors.New("payment required before delivery")
	ErrAmountMismatch           = errors.New("payment amount does not match cost total")

	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidLine       = errors.New("invalid cart line")
)
