// Package apperrors carries the error taxonomy the HTTP surface exposes:
// client-correctable validation errors with machine-readable codes, plus a
// generic fallback for everything unexpected. Transient store conflicts
// are retried where they occur and surface here only as the corresponding
// validation error.
package apperrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Code string

const (
	CodeInsufficientStock    Code = "insufficient_stock"
	CodeEmptyCart            Code = "empty_cart"
	CodeAddressNotFound      Code = "address_not_found"
	CodeProductNotFound      Code = "product_not_found"
	CodeOrderNotPayable      Code = "order_not_payable"
	CodeDuplicateTransaction Code = "duplicate_transaction"
	CodeInvalidTransition    Code = "invalid_transition"
	CodeInvalidInput         Code = "invalid_input"
	CodeNotFound             Code = "not_found"
	CodeForbidden            Code = "forbidden"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	status int
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Status() int { return e.status }

func New(status int, code Code, message string) *Error {
	return &Error{Code: code, Message: message, status: status}
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// StockViolation names one product whose requested quantity exceeds the
// available stock. Stock errors report every violating line, not just the
// first.
type StockViolation struct {
	ProductID uuid.UUID `json:"product_id"`
	Product   string    `json:"product"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func InsufficientStock(violations []StockViolation) *Error {
	return New(http.StatusBadRequest, CodeInsufficientStock, "insufficient stock").
		WithDetails(violations)
}

func EmptyCart() *Error {
	return New(http.StatusBadRequest, CodeEmptyCart, "cart is empty or not found")
}

func AddressNotFound() *Error {
	return New(http.StatusBadRequest, CodeAddressNotFound,
		"address not found or does not belong to user")
}

func ProductNotFound() *Error {
	return New(http.StatusBadRequest, CodeProductNotFound, "product does not exist")
}

func OrderNotPayable() *Error {
	return New(http.StatusBadRequest, CodeOrderNotPayable, "order is not eligible for payment")
}

func DuplicateTransaction(transactionID string) *Error {
	return New(http.StatusBadRequest, CodeDuplicateTransaction,
		"a payment with this transaction id already exists").
		WithDetails(gin.H{"transaction_id": transactionID})
}

func InvalidTransition(from, to string) *Error {
	return New(http.StatusBadRequest, CodeInvalidTransition,
		"transition from "+from+" to "+to+" is not allowed")
}

func InvalidInput(message string) *Error {
	return New(http.StatusBadRequest, CodeInvalidInput, message)
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, what+" not found")
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// Respond writes err as a JSON response. Typed errors keep their status
// and code; anything else is a 500 with no internals leaked.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.status, appErr)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
