package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind is the stable machine-readable category of a failure.
type Kind string

const (
	KindEmptyCart                 Kind = "EmptyCart"
	KindInvalidAddress            Kind = "InvalidAddress"
	KindInsufficientStock         Kind = "InsufficientStock"
	KindProductUnavailable        Kind = "ProductUnavailable"
	KindProductNotFound           Kind = "ProductNotFound"
	KindCartLineNotFound          Kind = "CartLineNotFound"
	KindInvalidQuantity           Kind = "InvalidQuantity"
	KindInvalidRequest            Kind = "InvalidRequest"
	KindPaymentVerificationFailed Kind = "PaymentVerificationFailed"
	KindDuplicatePayment          Kind = "DuplicatePayment"
	KindGatewayUnavailable        Kind = "GatewayUnavailable"
	KindInvalidStateTransition    Kind = "InvalidStateTransition"
	KindOrderNotFound             Kind = "OrderNotFound"
	KindUnauthorized              Kind = "Unauthorized"
	KindForbidden                 Kind = "Forbidden"
	KindRateLimited               Kind = "RateLimited"
	KindInternal                  Kind = "Internal"
)

var statusByKind = map[Kind]int{
	KindEmptyCart:                 http.StatusBadRequest,
	KindInvalidAddress:            http.StatusBadRequest,
	KindInsufficientStock:         http.StatusConflict,
	KindProductUnavailable:        http.StatusConflict,
	KindProductNotFound:           http.StatusNotFound,
	KindCartLineNotFound:          http.StatusNotFound,
	KindInvalidQuantity:           http.StatusBadRequest,
	KindInvalidRequest:            http.StatusBadRequest,
	KindPaymentVerificationFailed: http.StatusBadRequest,
	KindDuplicatePayment:          http.StatusConflict,
	KindGatewayUnavailable:        http.StatusBadGateway,
	KindInvalidStateTransition:    http.StatusConflict,
	KindOrderNotFound:             http.StatusNotFound,
	KindUnauthorized:              http.StatusUnauthorized,
	KindForbidden:                 http.StatusForbidden,
	KindRateLimited:               http.StatusTooManyRequests,
	KindInternal:                  http.StatusInternalServerError,
}

// StatusFor returns the HTTP status a kind maps to.
func StatusFor(kind Kind) int {
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Error represents an application error
type Error struct {
	Code      int    `json:"-"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"error"`
	ProductID string `json:"product_id,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{
		Code:    StatusFor(kind),
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Newf is New with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...), nil)
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// InsufficientStock names the product whose reservation failed.
func InsufficientStock(productID, productName string) *Error {
	e := Newf(KindInsufficientStock, "Insufficient stock for %s", productName)
	e.ProductID = productID
	return e
}

// ProductUnavailable names a product that is missing or inactive.
func ProductUnavailable(productID, productName string) *Error {
	if productName == "" {
		productName = productID
	}
	e := Newf(KindProductUnavailable, "Product %s is no longer available", productName)
	e.ProductID = productID
	return e
}

// KindOf extracts the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// From returns err as an *Error, wrapping anything else as Internal.
func From(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Respond writes err as the standard failure body. Internal causes are never echoed.
func Respond(c *gin.Context, err error) {
	appErr := From(err)
	if appErr.Kind == KindInternal {
		_ = c.Error(err)
		c.AbortWithStatusJSON(appErr.Code, gin.H{"error": "Internal server error", "kind": KindInternal})
		return
	}
	c.AbortWithStatusJSON(appErr.Code, appErr)
}

// ErrorMiddleware renders the last error attached to the context when the
// handler did not write a response itself.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			Respond(c, c.Errors.Last().Err)
		}
	}
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyCart                 = New(KindEmptyCart, "Cart is empty", nil)
	ErrInvalidAddress            = New(KindInvalidAddress, "Invalid shipping address", nil)
	ErrInsufficientStock         = New(KindInsufficientStock, "Insufficient stock", nil)
	ErrProductUnavailable        = New(KindProductUnavailable, "Product unavailable", nil)
	ErrProductNotFound           = New(KindProductNotFound, "Product not found", nil)
	ErrCartLineNotFound          = New(KindCartLineNotFound, "Cart item not found", nil)
	ErrInvalidQuantity           = New(KindInvalidQuantity, "Quantity must be at least 1", nil)
	ErrPaymentVerificationFailed = New(KindPaymentVerificationFailed, "Payment verification failed", nil)
	ErrDuplicatePayment          = New(KindDuplicatePayment, "Payment has already been processed", nil)
	ErrGatewayUnavailable        = New(KindGatewayUnavailable, "Payment gateway unavailable", nil)
	ErrInvalidStateTransition    = New(KindInvalidStateTransition, "Invalid order status transition", nil)
	ErrOrderNotFound             = New(KindOrderNotFound, "Order not found", nil)
	ErrUnauthorized              = New(KindUnauthorized, "Unauthorized", nil)
	ErrForbidden                 = New(KindForbidden, "Forbidden", nil)
	ErrRateLimited               = New(KindRateLimited, "Rate limit exceeded. Please try again later.", nil)
)
