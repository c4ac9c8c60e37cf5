package providers

import (
	"context"
	"errors"
)

var (
	// ErrGatewayUnavailable covers transport errors, timeouts and non-2xx replies.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrSignatureMismatch means the callback was not signed by the gateway.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)

// PaymentIntent is the provider-side order the client pays against.
type PaymentIntent struct {
	ProviderOrderID string
	AmountMinor     int64
	Currency        string
	Receipt         string
	Status          string
}

// PaymentDetails is what the provider reports about a captured payment.
type PaymentDetails struct {
	ProviderPaymentID string
	Status            string
	Method            string
	// AmountMinor is zero when the provider did not report it.
	AmountMinor int64
}

// PaymentGateway defines what checkout needs from the payment provider.
type PaymentGateway interface {
	// CreateIntent registers amountMinor (smallest currency unit) with the provider.
	CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*PaymentIntent, error)

	// VerifySignature returns nil only for a callback the provider really signed.
	VerifySignature(ctx context.Context, providerOrderID, providerPaymentID, signature string) error

	// FetchPayment looks up a payment; used for enrichment only.
	FetchPayment(ctx context.Context, providerPaymentID string) (*PaymentDetails, error)

	// KeyID is the public key the client needs to open the checkout widget.
	KeyID() string
}
