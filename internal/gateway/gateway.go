// Package gateway is the boundary to the external payment gateway.
// Invoices can register a payment intent when issued; actual collection
// flows back in through recorded payments.
package gateway

import (
	"context"

	"github.com/haldorsen/norn/internal/domain"
)

// PaymentIntent is the gateway's handle for collecting an invoice.
type PaymentIntent struct {
	Reference    string
	ClientSecret string
}

// Provider creates payment intents for issued invoices.
type Provider interface {
	CreatePaymentIntent(ctx context.Context, inv *domain.Invoice) (*PaymentIntent, error)
}
