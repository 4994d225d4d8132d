package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"github.com/haldorsen/norn/internal/domain"
)

// StripeProvider creates Stripe payment intents for invoices.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a provider using the given secret key.
func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil)}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, inv *domain.Invoice) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(inv.BalanceCents),
		Currency: stripe.String(strings.ToLower(inv.Currency)),
	}
	params.Context = ctx
	params.AddMetadata("invoice_id", inv.ID.String())
	params.AddMetadata("invoice_number", inv.InvoiceNumber)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent: %w", err)
	}

	return &PaymentIntent{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}
