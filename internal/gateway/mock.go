package gateway

import (
	"context"
	"fmt"

	"github.com/haldorsen/norn/internal/domain"
)

// MockProvider fabricates payment intent references. Used in development
// and when no gateway credentials are configured.
type MockProvider struct{}

// NewMockProvider creates a MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) CreatePaymentIntent(ctx context.Context, inv *domain.Invoice) (*PaymentIntent, error) {
	return &PaymentIntent{
		Reference: fmt.Sprintf("pi_mock_%s", inv.ID),
	}, nil
}
