package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haldorsen/norn/internal/domain"
)

func TestCalculateAmounts(t *testing.T) {
	tests := []struct {
		name          string
		items         []domain.LineItem
		taxes         []domain.TaxLine
		discountCents int64
		shippingCents int64
		paidCents     int64
		want          Amounts
	}{
		{
			name: "single item no extras",
			items: []domain.LineItem{
				{Quantity: 1, UnitPriceCents: 10000},
			},
			want: Amounts{SubtotalCents: 10000, TotalCents: 10000, BalanceCents: 10000},
		},
		{
			name: "fractional quantity rounds at line boundary",
			items: []domain.LineItem{
				{Quantity: 1.5, UnitPriceCents: 333}, // 499.5 -> 500
			},
			want: Amounts{SubtotalCents: 500, TotalCents: 500, BalanceCents: 500},
		},
		{
			name: "discount tax and shipping",
			items: []domain.LineItem{
				{Quantity: 2, UnitPriceCents: 5000},
				{Quantity: 1, UnitPriceCents: 2500, Taxes: []domain.TaxLine{{AmountCents: 250}}},
			},
			taxes:         []domain.TaxLine{{AmountCents: 1000}},
			discountCents: 500,
			shippingCents: 750,
			// 12500 - 500 + 1250 + 750
			want: Amounts{SubtotalCents: 12500, TaxCents: 1250, TotalCents: 14000, BalanceCents: 14000},
		},
		{
			name: "partial payment leaves balance",
			items: []domain.LineItem{
				{Quantity: 1, UnitPriceCents: 10000},
			},
			paidCents: 4000,
			want:      Amounts{SubtotalCents: 10000, TotalCents: 10000, BalanceCents: 6000},
		},
		{
			name: "no items",
			want: Amounts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAmounts(tt.items, tt.taxes, tt.discountCents, tt.shippingCents, tt.paidCents)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateAmountsNormalizesLineTotals(t *testing.T) {
	items := []domain.LineItem{
		{Quantity: 3, UnitPriceCents: 1999, TotalCents: 42}, // stale total
	}
	CalculateAmounts(items, nil, 0, 0, 0)
	assert.Equal(t, int64(5997), items[0].TotalCents)
}
