package service

import (
	"math"

	"github.com/haldorsen/norn/internal/domain"
)

// Amounts are the derived monetary fields of an invoice.
type Amounts struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	BalanceCents  int64
}

// lineTotalCents derives a line's total from quantity and unit price.
// Rounding happens once, at the line boundary.
func lineTotalCents(quantity float64, unitPriceCents int64) int64 {
	return int64(math.Round(quantity * float64(unitPriceCents)))
}

// CalculateAmounts recomputes every derived monetary field from the
// invoice's parts. Line totals are normalized in place so stored items
// always agree with the stated amounts.
//
//	subtotal = sum(line totals)
//	tax      = sum(line taxes) + sum(invoice taxes)
//	total    = subtotal - discount + tax + shipping
//	balance  = total - paid
func CalculateAmounts(items []domain.LineItem, invoiceTaxes []domain.TaxLine, discountCents, shippingCents, paidCents int64) Amounts {
	var a Amounts

	for i := range items {
		items[i].TotalCents = lineTotalCents(items[i].Quantity, items[i].UnitPriceCents)
		a.SubtotalCents += items[i].TotalCents
		for _, tax := range items[i].Taxes {
			a.TaxCents += tax.AmountCents
		}
	}
	for _, tax := range invoiceTaxes {
		a.TaxCents += tax.AmountCents
	}

	a.TotalCents = a.SubtotalCents - discountCents + a.TaxCents + shippingCents
	a.BalanceCents = a.TotalCents - paidCents
	return a
}

// applyAmounts writes recomputed amounts back onto an invoice.
func applyAmounts(inv *domain.Invoice) {
	a := CalculateAmounts(inv.Items, inv.Taxes, inv.DiscountCents, inv.ShippingCents, inv.PaidCents)
	inv.SubtotalCents = a.SubtotalCents
	inv.TaxCents = a.TaxCents
	inv.TotalCents = a.TotalCents
	inv.BalanceCents = a.BalanceCents
}
