package checkout

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal       decimal.Decimal
	PromoDiscount  decimal.Decimal
	PointsDiscount decimal.Decimal
	TotalDiscount  decimal.Decimal
	GrandTotal     decimal.Decimal
	AmountTendered decimal.Decimal
	// Change is negative while the payment is short.
	Change decimal.Decimal
}

// CalculateTotals is a pure projection; nothing is clamped.
func CalculateTotals(subtotal, promoDiscount, pointsDiscount, tendered decimal.Decimal) Totals {
	discount := promoDiscount.Add(pointsDiscount)
	grand := subtotal.Sub(discount)
	return Totals{
		Subtotal:       subtotal,
		PromoDiscount:  promoDiscount,
		PointsDiscount: pointsDiscount,
		TotalDiscount:  discount,
		GrandTotal:     grand,
		AmountTendered: tendered,
		Change:         tendered.Sub(grand),
	}
}

// TotalsCalculator reads the current state of the stores on every call.
type TotalsCalculator struct {
	Cart     *CartStore
	Promo    *PromoLedger
	Loyalty  *LoyaltyRedeemer
	Payments *PaymentBook
}

func (t TotalsCalculator) Totals() Totals {
	tendered := decimal.Zero
	if t.Payments != nil {
		tendered = t.Payments.Tendered()
	}
	promo, points := decimal.Zero, decimal.Zero
	if t.Promo != nil {
		promo = t.Promo.Discount()
	}
	if t.Loyalty != nil {
		points = t.Loyalty.Discount()
	}
	return CalculateTotals(t.Cart.Subtotal(), promo, points, tendered)
}
