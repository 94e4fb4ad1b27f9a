package checkout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PromotionKind string

const (
	PromotionPercentage      PromotionKind = "percentage"
	PromotionFixedAmount     PromotionKind = "fixed_amount"
	PromotionProductDiscount PromotionKind = "diskon_produk"
	PromotionBundling        PromotionKind = "bundling"
	PromotionBuyXGetY        PromotionKind = "buy_x_get_y"
	PromotionUnknown         PromotionKind = "unknown"
)

// PromotionPayload is the kind-specific part of a promotion as described by
// the oracle. The engine never computes a discount from it; it is kept for
// display and for the affected product rule.
type PromotionPayload interface {
	Kind() PromotionKind
}

type PercentagePayload struct {
	Percent     decimal.Decimal
	MaxDiscount decimal.Decimal
}

type FixedAmountPayload struct {
	Amount decimal.Decimal
}

type ProductDiscountPayload struct {
	ProductIDs  []string
	Value       decimal.Decimal
	IsPercent   bool
	MaxDiscount decimal.Decimal
	MinGrams    decimal.Decimal
}

type BundlingPayload struct {
	ProductIDs  []string
	BundlePrice decimal.Decimal
}

type BuyXGetYPayload struct {
	ProductX    string
	ProductY    string
	SameProduct bool
	BuyQuantity int
	GetQuantity int
}

type UnknownPayload struct {
	RawKind string
}

func (PercentagePayload) Kind() PromotionKind      { return PromotionPercentage }
func (FixedAmountPayload) Kind() PromotionKind     { return PromotionFixedAmount }
func (ProductDiscountPayload) Kind() PromotionKind { return PromotionProductDiscount }
func (BundlingPayload) Kind() PromotionKind        { return PromotionBundling }
func (BuyXGetYPayload) Kind() PromotionKind        { return PromotionBuyXGetY }
func (UnknownPayload) Kind() PromotionKind         { return PromotionUnknown }

// PromotionMeta describes a promotion independent of any cart.
type PromotionMeta struct {
	Code           string
	Name           string
	Payload        PromotionPayload
	AllowList      []string
	MinTransaction decimal.Decimal
	MinQuantity    int
	StartsAt       time.Time
	EndsAt         time.Time
}

func (m PromotionMeta) Kind() PromotionKind {
	if m.Payload == nil {
		return PromotionUnknown
	}
	return m.Payload.Kind()
}

// AppliesTo reports whether a product satisfies the promotion's own
// eligibility predicate. A promotion without an allow-list applies to every
// product.
func (m PromotionMeta) AppliesTo(productID string) bool {
	if len(m.AllowList) == 0 {
		return true
	}
	for _, id := range m.AllowList {
		if id == productID {
			return true
		}
	}
	return false
}

// EligibleFor is the cart-level pre-filter used when listing promotions to
// the cashier. The oracle stays authoritative.
func (m PromotionMeta) EligibleFor(subtotal decimal.Decimal, totalQuantity int, now time.Time) bool {
	if m.MinTransaction.IsPositive() && subtotal.LessThan(m.MinTransaction) {
		return false
	}
	if m.MinQuantity > 0 && totalQuantity < m.MinQuantity {
		return false
	}
	if !m.StartsAt.IsZero() && m.StartsAt.After(now) {
		return false
	}
	if !m.EndsAt.IsZero() && m.EndsAt.Before(now) {
		return false
	}
	return true
}

type AppliedPromotion struct {
	Code               string
	DisplayName        string
	Kind               PromotionKind
	Payload            PromotionPayload
	AttributedDiscount decimal.Decimal
	AffectedProductIDs []string
	// CartVersion is the cart snapshot the discount was computed against.
	CartVersion uint64
}

// sameCode compares promotion codes the way a cashier types them: ignoring
// case and surrounding blanks. The code itself is sent upstream as entered.
func sameCode(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// affectedProducts resolves which cart products a promotion is attributed
// to. A BuyXGetY promotion covers its trigger product and a distinct reward
// product; otherwise the oracle's explicit list wins; otherwise every line
// the promotion applies to.
func affectedProducts(meta PromotionMeta, oracleIDs []string, lines []CartLine) []string {
	if p, ok := meta.Payload.(BuyXGetYPayload); ok {
		ids := make([]string, 0, 2)
		if p.ProductX != "" {
			ids = append(ids, p.ProductX)
		}
		if !p.SameProduct && p.ProductY != "" && p.ProductY != p.ProductX {
			ids = append(ids, p.ProductY)
		}
		return ids
	}
	if len(oracleIDs) > 0 {
		return append([]string(nil), oracleIDs...)
	}
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if meta.AppliesTo(l.ProductID) {
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

func appliedFromResponse(code string, resp OracleResponse, snap CartSnapshot) AppliedPromotion {
	meta := resp.Promotion
	if c := strings.TrimSpace(meta.Code); c != "" {
		code = c
	}
	name := meta.Name
	if name == "" {
		name = code
	}
	payload := meta.Payload
	if payload == nil {
		payload = UnknownPayload{}
	}
	return AppliedPromotion{
		Code:               code,
		DisplayName:        name,
		Kind:               payload.Kind(),
		Payload:            payload,
		AttributedDiscount: resp.DiscountAmount.Round(0),
		AffectedProductIDs: affectedProducts(meta, resp.AffectedProductIDs, snap.Lines),
		CartVersion:        snap.Version,
	}
}
