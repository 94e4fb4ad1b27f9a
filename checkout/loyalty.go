package checkout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type DiscountSource interface {
	Discount() decimal.Decimal
}

// LoyaltyRedemption is the current point redemption. BelowMinimum is set when
// points are held but too few to exchange, in which case Discount is zero.
type LoyaltyRedemption struct {
	Points       int64
	Discount     decimal.Decimal
	BelowMinimum bool
}

// LoyaltyRedeemer converts the attached customer's points into a discount
// bounded by the balance and by what is left of the subtotal after
// promotions.
type LoyaltyRedeemer struct {
	mu         sync.Mutex
	customer   *Customer
	settings   PointSettings
	redemption LoyaltyRedemption

	cart     *CartStore
	promo    DiscountSource
	bus      *Bus
	notifier Notifier
}

func NewLoyaltyRedeemer(cart *CartStore, promo DiscountSource, settings PointSettings, bus *Bus, notifier Notifier) *LoyaltyRedeemer {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	r := &LoyaltyRedeemer{
		cart:       cart,
		promo:      promo,
		settings:   settings,
		bus:        bus,
		notifier:   notifier,
		redemption: LoyaltyRedemption{Discount: decimal.Zero},
	}
	if bus != nil {
		bus.Subscribe(CartChanged, func(ctx context.Context, _ Event) { r.Reclamp(ctx) })
		bus.Subscribe(PromotionsChanged, func(ctx context.Context, _ Event) { r.Reclamp(ctx) })
	}
	return r
}

func (r *LoyaltyRedeemer) Attach(ctx context.Context, c Customer) {
	r.mu.Lock()
	r.customer = &c
	r.mu.Unlock()

	r.Reclamp(ctx)
	if r.bus != nil {
		r.bus.Publish(ctx, Event{Kind: CustomerChanged, CartVersion: r.cart.Version()})
	}
}

// Refresh swaps in a newer read of the attached customer and re-clamps the
// held points against it. It reports whether the held points went down.
// A different customer is ignored.
func (r *LoyaltyRedeemer) Refresh(ctx context.Context, c Customer) bool {
	r.mu.Lock()
	if r.customer == nil || r.customer.ID != c.ID {
		r.mu.Unlock()
		return false
	}
	before := r.redemption.Points
	r.customer = &c
	r.mu.Unlock()

	r.Reclamp(ctx)
	return r.Redemption().Points < before
}

// Detach removes the customer and clears any redemption.
func (r *LoyaltyRedeemer) Detach(ctx context.Context) {
	r.mu.Lock()
	had := r.customer != nil
	r.customer = nil
	r.redemption = LoyaltyRedemption{Discount: decimal.Zero}
	r.mu.Unlock()

	if had && r.bus != nil {
		r.bus.Publish(ctx, Event{Kind: CustomerChanged, CartVersion: r.cart.Version()})
	}
}

func (r *LoyaltyRedeemer) Customer() (Customer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.customer == nil {
		return Customer{}, false
	}
	return *r.customer, true
}

// CustomerID returns the attached customer's id, or "" when none.
func (r *LoyaltyRedeemer) CustomerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.customer == nil {
		return ""
	}
	return r.customer.ID
}

func (r *LoyaltyRedeemer) SetSettings(ctx context.Context, s PointSettings) {
	r.mu.Lock()
	r.settings = s
	r.mu.Unlock()
	r.Reclamp(ctx)
}

func (r *LoyaltyRedeemer) Settings() PointSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetPointsToRedeem records the points the cashier wants to exchange. The
// stored value is the clamped one.
func (r *LoyaltyRedeemer) SetPointsToRedeem(ctx context.Context, points int64) (LoyaltyRedemption, error) {
	r.mu.Lock()
	if r.customer == nil {
		r.redemption = LoyaltyRedemption{Discount: decimal.Zero}
		r.mu.Unlock()
		r.notifier.Notify(ctx, notice(LevelError, CodeNoCustomerAttached, NoticeNoCustomer))
		return LoyaltyRedemption{Discount: decimal.Zero}, newError(CodeNoCustomerAttached, "attach a customer before redeeming points")
	}
	if points < 0 {
		points = 0
	}
	res, notices := r.clampLocked(points)
	r.redemption = res
	configured := r.settings.PointValue.IsPositive()
	r.mu.Unlock()

	for _, n := range notices {
		r.notifier.Notify(ctx, n)
	}
	if !configured && points > 0 {
		return res, newError(CodeLoyaltyNotConfigured, "point value is not configured")
	}
	return res, nil
}

// Reclamp re-applies the bounds to the held points after the subtotal, the
// promotion discount or the customer changed.
func (r *LoyaltyRedeemer) Reclamp(ctx context.Context) {
	r.mu.Lock()
	if r.customer == nil {
		r.redemption = LoyaltyRedemption{Discount: decimal.Zero}
		r.mu.Unlock()
		return
	}
	if r.redemption.Points == 0 {
		r.redemption = LoyaltyRedemption{Discount: decimal.Zero}
		r.mu.Unlock()
		return
	}
	res, notices := r.clampLocked(r.redemption.Points)
	r.redemption = res
	r.mu.Unlock()

	for _, n := range notices {
		r.notifier.Notify(ctx, n)
	}
}

func (r *LoyaltyRedeemer) Redemption() LoyaltyRedemption {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redemption
}

func (r *LoyaltyRedeemer) Discount() decimal.Decimal {
	return r.Redemption().Discount
}

func (r *LoyaltyRedeemer) clampLocked(points int64) (LoyaltyRedemption, []Notice) {
	var notices []Notice
	pv := r.settings.PointValue
	if !pv.IsPositive() {
		if points > 0 {
			notices = append(notices, notice(LevelWarning, CodeLoyaltyNotConfigured, NoticeLoyaltyNotConfigured))
		}
		return LoyaltyRedemption{Discount: decimal.Zero}, notices
	}

	if points > r.customer.PointBalance {
		points = r.customer.PointBalance
		if points < 0 {
			points = 0
		}
		notices = append(notices, notice(LevelInfo, "", NoticePointsClampedBalance, points))
	}

	remaining := r.cart.Subtotal()
	if r.promo != nil {
		remaining = remaining.Sub(r.promo.Discount())
	}
	maxPoints := int64(0)
	if remaining.IsPositive() {
		maxPoints = remaining.Div(pv).Floor().IntPart()
	}
	if points > maxPoints {
		points = maxPoints
		notices = append(notices, notice(LevelInfo, "", NoticePointsClampedTotal, points))
	}

	if points > 0 && points < r.settings.MinExchange {
		notices = append(notices, notice(LevelWarning, CodeBelowMinimumExchange, NoticeBelowMinimumExchange, r.settings.MinExchange))
		return LoyaltyRedemption{Points: points, Discount: decimal.Zero, BelowMinimum: true}, notices
	}
	return LoyaltyRedemption{
		Points:   points,
		Discount: pv.Mul(decimal.NewFromInt(points)).Round(0),
	}, notices
}

// EarnedPoints is the loyalty reward for a purchase: one point for every
// full MinTransactionForPoints spent.
func EarnedPoints(grandTotal decimal.Decimal, s PointSettings) int64 {
	if !s.MinTransactionForPoints.IsPositive() || !grandTotal.IsPositive() {
		return 0
	}
	return grandTotal.Div(s.MinTransactionForPoints).Floor().IntPart()
}
