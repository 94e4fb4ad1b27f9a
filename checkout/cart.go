package checkout

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

var gramsPerKilogram = decimal.NewFromInt(1000)

type CartLine struct {
	ProductID   string
	Name        string
	Category    string
	SKU         string
	UnitKind    UnitKind
	UnitPrice   decimal.Decimal
	Quantity    int
	WeightGrams decimal.Decimal
	// StockCeiling is in units for FixedUnit lines and kilograms for
	// BulkWeight lines.
	StockCeiling decimal.Decimal
	LineSubtotal decimal.Decimal
}

// NeedsWeight reports a BulkWeight line that has not been weighed yet.
func (l CartLine) NeedsWeight() bool {
	return l.UnitKind == UnitKindBulkWeight && !l.WeightGrams.IsPositive()
}

func (l *CartLine) recompute() {
	switch l.UnitKind {
	case UnitKindBulkWeight:
		l.LineSubtotal = l.WeightGrams.Div(gramsPerKilogram).Mul(l.UnitPrice).Round(0)
	default:
		l.LineSubtotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(0)
	}
}

type CartSnapshot struct {
	Version       uint64
	Lines         []CartLine
	Subtotal      decimal.Decimal
	TotalQuantity int
}

func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

func (s CartSnapshot) Line(productID string) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// CartStore holds the line items of one transaction. Every successful
// mutation bumps Version and publishes CartChanged after the lock is
// released.
type CartStore struct {
	mu       sync.Mutex
	lines    []*CartLine
	version  uint64
	bus      *Bus
	notifier Notifier
}

func NewCartStore(bus *Bus, notifier Notifier) *CartStore {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CartStore{bus: bus, notifier: notifier}
}

// Add dispatches on the product's unit kind.
func (c *CartStore) Add(ctx context.Context, p Product) error {
	if p.UnitKind == UnitKindBulkWeight {
		return c.AddBulkWeight(ctx, p)
	}
	return c.AddFixedUnit(ctx, p)
}

func (c *CartStore) AddFixedUnit(ctx context.Context, p Product) error {
	if !p.Stock.IsPositive() {
		c.notifier.Notify(ctx, notice(LevelError, CodeOutOfStock, NoticeOutOfStock, p.Name))
		return newError(CodeOutOfStock, "%s is out of stock", p.Name)
	}

	c.mu.Lock()
	if l := c.find(p.ID); l != nil {
		if l.UnitKind != UnitKindFixedUnit {
			c.mu.Unlock()
			return newError(CodeNotFixedUnit, "%s is not sold per unit", p.Name)
		}
		// The ceiling stays the stock seen when the line was created.
		next := l.Quantity + 1
		if decimal.NewFromInt(int64(next)).GreaterThan(l.StockCeiling) {
			name, ceiling := l.Name, l.StockCeiling
			c.mu.Unlock()
			c.notifier.Notify(ctx, notice(LevelError, CodeStockExceeded, NoticeStockExceeded, name, ceiling))
			return newError(CodeStockExceeded, "%s: only %s in stock", name, ceiling)
		}
		l.Quantity = next
		l.recompute()
	} else {
		l := newLine(p)
		l.UnitKind = UnitKindFixedUnit
		l.Quantity = 1
		l.recompute()
		c.lines = append(c.lines, l)
	}
	v := c.bump()
	c.mu.Unlock()

	c.publish(ctx, v)
	return nil
}

// AddBulkWeight adds a line awaiting its weight. Adding a product that is
// already in the cart only raises an informational notice.
func (c *CartStore) AddBulkWeight(ctx context.Context, p Product) error {
	if !p.Stock.IsPositive() {
		c.notifier.Notify(ctx, notice(LevelError, CodeOutOfStock, NoticeOutOfStock, p.Name))
		return newError(CodeOutOfStock, "%s is out of stock", p.Name)
	}

	c.mu.Lock()
	if l := c.find(p.ID); l != nil {
		c.mu.Unlock()
		c.notifier.Notify(ctx, notice(LevelInfo, "", NoticeBulkAlreadyInCart, p.Name))
		return nil
	}
	l := newLine(p)
	l.UnitKind = UnitKindBulkWeight
	l.Quantity = 1
	l.WeightGrams = decimal.Zero
	l.recompute()
	c.lines = append(c.lines, l)
	v := c.bump()
	c.mu.Unlock()

	c.publish(ctx, v)
	return nil
}

// SetWeight replaces the weight of a BulkWeight line.
func (c *CartStore) SetWeight(ctx context.Context, productID string, grams decimal.Decimal) error {
	if !grams.IsPositive() {
		c.notifier.Notify(ctx, notice(LevelError, CodeInvalidWeight, NoticeInvalidWeight))
		return newError(CodeInvalidWeight, "weight must be greater than 0, got %s", grams)
	}

	c.mu.Lock()
	l := c.find(productID)
	if l == nil {
		c.mu.Unlock()
		return newError(CodeLineNotFound, "product %s is not in the cart", productID)
	}
	if l.UnitKind != UnitKindBulkWeight {
		c.mu.Unlock()
		return newError(CodeNotBulkWeight, "%s is not sold by weight", l.Name)
	}
	maxGrams := l.StockCeiling.Mul(gramsPerKilogram)
	if grams.GreaterThan(maxGrams) {
		name := l.Name
		c.mu.Unlock()
		c.notifier.Notify(ctx, notice(LevelError, CodeStockExceeded, NoticeStockExceeded, name, maxGrams))
		return newError(CodeStockExceeded, "%s: only %s g in stock", name, maxGrams)
	}
	l.WeightGrams = grams
	l.recompute()
	v := c.bump()
	c.mu.Unlock()

	c.publish(ctx, v)
	return nil
}

// SetQuantity sets the quantity of a FixedUnit line. A quantity of zero or
// less removes the line.
func (c *CartStore) SetQuantity(ctx context.Context, productID string, qty int) error {
	c.mu.Lock()
	l := c.find(productID)
	if l == nil {
		c.mu.Unlock()
		return newError(CodeLineNotFound, "product %s is not in the cart", productID)
	}
	if l.UnitKind != UnitKindFixedUnit {
		c.mu.Unlock()
		return newError(CodeNotFixedUnit, "%s is not sold per unit", l.Name)
	}
	if qty <= 0 {
		name := l.Name
		c.remove(productID)
		v := c.bump()
		c.mu.Unlock()
		c.notifier.Notify(ctx, notice(LevelInfo, "", NoticeLineRemoved, name))
		c.publish(ctx, v)
		return nil
	}
	if decimal.NewFromInt(int64(qty)).GreaterThan(l.StockCeiling) {
		name, ceiling := l.Name, l.StockCeiling
		c.mu.Unlock()
		c.notifier.Notify(ctx, notice(LevelError, CodeStockExceeded, NoticeStockExceeded, name, ceiling))
		return newError(CodeStockExceeded, "%s: only %s in stock", name, ceiling)
	}
	l.Quantity = qty
	l.recompute()
	v := c.bump()
	c.mu.Unlock()

	c.publish(ctx, v)
	return nil
}

// RemoveLine drops a line. Removing an absent product changes nothing.
func (c *CartStore) RemoveLine(ctx context.Context, productID string) error {
	c.mu.Lock()
	l := c.find(productID)
	if l == nil {
		c.mu.Unlock()
		return nil
	}
	name := l.Name
	c.remove(productID)
	v := c.bump()
	c.mu.Unlock()

	c.notifier.Notify(ctx, notice(LevelInfo, "", NoticeLineRemoved, name))
	c.publish(ctx, v)
	return nil
}

// Clear empties the cart.
func (c *CartStore) Clear(ctx context.Context) {
	c.mu.Lock()
	if len(c.lines) == 0 {
		c.mu.Unlock()
		return
	}
	c.lines = nil
	v := c.bump()
	c.mu.Unlock()

	c.publish(ctx, v)
}

func (c *CartStore) Snapshot() CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := CartSnapshot{
		Version:  c.version,
		Lines:    make([]CartLine, 0, len(c.lines)),
		Subtotal: decimal.Zero,
	}
	for _, l := range c.lines {
		snap.Lines = append(snap.Lines, *l)
		snap.Subtotal = snap.Subtotal.Add(l.LineSubtotal)
		snap.TotalQuantity += l.Quantity
	}
	return snap
}

func (c *CartStore) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

func (c *CartStore) Subtotal() decimal.Decimal {
	return c.Snapshot().Subtotal
}

func (c *CartStore) find(productID string) *CartLine {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l
		}
	}
	return nil
}

func (c *CartStore) remove(productID string) bool {
	for i, l := range c.lines {
		if l.ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return true
		}
	}
	return false
}

func (c *CartStore) bump() uint64 {
	c.version++
	return c.version
}

func (c *CartStore) publish(ctx context.Context, version uint64) {
	if c.bus != nil {
		c.bus.Publish(ctx, Event{Kind: CartChanged, CartVersion: version})
	}
}

func newLine(p Product) *CartLine {
	return &CartLine{
		ProductID:    p.ID,
		Name:         p.Name,
		Category:     p.Category,
		SKU:          p.SKU,
		UnitKind:     p.UnitKind,
		UnitPrice:    p.UnitPrice,
		StockCeiling: p.Stock,
		WeightGrams:  decimal.Zero,
	}
}
