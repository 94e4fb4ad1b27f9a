package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

func TestAddFixedUnitIncrementsUpToStock(t *testing.T) {
	ctx := context.Background()
	rec := &NoticeRecorder{}
	cart := NewCartStore(NewBus(), rec)
	p := fixedProduct("1", 10000, 2)

	for i := 0; i < 2; i++ {
		if err := cart.AddFixedUnit(ctx, p); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	err := cart.AddFixedUnit(ctx, p)
	if !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected StockExceeded, got %v", err)
	}
	line, _ := cart.Snapshot().Line("1")
	if line.Quantity != 2 {
		t.Fatalf("quantity changed on rejected add: %d", line.Quantity)
	}
	if !hasNotice(rec.Drain(), NoticeStockExceeded) {
		t.Fatalf("expected stock exceeded notice")
	}
}

func TestStockCeilingIsTakenWhenLineIsCreated(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewBus(), nil)

	_ = cart.AddFixedUnit(ctx, fixedProduct("1", 10000, 2))
	// A later catalog read reports more stock; the line keeps its ceiling.
	restocked := fixedProduct("1", 10000, 5)
	if err := cart.AddFixedUnit(ctx, restocked); err != nil {
		t.Fatalf("second add: %v", err)
	}
	if err := cart.AddFixedUnit(ctx, restocked); !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected StockExceeded at the original ceiling, got %v", err)
	}
	line, _ := cart.Snapshot().Line("1")
	if line.Quantity != 2 || !line.StockCeiling.Equal(dec(2)) {
		t.Fatalf("line = %+v", line)
	}
}

func TestAddOutOfStock(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewBus(), nil)

	cases := []Product{
		fixedProduct("1", 1000, 0),
		bulkProduct("2", 1000, 0),
	}
	for _, p := range cases {
		if err := cart.Add(ctx, p); !errors.Is(err, ErrOutOfStock) {
			t.Errorf("%s: expected OutOfStock, got %v", p.ID, err)
		}
	}
	if !cart.Snapshot().Empty() {
		t.Fatalf("cart should stay empty")
	}
}

func TestAddBulkWeightTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	rec := &NoticeRecorder{}
	cart := NewCartStore(NewBus(), rec)
	p := bulkProduct("b", 50000, 10)

	if err := cart.AddBulkWeight(ctx, p); err != nil {
		t.Fatalf("add: %v", err)
	}
	v := cart.Version()
	if err := cart.AddBulkWeight(ctx, p); err != nil {
		t.Fatalf("second add should not fail: %v", err)
	}
	if cart.Version() != v {
		t.Fatalf("second add mutated the cart")
	}
	snap := cart.Snapshot()
	if len(snap.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(snap.Lines))
	}
	line := snap.Lines[0]
	if !line.WeightGrams.IsZero() || !line.LineSubtotal.IsZero() || !line.NeedsWeight() {
		t.Fatalf("new bulk line should be unweighed: %+v", line)
	}
	if !hasNotice(rec.Drain(), NoticeBulkAlreadyInCart) {
		t.Fatalf("expected informational notice")
	}
}

func TestSetWeightSubtotal(t *testing.T) {
	cases := []struct {
		name       string
		pricePerKg int64
		grams      string
		want       int64
	}{
		{"quarter kilo", 50000, "250", 12500},
		{"round half up", 500, "3", 2},
		{"tenth of a gram", 10000, "333.3", 3333},
		{"below one rupiah", 499, "1", 0},
		{"fractional grams", 12000, "1250.5", 15006},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			cart := NewCartStore(NewBus(), nil)
			if err := cart.AddBulkWeight(ctx, bulkProduct("b", tc.pricePerKg, 100)); err != nil {
				t.Fatalf("add: %v", err)
			}
			if err := cart.SetWeight(ctx, "b", decimal.RequireFromString(tc.grams)); err != nil {
				t.Fatalf("set weight: %v", err)
			}
			line, _ := cart.Snapshot().Line("b")
			if !line.LineSubtotal.Equal(dec(tc.want)) {
				t.Fatalf("subtotal = %s, want %d", line.LineSubtotal, tc.want)
			}
		})
	}
}

func TestSetWeightReplacesAndValidates(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewBus(), nil)
	_ = cart.AddBulkWeight(ctx, bulkProduct("b", 20000, 2))

	if err := cart.SetWeight(ctx, "b", dec(500)); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	if err := cart.SetWeight(ctx, "b", dec(300)); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	line, _ := cart.Snapshot().Line("b")
	if !line.WeightGrams.Equal(dec(300)) {
		t.Fatalf("weight should be replaced, got %s", line.WeightGrams)
	}

	for _, g := range []int64{0, -10} {
		if err := cart.SetWeight(ctx, "b", dec(g)); !errors.Is(err, ErrInvalidWeight) {
			t.Errorf("grams %d: expected InvalidWeight, got %v", g, err)
		}
	}
	if err := cart.SetWeight(ctx, "b", dec(2001)); !errors.Is(err, ErrStockExceeded) {
		t.Errorf("expected StockExceeded above 2kg, got %v", err)
	}
	if err := cart.SetWeight(ctx, "missing", dec(10)); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("expected LineNotFound, got %v", err)
	}
	line, _ = cart.Snapshot().Line("b")
	if !line.WeightGrams.Equal(dec(300)) {
		t.Fatalf("rejected weights must not mutate, got %s", line.WeightGrams)
	}
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	rec := &NoticeRecorder{}
	cart := NewCartStore(NewBus(), rec)
	_ = cart.AddFixedUnit(ctx, fixedProduct("1", 1500, 5))
	_ = cart.AddBulkWeight(ctx, bulkProduct("b", 1000, 5))

	if err := cart.SetQuantity(ctx, "1", 4); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := cart.SetQuantity(ctx, "1", 6); !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("expected StockExceeded, got %v", err)
	}
	line, _ := cart.Snapshot().Line("1")
	if line.Quantity != 4 || !line.LineSubtotal.Equal(dec(6000)) {
		t.Fatalf("unexpected line after rejected update: %+v", line)
	}
	if err := cart.SetQuantity(ctx, "b", 2); !errors.Is(err, ErrNotFixedUnit) {
		t.Fatalf("expected NotFixedUnit, got %v", err)
	}
	if err := cart.SetQuantity(ctx, "1", 0); err != nil {
		t.Fatalf("set zero: %v", err)
	}
	if _, ok := cart.Snapshot().Line("1"); ok {
		t.Fatalf("quantity 0 should remove the line")
	}
	if !hasNotice(rec.Drain(), NoticeLineRemoved) {
		t.Fatalf("expected line removed notice")
	}
}

func TestSnapshotTotals(t *testing.T) {
	ctx := context.Background()
	cart := NewCartStore(NewBus(), nil)
	_ = cart.AddFixedUnit(ctx, fixedProduct("1", 10000, 10))
	_ = cart.AddFixedUnit(ctx, fixedProduct("1", 10000, 10))
	_ = cart.AddFixedUnit(ctx, fixedProduct("2", 2500, 10))
	_ = cart.AddBulkWeight(ctx, bulkProduct("b", 50000, 10))
	_ = cart.SetWeight(ctx, "b", dec(250))

	snap := cart.Snapshot()
	sum := decimal.Zero
	for _, l := range snap.Lines {
		sum = sum.Add(l.LineSubtotal)
	}
	if !snap.Subtotal.Equal(sum) || !snap.Subtotal.Equal(dec(35000)) {
		t.Fatalf("subtotal = %s, sum of lines = %s", snap.Subtotal, sum)
	}
	// bulk lines count as one unit
	if snap.TotalQuantity != 4 {
		t.Fatalf("total quantity = %d, want 4", snap.TotalQuantity)
	}
	if snap.Version != 5 {
		t.Fatalf("version = %d, want 5", snap.Version)
	}
}

func TestRemoveLineAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	rec := &NoticeRecorder{}
	cart := NewCartStore(NewBus(), rec)
	_ = cart.AddFixedUnit(ctx, fixedProduct("1", 100, 1))
	v := cart.Version()
	if err := cart.RemoveLine(ctx, "nope"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if cart.Version() != v {
		t.Fatalf("removing an absent line bumped the version")
	}
	if len(rec.Drain()) != 0 {
		t.Fatalf("removing an absent line raised a notice")
	}
	if err := cart.RemoveLine(ctx, "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !cart.Snapshot().Empty() {
		t.Fatalf("cart should be empty")
	}
	notices := rec.Drain()
	if len(notices) != 1 || notices[0].Key != NoticeLineRemoved || notices[0].Render(language.English) != "Produk 1 removed from the cart" {
		t.Fatalf("notices = %+v", notices)
	}
}
