package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestNoticeRenderLocales(t *testing.T) {
	n := notice(LevelError, CodeOutOfStock, NoticeOutOfStock, "Beras")
	if got := n.Render(language.Indonesian); got != "Stok Beras habis" {
		t.Fatalf("id render = %q", got)
	}
	if got := n.Render(language.English); got != "Beras is out of stock" {
		t.Fatalf("en render = %q", got)
	}
}

func TestEveryNoticeHasBothLocales(t *testing.T) {
	for key, msgs := range catalogEntries {
		if strings.TrimSpace(msgs[0]) == "" || strings.TrimSpace(msgs[1]) == "" {
			t.Errorf("%s is missing a translation", key)
		}
	}
}

func TestErrorMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", newError(CodeStockExceeded, "Gula: only 3 in stock"))
	if !errors.Is(err, ErrStockExceeded) {
		t.Fatalf("errors.Is should match on code")
	}
	if errors.Is(err, ErrOutOfStock) {
		t.Fatalf("different codes must not match")
	}
	var e *Error
	if !errors.As(err, &e) || e.Code != CodeStockExceeded {
		t.Fatalf("errors.As failed: %v", err)
	}

	wrapped := wrapError(CodeOracleUnavailable, context.DeadlineExceeded, "apply X")
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Fatalf("cause should unwrap")
	}
}

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.Subscribe(CartChanged, func(ctx context.Context, ev Event) {
		order = append(order, "first")
		bus.Publish(ctx, Event{Kind: PromotionsChanged})
	})
	bus.Subscribe(CartChanged, func(context.Context, Event) { order = append(order, "second") })
	bus.Subscribe(PromotionsChanged, func(context.Context, Event) { order = append(order, "nested") })

	bus.Publish(context.Background(), Event{Kind: CartChanged})
	if strings.Join(order, ",") != "first,nested,second" {
		t.Fatalf("order = %v", order)
	}
}
