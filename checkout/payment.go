package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "tunai"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "kredit"
)

type Payment struct {
	Method    PaymentMethod
	Amount    decimal.Decimal
	Reference string
}

// PaymentBook holds the tenders entered for the current transaction.
type PaymentBook struct {
	mu       sync.Mutex
	payments []Payment
	bus      *Bus
	notifier Notifier
}

func NewPaymentBook(bus *Bus, notifier Notifier) *PaymentBook {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &PaymentBook{bus: bus, notifier: notifier}
}

// Add records a tender. Non-cash tenders need a reference number.
func (b *PaymentBook) Add(ctx context.Context, p Payment) error {
	p.Amount = p.Amount.Round(0)
	p.Reference = strings.TrimSpace(p.Reference)
	if p.Method == "" {
		p.Method = PaymentCash
	}
	if !p.Amount.IsPositive() {
		b.notifier.Notify(ctx, notice(LevelError, CodeInvalidPayment, NoticePaymentAmount))
		return newError(CodeInvalidPayment, "payment amount must be greater than 0")
	}
	if p.Method != PaymentCash && p.Reference == "" {
		b.notifier.Notify(ctx, notice(LevelError, CodeInvalidPayment, NoticePaymentReference))
		return newError(CodeInvalidPayment, "%s payment needs a reference number", p.Method)
	}

	b.mu.Lock()
	b.payments = append(b.payments, p)
	b.mu.Unlock()
	b.publish(ctx)
	return nil
}

func (b *PaymentBook) Remove(ctx context.Context, index int) error {
	b.mu.Lock()
	if index < 0 || index >= len(b.payments) {
		b.mu.Unlock()
		return newError(CodeInvalidPayment, "no payment at position %d", index)
	}
	b.payments = append(b.payments[:index], b.payments[index+1:]...)
	b.mu.Unlock()
	b.publish(ctx)
	return nil
}

func (b *PaymentBook) Clear(ctx context.Context) {
	b.mu.Lock()
	n := len(b.payments)
	b.payments = nil
	b.mu.Unlock()
	if n > 0 {
		b.publish(ctx)
	}
}

func (b *PaymentBook) Payments() []Payment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Payment(nil), b.payments...)
}

func (b *PaymentBook) Tendered() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := decimal.Zero
	for _, p := range b.payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (b *PaymentBook) publish(ctx context.Context) {
	if b.bus != nil {
		b.bus.Publish(ctx, Event{Kind: PaymentsChanged})
	}
}
