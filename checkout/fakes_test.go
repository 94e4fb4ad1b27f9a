package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

type fakeOracle struct {
	mu    sync.Mutex
	fn    func(req OracleRequest) (OracleResponse, error)
	calls []OracleRequest
}

func (f *fakeOracle) ApplyPromotion(_ context.Context, req OracleRequest) (OracleResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return OracleResponse{}, errors.New("no oracle configured")
	}
	return fn(req)
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOracle) lastCall() OracleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// fixedDiscounts accepts every known code with a flat discount.
func fixedDiscounts(discounts map[string]int64) func(OracleRequest) (OracleResponse, error) {
	return func(req OracleRequest) (OracleResponse, error) {
		d, ok := discounts[req.Code]
		if !ok {
			return OracleResponse{Accepted: false, Message: "Kode promo tidak valid"}, nil
		}
		return OracleResponse{
			Accepted:       true,
			DiscountAmount: decimal.NewFromInt(d),
			Promotion: PromotionMeta{
				Code:    req.Code,
				Name:    req.Code,
				Payload: FixedAmountPayload{Amount: decimal.NewFromInt(d)},
			},
		}, nil
	}
}

// percentOfSubtotal prices a code at pct percent of the request subtotal.
func percentOfSubtotal(pct int64) func(OracleRequest) (OracleResponse, error) {
	return func(req OracleRequest) (OracleResponse, error) {
		d := req.Subtotal.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100)).Round(0)
		return OracleResponse{
			Accepted:       true,
			DiscountAmount: d,
			Promotion: PromotionMeta{
				Code:    req.Code,
				Name:    req.Code,
				Payload: PercentagePayload{Percent: decimal.NewFromInt(pct)},
			},
		}, nil
	}
}

type fakeSink struct {
	mu       sync.Mutex
	requests []CommitRequest
	result   CommitResult
	err      error
}

func (f *fakeSink) CreateTransaction(_ context.Context, req CommitRequest) (CommitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return CommitResult{}, f.err
	}
	return f.result, nil
}

type fakePrinter struct {
	err     error
	printed []string
}

func (f *fakePrinter) PrintReceipt(_ context.Context, ref string) error {
	f.printed = append(f.printed, ref)
	return f.err
}

type recordingHook struct {
	refs []string
}

func (h *recordingHook) TransactionSettled(_ context.Context, _ CommitRequest, r Receipt) error {
	h.refs = append(h.refs, r.TransactionRef)
	return nil
}

func fixedProduct(id string, price, stock int64) Product {
	return Product{
		ID:        id,
		Name:      "Produk " + id,
		UnitKind:  UnitKindFixedUnit,
		UnitPrice: decimal.NewFromInt(price),
		Stock:     decimal.NewFromInt(stock),
	}
}

func bulkProduct(id string, pricePerKg, stockKg int64) Product {
	return Product{
		ID:        id,
		Name:      "Curah " + id,
		UnitKind:  UnitKindBulkWeight,
		UnitPrice: decimal.NewFromInt(pricePerKg),
		Stock:     decimal.NewFromInt(stockKg),
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func newTestSession(oracle *fakeOracle, settings PointSettings) (*Session, *NoticeRecorder) {
	rec := &NoticeRecorder{}
	s := NewSession("test", Staff{ID: "7", Name: "Sari"}, Dependencies{
		Oracle:        oracle,
		PointSettings: settings,
		Notifier:      rec,
	})
	return s, rec
}

func hasNotice(notices []Notice, key string) bool {
	for _, n := range notices {
		if n.Key == key {
			return true
		}
	}
	return false
}
