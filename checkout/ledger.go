package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// PromoLedger holds the promotions applied to the cart. Discounts come from
// the oracle only; the ledger never computes one itself.
type PromoLedger struct {
	mu     sync.Mutex
	promos []AppliedPromotion

	cart       *CartStore
	oracle     PromotionOracle
	customerID func() string
	bus        *Bus
	notifier   Notifier
	logger     logrus.FieldLogger
	tracer     trace.Tracer
}

// NewPromoLedger subscribes the ledger to cart and customer changes. It must
// be constructed before any component that reads its discount on the same
// events.
func NewPromoLedger(cart *CartStore, oracle PromotionOracle, customerID func() string, bus *Bus, notifier Notifier, logger logrus.FieldLogger) *PromoLedger {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if customerID == nil {
		customerID = func() string { return "" }
	}
	l := &PromoLedger{
		cart:       cart,
		oracle:     oracle,
		customerID: customerID,
		bus:        bus,
		notifier:   notifier,
		logger:     logger.WithField("module", "PromoLedger"),
		tracer:     otel.Tracer("github.com/mmdatafocus/pos_backend/checkout"),
	}
	if bus != nil {
		bus.Subscribe(CartChanged, func(ctx context.Context, _ Event) { l.RevalidateAll(ctx) })
		bus.Subscribe(CustomerChanged, func(ctx context.Context, _ Event) { l.RevalidateAll(ctx) })
	}
	return l
}

// Apply asks the oracle to price a promotion code against the current cart.
func (l *PromoLedger) Apply(ctx context.Context, code string) (AppliedPromotion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return AppliedPromotion{}, newError(CodePromotionRejected, "promotion code is empty")
	}

	l.mu.Lock()
	held := l.indexOf(code) >= 0
	l.mu.Unlock()
	if held {
		l.notifier.Notify(ctx, notice(LevelWarning, CodeDuplicatePromotion, NoticeDuplicatePromotion, code))
		return AppliedPromotion{}, newError(CodeDuplicatePromotion, "promotion %s is already applied", code)
	}

	snap := l.cart.Snapshot()
	if snap.Empty() {
		l.notifier.Notify(ctx, notice(LevelError, CodeEmptyCart, NoticeEmptyCart))
		return AppliedPromotion{}, newError(CodeEmptyCart, "cannot apply %s to an empty cart", code)
	}

	resp, err := l.callOracle(ctx, l.request(code, snap))
	if err != nil {
		l.notifier.Notify(ctx, notice(LevelError, CodeOracleUnavailable, NoticeOracleUnavailable, code))
		return AppliedPromotion{}, wrapError(CodeOracleUnavailable, err, "apply %s", code)
	}
	if !resp.Accepted {
		l.notifier.Notify(ctx, notice(LevelError, CodePromotionRejected, NoticePromotionRejected, code, resp.Message))
		return AppliedPromotion{}, newError(CodePromotionRejected, "%s", rejectionMessage(code, resp.Message))
	}

	ap := appliedFromResponse(code, resp, snap)

	l.mu.Lock()
	if l.indexOf(code) >= 0 {
		l.mu.Unlock()
		l.notifier.Notify(ctx, notice(LevelWarning, CodeDuplicatePromotion, NoticeDuplicatePromotion, code))
		return AppliedPromotion{}, newError(CodeDuplicatePromotion, "promotion %s is already applied", code)
	}
	l.promos = append(l.promos, ap)
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"code":         code,
		"discount":     ap.AttributedDiscount.String(),
		"cart_version": snap.Version,
	}).Debug("promotion applied")
	l.notifier.Notify(ctx, notice(LevelSuccess, "", NoticePromotionApplied, ap.DisplayName))

	if l.cart.Version() > snap.Version {
		// The cart moved while the oracle was pricing; reprice this code
		// against the latest snapshot.
		l.revalidate(ctx, []string{code})
		return ap, nil
	}

	l.mu.Lock()
	pruned := l.pruneLocked(l.cart.Snapshot())
	l.mu.Unlock()
	if pruned {
		l.notifier.Notify(ctx, notice(LevelInfo, "", NoticePromotionsCleared))
	}
	l.publish(ctx, snap.Version)
	return ap, nil
}

// Remove drops a held promotion.
func (l *PromoLedger) Remove(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	l.mu.Lock()
	i := l.indexOf(code)
	if i < 0 {
		l.mu.Unlock()
		return newError(CodePromotionNotApplied, "promotion %s is not applied", code)
	}
	l.promos = append(l.promos[:i], l.promos[i+1:]...)
	l.mu.Unlock()

	l.notifier.Notify(ctx, notice(LevelInfo, "", NoticePromotionRemoved, code))
	l.publish(ctx, l.cart.Version())
	return nil
}

func (l *PromoLedger) RemoveAll(ctx context.Context) {
	l.mu.Lock()
	n := len(l.promos)
	l.promos = nil
	l.mu.Unlock()

	if n > 0 {
		l.publish(ctx, l.cart.Version())
	}
}

// RevalidateAll reprices every held code against the current cart and
// returns the codes that were dropped.
func (l *PromoLedger) RevalidateAll(ctx context.Context) []string {
	return l.revalidate(ctx, l.Codes())
}

type oracleResult struct {
	code string
	resp OracleResponse
	err  error
}

func (l *PromoLedger) revalidate(ctx context.Context, held []string) []string {
	if len(held) == 0 {
		return nil
	}

	snap := l.cart.Snapshot()
	if snap.Empty() {
		l.mu.Lock()
		dropped := l.codesLocked()
		l.promos = nil
		l.mu.Unlock()
		if len(dropped) > 0 {
			l.notifier.Notify(ctx, notice(LevelInfo, "", NoticePromotionsCleared))
			l.publish(ctx, snap.Version)
		}
		return dropped
	}

	results := make([]oracleResult, len(held))
	var g errgroup.Group
	for i, code := range held {
		i, code := i, code
		g.Go(func() error {
			resp, err := l.callOracle(ctx, l.request(code, snap))
			results[i] = oracleResult{code: code, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var dropped []string
	var rejections []Notice

	l.mu.Lock()
	for _, r := range results {
		i := l.indexOf(r.code)
		if i < 0 {
			continue
		}
		if snap.Version < l.promos[i].CartVersion {
			continue
		}
		switch {
		case r.err != nil:
			l.logger.WithError(r.err).WithField("code", r.code).Warn("revalidation failed, dropping promotion")
			rejections = append(rejections, notice(LevelError, CodeOracleUnavailable, NoticeOracleUnavailable, r.code))
			l.promos = append(l.promos[:i], l.promos[i+1:]...)
			dropped = append(dropped, r.code)
		case !r.resp.Accepted:
			rejections = append(rejections, notice(LevelWarning, CodePromotionRejected, NoticePromotionRejected, r.code, r.resp.Message))
			l.promos = append(l.promos[:i], l.promos[i+1:]...)
			dropped = append(dropped, r.code)
		default:
			l.promos[i] = appliedFromResponse(r.code, r.resp, snap)
		}
	}
	pruned := l.pruneLocked(l.cart.Snapshot())
	l.mu.Unlock()

	for _, n := range rejections {
		l.notifier.Notify(ctx, n)
	}
	if len(dropped) > 0 {
		l.notifier.Notify(ctx, notice(LevelInfo, "", NoticePromotionsAdjusted))
	}
	if pruned {
		l.notifier.Notify(ctx, notice(LevelInfo, "", NoticePromotionsCleared))
	}
	l.publish(ctx, snap.Version)
	return dropped
}

// pruneLocked clears the ledger when the cart is empty or when no cart line
// is covered by any held promotion. An empty affected union never prunes.
func (l *PromoLedger) pruneLocked(snap CartSnapshot) bool {
	if len(l.promos) == 0 {
		return false
	}
	if snap.Empty() {
		l.promos = nil
		return true
	}
	union := make(map[string]struct{})
	for _, p := range l.promos {
		for _, id := range p.AffectedProductIDs {
			union[id] = struct{}{}
		}
	}
	if len(union) == 0 {
		return false
	}
	for _, line := range snap.Lines {
		if _, ok := union[line.ProductID]; ok {
			return false
		}
	}
	l.promos = nil
	return true
}

// Discount is the sum of attributed discounts, recomputed on every call.
func (l *PromoLedger) Discount() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, p := range l.promos {
		total = total.Add(p.AttributedDiscount)
	}
	return total
}

func (l *PromoLedger) Promotions() []AppliedPromotion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AppliedPromotion, len(l.promos))
	for i, p := range l.promos {
		p.AffectedProductIDs = append([]string(nil), p.AffectedProductIDs...)
		out[i] = p
	}
	return out
}

// AffectedProducts is the union of every held promotion's affected set.
func (l *PromoLedger) AffectedProducts() map[string]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]bool)
	for _, p := range l.promos {
		for _, id := range p.AffectedProductIDs {
			out[id] = true
		}
	}
	return out
}

func (l *PromoLedger) Codes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.codesLocked()
}

// codesLocked lists held codes; the caller holds mu.
func (l *PromoLedger) codesLocked() []string {
	out := make([]string, len(l.promos))
	for i, p := range l.promos {
		out[i] = p.Code
	}
	return out
}

func (l *PromoLedger) indexOf(code string) int {
	for i, p := range l.promos {
		if sameCode(p.Code, code) {
			return i
		}
	}
	return -1
}

func (l *PromoLedger) request(code string, snap CartSnapshot) OracleRequest {
	customer := l.customerID()
	if customer == "" {
		customer = CustomerSentinel
	}
	lines := make([]OracleLine, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		lines = append(lines, OracleLine{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			WeightGrams: line.WeightGrams,
		})
	}
	return OracleRequest{
		Code:          code,
		Subtotal:      snap.Subtotal,
		TotalQuantity: snap.TotalQuantity,
		CustomerID:    customer,
		Lines:         lines,
	}
}

func (l *PromoLedger) callOracle(ctx context.Context, req OracleRequest) (OracleResponse, error) {
	ctx, span := l.tracer.Start(ctx, "checkout.ApplyPromotion", trace.WithAttributes(
		attribute.String("promo.code", req.Code),
		attribute.Int("cart.lines", len(req.Lines)),
	))
	defer span.End()

	resp, err := l.oracle.ApplyPromotion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OracleResponse{}, err
	}
	span.SetAttributes(attribute.Bool("promo.accepted", resp.Accepted))
	return resp, nil
}

func (l *PromoLedger) publish(ctx context.Context, version uint64) {
	if l.bus != nil {
		l.bus.Publish(ctx, Event{Kind: PromotionsChanged, CartVersion: version})
	}
}

func rejectionMessage(code, msg string) string {
	if msg == "" {
		return "promotion " + code + " rejected"
	}
	return msg
}
