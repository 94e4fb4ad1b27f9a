package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

type State string

const (
	StateEmpty           State = "empty"
	StateBuilding        State = "building"
	StatePriced          State = "priced"
	StateAwaitingPayment State = "awaiting_payment"
	StateSettled         State = "settled"
)

const walkInCustomerName = "Umum"

type Staff struct {
	ID   string
	Name string
}

// SettleHook runs after a transaction is committed and before the session
// resets. Hook errors are logged and never undo the settlement.
type SettleHook interface {
	TransactionSettled(ctx context.Context, req CommitRequest, receipt Receipt) error
}

type Dependencies struct {
	Oracle        PromotionOracle
	Sink          TransactionSink
	Printer       ReceiptPrinter
	PointSettings PointSettings
	Notifier      Notifier
	Logger        logrus.FieldLogger
	Hooks         []SettleHook
	Lang          language.Tag
	Now           func() time.Time
}

// Session is one register's transaction in progress.
type Session struct {
	ID    string
	Staff Staff

	Cart     *CartStore
	Promo    *PromoLedger
	Loyalty  *LoyaltyRedeemer
	Payments *PaymentBook

	bus    *Bus
	deps   Dependencies
	logger logrus.FieldLogger

	mu       sync.Mutex
	settling bool
	settled  bool
	last     *Receipt
}

func NewSession(id string, staff Staff, deps Dependencies) *Session {
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Lang == language.Und {
		deps.Lang = language.Indonesian
	}
	if id == "" {
		id = uuid.NewString()
	}

	bus := NewBus()
	s := &Session{
		ID:     id,
		Staff:  staff,
		bus:    bus,
		deps:   deps,
		logger: deps.Logger.WithFields(logrus.Fields{"module": "Session", "session_id": id}),
	}
	s.Cart = NewCartStore(bus, deps.Notifier)
	// The ledger subscribes before the redeemer so promotions are repriced
	// before points are re-clamped on the same cart change.
	s.Promo = NewPromoLedger(s.Cart, deps.Oracle, func() string { return s.Loyalty.CustomerID() }, bus, deps.Notifier, deps.Logger)
	s.Loyalty = NewLoyaltyRedeemer(s.Cart, s.Promo, deps.PointSettings, bus, deps.Notifier)
	s.Payments = NewPaymentBook(bus, deps.Notifier)
	return s
}

// Subscribe exposes the session's event bus to outer layers.
func (s *Session) Subscribe(kind EventKind, h Handler) {
	s.bus.Subscribe(kind, h)
}

func (s *Session) State() State {
	s.mu.Lock()
	settled := s.settled
	s.mu.Unlock()
	if settled {
		return StateSettled
	}

	snap := s.Cart.Snapshot()
	switch {
	case snap.Empty():
		return StateEmpty
	case s.Payments.Tendered().IsPositive():
		return StateAwaitingPayment
	case len(s.Promo.Codes()) > 0 || s.Loyalty.Redemption().Points > 0:
		return StatePriced
	default:
		return StateBuilding
	}
}

func (s *Session) Totals() Totals {
	return TotalsCalculator{Cart: s.Cart, Promo: s.Promo, Loyalty: s.Loyalty, Payments: s.Payments}.Totals()
}

// LastReceipt is the receipt of the most recent settlement, if any.
func (s *Session) LastReceipt() (Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Receipt{}, false
	}
	return *s.last, true
}

func (s *Session) AddProduct(ctx context.Context, p Product) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Cart.Add(ctx, p)
}

func (s *Session) SetWeight(ctx context.Context, productID string, grams decimal.Decimal) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Cart.SetWeight(ctx, productID, grams)
}

func (s *Session) SetQuantity(ctx context.Context, productID string, qty int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Cart.SetQuantity(ctx, productID, qty)
}

func (s *Session) RemoveLine(ctx context.Context, productID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Cart.RemoveLine(ctx, productID)
}

func (s *Session) ApplyPromotion(ctx context.Context, code string) (AppliedPromotion, error) {
	if err := s.guard(); err != nil {
		return AppliedPromotion{}, err
	}
	return s.Promo.Apply(ctx, code)
}

func (s *Session) RemovePromotion(ctx context.Context, code string) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Promo.Remove(ctx, code)
}

func (s *Session) AttachCustomer(ctx context.Context, c Customer) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.Loyalty.Attach(ctx, c)
	return nil
}

// RefreshCustomer replaces the attached customer with a newer read of the
// same record. When the new balance no longer covers the held points the
// redemption is re-clamped and BalanceChanged is returned so the cashier can
// confirm the new total.
func (s *Session) RefreshCustomer(ctx context.Context, c Customer) error {
	if err := s.guard(); err != nil {
		return err
	}
	if s.Loyalty.Refresh(ctx, c) {
		s.deps.Notifier.Notify(ctx, notice(LevelError, CodeBalanceChanged, NoticeBalanceChanged, c.PointBalance))
		return newError(CodeBalanceChanged, "point balance of customer %s is now %d", c.ID, c.PointBalance)
	}
	return nil
}

func (s *Session) DetachCustomer(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	s.Loyalty.Detach(ctx)
	return nil
}

func (s *Session) SetPointsToRedeem(ctx context.Context, points int64) (LoyaltyRedemption, error) {
	if err := s.guard(); err != nil {
		return LoyaltyRedemption{}, err
	}
	return s.Loyalty.SetPointsToRedeem(ctx, points)
}

func (s *Session) AddPayment(ctx context.Context, p Payment) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Payments.Add(ctx, p)
}

func (s *Session) RemovePayment(ctx context.Context, index int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.Payments.Remove(ctx, index)
}

// EligiblePromotions filters the active promotions down to those whose
// cart-level conditions the current cart meets.
func (s *Session) EligiblePromotions(active []PromotionMeta) []PromotionMeta {
	snap := s.Cart.Snapshot()
	if snap.Empty() {
		return nil
	}
	now := s.deps.Now()
	var out []PromotionMeta
	for _, m := range active {
		if m.EligibleFor(snap.Subtotal, snap.TotalQuantity, now) {
			out = append(out, m)
		}
	}
	return out
}

type CheckoutInput struct {
	Note        string
	CashierName string
}

// Checkout commits the transaction, prints the receipt and resets the
// session. On any gate or commit failure the session is left untouched.
func (s *Session) Checkout(ctx context.Context, in CheckoutInput) (Receipt, error) {
	s.mu.Lock()
	if s.settling {
		s.mu.Unlock()
		return Receipt{}, newError(CodeSessionBusy, "checkout already in progress for session %s", s.ID)
	}
	s.settling = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.settling = false
		s.settled = false
		s.mu.Unlock()
	}()

	snap := s.Cart.Snapshot()
	if snap.Empty() {
		s.deps.Notifier.Notify(ctx, notice(LevelError, CodeEmptyCart, NoticeEmptyCart))
		return Receipt{}, newError(CodeEmptyCart, "cannot check out an empty cart")
	}
	for _, l := range snap.Lines {
		if l.NeedsWeight() {
			s.deps.Notifier.Notify(ctx, notice(LevelError, CodeWeightRequired, NoticeWeightRequired, l.Name))
			return Receipt{}, newError(CodeWeightRequired, "%s has no weight", l.Name)
		}
	}
	totals := s.Totals()
	if totals.AmountTendered.LessThan(totals.GrandTotal) {
		short := totals.GrandTotal.Sub(totals.AmountTendered)
		s.deps.Notifier.Notify(ctx, notice(LevelError, CodeInsufficientPayment, NoticeInsufficientPayment, short.IntPart()))
		return Receipt{}, newError(CodeInsufficientPayment, "payment short by %s", short)
	}

	req := s.commitRequest(snap, totals, in)
	if s.deps.Sink == nil {
		return Receipt{}, newError(CodeCommitFailed, "no transaction sink configured")
	}
	res, err := s.deps.Sink.CreateTransaction(ctx, req)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", req.IdempotencyKey).Error("commit transaction")
		s.deps.Notifier.Notify(ctx, notice(LevelError, CodeCommitFailed, NoticeCommitFailed))
		return Receipt{}, wrapError(CodeCommitFailed, err, "commit transaction")
	}

	receipt := s.receipt(res, req, snap, totals)
	if res.Buffered {
		s.deps.Notifier.Notify(ctx, notice(LevelWarning, "", NoticeTransactionBuffered))
	} else {
		s.deps.Notifier.Notify(ctx, notice(LevelSuccess, "", NoticeTransactionSettled, res.TransactionRef))
	}
	s.print(ctx, &receipt)

	for _, h := range s.deps.Hooks {
		if err := h.TransactionSettled(ctx, req, receipt); err != nil {
			s.logger.WithError(err).WithField("transaction_ref", res.TransactionRef).Warn("settle hook failed")
		}
	}

	s.mu.Lock()
	s.settled = true
	s.last = &receipt
	s.mu.Unlock()
	s.bus.Publish(ctx, Event{Kind: Settled, CartVersion: snap.Version, TransactionRef: res.TransactionRef})

	s.Reset(ctx)
	return receipt, nil
}

// Reset returns the session to Empty.
func (s *Session) Reset(ctx context.Context) {
	s.Payments.Clear(ctx)
	s.Loyalty.Detach(ctx)
	s.Promo.RemoveAll(ctx)
	s.Cart.Clear(ctx)
}

func (s *Session) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settled {
		return newError(CodeSessionSettled, "session %s is settled", s.ID)
	}
	if s.settling {
		return newError(CodeSessionBusy, "checkout in progress for session %s", s.ID)
	}
	return nil
}

func (s *Session) print(ctx context.Context, r *Receipt) {
	if s.deps.Printer == nil || r.Buffered {
		r.Text = r.RenderText(s.deps.Lang)
		return
	}
	if err := s.deps.Printer.PrintReceipt(ctx, r.TransactionRef); err != nil {
		s.logger.WithError(err).WithField("transaction_ref", r.TransactionRef).Warn("print receipt")
		s.deps.Notifier.Notify(ctx, notice(LevelWarning, "", NoticeReceiptPrintFailed))
		r.Text = r.RenderText(s.deps.Lang)
	}
}

func (s *Session) commitRequest(snap CartSnapshot, totals Totals, in CheckoutInput) CommitRequest {
	req := CommitRequest{
		IdempotencyKey: uuid.NewString(),
		CustomerID:     CustomerSentinel,
		CustomerName:   walkInCustomerName,
		PromoCodes:     strings.Join(s.Promo.Codes(), ","),
		PointsRedeemed: s.Loyalty.Redemption().Points,
		Discount:       totals.TotalDiscount,
		Subtotal:       totals.Subtotal,
		GrandTotal:     totals.GrandTotal,
		Payments:       s.Payments.Payments(),
		Note:           in.Note,
		CashierName:    in.CashierName,
		StaffID:        s.Staff.ID,
		StaffName:      s.Staff.Name,
	}
	if req.CashierName == "" {
		req.CashierName = s.Staff.Name
	}
	if c, ok := s.Loyalty.Customer(); ok {
		req.CustomerID = c.ID
		req.CustomerName = c.Name
		req.CustomerPhone = c.Phone
	}
	for _, l := range snap.Lines {
		line := CommitLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitKind:  l.UnitKind,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.LineSubtotal,
		}
		if l.UnitKind == UnitKindBulkWeight {
			line.Quantity = 1
			line.WeightGrams = l.WeightGrams
		} else {
			line.Quantity = l.Quantity
			line.WeightGrams = decimal.Zero
		}
		req.Lines = append(req.Lines, line)
	}
	return req
}

func (s *Session) receipt(res CommitResult, req CommitRequest, snap CartSnapshot, totals Totals) Receipt {
	r := Receipt{
		TransactionRef: res.TransactionRef,
		Buffered:       res.Buffered,
		SettledAt:      s.deps.Now(),
		StaffName:      req.CashierName,
		CustomerName:   req.CustomerName,
		Lines:          snap.Lines,
		PointsRedeemed: req.PointsRedeemed,
		Payments:       req.Payments,
		Totals:         totals,
	}
	if req.CustomerID != CustomerSentinel {
		r.PointsEarned = EarnedPoints(totals.GrandTotal, s.Loyalty.Settings())
	}
	for _, p := range s.Promo.Promotions() {
		r.Promotions = append(r.Promotions, ReceiptPromotion{Code: p.Code, Name: p.DisplayName, Discount: p.AttributedDiscount})
	}
	return r
}
