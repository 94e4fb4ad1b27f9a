package handlers

import (
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

type lineView struct {
	ProductId   string          `json:"productId"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	Category    string          `json:"category,omitempty"`
	UnitKind    string          `json:"unitKind"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	WeightGrams decimal.Decimal `json:"weightGrams"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	NeedsWeight bool            `json:"needsWeight"`
	Promoted    bool            `json:"promoted"`
}

type promotionView struct {
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Kind               string          `json:"kind"`
	Discount           decimal.Decimal `json:"discount"`
	AffectedProductIds []string        `json:"affectedProductIds"`
}

type customerView struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	Tier         string `json:"tier,omitempty"`
	PointBalance int64  `json:"pointBalance"`
}

type redemptionView struct {
	Points       int64           `json:"points"`
	Discount     decimal.Decimal `json:"discount"`
	BelowMinimum bool            `json:"belowMinimum"`
}

type paymentView struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type totalsView struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	PromoDiscount  decimal.Decimal `json:"promoDiscount"`
	PointsDiscount decimal.Decimal `json:"pointsDiscount"`
	TotalDiscount  decimal.Decimal `json:"totalDiscount"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	AmountTendered decimal.Decimal `json:"amountTendered"`
	Change         decimal.Decimal `json:"change"`
}

type noticeView struct {
	Level   string `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type sessionView struct {
	Id         string          `json:"id"`
	State      string          `json:"state"`
	Version    uint64          `json:"version"`
	StaffName  string          `json:"staffName"`
	Lines      []lineView      `json:"lines"`
	Promotions []promotionView `json:"promotions"`
	Customer   *customerView   `json:"customer"`
	Points     redemptionView  `json:"points"`
	Payments   []paymentView   `json:"payments"`
	Totals     totalsView      `json:"totals"`
	Notices    []noticeView    `json:"notices"`
}

type promotionMetaView struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	MinTransaction decimal.Decimal `json:"minTransaction"`
	MinQuantity    int             `json:"minQuantity"`
	StartsAt       *time.Time      `json:"startsAt,omitempty"`
	EndsAt         *time.Time      `json:"endsAt,omitempty"`
}

type receiptView struct {
	TransactionRef string          `json:"transactionRef"`
	Buffered       bool            `json:"buffered"`
	SettledAt      time.Time       `json:"settledAt"`
	StaffName      string          `json:"staffName"`
	CustomerName   string          `json:"customerName"`
	Lines          []lineView      `json:"lines"`
	Promotions     []promotionView `json:"promotions"`
	PointsRedeemed int64           `json:"pointsRedeemed"`
	PointsEarned   int64           `json:"pointsEarned"`
	Payments       []paymentView   `json:"payments"`
	Totals         totalsView      `json:"totals"`
	Text           string          `json:"text"`
	Notices        []noticeView    `json:"notices"`
}

func newSessionView(e *Entry, lang language.Tag) sessionView {
	s := e.Session
	snap := s.Cart.Snapshot()
	affected := s.Promo.AffectedProducts()

	v := sessionView{
		Id:         s.ID,
		State:      string(s.State()),
		Version:    snap.Version,
		StaffName:  s.Staff.Name,
		Lines:      newLineViews(snap.Lines, affected),
		Promotions: []promotionView{},
		Payments:   newPaymentViews(s.Payments.Payments()),
		Totals:     newTotalsView(s.Totals()),
		Notices:    newNoticeViews(e.Notices(), lang),
	}
	for _, p := range s.Promo.Promotions() {
		v.Promotions = append(v.Promotions, promotionView{
			Code:               p.Code,
			Name:               p.DisplayName,
			Kind:               string(p.Kind),
			Discount:           p.AttributedDiscount,
			AffectedProductIds: p.AffectedProductIDs,
		})
	}
	if c, ok := s.Loyalty.Customer(); ok {
		cv := newCustomerView(c)
		v.Customer = &cv
	}
	r := s.Loyalty.Redemption()
	v.Points = redemptionView{Points: r.Points, Discount: r.Discount, BelowMinimum: r.BelowMinimum}
	return v
}

func newLineViews(lines []checkout.CartLine, affected map[string]bool) []lineView {
	out := make([]lineView, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineView{
			ProductId:   l.ProductID,
			Name:        l.Name,
			SKU:         l.SKU,
			Category:    l.Category,
			UnitKind:    string(l.UnitKind),
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			WeightGrams: l.WeightGrams,
			Subtotal:    l.LineSubtotal,
			NeedsWeight: l.NeedsWeight(),
			Promoted:    affected[l.ProductID],
		})
	}
	return out
}

func newPaymentViews(payments []checkout.Payment) []paymentView {
	out := make([]paymentView, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentView{Method: string(p.Method), Amount: p.Amount, Reference: p.Reference})
	}
	return out
}

func newTotalsView(t checkout.Totals) totalsView {
	return totalsView{
		Subtotal:       t.Subtotal,
		PromoDiscount:  t.PromoDiscount,
		PointsDiscount: t.PointsDiscount,
		TotalDiscount:  t.TotalDiscount,
		GrandTotal:     t.GrandTotal,
		AmountTendered: t.AmountTendered,
		Change:         t.Change,
	}
}

func newCustomerView(c checkout.Customer) customerView {
	return customerView{Id: c.ID, Name: c.Name, Phone: c.Phone, Tier: c.Tier, PointBalance: c.PointBalance}
}

func newNoticeViews(notices []checkout.Notice, lang language.Tag) []noticeView {
	out := make([]noticeView, 0, len(notices))
	for _, n := range notices {
		out = append(out, noticeView{Level: string(n.Level), Code: string(n.Code), Message: n.Render(lang)})
	}
	return out
}

func newPromotionMetaViews(metas []checkout.PromotionMeta) []promotionMetaView {
	out := make([]promotionMetaView, 0, len(metas))
	for _, m := range metas {
		v := promotionMetaView{
			Code:           m.Code,
			Name:           m.Name,
			Kind:           string(m.Kind()),
			MinTransaction: m.MinTransaction,
			MinQuantity:    m.MinQuantity,
		}
		if !m.StartsAt.IsZero() {
			t := m.StartsAt
			v.StartsAt = &t
		}
		if !m.EndsAt.IsZero() {
			t := m.EndsAt
			v.EndsAt = &t
		}
		out = append(out, v)
	}
	return out
}

func newReceiptView(r checkout.Receipt, notices []checkout.Notice, lang language.Tag) receiptView {
	v := receiptView{
		TransactionRef: r.TransactionRef,
		Buffered:       r.Buffered,
		SettledAt:      r.SettledAt,
		StaffName:      r.StaffName,
		CustomerName:   r.CustomerName,
		Lines:          newLineViews(r.Lines, nil),
		Promotions:     []promotionView{},
		PointsRedeemed: r.PointsRedeemed,
		PointsEarned:   r.PointsEarned,
		Payments:       newPaymentViews(r.Payments),
		Totals:         newTotalsView(r.Totals),
		Text:           r.Text,
		Notices:        newNoticeViews(notices, lang),
	}
	for _, p := range r.Promotions {
		v.Promotions = append(v.Promotions, promotionView{Code: p.Code, Name: p.Name, Discount: p.Discount})
	}
	if v.Text == "" {
		v.Text = r.RenderText(lang)
	}
	return v
}
