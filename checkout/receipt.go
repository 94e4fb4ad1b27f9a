package checkout

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type ReceiptPromotion struct {
	Code     string
	Name     string
	Discount decimal.Decimal
}

// Receipt is what a settled transaction looks like to the customer. Text is
// only filled when the printer failed and a manual receipt has to be shown.
type Receipt struct {
	TransactionRef string
	Buffered       bool
	SettledAt      time.Time
	StaffName      string
	CustomerName   string
	Lines          []CartLine
	Promotions     []ReceiptPromotion
	PointsRedeemed int64
	PointsEarned   int64
	Payments       []Payment
	Totals         Totals
	Text           string
}

const receiptWidth = 40

// RenderText lays the receipt out for a plain text display.
func (r Receipt) RenderText(tag language.Tag) string {
	p := message.NewPrinter(tag)
	var b strings.Builder
	rule := strings.Repeat("-", receiptWidth) + "\n"

	row := func(left string, amount decimal.Decimal) {
		right := p.Sprintf("%d", amount.Round(0).IntPart())
		pad := receiptWidth - len(left) - len(right)
		if pad < 1 {
			pad = 1
		}
		b.WriteString(left + strings.Repeat(" ", pad) + right + "\n")
	}

	b.WriteString(r.TransactionRef + "\n")
	b.WriteString(r.SettledAt.Format("02/01/2006 15:04") + "\n")
	if r.StaffName != "" {
		b.WriteString(p.Sprintf(receiptCashier, r.StaffName) + "\n")
	}
	if r.CustomerName != "" {
		b.WriteString(p.Sprintf(receiptCustomer, r.CustomerName) + "\n")
	}
	b.WriteString(rule)
	for _, l := range r.Lines {
		b.WriteString(l.Name + "\n")
		if l.UnitKind == UnitKindBulkWeight {
			row(p.Sprintf("  %s g x %d/kg", l.WeightGrams.String(), l.UnitPrice.IntPart()), l.LineSubtotal)
		} else {
			row(p.Sprintf("  %d x %d", l.Quantity, l.UnitPrice.IntPart()), l.LineSubtotal)
		}
	}
	b.WriteString(rule)
	row(p.Sprintf(receiptSubtotal), r.Totals.Subtotal)
	for _, pr := range r.Promotions {
		row(p.Sprintf(receiptPromotion, pr.Code), pr.Discount.Neg())
	}
	if r.Totals.PointsDiscount.IsPositive() {
		row(p.Sprintf(receiptPoints, r.PointsRedeemed), r.Totals.PointsDiscount.Neg())
	}
	row(p.Sprintf(receiptTotal), r.Totals.GrandTotal)
	for _, pay := range r.Payments {
		row(strings.ToUpper(string(pay.Method)), pay.Amount)
	}
	row(p.Sprintf(receiptChange), r.Totals.Change)
	if r.PointsEarned > 0 {
		b.WriteString(p.Sprintf(receiptPointsEarned, r.PointsEarned) + "\n")
	}
	return b.String()
}
