package checkout

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

func TestReceiptLabelsFollowLocale(t *testing.T) {
	r := Receipt{
		TransactionRef: "TRX-1",
		SettledAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		StaffName:      "Sari",
		CustomerName:   "Budi",
		Promotions:     []ReceiptPromotion{{Code: "HEMAT", Discount: decimal.NewFromInt(1000)}},
		PointsRedeemed: 10,
		PointsEarned:   2,
		Totals: Totals{
			Subtotal:       decimal.NewFromInt(10000),
			PointsDiscount: decimal.NewFromInt(1000),
			GrandTotal:     decimal.NewFromInt(8000),
			Change:         decimal.NewFromInt(2000),
		},
	}

	cases := []struct {
		tag  language.Tag
		want []string
		not  []string
	}{
		{
			tag:  language.Indonesian,
			want: []string{"Kasir: Sari", "Pelanggan: Budi", "Promo HEMAT", "Poin (10)", "Kembali", "Poin didapat: 2"},
			not:  []string{"Cashier", "Change"},
		},
		{
			tag:  language.English,
			want: []string{"Cashier: Sari", "Customer: Budi", "Promotion HEMAT", "Points (10)", "Change", "Points earned: 2"},
			not:  []string{"Kasir", "Kembali", "Pelanggan"},
		},
	}
	for _, tc := range cases {
		out := r.RenderText(tc.tag)
		for _, w := range tc.want {
			if !strings.Contains(out, w) {
				t.Errorf("%s receipt missing %q:\n%s", tc.tag, w, out)
			}
		}
		for _, w := range tc.not {
			if strings.Contains(out, w) {
				t.Errorf("%s receipt contains %q:\n%s", tc.tag, w, out)
			}
		}
	}
}
