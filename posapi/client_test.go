package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.PosAPISettings{
		BaseURL:       srv.URL,
		APIKey:        "secret",
		APIKeyHeader:  "X-API-Key",
		RatePerSecond: 1000,
		Burst:         10,
		Timeout:       5 * time.Second,
		PrinterName:   "EPSON-TM",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestListProductsAcceptsBareArrayAndEnvelope(t *testing.T) {
	body := `[
		{"id":1,"nama":"Beras","sku":"BR-1","kategori":"Sembako","hargaJual":12000,"stok":"25.5","jenisProduk":"curah"},
		{"id":2,"nama":"Sabun","barcode":"899","hargaJual":"3500","stok":10,"jenisProduk":"satuan"},
		{"id":0,"nama":"broken"}
	]`
	for name, payload := range map[string]string{
		"bare":     body,
		"envelope": `{"success":true,"data":` + body + `}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != pathProducts {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.Header.Get("X-API-Key") != "secret" {
					t.Errorf("api key header missing")
				}
				io.WriteString(w, payload)
			})
			got, err := c.ListProducts(context.Background())
			if err != nil {
				t.Fatalf("ListProducts: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("want 2 valid products, got %d", len(got))
			}
			if got[0].ID != "1" || got[0].UnitKind != checkout.UnitKindBulkWeight || !got[0].Stock.Equal(decimal.RequireFromString("25.5")) {
				t.Fatalf("bulk product = %+v", got[0])
			}
			if got[1].UnitKind != checkout.UnitKindFixedUnit || got[1].SKU != "899" || !got[1].UnitPrice.Equal(decimal.NewFromInt(3500)) {
				t.Fatalf("fixed product = %+v", got[1])
			}
		})
	}
}

func TestListCustomers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":7,"nama":"Sari","telepon":"0812","tipe":"gold","poin":350}]}`)
	})
	got, err := c.ListCustomers(context.Background())
	if err != nil {
		t.Fatalf("ListCustomers: %v", err)
	}
	if len(got) != 1 || got[0].ID != "7" || got[0].PointBalance != 350 || got[0].Tier != "gold" {
		t.Fatalf("customers = %+v", got)
	}
}

func TestApplyPromotionRequestAndAcceptance(t *testing.T) {
	var seen applyRequestDTO
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != pathApplyPromo {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{
			"success": true,
			"message": "Promo berhasil diterapkan",
			"diskonJumlah": 3000,
			"totalSetelah": 27000,
			"promoProdukIds": [1],
			"promo": {"kode":"Beras10","nama":"Diskon Beras","tipe":"persen","tipePromo":"diskon_produk","nilai":10,"promoProdukIds":[1]}
		}`)
	})

	resp, err := c.ApplyPromotion(context.Background(), checkout.OracleRequest{
		Code:          "Beras10",
		Subtotal:      decimal.NewFromInt(30000),
		TotalQuantity: 3,
		CustomerID:    checkout.CustomerSentinel,
		Lines: []checkout.OracleLine{
			{ProductID: "1", Quantity: 1, UnitPrice: decimal.NewFromInt(12000), WeightGrams: decimal.NewFromInt(500)},
			{ProductID: "2", Quantity: 2, UnitPrice: decimal.NewFromInt(12000), WeightGrams: decimal.Zero},
		},
	})
	if err != nil {
		t.Fatalf("ApplyPromotion: %v", err)
	}
	if seen.Kode != "Beras10" || seen.PelangganID != 0 || len(seen.Items) != 2 || seen.Items[0].ProdukID != 1 {
		t.Fatalf("request = %+v", seen)
	}
	if !seen.Items[0].BeratGram.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("weight not forwarded: %+v", seen.Items[0])
	}
	if !resp.Accepted || !resp.DiscountAmount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Promotion.Code != "Beras10" || resp.Promotion.Kind() != checkout.PromotionProductDiscount {
		t.Fatalf("meta = %+v", resp.Promotion)
	}
	if len(resp.AffectedProductIDs) != 1 || resp.AffectedProductIDs[0] != "1" {
		t.Fatalf("affected = %v", resp.AffectedProductIDs)
	}
}

func TestApplyPromotionRejections(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"success false", http.StatusOK, `{"success":false,"message":"Kode promo tidak valid"}`},
		{"client error with message", http.StatusBadRequest, `{"success":false,"message":"Kode promo tidak valid"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			})
			resp, err := c.ApplyPromotion(context.Background(), checkout.OracleRequest{Code: "NOPE"})
			if err != nil {
				t.Fatalf("rejection should not be an error: %v", err)
			}
			if resp.Accepted || resp.Message != "Kode promo tidak valid" {
				t.Fatalf("response = %+v", resp)
			}
		})
	}
}

func TestApplyPromotionServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream down")
	})
	_, err := c.ApplyPromotion(context.Background(), checkout.OracleRequest{Code: "X"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsUnavailable(err) {
		t.Fatalf("5xx should be unavailable: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("want APIError 502, got %v", err)
	}
}

func TestIsUnavailable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad request", &APIError{Status: 400}, false},
		{"too many requests", &APIError{Status: 429}, true},
		{"server error", &APIError{Status: 503}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", errors.New("decode"), false},
	}
	for _, tc := range cases {
		if got := IsUnavailable(tc.err); got != tc.want {
			t.Errorf("%s: IsUnavailable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGetPointSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{"pointValue":500,"minExchange":100,"minTransactionForPoints":25000}}`)
	})
	s, err := c.GetPointSettings(context.Background())
	if err != nil {
		t.Fatalf("GetPointSettings: %v", err)
	}
	if !s.PointValue.Equal(decimal.NewFromInt(500)) || s.MinExchange != 100 || !s.MinTransactionForPoints.Equal(decimal.NewFromInt(25000)) {
		t.Fatalf("settings = %+v", s)
	}
}

func TestCreateTransaction(t *testing.T) {
	var seen createTransaksiDTO
	var key string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode: %v", err)
		}
		io.WriteString(w, `{"success":true,"message":"ok","data":{"transaksi":{"nomorTransaksi":"TRX-001"}}}`)
	})
	res, err := c.CreateTransaction(context.Background(), checkout.CommitRequest{
		IdempotencyKey: "key-1",
		CustomerID:     checkout.CustomerSentinel,
		CustomerName:   "Umum",
		Lines: []checkout.CommitLine{
			{ProductID: "1", Name: "Beras", UnitKind: checkout.UnitKindBulkWeight, Quantity: 1, WeightGrams: decimal.NewFromInt(250), UnitPrice: decimal.NewFromInt(50000), Subtotal: decimal.NewFromInt(12500)},
		},
		Payments:       []checkout.Payment{{Method: checkout.PaymentCash, Amount: decimal.NewFromInt(20000)}},
		PromoCodes:     "A,B",
		PointsRedeemed: 10,
		Discount:       decimal.NewFromInt(1000),
		StaffID:        "3",
		StaffName:      "Dewi",
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if res.TransactionRef != "TRX-001" {
		t.Fatalf("ref = %q", res.TransactionRef)
	}
	if key != "key-1" {
		t.Fatalf("idempotency header = %q", key)
	}
	if seen.PelangganID != "0" || seen.PromoKode != "A,B" || seen.PoinDitukar != 10 || len(seen.Items) != 1 || len(seen.Pembayaran) != 1 {
		t.Fatalf("request = %+v", seen)
	}
	if seen.Pembayaran[0].Metode != "tunai" {
		t.Fatalf("payment method = %q", seen.Pembayaran[0].Metode)
	}
}

func TestCreateTransactionWithoutNumberFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"data":{}}`)
	})
	if _, err := c.CreateTransaction(context.Background(), checkout.CommitRequest{}); err == nil {
		t.Fatalf("expected error for missing transaction number")
	}
}

func TestPrintReceipt(t *testing.T) {
	var seen printReceiptDTO
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathPrintReceipt {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&seen)
		io.WriteString(w, `{"success":true}`)
	})
	if err := c.PrintReceipt(context.Background(), "TRX-9"); err != nil {
		t.Fatalf("PrintReceipt: %v", err)
	}
	if seen.TransactionNo != "TRX-9" || seen.PrinterName != "EPSON-TM" {
		t.Fatalf("request = %+v", seen)
	}
}

func TestListActivePromotionsSkipsInactive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"kode":"a","status":"aktif","tipePromo":"bundling","hargaBundling":20000,"promoProdukIds":[1,2]},
			{"kode":"b","status":"nonaktif"},
			{"kode":"","status":"aktif"}
		]`)
	})
	got, err := c.ListActivePromotions(context.Background())
	if err != nil {
		t.Fatalf("ListActivePromotions: %v", err)
	}
	if len(got) != 1 || got[0].Code != "A" || got[0].Kind() != checkout.PromotionBundling {
		t.Fatalf("promotions = %+v", got)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.PosAPISettings{}); err == nil {
		t.Fatalf("expected error")
	}
}
