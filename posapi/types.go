package posapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/shopspring/decimal"
)

const defaultTimeout = 15 * time.Second

const (
	pathProducts      = "/api/produk"
	pathCustomers     = "/api/pelanggan"
	pathActivePromos  = "/api/promo/active"
	pathApplyPromo    = "/api/promo/apply"
	pathPointSettings = "/api/poin/settings"
	pathTransactions  = "/api/transaksi"
	pathPrintReceipt  = "/api/printer/receipt"
)

type produkDTO struct {
	ID          int64           `json:"id" validate:"gt=0"`
	Nama        string          `json:"nama" validate:"required"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	Kategori    string          `json:"kategori"`
	HargaJual   decimal.Decimal `json:"hargaJual"`
	Stok        decimal.Decimal `json:"stok"`
	Satuan      string          `json:"satuan"`
	JenisProduk string          `json:"jenisProduk" validate:"omitempty,oneof=curah satuan"`
}

func (p produkDTO) product() checkout.Product {
	kind := checkout.UnitKindFixedUnit
	if p.JenisProduk == string(checkout.UnitKindBulkWeight) {
		kind = checkout.UnitKindBulkWeight
	}
	sku := p.SKU
	if sku == "" {
		sku = p.Barcode
	}
	return checkout.Product{
		ID:        formatID(p.ID),
		Name:      p.Nama,
		SKU:       sku,
		Category:  p.Kategori,
		UnitKind:  kind,
		UnitPrice: p.HargaJual,
		Stock:     p.Stok,
	}
}

type pelangganDTO struct {
	ID      int64  `json:"id" validate:"gt=0"`
	Nama    string `json:"nama" validate:"required"`
	Telepon string `json:"telepon"`
	Tipe    string `json:"tipe"`
	Poin    int64  `json:"poin" validate:"gte=0"`
}

func (p pelangganDTO) customer() checkout.Customer {
	return checkout.Customer{
		ID:           formatID(p.ID),
		Name:         p.Nama,
		Phone:        p.Telepon,
		Tier:         p.Tipe,
		PointBalance: p.Poin,
	}
}

type promoProdukDTO struct {
	ID   int64  `json:"id"`
	Nama string `json:"nama"`
}

type promoDTO struct {
	ID             int64           `json:"id"`
	Nama           string          `json:"nama"`
	Kode           string          `json:"kode"`
	Tipe           string          `json:"tipe"`
	TipePromo      string          `json:"tipePromo"`
	Nilai          decimal.Decimal `json:"nilai"`
	MaxDiskon      decimal.Decimal `json:"maxDiskon"`
	MinTransaksi   decimal.Decimal `json:"minTransaksi"`
	MinQuantity    int             `json:"minQuantity"`
	MinGramasi     decimal.Decimal `json:"minGramasi"`
	TanggalMulai   string          `json:"tanggalMulai"`
	TanggalSelesai string          `json:"tanggalSelesai"`
	Status         string          `json:"status"`
	ProdukX        *promoProdukDTO `json:"produkX"`
	ProdukY        *promoProdukDTO `json:"produkY"`
	TipeBuyGet     string          `json:"tipeBuyGet"`
	BuyQuantity    int             `json:"buyQuantity"`
	GetQuantity    int             `json:"getQuantity"`
	HargaBundling  decimal.Decimal `json:"hargaBundling"`
	PromoProdukIDs []int64         `json:"promoProdukIds"`
}

const (
	promoKindProductDiscount = "diskon_produk"
	promoKindBundling        = "bundling"
	promoKindBuyXGetY        = "buy_x_get_y"
	valueTypePercent         = "persen"
	buyGetSameProduct        = "sama"
	promoStatusActive        = "aktif"
)

// meta maps the backend's promotion record onto the engine's tagged union.
// A product discount without a product list is a cart-wide percentage or
// fixed amount.
func (p promoDTO) meta() checkout.PromotionMeta {
	allow := formatIDs(p.PromoProdukIDs)
	m := checkout.PromotionMeta{
		Code:           strings.TrimSpace(p.Kode),
		Name:           p.Nama,
		AllowList:      allow,
		MinTransaction: p.MinTransaksi,
		MinQuantity:    p.MinQuantity,
		StartsAt:       parseDate(p.TanggalMulai, false),
		EndsAt:         parseDate(p.TanggalSelesai, true),
	}
	isPercent := strings.EqualFold(p.Tipe, valueTypePercent)

	switch strings.ToLower(strings.TrimSpace(p.TipePromo)) {
	case promoKindProductDiscount, "":
		switch {
		case len(allow) > 0:
			m.Payload = checkout.ProductDiscountPayload{
				ProductIDs:  allow,
				Value:       p.Nilai,
				IsPercent:   isPercent,
				MaxDiscount: p.MaxDiskon,
				MinGrams:    p.MinGramasi,
			}
		case isPercent:
			m.Payload = checkout.PercentagePayload{Percent: p.Nilai, MaxDiscount: p.MaxDiskon}
		default:
			m.Payload = checkout.FixedAmountPayload{Amount: p.Nilai}
		}
	case promoKindBundling:
		m.Payload = checkout.BundlingPayload{ProductIDs: allow, BundlePrice: p.HargaBundling}
	case promoKindBuyXGetY:
		payload := checkout.BuyXGetYPayload{
			SameProduct: strings.EqualFold(p.TipeBuyGet, buyGetSameProduct),
			BuyQuantity: p.BuyQuantity,
			GetQuantity: p.GetQuantity,
		}
		if p.ProdukX != nil {
			payload.ProductX = formatID(p.ProdukX.ID)
		}
		if p.ProdukY != nil {
			payload.ProductY = formatID(p.ProdukY.ID)
		}
		if payload.SameProduct {
			payload.ProductY = payload.ProductX
		}
		m.Payload = payload
	default:
		m.Payload = checkout.UnknownPayload{RawKind: p.TipePromo}
	}
	return m
}

type applyItemDTO struct {
	ProdukID    int64           `json:"produkId"`
	Jumlah      int             `json:"jumlah"`
	HargaSatuan decimal.Decimal `json:"hargaSatuan"`
	BeratGram   decimal.Decimal `json:"beratGram"`
}

type applyRequestDTO struct {
	Kode          string          `json:"kode"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalQuantity int             `json:"totalQuantity"`
	PelangganID   int64           `json:"pelangganId"`
	Items         []applyItemDTO  `json:"items"`
}

type applyResponseDTO struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Promo          *promoDTO       `json:"promo"`
	DiskonJumlah   decimal.Decimal `json:"diskonJumlah"`
	TotalSetelah   decimal.Decimal `json:"totalSetelah"`
	PromoProdukIDs []int64         `json:"promoProdukIds"`
}

func newApplyRequest(req checkout.OracleRequest) (applyRequestDTO, error) {
	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return applyRequestDTO{}, fmt.Errorf("customer id: %w", err)
	}
	out := applyRequestDTO{
		Kode:          req.Code,
		Subtotal:      req.Subtotal,
		TotalQuantity: req.TotalQuantity,
		PelangganID:   customerID,
		Items:         make([]applyItemDTO, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		id, err := parseID(l.ProductID)
		if err != nil {
			return applyRequestDTO{}, fmt.Errorf("product id: %w", err)
		}
		out.Items = append(out.Items, applyItemDTO{
			ProdukID:    id,
			Jumlah:      l.Quantity,
			HargaSatuan: l.UnitPrice,
			BeratGram:   l.WeightGrams,
		})
	}
	return out, nil
}

func (r applyResponseDTO) response() checkout.OracleResponse {
	if !r.Success {
		return checkout.OracleResponse{Accepted: false, Message: r.Message}
	}
	out := checkout.OracleResponse{
		Accepted:           true,
		Message:            r.Message,
		DiscountAmount:     r.DiskonJumlah,
		AffectedProductIDs: formatIDs(r.PromoProdukIDs),
	}
	if r.Promo != nil {
		out.Promotion = r.Promo.meta()
	}
	return out
}

type poinSettingsDTO struct {
	PointValue              decimal.Decimal `json:"pointValue"`
	MinExchange             int64           `json:"minExchange" validate:"gte=0"`
	MinTransactionForPoints decimal.Decimal `json:"minTransactionForPoints"`
}

func (p poinSettingsDTO) settings() checkout.PointSettings {
	return checkout.PointSettings{
		PointValue:              p.PointValue,
		MinExchange:             p.MinExchange,
		MinTransactionForPoints: p.MinTransactionForPoints,
	}
}

type transaksiItemDTO struct {
	ProdukID    int64           `json:"produkId"`
	ProdukNama  string          `json:"produkNama"`
	Jumlah      int             `json:"jumlah"`
	BeratGram   decimal.Decimal `json:"beratGram"`
	HargaSatuan decimal.Decimal `json:"hargaSatuan"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type pembayaranDTO struct {
	Metode    string          `json:"metode"`
	Jumlah    decimal.Decimal `json:"jumlah"`
	Referensi string          `json:"referensi,omitempty"`
}

type createTransaksiDTO struct {
	PelangganID   string             `json:"pelangganId"`
	PelangganNama string             `json:"pelangganNama"`
	PelangganTelp string             `json:"pelangganTelp"`
	Items         []transaksiItemDTO `json:"items"`
	Pembayaran    []pembayaranDTO    `json:"pembayaran"`
	PromoKode     string             `json:"promoKode"`
	PoinDitukar   int64              `json:"poinDitukar"`
	Diskon        decimal.Decimal    `json:"diskon"`
	Catatan       string             `json:"catatan"`
	Kasir         string             `json:"kasir"`
	StaffID       string             `json:"staffId"`
	StaffNama     string             `json:"staffNama"`
}

func newCreateTransaksi(req checkout.CommitRequest) (createTransaksiDTO, error) {
	out := createTransaksiDTO{
		PelangganID:   req.CustomerID,
		PelangganNama: req.CustomerName,
		PelangganTelp: req.CustomerPhone,
		Items:         make([]transaksiItemDTO, 0, len(req.Lines)),
		Pembayaran:    make([]pembayaranDTO, 0, len(req.Payments)),
		PromoKode:     req.PromoCodes,
		PoinDitukar:   req.PointsRedeemed,
		Diskon:        req.Discount,
		Catatan:       req.Note,
		Kasir:         req.CashierName,
		StaffID:       req.StaffID,
		StaffNama:     req.StaffName,
	}
	for _, l := range req.Lines {
		id, err := parseID(l.ProductID)
		if err != nil {
			return createTransaksiDTO{}, fmt.Errorf("product id: %w", err)
		}
		out.Items = append(out.Items, transaksiItemDTO{
			ProdukID:    id,
			ProdukNama:  l.Name,
			Jumlah:      l.Quantity,
			BeratGram:   l.WeightGrams,
			HargaSatuan: l.UnitPrice,
			Subtotal:    l.Subtotal,
		})
	}
	for _, p := range req.Payments {
		out.Pembayaran = append(out.Pembayaran, pembayaranDTO{
			Metode:    string(p.Method),
			Jumlah:    p.Amount,
			Referensi: p.Reference,
		})
	}
	return out, nil
}

type transaksiResponseDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Transaksi struct {
			NomorTransaksi string `json:"nomorTransaksi"`
		} `json:"transaksi"`
	} `json:"data"`
}

type printReceiptDTO struct {
	TransactionNo string `json:"transactionNo"`
	PrinterName   string `json:"printerName,omitempty"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatIDs(ids []int64) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, formatID(id))
	}
	return out
}

func parseID(id string) (int64, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not numeric", id)
	}
	return n, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// parseDate reads the backend's promotion dates. A date without a time of
// day covers the whole day when it ends a window.
func parseDate(raw string, endOfDay bool) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" && endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t
	}
	return time.Time{}
}
