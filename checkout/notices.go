package checkout

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice keys. Each has an Indonesian and an English catalog entry.
const (
	NoticeOutOfStock           = "notice.out_of_stock"
	NoticeStockExceeded        = "notice.stock_exceeded"
	NoticeInvalidWeight        = "notice.invalid_weight"
	NoticeBulkAlreadyInCart    = "notice.bulk_already_in_cart"
	NoticeLineRemoved          = "notice.line_removed"
	NoticeEmptyCart            = "notice.empty_cart"
	NoticeDuplicatePromotion   = "notice.duplicate_promotion"
	NoticePromotionApplied     = "notice.promotion_applied"
	NoticePromotionRejected    = "notice.promotion_rejected"
	NoticePromotionRemoved     = "notice.promotion_removed"
	NoticeOracleUnavailable    = "notice.oracle_unavailable"
	NoticePromotionsAdjusted   = "notice.promotions_adjusted"
	NoticePromotionsCleared    = "notice.promotions_cleared"
	NoticeNoCustomer           = "notice.no_customer"
	NoticePointsClampedBalance = "notice.points_clamped_balance"
	NoticePointsClampedTotal   = "notice.points_clamped_total"
	NoticeBelowMinimumExchange = "notice.below_minimum_exchange"
	NoticeLoyaltyNotConfigured = "notice.loyalty_not_configured"
	NoticeWeightRequired       = "notice.weight_required"
	NoticeInsufficientPayment  = "notice.insufficient_payment"
	NoticePaymentAmount        = "notice.payment_amount"
	NoticePaymentReference     = "notice.payment_reference"
	NoticeReceiptPrintFailed   = "notice.receipt_print_failed"
	NoticeTransactionSettled   = "notice.transaction_settled"
	NoticeTransactionBuffered  = "notice.transaction_buffered"
	NoticeCommitFailed         = "notice.commit_failed"
	NoticeBalanceChanged       = "notice.balance_changed"
)

// Receipt labels share the notice catalog.
const (
	receiptCashier      = "receipt.cashier"
	receiptCustomer     = "receipt.customer"
	receiptSubtotal     = "receipt.subtotal"
	receiptPromotion    = "receipt.promotion"
	receiptPoints       = "receipt.points"
	receiptTotal        = "receipt.total"
	receiptChange       = "receipt.change"
	receiptPointsEarned = "receipt.points_earned"
)

var catalogEntries = map[string][2]string{
	NoticeOutOfStock:           {"Stok %s habis", "%s is out of stock"},
	NoticeStockExceeded:        {"Stok %s tidak mencukupi (maksimal %v)", "Not enough stock for %s (max %v)"},
	NoticeInvalidWeight:        {"Berat harus lebih dari 0", "Weight must be greater than 0"},
	NoticeBulkAlreadyInCart:    {"%s sudah ada di keranjang, ubah beratnya", "%s is already in the cart, edit its weight"},
	NoticeLineRemoved:          {"%s dihapus dari keranjang", "%s removed from the cart"},
	NoticeEmptyCart:            {"Keranjang kosong", "The cart is empty"},
	NoticeDuplicatePromotion:   {"Promo %s sudah diterapkan", "Promotion %s is already applied"},
	NoticePromotionApplied:     {"Promo '%s' berhasil diterapkan", "Promotion '%s' applied"},
	NoticePromotionRejected:    {"Promo %s ditolak: %s", "Promotion %s rejected: %s"},
	NoticePromotionRemoved:     {"Promo %s dihapus", "Promotion %s removed"},
	NoticeOracleUnavailable:    {"Gagal memvalidasi promo %s", "Could not validate promotion %s"},
	NoticePromotionsAdjusted:   {"Info: Beberapa promo disesuaikan/dihapus karena perubahan keranjang", "Some promotions were adjusted or removed because the cart changed"},
	NoticePromotionsCleared:    {"Semua promo dihapus", "All promotions were removed"},
	NoticeNoCustomer:           {"Pilih pelanggan terlebih dahulu untuk menukar poin", "Attach a customer before redeeming points"},
	NoticePointsClampedBalance: {"Poin pelanggan hanya %d", "The customer only has %d points"},
	NoticePointsClampedTotal:   {"Poin disesuaikan menjadi %d sesuai total belanja", "Points reduced to %d to fit the purchase total"},
	NoticeBelowMinimumExchange: {"Minimal penukaran poin: %d", "Minimum point exchange is %d"},
	NoticeLoyaltyNotConfigured: {"Pengaturan poin belum tersedia", "Point redemption is not configured"},
	NoticeWeightRequired:       {"Masukkan berat untuk %s", "Enter a weight for %s"},
	NoticeInsufficientPayment:  {"Pembayaran kurang Rp %d", "Payment is short by Rp %d"},
	NoticePaymentAmount:        {"Jumlah pembayaran harus lebih dari 0", "Payment amount must be greater than 0"},
	NoticePaymentReference:     {"Nomor referensi diperlukan untuk pembayaran non-tunai", "A reference number is required for non-cash payments"},
	NoticeReceiptPrintFailed:   {"Gagal mencetak struk, gunakan struk manual", "Receipt printing failed, use the manual receipt"},
	NoticeTransactionSettled:   {"Transaksi %s berhasil", "Transaction %s completed"},
	NoticeTransactionBuffered:  {"Transaksi disimpan offline dan akan dikirim ulang", "Transaction saved offline and will be retried"},
	NoticeCommitFailed:         {"Gagal menyimpan transaksi", "Could not save the transaction"},
	NoticeBalanceChanged:       {"Saldo poin pelanggan berubah menjadi %d, periksa kembali total", "The customer's point balance changed to %d, check the total again"},

	receiptCashier:      {"Kasir: %s", "Cashier: %s"},
	receiptCustomer:     {"Pelanggan: %s", "Customer: %s"},
	receiptSubtotal:     {"Subtotal", "Subtotal"},
	receiptPromotion:    {"Promo %s", "Promotion %s"},
	receiptPoints:       {"Poin (%d)", "Points (%d)"},
	receiptTotal:        {"Total", "Total"},
	receiptChange:       {"Kembali", "Change"},
	receiptPointsEarned: {"Poin didapat: %d", "Points earned: %d"},
}

func init() {
	for key, msgs := range catalogEntries {
		_ = message.SetString(language.Indonesian, key, msgs[0])
		_ = message.SetString(language.English, key, msgs[1])
	}
}

// Notice is a user-facing message raised by an engine operation, either
// alongside a returned error or for an informational no-op.
type Notice struct {
	Level Level
	Code  ErrorCode
	Key   string
	Args  []any
}

// Render formats the notice in the given language. Numbers are grouped per
// locale.
func (n Notice) Render(tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf(n.Key, n.Args...)
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger logrus.FieldLogger
	Lang   language.Tag
}

func (l LogNotifier) Notify(_ context.Context, n Notice) {
	if l.Logger == nil {
		return
	}
	entry := l.Logger.WithFields(logrus.Fields{
		"notice": n.Key,
		"code":   n.Code,
	})
	msg := n.Render(l.Lang)
	switch n.Level {
	case LevelError:
		entry.Warn(msg)
	default:
		entry.Debug(msg)
	}
}

// NoticeRecorder buffers notices until drained, so a request handler can
// return everything an operation raised.
type NoticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *NoticeRecorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *NoticeRecorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notice) {}

func notice(level Level, code ErrorCode, key string, args ...any) Notice {
	return Notice{Level: level, Code: code, Key: key, Args: args}
}
