package checkout

import (
	"context"

	"github.com/shopspring/decimal"
)

type UnitKind string

const (
	UnitKindFixedUnit  UnitKind = "satuan"
	UnitKindBulkWeight UnitKind = "curah"
)

// CustomerSentinel is sent to the oracle and the sink when no customer is
// attached.
const CustomerSentinel = "0"

// Product is a catalog entry. Stock is whole units for FixedUnit products
// and kilograms for BulkWeight products.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Category  string
	UnitKind  UnitKind
	UnitPrice decimal.Decimal
	Stock     decimal.Decimal
}

type Customer struct {
	ID           string
	Name         string
	Phone        string
	Tier         string
	PointBalance int64
}

type PointSettings struct {
	PointValue              decimal.Decimal
	MinExchange             int64
	MinTransactionForPoints decimal.Decimal
}

type OracleLine struct {
	ProductID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	WeightGrams decimal.Decimal
}

type OracleRequest struct {
	Code          string
	Subtotal      decimal.Decimal
	TotalQuantity int
	CustomerID    string
	Lines         []OracleLine
}

// OracleResponse carries either an acceptance with its discount or a
// rejection with a human readable message.
type OracleResponse struct {
	Accepted           bool
	Message            string
	DiscountAmount     decimal.Decimal
	Promotion          PromotionMeta
	AffectedProductIDs []string
}

type CommitLine struct {
	ProductID   string
	Name        string
	UnitKind    UnitKind
	Quantity    int
	WeightGrams decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

type CommitRequest struct {
	IdempotencyKey string
	CustomerID     string
	CustomerName   string
	CustomerPhone  string
	Lines          []CommitLine
	Payments       []Payment
	PromoCodes     string
	PointsRedeemed int64
	Discount       decimal.Decimal
	Subtotal       decimal.Decimal
	GrandTotal     decimal.Decimal
	Note           string
	CashierName    string
	StaffID        string
	StaffName      string
}

type CommitResult struct {
	TransactionRef string
	Message        string
	// Buffered is set when the request was queued for later delivery
	// instead of being committed upstream.
	Buffered bool
}

type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
}

type CustomerDirectory interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
}

type PromotionOracle interface {
	ApplyPromotion(ctx context.Context, req OracleRequest) (OracleResponse, error)
}

type PointSettingsSource interface {
	GetPointSettings(ctx context.Context) (PointSettings, error)
}

type TransactionSink interface {
	CreateTransaction(ctx context.Context, req CommitRequest) (CommitResult, error)
}

type ReceiptPrinter interface {
	PrintReceipt(ctx context.Context, transactionRef string) error
}
