package checkout

import "fmt"

type ErrorCode string

const (
	CodeOutOfStock           ErrorCode = "OUT_OF_STOCK"
	CodeStockExceeded        ErrorCode = "STOCK_EXCEEDED"
	CodeInvalidWeight        ErrorCode = "INVALID_WEIGHT"
	CodeEmptyCart            ErrorCode = "EMPTY_CART"
	CodeDuplicatePromotion   ErrorCode = "DUPLICATE_PROMOTION"
	CodeNoCustomerAttached   ErrorCode = "NO_CUSTOMER_ATTACHED"
	CodeOracleUnavailable    ErrorCode = "ORACLE_UNAVAILABLE"
	CodeInsufficientPayment  ErrorCode = "INSUFFICIENT_PAYMENT"
	CodeLineNotFound         ErrorCode = "LINE_NOT_FOUND"
	CodeNotFixedUnit         ErrorCode = "NOT_FIXED_UNIT"
	CodeNotBulkWeight        ErrorCode = "NOT_BULK_WEIGHT"
	CodePromotionRejected    ErrorCode = "PROMOTION_REJECTED"
	CodePromotionNotApplied  ErrorCode = "PROMOTION_NOT_APPLIED"
	CodeBelowMinimumExchange ErrorCode = "BELOW_MINIMUM_EXCHANGE"
	CodeLoyaltyNotConfigured ErrorCode = "LOYALTY_NOT_CONFIGURED"
	CodeWeightRequired       ErrorCode = "WEIGHT_REQUIRED"
	CodeInvalidPayment       ErrorCode = "INVALID_PAYMENT"
	CodeSessionBusy          ErrorCode = "SESSION_BUSY"
	CodeSessionSettled       ErrorCode = "SESSION_SETTLED"
	CodeBalanceChanged       ErrorCode = "BALANCE_CHANGED"
	CodeCommitFailed         ErrorCode = "COMMIT_FAILED"
)

// Error is the outcome of a rejected engine operation. State is never
// partially mutated when one is returned.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code only, so errors.Is(err, ErrStockExceeded) holds for any
// stock-exceeded error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrOutOfStock           = &Error{Code: CodeOutOfStock, Message: "out of stock"}
	ErrStockExceeded        = &Error{Code: CodeStockExceeded, Message: "stock exceeded"}
	ErrInvalidWeight        = &Error{Code: CodeInvalidWeight, Message: "invalid weight"}
	ErrEmptyCart            = &Error{Code: CodeEmptyCart, Message: "cart is empty"}
	ErrDuplicatePromotion   = &Error{Code: CodeDuplicatePromotion, Message: "promotion already applied"}
	ErrNoCustomerAttached   = &Error{Code: CodeNoCustomerAttached, Message: "no customer attached"}
	ErrOracleUnavailable    = &Error{Code: CodeOracleUnavailable, Message: "promotion service unavailable"}
	ErrInsufficientPayment  = &Error{Code: CodeInsufficientPayment, Message: "insufficient payment"}
	ErrLineNotFound         = &Error{Code: CodeLineNotFound, Message: "item not in cart"}
	ErrNotFixedUnit         = &Error{Code: CodeNotFixedUnit, Message: "item is not sold per unit"}
	ErrNotBulkWeight        = &Error{Code: CodeNotBulkWeight, Message: "item is not sold by weight"}
	ErrPromotionRejected    = &Error{Code: CodePromotionRejected, Message: "promotion rejected"}
	ErrPromotionNotApplied  = &Error{Code: CodePromotionNotApplied, Message: "promotion not applied"}
	ErrLoyaltyNotConfigured = &Error{Code: CodeLoyaltyNotConfigured, Message: "point redemption not configured"}
	ErrWeightRequired       = &Error{Code: CodeWeightRequired, Message: "weight required"}
	ErrInvalidPayment       = &Error{Code: CodeInvalidPayment, Message: "invalid payment"}
	ErrSessionBusy          = &Error{Code: CodeSessionBusy, Message: "checkout already in progress"}
	ErrSessionSettled       = &Error{Code: CodeSessionSettled, Message: "session already settled"}
	ErrBalanceChanged       = &Error{Code: CodeBalanceChanged, Message: "customer point balance changed"}
	ErrCommitFailed         = &Error{Code: CodeCommitFailed, Message: "transaction commit failed"}
)

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}
