package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmdatafocus/pos_backend/checkout"
)

var (
	_ checkout.Catalog             = (*Client)(nil)
	_ checkout.CustomerDirectory   = (*Client)(nil)
	_ checkout.PromotionOracle     = (*Client)(nil)
	_ checkout.PointSettingsSource = (*Client)(nil)
	_ checkout.TransactionSink     = (*Client)(nil)
	_ checkout.ReceiptPrinter      = (*Client)(nil)
)

// ListProducts returns the catalog. Records that fail validation are
// skipped and logged.
func (c *Client) ListProducts(ctx context.Context) ([]checkout.Product, error) {
	rows, err := getList[produkDTO](ctx, c, pathProducts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]checkout.Product, 0, len(rows))
	for _, r := range rows {
		if err := c.validate.Struct(r); err != nil {
			c.logger.WithField("produkId", r.ID).WithError(err).Warn("skipping invalid product")
			continue
		}
		out = append(out, r.product())
	}
	return out, nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]checkout.Customer, error) {
	rows, err := getList[pelangganDTO](ctx, c, pathCustomers)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]checkout.Customer, 0, len(rows))
	for _, r := range rows {
		if err := c.validate.Struct(r); err != nil {
			c.logger.WithField("pelangganId", r.ID).WithError(err).Warn("skipping invalid customer")
			continue
		}
		out = append(out, r.customer())
	}
	return out, nil
}

// ListActivePromotions returns promotions the backend marks active, for
// the cashier's eligible promotion list.
func (c *Client) ListActivePromotions(ctx context.Context) ([]checkout.PromotionMeta, error) {
	rows, err := getList[promoDTO](ctx, c, pathActivePromos)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	out := make([]checkout.PromotionMeta, 0, len(rows))
	for _, r := range rows {
		if r.Status != "" && !strings.EqualFold(r.Status, promoStatusActive) {
			continue
		}
		if strings.TrimSpace(r.Kode) == "" {
			continue
		}
		out = append(out, r.meta())
	}
	return out, nil
}

// ApplyPromotion asks the backend to price a code against the cart. A
// client error carrying a message is a rejection, not an outage.
func (c *Client) ApplyPromotion(ctx context.Context, req checkout.OracleRequest) (checkout.OracleResponse, error) {
	in, err := newApplyRequest(req)
	if err != nil {
		return checkout.OracleResponse{}, fmt.Errorf("apply promotion %s: %w", req.Code, err)
	}
	body, err := c.do(ctx, http.MethodPost, pathApplyPromo, in, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
			if msg := apiErr.message(); msg != "" {
				return checkout.OracleResponse{Accepted: false, Message: msg}, nil
			}
		}
		return checkout.OracleResponse{}, fmt.Errorf("apply promotion %s: %w", req.Code, err)
	}
	var out applyResponseDTO
	if err := json.Unmarshal(body, &out); err != nil {
		return checkout.OracleResponse{}, fmt.Errorf("apply promotion %s: decode: %w", req.Code, err)
	}
	return out.response(), nil
}

func (c *Client) GetPointSettings(ctx context.Context) (checkout.PointSettings, error) {
	body, err := c.do(ctx, http.MethodGet, pathPointSettings, nil, nil)
	if err != nil {
		return checkout.PointSettings{}, fmt.Errorf("point settings: %w", err)
	}
	dto, err := decodeObject[poinSettingsDTO](body)
	if err != nil {
		return checkout.PointSettings{}, fmt.Errorf("point settings: %w", err)
	}
	if err := c.validate.Struct(dto); err != nil {
		return checkout.PointSettings{}, fmt.Errorf("point settings: %w", err)
	}
	return dto.settings(), nil
}

// CreateTransaction commits a settled sale. The idempotency key travels in
// a header so a replayed commit is recognised by the backend.
func (c *Client) CreateTransaction(ctx context.Context, req checkout.CommitRequest) (checkout.CommitResult, error) {
	in, err := newCreateTransaksi(req)
	if err != nil {
		return checkout.CommitResult{}, fmt.Errorf("create transaction: %w", err)
	}
	header := http.Header{}
	if req.IdempotencyKey != "" {
		header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	body, err := c.do(ctx, http.MethodPost, pathTransactions, in, header)
	if err != nil {
		return checkout.CommitResult{}, fmt.Errorf("create transaction: %w", err)
	}
	var out transaksiResponseDTO
	if err := json.Unmarshal(body, &out); err != nil {
		return checkout.CommitResult{}, fmt.Errorf("create transaction: decode: %w", err)
	}
	if !out.Success {
		return checkout.CommitResult{}, fmt.Errorf("create transaction: %s", firstNonEmpty(out.Message, "rejected"))
	}
	ref := out.Data.Transaksi.NomorTransaksi
	if ref == "" {
		return checkout.CommitResult{}, errors.New("create transaction: response has no transaction number")
	}
	return checkout.CommitResult{TransactionRef: ref, Message: out.Message}, nil
}

func (c *Client) PrintReceipt(ctx context.Context, transactionRef string) error {
	_, err := c.do(ctx, http.MethodPost, pathPrintReceipt, printReceiptDTO{
		TransactionNo: transactionRef,
		PrinterName:   c.printerName,
	}, nil)
	if err != nil {
		return fmt.Errorf("print receipt %s: %w", transactionRef, err)
	}
	return nil
}
