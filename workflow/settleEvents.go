package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/shopspring/decimal"
)

// TransactionSettled is the message published for every settled sale.
type TransactionSettled struct {
	TransactionRef string                     `json:"transaction_ref"`
	IdempotencyKey string                     `json:"idempotency_key"`
	Buffered       bool                       `json:"buffered"`
	SettledAt      time.Time                  `json:"settled_at"`
	StaffId        string                     `json:"staff_id"`
	CustomerId     string                     `json:"customer_id"`
	PromoCodes     string                     `json:"promo_codes"`
	PointsRedeemed int64                      `json:"points_redeemed"`
	PointsEarned   int64                      `json:"points_earned"`
	Subtotal       decimal.Decimal            `json:"subtotal"`
	Discount       decimal.Decimal            `json:"discount"`
	GrandTotal     decimal.Decimal            `json:"grand_total"`
	Lines          []TransactionSettledLine   `json:"lines"`
	Payments       []TransactionSettledTender `json:"payments"`
}

type TransactionSettledLine struct {
	ProductId   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	WeightGrams decimal.Decimal `json:"weight_grams"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type TransactionSettledTender struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

// Publisher sends one message and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type topicPublisher struct {
	topic *pubsub.Topic
}

func (p topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	res := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return res.Get(ctx)
}

// NewPubSubPublisher resolves the settle topic, creating it when
// SETTLE_CREATE_TOPIC is set.
func NewPubSubPublisher(ctx context.Context) (Publisher, error) {
	client, err := config.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	topicName := config.SettleTopic()
	topic := client.Topic(topicName)
	if config.SettleCreateTopic() {
		topic, err = config.CreateTopicIfNotExists(ctx, client, topicName)
		if err != nil {
			return nil, err
		}
	}
	return topicPublisher{topic: topic}, nil
}

// SettleEvents publishes settled transactions. It is a checkout.SettleHook.
type SettleEvents struct {
	Publisher Publisher
}

var _ checkout.SettleHook = (*SettleEvents)(nil)

func (s *SettleEvents) TransactionSettled(ctx context.Context, req checkout.CommitRequest, receipt checkout.Receipt) error {
	msg := newTransactionSettled(req, receipt)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"event":           "transaction.settled",
		"idempotency_key": req.IdempotencyKey,
	}
	if _, err := s.Publisher.Publish(ctx, data, attrs); err != nil {
		return fmt.Errorf("publish settled %s: %w", receipt.TransactionRef, err)
	}
	return nil
}

func newTransactionSettled(req checkout.CommitRequest, receipt checkout.Receipt) TransactionSettled {
	msg := TransactionSettled{
		TransactionRef: receipt.TransactionRef,
		IdempotencyKey: req.IdempotencyKey,
		Buffered:       receipt.Buffered,
		SettledAt:      receipt.SettledAt,
		StaffId:        req.StaffID,
		CustomerId:     req.CustomerID,
		PromoCodes:     req.PromoCodes,
		PointsRedeemed: req.PointsRedeemed,
		PointsEarned:   receipt.PointsEarned,
		Subtotal:       req.Subtotal,
		Discount:       req.Discount,
		GrandTotal:     req.GrandTotal,
	}
	for _, l := range req.Lines {
		msg.Lines = append(msg.Lines, TransactionSettledLine{
			ProductId:   l.ProductID,
			Quantity:    l.Quantity,
			WeightGrams: l.WeightGrams,
			Subtotal:    l.Subtotal,
		})
	}
	for _, p := range req.Payments {
		msg.Payments = append(msg.Payments, TransactionSettledTender{Method: string(p.Method), Amount: p.Amount})
	}
	return msg
}
