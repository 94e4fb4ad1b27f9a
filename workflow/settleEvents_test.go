package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/shopspring/decimal"
)

type recordingPublisher struct {
	data  []byte
	attrs map[string]string
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	p.data = data
	p.attrs = attrs
	return "msg-1", p.err
}

func TestSettleEventsPublishesTransaction(t *testing.T) {
	pub := &recordingPublisher{}
	hook := &SettleEvents{Publisher: pub}
	req := sampleRequest("key-9")
	req.PromoCodes = "HEMAT,BERAS10"
	req.Discount = decimal.NewFromInt(1500)
	receipt := checkout.Receipt{
		TransactionRef: "TRX-9",
		SettledAt:      time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC),
		PointsEarned:   2,
	}

	if err := hook.TransactionSettled(context.Background(), req, receipt); err != nil {
		t.Fatalf("TransactionSettled: %v", err)
	}
	if pub.attrs["idempotency_key"] != "key-9" || pub.attrs["event"] != "transaction.settled" {
		t.Fatalf("attrs = %v", pub.attrs)
	}
	var msg TransactionSettled
	if err := json.Unmarshal(pub.data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.TransactionRef != "TRX-9" || msg.PromoCodes != "HEMAT,BERAS10" || msg.PointsEarned != 2 {
		t.Fatalf("msg = %+v", msg)
	}
	if len(msg.Lines) != 1 || !msg.Lines[0].WeightGrams.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("lines = %+v", msg.Lines)
	}
	if len(msg.Payments) != 1 || msg.Payments[0].Method != "tunai" {
		t.Fatalf("payments = %+v", msg.Payments)
	}
}

func TestSettleEventsWrapsPublishError(t *testing.T) {
	cause := errors.New("topic not found")
	hook := &SettleEvents{Publisher: &recordingPublisher{err: cause}}
	err := hook.TransactionSettled(context.Background(), sampleRequest("k"), checkout.Receipt{TransactionRef: "TRX-1"})
	if !errors.Is(err, cause) {
		t.Fatalf("err = %v", err)
	}
}
