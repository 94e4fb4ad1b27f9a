package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_backend/appctx"
	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/models"
	"github.com/sirupsen/logrus"
)

// BufferedSink commits through Next and, when Next is unreachable, keeps
// the request in Store for the Dispatcher to replay. A rejection by the
// backend is returned as is.
type BufferedSink struct {
	Next          checkout.TransactionSink
	Store         PendingStore
	IsUnavailable func(error) bool
	Logger        logrus.FieldLogger
}

var _ checkout.TransactionSink = (*BufferedSink)(nil)

func (s *BufferedSink) CreateTransaction(ctx context.Context, req checkout.CommitRequest) (checkout.CommitResult, error) {
	res, err := s.Next.CreateTransaction(ctx, req)
	if err == nil {
		return res, nil
	}
	if s.IsUnavailable == nil || !s.IsUnavailable(err) {
		return checkout.CommitResult{}, err
	}

	sessionID, _ := appctx.GetString(ctx, appctx.ContextKeySessionId)
	correlationID, _ := appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
	rec, encErr := newPendingRecord(req, sessionID, correlationID)
	if encErr != nil {
		return checkout.CommitResult{}, errors.Join(err, encErr)
	}
	rec, qErr := s.Store.Enqueue(context.WithoutCancel(ctx), rec)
	if qErr != nil {
		return checkout.CommitResult{}, errors.Join(err, fmt.Errorf("buffer commit: %w", qErr))
	}

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"field":           "BufferedSink",
			"idempotency_key": req.IdempotencyKey,
			"pending_id":      rec.ID,
		}).Warn("backend unavailable, transaction buffered: " + err.Error())
	}
	return checkout.CommitResult{
		TransactionRef: offlineRef(req.IdempotencyKey),
		Message:        "buffered for delivery",
		Buffered:       true,
	}, nil
}

func offlineRef(key string) string {
	short := key
	if len(short) > 8 {
		short = short[:8]
	}
	return "OFFLINE-" + short
}

// Dispatcher replays buffered commits with exponential backoff.
type Dispatcher struct {
	Store         PendingStore
	Sink          checkout.TransactionSink
	IsUnavailable func(error) bool
	Logger        logrus.FieldLogger
	DispatcherID  string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	now func() time.Time
}

func NewDispatcher(store PendingStore, sink checkout.TransactionSink, isUnavailable func(error) bool, logger logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		Store:          store,
		Sink:           sink,
		IsUnavailable:  isUnavailable,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      20,
		PollInterval:   5 * time.Second,
		LockTimeout:    time.Minute,
		MaxAttempts:    50,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
		now:            time.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && d.Logger != nil {
			d.Logger.WithField("field", "Dispatcher").WithError(err).Error("claim pending transactions")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce delivers one batch and reports how many rows were sent.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	claimed, err := d.Store.Claim(ctx, d.DispatcherID, d.BatchSize, d.LockTimeout)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, rec := range claimed {
		req, err := decodePending(rec)
		if err != nil {
			d.fail(ctx, rec, err, true)
			continue
		}
		res, err := d.Sink.CreateTransaction(ctx, req)
		if err != nil {
			terminal := d.IsUnavailable != nil && !d.IsUnavailable(err)
			d.fail(ctx, rec, err, terminal)
			continue
		}
		if err := d.Store.MarkSent(ctx, rec, res.TransactionRef); err != nil {
			d.log(rec).WithError(err).Error("mark pending transaction sent")
			continue
		}
		sent++
		d.log(rec).WithField("transaction_ref", res.TransactionRef).Info("buffered transaction delivered")
	}
	return sent, nil
}

func (d *Dispatcher) fail(ctx context.Context, rec models.PendingTransaction, cause error, terminal bool) {
	var next *time.Time
	if !terminal && (d.MaxAttempts <= 0 || rec.Attempts < d.MaxAttempts) {
		at := d.clock().Add(d.backoff(rec.Attempts))
		next = &at
	}
	if err := d.Store.MarkFailed(ctx, rec, cause, next); err != nil {
		d.log(rec).WithError(err).Error("mark pending transaction failed")
		return
	}
	entry := d.log(rec).WithField("attempt", rec.Attempts)
	if next == nil {
		entry.Error("buffered transaction moved to DEAD: " + cause.Error())
		return
	}
	entry.WithField("next_attempt_at", next.Format(time.RFC3339Nano)).Warn("buffered transaction delivery failed: " + cause.Error())
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if d.MaxBackoff > 0 && backoff > d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *Dispatcher) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

func (d *Dispatcher) log(rec models.PendingTransaction) logrus.FieldLogger {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithFields(logrus.Fields{
		"field":           "Dispatcher",
		"pending_id":      rec.ID,
		"idempotency_key": rec.IdempotencyKey,
	})
}
