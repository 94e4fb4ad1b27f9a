package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/mmdatafocus/pos_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const replayHandlerName = "commit-buffer.replay"

// PendingStore persists commit requests that could not reach the backend.
type PendingStore interface {
	Enqueue(ctx context.Context, rec models.PendingTransaction) (models.PendingTransaction, error)
	Claim(ctx context.Context, owner string, limit int, lockTimeout time.Duration) ([]models.PendingTransaction, error)
	MarkSent(ctx context.Context, rec models.PendingTransaction, ref string) error
	// MarkFailed schedules a retry at next, or marks the row DEAD when next
	// is nil.
	MarkFailed(ctx context.Context, rec models.PendingTransaction, err error, next *time.Time) error
	Pending(ctx context.Context) (int64, error)
}

func newPendingRecord(req checkout.CommitRequest, sessionID, correlationID string) (models.PendingTransaction, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return models.PendingTransaction{}, fmt.Errorf("encode commit request: %w", err)
	}
	return models.PendingTransaction{
		IdempotencyKey: req.IdempotencyKey,
		SessionId:      sessionID,
		StaffId:        req.StaffID,
		GrandTotal:     req.GrandTotal,
		Payload:        payload,
		Status:         models.PendingStatusPending,
		CorrelationId:  correlationID,
	}, nil
}

func decodePending(rec models.PendingTransaction) (checkout.CommitRequest, error) {
	var req checkout.CommitRequest
	if err := json.Unmarshal(rec.Payload, &req); err != nil {
		return req, fmt.Errorf("decode pending transaction %d: %w", rec.ID, err)
	}
	return req, nil
}

type GormPendingStore struct {
	DB *gorm.DB
}

func NewGormPendingStore(db *gorm.DB) *GormPendingStore {
	return &GormPendingStore{DB: db}
}

// Enqueue is idempotent on the request's idempotency key.
func (s *GormPendingStore) Enqueue(ctx context.Context, rec models.PendingTransaction) (models.PendingTransaction, error) {
	err := s.DB.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return rec, nil
	}
	if !isDuplicateKeyErr(err) {
		return models.PendingTransaction{}, err
	}
	var existing models.PendingTransaction
	if err := s.DB.WithContext(ctx).Where("idempotency_key = ?", rec.IdempotencyKey).First(&existing).Error; err != nil {
		return models.PendingTransaction{}, err
	}
	return existing, nil
}

// Claim locks a batch of rows ready for delivery. Rows stuck in PROCESSING
// longer than lockTimeout are reclaimed. Rows whose replay already
// succeeded are closed without being returned.
func (s *GormPendingStore) Claim(ctx context.Context, owner string, limit int, lockTimeout time.Duration) ([]models.PendingTransaction, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-lockTimeout)

	var claimed []models.PendingTransaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.PendingTransaction
		q := tx.
			Where(`
				(
					status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.PendingStatusPending, models.PendingStatusFailed}, now, models.PendingStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&rows).Error; err != nil {
			return err
		}

		for _, row := range rows {
			skip, err := BeginIdempotency(tx, replayHandlerName, row.IdempotencyKey)
			if errors.Is(err, ErrIdempotencyInProgress) {
				continue
			}
			if err != nil {
				return err
			}
			if skip {
				if err := tx.Model(&models.PendingTransaction{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
					"status":          models.PendingStatusSent,
					"locked_at":       nil,
					"locked_by":       nil,
					"next_attempt_at": nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			row.Status = models.PendingStatusProcessing
			row.LockedAt = &now
			row.LockedBy = &owner
			row.Attempts++
			if err := tx.Model(&models.PendingTransaction{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"status":          row.Status,
				"locked_at":       row.LockedAt,
				"locked_by":       row.LockedBy,
				"attempts":        gorm.Expr("attempts + 1"),
				"last_error":      nil,
				"next_attempt_at": nil,
			}).Error; err != nil {
				return err
			}
			claimed = append(claimed, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *GormPendingStore) MarkSent(ctx context.Context, rec models.PendingTransaction, ref string) error {
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := MarkIdempotencySucceeded(tx, replayHandlerName, rec.IdempotencyKey); err != nil {
			return err
		}
		return tx.Model(&models.PendingTransaction{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
			"status":          models.PendingStatusSent,
			"transaction_ref": &ref,
			"sent_at":         &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
	})
}

func (s *GormPendingStore) MarkFailed(ctx context.Context, rec models.PendingTransaction, cause error, next *time.Time) error {
	msg := cause.Error()
	status := models.PendingStatusFailed
	if next == nil {
		status = models.PendingStatusDead
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := MarkIdempotencyFailed(tx, replayHandlerName, rec.IdempotencyKey, cause); err != nil {
			return err
		}
		return tx.Model(&models.PendingTransaction{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
			"status":          status,
			"last_error":      &msg,
			"next_attempt_at": next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error
	})
}

// Pending counts rows not yet delivered or given up on.
func (s *GormPendingStore) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.PendingTransaction{}).
		Where("status IN ?", []string{models.PendingStatusPending, models.PendingStatusProcessing, models.PendingStatusFailed}).
		Count(&n).Error
	return n, err
}

// ListDead returns rows the dispatcher gave up on, oldest first.
func (s *GormPendingStore) ListDead(ctx context.Context, limit int) ([]models.PendingTransaction, error) {
	var rows []models.PendingTransaction
	q := s.DB.WithContext(ctx).Where("status = ?", models.PendingStatusDead).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// ReviveDead puts DEAD rows back in the queue with their attempt count reset.
// An empty key list revives every DEAD row.
func (s *GormPendingStore) ReviveDead(ctx context.Context, keys []string) (int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.PendingTransaction{}).Where("status = ?", models.PendingStatusDead)
	if len(keys) > 0 {
		q = q.Where("idempotency_key IN ?", keys)
	}
	res := q.Updates(map[string]interface{}{
		"status":          models.PendingStatusPending,
		"attempts":        0,
		"next_attempt_at": nil,
		"locked_at":       nil,
		"locked_by":       nil,
	})
	return res.RowsAffected, res.Error
}
