package refdata

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/pos_backend/checkout"
	"github.com/sirupsen/logrus"
)

const (
	keyProducts      = "products"
	keyCustomers     = "customers"
	keyPointSettings = "point-settings"
)

// Store puts a read-through cache in front of the backend's reference
// data. Cache failures are logged and fall back to the backend. A nil
// cache disables caching.
type Store struct {
	catalog   checkout.Catalog
	customers checkout.CustomerDirectory
	points    checkout.PointSettingsSource
	cache     Cache
	ttl       time.Duration
	logger    logrus.FieldLogger
}

type Sources struct {
	Catalog   checkout.Catalog
	Customers checkout.CustomerDirectory
	Points    checkout.PointSettingsSource
}

func NewStore(src Sources, cache Cache, ttl time.Duration, logger logrus.FieldLogger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		catalog:   src.Catalog,
		customers: src.Customers,
		points:    src.Points,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.WithField("module", "refdata"),
	}
}

var (
	_ checkout.Catalog             = (*Store)(nil)
	_ checkout.CustomerDirectory   = (*Store)(nil)
	_ checkout.PointSettingsSource = (*Store)(nil)
	_ checkout.SettleHook          = (*Store)(nil)
)

func (s *Store) ListProducts(ctx context.Context) ([]checkout.Product, error) {
	return readThrough(ctx, s, keyProducts, s.catalog.ListProducts)
}

func (s *Store) ListCustomers(ctx context.Context) ([]checkout.Customer, error) {
	return readThrough(ctx, s, keyCustomers, s.customers.ListCustomers)
}

func (s *Store) GetPointSettings(ctx context.Context) (checkout.PointSettings, error) {
	return readThrough(ctx, s, keyPointSettings, s.points.GetPointSettings)
}

// Fresh returns a customer directory that skips the cached list and
// reloads it from the backend, refreshing the cache with the result.
func (s *Store) Fresh() checkout.CustomerDirectory {
	return freshCustomers{s: s}
}

type freshCustomers struct{ s *Store }

func (f freshCustomers) ListCustomers(ctx context.Context) ([]checkout.Customer, error) {
	return reload(ctx, f.s, keyCustomers, f.s.customers.ListCustomers)
}

// TransactionSettled drops the cached customers and products. A settlement
// moves point balances and stock upstream.
func (s *Store) TransactionSettled(ctx context.Context, req checkout.CommitRequest, _ checkout.Receipt) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, keyCustomers, keyProducts); err != nil {
		return fmt.Errorf("evict reference data after %s: %w", req.IdempotencyKey, err)
	}
	return nil
}

// Invalidate drops every cached entry so the next read hits the backend.
func (s *Store) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, keyProducts, keyCustomers, keyPointSettings)
}

func readThrough[T any](ctx context.Context, s *Store, key string, load func(context.Context) (T, error)) (T, error) {
	if s.cache != nil {
		var cached T
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.WithField("key", key).WithError(err).Warn("cache read failed")
		} else if ok {
			return cached, nil
		}
	}
	return reload(ctx, s, key, load)
}

func reload[T any](ctx context.Context, s *Store, key string, load func(context.Context) (T, error)) (T, error) {
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v, s.ttl); err != nil {
			s.logger.WithField("key", key).WithError(err).Warn("cache write failed")
		}
	}
	return v, nil
}
