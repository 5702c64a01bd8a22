package baseDataService

import (
	"time"

	"github.com/pkg/errors"
	"github.com/presale-labs/presale-store/internal/metrics"
	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BaseDataService struct {
	DB      *gorm.DB
	Logger  *zap.Logger
	Metrics *metrics.MetricsSink
}

// NotFoundOrError maps gorm's missing-row error onto storage.ErrNotFound.
func (b *BaseDataService) NotFoundOrError(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(storage.ErrNotFound, "%s %v", entity, id)
	}
	return errors.Wrapf(err, "failed to load %s %v", entity, id)
}

// ForUpdate takes a row lock where the dialect supports one. sqlite serializes
// writers on its own.
func (b *BaseDataService) ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// FindById loads a single row by primary key into dest.
func (b *BaseDataService) FindById(tx *gorm.DB, dest interface{}, entity string, id uint64, lock bool) error {
	q := tx
	if lock {
		q = b.ForUpdate(q)
	}
	if res := q.Where("id = ?", id).First(dest); res.Error != nil {
		return b.NotFoundOrError(res.Error, entity, id)
	}
	return nil
}

func (b *BaseDataService) Incr(name string, labels []metricsTypes.MetricsLabel) {
	if b.Metrics == nil {
		return
	}
	if err := b.Metrics.Incr(name, labels, 1); err != nil {
		b.Logger.Sugar().Warnw("Failed to record metric", zap.String("name", name), zap.Error(err))
	}
}

func (b *BaseDataService) Timing(name string, d time.Duration, labels []metricsTypes.MetricsLabel) {
	if b.Metrics == nil {
		return
	}
	if err := b.Metrics.Timing(name, d, labels); err != nil {
		b.Logger.Sugar().Warnw("Failed to record timing", zap.String("name", name), zap.Error(err))
	}
}

// RecordClaimRejection counts a refused claim, labelled by the sentinel it matched.
func (b *BaseDataService) RecordClaimRejection(kind string, err error) {
	reason := "error"
	switch {
	case errors.Is(err, storage.ErrOverclaim):
		reason = "overclaim"
	case errors.Is(err, storage.ErrConcurrentUpdateConflict):
		reason = "conflict"
	case errors.Is(err, storage.ErrInvalidAmount):
		reason = "invalid_amount"
	case errors.Is(err, storage.ErrStakeNotActive), errors.Is(err, storage.ErrScheduleInactive):
		reason = "inactive"
	case errors.Is(err, storage.ErrNotFound):
		reason = "not_found"
	}
	b.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{
		{Name: "kind", Value: kind},
		{Name: "reason", Value: reason},
	})
}
