package helpers

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WrapTxAndCommit runs fn inside tx when the caller already owns a transaction,
// otherwise it opens one on db and commits or rolls it back based on fn's error.
func WrapTxAndCommit[T any](ctx context.Context, fn func(*gorm.DB) (T, error), db *gorm.DB, tx *gorm.DB) (res T, err error) {
	if tx != nil {
		return fn(tx)
	}

	tx = db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	res, err = fn(tx)
	if err != nil {
		tx.Rollback()
		return res, err
	}
	if err = tx.Commit().Error; err != nil {
		return res, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return res, nil
}
