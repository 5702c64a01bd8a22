package storage

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func isPostgres(tx *gorm.DB) bool {
	return tx.Dialector.Name() == "postgres"
}

// AddAmounts adds each delta to its column on the single row matched by query.
//
// Postgres adds in the database with numeric arithmetic. sqlite stores amounts as text
// and "+" on text goes through floating point, so there the current values are read
// inside tx and the exact decimal sums are written back. sqlite allows a single writer,
// so the row cannot change between the read and the write.
func AddAmounts(tx *gorm.DB, model interface{}, deltas map[string]decimal.Decimal, query string, args ...interface{}) error {
	if len(deltas) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(deltas))
	if isPostgres(tx) {
		for column, delta := range deltas {
			updates[column] = gorm.Expr(fmt.Sprintf("%s + ?", column), delta)
		}
		return tx.Model(model).Where(query, args...).Updates(updates).Error
	}

	columns := make([]string, 0, len(deltas))
	for column := range deltas {
		columns = append(columns, column)
	}
	rows := make([]map[string]interface{}, 0, 1)
	if res := tx.Model(model).Select(columns).Where(query, args...).Find(&rows); res.Error != nil {
		return res.Error
	}
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > 1 {
		return fmt.Errorf("expected one row to add amounts to, matched %d", len(rows))
	}

	for column, delta := range deltas {
		var current decimal.Decimal
		if raw := rows[0][column]; raw != nil {
			if err := current.Scan(raw); err != nil {
				return fmt.Errorf("failed to read %s: %w", column, err)
			}
		}
		updates[column] = current.Add(delta)
	}
	return tx.Model(model).Where(query, args...).Updates(updates).Error
}

// SumAmount totals column over the rows selected by q, which must carry a Model or Table.
func SumAmount(q *gorm.DB, column string) (decimal.Decimal, error) {
	total := decimal.Zero
	if isPostgres(q) {
		row := q.Select(fmt.Sprintf("coalesce(sum(%s), 0)", column)).Row()
		if err := row.Scan(&total); err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum %s: %w", column, err)
		}
		return total, nil
	}

	rows, err := q.Select(column).Rows()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value decimal.Decimal
		if err := rows.Scan(&value); err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum %s: %w", column, err)
		}
		total = total.Add(value)
	}
	return total, rows.Err()
}
