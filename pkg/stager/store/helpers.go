package store

import (
	"context"
	"slices"

	"gorm.io/gorm"
)

// ============================================================================
// Generic GORM Helpers
// ============================================================================
//
// These helpers operate on a raw *gorm.DB so they can be used both on the
// store connection and on a transaction handle.

// getByField retrieves a single record of type T by matching field=value and
// converts gorm.ErrRecordNotFound to notFoundErr.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// listWhere retrieves records of type T matching field IN values, in a
// stable order. An empty value list yields an empty result without a query.
func listWhere[T any](db *gorm.DB, field string, values []string, order string) ([]T, error) {
	results := make([]T, 0)
	if len(values) == 0 {
		return results, nil
	}
	q := db.Where(field+" IN ?", values)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// uniqueStrings returns ids sorted and without duplicates or blanks.
func uniqueStrings(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// applyWindow adds the common ordering, time window and limit options of a
// listing query.
func applyWindow(q *gorm.DB, timeColumn string, w Window) *gorm.DB {
	if w.Newer != nil {
		q = q.Where(timeColumn+" >= ?", w.Newer.UTC())
	}
	if w.Older != nil {
		q = q.Where(timeColumn+" < ?", w.Older.UTC())
	}
	order := timeColumn + " ASC"
	if w.Descending {
		order = timeColumn + " DESC"
	}
	q = q.Order(order)
	if w.Limit > 0 {
		q = q.Limit(w.Limit)
	}
	return q
}
