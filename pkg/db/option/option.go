package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

// WithSortBy orders results by the given expression. Empty expressions are ignored.
func WithSortBy(expr string) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if strings.TrimSpace(expr) == "" {
			return stmt
		}
		return stmt.Order(expr)
	})
}

// WithLimit caps the number of rows returned.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return stmt
		}
		return stmt.Limit(limit)
	})
}

// WithQuerySortBy sanitizes caller-supplied sort parameters against an allowlist
// and returns an order expression, or empty when the column is not allowed.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) string {
	column := strings.ToLower(strings.TrimSpace(sortBy))
	if column == "" || !allowed[column] {
		return ""
	}

	direction := strings.ToLower(strings.TrimSpace(orderBy))
	if direction != "asc" && direction != "desc" {
		direction = "asc"
	}

	return fmt.Sprintf("%s %s", column, direction)
}
