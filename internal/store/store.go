// Package store holds the MySQL implementations of the catalog, account
// and order stores.
package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/denim-store/storefront/internal/metrics"
	"github.com/go-sql-driver/mysql"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// instrumented records every statement it runs against the app metrics
type instrumented struct {
	q       querier
	metrics *metrics.AppMetrics
}

func (i instrumented) exec(ctx context.Context, op, table, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := i.q.ExecContext(ctx, query, args...)
	i.metrics.RecordDBQuery(ctx, op, table, query, start, err == nil)
	return res, err
}

func (i instrumented) query(ctx context.Context, table, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := i.q.QueryContext(ctx, query, args...)
	i.metrics.RecordDBQuery(ctx, "SELECT", table, query, start, err == nil)
	return rows, err
}

// queryRow scans a single row into dest
func (i instrumented) queryRow(ctx context.Context, table, query string, args []any, dest ...any) error {
	start := time.Now()
	err := i.q.QueryRowContext(ctx, query, args...).Scan(dest...)
	i.metrics.RecordDBQuery(ctx, "SELECT", table, query, start, err == nil || errors.Is(err, sql.ErrNoRows))
	return err
}

// isDuplicateKey reports whether err is a MySQL unique constraint violation
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// escapeLike escapes the LIKE wildcards in s
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
