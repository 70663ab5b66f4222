// Package sqlxrepos implements the domain repositories on PostgreSQL
// using sqlx for scanning and squirrel for query building.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// trapNoRowsErr converts sql.ErrNoRows into the domain sentinel.
func trapNoRowsErr(err, sentinel error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return err
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// runInTx runs fn inside a transaction, rolling back on error.
func runInTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func applyOrdering(qb sq.SelectBuilder, ordering []core.DBOrdering, fallback string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return qb.OrderBy(fallback)
	}
	for _, ord := range ordering {
		qb = qb.OrderBy(ord.String())
	}
	return qb
}

func applyPagination(qb sq.SelectBuilder, pg core.Pagination) sq.SelectBuilder {
	if pg.Size <= 0 {
		return qb
	}
	return qb.Limit(uint64(pg.Limit())).Offset(uint64(pg.Offset()))
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

// count runs the filtered query as a COUNT(*), dropping ordering and paging.
func count(ctx context.Context, q sqlx.QueryerContext, qb sq.SelectBuilder) (int, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building count query")
	}
	var n int
	if err = sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	return n, nil
}
