package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

func appendOrder(ctx context.Context, db sqlx.ExtContext, d goqu.DialectWrapper, o model.Order) error {
	if o.ID == "" {
		return errors.New("order id is required")
	}
	query, args, err := d.Insert(tableOrders).Rows(toOrderRow(o)).Prepared(true).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build order insert")
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "append order")
	}
	return nil
}

// adjust applies stock = stock + delta in a single statement. Decrements carry a
// stock >= -delta guard so the row is never driven negative.
func adjust(ctx context.Context, db sqlx.ExtContext, d goqu.DialectWrapper, id string, delta int, at time.Time) error {
	ds := d.Update(tableProducts).
		Set(goqu.Record{
			colStock:       goqu.L("? + ?", goqu.C(colStock), delta),
			colLastUpdated: model.FormatTime(at),
		}).
		Where(goqu.C(colID).Eq(id))
	if delta < 0 {
		ds = ds.Where(goqu.C(colStock).Gte(-delta))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build stock update")
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err, "adjust stock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "adjust stock rows affected")
	}
	if n > 0 {
		return nil
	}

	query, args, err = d.From(tableProducts).Select(goqu.COUNT(goqu.Star())).Where(goqu.C(colID).Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build existence query")
	}
	var exists int
	if err := sqlx.GetContext(ctx, db, &exists, query, args...); err != nil {
		return classify(err, "check product exists")
	}
	if exists == 0 {
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}

// classify wraps connectivity failures in store.ErrUnavailable and annotates the rest.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return errors.Wrapf(store.ErrUnavailable, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return true
		}
	}
	return false
}
