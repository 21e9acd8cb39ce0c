// Package sqlstore implements the store contracts on SQLite or PostgreSQL through sqlx,
// with queries built by goqu.
package sqlstore

import (
	"context"
	_ "embed"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	_ "github.com/jackc/pgx/v5/stdlib"                  // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
	"github.com/pkg/errors"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	tableProducts = "products"
	tableOrders   = "orders"

	colID                = "id"
	colName              = "name"
	colCategory          = "category"
	colPrice             = "price"
	colStock             = "stock"
	colLowStockThreshold = "low_stock_threshold"
	colLastUpdated       = "last_updated"
	colProductID         = "product_id"
	colProductName       = "product_name"
	colQuantity          = "quantity"
	colTotalPrice        = "total_price"
	colTimestamp         = "timestamp"
	colRegion            = "region"
)

var (
	productColumns = []any{colID, colName, colCategory, colPrice, colStock, colLowStockThreshold, colLastUpdated}
	orderColumns   = []any{colID, colProductID, colProductName, colCategory, colQuantity, colTotalPrice, colTimestamp, colRegion}
)

// Store is a SQL-backed store.Backend that also implements store.OrderPlacer.
type Store struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// Open connects with the given driver (DriverSQLite or DriverPostgres) and applies the
// schema. For SQLite the dsn is a file path.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var dialect string
	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
	case DriverPostgres:
		dialect = "postgres"
	default:
		return nil, errors.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, classify(err, "connect database")
	}

	if driver == DriverSQLite {
		// one writer avoids SQLITE_BUSY between the generator and manual restocks
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, errors.Wrapf(err, "execute %q", pragma)
			}
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return &Store{db: db, dialect: goqu.Dialect(dialect)}, nil
}

// Close releases the connection pool.
func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and maintenance.
func (s *Store) DB() *sqlx.DB { return s.db }

type productRow struct {
	ID                string  `db:"id"`
	Name              string  `db:"name"`
	Category          string  `db:"category"`
	Price             float64 `db:"price"`
	Stock             int     `db:"stock"`
	LowStockThreshold int     `db:"low_stock_threshold"`
	LastUpdated       string  `db:"last_updated"`
}

func toProductRow(p model.Product) productRow {
	if p.LowStockThreshold == 0 {
		p.LowStockThreshold = model.DefaultLowStockThreshold
	}
	return productRow{
		ID:                p.ID,
		Name:              p.Name,
		Category:          p.Category,
		Price:             p.Price,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		LastUpdated:       model.FormatTime(p.LastUpdated),
	}
}

func (r productRow) toModel() (model.Product, error) {
	ts, err := model.ParseTime(r.LastUpdated)
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "product %s last_updated", r.ID)
	}
	return model.Product{
		ID:                r.ID,
		Name:              r.Name,
		Category:          r.Category,
		Price:             r.Price,
		Stock:             r.Stock,
		LowStockThreshold: r.LowStockThreshold,
		LastUpdated:       ts,
	}, nil
}

type orderRow struct {
	ID          string  `db:"id"`
	ProductID   string  `db:"product_id"`
	ProductName string  `db:"product_name"`
	Category    string  `db:"category"`
	Quantity    int     `db:"quantity"`
	TotalPrice  float64 `db:"total_price"`
	Timestamp   string  `db:"timestamp"`
	Region      string  `db:"region"`
}

func toOrderRow(o model.Order) orderRow {
	return orderRow{
		ID:          o.ID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Category:    o.Category,
		Quantity:    o.Quantity,
		TotalPrice:  o.TotalPrice,
		Timestamp:   model.FormatTime(o.Timestamp),
		Region:      o.Region,
	}
}

func (r orderRow) toModel() (model.Order, error) {
	ts, err := model.ParseTime(r.Timestamp)
	if err != nil {
		return model.Order{}, errors.Wrapf(err, "order %s timestamp", r.ID)
	}
	return model.Order{
		ID:          r.ID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Category:    r.Category,
		Quantity:    r.Quantity,
		TotalPrice:  r.TotalPrice,
		Timestamp:   ts,
		Region:      r.Region,
	}, nil
}

func (s *Store) InsertProducts(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	rows := make([]any, 0, len(products))
	for _, p := range products {
		rows = append(rows, toProductRow(p))
	}
	query, args, err := s.dialect.Insert(tableProducts).Rows(rows...).Prepared(true).ToSQL()
	if err != nil {
		return errors.Wrap(err, "build product insert")
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return classify(err, "insert products")
	}
	return nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	return s.count(ctx, s.dialect.From(tableProducts), "count products")
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.selectProducts(ctx, s.dialect.From(tableProducts).Select(productColumns...), "list products")
}

func (s *Store) GetProduct(ctx context.Context, id string) (model.Product, error) {
	ps, err := s.selectProducts(ctx,
		s.dialect.From(tableProducts).Select(productColumns...).Where(goqu.C(colID).Eq(id)),
		"get product")
	if err != nil {
		return model.Product{}, err
	}
	if len(ps) == 0 {
		return model.Product{}, store.ErrNotFound
	}
	return ps[0], nil
}

func (s *Store) FindInStock(ctx context.Context, limit int) ([]model.Product, error) {
	ds := s.dialect.From(tableProducts).Select(productColumns...).Where(goqu.C(colStock).Gt(0))
	if limit > 0 {
		// random order keeps a bounded candidate set unbiased
		ds = ds.Order(goqu.Func("RANDOM").Asc()).Limit(uint(limit))
	}
	return s.selectProducts(ctx, ds, "find in-stock products")
}

func (s *Store) FindLowStock(ctx context.Context, cutoff, limit int) ([]model.Product, error) {
	ds := s.dialect.From(tableProducts).Select(productColumns...).Where(goqu.C(colStock).Lt(cutoff))
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	return s.selectProducts(ctx, ds, "find low-stock products")
}

func (s *Store) CountLowStock(ctx context.Context, cutoff int) (int, error) {
	return s.count(ctx, s.dialect.From(tableProducts).Where(goqu.C(colStock).Lt(cutoff)), "count low-stock products")
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (model.Product, error) {
	if err := adjust(ctx, s.db, s.dialect, id, delta, at); err != nil {
		return model.Product{}, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Store) AppendOrder(ctx context.Context, o model.Order) error {
	return appendOrder(ctx, s.db, s.dialect, o)
}

// PlaceOrder appends o and decrements stock inside one transaction.
func (s *Store) PlaceOrder(ctx context.Context, o model.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err, "begin order transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendOrder(ctx, tx, s.dialect, o); err != nil {
		return err
	}
	if err := adjust(ctx, tx, s.dialect, o.ProductID, -o.Quantity, o.Timestamp); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit order transaction")
	}
	return nil
}

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]model.Order, error) {
	ds := s.dialect.From(tableOrders).Select(orderColumns...).Order(goqu.C(colTimestamp).Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build recent orders query")
	}
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "recent orders")
	}
	out := make([]model.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) RevenueSince(ctx context.Context, since time.Time) (model.Revenue, error) {
	query, args, err := s.dialect.From(tableOrders).
		Select(
			goqu.COALESCE(goqu.SUM(colTotalPrice), goqu.L("0")).As("total"),
			goqu.COUNT(goqu.Star()).As("n"),
		).
		Where(goqu.C(colTimestamp).Gte(model.FormatTime(since))).
		Prepared(true).ToSQL()
	if err != nil {
		return model.Revenue{}, errors.Wrap(err, "build revenue query")
	}
	var row struct {
		Total float64 `db:"total"`
		N     int     `db:"n"`
	}
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return model.Revenue{}, classify(err, "revenue since")
	}
	return model.Revenue{Total: row.Total, Count: row.N}, nil
}

// CountByCategory groups orders by category, alphabetically.
func (s *Store) CountByCategory(ctx context.Context) ([]model.CategoryCount, error) {
	query, args, err := s.dialect.From(tableOrders).
		Select(goqu.C(colCategory), goqu.COUNT(goqu.Star()).As("n")).
		GroupBy(colCategory).
		Order(goqu.C(colCategory).Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrap(err, "build category query")
	}
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, "count by category")
	}
	out := make([]model.CategoryCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CategoryCount{Category: r.Category, Count: r.N})
	}
	return out, nil
}

func (s *Store) selectProducts(ctx context.Context, ds *goqu.SelectDataset, op string) ([]model.Product, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, errors.Wrapf(err, "build query: %s", op)
	}
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, classify(err, op)
	}
	out := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) count(ctx context.Context, ds *goqu.SelectDataset, op string) (int, error) {
	query, args, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return 0, errors.Wrapf(err, "build query: %s", op)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, classify(err, op)
	}
	return n, nil
}
