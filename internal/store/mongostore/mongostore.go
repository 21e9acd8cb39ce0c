// Package mongostore implements the store contracts on MongoDB. Products and orders are
// kept in two collections keyed by the application id field rather than _id.
//
// Appending an order and decrementing stock are two single-document writes; a crash
// between them leaves an order without its decrement. The store does not implement
// store.OrderPlacer.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/model"
	"github.com/fairyhunter13/ecommerce-stream-simulator/internal/store"
)

const (
	collProducts = "products"
	collOrders   = "orders"
)

// Store is a MongoDB-backed store.Backend.
type Store struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
}

// Open connects to uri, selects database and ensures indexes exist.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, classify(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, classify(err, "ping mongo")
	}
	db := client.Database(database)
	s := &Store{client: client, products: db.Collection(collProducts), orders: db.Collection(collOrders)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return classify(err, "create products index")
	}
	if _, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	}); err != nil {
		return classify(err, "create orders indexes")
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes both collections. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.products.Drop(ctx); err != nil {
		return classify(err, "drop products")
	}
	if err := s.orders.Drop(ctx); err != nil {
		return classify(err, "drop orders")
	}
	return s.ensureIndexes(ctx)
}

type productDoc struct {
	ID                string  `bson:"id"`
	Name              string  `bson:"name"`
	Category          string  `bson:"category"`
	Price             float64 `bson:"price"`
	Stock             int     `bson:"stock"`
	LowStockThreshold int     `bson:"low_stock_threshold"`
	LastUpdated       string  `bson:"last_updated"`
}

func (d productDoc) toModel() (model.Product, error) {
	ts, err := model.ParseTime(d.LastUpdated)
	if err != nil {
		return model.Product{}, errors.Wrapf(err, "product %s last_updated", d.ID)
	}
	return model.Product{
		ID:                d.ID,
		Name:              d.Name,
		Category:          d.Category,
		Price:             d.Price,
		Stock:             d.Stock,
		LowStockThreshold: d.LowStockThreshold,
		LastUpdated:       ts,
	}, nil
}

type orderDoc struct {
	ID          string  `bson:"id"`
	ProductID   string  `bson:"product_id"`
	ProductName string  `bson:"product_name"`
	Category    string  `bson:"category"`
	Quantity    int     `bson:"quantity"`
	TotalPrice  float64 `bson:"total_price"`
	Timestamp   string  `bson:"timestamp"`
	Region      string  `bson:"region"`
}

func (d orderDoc) toModel() (model.Order, error) {
	ts, err := model.ParseTime(d.Timestamp)
	if err != nil {
		return model.Order{}, errors.Wrapf(err, "order %s timestamp", d.ID)
	}
	return model.Order{
		ID:          d.ID,
		ProductID:   d.ProductID,
		ProductName: d.ProductName,
		Category:    d.Category,
		Quantity:    d.Quantity,
		TotalPrice:  d.TotalPrice,
		Timestamp:   ts,
		Region:      d.Region,
	}, nil
}

func (s *Store) InsertProducts(ctx context.Context, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	docs := make([]any, 0, len(products))
	for _, p := range products {
		if p.LowStockThreshold == 0 {
			p.LowStockThreshold = model.DefaultLowStockThreshold
		}
		docs = append(docs, productDoc{
			ID:                p.ID,
			Name:              p.Name,
			Category:          p.Category,
			Price:             p.Price,
			Stock:             p.Stock,
			LowStockThreshold: p.LowStockThreshold,
			LastUpdated:       model.FormatTime(p.LastUpdated),
		})
	}
	if _, err := s.products.InsertMany(ctx, docs); err != nil {
		return classify(err, "insert products")
	}
	return nil
}

func (s *Store) CountProducts(ctx context.Context) (int, error) {
	n, err := s.products.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, classify(err, "count products")
	}
	return int(n), nil
}

func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.findProducts(ctx, bson.D{}, options.Find(), "list products")
}

func (s *Store) GetProduct(ctx context.Context, id string) (model.Product, error) {
	var doc productDoc
	err := s.products.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Product{}, store.ErrNotFound
	}
	if err != nil {
		return model.Product{}, classify(err, "get product")
	}
	return doc.toModel()
}

func (s *Store) FindInStock(ctx context.Context, limit int) ([]model.Product, error) {
	match := bson.D{{Key: "stock", Value: bson.D{{Key: "$gt", Value: 0}}}}
	if limit <= 0 {
		return s.findProducts(ctx, match, options.Find(), "find in-stock products")
	}
	cur, err := s.products.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: limit}}}},
	})
	if err != nil {
		return nil, classify(err, "sample in-stock products")
	}
	return decodeProducts(ctx, cur, "sample in-stock products")
}

func (s *Store) FindLowStock(ctx context.Context, cutoff, limit int) ([]model.Product, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findProducts(ctx, bson.D{{Key: "stock", Value: bson.D{{Key: "$lt", Value: cutoff}}}}, opts, "find low-stock products")
}

func (s *Store) CountLowStock(ctx context.Context, cutoff int) (int, error) {
	n, err := s.products.CountDocuments(ctx, bson.D{{Key: "stock", Value: bson.D{{Key: "$lt", Value: cutoff}}}})
	if err != nil {
		return 0, classify(err, "count low-stock products")
	}
	return int(n), nil
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int, at time.Time) (model.Product, error) {
	filter := bson.D{{Key: "id", Value: id}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$gte", Value: -delta}}})
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: delta}}},
		{Key: "$set", Value: bson.D{{Key: "last_updated", Value: model.FormatTime(at)}}},
	}
	var doc productDoc
	err := s.products.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.products.CountDocuments(ctx, bson.D{{Key: "id", Value: id}})
		if cerr != nil {
			return model.Product{}, classify(cerr, "check product exists")
		}
		if n == 0 {
			return model.Product{}, store.ErrNotFound
		}
		return model.Product{}, store.ErrInsufficientStock
	}
	if err != nil {
		return model.Product{}, classify(err, "adjust stock")
	}
	return doc.toModel()
}

func (s *Store) AppendOrder(ctx context.Context, o model.Order) error {
	if o.ID == "" {
		return errors.New("order id is required")
	}
	_, err := s.orders.InsertOne(ctx, orderDoc{
		ID:          o.ID,
		ProductID:   o.ProductID,
		ProductName: o.ProductName,
		Category:    o.Category,
		Quantity:    o.Quantity,
		TotalPrice:  o.TotalPrice,
		Timestamp:   model.FormatTime(o.Timestamp),
		Region:      o.Region,
	})
	if err != nil {
		return classify(err, "append order")
	}
	return nil
}

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.orders.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, classify(err, "recent orders")
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err, "decode recent orders")
	}
	out := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) RevenueSince(ctx context.Context, since time.Time) (model.Revenue, error) {
	cur, err := s.orders.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: model.FormatTime(since)}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$total_price"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return model.Revenue{}, classify(err, "revenue since")
	}
	var rows []struct {
		Total float64 `bson:"total"`
		N     int     `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return model.Revenue{}, classify(err, "decode revenue")
	}
	if len(rows) == 0 {
		return model.Revenue{}, nil
	}
	return model.Revenue{Total: rows[0].Total, Count: rows[0].N}, nil
}

func (s *Store) CountByCategory(ctx context.Context) ([]model.CategoryCount, error) {
	cur, err := s.orders.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, classify(err, "count by category")
	}
	var rows []struct {
		Category string `bson:"_id"`
		N        int    `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, classify(err, "decode category counts")
	}
	out := make([]model.CategoryCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CategoryCount{Category: r.Category, Count: r.N})
	}
	return out, nil
}

func (s *Store) findProducts(ctx context.Context, filter bson.D, opts *options.FindOptions, op string) ([]model.Product, error) {
	cur, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, classify(err, op)
	}
	return decodeProducts(ctx, cur, op)
}

func decodeProducts(ctx context.Context, cur *mongo.Cursor, op string) ([]model.Product, error) {
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err, op)
	}
	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// classify wraps connectivity failures in store.ErrUnavailable.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(store.ErrUnavailable, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}
