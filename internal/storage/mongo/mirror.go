// Package mongo implements the stats mirror on a MongoDB collection.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/catering-orders/internal/domain/stats"
)

// Config selects the MongoDB deployment and collection.
type Config struct {
	URI        string `usage:"MongoDB connection URI"`
	Database   string `default:"catering" usage:"MongoDB database name"`
	Collection string `default:"order_stats" usage:"Snapshot collection name"`
}

// Mirror stores one document per order keyed by order ID.
type Mirror struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ stats.Mirror = (*Mirror)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Mirror, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "ping")
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "orderedAt", Value: 1}}},
		{Keys: bson.D{{Key: "menuId", Value: 1}, {Key: "orderedAt", Value: 1}}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "create indexes")
	}
	return &Mirror{client: client, coll: coll}, nil
}

// Ping reports whether the deployment is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *Mirror) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

type snapshotDoc struct {
	OrderID       int64                `bson:"_id"`
	OrderNumber   string               `bson:"orderNumber"`
	MenuID        *int64               `bson:"menuId"`
	MenuTitle     string               `bson:"menuTitle"`
	CustomerID    int64                `bson:"customerId"`
	CustomerName  string               `bson:"customerName"`
	OrderedAt     time.Time            `bson:"orderedAt"`
	ServiceDate   time.Time            `bson:"serviceDate"`
	GuestCount    int                  `bson:"guestCount"`
	MenuPrice     primitive.Decimal128 `bson:"menuPrice"`
	DeliveryPrice primitive.Decimal128 `bson:"deliveryPrice"`
	Total         primitive.Decimal128 `bson:"total"`
	Status        string               `bson:"status"`
	Counted       bool                 `bson:"counted"`
	Version       int64                `bson:"version"`
}

// UpsertSnapshot replaces the document of the snapshot's order when the
// stored version is older. A stale snapshot matches nothing and its upsert
// collides on _id, which is treated as already applied. Two first writes
// racing on the insert collide the same way, so a collision is retried once
// against the now existing document.
func (m *Mirror) UpsertSnapshot(ctx context.Context, s stats.Snapshot) error {
	doc, err := toDoc(s)
	if err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		_, err = m.coll.ReplaceOne(ctx, upsertFilter(s), doc, options.Replace().SetUpsert(true))
		switch {
		case err == nil:
			return nil
		case mongo.IsDuplicateKeyError(err) && attempt < 2:
			continue
		case mongo.IsDuplicateKeyError(err):
			return nil
		default:
			return errors.Wrapf(err, "upsert snapshot %s", s.OrderNumber)
		}
	}
}

// upsertFilter matches the order's document only while it holds an older
// version. Documents written before versioning carry no version field.
func upsertFilter(s stats.Snapshot) bson.D {
	return bson.D{
		{Key: "_id", Value: s.OrderID},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "version", Value: bson.D{{Key: "$lt", Value: s.Version}}}},
			bson.D{{Key: "version", Value: bson.D{{Key: "$exists", Value: false}}}},
		}},
	}
}

type aggregateDoc struct {
	ID struct {
		MenuID    *int64 `bson:"menuId"`
		MenuTitle string `bson:"menuTitle"`
	} `bson:"_id"`
	Orders  int64                `bson:"orders"`
	Revenue primitive.Decimal128 `bson:"revenue"`
}

// QueryAggregates groups counted snapshots by menu on the server.
func (m *Mirror) QueryAggregates(ctx context.Context) ([]stats.MenuAggregate, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "counted", Value: true}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{
				{Key: "menuId", Value: "$menuId"},
				{Key: "menuTitle", Value: "$menuTitle"},
			}},
			{Key: "orders", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "revenue", Value: bson.D{{Key: "$sum", Value: "$total"}}},
		}}},
	}
	cur, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate")
	}
	var docs []aggregateDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode aggregates")
	}

	out := make([]stats.MenuAggregate, 0, len(docs))
	for _, d := range docs {
		revenue, err := fromDecimal128(d.Revenue)
		if err != nil {
			return nil, err
		}
		out = append(out, stats.MenuAggregate{
			MenuID:    d.ID.MenuID,
			MenuTitle: d.ID.MenuTitle,
			Orders:    d.Orders,
			Revenue:   revenue,
		})
	}
	stats.SortAggregates(out)
	return out, nil
}

// QueryRevenue lists counted snapshots matching f by order date.
func (m *Mirror) QueryRevenue(ctx context.Context, f stats.RevenueFilter) ([]stats.RevenueEntry, error) {
	filter := bson.D{{Key: "counted", Value: true}}
	if f.MenuID != nil {
		filter = append(filter, bson.E{Key: "menuId", Value: *f.MenuID})
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		rng := bson.D{}
		if !f.From.IsZero() {
			rng = append(rng, bson.E{Key: "$gte", Value: f.From})
		}
		if !f.To.IsZero() {
			rng = append(rng, bson.E{Key: "$lt", Value: f.To})
		}
		filter = append(filter, bson.E{Key: "orderedAt", Value: rng})
	}

	cur, err := m.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "orderedAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find revenue")
	}
	var docs []snapshotDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode revenue")
	}

	out := make([]stats.RevenueEntry, 0, len(docs))
	for _, d := range docs {
		total, err := fromDecimal128(d.Total)
		if err != nil {
			return nil, err
		}
		out = append(out, stats.RevenueEntry{
			OrderID:     d.OrderID,
			OrderNumber: d.OrderNumber,
			MenuID:      d.MenuID,
			MenuTitle:   d.MenuTitle,
			OrderedAt:   d.OrderedAt.UTC(),
			Total:       total,
		})
	}
	return out, nil
}

func toDoc(s stats.Snapshot) (snapshotDoc, error) {
	menuPrice, err := toDecimal128(s.MenuPrice)
	if err != nil {
		return snapshotDoc{}, err
	}
	deliveryPrice, err := toDecimal128(s.DeliveryPrice)
	if err != nil {
		return snapshotDoc{}, err
	}
	total, err := toDecimal128(s.Total)
	if err != nil {
		return snapshotDoc{}, err
	}
	return snapshotDoc{
		OrderID:       s.OrderID,
		OrderNumber:   s.OrderNumber,
		MenuID:        s.MenuID,
		MenuTitle:     s.MenuTitle,
		CustomerID:    s.CustomerID,
		CustomerName:  s.CustomerName,
		OrderedAt:     s.OrderedAt,
		ServiceDate:   s.ServiceDate,
		GuestCount:    s.GuestCount,
		MenuPrice:     menuPrice,
		DeliveryPrice: deliveryPrice,
		Total:         total,
		Status:        s.Status,
		Counted:       stats.Counted(s.Status),
		Version:       s.Version,
	}, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.StringFixed(2))
	if err != nil {
		return primitive.Decimal128{}, errors.Wrapf(err, "convert %s", d)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse %s", v)
	}
	return d.Round(2), nil
}
