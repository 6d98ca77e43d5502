// Package firestore implements the stats mirror on a Firestore collection.
//
// Firestore has no server-side grouping on the query surface used here, so
// aggregates are folded in memory from the matching documents.
package firestore

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/xenking/catering-orders/internal/domain/stats"
)

const (
	defaultDialTimeout = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// Config selects the Firestore project and collection.
type Config struct {
	ProjectID    string `usage:"Google Cloud project ID (or GOOGLE_CLOUD_PROJECT)"`
	EmulatorHost string `usage:"Firestore emulator host:port (or FIRESTORE_EMULATOR_HOST)"`
	Collection   string `default:"order_stats" usage:"Snapshot collection name"`
}

// Mirror stores one document per order keyed by order ID.
type Mirror struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
}

var _ stats.Mirror = (*Mirror)(nil)

// New creates a Firestore client. With an emulator host it connects without
// authentication over plaintext gRPC.
func New(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Mirror, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv(envGoogleProjectID))
	}
	if projectID == "" {
		return nil, errors.New("firestore project id is required")
	}

	host := strings.TrimSpace(cfg.EmulatorHost)
	if host == "" {
		host = strings.TrimSpace(os.Getenv(envEmulatorHost))
	}
	if host != "" {
		opts = append(opts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	dialCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	client, err := firestore.NewClient(dialCtx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "order_stats"
	}
	return &Mirror{client: client, coll: client.Collection(collection)}, nil
}

// Ping reads a sentinel document to check connectivity. A missing document
// counts as reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	_, err := m.coll.Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// Close releases the client.
func (m *Mirror) Close(context.Context) error {
	return m.client.Close()
}

type snapshotDoc struct {
	OrderID       int64     `firestore:"orderId"`
	OrderNumber   string    `firestore:"orderNumber"`
	MenuID        *int64    `firestore:"menuId"`
	MenuTitle     string    `firestore:"menuTitle"`
	CustomerID    int64     `firestore:"customerId"`
	CustomerName  string    `firestore:"customerName"`
	OrderedAt     time.Time `firestore:"orderedAt"`
	ServiceDate   time.Time `firestore:"serviceDate"`
	GuestCount    int64     `firestore:"guestCount"`
	MenuPrice     string    `firestore:"menuPrice"`
	DeliveryPrice string    `firestore:"deliveryPrice"`
	Total         string    `firestore:"total"`
	Status        string    `firestore:"status"`
	Counted       bool      `firestore:"counted"`
	Version       int64     `firestore:"version"`
}

// UpsertSnapshot writes the snapshot in a transaction that skips the write
// when the stored document is not older.
func (m *Mirror) UpsertSnapshot(ctx context.Context, s stats.Snapshot) error {
	ref := m.coll.Doc(docID(s.OrderID))
	err := m.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored, err := storedVersion(tx.Get(ref))
		if err != nil {
			return err
		}
		if !s.Supersedes(stored) {
			return nil
		}
		return tx.Set(ref, toDoc(s))
	})
	if err != nil {
		return errors.Wrapf(err, "set snapshot %s", s.OrderNumber)
	}
	return nil
}

// storedVersion returns the version of an existing document, or 0 when the
// document does not exist.
func storedVersion(doc *firestore.DocumentSnapshot, err error) (int64, error) {
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !doc.Exists() {
		return 0, nil
	}
	v, err := doc.DataAt("version")
	if err != nil {
		// Written before versioning.
		return 0, nil
	}
	n, _ := v.(int64)
	return n, nil
}

// QueryAggregates folds counted snapshots into per-menu aggregates.
func (m *Mirror) QueryAggregates(ctx context.Context) ([]stats.MenuAggregate, error) {
	snaps, err := m.collect(ctx, m.coll.Where("counted", "==", true))
	if err != nil {
		return nil, err
	}
	return stats.Aggregate(snaps), nil
}

// QueryRevenue lists counted snapshots matching f by order date.
func (m *Mirror) QueryRevenue(ctx context.Context, f stats.RevenueFilter) ([]stats.RevenueEntry, error) {
	q := m.coll.Where("counted", "==", true)
	if f.MenuID != nil {
		q = q.Where("menuId", "==", *f.MenuID)
	}
	snaps, err := m.collect(ctx, q)
	if err != nil {
		return nil, err
	}
	return stats.Revenue(snaps, f), nil
}

func (m *Mirror) collect(ctx context.Context, q firestore.Query) ([]stats.Snapshot, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []stats.Snapshot
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterate snapshots")
		}
		var d snapshotDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, errors.Wrapf(err, "decode %s", doc.Ref.ID)
		}
		s, err := fromDoc(d)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", doc.Ref.ID)
		}
		out = append(out, s)
	}
	return out, nil
}

func docID(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}

func toDoc(s stats.Snapshot) snapshotDoc {
	return snapshotDoc{
		OrderID:       s.OrderID,
		OrderNumber:   s.OrderNumber,
		MenuID:        s.MenuID,
		MenuTitle:     s.MenuTitle,
		CustomerID:    s.CustomerID,
		CustomerName:  s.CustomerName,
		OrderedAt:     s.OrderedAt,
		ServiceDate:   s.ServiceDate,
		GuestCount:    int64(s.GuestCount),
		MenuPrice:     s.MenuPrice.StringFixed(2),
		DeliveryPrice: s.DeliveryPrice.StringFixed(2),
		Total:         s.Total.StringFixed(2),
		Status:        s.Status,
		Counted:       stats.Counted(s.Status),
		Version:       s.Version,
	}
}

func fromDoc(d snapshotDoc) (stats.Snapshot, error) {
	var (
		s   stats.Snapshot
		err error
	)
	if s.MenuPrice, err = decimal.NewFromString(d.MenuPrice); err != nil {
		return s, err
	}
	if s.DeliveryPrice, err = decimal.NewFromString(d.DeliveryPrice); err != nil {
		return s, err
	}
	if s.Total, err = decimal.NewFromString(d.Total); err != nil {
		return s, err
	}
	s.OrderID = d.OrderID
	s.OrderNumber = d.OrderNumber
	s.MenuID = d.MenuID
	s.MenuTitle = d.MenuTitle
	s.CustomerID = d.CustomerID
	s.CustomerName = d.CustomerName
	s.OrderedAt = d.OrderedAt.UTC()
	s.ServiceDate = d.ServiceDate.UTC()
	s.GuestCount = int(d.GuestCount)
	s.Status = d.Status
	s.Version = d.Version
	return s, nil
}
