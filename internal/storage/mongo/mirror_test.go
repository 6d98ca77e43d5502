package mongo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/xenking/catering-orders/internal/domain/stats"
)

func TestToDoc(t *testing.T) {
	menuID := int64(7)
	s := stats.Snapshot{
		OrderID:       42,
		OrderNumber:   "CMD-0000002A",
		MenuID:        &menuID,
		MenuTitle:     "Menu Prestige",
		OrderedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		GuestCount:    12,
		MenuPrice:     decimal.RequireFromString("702"),
		DeliveryPrice: decimal.RequireFromString("58.5"),
		Total:         decimal.RequireFromString("760.5"),
		Status:        "cancelled",
	}

	doc, err := toDoc(s)
	require.NoError(t, err)
	assert.Equal(t, int64(42), doc.OrderID)
	assert.Equal(t, "760.50", doc.Total.String())
	assert.False(t, doc.Counted)

	s.Status = "delivered"
	doc, err = toDoc(s)
	require.NoError(t, err)
	assert.True(t, doc.Counted)
}

func TestDecimal128RoundTrip(t *testing.T) {
	for _, in := range []string{"0", "5.00", "536.8", "760.50", "1234567.89"} {
		v, err := toDecimal128(decimal.RequireFromString(in))
		require.NoError(t, err)
		out, err := fromDecimal128(v)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString(in).Equal(out), in)
	}
}

func TestUpsertFilter_OnlyMatchesOlderVersions(t *testing.T) {
	f := upsertFilter(stats.Snapshot{OrderID: 42, Version: 3})

	require.Len(t, f, 2)
	assert.Equal(t, "_id", f[0].Key)
	assert.Equal(t, int64(42), f[0].Value)
	assert.Equal(t, "$or", f[1].Key)
	assert.Equal(t, bson.A{
		bson.D{{Key: "version", Value: bson.D{{Key: "$lt", Value: int64(3)}}}},
		bson.D{{Key: "version", Value: bson.D{{Key: "$exists", Value: false}}}},
	}, f[1].Value)
}

func TestToDoc_CarriesVersion(t *testing.T) {
	doc, err := toDoc(stats.Snapshot{Version: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Version)
}
