package stats

import (
	"cmp"
	"context"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source answers reporting queries from the relational store of record.
type Source interface {
	MenuAggregates(ctx context.Context) ([]MenuAggregate, error)
	Revenue(ctx context.Context, f RevenueFilter) ([]RevenueEntry, error)
	Snapshots(ctx context.Context) ([]Snapshot, error)
}

// Service serves reporting queries, preferring the mirror.
type Service struct {
	mirror Mirror
	source Source
}

// NewService returns a Service reading mirror first and source on failure.
func NewService(mirror Mirror, source Source) *Service {
	return &Service{mirror: mirror, source: source}
}

// MenuStats returns per-menu order counts and revenue.
func (s *Service) MenuStats(ctx context.Context) ([]MenuAggregate, error) {
	res, err := s.mirror.QueryAggregates(ctx)
	if err == nil {
		return res, nil
	}
	logFallback(ctx, "aggregates", err)

	res, err = s.source.MenuAggregates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query menu aggregates")
	}
	return res, nil
}

// Revenue returns revenue entries matching f.
func (s *Service) Revenue(ctx context.Context, f RevenueFilter) ([]RevenueEntry, error) {
	res, err := s.mirror.QueryRevenue(ctx, f)
	if err == nil {
		return res, nil
	}
	logFallback(ctx, "revenue", err)

	res, err = s.source.Revenue(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "query revenue")
	}
	return res, nil
}

func logFallback(ctx context.Context, query string, err error) {
	lvl := zap.WarnLevel
	if errors.Is(err, ErrMirrorUnavailable) {
		lvl = zap.DebugLevel
	}
	zctx.From(ctx).Log(lvl, "Stats mirror query failed, using relational store",
		zap.String("query", query),
		zap.Error(err),
	)
}

// Resync pushes every snapshot of source into mirror with at most limit
// concurrent upserts. It returns the number of snapshots written.
func Resync(ctx context.Context, source Source, mirror Mirror, limit int) (int, error) {
	snapshots, err := source.Snapshots(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list snapshots")
	}
	if limit <= 0 {
		limit = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, snap := range snapshots {
		g.Go(func() error {
			if err := mirror.UpsertSnapshot(ctx, snap); err != nil {
				return errors.Wrapf(err, "upsert %s", snap.OrderNumber)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(snapshots), nil
}

// SortAggregates orders by count then revenue, both descending.
func SortAggregates(a []MenuAggregate) {
	slices.SortStableFunc(a, func(x, y MenuAggregate) int {
		if c := cmp.Compare(y.Orders, x.Orders); c != 0 {
			return c
		}
		return y.Revenue.Cmp(x.Revenue)
	})
}

// SortRevenue orders entries by order date ascending.
func SortRevenue(r []RevenueEntry) {
	slices.SortStableFunc(r, func(x, y RevenueEntry) int {
		if c := x.OrderedAt.Compare(y.OrderedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.OrderID, y.OrderID)
	})
}
