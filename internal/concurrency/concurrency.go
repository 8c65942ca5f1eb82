// Package concurrency provides a bounded fan-out helper.
package concurrency

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls fn once for every item with at most min(limit, len(items)) calls in
// flight and returns the results in input order (not completion order).
//
// A limit below 1 is treated as 1. The first error fails the whole batch: the
// context passed to fn is cancelled, items not yet started are skipped, and that
// error is returned with a nil result slice. A batch cut short by ctx fails with
// ctx.Err(); partial results are never returned as success.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T, index int) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range items {
		// Stop handing out work once a worker has failed.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, items[i], i)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Each is Map for workers that produce no result.
func Each[T any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T, index int) error) error {
	_, err := Map(ctx, items, limit, func(ctx context.Context, item T, index int) (struct{}, error) {
		return struct{}{}, fn(ctx, item, index)
	})
	return err
}
