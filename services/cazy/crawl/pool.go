package crawl

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// leaf is the outcome of one unit of pool work.
type leaf[T any] struct {
	value T
	err   error
}

type indexed[T any] struct {
	index int
	leaf  leaf[T]
}

// runPool calls `work` for every input on at most `limit` goroutines and
// returns the outcomes in input order. Workers only send on a channel, a
// single collector places the outcomes. With `failFast` the first failing
// input cancels the rest and its error is returned.
func runPool[In, Out any](
	ctx context.Context,
	limit int,
	failFast bool,
	inputs []In,
	work func(ctx context.Context, in In) (Out, error),
) ([]leaf[Out], error) {
	results := make([]leaf[Out], len(inputs))
	outcomes := make(chan indexed[Out])
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for o := range outcomes {
			results[o.index] = o.leaf
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes <- indexed[Out]{index: i, leaf: leaf[Out]{err: err}}
				return nil
			}

			value, err := work(gctx, in)
			outcomes <- indexed[Out]{index: i, leaf: leaf[Out]{value: value, err: err}}
			if err != nil && failFast {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	close(outcomes)
	<-collected
	return results, err
}
