package extract

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ExtractMany runs several requests against the store at path. Each request
// opens its own store handle, so requests run concurrently on up to
// WithWorkers goroutines (GOMAXPROCS by default). Results come back in
// request order. The first failure cancels the requests still running.
func ExtractMany(ctx context.Context, path string, reqs []Request, opts ...Option) ([]*Tensor, error) {
	o := buildOptions(opts)
	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	// Pin the resolved progress sink so every worker shares one printer.
	opts = append(opts[:len(opts):len(opts)], WithProgress(o.progress), WithLogger(o.log))

	results := make([]*Tensor, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, req := range reqs {
		g.Go(func() error {
			t, err := ExtractFile(ctx, path, req, opts...)
			if err != nil {
				return fmt.Errorf("request %d (%s): %w", i, req.Variable, err)
			}
			results[i] = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
