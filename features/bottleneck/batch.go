package bottleneck

import (
	"context"
	"fmt"

	"github.com/beyondboy/shennong/audio"
	"github.com/beyondboy/shennong/features"
	"golang.org/x/sync/errgroup"
)

// ProcessAll runs Process on every signal with at most workers concurrent
// calls (workers < 1 means one per signal). Results are in input order. The
// first failure stops dispatching the remaining signals and is returned
// with the index of the signal that caused it.
func (p *Processor) ProcessAll(ctx context.Context, signals []*audio.Signal, workers int) ([]*features.Features, error) {
	results := make([]*features.Features, len(signals))
	if len(signals) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, signal := range signals {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := p.Process(signal)
			if err != nil {
				return fmt.Errorf("signal %d: %w", i, err)
			}
			results[i] = f
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
