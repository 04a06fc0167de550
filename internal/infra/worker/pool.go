// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"scalable-rag-engine/internal/infra/logging"
)

// Loop is one worker's body. It runs until ctx is done or it returns an error.
type Loop func(ctx context.Context, worker int) error

// Pool runs a fixed number of copies of a Loop. The first error (or panic)
// cancels the rest.
type Pool struct {
	n   int
	log *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pool{n: workers, log: logger}
}

func (p *Pool) Size() int { return p.n }

// Run blocks until every worker has returned.
func (p *Pool) Run(ctx context.Context, loop Loop) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.n; i++ {
		id := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error().Int("worker", id).Interface("panic", r).Msg("worker panicked")
					err = fmt.Errorf("worker %d panicked: %v", id, r)
				}
			}()
			p.log.Debug().Int("worker", id).Msg("worker started")
			err = loop(gctx, id)
			if err != nil {
				p.log.Error().Err(err).Int("worker", id).Msg("worker stopped")
			}
			return err
		})
	}
	return g.Wait()
}
