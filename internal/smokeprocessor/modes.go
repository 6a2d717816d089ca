package smokeprocessor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	SerialMode   Mode = "serial"
	ParallelMode Mode = "parallel"
)

type runsProcessor interface {
	Mode() Mode
	Process(ctx context.Context, jobs []*job)
}

type executeFunc = func(ctx context.Context, j *job)

// serialProcessor runs jobs one after another, waiting delay between them.
type serialProcessor struct {
	execute executeFunc
	delay   time.Duration
}

func (p *serialProcessor) Mode() Mode {
	return SerialMode
}

func (p *serialProcessor) Process(ctx context.Context, jobs []*job) {
	for i, j := range jobs {
		p.execute(ctx, j)

		if p.delay == 0 || i == len(jobs)-1 {
			continue
		}

		select {
		case <-ctx.Done():
		case <-time.After(p.delay):
		}
	}
}

// parallelProcessor runs up to concurrency jobs at a time.
type parallelProcessor struct {
	execute     executeFunc
	concurrency int
}

func (p *parallelProcessor) Mode() Mode {
	return ParallelMode
}

func (p *parallelProcessor) Process(ctx context.Context, jobs []*job) {
	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for _, j := range jobs {
		j := j

		g.Go(func() error {
			p.execute(gctx, j)
			return nil
		})
	}

	_ = g.Wait()
}
