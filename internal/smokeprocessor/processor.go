package smokeprocessor

import (
	"context"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/metrics"
	"github.com/lodthe/graphql-smoketest/internal/scenario"
	"github.com/lodthe/graphql-smoketest/internal/smokerun"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var ErrUnknownMode = errors.New("unknown mode")
var ErrNoTargets = errors.New("no targets")

const DefaultConcurrency = 4

type Target struct {
	Name     string `mapstructure:"name"`
	Endpoint string `mapstructure:"endpoint"`
}

type Config struct {
	Mode        Mode
	Concurrency int

	// Delay is the pause between two runs in serial mode.
	Delay time.Duration

	// OutputPath is where results are exported as yaml. Empty disables the export.
	OutputPath string
}

type RunSaver interface {
	Create(ctx context.Context, run *smokerun.Run) error
}

type Processor struct {
	config *Config
	logger zerolog.Logger

	runner scenario.Runner
	saver  RunSaver
}

type job struct {
	scenario scenario.Scenario
	target   Target
	run      *smokerun.Run
}

// New creates a processor. saver may be nil when results are not persisted.
func New(config *Config, logger zerolog.Logger, runner scenario.Runner, saver RunSaver) *Processor {
	return &Processor{
		config: config,
		logger: logger.With().Str("component", "smokeprocessor").Logger(),
		runner: runner,
		saver:  saver,
	}
}

// Process runs every scenario against every target and returns the collected runs.
// A failed scenario does not stop the others.
func (p *Processor) Process(ctx context.Context, targets []Target, scenarios []scenario.Scenario) (*Report, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	var rp runsProcessor
	switch p.config.Mode {
	case SerialMode, "":
		rp = &serialProcessor{execute: p.execute, delay: p.config.Delay}
	case ParallelMode:
		concurrency := p.config.Concurrency
		if concurrency <= 0 {
			concurrency = DefaultConcurrency
		}
		rp = &parallelProcessor{execute: p.execute, concurrency: concurrency}
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%s (supported: %s, %s)", p.config.Mode, SerialMode, ParallelMode)
	}

	var jobs []*job
	for _, target := range targets {
		for _, s := range scenarios {
			jobs = append(jobs, &job{
				scenario: s,
				target:   target,
				run:      smokerun.New(s.Name(), target.Name, target.Endpoint),
			})
		}
	}

	p.logger.Info().
		Str("mode", string(rp.Mode())).
		Int("targets", len(targets)).
		Int("scenarios", len(scenarios)).
		Msg("processing scenarios")

	rp.Process(ctx, jobs)

	report := &Report{Runs: make([]*smokerun.Run, 0, len(jobs))}
	for _, j := range jobs {
		report.Runs = append(report.Runs, j.run)
	}

	if p.config.OutputPath != "" {
		err := smokerun.WriteYAML(p.config.OutputPath, report.Runs)
		if err != nil {
			return report, errors.Wrap(err, "failed to export results")
		}
	}

	if p.saver != nil {
		err := p.save(ctx, report.Runs)
		if err != nil {
			return report, err
		}
	}

	return report, nil
}

func (p *Processor) execute(ctx context.Context, j *job) {
	startedAt := time.Now()
	err := j.scenario.Run(ctx, p.runner, j.target.Endpoint)
	elapsed := time.Since(startedAt)

	j.run.Finish(startedAt, elapsed, err)
	metrics.Scenarios.Finished(j.run.Scenario, j.run.Target, j.run.Passed(), elapsed)

	if err != nil {
		p.logger.Error().Err(err).
			Str("scenario", j.run.Scenario).
			Str("target", j.run.Target).
			Dur("elapsed", elapsed).
			Msg("scenario failed")

		return
	}

	p.logger.Info().
		Str("scenario", j.run.Scenario).
		Str("target", j.run.Target).
		Dur("elapsed", elapsed).
		Msg("scenario passed")
}

func (p *Processor) save(ctx context.Context, runs []*smokerun.Run) error {
	var failed int
	for _, run := range runs {
		err := p.saver.Create(ctx, run)
		if err != nil {
			failed++
			p.logger.Error().Err(err).Str("id", run.ID).Msg("a run cannot be saved")
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d runs cannot be saved", failed, len(runs))
	}

	return nil
}

type Report struct {
	Runs []*smokerun.Run
}

func (r *Report) Failed() []*smokerun.Run {
	var failed []*smokerun.Run
	for _, run := range r.Runs {
		if !run.Passed() {
			failed = append(failed, run)
		}
	}

	return failed
}

func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}
