package smokeprocessor

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/smokerun"

	"github.com/pkg/errors"
)

var ErrNoRuns = errors.New("no runs to aggregate")

type Aggregator struct {
	elapsed []time.Duration
}

func NewAggregator(runs []*smokerun.Run) *Aggregator {
	elapsed := make([]time.Duration, 0, len(runs))
	for _, run := range runs {
		elapsed = append(elapsed, run.Elapsed)
	}

	sort.Slice(elapsed, func(i, j int) bool {
		return elapsed[i] < elapsed[j]
	})

	return &Aggregator{elapsed: elapsed}
}

// Percentile returns the nearest-rank percentile of elapsed times.
func (a *Aggregator) Percentile(percentile int) (time.Duration, error) {
	if len(a.elapsed) == 0 {
		return 0, ErrNoRuns
	}
	if percentile <= 0 || percentile > 100 {
		return 0, errors.Errorf("invalid percentile %d", percentile)
	}

	index := (len(a.elapsed)*percentile+99)/100 - 1

	return a.elapsed[index], nil
}

func (a *Aggregator) WritePercentiles(w io.Writer, percentiles []int) {
	for _, perc := range percentiles {
		value, err := a.Percentile(perc)
		if err != nil {
			fmt.Fprintf(w, "Failed to calculate percentile %d: %s\n", perc, err)
			continue
		}

		fmt.Fprintf(w, "Percentile %d: %s\n", perc, value)
	}
}
