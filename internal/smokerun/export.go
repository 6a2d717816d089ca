package smokerun

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Data struct {
	Runs []*Run `yaml:"runs"`
}

func WriteYAML(path string, runs []*Run) error {
	out, err := yaml.Marshal(&Data{Runs: runs})
	if err != nil {
		return errors.Wrap(err, "failed to marshal runs to yaml")
	}

	err = os.WriteFile(path, out, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to write data to output file")
	}

	return nil
}

func ReadYAML(path string) ([]*Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read runs")
	}

	var data Data
	err = yaml.Unmarshal(raw, &data)
	if err != nil {
		return nil, errors.Wrap(err, "runs cannot be decoded")
	}

	return data.Runs, nil
}

// Import copies runs started within [after, before] from the repository to a yaml file.
// It returns the number of exported runs.
func Import(ctx context.Context, repo Repository, after time.Time, before time.Time, outputPath string) (int, error) {
	if before.Before(after) {
		return 0, errors.New("right time border cannot be before left time border")
	}

	runs, err := repo.List(ctx, after, before)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list runs")
	}

	err = WriteYAML(outputPath, runs)
	if err != nil {
		return 0, err
	}

	return len(runs), nil
}
