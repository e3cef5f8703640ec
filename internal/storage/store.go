package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

// Extension is appended to run file paths that do not already carry it.
const Extension = ".runs"

// NormalizePath appends Extension unless the path already ends with it. An
// existing suffix is kept, so "results.json" becomes "results.json.runs".
func NormalizePath(path string) string {
	if filepath.Ext(path) == Extension {
		return path
	}
	return path + Extension
}

// Save writes the collection to path (after normalization) and returns the
// path written. The previous file is replaced atomically; a failed save
// leaves it untouched.
func Save(runs dynamo.RunCollection, path string) (string, error) {
	path = NormalizePath(path)

	data, err := Encode(runs)
	if err != nil {
		return "", fmt.Errorf("encoding runs: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("%w: %s: %v", dynamo.ErrWriteFailure, path, err)
		}
	}
	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", dynamo.ErrWriteFailure, path, err)
	}
	return path, nil
}

// Load reads and validates a run file. A missing file is dynamo.ErrNotFound;
// anything that cannot be read or does not decode to run records is
// dynamo.ErrInvalidFormat.
func Load(path string) (dynamo.RunCollection, error) {
	path = NormalizePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", dynamo.ErrNotFound, path)
		}
		return nil, &dynamo.FormatError{Path: path, Reason: "not a readable run file", Wrapped: err}
	}
	return Decode(path, data)
}

// Locate returns the run and evaluation index of the lowest-cost evaluation
// across all runs. Ties keep the first in flattened order.
func Locate(runs dynamo.RunCollection) (int, int, error) {
	bestRun, bestEval := -1, -1
	for r, run := range runs {
		for e, eval := range run.Evaluations {
			if bestRun < 0 || dynamo.Less(eval.Cost, runs[bestRun].Evaluations[bestEval].Cost) {
				bestRun, bestEval = r, e
			}
		}
	}
	if bestRun < 0 {
		return -1, -1, dynamo.ErrEmptyCollection
	}
	return bestRun, bestEval, nil
}

// Best returns the lowest-cost evaluation across all runs.
func Best(runs dynamo.RunCollection) (dynamo.Evaluation, error) {
	r, e, err := Locate(runs)
	if err != nil {
		return dynamo.Evaluation{}, err
	}
	return runs[r].Evaluations[e], nil
}
