package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jhu066/ijon-taliro/internal/control"
	"github.com/jhu066/ijon-taliro/internal/dynamo"
)

const (
	TestExt  = ".test"
	TraceExt = ".trace"
)

// ExtractResult counts the files written by Extract.
type ExtractResult struct {
	Tests  int
	Traces int
}

// Extract writes one {n}.test / {n}.trace pair per evaluation, n being the
// evaluation's position within its run. The .test file holds the command
// sequence in simulator stdin form; the .trace file holds one "x,y" line per
// state. A collection with more than one run is split into run-{r}
// subdirectories so runs do not overwrite each other.
func Extract(runs dynamo.RunCollection, inputsDir, outputsDir string) (ExtractResult, error) {
	var res ExtractResult
	for r, run := range runs {
		inDir, outDir := inputsDir, outputsDir
		if len(runs) > 1 {
			sub := fmt.Sprintf("run-%d", r)
			inDir = filepath.Join(inputsDir, sub)
			outDir = filepath.Join(outputsDir, sub)
		}
		for _, dir := range []string{inDir, outDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return res, fmt.Errorf("%w: %s: %v", dynamo.ErrWriteFailure, dir, err)
			}
		}

		for n, e := range run.Evaluations {
			testPath := filepath.Join(inDir, strconv.Itoa(n)+TestExt)
			if err := writeFile(testPath, control.Serialize(e.Model)); err != nil {
				return res, err
			}
			res.Tests++

			tracePath := filepath.Join(outDir, strconv.Itoa(n)+TraceExt)
			if err := writeFile(tracePath, []byte(FormatTrace(e.Trace))); err != nil {
				return res, err
			}
			res.Traces++
		}
	}
	return res, nil
}

// FormatTrace renders states as newline-joined "x,y" lines with no trailing
// newline.
func FormatTrace(traj dynamo.Trajectory) string {
	lines := make([]string, len(traj.States))
	for i, s := range traj.States {
		lines[i] = num(s.X) + "," + num(s.Y)
	}
	return strings.Join(lines, "\n")
}
