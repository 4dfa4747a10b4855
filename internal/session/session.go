// Package session plans the concatenation of a directory's composites into
// one session file.
package session

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/keagan/camstitch/internal/graph"
	"github.com/keagan/camstitch/pkg/util"
)

// CompositeOutput is the composited video of one timestamp group.
type CompositeOutput struct {
	Timestamp string
	Path      string
}

// Plan describes how the session file is assembled.
type Plan struct {
	// Inputs are composite paths in ascending timestamp order.
	Inputs []string
	Output string
	Graph  *graph.Plan
}

// CompositeName is the file name of the composite for timestamp.
func CompositeName(timestamp, ext string) string {
	return fmt.Sprintf("%s_combined.%s", timestamp, util.NormalizeExt(ext))
}

// OutputName is the file name of the session file whose earliest composite
// was recorded at timestamp.
func OutputName(earliest, ext string) string {
	return fmt.Sprintf("dashcam_%s_combined.%s", earliest, util.NormalizeExt(ext))
}

// Build orders outputs by timestamp and plans a video-only concatenation into
// dir. ok is false when there is nothing to concatenate.
func Build(dir string, outputs []CompositeOutput, ext string) (Plan, bool, error) {
	if len(outputs) == 0 {
		return Plan{}, false, nil
	}

	sorted := append([]CompositeOutput(nil), outputs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	inputs := make([]string, len(sorted))
	for i, o := range sorted {
		inputs[i] = o.Path
	}

	g, err := graph.Concat(len(inputs))
	if err != nil {
		return Plan{}, false, err
	}

	return Plan{
		Inputs: inputs,
		Output: filepath.Join(dir, OutputName(sorted[0].Timestamp, ext)),
		Graph:  g,
	}, true, nil
}
