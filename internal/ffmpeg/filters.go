package ffmpeg

import (
	"fmt"
	"strings"
	"time"

	"github.com/keagan/camstitch/internal/graph"
	"github.com/keagan/camstitch/pkg/util"
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Trim keeps [start, start+duration) of the stream
func (fb *FilterBuilder) Trim(start, duration time.Duration) *FilterBuilder {
	if duration <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("trim=start=%s:duration=%s", util.FormatSeconds(start), util.FormatSeconds(duration)))
	return fb
}

// ResetPTS rebases timestamps to zero, required after trim
func (fb *FilterBuilder) ResetPTS() *FilterBuilder {
	fb.filters = append(fb.filters, "setpts=PTS-STARTPTS")
	return fb
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// Crop adds a crop filter
func (fb *FilterBuilder) Crop(width, height, x, y int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("crop=%d:%d:%d:%d", width, height, x, y))
	return fb
}

// Overlay draws the second input over the first at x:y
func (fb *FilterBuilder) Overlay(x, y int) *FilterBuilder {
	fb.filters = append(fb.filters, fmt.Sprintf("overlay=%d:%d", x, y))
	return fb
}

// Color adds a solid colour source of the given size and duration
func (fb *FilterBuilder) Color(color string, width, height int, duration time.Duration) *FilterBuilder {
	f := fmt.Sprintf("color=c=%s:s=%dx%d", color, width, height)
	if duration > 0 {
		f += ":d=" + util.FormatSeconds(duration)
	}
	fb.filters = append(fb.filters, f)
	return fb
}

// Concat joins n video segments without audio
func (fb *FilterBuilder) Concat(n int) *FilterBuilder {
	if n <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("concat=n=%d:v=1:a=0", n))
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// FilterComplex serializes a plan to -filter_complex syntax. The plan is
// validated first so a broken graph never reaches ffmpeg.
func FilterComplex(p *graph.Plan) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	chains := make([]string, 0, len(p.Nodes))
	for i, n := range p.Nodes {
		filter, err := nodeFilter(n.Params)
		if err != nil {
			return "", fmt.Errorf("node %d: %w", i, err)
		}

		var sb strings.Builder
		for _, in := range n.Inputs {
			sb.WriteString("[" + in.String() + "]")
		}
		sb.WriteString(filter)
		if n.Output != "" {
			sb.WriteString("[" + n.Output + "]")
		}
		chains = append(chains, sb.String())
	}
	return strings.Join(chains, ";"), nil
}

func nodeFilter(p graph.Params) (string, error) {
	fb := NewFilterBuilder()
	switch v := p.(type) {
	case graph.TrimParams:
		fb.Trim(v.Start, v.Duration).ResetPTS()
	case graph.CropParams:
		fb.Crop(v.Width, v.Height, v.X, v.Y)
	case graph.ScaleParams:
		fb.Scale(v.Width, v.Height)
	case graph.OverlayParams:
		fb.Overlay(v.X, v.Y)
	case graph.ColorParams:
		fb.Color(v.Color, v.Width, v.Height, v.Duration)
	case graph.ConcatParams:
		fb.Concat(v.Segments)
	default:
		return "", fmt.Errorf("unsupported operation %T", p)
	}

	filter := fb.Build()
	if filter == "" {
		return "", fmt.Errorf("empty filter for %s", p.Op())
	}
	return filter, nil
}
