package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/keagan/camstitch/internal/clips"
	"github.com/keagan/camstitch/internal/layout"
)

// ErrNoPlacements is returned when a layout has nothing to draw.
var ErrNoPlacements = errors.New("graph: layout has no placements")

// DefaultBackground is the canvas colour behind the placements.
const DefaultBackground = "black"

const baseLabel = "base"

// Source is a probed clip bound to the raw input stream it is read from.
type Source struct {
	Stream int
	Clip   clips.Clip
}

// Crop is a crop rectangle in source pixels.
type Crop struct {
	Width  int
	Height int
	X      int
	Y      int
}

// BackCrop keeps the top half of a frame at the source aspect ratio,
// horizontally centred.
func BackCrop(width, height int) Crop {
	if width <= 0 || height <= 0 {
		return Crop{}
	}
	cropH := height / 2
	cropW := cropH * width / height
	return Crop{
		Width:  cropW,
		Height: cropH,
		X:      (width - cropW) / 2,
		Y:      0,
	}
}

// Composite builds the composition graph for one timestamp group.
//
// Each placed source gets a transform chain (trim to [0, common], a back
// camera crop outside OneUp, scale to the placement size) whose output is
// labelled by angle. A colour source fills the canvas and one overlay per
// placement is chained on top of it in layout order; the last overlay is the
// sink. Sources whose angle has no placement are left out of the graph.
func Composite(sources []Source, common time.Duration, lp layout.Plan, background string) (*Plan, error) {
	if len(lp.Placements) == 0 {
		return nil, ErrNoPlacements
	}
	if common <= 0 {
		return nil, fmt.Errorf("graph: non-positive common duration %v", common)
	}
	if background == "" {
		background = DefaultBackground
	}

	byAngle := make(map[clips.Angle]Source, len(sources))
	for _, s := range sources {
		if _, dup := byAngle[s.Clip.Angle]; dup {
			return nil, fmt.Errorf("graph: angle %s bound to more than one input", s.Clip.Angle)
		}
		byAngle[s.Clip.Angle] = s
	}

	b := newBuilder(len(sources))
	transformed := make([]string, len(lp.Placements))

	for i, pl := range lp.Placements {
		src, ok := byAngle[pl.Angle]
		if !ok {
			return nil, fmt.Errorf("graph: no input for placed angle %s", pl.Angle)
		}
		transformed[i] = b.transform(src, common, pl, lp.Strategy)
	}

	prev := b.emit(nil, baseLabel, ColorParams{
		Color:    background,
		Width:    lp.Canvas.Width,
		Height:   lp.Canvas.Height,
		Duration: common,
	})

	for i, pl := range lp.Placements {
		out := ""
		if i < len(lp.Placements)-1 {
			out = fmt.Sprintf("ov%d", i+1)
		}
		prev = b.emit([]Ref{LabelRef(prev), LabelRef(transformed[i])}, out, OverlayParams{X: pl.X, Y: pl.Y})
	}

	plan := b.plan()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Concat builds a graph joining the video streams of n inputs in order.
func Concat(n int) (*Plan, error) {
	if n <= 0 {
		return nil, fmt.Errorf("graph: concat needs at least one input, got %d", n)
	}
	b := newBuilder(n)
	inputs := make([]Ref, n)
	for i := range inputs {
		inputs[i] = StreamRef(i)
	}
	b.emit(inputs, "", ConcatParams{Segments: n})

	plan := b.plan()
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

type builder struct {
	inputs int
	nodes  []Node
	used   map[string]int
}

func newBuilder(inputs int) *builder {
	return &builder{
		inputs: inputs,
		used:   make(map[string]int),
	}
}

// label returns want, or want_N if want was already taken.
func (b *builder) label(want string) string {
	n := b.used[want]
	b.used[want] = n + 1
	if n == 0 {
		return want
	}
	return b.label(fmt.Sprintf("%s_%d", want, n+1))
}

func (b *builder) emit(inputs []Ref, output string, p Params) string {
	if output != "" {
		output = b.label(output)
	}
	b.nodes = append(b.nodes, Node{Inputs: inputs, Output: output, Params: p})
	return output
}

func (b *builder) transform(src Source, common time.Duration, pl layout.Placement, strategy layout.Strategy) string {
	name := string(src.Clip.Angle)

	cur := b.emit([]Ref{StreamRef(src.Stream)}, name+"_trim", TrimParams{Start: 0, Duration: common})

	if src.Clip.Angle == clips.AngleBack && strategy != layout.OneUp {
		c := BackCrop(src.Clip.Width, src.Clip.Height)
		if c.Width > 0 && c.Height > 0 {
			cur = b.emit([]Ref{LabelRef(cur)}, name+"_crop", CropParams{
				Width:  c.Width,
				Height: c.Height,
				X:      c.X,
				Y:      c.Y,
			})
		}
	}

	return b.emit([]Ref{LabelRef(cur)}, name, ScaleParams{Width: pl.Size.Width, Height: pl.Size.Height})
}

func (b *builder) plan() *Plan {
	return &Plan{Inputs: b.inputs, Nodes: b.nodes}
}
