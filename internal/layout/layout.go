// Package layout maps the set of angles present at a timestamp to screen
// placements on a fixed canvas.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"github.com/keagan/camstitch/internal/clips"
)

// ErrNoAngles is returned when asked to lay out an empty angle set.
var ErrNoAngles = errors.New("layout: no angles to place")

// Strategy selects how angles share the canvas.
type Strategy int

const (
	OneUp Strategy = iota + 1
	SideBySide
	Grid
)

func (s Strategy) String() string {
	switch s {
	case OneUp:
		return "one-up"
	case SideBySide:
		return "side-by-side"
	case Grid:
		return "grid"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Size is a width/height pair in pixels.
type Size struct {
	Width  int
	Height int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// DefaultCanvas is the 1080p output canvas.
var DefaultCanvas = Size{Width: 1920, Height: 1080}

// Placement is where one angle is drawn and the size it is scaled to.
type Placement struct {
	Angle clips.Angle
	X     int
	Y     int
	Size  Size
}

// Plan is the layout for one timestamp group. Placements are in drawing
// order, which is the layout table order and never map iteration order.
type Plan struct {
	Strategy   Strategy
	Canvas     Size
	Placements []Placement
}

// Placement returns the placement for angle a, if it is drawn.
func (p Plan) Placement(a clips.Angle) (Placement, bool) {
	for _, pl := range p.Placements {
		if pl.Angle == a {
			return pl, true
		}
	}
	return Placement{}, false
}

// Planner computes layout plans on a fixed canvas.
type Planner struct {
	Canvas Size
}

// NewPlanner returns a planner for canvas, falling back to DefaultCanvas when
// canvas has a non-positive dimension.
func NewPlanner(canvas Size) Planner {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = DefaultCanvas
	}
	return Planner{Canvas: canvas}
}

// Plan picks a strategy from the number of distinct angles:
//
//	1  -> OneUp: the angle fills the canvas
//	2  -> SideBySide: half-size cells, vertically centred, alphabetical order
//	3+ -> Grid: fixed quadrant per known angle, absent or unknown angles leave
//	      their cell empty
func (p Planner) Plan(angles []clips.Angle) (Plan, error) {
	set := distinct(angles)
	if len(set) == 0 {
		return Plan{}, ErrNoAngles
	}

	canvas := p.Canvas
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = DefaultCanvas
	}
	cell := Size{Width: canvas.Width / 2, Height: canvas.Height / 2}

	switch len(set) {
	case 1:
		return Plan{
			Strategy: OneUp,
			Canvas:   canvas,
			Placements: []Placement{
				{Angle: set[0], X: 0, Y: 0, Size: canvas},
			},
		}, nil

	case 2:
		sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
		top := (canvas.Height - cell.Height) / 2
		return Plan{
			Strategy: SideBySide,
			Canvas:   canvas,
			Placements: []Placement{
				{Angle: set[0], X: 0, Y: top, Size: cell},
				{Angle: set[1], X: cell.Width, Y: top, Size: cell},
			},
		}, nil

	default:
		present := make(map[clips.Angle]struct{}, len(set))
		for _, a := range set {
			present[a] = struct{}{}
		}
		placements := make([]Placement, 0, len(clips.KnownAngles))
		for _, slot := range gridTable(cell) {
			if _, ok := present[slot.Angle]; ok {
				placements = append(placements, slot)
			}
		}
		return Plan{Strategy: Grid, Canvas: canvas, Placements: placements}, nil
	}
}

// gridTable is the fixed quadrant assignment, in drawing order.
func gridTable(cell Size) []Placement {
	return []Placement{
		{Angle: clips.AngleFront, X: 0, Y: 0, Size: cell},
		{Angle: clips.AngleBack, X: cell.Width, Y: 0, Size: cell},
		{Angle: clips.AngleRightRepeater, X: 0, Y: cell.Height, Size: cell},
		{Angle: clips.AngleLeftRepeater, X: cell.Width, Y: cell.Height, Size: cell},
	}
}

func distinct(angles []clips.Angle) []clips.Angle {
	seen := make(map[clips.Angle]struct{}, len(angles))
	out := make([]clips.Angle, 0, len(angles))
	for _, a := range angles {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
