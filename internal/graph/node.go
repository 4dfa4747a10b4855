// Package graph is a typed description of a media filter graph. Plans are
// built and validated here and serialized to an engine's syntax elsewhere.
package graph

import (
	"fmt"
	"time"
)

// Op is the operation a node performs.
type Op string

const (
	OpTrim        Op = "trim"
	OpCrop        Op = "crop"
	OpScale       Op = "scale"
	OpOverlay     Op = "overlay"
	OpColorSource Op = "color"
	OpConcat      Op = "concat"
)

// Ref points at a node input: either a raw input stream or the output label
// of an earlier node.
type Ref struct {
	Stream int
	Label  string
}

// StreamRef references the video stream of raw input i.
func StreamRef(i int) Ref {
	return Ref{Stream: i}
}

// LabelRef references an earlier node's output.
func LabelRef(label string) Ref {
	return Ref{Stream: -1, Label: label}
}

// IsStream reports whether r is a raw input stream.
func (r Ref) IsStream() bool {
	return r.Label == ""
}

func (r Ref) String() string {
	if r.IsStream() {
		return fmt.Sprintf("%d:v", r.Stream)
	}
	return r.Label
}

// Params holds the operation-specific arguments of a node.
type Params interface {
	Op() Op
}

type TrimParams struct {
	Start    time.Duration
	Duration time.Duration
}

type CropParams struct {
	Width  int
	Height int
	X      int
	Y      int
}

type ScaleParams struct {
	Width  int
	Height int
}

type OverlayParams struct {
	X int
	Y int
}

type ColorParams struct {
	Color    string
	Width    int
	Height   int
	Duration time.Duration
}

type ConcatParams struct {
	Segments int
}

func (TrimParams) Op() Op    { return OpTrim }
func (CropParams) Op() Op    { return OpCrop }
func (ScaleParams) Op() Op   { return OpScale }
func (OverlayParams) Op() Op { return OpOverlay }
func (ColorParams) Op() Op   { return OpColorSource }
func (ConcatParams) Op() Op  { return OpConcat }

// Node is one operation in a plan. A node with an empty Output is the sink.
type Node struct {
	Inputs []Ref
	Output string
	Params Params
}

// Op returns the node's operation.
func (n Node) Op() Op {
	if n.Params == nil {
		return ""
	}
	return n.Params.Op()
}

// IsSink reports whether n terminates the graph.
func (n Node) IsSink() bool {
	return n.Output == ""
}

// arity returns the number of inputs an operation takes.
func arity(p Params) int {
	switch v := p.(type) {
	case TrimParams, CropParams, ScaleParams:
		return 1
	case OverlayParams:
		return 2
	case ColorParams:
		return 0
	case ConcatParams:
		return v.Segments
	default:
		return -1
	}
}
