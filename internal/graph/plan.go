package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidPlan wraps every structural violation found by Validate.
var ErrInvalidPlan = errors.New("invalid filter graph")

// Plan is an ordered list of nodes over Inputs raw input streams.
type Plan struct {
	Inputs int
	Nodes  []Node
}

// Sink returns the last node of the plan.
func (p *Plan) Sink() (Node, bool) {
	if p == nil || len(p.Nodes) == 0 {
		return Node{}, false
	}
	return p.Nodes[len(p.Nodes)-1], true
}

// Labels returns every output label in emission order.
func (p *Plan) Labels() []string {
	out := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.Output != "" {
			out = append(out, n.Output)
		}
	}
	return out
}

// Validate checks the structural invariants of the plan:
//   - every node has the inputs its operation needs
//   - stream refs are within [0, Inputs)
//   - label refs point at an output emitted earlier, each consumed once
//   - output labels are unique
//   - the last node, and only it, is the sink, and every other label is consumed
func (p *Plan) Validate() error {
	if p == nil || len(p.Nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrInvalidPlan)
	}

	produced := make(map[string]int, len(p.Nodes))
	consumed := make(map[string]bool, len(p.Nodes))
	last := len(p.Nodes) - 1

	for i, n := range p.Nodes {
		if n.Params == nil {
			return fmt.Errorf("%w: node %d has no operation", ErrInvalidPlan, i)
		}
		if want := arity(n.Params); want != len(n.Inputs) {
			return fmt.Errorf("%w: node %d (%s) has %d inputs, want %d", ErrInvalidPlan, i, n.Op(), len(n.Inputs), want)
		}

		for _, in := range n.Inputs {
			if in.IsStream() {
				if in.Stream < 0 || in.Stream >= p.Inputs {
					return fmt.Errorf("%w: node %d (%s) reads stream %d of %d", ErrInvalidPlan, i, n.Op(), in.Stream, p.Inputs)
				}
				continue
			}
			if _, ok := produced[in.Label]; !ok {
				return fmt.Errorf("%w: node %d (%s) reads undefined label %q", ErrInvalidPlan, i, n.Op(), in.Label)
			}
			if consumed[in.Label] {
				return fmt.Errorf("%w: label %q consumed twice", ErrInvalidPlan, in.Label)
			}
			consumed[in.Label] = true
		}

		if n.IsSink() {
			if i != last {
				return fmt.Errorf("%w: node %d (%s) has no output but is not last", ErrInvalidPlan, i, n.Op())
			}
			continue
		}
		if i == last {
			return fmt.Errorf("%w: last node (%s) must be the sink, has output %q", ErrInvalidPlan, n.Op(), n.Output)
		}
		if prev, dup := produced[n.Output]; dup {
			return fmt.Errorf("%w: label %q emitted by nodes %d and %d", ErrInvalidPlan, n.Output, prev, i)
		}
		produced[n.Output] = i
	}

	for label := range produced {
		if !consumed[label] {
			return fmt.Errorf("%w: label %q is never consumed", ErrInvalidPlan, label)
		}
	}
	return nil
}
