package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/keagan/camstitch/internal/clips"
	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/graph"
	"github.com/keagan/camstitch/internal/layout"
	"github.com/keagan/camstitch/internal/session"
	"github.com/keagan/camstitch/internal/timing"
)

const reasonDuplicate = "duplicate angle"

// GroupPlan is everything needed to encode one timestamp group.
type GroupPlan struct {
	Timestamp string

	// Inputs are the probed clip paths; the position of a path is the
	// stream index the graph reads it from.
	Inputs  []string
	Sources []graph.Source

	Common time.Duration
	Layout layout.Plan
	Graph  *graph.Plan
	Window timing.Window
	Output string

	Excluded []Exclusion
}

// ComposeOptions returns the engine request for the plan.
func (p *GroupPlan) ComposeOptions(codec string) ffmpeg.ComposeOptions {
	w := p.Window
	return ffmpeg.ComposeOptions{
		Inputs: ffmpeg.VideoInputs(p.Inputs...),
		Graph:  p.Graph,
		Codec:  codec,
		Output: p.Output,
		Window: &w,
	}
}

// Angles returns the angle of every probed source, in stream order.
func (p *GroupPlan) Angles() []clips.Angle {
	out := make([]clips.Angle, len(p.Sources))
	for i, s := range p.Sources {
		out[i] = s.Clip.Angle
	}
	return out
}

// PlanGroup probes a group and builds its composite plan in two passes.
//
// The first pass probes every clip and assigns stream indices in file order,
// dropping clips that fail to probe. Only once every index and duration is
// known does the second pass compute the common duration, the layout, the
// filter graph and the trailing window. When no clip survives probing the
// returned error wraps timing.ErrNoDurations.
func (r *Runner) PlanGroup(ctx context.Context, g clips.Group, workDir string) (*GroupPlan, error) {
	plan := &GroupPlan{
		Timestamp: g.Timestamp,
		Output:    filepath.Join(workDir, session.CompositeName(g.Timestamp, r.opts.OutputExt)),
	}
	for _, dup := range g.Duplicates {
		plan.Excluded = append(plan.Excluded, Exclusion{Path: dup.Path, Reason: reasonDuplicate})
	}

	durations := make([]time.Duration, 0, len(g.Files))
	for _, f := range g.Files {
		info, err := r.probe(ctx, f.Path)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("timestamp", g.Timestamp).
				Str("path", f.Path).
				Msg("probe failed, excluding clip")
			plan.Excluded = append(plan.Excluded, Exclusion{Path: f.Path, Reason: err.Error()})
			continue
		}

		plan.Sources = append(plan.Sources, graph.Source{
			Stream: len(plan.Inputs),
			Clip:   clips.NewClip(f, info.Width, info.Height, info.Duration, info.FrameCount),
		})
		plan.Inputs = append(plan.Inputs, f.Path)
		durations = append(durations, info.Duration)
	}

	common, err := timing.CommonDuration(durations...)
	if err != nil {
		return plan, fmt.Errorf("group %s: %w", g.Timestamp, err)
	}
	plan.Common = common

	lp, err := r.planner.Plan(plan.Angles())
	if err != nil {
		return plan, fmt.Errorf("group %s: %w", g.Timestamp, err)
	}
	plan.Layout = lp

	gp, err := graph.Composite(plan.Sources, common, lp, r.opts.Background)
	if err != nil {
		return plan, fmt.Errorf("group %s: %w", g.Timestamp, err)
	}
	plan.Graph = gp
	plan.Window = timing.TrailingWindow(common, r.opts.Keep)

	return plan, nil
}

func (r *Runner) probe(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if r.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.ProbeTimeout)
		defer cancel()
	}
	return r.engine.ProbeVideo(ctx, path)
}
