package ffmpeg

import (
	"context"
	"fmt"
	"strings"

	"github.com/keagan/camstitch/pkg/util"
)

// Compose renders one timestamp group: every input is fed to the filter
// graph, the graph's sink is encoded with the given codec and, when a window
// is set, only that slice of the result is written.
func (e *Executor) Compose(ctx context.Context, opts ComposeOptions) error {
	args, err := e.ComposeArgs(opts)
	if err != nil {
		return fmt.Errorf("invalid compose options: %w", err)
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("codec", opts.Codec).
		Str("output", opts.Output).
		Msg("composing")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("compose output")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("compose failed: %w", err)
	}

	e.logger.Info().Str("output", opts.Output).Msg("compose completed")
	return nil
}

// ComposeArgs returns the ffmpeg arguments Compose would run, without the
// executor's global flags.
func (e *Executor) ComposeArgs(opts ComposeOptions) ([]string, error) {
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Graph == nil {
		return nil, fmt.Errorf("filter graph is required")
	}
	if opts.Graph.Inputs != len(opts.Inputs) {
		return nil, fmt.Errorf("filter graph expects %d inputs, got %d", opts.Graph.Inputs, len(opts.Inputs))
	}

	for _, in := range opts.Inputs {
		if in.Stream != "" && in.Stream != "v" {
			return nil, fmt.Errorf("unsupported stream selector %q for %s", in.Stream, in.Path)
		}
	}

	fc, err := FilterComplex(opts.Graph)
	if err != nil {
		return nil, err
	}

	args := inputArgs(opts.Inputs)
	args = append(args, "-filter_complex", fc, "-an")
	args = append(args, e.codecArgs(opts.Codec)...)

	if w := opts.Window; w != nil && w.Length > 0 {
		args = append(args,
			"-ss", util.FormatDuration(w.Start),
			"-t", util.FormatDuration(w.Length),
		)
	}

	return append(args, opts.Output), nil
}

func inputArgs(inputs []Input) []string {
	args := make([]string, 0, 2*len(inputs))
	for _, in := range inputs {
		args = append(args, "-i", in.Path)
	}
	return args
}

// codecArgs selects the encoder and, for software encoders, quality settings.
func (e *Executor) codecArgs(codec string) []string {
	if codec == "" {
		codec = DefaultVideoCodec
	}
	args := []string{"-c:v", codec}

	if isSoftwareEncoder(codec) {
		crf := e.crf
		if crf == 0 {
			crf = DefaultCRF
		}
		preset := e.preset
		if preset == "" {
			preset = DefaultPreset
		}
		args = append(args, "-crf", fmt.Sprintf("%d", crf), "-preset", preset)
	}
	return append(args, "-pix_fmt", "yuv420p")
}

func isSoftwareEncoder(codec string) bool {
	return strings.HasPrefix(codec, "libx26")
}
