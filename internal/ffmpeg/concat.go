package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Concat merges multiple video files into one
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Bool("stream_copy", opts.StreamCopy).
		Msg("concatenating videos")

	var args []string
	if opts.StreamCopy {
		concatFile, err := e.createConcatFile(opts.Inputs)
		if err != nil {
			return fmt.Errorf("failed to create concat file: %w", err)
		}
		defer os.Remove(concatFile)
		args = concatDemuxerArgs(concatFile, opts.Output)
	} else {
		var err error
		args, err = e.ConcatArgs(opts)
		if err != nil {
			return err
		}
	}

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

// ConcatArgs returns the re-encoding concat arguments for opts.
func (e *Executor) ConcatArgs(opts ConcatOptions) ([]string, error) {
	if opts.StreamCopy {
		return concatDemuxerArgs("<list>", opts.Output), nil
	}
	if opts.Graph == nil {
		return nil, fmt.Errorf("concat graph is required unless stream copying")
	}
	if opts.Graph.Inputs != len(opts.Inputs) {
		return nil, fmt.Errorf("concat graph expects %d inputs, got %d", opts.Graph.Inputs, len(opts.Inputs))
	}

	fc, err := FilterComplex(opts.Graph)
	if err != nil {
		return nil, err
	}

	args := inputArgs(VideoInputs(opts.Inputs...))
	args = append(args, "-filter_complex", fc, "-an")
	args = append(args, e.codecArgs(opts.Codec)...)
	return append(args, opts.Output), nil
}

func concatDemuxerArgs(list, output string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-map", "0:v",
		"-c", "copy",
		output,
	}
}

// createConcatFile generates a temporary file list for ffmpeg concat
func (e *Executor) createConcatFile(inputs []string) (string, error) {
	name := filepath.Join(os.TempDir(), fmt.Sprintf("camstitch-concat-%s.txt", uuid.NewString()))
	tmpFile, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}
		// single quotes inside a quoted path are written as '\''
		escaped := strings.ReplaceAll(absPath, "'", `'\''`)
		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", escaped); err != nil {
			return "", err
		}
	}

	return tmpFile.Name(), nil
}
