package pipeline

import (
	"context"
	"time"

	"github.com/keagan/camstitch/internal/config"
	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/layout"
)

// Engine is the external media engine the pipeline drives.
type Engine interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	Compose(ctx context.Context, opts ffmpeg.ComposeOptions) error
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
}

// argLister is implemented by engines that can show the command they would
// run. Dry runs log it when available.
type argLister interface {
	ComposeArgs(opts ffmpeg.ComposeOptions) ([]string, error)
	ConcatArgs(opts ffmpeg.ConcatOptions) ([]string, error)
}

// Options configures a Runner
type Options struct {
	Workers     int
	WorkDirName string
	OutputExt   string
	Keep        time.Duration

	Canvas     layout.Size
	Background string

	// Codec is passed unchanged to every encode.
	Codec      string
	StreamCopy bool

	ProbeTimeout  time.Duration
	EncodeTimeout time.Duration

	// MinFreeBytes is checked on each directory before encoding. Zero
	// disables the check.
	MinFreeBytes uint64

	DryRun bool
}

// OptionsFromConfig maps application config onto runner options. codec is
// the encoder chosen for this run.
func OptionsFromConfig(cfg *config.Config, codec string) Options {
	return Options{
		Workers:       cfg.Workers,
		WorkDirName:   cfg.WorkDirName,
		OutputExt:     cfg.OutputExt,
		Keep:          cfg.Keep(),
		Canvas:        layout.Size{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height},
		Background:    cfg.Canvas.Color,
		Codec:         codec,
		StreamCopy:    cfg.Concat.StreamCopy,
		ProbeTimeout:  cfg.FFmpeg.ProbeTimeout,
		EncodeTimeout: cfg.FFmpeg.EncodeTimeout,
		MinFreeBytes:  cfg.MinFreeBytes,
	}
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.WorkDirName == "" {
		o.WorkDirName = "combined_tmp"
	}
	if o.OutputExt == "" {
		o.OutputExt = "mp4"
	}
	if o.Codec == "" {
		o.Codec = ffmpeg.DefaultVideoCodec
	}
	return o
}

// Observer receives progress events. Implementations must be safe for
// concurrent use: directories are processed in parallel.
type Observer interface {
	OnScan(root string, dirs int)
	OnDirectoryStart(dir string, groups int)
	OnGroupDone(dir string, res GroupResult)
	OnDirectoryDone(res DirectoryResult)

	// OnEncodeProgress is called with each progress block ffmpeg reports
	// while writing output.
	OnEncodeProgress(dir, output string, p ffmpeg.Progress)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnScan(string, int)              {}
func (NopObserver) OnDirectoryStart(string, int)    {}
func (NopObserver) OnGroupDone(string, GroupResult) {}
func (NopObserver) OnDirectoryDone(DirectoryResult) {}

func (NopObserver) OnEncodeProgress(string, string, ffmpeg.Progress) {}
