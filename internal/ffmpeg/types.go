package ffmpeg

import (
	"time"

	"github.com/keagan/camstitch/internal/graph"
	"github.com/keagan/camstitch/internal/timing"
)

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath   string
	Duration   time.Duration
	Width      int
	Height     int
	FrameCount int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasAudio   bool
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// Default encoding settings
const (
	DefaultCRF           = 23
	DefaultPreset        = "medium"
	DefaultVideoCodec    = "libx264"
	DefaultStderrLines   = 20
	encoderProbeDuration = 10 * time.Second
)

// Input is one file handed to ffmpeg with -i. Stream selects the stream type
// the graph reads from it ("v" for video).
type Input struct {
	Path   string
	Stream string
}

// VideoInputs wraps paths as video-only inputs, preserving order.
func VideoInputs(paths ...string) []Input {
	out := make([]Input, len(paths))
	for i, p := range paths {
		out[i] = Input{Path: p, Stream: "v"}
	}
	return out
}

// ComposeOptions configures a composite encode of one timestamp group.
type ComposeOptions struct {
	Inputs       []Input
	Graph        *graph.Plan
	Codec        string
	Output       string
	Window       *timing.Window
	ProgressFunc ProgressFunc
}

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs []string
	Output string

	// Graph joins the inputs when StreamCopy is false.
	Graph *graph.Plan
	Codec string

	// StreamCopy uses the concat demuxer and copies the video stream
	// instead of re-encoding through Graph.
	StreamCopy   bool
	ProgressFunc ProgressFunc
}
