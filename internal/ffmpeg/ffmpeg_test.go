package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keagan/camstitch/internal/clips"
	"github.com/keagan/camstitch/internal/graph"
	"github.com/keagan/camstitch/internal/layout"
	"github.com/keagan/camstitch/internal/timing"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	skipIfNoFFmpeg(t)

	e, err := New(zerolog.New(zerolog.NewTestWriter(t)), Options{Threads: 2})
	require.NoError(t, err)
	return e
}

// offlineExecutor builds an executor without resolving binaries, for
// argument construction tests.
func offlineExecutor() *Executor {
	return &Executor{
		logger:      zerolog.Nop(),
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		crf:         DefaultCRF,
		preset:      DefaultPreset,
	}
}

func oneUpPlan(t *testing.T) *graph.Plan {
	t.Helper()
	lp := layout.Plan{
		Strategy: layout.OneUp,
		Canvas:   layout.DefaultCanvas,
		Placements: []layout.Placement{
			{Angle: clips.AngleFront, Size: layout.DefaultCanvas},
		},
	}
	src := []graph.Source{{
		Stream: 0,
		Clip:   clips.Clip{Angle: clips.AngleFront, Width: 1280, Height: 960, Duration: 30 * time.Second},
	}}
	p, err := graph.Composite(src, 30*time.Second, lp, "")
	require.NoError(t, err)
	return p
}

func TestFilterBuilder(t *testing.T) {
	filter := NewFilterBuilder().
		Trim(0, 30*time.Second).
		ResetPTS().
		Crop(640, 480, 320, 0).
		Scale(960, 540).
		Build()

	assert.Equal(t, "trim=start=0:duration=30,setpts=PTS-STARTPTS,crop=640:480:320:0,scale=960:540", filter)
}

func TestFilterBuilderEmpty(t *testing.T) {
	assert.Equal(t, "", NewFilterBuilder().Build())
}

func TestFilterBuilderSkipsInvalid(t *testing.T) {
	filter := NewFilterBuilder().
		Scale(0, 540).
		Crop(-1, 10, 0, 0).
		Trim(0, 0).
		Concat(0).
		Build()
	assert.Equal(t, "", filter)
}

func TestFilterBuilderColor(t *testing.T) {
	assert.Equal(t, "color=c=black:s=1920x1080:d=12.5",
		NewFilterBuilder().Color("black", 1920, 1080, 12500*time.Millisecond).Build())
	assert.Equal(t, "color=c=black:s=1920x1080",
		NewFilterBuilder().Color("black", 1920, 1080, 0).Build())
}

func TestFilterComplexOneUp(t *testing.T) {
	fc, err := FilterComplex(oneUpPlan(t))
	require.NoError(t, err)

	want := strings.Join([]string{
		"[0:v]trim=start=0:duration=30,setpts=PTS-STARTPTS[front_trim]",
		"[front_trim]scale=1920:1080[front]",
		"color=c=black:s=1920x1080:d=30[base]",
		"[base][front]overlay=0:0",
	}, ";")
	assert.Equal(t, want, fc)
}

func TestFilterComplexGridCropsBack(t *testing.T) {
	common := 20 * time.Second
	angles := []clips.Angle{clips.AngleFront, clips.AngleBack, clips.AngleLeftRepeater}
	lp, err := layout.NewPlanner(layout.DefaultCanvas).Plan(angles)
	require.NoError(t, err)

	var src []graph.Source
	for i, a := range angles {
		src = append(src, graph.Source{
			Stream: i,
			Clip:   clips.Clip{Angle: a, Width: 1280, Height: 960, Duration: common},
		})
	}
	p, err := graph.Composite(src, common, lp, "black")
	require.NoError(t, err)

	fc, err := FilterComplex(p)
	require.NoError(t, err)

	assert.Contains(t, fc, "[1:v]trim=start=0:duration=20,setpts=PTS-STARTPTS[back_trim]")
	assert.Contains(t, fc, "[back_trim]crop=640:480:320:0[back_crop]")
	assert.Contains(t, fc, "[back_crop]scale=960:540[back]")
	assert.Contains(t, fc, "[2:v]trim=start=0:duration=20,setpts=PTS-STARTPTS[left_repeater_trim]")
	assert.NotContains(t, fc, "front_crop")

	chains := strings.Split(fc, ";")
	last := chains[len(chains)-1]
	assert.True(t, strings.HasPrefix(last, "[ov2]"), "sink should chain on the previous overlay: %s", last)
	assert.False(t, strings.HasSuffix(last, "]"), "sink must stay unlabelled: %s", last)
}

func TestFilterComplexConcat(t *testing.T) {
	p, err := graph.Concat(3)
	require.NoError(t, err)

	fc, err := FilterComplex(p)
	require.NoError(t, err)
	assert.Equal(t, "[0:v][1:v][2:v]concat=n=3:v=1:a=0", fc)
}

func TestFilterComplexRejectsInvalidPlan(t *testing.T) {
	p := &graph.Plan{
		Inputs: 1,
		Nodes: []graph.Node{
			{Inputs: []graph.Ref{graph.LabelRef("missing")}, Params: graph.ScaleParams{Width: 10, Height: 10}},
		},
	}
	_, err := FilterComplex(p)
	assert.ErrorIs(t, err, graph.ErrInvalidPlan)
}

func TestParseProbeOutput(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 960,
			 "avg_frame_rate": "36/1", "r_frame_rate": "36/1", "duration": "59.5", "nb_frames": "2142"},
			{"codec_type": "audio", "codec_name": "aac"}
		],
		"format": {"duration": "60.000000", "bit_rate": "4000000"}
	}`)

	info, err := parseProbeOutput("clip.mp4", out)
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", info.FilePath)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, 960, info.Height)
	assert.Equal(t, 60*time.Second, info.Duration)
	assert.Equal(t, 2142, info.FrameCount)
	assert.InDelta(t, 36.0, info.FPS, 0.001)
	assert.Equal(t, int64(4000000), info.Bitrate)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.True(t, info.HasAudio)
}

func TestParseProbeOutputDerivesFrameCount(t *testing.T) {
	out := []byte(`{
		"streams": [{"codec_type": "video", "width": 640, "height": 480,
		             "avg_frame_rate": "0/0", "r_frame_rate": "25/1"}],
		"format": {"duration": "4"}
	}`)

	info, err := parseProbeOutput("a.mp4", out)
	require.NoError(t, err)
	assert.Equal(t, 100, info.FrameCount)
	assert.InDelta(t, 25.0, info.FPS, 0.001)
}

func TestParseProbeOutputErrors(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{"not json", `not json`},
		{"no video", `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`},
		{"no duration", `{"streams":[{"codec_type":"video","width":10,"height":10}],"format":{"duration":"N/A"}}`},
		{"no dimensions", `{"streams":[{"codec_type":"video"}],"format":{"duration":"3"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseProbeOutput("x.mp4", []byte(tt.out))
			assert.Error(t, err)
		})
	}

	_, err := parseProbeOutput("x.mp4", []byte(tests[1].out))
	assert.ErrorIs(t, err, ErrNoVideoStream)
}

func TestComposeArgs(t *testing.T) {
	e := offlineExecutor()
	args, err := e.ComposeArgs(ComposeOptions{
		Inputs: VideoInputs("/in/front.mp4"),
		Graph:  oneUpPlan(t),
		Codec:  "libx264",
		Output: "/out/a_combined.mp4",
		Window: &timing.Window{Start: 15 * time.Second, Length: 30 * time.Second},
	})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.True(t, strings.HasPrefix(joined, "-i /in/front.mp4 -filter_complex "))
	assert.Contains(t, joined, " -an -c:v libx264 -crf 23 -preset medium -pix_fmt yuv420p")
	assert.Contains(t, joined, " -ss 00:00:15.000 -t 00:00:30.000 ")
	assert.Equal(t, "/out/a_combined.mp4", args[len(args)-1])
}

func TestComposeArgsHardwareCodec(t *testing.T) {
	e := offlineExecutor()
	args, err := e.ComposeArgs(ComposeOptions{
		Inputs: VideoInputs("/in/front.mp4"),
		Graph:  oneUpPlan(t),
		Codec:  "h264_nvenc",
		Output: "out.mp4",
	})
	require.NoError(t, err)

	assert.NotContains(t, args, "-crf")
	assert.NotContains(t, args, "-preset")
	assert.NotContains(t, args, "-ss")
	assert.Contains(t, args, "h264_nvenc")
}

func TestComposeArgsValidation(t *testing.T) {
	e := offlineExecutor()
	g := oneUpPlan(t)

	_, err := e.ComposeArgs(ComposeOptions{Graph: g, Output: "o.mp4"})
	assert.Error(t, err, "no inputs")

	_, err = e.ComposeArgs(ComposeOptions{Inputs: VideoInputs("a.mp4"), Graph: g})
	assert.Error(t, err, "no output")

	_, err = e.ComposeArgs(ComposeOptions{Inputs: VideoInputs("a.mp4"), Output: "o.mp4"})
	assert.Error(t, err, "no graph")

	_, err = e.ComposeArgs(ComposeOptions{Inputs: VideoInputs("a.mp4", "b.mp4"), Graph: g, Output: "o.mp4"})
	assert.Error(t, err, "input count mismatch")

	_, err = e.ComposeArgs(ComposeOptions{Inputs: []Input{{Path: "a.mp4", Stream: "a"}}, Graph: g, Output: "o.mp4"})
	assert.Error(t, err, "audio selector")
}

func TestConcatArgs(t *testing.T) {
	e := offlineExecutor()
	g, err := graph.Concat(2)
	require.NoError(t, err)

	args, err := e.ConcatArgs(ConcatOptions{
		Inputs: []string{"a.mp4", "b.mp4"},
		Output: "session.mp4",
		Graph:  g,
		Codec:  "libx264",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-i", "a.mp4", "-i", "b.mp4",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1:a=0",
		"-an", "-c:v", "libx264", "-crf", "23", "-preset", "medium", "-pix_fmt", "yuv420p",
		"session.mp4",
	}, args)

	_, err = e.ConcatArgs(ConcatOptions{Inputs: []string{"a.mp4"}, Output: "s.mp4"})
	assert.Error(t, err)

	copyArgs, err := e.ConcatArgs(ConcatOptions{Inputs: []string{"a.mp4"}, Output: "s.mp4", StreamCopy: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "concat", "-safe", "0", "-i", "<list>", "-map", "0:v", "-c", "copy", "s.mp4"}, copyArgs)
}

func TestCreateConcatFile(t *testing.T) {
	e := offlineExecutor()
	dir := t.TempDir()
	a := filepath.Join(dir, "it's.mp4")

	name, err := e.createConcatFile([]string{a})
	require.NoError(t, err)
	defer os.Remove(name)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "file '"+strings.ReplaceAll(a, "'", `'\''`)+"'\n", string(data))
}

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
`)
	enc := parseEncoders(out)
	assert.True(t, enc["libx264"])
	assert.True(t, enc["h264_nvenc"])
	assert.False(t, enc["aac"])
	assert.False(t, enc["="])
}

func TestStreamOutputReportsProgressBlocks(t *testing.T) {
	out := strings.Join([]string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'front.mp4':",
		"frame=0",
		"progress=continue",
		"frame=120",
		"fps=59.8",
		"bitrate=2048.0kbits/s",
		"out_time=00:00:04.000000",
		"speed=2.01x",
		"progress=continue",
		"frame=900",
		"speed=2.2x",
		"progress=end",
	}, "\n")

	var got []Progress
	var logged int
	offlineExecutor().streamOutput(strings.NewReader(out),
		func(p *Progress) { got = append(got, *p) },
		func(string) { logged++ })

	assert.Equal(t, 12, logged)
	require.Len(t, got, 2, "blocks without frames are not reported")
	assert.Equal(t, Progress{Frame: 120, FPS: 59.8, Bitrate: "2048.0kbits/s", Time: "00:00:04.000000", Speed: "2.01x"}, got[0])
	assert.Equal(t, Progress{Frame: 900, Speed: "2.2x"}, got[1])
}

func TestIsProgressLine(t *testing.T) {
	assert.True(t, isProgressLine("frame=120"))
	assert.True(t, isProgressLine("out_time=00:00:04.000000"))
	assert.False(t, isProgressLine("[h264 @ 0x1] non-existing PPS 0 referenced"))
	assert.False(t, isProgressLine("Error opening input file a.mp4."))
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	tb.add("one")
	tb.add("   ")
	tb.add("two")
	tb.add("three")
	assert.Equal(t, []string{"two", "three"}, tb.lines())
}

func TestExitError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &ExitError{Code: 1, Stderr: []string{"first", "Invalid data found"}, Err: inner}
	assert.Equal(t, "ffmpeg exited with status 1: Invalid data found", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestExecutorCreation(t *testing.T) {
	e := newTestExecutor(t)
	assert.NotEmpty(t, e.ffmpegPath)
	assert.NotEmpty(t, e.ffprobePath)
	assert.Equal(t, DefaultCRF, e.crf)
	assert.Equal(t, DefaultPreset, e.preset)
}

func TestProbeVideoInvalidFile(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.ProbeVideo(ctx, filepath.Join(t.TempDir(), "nonexistent.mp4"))
	assert.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.mp4")
	require.NoError(t, os.WriteFile(invalid, []byte("not a video"), 0644))
	_, err = e.ProbeVideo(ctx, invalid)
	assert.Error(t, err)
}

func TestComposeAndProbe(t *testing.T) {
	e := newTestExecutor(t)
	ctx := context.Background()
	dir := t.TempDir()

	src := filepath.Join(dir, "2024-01-01_10-00-00-front.mp4")
	err := e.Run(ctx, RunOptions{Args: []string{
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=10:duration=2",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", src,
	}})
	if err != nil {
		t.Skipf("cannot generate test clip: %v", err)
	}

	info, err := e.ProbeVideo(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)

	lp, err := layout.NewPlanner(layout.Size{Width: 640, Height: 360}).Plan([]clips.Angle{clips.AngleFront})
	require.NoError(t, err)
	g, err := graph.Composite([]graph.Source{{
		Stream: 0,
		Clip:   clips.Clip{Angle: clips.AngleFront, Width: info.Width, Height: info.Height, Duration: info.Duration},
	}}, info.Duration, lp, "")
	require.NoError(t, err)

	out := filepath.Join(dir, "2024-01-01_10-00-00_combined.mp4")
	w := timing.TrailingWindow(info.Duration, time.Second)
	require.NoError(t, e.Compose(ctx, ComposeOptions{
		Inputs: VideoInputs(src),
		Graph:  g,
		Codec:  DefaultVideoCodec,
		Output: out,
		Window: &w,
	}))

	got, err := e.ProbeVideo(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 640, got.Width)
	assert.Equal(t, 360, got.Height)
	assert.InDelta(t, 1.0, got.Duration.Seconds(), 0.5)
	assert.False(t, got.HasAudio)
}

func TestDetectEncoderFallsBack(t *testing.T) {
	e := newTestExecutor(t)
	enc := e.DetectEncoder(context.Background(), "libx264")
	assert.NotEmpty(t, enc)
}
