package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/keagan/camstitch/pkg/util"
)

// ErrNoVideoStream is returned when a file has no decodable video stream.
var ErrNoVideoStream = errors.New("no video stream")

// ProbeVideo extracts metadata from a video file
func (e *Executor) ProbeVideo(ctx context.Context, filePath string) (*VideoInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ffprobe interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(string(exitErr.Stderr))
			return nil, fmt.Errorf("ffprobe failed: %s: %w", msg, err)
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(filePath, output)
}

func parseProbeOutput(filePath string, output []byte) (*VideoInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{
		FilePath: filePath,
	}

	// Parse bitrate
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	var (
		haveVideo bool
		nbFrames  string
	)
	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			if haveVideo {
				continue
			}
			haveVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName
			nbFrames = stream.NbFrames

			// Calculate FPS from avg_frame_rate, falling back to r_frame_rate
			info.FPS = util.ParseFrameRate(stream.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = util.ParseFrameRate(stream.RFrameRate)
			}

			if d, err := util.ParseSeconds(stream.Duration); err == nil {
				info.Duration = d
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if !haveVideo {
		return nil, ErrNoVideoStream
	}

	// Container duration wins when present; stream durations are missing
	// for some muxers.
	if d, err := util.ParseSeconds(probe.Format.Duration); err == nil {
		info.Duration = d
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("invalid duration for %s", filePath)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d for %s", info.Width, info.Height, filePath)
	}

	if n, err := strconv.Atoi(nbFrames); err == nil && n > 0 {
		info.FrameCount = n
	} else if info.FPS > 0 {
		info.FrameCount = int(math.Round(info.Duration.Seconds() * info.FPS))
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		NbFrames     string `json:"nb_frames"`
	} `json:"streams"`
}
