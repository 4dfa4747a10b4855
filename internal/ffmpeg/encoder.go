package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// HardwareEncoders are tried in order before falling back to software.
var HardwareEncoders = []string{
	"h264_videotoolbox", // Apple VideoToolbox
	"h264_nvenc",        // NVIDIA NVENC
	"h264_qsv",          // Intel Quick Sync Video
	"h264_amf",          // AMD AMF
}

// ListEncoders returns the video encoders compiled into ffmpeg.
func (e *Executor) ListEncoders(ctx context.Context) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parseEncoders(out), nil
}

// parseEncoders reads `ffmpeg -encoders` output. Encoder lines look like
// " V....D libx264   libx264 H.264 / AVC ...".
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		flags := fields[0]
		if len(flags) != 6 || flags[0] != 'V' || strings.Contains(fields[1], "=") {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}

// DetectEncoder returns the first hardware encoder that is compiled in and
// can encode a test frame, or software when none works.
func (e *Executor) DetectEncoder(ctx context.Context, software string) string {
	if software == "" {
		software = DefaultVideoCodec
	}

	e.logger.Debug().Msg("detecting hardware encoder")

	available, err := e.ListEncoders(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Str("fallback", software).Msg("failed to list ffmpeg encoders")
		return software
	}

	for _, name := range HardwareEncoders {
		if !available[name] {
			continue
		}
		if e.testEncoder(ctx, name) {
			e.logger.Info().Str("encoder", name).Msg("hardware encoder available")
			return name
		}
		e.logger.Debug().Str("encoder", name).Msg("hardware encoder compiled in but not usable")
	}

	e.logger.Info().Str("encoder", software).Msg("no hardware encoder available, using software encoding")
	return software
}

// testEncoder encodes a single blank frame with encoder.
func (e *Executor) testEncoder(ctx context.Context, encoder string) bool {
	ctx, cancel := context.WithTimeout(ctx, encoderProbeDuration)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=c=black:s=256x144:d=0.1",
		"-frames:v", "1",
		"-c:v", encoder,
		"-f", "null", "-",
	)
	return cmd.Run() == nil
}
