package clips

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Angle is the camera position a clip was recorded from.
type Angle string

const (
	AngleFront         Angle = "front"
	AngleBack          Angle = "back"
	AngleLeftRepeater  Angle = "left_repeater"
	AngleRightRepeater Angle = "right_repeater"
	AngleUnknown       Angle = "unknown"
)

// KnownAngles lists the four camera positions in grid table order.
var KnownAngles = []Angle{AngleFront, AngleBack, AngleRightRepeater, AngleLeftRepeater}

// ParseAngle maps a filename suffix to an Angle. Anything that is not one of
// the four camera positions becomes AngleUnknown.
func ParseAngle(s string) Angle {
	switch Angle(strings.ToLower(s)) {
	case AngleFront:
		return AngleFront
	case AngleBack:
		return AngleBack
	case AngleLeftRepeater:
		return AngleLeftRepeater
	case AngleRightRepeater:
		return AngleRightRepeater
	default:
		return AngleUnknown
	}
}

// Known reports whether a is one of the four camera positions.
func (a Angle) Known() bool {
	return a != AngleUnknown && ParseAngle(string(a)) == a
}

func (a Angle) String() string {
	return string(a)
}

// File is a discovered file whose name follows the
// YYYY-MM-DD_HH-MM-SS-<angle>.<ext> convention.
type File struct {
	Path      string
	Name      string
	Timestamp string
	Angle     Angle
	RawAngle  string
	Ext       string
}

// Clip is a probed File. Immutable once probed.
type Clip struct {
	Path       string
	Timestamp  string
	Angle      Angle
	Width      int
	Height     int
	Duration   time.Duration
	FrameCount int
}

// NewClip pairs a discovered file with its probed metadata.
func NewClip(f File, width, height int, duration time.Duration, frames int) Clip {
	return Clip{
		Path:       f.Path,
		Timestamp:  f.Timestamp,
		Angle:      f.Angle,
		Width:      width,
		Height:     height,
		Duration:   duration,
		FrameCount: frames,
	}
}

var namePattern = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})-([A-Za-z0-9_]+)\.([A-Za-z0-9]+)$`)

var videoExts = map[string]struct{}{
	"mp4": {},
	"mov": {},
	"mkv": {},
	"avi": {},
	"ts":  {},
}

// ParseName parses a base file name. ok is false when the name does not
// follow the timestamp convention or is not a video file.
func ParseName(name string) (File, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return File{}, false
	}
	ext := strings.ToLower(m[3])
	if _, ok := videoExts[ext]; !ok {
		return File{}, false
	}
	return File{
		Path:      name,
		Name:      name,
		Timestamp: m[1],
		Angle:     ParseAngle(m[2]),
		RawAngle:  m[2],
		Ext:       ext,
	}, true
}

// Match parses every name in dir and returns the files that follow the
// naming convention, sorted by name.
func Match(dir string, names []string) []File {
	files := make([]File, 0, len(names))
	for _, name := range names {
		f, ok := ParseName(name)
		if !ok {
			continue
		}
		f.Path = filepath.Join(dir, name)
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}
