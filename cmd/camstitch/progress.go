package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/pipeline"
)

// progressObserver renders one bar step per finished directory and shows the
// group currently being worked on.
type progressObserver struct {
	mu  sync.Mutex
	w   io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{w: w}
}

func (p *progressObserver) OnScan(root string, dirs int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bar = progressbar.NewOptions(dirs,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *progressObserver) OnDirectoryStart(dir string, groups int) {
	p.describe(fmt.Sprintf("%s (%d events)", filepath.Base(dir), groups))
}

func (p *progressObserver) OnGroupDone(dir string, res pipeline.GroupResult) {
	p.describe(fmt.Sprintf("%s %s %s", filepath.Base(dir), res.Timestamp, res.Status))
}

func (p *progressObserver) OnDirectoryDone(res pipeline.DirectoryResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *progressObserver) OnEncodeProgress(dir, output string, pr ffmpeg.Progress) {
	desc := fmt.Sprintf("%s %s frame=%d", filepath.Base(dir), filepath.Base(output), pr.Frame)
	if pr.Time != "" {
		desc += " time=" + pr.Time
	}
	if pr.Speed != "" {
		desc += " speed=" + pr.Speed
	}
	p.describe(desc)
}

func (p *progressObserver) describe(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Describe(s)
	}
}

// Finish completes the bar.
func (p *progressObserver) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
