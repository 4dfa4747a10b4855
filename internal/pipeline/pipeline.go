package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sync/semaphore"

	"github.com/keagan/camstitch/internal/clips"
	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/layout"
	"github.com/keagan/camstitch/internal/scan"
	"github.com/keagan/camstitch/internal/session"
	"github.com/keagan/camstitch/internal/timing"
	"github.com/keagan/camstitch/pkg/util"
)

// Runner processes every directory under a root into session files.
type Runner struct {
	logger   zerolog.Logger
	engine   Engine
	opts     Options
	planner  layout.Planner
	observer Observer
	locks    *pathLocks

	// freeSpace reports the bytes available at a path.
	freeSpace func(path string) (uint64, error)
}

// New creates a new runner
func New(logger zerolog.Logger, engine Engine, opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		logger:    logger.With().Str("component", "pipeline").Logger(),
		engine:    engine,
		opts:      opts,
		planner:   layout.NewPlanner(opts.Canvas),
		observer:  NopObserver{},
		locks:     newPathLocks(),
		freeSpace: diskFree,
	}
}

// SetObserver replaces the progress observer. nil restores the no-op one.
func (r *Runner) SetObserver(o Observer) {
	if o == nil {
		o = NopObserver{}
	}
	r.observer = o
}

// Run scans root and processes each directory. Directories run in parallel
// up to Options.Workers; failures stay local to the directory or group they
// happen in and are recorded in the report. The error is non-nil only when
// root itself cannot be scanned.
func (r *Runner) Run(ctx context.Context, root, runID string) (*Report, error) {
	report := &Report{
		RunID:     runID,
		Root:      root,
		DryRun:    r.opts.DryRun,
		Codec:     r.opts.Codec,
		StartedAt: time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
		report.Finalize()
	}()

	dirs, err := scan.Directories(root, r.opts.WorkDirName)
	if err != nil {
		return report, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	r.logger.Info().
		Str("root", root).
		Int("directories", len(dirs)).
		Int("workers", r.opts.Workers).
		Bool("dry_run", r.opts.DryRun).
		Msg("starting run")
	r.observer.OnScan(root, len(dirs))

	results := make([]DirectoryResult, len(dirs))
	sem := semaphore.NewWeighted(int64(r.opts.Workers))
	var wg sync.WaitGroup

	for i, dir := range dirs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = DirectoryResult{Path: dir.Path, Status: StatusFailed, Reason: err.Error()}
			continue
		}

		wg.Add(1)
		go func(i int, dir scan.Directory) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = r.ProcessDirectory(ctx, dir)
		}(i, dir)
	}
	wg.Wait()

	report.Directories = results
	return report, nil
}

// ProcessDirectory composites every timestamp group in dir and concatenates
// the composites into the directory's session file. Groups are processed in
// ascending timestamp order.
func (r *Runner) ProcessDirectory(ctx context.Context, dir scan.Directory) DirectoryResult {
	logger := r.logger.With().Str("dir", dir.Path).Logger()
	res := DirectoryResult{Path: dir.Path}
	defer func() { r.observer.OnDirectoryDone(res) }()

	if dir.Err != nil {
		logger.Error().Err(dir.Err).Msg("failed to read directory")
		res.Status = StatusFailed
		res.Reason = dir.Err.Error()
		return res
	}

	files := clips.Match(dir.Path, dir.Files)
	groups, err := clips.GroupByTimestamp(files)
	if errors.Is(err, clips.ErrNoMatches) {
		logger.Debug().Msg("no matching clips, skipping directory")
		res.Status = StatusSkipped
		res.Reason = err.Error()
		return res
	}
	if err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	for _, f := range files {
		if !f.Angle.Known() {
			logger.Warn().
				Str("path", f.Path).
				Str("angle", f.RawAngle).
				Msg("unknown camera angle, grid layouts will leave it out")
		}
	}

	workDir := filepath.Join(dir.Path, r.opts.WorkDirName)
	if !r.opts.DryRun {
		if err := r.checkFreeSpace(dir.Path); err != nil {
			logger.Error().Err(err).Msg("skipping directory")
			res.Status = StatusFailed
			res.Reason = err.Error()
			return res
		}
		if err := util.EnsureDir(workDir); err != nil {
			res.Status = StatusFailed
			res.Reason = fmt.Sprintf("failed to create work dir: %v", err)
			return res
		}
	}

	logger.Info().Int("groups", len(groups)).Msg("processing directory")
	r.observer.OnDirectoryStart(dir.Path, len(groups))

	var outputs []session.CompositeOutput
	for _, g := range groups {
		if ctx.Err() != nil {
			break
		}
		gr := r.processGroup(ctx, logger, dir.Path, g, workDir)
		res.Groups = append(res.Groups, gr)
		r.observer.OnGroupDone(dir.Path, gr)

		if gr.Composited() {
			outputs = append(outputs, session.CompositeOutput{Timestamp: gr.Timestamp, Path: gr.Output})
		}
	}

	sp, ok, err := session.Build(dir.Path, outputs, r.opts.OutputExt)
	if err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	if !ok {
		logger.Warn().Msg("no composites produced, skipping concatenation")
		res.Status = StatusSkipped
		res.Reason = "no composites produced"
		return res
	}

	res.Output = sp.Output
	if err := r.concat(ctx, logger, dir.Path, sp); err != nil {
		logger.Error().Err(err).Str("output", sp.Output).Msg("concatenation failed")
		util.CleanupFiles(sp.Output)
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	if r.opts.DryRun {
		res.Status = StatusPlanned
	} else {
		res.Status = StatusProcessed
		logger.Info().Str("output", sp.Output).Int("composites", len(outputs)).Msg("session file written")
	}
	return res
}

func (r *Runner) processGroup(ctx context.Context, logger zerolog.Logger, dir string, g clips.Group, workDir string) GroupResult {
	logger = logger.With().Str("timestamp", g.Timestamp).Logger()
	res := GroupResult{Timestamp: g.Timestamp}

	for _, dup := range g.Duplicates {
		logger.Warn().Str("path", dup.Path).Str("angle", dup.Angle.String()).Msg("duplicate angle, ignoring clip")
	}

	plan, err := r.PlanGroup(ctx, g, workDir)
	if plan != nil {
		res.Excluded = plan.Excluded
	}
	if err != nil {
		if errors.Is(err, timing.ErrNoDurations) {
			logger.Warn().Msg("no clip could be probed, skipping group")
			res.Status = StatusSkipped
			res.Reason = "no probeable clips"
			return res
		}
		logger.Error().Err(err).Msg("failed to plan group")
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	res.Strategy = plan.Layout.Strategy.String()
	for _, a := range plan.Angles() {
		res.Angles = append(res.Angles, a.String())
	}
	res.CommonSeconds = plan.Common.Seconds()
	res.Output = plan.Output

	opts := plan.ComposeOptions(r.opts.Codec)
	opts.ProgressFunc = r.progressFunc(dir, plan.Output)

	if r.opts.DryRun {
		r.logArgs(logger, "compose", &opts, nil)
		res.Status = StatusPlanned
		return res
	}

	unlock := r.locks.lock(plan.Output)
	defer unlock()

	ectx, cancel := r.encodeContext(ctx)
	defer cancel()

	logger.Info().
		Str("strategy", res.Strategy).
		Strs("angles", res.Angles).
		Dur("common", plan.Common).
		Dur("window_start", plan.Window.Start).
		Dur("window_length", plan.Window.Length).
		Msg("compositing group")

	if err := r.engine.Compose(ectx, opts); err != nil {
		logger.Error().Err(err).Str("output", plan.Output).Msg("encode failed")
		util.CleanupFiles(plan.Output)
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}

	res.Status = StatusProcessed
	return res
}

func (r *Runner) concat(ctx context.Context, logger zerolog.Logger, dir string, sp session.Plan) error {
	opts := ffmpeg.ConcatOptions{
		Inputs:       sp.Inputs,
		Output:       sp.Output,
		Graph:        sp.Graph,
		Codec:        r.opts.Codec,
		StreamCopy:   r.opts.StreamCopy,
		ProgressFunc: r.progressFunc(dir, sp.Output),
	}

	if r.opts.DryRun {
		r.logArgs(logger, "concat", nil, &opts)
		return nil
	}

	unlock := r.locks.lock(sp.Output)
	defer unlock()

	ectx, cancel := r.encodeContext(ctx)
	defer cancel()

	logger.Info().Int("inputs", len(sp.Inputs)).Str("output", sp.Output).Msg("concatenating composites")
	return r.engine.Concat(ectx, opts)
}

// progressFunc forwards encoder progress for output to the observer.
func (r *Runner) progressFunc(dir, output string) ffmpeg.ProgressFunc {
	return func(p *ffmpeg.Progress) {
		if p != nil {
			r.observer.OnEncodeProgress(dir, output, *p)
		}
	}
}

func (r *Runner) logArgs(logger zerolog.Logger, op string, compose *ffmpeg.ComposeOptions, concat *ffmpeg.ConcatOptions) {
	al, ok := r.engine.(argLister)
	if !ok {
		return
	}

	var (
		args []string
		err  error
	)
	if compose != nil {
		args, err = al.ComposeArgs(*compose)
	} else {
		args, err = al.ConcatArgs(*concat)
	}
	if err != nil {
		logger.Warn().Err(err).Str("op", op).Msg("failed to build ffmpeg arguments")
		return
	}
	logger.Info().Str("op", op).Strs("args", args).Msg("dry run")
}

func (r *Runner) encodeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.EncodeTimeout > 0 {
		return context.WithTimeout(ctx, r.opts.EncodeTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) checkFreeSpace(path string) error {
	if r.opts.MinFreeBytes == 0 || r.freeSpace == nil {
		return nil
	}
	free, err := r.freeSpace(path)
	if err != nil {
		r.logger.Warn().Err(err).Str("dir", path).Msg("failed to read free space, continuing")
		return nil
	}
	if free < r.opts.MinFreeBytes {
		return fmt.Errorf("insufficient free space: %d bytes available, %d required", free, r.opts.MinFreeBytes)
	}
	return nil
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// pathLocks serializes writes to the same output file.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *pathLocks) lock(path string) func() {
	path = filepath.Clean(path)

	p.mu.Lock()
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}
