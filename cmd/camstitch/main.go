package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keagan/camstitch/internal/clips"
	"github.com/keagan/camstitch/internal/config"
	"github.com/keagan/camstitch/internal/ffmpeg"
	"github.com/keagan/camstitch/internal/logging"
	"github.com/keagan/camstitch/internal/pipeline"
	"github.com/keagan/camstitch/internal/scan"
	"github.com/keagan/camstitch/pkg/util"
)

var version = "dev"

var (
	cfgFile    string
	verbose    bool
	dryRun     bool
	workers    int
	reportPath string
	noProgress bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "camstitch [dir]",
	Short: "camstitch - multi-angle dashcam compositor",
	Long: "Composites every multi-angle dashcam recording under a directory tree into one\n" +
		"video per event and concatenates each directory's events into a session file.",
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Workers = workers
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	RunE: runProcess,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./camstitch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "probe and plan without encoding")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "directories processed in parallel (overrides config)")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this file")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(encodersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)

	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	runID := logging.NewRunID()
	logging.WithRunID(runID)

	exec, err := newExecutor(cfg)
	if err != nil {
		return err
	}
	codec := selectEncoder(ctx, exec, cfg)

	opts := pipeline.OptionsFromConfig(cfg, codec)
	opts.DryRun = dryRun
	runner := pipeline.New(log.Logger, exec, opts)

	var bar *progressObserver
	if !noProgress {
		bar = newProgressObserver(os.Stderr)
		runner.SetObserver(bar)
	}

	report, runErr := runner.Run(ctx, root, runID)
	if bar != nil {
		bar.Finish()
	}

	s := report.Summary
	log.Info().
		Str("root", root).
		Int("directories", s.Directories).
		Int("processed", s.Processed).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Int("planned", s.Planned).
		Int("composites", s.Composites).
		Int("groups_failed", s.GroupsFailed).
		Int("probe_failed", s.ProbeFailed).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("processing complete")

	if reportPath != "" {
		if err := writeReport(reportPath, report); err != nil {
			log.Error().Err(err).Str("path", reportPath).Msg("failed to write report")
			if runErr == nil {
				runErr = err
			}
		}
	}

	return runErr
}

func newExecutor(cfg *config.Config) (*ffmpeg.Executor, error) {
	return ffmpeg.New(log.Logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		Threads:     cfg.FFmpeg.Threads,
		CRF:         cfg.FFmpeg.CRF,
		Preset:      cfg.FFmpeg.Preset,
	})
}

// selectEncoder honours a configured encoder and detects one otherwise.
func selectEncoder(ctx context.Context, exec *ffmpeg.Executor, cfg *config.Config) string {
	if cfg.FFmpeg.Encoder != "" {
		log.Info().Str("encoder", cfg.FFmpeg.Encoder).Msg("using configured encoder")
		return cfg.FFmpeg.Encoder
	}
	return exec.DetectEncoder(ctx, cfg.FFmpeg.SoftwareEncoder)
}

func writeReport(path string, report *pipeline.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := util.EnsureDir(dir); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Print the filter graph planned for each recording in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		dir, err := filepath.Abs(dir)
		if err != nil {
			return err
		}

		dirs, err := scan.Directories(dir, cfg.WorkDirName)
		if err != nil {
			return err
		}

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		opts := pipeline.OptionsFromConfig(cfg, cfg.FFmpeg.SoftwareEncoder)
		opts.DryRun = true
		runner := pipeline.New(log.Logger, exec, opts)

		// dirs[0] is dir itself
		groups, err := clips.GroupByTimestamp(clips.Match(dirs[0].Path, dirs[0].Files))
		if err != nil {
			return fmt.Errorf("%s: %w", dir, err)
		}

		out := cmd.OutOrStdout()
		workDir := filepath.Join(dir, cfg.WorkDirName)
		for _, g := range groups {
			plan, err := runner.PlanGroup(ctx, g, workDir)
			if err != nil {
				fmt.Fprintf(out, "# %s: %v\n\n", g.Timestamp, err)
				continue
			}
			fc, err := ffmpeg.FilterComplex(plan.Graph)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "# %s  %s  common=%s  window=%s+%s\n",
				g.Timestamp, plan.Layout.Strategy,
				util.FormatDuration(plan.Common),
				util.FormatDuration(plan.Window.Start),
				util.FormatDuration(plan.Window.Length))
			for i, in := range plan.Inputs {
				fmt.Fprintf(out, "#   [%d:v] %s\n", i, filepath.Base(in))
			}
			for _, x := range plan.Excluded {
				fmt.Fprintf(out, "#   excluded %s: %s\n", filepath.Base(x.Path), x.Reason)
			}
			fmt.Fprintf(out, "%s\n\n", fc)
		}
		return nil
	},
}

var encodersCmd = &cobra.Command{
	Use:   "encoders",
	Short: "Show the video encoder that would be used",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		available, err := exec.ListEncoders(ctx)
		if err != nil {
			return fmt.Errorf("failed to list encoders: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, name := range ffmpeg.HardwareEncoders {
			state := "not compiled in"
			if available[name] {
				state = "compiled in"
			}
			fmt.Fprintf(out, "%-20s %s\n", name, state)
		}
		fmt.Fprintf(out, "\nselected: %s\n", selectEncoder(ctx, exec, cfg))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.FromContext(cmd.Context()).YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "camstitch.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if util.FileExists(path) {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "camstitch %s\n", version)
	},
}
