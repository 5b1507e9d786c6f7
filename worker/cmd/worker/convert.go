package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canvasConverter/worker/collector"
	"canvasConverter/worker/config"
	"canvasConverter/worker/converter"
	"canvasConverter/worker/progress"
	"canvasConverter/worker/service"
)

type convertOptions struct {
	resolution string
	background string
	output     string
	workers    int
	timeout    time.Duration
}

func newConvertCmd(cfg *config.Config, logger *zap.Logger) *cobra.Command {
	opts := convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert [files...]",
		Short: "Convert images, or a single zip of images, into a zip of fitted canvases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runConvert(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.resolution, "resolution", "r", cfg.DefaultResolution, "output canvas: 1080x1080 or 1080x1920")
	flags.StringVarP(&opts.background, "background", "b", cfg.DefaultBackground, "background color as 6 hex digits")
	flags.StringVarP(&opts.output, "output", "o", "", "archive path (default images_<resolution>.zip)")
	flags.IntVarP(&opts.workers, "workers", "w", cfg.WorkerCount, "concurrent conversions")
	flags.DurationVar(&opts.timeout, "timeout", cfg.JobTimeout, "per-image timeout, 0 for none")

	return cmd
}

func runConvert(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, logger *zap.Logger, opts convertOptions, files []string) error {
	resolution, err := converter.ParseResolution(opts.resolution)
	if err != nil {
		return err
	}
	target, err := converter.NewTargetSpec(opts.resolution, opts.background)
	if err != nil {
		return err
	}

	payloads := make([]collector.Payload, len(files))
	for i, f := range files {
		payloads[i] = converter.FileSource{Path: f}
	}

	processor := service.NewProcessor(logger, service.Options{
		ScratchDir: cfg.ScratchDir,
		Workers:    opts.workers,
		JobTimeout: opts.timeout,
	})

	result, err := processor.Run(ctx, service.Request{
		BatchID:    uuid.New().String(),
		Resolution: resolution,
		Target:     target,
		Payloads:   payloads,
		Reporter:   progressPrinter{out: stderr},
	})
	if result != nil {
		for _, f := range result.Failures {
			fmt.Fprintf(stderr, "failed: %s: %s\n", f.RelPath, f.Reason)
		}
	}
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = result.Filename
	}
	if err := os.WriteFile(output, result.Archive, 0644); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}

	fmt.Fprintf(stdout, "Wrote %s (%d of %d images converted)\n", output, result.Succeeded, result.Total)
	return nil
}

type progressPrinter struct {
	out io.Writer
}

func (p progressPrinter) Report(_ context.Context, s progress.Snapshot) error {
	if s.Done {
		_, err := fmt.Fprintf(p.out, "\rProcessed %d/%d images (%d failed)\n", s.Completed, s.Total, s.Failed)
		return err
	}
	_, err := fmt.Fprintf(p.out, "\rProcessing image %d/%d...", s.Completed, s.Total)
	return err
}
