package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beyondboy/shennong/audio"
	"github.com/beyondboy/shennong/features"
	"github.com/beyondboy/shennong/features/bottleneck"
	"github.com/beyondboy/shennong/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newExtractCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract WAV...",
		Short: "Extract bottleneck features from wav files",
		Long: `Extracts bottleneck features from mono wav files. Each input produces
<output-dir>/<name>.<format>.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.extract(cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.String("weights", "BabelMulti", fmt.Sprintf("pretrained weights, one of %v", bottleneck.WeightNames()))
	flags.StringP("output-dir", "o", ".", "directory for the features files")
	flags.StringP("format", "f", "npz", fmt.Sprintf("features file format, one of %v", features.Formats))
	flags.IntP("jobs", "j", 1, "number of files processed in parallel, 0 for all at once")
	flags.Float64("dither", 0.1, "dithering level added to the resampled signal")
	flags.Int64("seed", 0, "dithering seed, 0 for a random seed per file")
	flags.String("metrics-file", "", "write prometheus metrics to this file when done")
	a.bind(flags, map[string]string{
		"weights":      "extract.weights",
		"output-dir":   "extract.output_dir",
		"format":       "extract.format",
		"jobs":         "extract.jobs",
		"dither":       "extract.dither",
		"seed":         "extract.seed",
		"metrics-file": "extract.metrics_file",
	})
	return cmd
}

func (a *app) extract(cmd *cobra.Command, paths []string) error {
	cfg := a.cfg.Extract
	format, err := features.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	bundle, err := bottleneck.LoadWeights(cfg.Weights, cfg.WeightsDir, a.logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	processor, err := bottleneck.NewProcessor(bundle,
		bottleneck.ProcessorParams{DitherLevel: cfg.Dither, DitherSeed: cfg.Seed},
		bottleneck.WithLogger(a.logger),
		bottleneck.WithMetrics(bottleneck.NewMetrics(registry)),
	)
	if err != nil {
		return err
	}

	signals := make([]*audio.Signal, len(paths))
	for i, path := range paths {
		if signals[i], err = audio.LoadWav(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	results, err := processor.ProcessAll(cmd.Context(), signals, cfg.Jobs)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for i, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		out := filepath.Join(cfg.OutputDir, name+format.Extension())
		if err := features.Save(out, results[i], format); err != nil {
			return fmt.Errorf("failed to save %s: %w", out, err)
		}
		a.logger.Info("features saved", logging.Fields{
			"input":  path,
			"output": out,
			"frames": results[i].NumFrames(),
		})
		a.printf("%s\n", out)
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
