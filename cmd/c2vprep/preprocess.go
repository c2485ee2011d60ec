package main

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hupe1980/c2vprep"
	"github.com/hupe1980/c2vprep/codec"
	"github.com/hupe1980/c2vprep/prom"
)

func preprocessCmd(a *app) *cobra.Command {
	var (
		input       string
		output      string
		maxContexts int
		seed        int64
		textfile    string
		worker      string
	)

	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Sample path contexts into fixed-width training records",
		Long: `Preprocess reads one raw example per line ("<target> <ctx> <ctx> ..."),
keeps only contexts whose tokens are in the vocabulary, samples down to
--max-contexts and writes space-padded records to --output.

The output file is replaced atomically when the pass completes. A JSON
summary is printed to stdout.`,
		Example: `  c2vprep preprocess -d java14m -i java14m.train.raw.txt -o java14m.train.c2v
  C2VPREP_SEED=7 c2vprep preprocess -d java14m -i val.raw.txt -o val.c2v --max-contexts 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			cfg := a.cfg
			if cmd.Flags().Changed("max-contexts") {
				cfg.Preprocess.MaxContexts = maxContexts
			}
			if cmd.Flags().Changed("seed") {
				cfg.Preprocess.Seed = seed
			}
			if cmd.Flags().Changed("metrics-textfile") {
				cfg.Metrics.Textfile = textfile
			}

			labels := prometheus.Labels{}
			if worker != "" {
				labels["worker"] = worker
			}
			collector := prom.New(labels)

			r, err := a.resolver(cmd.Context(), collector)
			if err != nil {
				return err
			}

			stats, runErr := c2vprep.Preprocess(cmd.Context(), r, c2vprep.Job{
				Input:            input,
				Output:           output,
				MaxContexts:      cfg.Preprocess.MaxContexts,
				Seed:             cfg.Preprocess.Seed,
				ProgressInterval: cfg.Preprocess.ProgressInterval,
			})

			var metricsErr error
			if cfg.Metrics.Textfile != "" {
				if err := collector.WriteToTextfile(cfg.Metrics.Textfile); err != nil {
					metricsErr = fmt.Errorf("write metrics: %w", err)
				}
			}
			if runErr != nil {
				return errors.Join(runErr, metricsErr)
			}

			if err := codec.Write(cmd.OutOrStdout(), nil, stats.Summary()); err != nil {
				return err
			}
			return metricsErr
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Raw example file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for padded records")
	cmd.Flags().IntVar(&maxContexts, "max-contexts", c2vprep.DefaultMaxContexts, "Context slots per record")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed")
	cmd.Flags().StringVar(&textfile, "metrics-textfile", "", "Write Prometheus metrics to this file at exit")
	cmd.Flags().StringVar(&worker, "worker", "", "Worker id attached to exported metrics")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
