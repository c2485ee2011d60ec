package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/c2vprep"
)

func preloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preload",
		Short: "Build the on-disk vocabulary cache from the raw histograms",
		Long: `Preload parses the three histograms of the dataset and writes
<cache dir>/histogram_cache.bin, replacing any previous cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			r, err := a.resolver(cmd.Context(), c2vprep.NoopMetricsCollector{})
			if err != nil {
				return err
			}

			art, err := r.Preload(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cache:   %s\n", r.Store().Path())
			fmt.Fprintf(out, "dataset: %s (%s)\n", art.Dataset, art.Sizes)
			fmt.Fprintf(out, "words:   %d\n", art.Vocab.Words.Len())
			fmt.Fprintf(out, "paths:   %d\n", art.Vocab.Paths.Len())
			fmt.Fprintf(out, "targets: %d\n", art.Vocab.Targets.Len())
			return nil
		},
	}
}
