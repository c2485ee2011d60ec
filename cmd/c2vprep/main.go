// Package main provides the c2vprep binary entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "c2vprep"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Vocabulary distribution and context sampling for code2vec preprocessing",
		Long: `c2vprep turns raw path-context lines into fixed-width code2vec records.

Vocabularies are resolved from a shared-memory distributor, the on-disk
cache or the raw histograms, in that order. Run "c2vprep server start"
once per dataset before fanning out preprocessing workers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	f.StringVarP(&a.flags.dataset, "dataset", "d", "", "Dataset name")
	f.StringVar(&a.flags.dataDir, "data-dir", "", "Directory holding <dataset>/<dataset>.histo.*.c2v")
	f.IntVar(&a.flags.wordSize, "word-vocab-size", 0, "Max number of origin words to keep in the vocabulary")
	f.IntVar(&a.flags.pathSize, "path-vocab-size", 0, "Max number of paths to keep in the vocabulary")
	f.IntVar(&a.flags.targetSize, "target-vocab-size", 0, "Max number of target words to keep in the vocabulary")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&a.flags.logFormat, "log-format", "", "Log format (text, json)")

	cmd.AddCommand(
		preloadCmd(a),
		preprocessCmd(a),
		serverCmd(a),
		remoteCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}
