package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/c2vprep/cachestore"
	"github.com/hupe1980/c2vprep/prom"
	"github.com/hupe1980/c2vprep/shm"
	"github.com/hupe1980/c2vprep/vocab"
)

func serverCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the shared-memory vocabulary distributor",
	}
	cmd.AddCommand(
		serverStartCmd(a),
		serverStopCmd(a),
		serverStatusCmd(a),
		serverListCmd(a),
	)
	return cmd
}

func serverStartCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Publish the vocabulary into shared memory and serve until interrupted",
		Long: `Start resolves the vocabulary through the cache (building it from the
raw histograms if needed), copies it into a shared-memory segment and
registers the segment in the metadata directory. Workers on this host
attach to it instead of loading the vocabulary themselves.

If another live process already serves the dataset, start fails with
"distributor already running". A segment or record left behind by a dead
owner is reclaimed. The segment is removed on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				a.cfg.Distributor.MetricsAddr = metricsAddr
			}

			collector := prom.New(prometheus.Labels{})
			r, err := a.resolver(cmd.Context(), collector)
			if err != nil {
				return err
			}
			srv := shm.NewServer(a.cfg.Dataset, a.cfg.Vocab.Sizes, r, a.shmOptions()...)

			ctx := cmd.Context()
			rec, err := srv.Publish(ctx)
			if err != nil {
				return err
			}
			collector.SetSegmentBytes(rec.Dataset, rec.Size)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "export %s=%s\n", shm.EnvSegmentName, rec.Segment)
			fmt.Fprintf(out, "export %s=%d\n", shm.EnvSegmentSize, rec.Size)

			g, gctx := errgroup.WithContext(ctx)
			if addr := a.cfg.Distributor.MetricsAddr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", collector.Handler())
				hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

				g.Go(func() error {
					a.logger.Info("serving metrics", "addr", addr)
					if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return hs.Shutdown(shutdownCtx)
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				return nil
			})

			serveErr := g.Wait()
			a.logger.Info("distributor shutting down", "dataset", rec.Dataset, "reason", context.Cause(ctx))
			return errors.Join(serveErr, srv.Shutdown())
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	return cmd
}

func serverStopCmd(a *app) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the distributor of a dataset and remove its segment",
		Long: `Stop signals the owning process and waits up to --grace for it to
clean up. Whatever is left afterwards (segment, metadata) is removed, so
stop also clears state of a crashed distributor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			if cmd.Flags().Changed("grace") {
				a.cfg.Distributor.StopGrace = grace
			}

			admin := shm.NewAdmin(a.shmOptions()...)
			if err := admin.Stop(cmd.Context(), a.cfg.Dataset); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", a.cfg.Dataset)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", shm.DefaultStopGrace, "Time to wait for the owner before force-cleaning")
	return cmd
}

func serverStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show distributor and cache state of a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}

			admin := shm.NewAdmin(a.shmOptions()...)
			st, err := admin.Status(a.cfg.Dataset)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "dataset\t%s\n", st.Dataset)
			fmt.Fprintf(w, "running\t%t\n", st.Running)
			fmt.Fprintf(w, "segment present\t%t\n", st.SegmentPresent)
			if st.Record != nil {
				fmt.Fprintf(w, "segment\t%s (%d bytes, %s)\n", st.Record.Segment, st.Record.Size, st.Record.Compression)
				fmt.Fprintf(w, "owner\tpid %d (alive: %t)\n", st.Record.PID, st.OwnerAlive)
				fmt.Fprintf(w, "started\t%s\n", st.Record.CreatedAt.Format(time.RFC3339))
			}
			if st.Orphaned {
				fmt.Fprintf(w, "orphaned\ttrue (run \"%s server stop\" to clean up)\n", appName)
			}

			store := cachestore.New(a.cfg.CacheDir(), cachestore.WithFileName(a.cfg.Cache.FileName))
			info, err := store.Stat()
			switch {
			case err == nil:
				fmt.Fprintf(w, "cache\t%s (%d bytes, %s start_from=%d)\n", info.Path, info.Size, info.Sizes, info.StartFrom)
				if info.Dataset != a.cfg.Dataset || info.Sizes != a.cfg.Vocab.Sizes ||
					info.StartFrom != vocab.NormalizeStartFrom(a.cfg.Vocab.StartFrom) {
					fmt.Fprintf(w, "cache stale\ttrue (built for %s %s start_from=%d)\n", info.Dataset, info.Sizes, info.StartFrom)
				}
			case errors.Is(err, cachestore.ErrNotFound):
				fmt.Fprintf(w, "cache\tnone (%s)\n", store.Path())
			default:
				fmt.Fprintf(w, "cache\tunreadable: %v\n", err)
			}
			return w.Flush()
		},
	}
}

func serverListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered distributors on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}

			recs, err := shm.NewAdmin(a.shmOptions()...).Registry().List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATASET\tSEGMENT\tSIZE\tPID\tSTARTED")
			for _, rec := range recs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					rec.Dataset, rec.Segment, rec.Size, rec.PID, rec.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
