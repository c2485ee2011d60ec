package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/c2vprep"
	"github.com/hupe1980/c2vprep/cachestore"
)

func remoteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Share vocabulary artifacts through object storage",
		Long: `Remote manages the artifact mirror configured under "remote:" in the
config file. Hosts without a local cache download the artifact from it
before falling back to the raw histograms.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "push",
			Short: "Upload the local cache artifact",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.setup(cmd); err != nil {
					return err
				}
				r, err := a.resolver(cmd.Context(), c2vprep.NoopMetricsCollector{})
				if err != nil {
					return err
				}
				art, err := r.Push(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed %s\n", cachestore.RemoteKey(art.Dataset, art.Sizes, art.StartFrom))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List remote artifacts of the dataset",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.setup(cmd); err != nil {
					return err
				}
				remote, err := a.remote(cmd.Context())
				if err != nil {
					return err
				}
				if remote == nil {
					return c2vprep.ErrNoRemote
				}
				keys, err := remote.List(cmd.Context(), a.cfg.Dataset)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the remote artifact matching the configured sizes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.setup(cmd); err != nil {
					return err
				}
				remote, err := a.remote(cmd.Context())
				if err != nil {
					return err
				}
				if remote == nil {
					return c2vprep.ErrNoRemote
				}
				key, err := remote.Delete(cmd.Context(), a.cfg.Dataset, a.cfg.Vocab.Sizes, a.cfg.Vocab.StartFrom)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
				return nil
			},
		},
	)
	return cmd
}
