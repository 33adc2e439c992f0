package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kmeanssim",
		Short: "Distributed k-means over a simulated worker pool",
		Long: `kmeanssim generates Gaussian blobs, shards them over an in-process
worker pool, fits k-means with one communicator session per fit,
and reports centroids, agreement with the generating clusters, and score.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (yaml or toml)")

	root.AddCommand(newRunCmd(viper.New()))
	return root
}
