package main

import (
	"github.com/chaos-io/logoprep/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the background filter over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", server.DefaultAddr, "Listen address")
	serveCmd.Flags().String("schedule", "", `Cron spec for re-running the logo batch, e.g. "@every 1h"`)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.DefaultConfig()
	cfg.Addr, _ = cmd.Flags().GetString("addr")
	cfg.Schedule, _ = cmd.Flags().GetString("schedule")

	return server.New(cfg).Run(cmd.Context())
}
