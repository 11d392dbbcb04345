package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaos-io/logoprep/batch"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "logoprep",
	Short: "Remove white backgrounds from the site logos",
	Long: `Run with no arguments to process the built-in logo list:
  logo_icon.jpg -> logo_icon_transparent.png (dark pixels turned white)
  logo_text.jpg -> logo_text_transparent.png (original colors kept)`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: runBatch,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// runBatch 单个任务失败只打印状态行，进程始终正常退出
func runBatch(cmd *cobra.Command, args []string) error {
	batch.NewDriver(batch.DefaultJobs(),
		batch.WithOutput(cmd.OutOrStdout()),
		batch.WithErrorOutput(cmd.ErrOrStderr()),
	).Run(cmd.Context())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
