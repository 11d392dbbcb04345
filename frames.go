package main

import (
	"github.com/chaos-io/logoprep/frames"
	"github.com/spf13/cobra"
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "Generate placeholder JPEG frames for the hero video",
	Args:  cobra.NoArgs,
	RunE:  runFrames,
}

func init() {
	def := frames.DefaultConfig()
	framesCmd.Flags().Int("count", def.Count, "Number of frames")
	framesCmd.Flags().Int("width", def.Width, "Frame width in pixels")
	framesCmd.Flags().Int("height", def.Height, "Frame height in pixels")
	framesCmd.Flags().String("dir", def.Dir, "Output directory")
	framesCmd.Flags().Int("quality", def.Quality, "JPEG quality (1-100)")
	rootCmd.AddCommand(framesCmd)
}

func runFrames(cmd *cobra.Command, args []string) error {
	cfg := frames.DefaultConfig()
	cfg.Count, _ = cmd.Flags().GetInt("count")
	cfg.Width, _ = cmd.Flags().GetInt("width")
	cfg.Height, _ = cmd.Flags().GetInt("height")
	cfg.Dir, _ = cmd.Flags().GetString("dir")
	cfg.Quality, _ = cmd.Flags().GetInt("quality")

	return frames.Generate(cmd.Context(), cfg, cmd.OutOrStdout())
}
