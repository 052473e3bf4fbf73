package cli

import (
	"fmt"

	"github.com/dunamismax/pixelresize/internal/logging"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var rootCmd = newRootCmd()

// Execute runs the resize command tree against os.Args and releases the
// renderer afterwards.
func Execute() error {
	defer pipeline.Shutdown()
	return rootCmd.Execute()
}

type rootOptions struct {
	logLevel string
	logJSON  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pixelresize",
		Short: "Resize one image and save it as PNG or JPEG",
		Long: `pixelresize loads a single image, resizes it with an optional aspect
ratio lock and writes resized-image.png or resized-image.jpg.

Examples:
  pixelresize resize photo.jpg --width 400
  pixelresize resize photo.jpg --width 400 --height 50 --no-aspect-lock
  pixelresize resize photo.png --format jpeg --quality 75 --estimate`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := pipeline.Startup(); err != nil {
				return fmt.Errorf("start renderer: %w", err)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")

	cmd.AddCommand(newResizeCmd(opts), newVersionCmd())
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) hclog.Logger {
	return logging.NewWithOutput("resize", logging.Config{Level: o.logLevel, JSON: o.logJSON}, cmd.ErrOrStderr())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pixelresize %s (renderer %s)\n", version, pipeline.RendererName())
		},
	}
}
