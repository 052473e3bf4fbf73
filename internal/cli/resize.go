package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/dunamismax/pixelresize/internal/id"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/spf13/cobra"
)

type resizeOptions struct {
	width        int
	height       int
	noAspectLock bool
	quality      int
	format       string
	outputDir    string
	estimate     bool
	maxPixels    int64
}

func newResizeCmd(root *rootOptions) *cobra.Command {
	opts := &resizeOptions{}

	cmd := &cobra.Command{
		Use:   "resize <input>",
		Short: "Resize an image file",
		Long: `Resize loads <input>, applies --width and then --height the same way
the editor fields do, and writes the result into --output-dir.

With the aspect lock on (the default) setting one side recomputes the
other from the original ratio. --no-aspect-lock changes only the sides
that were given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResize(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.width, "width", 0, "target width in pixels")
	flags.IntVar(&opts.height, "height", 0, "target height in pixels")
	flags.BoolVar(&opts.noAspectLock, "no-aspect-lock", false, "edit width and height independently")
	flags.IntVarP(&opts.quality, "quality", "q", domain.DefaultQuality, "JPEG quality (1-100)")
	flags.StringVarP(&opts.format, "format", "f", string(domain.FormatPNG), "output format (png, jpeg)")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", ".", "directory for the resized file")
	flags.BoolVar(&opts.estimate, "estimate", false, "print the uncompressed size estimate")
	flags.Int64Var(&opts.maxPixels, "max-pixels", domain.DefaultMaxPixels, "largest source or target area in pixels (0 disables)")
	return cmd
}

func runResize(cmd *cobra.Command, root *rootOptions, opts *resizeOptions, inputPath string) error {
	logger := root.logger(cmd)

	format, err := domain.ParseOutputFormat(opts.format)
	if err != nil {
		return err
	}
	exportOpts := domain.MinimalOptions()
	if format == domain.FormatJPEG {
		exportOpts = domain.EnhancedOptions()
	}
	exportOpts.EnableSizeEstimate = opts.estimate

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	declared := pipeline.DeclaredType(inputPath, head)

	src, err := pipeline.Acquire(declared, data, opts.maxPixels)
	if errors.Is(err, pipeline.ErrNotImage) {
		return fmt.Errorf("%s is not an image (%s)", filepath.Base(inputPath), declared)
	}
	if err != nil {
		return err
	}
	logger.Debug("image loaded", "path", inputPath, "format", src.Format, "original", src.Original)

	state := domain.NewState().Load(src.Original)
	if opts.noAspectLock {
		state = state.SetAspectLock(false)
	}
	if cmd.Flags().Changed("width") {
		state = state.SetDimension(domain.AxisWidth, opts.width)
	}
	if cmd.Flags().Changed("height") {
		state = state.SetDimension(domain.AxisHeight, opts.height)
	}
	if cmd.Flags().Changed("quality") {
		state = state.SetQuality(opts.quality)
	}
	logger.Debug("target resolved", "target", state.Target, "aspect_lock", state.AspectLock, "quality", state.Quality)

	session := domain.NewSession(id.New(), time.Now().UTC())
	session.State = state
	session.Source = &domain.SourceRef{
		ObjectKey:   inputPath,
		ContentType: src.ContentType,
		Bytes:       len(data),
		Format:      src.Format,
	}

	processor, err := pipeline.NewLocalProcessor(opts.outputDir)
	if err != nil {
		return err
	}
	processor.WithMaxPixels(opts.maxPixels)

	out, err := processor.Export(cmd.Context(), pipeline.Request{
		ExportID:   session.ID,
		SourceType: pipeline.SourceTypeLocalFile,
		Session:    session,
		Options:    exportOpts,
	})
	if err != nil {
		return fmt.Errorf("export %s: %w", filepath.Base(inputPath), err)
	}
	logger.Info("export written", "path", out.Path, "bytes", out.Bytes, "format", out.Format)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %s (%s, %d bytes)\n", out.Notice, out.Path, state.Target, out.Bytes)
	if exportOpts.EnableSizeEstimate {
		fmt.Fprintf(w, "Estimated size: %s\n", domain.Estimate(state.Target).Human)
	}
	return nil
}
