package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geekxflood/ndpsdecode/internal/processor"
	"github.com/geekxflood/ndpsdecode/internal/watch"
)

var (
	watchPattern  string
	watchExisting bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Decode capture files as they appear in a directory",
	Long: `Watch a directory and decode every capture file that is created or
rewritten in it, printing each result. Bursts of writes to the same file are
debounced into one decode.`,
	Example: `# Watch the configured directory
	ndpsdecode watch

	# Watch ./captures, decoding files already there first
	ndpsdecode watch ./captures --existing --pattern "job-*"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&decodeGrammar, "grammar", "g", "", "Grammar for hex and binary captures")
	watchCmd.Flags().StringVarP(&decodeFormat, "format", "f", "", "Output format: text or json (default from render.format)")
	watchCmd.Flags().BoolVar(&decodeStore, "store", false, "Record results in the decode history")
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Only decode files whose name matches this glob")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Decode files already in the directory first")
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newDecodeSession()
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	handler := func(ctx context.Context, path string) error {
		c, err := s.loader.LoadFile(path)
		if err != nil {
			return err
		}
		results, err := s.processor.ProcessAll(ctx, processor.InputsFromCapture(c, decodeGrammar))
		if err != nil {
			return err
		}
		for _, res := range results {
			if err := s.sink.RenderResult(out, res); err != nil {
				return err
			}
		}
		return nil
	}

	w, err := watch.NewWatcher(s.cfg, s.logger, s.loader, handler)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	wc := w.GetConfig()
	if len(args) == 1 {
		w.SetDirectory(args[0])
	}
	if watchPattern != "" {
		wc.Pattern = watchPattern
	}
	if watchExisting {
		wc.ProcessExisting = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for captures. Press Ctrl+C to stop.\n", wc.Directory)

	<-ctx.Done()

	if err := w.Stop(); err != nil {
		return err
	}

	stats := w.GetStats()
	fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d files, %d failed\n", stats.FilesProcessed, stats.FilesFailed)
	return nil
}
