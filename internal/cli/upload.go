package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/progress"
	"github.com/rescale/webup/internal/transfer"
)

// newPutCmd creates the 'put' command.
func newPutCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:     "put <file> [file...]",
		Aliases: []string{"upload"},
		Short:   "Upload files to a remote folder",
		Long: `Upload local files one at a time through the upload queue.

All files go to the folder given by --to, which must exist. The folder is
re-listed after each completed upload. Ctrl+C aborts the upload in progress
and everything still queued.

Examples:
  webup put report.pdf --to /docs
  webup put *.csv --to /data/incoming`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := localSources(args)
			if err != nil {
				return err
			}
			target := pathutil.Resolve(pathutil.Root, to)

			return withSession(cmd, func(ctx context.Context, s *session) error {
				return runUploads(ctx, s, cmd, sources, target)
			})
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", pathutil.Root, "Remote folder to upload into")

	return cmd
}

// localSources resolves command-line paths into upload sources
func localSources(args []string) ([]transfer.Source, error) {
	sources := make([]transfer.Source, 0, len(args))
	for _, arg := range args {
		p, err := pathutil.ResolveLocalPath(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		src, err := transfer.FileSource(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// runUploads enqueues sources into target and blocks until the queue drains
// or ctx is cancelled.
func runUploads(ctx context.Context, s *session, cmd *cobra.Command, sources []transfer.Source, target string) error {
	// Listing the target first surfaces a missing folder before any bytes move
	if err := s.engine.Navigate(ctx, target); err != nil {
		return err
	}

	ui := progress.NewQueueUI(cmd.ErrOrStderr(), s.bus)
	ui.Start()

	queue := s.uploads()
	queue.Enqueue(sources, target)

	waitErr := queue.Wait(ctx)
	if waitErr != nil {
		queue.AbortAll()
		drainCtx, cancel := context.WithTimeout(context.Background(), constants.AbortGracePeriod)
		_ = queue.Wait(drainCtx)
		cancel()
	}
	ui.Stop()

	stats := queue.Stats()
	s.notifier.UploadsFinished(stats.Completed, stats.Failed)

	switch {
	case waitErr != nil:
		return waitErr
	case stats.Failed > 0:
		return fmt.Errorf("%d of %d upload(s) failed", stats.Failed, stats.Completed+stats.Failed+stats.Aborted)
	}
	return nil
}
