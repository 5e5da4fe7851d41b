package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/metrics"
	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/progress"
	"github.com/rescale/webup/internal/watch"
)

// newWatchCmd creates the 'watch' command.
func newWatchCmd() *cobra.Command {
	var to string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch <local-dir>",
		Short: "Upload files dropped into a local folder",
		Long: `Watch a local folder and upload every file that appears in it, once the
file has stopped changing. Subfolders, dot-files and editor backups (name~)
are ignored; empty files are uploaded like any other. Runs until interrupted.

Examples:
  webup watch ~/outbox --to /incoming
  webup watch ~/outbox --to /incoming --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := pathutil.ResolveLocalPath(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", args[0], err)
			}
			target := pathutil.Resolve(pathutil.Root, to)

			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.engine.Navigate(ctx, target); err != nil {
					return err
				}

				w, err := watch.New(dir, func() string { return target }, s.uploads(), watch.Options{Logger: s.logger})
				if err != nil {
					return err
				}

				if metricsAddr != "" {
					metrics.ObserveDroppedEvents(s.bus.GetDroppedEventCount)
					go func() {
						if err := metrics.Serve(ctx, metricsAddr); err != nil {
							s.logger.Error().Err(err).Str("addr", metricsAddr).Msg("Metrics server stopped")
						}
					}()
					s.logger.Info().Str("addr", metricsAddr).Msg("Serving metrics")
				}

				ui := progress.NewQueueUI(cmd.ErrOrStderr(), s.bus)
				ui.Start()
				defer ui.Stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s, uploading to %s (Ctrl+C to stop)\n", dir, target)
				return w.Run(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", pathutil.Root, "Remote folder to upload into")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	return cmd
}
