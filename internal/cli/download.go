package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/alerts"
	"github.com/rescale/webup/internal/api"
	"github.com/rescale/webup/internal/constants"
	"github.com/rescale/webup/internal/diskspace"
	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/progress"
)

// newGetCmd creates the 'get' command.
func newGetCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:     "get <remote> [local]",
		Aliases: []string{"download"},
		Short:   "Download a remote file",
		Long: `Download a file. The local destination defaults to the file name in the
current directory; an existing directory receives the file under its name.

Examples:
  webup get /docs/report.pdf
  webup get /docs/report.pdf ~/Downloads`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := ""
			if len(args) == 2 {
				local = args[1]
			}
			reporter := progress.NewReporter(cmd.ErrOrStderr())
			if quiet {
				reporter = progress.NewNoOpProgress()
			}
			return withSession(cmd, func(ctx context.Context, s *session) error {
				remote := pathutil.ResolveFile(pathutil.Root, args[0])
				dest, err := downloadFile(ctx, s, remote, local, reporter)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s to %s\n", remote, dest)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show download progress")

	return cmd
}

// downloadFile streams remote into local and returns the destination path.
// Transport failures raise an alert; cancellation does not.
func downloadFile(ctx context.Context, s *session, remote, local string, reporter progress.Reporter) (string, error) {
	dest, err := downloadDestination(remote, local)
	if err != nil {
		return "", err
	}

	err = fetch(ctx, s, remote, dest, reporter)
	if err != nil {
		if !api.IsCanceled(err) {
			s.sink.Raise(alerts.SeverityDanger, fmt.Sprintf("Failed downloading %q", remote), err.Error())
		}
		return "", err
	}

	s.logger.Info().Str("remote", remote).Str("local", dest).Msg("Download complete")
	s.notifier.DownloadComplete(remote, dest)
	return dest, nil
}

func fetch(ctx context.Context, s *session, remote, dest string, reporter progress.Reporter) error {
	body, size, err := s.client.Download(ctx, remote)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := diskspace.CheckAvailableSpace(dest, size, constants.DiskSpaceSafetyMargin); err != nil {
		return err
	}

	// Written next to the destination and renamed so a failed transfer never
	// leaves a truncated file under the real name
	partial := dest + ".part"
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}

	reporter.Start(size, pathutil.Base(remote))
	_, err = io.Copy(f, progress.NewProgressReader(body, reporter))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		reporter.Error(err)
		os.Remove(partial)
		return fmt.Errorf("failed to download %s: %w", remote, err)
	}
	reporter.Finish()

	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return fmt.Errorf("failed to save %s: %w", dest, err)
	}
	return nil
}

// downloadDestination picks the local path for remote
func downloadDestination(remote, local string) (string, error) {
	name := pathutil.Base(remote)
	if name == "" {
		return "", fmt.Errorf("%s is not a file", remote)
	}

	dest, err := pathutil.ResolveLocalPath(local)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", local, err)
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, name)
	}
	return dest, nil
}
