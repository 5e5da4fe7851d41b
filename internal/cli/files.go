package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescale/webup/internal/pathutil"
	"github.com/rescale/webup/internal/state"
)

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var output string
	var sortBy string
	var reverse bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote folder",
		Long: `List the contents of a remote folder. Folders are listed first.

Examples:
  webup ls
  webup ls /docs
  webup ls /docs --sort size --reverse
  webup ls /docs --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseOutputFormat(output)
			if err != nil {
				return err
			}
			switch sortBy {
			case state.SortByName, state.SortBySize, state.SortByDate:
			default:
				return fmt.Errorf("--sort must be one of name, size, date, got %q", sortBy)
			}

			target := pathutil.Root
			if len(args) == 1 {
				target = pathutil.Resolve(pathutil.Root, args[0])
			}

			return withSession(cmd, func(ctx context.Context, s *session) error {
				s.engine.Listing().SetSort(sortBy, !reverse)
				if err := s.engine.Navigate(ctx, target); err != nil {
					return err
				}
				return writeEntries(cmd.OutOrStdout(), format, s.engine.Entries())
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json, yaml")
	cmd.Flags().StringVar(&sortBy, "sort", state.SortByName, "Sort by: name, size, date")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "Reverse the sort order")

	return cmd
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder",
		Long: `Create a folder. The parent must exist.

Examples:
  webup mkdir /docs/reports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := pathutil.ResolveFile(pathutil.Root, args[0])
			parent, name := pathutil.Parent(p), pathutil.Base(p)

			return withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.engine.Navigate(ctx, parent); err != nil {
					return err
				}
				if err := s.engine.CreateFolder(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", pathutil.JoinDir(parent, name))
				return nil
			})
		},
	}
}

// newMvCmd creates the 'mv' command.
func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <path> <new-name>",
		Aliases: []string{"rename"},
		Short:   "Rename a remote file or folder",
		Long: `Rename a file or folder inside its folder.

Examples:
  webup mv /docs/draft.txt final.txt
  webup mv /docs/old-reports reports`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				entry, err := s.lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if err := s.engine.Rename(ctx, entry, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", entry.Path, args[1])
				return nil
			})
		},
	}
}

// newRmCmd creates the 'rm' command.
func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a remote file or folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session) error {
				entry, err := s.lookup(ctx, args[0])
				if err != nil {
					return err
				}
				if err := s.engine.Delete(ctx, entry); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", entry.Path)
				return nil
			})
		},
	}
}
