package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/localfs"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/navigation"
	"github.com/odoobiznes/kms-fsnav/internal/pathutil"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
	"github.com/odoobiznes/kms-fsnav/internal/util/paths"
	strutil "github.com/odoobiznes/kms-fsnav/internal/util/strings"
	"github.com/odoobiznes/kms-fsnav/internal/validation"
)

// userError prefixes err with the fixed message of its kind.
func userError(err error) error {
	if err == nil {
		return nil
	}
	kind := models.KindOf(err)
	if kind == models.ErrUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", kind.Message(), err)
}

// newLsCmd creates the 'ls' command.
func newLsCmd() *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a remote directory",
		Long: `List the entries of a remote directory, folders first.

Without a path the configured start path is listed.

Examples:
  kms-fsnav ls
  kms-fsnav ls /opt/kms/projects
  kms-fsnav ls -a /srv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}

			path := cfg.StartPath
			if len(args) == 1 {
				path = args[0]
			}

			entries, err := client.List(GetContext(), path, accessOptions(cfg))
			if err != nil {
				return userError(err)
			}
			if !showAll && !cfg.ShowHidden {
				entries = visibleEntries(entries)
			}
			navigation.SortEntries(entries)

			return printEntries(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Include dot-named entries")

	return cmd
}

func visibleEntries(entries []models.DirectoryEntry) []models.DirectoryEntry {
	kept := make([]models.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if !localfs.IsHiddenName(e.Name) {
			kept = append(kept, e)
		}
	}
	return kept
}

// printEntries writes a listing as an aligned table.
func printEntries(out io.Writer, entries []models.DirectoryEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "(empty folder)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
	var files, dirs int64
	for _, e := range entries {
		name, size := e.Name, "-"
		if e.IsDir() {
			name += "/"
			dirs++
		} else {
			size = progress.FormatBytes(int64(e.SizeOrZero()))
			files++
		}
		modified := "-"
		if !e.Modified.IsZero() {
			modified = e.Modified.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, size, modified)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s, %s\n", strutil.Count(dirs, "folder"), strutil.Count(files, "file"))
	return nil
}

// newMkdirCmd creates the 'mkdir' command.
func newMkdirCmd() *cobra.Command {
	var parent string
	var yes bool

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a folder",
		Long: `Create a folder under a remote directory.

Characters the server does not accept in names (/ \ ? * | < > : ") are
replaced by "_". When that changes the name you are asked to confirm the
new name; --yes accepts it without asking.

Examples:
  kms-fsnav mkdir reports --in /opt/kms/projects
  kms-fsnav mkdir "Q1: drafts" --in /opt/kms --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}
			if parent == "" {
				parent = cfg.StartPath
			}

			confirm := func(original, sanitized string) bool {
				if yes {
					return true
				}
				return confirmYesNo(fmt.Sprintf("%q contains invalid characters. Create %q instead?", original, sanitized))
			}

			result, err := createFolder(GetContext(), client, accessOptions(cfg), parent, args[0], confirm)
			if err != nil {
				if errors.Is(err, navigation.ErrNameNotConfirmed) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Folder not created.")
					return nil
				}
				return userError(err)
			}

			msg := "Folder created"
			if result != nil && result.Message != "" {
				msg = result.Message
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "in", "", "Parent directory (default: configured start path)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept a sanitized name without asking")

	return cmd
}

// createFolder opens a navigation surface on parent and creates name in
// it, so the CLI follows the same sanitize-and-confirm rules as the browser.
func createFolder(ctx context.Context, client api.DirectoryClient, opts api.AccessOptions, parent, name string, confirm navigation.ConfirmFunc) (*api.CreateResult, error) {
	ctrl := navigation.NewController(client, navigation.ControllerOptions{
		Access: opts,
		Source: "cli",
		Logger: GetLogger(),
	})
	defer ctrl.Wait()
	defer ctrl.Close()

	if err := ctrl.Open(ctx, parent); err != nil {
		return nil, err
	}
	ctrl.Wait()
	if state := ctrl.State(); state.Status == navigation.StatusError {
		return nil, state.Err
	}

	return ctrl.CreateSubdirectory(ctx, name, confirm)
}

// newOpenCmd creates the 'open' command.
func newOpenCmd() *cobra.Command {
	var outputDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "open <remote-file> [remote-file...]",
		Short: "Download remote files",
		Long: `Download one or more remote files into a local directory.

Existing local files are kept; the download gets a " (n)" suffix unless
--overwrite is given.

Examples:
  kms-fsnav open /opt/kms/reports/q1.pdf
  kms-fsnav open /srv/a.log /srv/b.log -o ./logs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}
			ctx := GetContext()
			opts := accessOptions(cfg)

			dir, err := pathutil.ResolveAbsolutePath(outputDir)
			if err != nil {
				return fmt.Errorf("invalid output directory: %w", err)
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			entries := make([]models.DirectoryEntry, 0, len(args))
			dests := make([]string, 0, len(args))
			for _, remote := range args {
				entry, err := lookupEntry(ctx, client, remote, opts)
				if err != nil {
					return userError(err)
				}
				if entry.IsDir() {
					return fmt.Errorf("%s: %w (use 'ls' or 'browse' for folders)", entry.Path, errIsDirectory)
				}
				if err := validation.ValidateFilename(entry.Name); err != nil {
					return fmt.Errorf("refusing to save %s: %w", entry.Path, err)
				}
				entries = append(entries, entry)
				dests = append(dests, filepath.Join(dir, entry.Name))
			}
			if !overwrite {
				if _, err := paths.ResolveCollisions(dests); err != nil {
					return err
				}
			}

			interactive := term.IsTerminal(int(os.Stderr.Fd()))
			for i, entry := range entries {
				var reporter progress.Reporter = progress.NewNoOpProgress()
				if interactive {
					reporter = progress.NewCLIProgress()
				}
				n, err := downloadTo(ctx, client, entry, opts, dests[i], reporter)
				if err != nil {
					return userError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %s (%s)\n", entry.Path, dests[i], progress.FormatBytes(n))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Local directory to save into")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing local files")

	return cmd
}
