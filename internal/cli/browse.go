package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/pathutil"
	"github.com/odoobiznes/kms-fsnav/internal/tui"
)

// newBrowseCmd creates the 'browse' command.
func newBrowseCmd() *cobra.Command {
	var downloadDir string
	var showHidden bool

	cmd := &cobra.Command{
		Use:   "browse [start-path]",
		Short: "Pick a remote folder interactively",
		Long: `Open the interactive folder browser.

Enter opens a folder (or downloads a file into --download-dir), Backspace
goes up, / jumps to an entry by name, p goes to a typed path, n creates a
folder and c chooses the highlighted folder. The chosen path is printed
to stdout so the command can be used in scripts:

  target=$(kms-fsnav browse /opt/kms)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}

			start := cfg.StartPath
			if len(args) == 1 {
				start = args[0]
			}

			// Log lines would tear the full-screen view; keep them for --verbose.
			var browseLogger *logging.Logger
			if verbose || debug {
				browseLogger = GetLogger()
			}

			dir, err := pathutil.ResolveAbsolutePath(downloadDir)
			if err != nil {
				return fmt.Errorf("invalid download directory: %w", err)
			}

			opts := accessOptions(cfg)
			chosen, err := tui.Run(GetContext(), client, tui.Options{
				StartPath:     start,
				Access:        opts,
				IncludeHidden: showHidden || cfg.ShowHidden,
				Opener:        newDownloadOpener(client, opts, dir, browseLogger),
				Logger:        browseLogger,
			})
			if err != nil {
				return err
			}
			if chosen == "" {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), chosen)
			return nil
		},
	}

	cmd.Flags().StringVar(&downloadDir, "download-dir", ".", "Where opened files are saved")
	cmd.Flags().BoolVarP(&showHidden, "all", "a", false, "Show dot-named entries")

	return cmd
}
