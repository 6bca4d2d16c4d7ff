package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odoobiznes/kms-fsnav/internal/cloud/providers"
	"github.com/odoobiznes/kms-fsnav/internal/importer"
	"github.com/odoobiznes/kms-fsnav/internal/localfs"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/pathutil"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
	"github.com/odoobiznes/kms-fsnav/internal/util/filter"
	"github.com/odoobiznes/kms-fsnav/internal/util/sanitize"
	strutil "github.com/odoobiznes/kms-fsnav/internal/util/strings"
	"github.com/odoobiznes/kms-fsnav/internal/walker"
)

// importJob is one independent import: its own manifest and uploader.
type importJob struct {
	source string // label shown in progress and the summary
	roots  []localfs.Entry
}

// importSettings are the per-run knobs shared by every job.
type importSettings struct {
	target          string
	parallel        int // imports running at once
	walkConcurrency int
	includeHidden   bool
	filter          *filter.Config
	retries         int // extra attempts after a Transport failure
	logger          *logging.Logger
}

// importOutcome is the result of one job.
type importOutcome struct {
	job      importJob
	manifest *walker.Manifest
	result   *importer.Result
	err      error
}

// newImportCmd creates the 'import' command.
func newImportCmd() *cobra.Command {
	var target, filesFrom, base, transportName string
	var include, exclude, pathInclude string
	var skipHidden bool
	var parallel, retries int

	cmd := &cobra.Command{
		Use:   "import <dir> [dir...] --to <remote-dir>",
		Short: "Import local directories into a remote folder",
		Long: `Walk local directories and import each one into a remote folder.

Every directory is imported independently: it is walked into a manifest of
files and sent as one batch. Up to --parallel imports run at once. A failed
import that was caused by the network is retried with the same manifest.

Files can also be given as a list of paths relative to --base (one per
line, "-" reads stdin); they are imported as a single tree rooted at the
base folder's name.

Dot-named files and folders are imported unless --skip-hidden is given.

The transport comes from the [import] section of the config file: "http"
uploads to the server, "s3" and "azure" store the batch as one tar.gz
object.

Examples:
  kms-fsnav import ./project --to /opt/kms/incoming
  kms-fsnav import ./a ./b ./c --to /srv/in --parallel 2
  kms-fsnav import ./web --to /srv/www --exclude node_modules,*.tmp
  git ls-files | kms-fsnav import --files-from - --base . --to /srv/src`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && filesFrom == "" {
				return fmt.Errorf("nothing to import: give directories or --files-from")
			}

			client, cfg, err := getAPIClient(cmd)
			if err != nil {
				return err
			}
			if transportName != "" {
				cfg.Transport = transportName
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}

			jobs, err := buildImportJobs(args, filesFrom, base, cmd.InOrStdin())
			if err != nil {
				return err
			}

			ctx := GetContext()
			transport, err := providers.NewTransport(ctx, cfg, client, GetLogger())
			if err != nil {
				return err
			}

			patterns := &filter.Config{
				Include:     filter.ParsePatternList(include),
				Exclude:     filter.ParsePatternList(exclude),
				PathInclude: filter.ParsePatternList(pathInclude),
			}

			ui := progress.NewImportUI(len(jobs))
			settings := importSettings{
				target:          target,
				parallel:        parallel,
				walkConcurrency: cfg.Concurrency,
				includeHidden:   !skipHidden,
				filter:          patterns,
				retries:         retries,
				logger:          logging.NewLogger(ui.LogWriter(), nil), // prints above the bars
			}

			start := time.Now()
			outcomes := runImports(ctx, jobs, transport, settings, ui)
			ui.Wait()

			return printImportSummary(cmd.OutOrStdout(), outcomes, time.Since(start))
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "Remote directory to import into (required)")
	cmd.Flags().StringVar(&filesFrom, "files-from", "", "Read relative file paths from this file (\"-\" for stdin)")
	cmd.Flags().StringVar(&base, "base", ".", "Directory the --files-from paths are relative to")
	cmd.Flags().StringVar(&transportName, "transport", "", "Override the configured transport (http, s3, azure)")
	cmd.Flags().StringVar(&include, "include", "", "Only import files whose name matches these comma-separated globs")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Skip files and folders whose name matches these comma-separated globs")
	cmd.Flags().StringVar(&pathInclude, "path", "", "Only import files whose path below the root matches these globs (** allowed)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", false, "Leave out dot-named files and folders")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 2, "Imports running at once")
	cmd.Flags().IntVar(&retries, "retries", 1, "Retries of an import that failed on the network")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

// buildImportJobs turns directory arguments and an optional file list into
// import jobs. The file list becomes one job listed first.
func buildImportJobs(dirs []string, filesFrom, base string, stdin io.Reader) ([]importJob, error) {
	var jobs []importJob

	if filesFrom != "" {
		r := stdin
		if filesFrom != "-" {
			f, err := os.Open(filesFrom)
			if err != nil {
				return nil, fmt.Errorf("failed to open file list: %w", err)
			}
			defer f.Close()
			r = f
		}
		rel, err := readFileList(r)
		if err != nil {
			return nil, err
		}
		baseDir, err := pathutil.ResolveAbsolutePath(base)
		if err != nil {
			return nil, err
		}
		flat, err := localfs.FlatFilesFromPaths(baseDir, rel)
		if err != nil {
			return nil, err
		}
		roots, err := localfs.FlatSource(flat)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, importJob{source: base, roots: roots})
	}

	for _, dir := range dirs {
		resolved, err := pathutil.ResolveAbsolutePath(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot import %s: %w", dir, err)
		}
		root, err := localfs.DirSource(resolved)
		if err != nil {
			return nil, fmt.Errorf("cannot import %s: %w", dir, err)
		}
		jobs = append(jobs, importJob{source: dir, roots: []localfs.Entry{root}})
	}
	return jobs, nil
}

// readFileList reads one relative path per line, skipping blank lines and
// lines starting with "#". Lists saved by editors on Windows (BOM, CRLF)
// read the same as plain ones.
func readFileList(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := sanitize.SanitizeField(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}
	return paths, nil
}

// runImports runs every job, at most settings.parallel at a time. A failed
// job does not stop the others.
func runImports(ctx context.Context, jobs []importJob, transport importer.Transport, settings importSettings, ui *progress.ImportUI) []importOutcome {
	outcomes := make([]importOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(max(settings.parallel, 1))
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i] = runImport(ctx, job, transport, settings, ui)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func runImport(ctx context.Context, job importJob, transport importer.Transport, settings importSettings, ui *progress.ImportUI) importOutcome {
	out := importOutcome{job: job}

	manifest, err := walker.Walk(ctx, job.roots, walker.WalkOptions{
		Concurrency:   settings.walkConcurrency,
		IncludeHidden: settings.includeHidden,
		Filter:        settings.filter,
		Logger:        settings.logger,
	})
	if err != nil {
		out.err = fmt.Errorf("walk %s: %w", job.source, err)
		fmt.Fprintf(ui.LogWriter(), "✗ %s: %v\n", job.source, err)
		return out
	}
	out.manifest = manifest

	bar := ui.AddImport(job.source, settings.target, manifest.Len(), int64(manifest.TotalBytes()))
	uploader := importer.New(transport, importer.Options{
		Name: manifest.RootName(),
		OnProgress: func(p importer.Progress) {
			bar.Update(p.Phase.String(), p.Percent)
		},
		Logger: settings.logger,
	})

	result, err := uploader.Run(ctx, manifest, settings.target)
	for attempt := 0; err != nil && attempt < settings.retries && retryable(ctx, err); attempt++ {
		settings.logger.Warn().Err(err).Str("source", job.source).Int("attempt", attempt+1).Msg("retrying import")
		result, err = uploader.Retry(ctx)
	}

	out.result, out.err = result, userError(err)
	message := ""
	if result != nil {
		message = result.Message
	}
	bar.Complete(message, out.err)
	return out
}

// retryable reports whether an import failure is worth resending.
func retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil && models.KindOf(err) == models.ErrTransport
}

// printImportSummary writes per-import statistics and returns an error
// when any import failed.
func printImportSummary(w io.Writer, outcomes []importOutcome, elapsed time.Duration) error {
	failed := 0
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Import summary")
	fmt.Fprintln(w, "==============")

	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(w, "✗ %s: %v\n", o.job.source, o.err)
		} else {
			location := o.result.Location
			if location == "" {
				location = o.result.TargetPath
			}
			fmt.Fprintf(w, "✓ %s → %s\n", o.job.source, location)
		}
		if o.manifest == nil {
			continue
		}

		m := o.manifest
		fmt.Fprintf(w, "    %s, %s\n", strutil.Count(int64(m.Len()), "file"), progress.FormatBytes(int64(m.TotalBytes())))
		if top := m.TopExtensions(5); len(top) > 0 {
			parts := make([]string, len(top))
			for i, ext := range top {
				parts[i] = fmt.Sprintf("%s (%d)", ext.Extension, ext.Count)
			}
			fmt.Fprintf(w, "    types: %s\n", strings.Join(parts, ", "))
		}
		unreadable := len(m.Failures())
		if o.result != nil {
			unreadable += len(o.result.Skipped)
		}
		if unreadable > 0 {
			fmt.Fprintf(w, "    skipped %s that could not be read\n", strutil.Count(int64(unreadable), "entry"))
		}
		if hidden := m.HiddenSkipped(); hidden > 0 {
			fmt.Fprintf(w, "    left out %s (--skip-hidden)\n", strutil.Count(int64(hidden), "hidden entry"))
		}
	}

	fmt.Fprintf(w, "\n%d of %d imports succeeded in %s\n", len(outcomes)-failed, len(outcomes), elapsed.Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d imports failed", failed, len(outcomes))
	}
	return nil
}
