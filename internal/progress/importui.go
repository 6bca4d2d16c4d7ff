package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"
)

// ImportUI manages one progress bar per concurrent import using mpb.
// Bars count percent (0..100) and carry the import's current phase.
type ImportUI struct {
	progress     *mpb.Progress
	out          io.Writer // plain-text output when not a terminal
	isTerminal   bool
	totalImports int
	started      int32 // Atomic counter for import index (1, 2, 3, ...)
	completed    int32
}

// ImportBar is the progress display of a single import.
type ImportBar struct {
	bar       *mpb.Bar
	ui        *ImportUI
	index     int
	name      string
	target    string
	files     int
	size      int64
	startTime time.Time

	mu        sync.Mutex
	phase     string
	lastPhase string // last phase printed in text mode
}

// NewImportUI creates a UI for totalImports imports writing to stderr.
func NewImportUI(totalImports int) *ImportUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(os.Stderr)
	}
	return newImportUI(os.Stderr, isTerminal, totalImports)
}

// NewTextImportUI creates a UI that prints plain progress lines to out.
func NewTextImportUI(out io.Writer, totalImports int) *ImportUI {
	return newImportUI(out, false, totalImports)
}

func newImportUI(out io.Writer, isTerminal bool, totalImports int) *ImportUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(300*time.Millisecond), // ~3 times per second
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &ImportUI{
		progress:     p,
		out:          out,
		isTerminal:   isTerminal,
		totalImports: totalImports,
	}
}

// AddImport creates a bar for an import of files (size bytes) from the
// local source into the remote target.
func (u *ImportUI) AddImport(source, target string, files int, size int64) *ImportBar {
	index := int(atomic.AddInt32(&u.started, 1))

	b := &ImportBar{
		ui:        u,
		index:     index,
		name:      truncatePath(source, 2),
		target:    target,
		files:     files,
		size:      size,
		startTime: time.Now(),
		phase:     "Enumerating",
	}

	label := fmt.Sprintf("[%d/%d] %s (%d files, %s) → %s",
		b.index, u.totalImports, b.name, files, FormatBytes(size), target)

	if u.isTerminal {
		b.bar = u.progress.New(100,
			// Custom bar style with Unicode block characters
			mpb.BarStyle().
				Lbound("[").
				Filler("█"). // U+2588 - Full block for completed portion
				Tip("█").
				Padding("░"). // U+2591 - Light shade for remaining portion
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Any(func(decor.Statistics) string { return b.currentPhase() }, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		fmt.Fprintf(u.out, "Importing %s\n", label)
	}

	return b
}

func (b *ImportBar) currentPhase() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Update moves the bar to percent within phase. Percent never decreases.
func (b *ImportBar) Update(phase string, percent int) {
	b.mu.Lock()
	b.phase = phase
	printPhase := !b.ui.isTerminal && phase != b.lastPhase
	if printPhase {
		b.lastPhase = phase
	}
	b.mu.Unlock()

	if b.bar != nil {
		if int64(percent) > b.bar.Current() {
			b.bar.SetCurrent(int64(percent))
		}
		return
	}
	if printPhase {
		fmt.Fprintf(b.ui.out, "  %s: %s (%d%%)\n", b.name, phase, percent)
	}
}

// Complete marks the import finished and prints a summary line.
func (b *ImportBar) Complete(message string, err error) {
	elapsed := time.Since(b.startTime)

	var msg string
	if err == nil {
		if b.bar != nil {
			// ENSURE exact 100% completion (no rounding errors)
			b.bar.SetCurrent(100)
			b.bar.SetTotal(100, true) // Mark done, trigger BarRemoveOnComplete
		}
		speed := 0.0
		if elapsed > 0 {
			speed = float64(b.size) / elapsed.Seconds()
		}
		msg = fmt.Sprintf("✓ %s → %s: %s (%s, %s)\n",
			b.name, b.target, message, elapsed.Round(time.Millisecond), FormatSpeed(speed))
	} else {
		if b.bar != nil {
			b.bar.Abort(false) // false = don't remove (show failure)
		}
		msg = fmt.Sprintf("✗ %s → %s: %v\n", b.name, b.target, err)
	}

	// Write through mpb's writer (not stdout) to avoid triggering redraws
	fmt.Fprint(b.ui.LogWriter(), msg)
	atomic.AddInt32(&b.ui.completed, 1)
}

// Completed returns the number of imports that finished, either way.
func (u *ImportUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Wait blocks until all progress bars complete
func (u *ImportUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// LogWriter returns an io.Writer that safely prints above the progress bars
func (u *ImportUI) LogWriter() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
func (u *ImportUI) IsTerminal() bool {
	return u.isTerminal
}

// truncatePath truncates a file path to show only the last N components
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return filepath.Base(path)
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
// This is a no-op on non-Windows platforms
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}
