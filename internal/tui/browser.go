// Package tui is the interactive terminal folder browser. It drives a
// navigation controller from the keyboard and returns the folder the user
// chooses.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/odoobiznes/kms-fsnav/internal/api"
	"github.com/odoobiznes/kms-fsnav/internal/events"
	"github.com/odoobiznes/kms-fsnav/internal/logging"
	"github.com/odoobiznes/kms-fsnav/internal/models"
	"github.com/odoobiznes/kms-fsnav/internal/navigation"
	"github.com/odoobiznes/kms-fsnav/internal/pathmodel"
	"github.com/odoobiznes/kms-fsnav/internal/progress"
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeJump
	modeGoTo
	modeNewFolder
	modeConfirmName
)

// Messages
type (
	// changedMsg signals that the controller has a newer snapshot.
	changedMsg struct{}

	createdMsg struct {
		name   string
		result *api.CreateResult
		err    error
	}

	openedMsg struct {
		entry models.DirectoryEntry
		err   error
	}

	errMsg struct{ err error }
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FF80"))

	crumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	currentCrumbStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("212")).
				Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4A90E2")).
			Bold(true)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFEB3B"))
)

// Options configures a browser.
type Options struct {
	StartPath     string
	Access        api.AccessOptions
	IncludeHidden bool

	// Opener receives activated file entries. Nil only publishes the event.
	Opener navigation.FileOpener

	Logger   *logging.Logger
	EventBus *events.EventBus
}

// Model is the bubbletea model of the folder browser.
type Model struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ctrl      *navigation.Controller
	sel       *navigation.SelectionIndex
	changes   chan struct{}
	startPath string
	logger    *logging.Logger

	state     navigation.State
	mode      inputMode
	input     textinput.Model
	matches   fuzzy.Matches
	pending   string // folder name awaiting confirmation
	sanitized string
	busy      bool // create or open in flight
	info      string
	chosen    string

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
	height  int
	offset  int
}

// New creates a browser over client. Nothing is listed until Init runs.
func New(ctx context.Context, client api.DirectoryClient, opts Options) *Model {
	ctx, cancel := context.WithCancel(ctx)
	changes := make(chan struct{}, 1)

	ctrl := navigation.NewController(client, navigation.ControllerOptions{
		Access:        opts.Access,
		IncludeHidden: opts.IncludeHidden,
		Source:        "picker",
		Logger:        opts.Logger,
		EventBus:      opts.EventBus,
		OnChange: func(navigation.State) {
			// Coalesce: the model always reads the latest snapshot.
			select {
			case changes <- struct{}{}:
			default:
			}
		},
	})

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))

	ti := textinput.New()
	ti.CharLimit = 255
	ti.Width = 40

	startPath := opts.StartPath
	if startPath == "" {
		startPath = pathmodel.Root
	}

	return &Model{
		ctx:       ctx,
		cancel:    cancel,
		ctrl:      ctrl,
		sel:       navigation.NewSelectionIndex(ctrl, opts.Opener),
		changes:   changes,
		startPath: startPath,
		logger:    logging.OrNop(opts.Logger).WithComponent("tui"),
		input:     ti,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   s,
		width:     80,
		height:    24,
	}
}

// Chosen returns the folder the user chose, or "" if they quit.
func (m *Model) Chosen() string {
	return m.chosen
}

// Init implements the bubbletea.Model interface
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.open, m.spinner.Tick, m.waitForChange)
}

func (m *Model) open() tea.Msg {
	if err := m.ctrl.Open(m.ctx, m.startPath); err != nil {
		return errMsg{err}
	}
	return nil
}

func (m *Model) waitForChange() tea.Msg {
	select {
	case <-m.changes:
		return changedMsg{}
	case <-m.ctx.Done():
		return nil
	}
}

// Update implements the bubbletea.Model interface
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.adjustOffset()
		return m, nil

	case changedMsg:
		m.sync()
		return m, m.waitForChange

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case createdMsg:
		m.busy = false
		if msg.err != nil {
			m.info = "Create failed: " + describe(msg.err)
		} else if msg.result != nil && msg.result.Message != "" {
			m.info = msg.result.Message
		} else {
			m.info = fmt.Sprintf("Created %s", msg.name)
		}
		m.sync()
		return m, nil

	case openedMsg:
		m.busy = false
		if msg.err != nil {
			m.info = fmt.Sprintf("Open %s failed: %s", msg.entry.Name, describe(msg.err))
		} else {
			m.info = fmt.Sprintf("Opened %s", msg.entry.Name)
		}
		return m, nil

	case errMsg:
		m.info = describe(msg.err)
		return m, nil

	case tea.KeyMsg:
		if m.mode != modeBrowse {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}

	if m.mode != modeBrowse {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKey handles keyboard input while browsing
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quit()
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	m.info = ""

	switch {
	case key.Matches(msg, m.keys.Up):
		m.sel.MoveUp()
	case key.Matches(msg, m.keys.Down):
		m.sel.MoveDown()
	case key.Matches(msg, m.keys.Home):
		m.sel.Home()
	case key.Matches(msg, m.keys.End):
		m.sel.End()

	case key.Matches(msg, m.keys.Enter):
		return m, m.activate()

	case key.Matches(msg, m.keys.Back):
		m.report(m.sel.Back(m.ctx))

	case key.Matches(msg, m.keys.Refresh):
		m.report(m.ctrl.Refresh(m.ctx))

	case key.Matches(msg, m.keys.Jump):
		if len(m.state.Entries) > 0 {
			return m, m.startInput(modeJump, "name")
		}

	case key.Matches(msg, m.keys.GoTo):
		return m, m.startInput(modeGoTo, m.state.CurrentPath)

	case key.Matches(msg, m.keys.NewFolder):
		if m.state.CurrentPath != "" && !m.state.Loading {
			return m, m.startInput(modeNewFolder, "folder name")
		}

	case key.Matches(msg, m.keys.Choose):
		if path := m.selectedPath(); path != "" {
			m.chosen = path
			m.quit()
			return m, tea.Quit
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.sync()
	return m, nil
}

// activate enters the highlighted directory or opens the highlighted
// file. Opening may block on a download, so it runs as a command.
func (m *Model) activate() tea.Cmd {
	entry, ok := m.state.Selected()
	if !ok || m.state.Loading {
		return nil
	}
	if entry.IsDir() {
		m.report(m.sel.Activate(m.ctx))
		m.sync()
		return nil
	}

	m.busy = true
	m.info = fmt.Sprintf("Opening %s...", entry.Name)
	ctx, sel := m.ctx, m.sel
	return func() tea.Msg {
		return openedMsg{entry: entry, err: sel.Activate(ctx)}
	}
}

func (m *Model) startInput(mode inputMode, placeholder string) tea.Cmd {
	m.mode = mode
	m.matches = nil
	m.input.Reset()
	m.input.Placeholder = placeholder
	return m.input.Focus()
}

func (m *Model) endInput() {
	m.mode = modeBrowse
	m.matches = nil
	m.pending = ""
	m.sanitized = ""
	m.input.Blur()
	m.input.Reset()
}

// updateInput handles keyboard input while a prompt is open
func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.endInput()
		return m, nil
	case tea.KeyEnter:
		return m, m.submitInput()
	}

	if m.mode == modeConfirmName {
		switch msg.String() {
		case "y", "Y":
			return m, m.submitInput()
		case "n", "N":
			m.endInput()
			m.info = "Folder not created"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeJump {
		m.matches = fuzzy.FindFrom(m.input.Value(), entryNames(m.state.Entries))
	}
	return m, cmd
}

func (m *Model) submitInput() tea.Cmd {
	value := m.input.Value()

	switch m.mode {
	case modeJump:
		if len(m.matches) > 0 {
			m.report(m.sel.SelectByIndex(m.matches[0].Index))
		}
		m.endInput()

	case modeGoTo:
		m.endInput()
		if strings.TrimSpace(value) != "" {
			m.report(m.ctrl.NavigateTo(m.ctx, value))
		}

	case modeNewFolder:
		if strings.TrimSpace(value) == "" {
			m.endInput()
			return nil
		}
		sanitized, changed := pathmodel.SanitizeName(value)
		if changed {
			m.mode = modeConfirmName
			m.pending = value
			m.sanitized = sanitized
			m.input.Blur()
			return nil
		}
		m.endInput()
		return m.create(value, sanitized, false)

	case modeConfirmName:
		name, sanitized := m.pending, m.sanitized
		m.endInput()
		return m.create(name, sanitized, true)
	}

	m.sync()
	return nil
}

// create runs CreateSubdirectory off the update loop. accepted records
// that the user already confirmed the sanitized name.
func (m *Model) create(name, sanitized string, accepted bool) tea.Cmd {
	m.busy = true
	m.info = fmt.Sprintf("Creating %s...", sanitized)
	ctx, ctrl := m.ctx, m.ctrl

	var confirm navigation.ConfirmFunc
	if accepted {
		confirm = func(_, _ string) bool { return true }
	}
	return func() tea.Msg {
		result, err := ctrl.CreateSubdirectory(ctx, name, confirm)
		return createdMsg{name: sanitized, result: result, err: err}
	}
}

func (m *Model) quit() {
	m.ctrl.Close()
	m.cancel()
}

func (m *Model) report(err error) {
	if err != nil {
		m.logger.Debug().Err(err).Msg("browser action failed")
		m.info = describe(err)
	}
}

func (m *Model) sync() {
	m.state = m.ctrl.State()
	m.adjustOffset()
}

func (m *Model) visibleRows() int {
	return max(m.height-10, 3)
}

// adjustOffset scrolls the list so the selected row is visible
func (m *Model) adjustOffset() {
	rows := m.visibleRows()
	cursor := m.state.SelectedIndex
	if cursor < m.offset {
		m.offset = cursor
	} else if cursor >= m.offset+rows {
		m.offset = cursor - rows + 1
	}
	if m.offset > max(len(m.state.Entries)-rows, 0) {
		m.offset = max(len(m.state.Entries)-rows, 0)
	}
}

// View implements the bubbletea.Model interface
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("KMS folders"))
	b.WriteString("\n")
	b.WriteString(m.breadcrumbView())
	b.WriteString("\n\n")

	switch {
	case m.state.Loading:
		b.WriteString(fmt.Sprintf("%s Loading %s\n", m.spinner.View(), m.state.CurrentPath))
	case m.state.Status == navigation.StatusError:
		b.WriteString(errorStyle.Render("Error: "+m.state.ErrorMessage()) + "\n")
	case len(m.state.Entries) == 0 && m.state.Status == navigation.StatusReady:
		b.WriteString(dimStyle.Render("(empty folder)") + "\n")
	default:
		b.WriteString(m.listView())
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("Selected path: " + m.selectedPath()))
	b.WriteString("\n")

	if prompt := m.promptView(); prompt != "" {
		b.WriteString(prompt)
		b.WriteString("\n")
	}
	if m.info != "" {
		b.WriteString(dimStyle.Render(m.info))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) breadcrumbView() string {
	segments := m.state.Breadcrumbs()
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Current {
			parts = append(parts, currentCrumbStyle.Render(s.Label))
		} else {
			parts = append(parts, crumbStyle.Render(s.Label))
		}
	}
	return strings.Join(parts, crumbStyle.Render(" › "))
}

func (m *Model) listView() string {
	var b strings.Builder
	entries := m.state.Entries
	end := min(m.offset+m.visibleRows(), len(entries))

	nameWidth := max(m.width-34, 20)
	for i := m.offset; i < end; i++ {
		e := entries[i]
		name := e.Name
		size := ""
		if e.IsDir() {
			name += "/"
		} else {
			size = progress.FormatBytes(int64(e.SizeOrZero()))
		}
		modified := ""
		if !e.Modified.IsZero() {
			modified = e.Modified.Local().Format("2006-01-02 15:04")
		}
		if len(name) > nameWidth {
			name = name[:nameWidth-1] + "…"
		}

		row := fmt.Sprintf(" %-*s %10s  %16s", nameWidth, name, size, modified)
		switch {
		case i == m.state.SelectedIndex:
			row = selectedStyle.Render(row)
		case e.IsDir():
			row = dirStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	if len(entries) > end || m.offset > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %d-%d of %d", m.offset+1, end, len(entries))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) promptView() string {
	switch m.mode {
	case modeJump:
		var b strings.Builder
		b.WriteString("Jump to: " + m.input.View())
		for i, match := range m.matches {
			if i == 5 {
				break
			}
			b.WriteString("\n  " + dimStyle.Render(match.Str))
		}
		return b.String()
	case modeGoTo:
		return "Go to: " + m.input.View()
	case modeNewFolder:
		return "New folder: " + m.input.View()
	case modeConfirmName:
		return fmt.Sprintf("Name %q contains invalid characters. Create %q instead? (y/n)", m.pending, m.sanitized)
	}
	return ""
}

// selectedPath is the highlighted directory, or the current path when a
// file or nothing is highlighted.
func (m *Model) selectedPath() string {
	if e, ok := m.state.Selected(); ok && e.IsDir() && !m.state.Loading {
		return e.Path
	}
	return m.state.CurrentPath
}

// describe returns the fixed message for kinded errors and the error text
// otherwise.
func describe(err error) string {
	if kind := models.KindOf(err); kind != models.ErrUnknown {
		return kind.Message()
	}
	return err.Error()
}

// entryNames adapts a listing to fuzzy.Source.
type entryNames []models.DirectoryEntry

func (e entryNames) String(i int) string { return e[i].Name }
func (e entryNames) Len() int            { return len(e) }

// Run shows the browser until the user chooses a folder or quits, and
// returns the chosen path ("" on quit).
func Run(ctx context.Context, client api.DirectoryClient, opts Options) (string, error) {
	m := New(ctx, client, opts)
	defer m.ctrl.Wait()
	defer m.quit()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return "", fmt.Errorf("browser: %w", err)
	}
	return m.Chosen(), nil
}
