package monitor

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/s22625/supcut/internal/store"
)

type pane int

const (
	paneFailing pane = iota
	paneWatched
	paneTestFiles
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneFailing:
		return "Failing"
	case paneWatched:
		return "Watched"
	case paneTestFiles:
		return "Test files"
	default:
		return "?"
	}
}

// Dashboard is the bubbletea model for the monitor UI.
type Dashboard struct {
	monitor *Monitor

	snap    store.Snapshot
	hasSnap bool

	pane   pane
	cursor [paneCount]int
	offset [paneCount]int
	width  int
	height int

	help    bool
	message string

	keymap KeyMap
	styles Styles

	lastRefresh     time.Time
	refreshInterval time.Duration
	now             func() time.Time
}

type refreshMsg struct {
	snap store.Snapshot
}

type tickMsg time.Time

type infoMsg struct {
	text string
}

type errMsg struct {
	err error
}

// NewDashboard creates a dashboard model.
func NewDashboard(m *Monitor) *Dashboard {
	return &Dashboard{
		monitor:         m,
		keymap:          DefaultKeyMap(),
		styles:          DefaultStyles(),
		refreshInterval: defaultRefreshInterval,
		now:             time.Now,
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.refreshCmd(), d.tickCmd())
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.ensureCursorVisible()
		return d, nil
	case refreshMsg:
		d.snap = msg.snap
		d.hasSnap = true
		d.lastRefresh = d.now()
		for p := pane(0); p < paneCount; p++ {
			d.clampCursor(p)
		}
		d.ensureCursorVisible()
		return d, nil
	case tickMsg:
		return d, tea.Batch(d.refreshCmd(), d.tickCmd())
	case infoMsg:
		d.message = msg.text
		return d, d.refreshCmd()
	case errMsg:
		d.message = msg.err.Error()
		return d, nil
	case tea.KeyMsg:
		return d.handleKey(msg)
	default:
		return d, nil
	}
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	if d.help {
		return d.styles.Box.Render(d.viewHelp())
	}
	return d.styles.Box.Render(d.viewDashboard())
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return d, tea.Quit
	}
	if d.help {
		// Any key dismisses the help popup
		d.help = false
		return d, nil
	}

	switch msg.String() {
	case d.keymap.Quit:
		return d, tea.Quit
	case d.keymap.Help:
		d.help = true
		return d, nil
	case d.keymap.RunNow:
		return d, d.runNowCmd()
	case d.keymap.NextTab, "right", "l":
		d.pane = (d.pane + 1) % paneCount
		return d, nil
	case d.keymap.PrevTab, "left", "h":
		d.pane = (d.pane + paneCount - 1) % paneCount
		return d, nil
	case "1", "2", "3":
		d.pane = pane(msg.String()[0] - '1')
		return d, nil
	case "up", d.keymap.Up:
		if d.cursor[d.pane] > 0 {
			d.cursor[d.pane]--
			d.ensureCursorVisible()
		}
		return d, nil
	case "down", d.keymap.Down:
		if d.cursor[d.pane] < d.rowCount(d.pane)-1 {
			d.cursor[d.pane]++
			d.ensureCursorVisible()
		}
		return d, nil
	case "home", "g":
		d.cursor[d.pane] = 0
		d.ensureCursorVisible()
		return d, nil
	case "end", "G":
		d.cursor[d.pane] = d.rowCount(d.pane) - 1
		d.clampCursor(d.pane)
		d.ensureCursorVisible()
		return d, nil
	case d.keymap.Toggle, "enter":
		return d, d.toggleCmd()
	}
	return d, nil
}

func (d *Dashboard) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return refreshMsg{snap: d.monitor.Refresh()}
	}
}

func (d *Dashboard) tickCmd() tea.Cmd {
	return tea.Tick(d.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d *Dashboard) runNowCmd() tea.Cmd {
	if d.snap.Running {
		d.message = "a run is already in progress"
		return nil
	}
	return func() tea.Msg {
		d.monitor.RunNow()
		return infoMsg{text: "run requested"}
	}
}

// toggleCmd flips the item under the cursor in the active pane.
func (d *Dashboard) toggleCmd() tea.Cmd {
	i := d.cursor[d.pane]
	switch d.pane {
	case paneFailing:
		ids := d.snap.Current.Failing()
		if i >= len(ids) {
			return nil
		}
		id := ids[i]
		on := !d.snap.SelectedFailingTests[id]
		return func() tea.Msg {
			d.monitor.SetFailingSelected(id, on)
			return refreshMsg{snap: d.monitor.Refresh()}
		}
	case paneWatched:
		if i >= len(d.snap.Watched) {
			return nil
		}
		w := d.snap.Watched[i]
		return func() tea.Msg {
			if err := d.monitor.SetWatchSelected(w.Path, !w.Selected); err != nil {
				return errMsg{err: fmt.Errorf("failed to save selection: %w", err)}
			}
			return refreshMsg{snap: d.monitor.Refresh()}
		}
	case paneTestFiles:
		if i >= len(d.snap.TestFiles) {
			return nil
		}
		f := d.snap.TestFiles[i]
		on := !d.snap.SelectedTestFiles[f]
		return func() tea.Msg {
			if err := d.monitor.SetTestFileSelected(f, on); err != nil {
				return errMsg{err: fmt.Errorf("failed to save selection: %w", err)}
			}
			return refreshMsg{snap: d.monitor.Refresh()}
		}
	}
	return nil
}

func (d *Dashboard) viewDashboard() string {
	width := d.safeWidth()
	lines := []string{
		d.renderTitle(width),
		d.renderMeta(width),
		d.renderStatus(width),
		"",
		d.renderTabs(),
	}
	lines = append(lines, d.renderList(width, d.listRows())...)

	if detail := d.renderTrace(width, d.traceRows()); len(detail) > 0 {
		lines = append(lines, "")
		lines = append(lines, detail...)
	}
	if d.message != "" {
		lines = append(lines, "", d.styles.Faint.Render(truncate(d.message, width)))
	}
	lines = append(lines, "", d.styles.Muted.Render(truncate(d.keymap.HelpLine(), width)))
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderTitle(width int) string {
	title := d.styles.Title.Render("SUPCUT")
	if cmd := d.monitor.Command(); cmd != "" {
		title += "  " + d.styles.Muted.Render(truncate(cmd, width-8))
	}
	return title
}

func (d *Dashboard) renderMeta(width int) string {
	selected := 0
	for _, w := range d.snap.Watched {
		if w.Selected {
			selected++
		}
	}
	meta := fmt.Sprintf("runs: %d   last run: %s   watching: %d/%d files",
		d.snap.RunCount,
		formatRelativeTime(d.snap.LastRunAt, d.now()),
		selected, len(d.snap.Watched))
	return d.styles.Muted.Render(truncate(meta, width))
}

func (d *Dashboard) renderStatus(width int) string {
	if !d.hasSnap {
		return d.styles.Muted.Render("loading...")
	}
	line := d.snap.StatusLine
	if d.snap.Running && !d.snap.RunStartedAt.IsZero() {
		line = fmt.Sprintf("%s (%s)", line, d.now().Sub(d.snap.RunStartedAt).Truncate(time.Second))
	}
	failing := d.snap.Current != nil && len(d.snap.Current.FailingTests) > 0
	return d.styles.StatusLine(truncate(line, width-2), d.snap.Running, d.snap.StatusErr, failing)
}

func (d *Dashboard) renderTabs() string {
	var tabs []string
	for p := pane(0); p < paneCount; p++ {
		label := fmt.Sprintf("%d %s %s", int(p)+1, p, d.paneCounter(p))
		if p == d.pane {
			tabs = append(tabs, d.styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, d.styles.Tab.Render(label))
		}
	}
	return strings.Join(tabs, "   ")
}

func (d *Dashboard) paneCounter(p pane) string {
	switch p {
	case paneFailing:
		return fmt.Sprintf("(%d)", d.rowCount(p))
	case paneWatched:
		n := 0
		for _, w := range d.snap.Watched {
			if w.Selected {
				n++
			}
		}
		return fmt.Sprintf("(%d/%d)", n, len(d.snap.Watched))
	case paneTestFiles:
		n := 0
		for _, f := range d.snap.TestFiles {
			if d.snap.SelectedTestFiles[f] {
				n++
			}
		}
		return fmt.Sprintf("(%d/%d)", n, len(d.snap.TestFiles))
	}
	return ""
}

func (d *Dashboard) renderList(width, maxRows int) []string {
	rows := d.rows(d.pane)
	if len(rows) == 0 {
		return []string{d.styles.Muted.Render("  " + d.emptyText())}
	}
	start := d.offset[d.pane]
	end := start + maxRows
	if end > len(rows) {
		end = len(rows)
	}
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		line := truncate(rows[i], width)
		if i == d.cursor[d.pane] {
			line = d.styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	if hidden := len(rows) - end; hidden > 0 {
		lines = append(lines, d.styles.Faint.Render(fmt.Sprintf("  ... %d more", hidden)))
	}
	return lines
}

func (d *Dashboard) emptyText() string {
	switch d.pane {
	case paneFailing:
		if d.snap.RunCount == 0 && !d.snap.Current.HasTotal() {
			return "no results yet, press r to run the tests"
		}
		return "no failing tests"
	case paneWatched:
		return "no files matched the configured patterns"
	default:
		return "no test files configured"
	}
}

// rows renders the plain text of every row in p.
func (d *Dashboard) rows(p pane) []string {
	var rows []string
	switch p {
	case paneFailing:
		for _, id := range d.snap.Current.Failing() {
			mark := "    "
			if !d.snap.Previous.IsFailing(id) {
				mark = d.styles.New.Render("new ")
			}
			rows = append(rows, fmt.Sprintf("%s %s%s", d.styles.Check(d.snap.SelectedFailingTests[id]), mark, id))
		}
	case paneWatched:
		for _, w := range d.snap.Watched {
			rows = append(rows, fmt.Sprintf("%s %s", d.styles.Check(w.Selected), relPath(d.monitor.Root(), w.Path)))
		}
	case paneTestFiles:
		for _, f := range d.snap.TestFiles {
			rows = append(rows, fmt.Sprintf("%s %s", d.styles.Check(d.snap.SelectedTestFiles[f]), relPath(d.monitor.Root(), f)))
		}
	}
	return rows
}

func (d *Dashboard) rowCount(p pane) int {
	switch p {
	case paneFailing:
		if d.snap.Current == nil {
			return 0
		}
		return len(d.snap.Current.FailingTests)
	case paneWatched:
		return len(d.snap.Watched)
	case paneTestFiles:
		return len(d.snap.TestFiles)
	}
	return 0
}

// renderTrace shows the traceback of the failing test under the cursor.
func (d *Dashboard) renderTrace(width, maxRows int) []string {
	if d.pane != paneFailing || maxRows <= 0 {
		return nil
	}
	ids := d.snap.Current.Failing()
	i := d.cursor[paneFailing]
	if i >= len(ids) {
		return nil
	}
	id := ids[i]

	header := "TRACE " + id
	if frame := d.snap.Current.Frames[id]; frame != "" {
		header += "  " + d.styles.Muted.Render(truncateLeft(frame, width/2))
	}
	lines := []string{d.styles.Header.Render(truncate(header, width))}

	var body []string
	for _, l := range d.snap.Current.Trace(id) {
		body = append(body, wrapText(l, width-2)...)
	}
	if len(body) == 0 {
		body = []string{d.styles.Muted.Render("(no trace captured)")}
	}
	if len(body) > maxRows {
		// Keep the tail: the assertion is at the end of a traceback.
		skipped := len(body) - maxRows + 1
		body = append([]string{d.styles.Faint.Render(fmt.Sprintf("... %d lines above", skipped))}, body[skipped:]...)
	}
	for _, l := range body {
		lines = append(lines, "  "+l)
	}
	return lines
}

func (d *Dashboard) viewHelp() string {
	lines := []string{
		d.styles.Title.Render("HELP - KEYBOARD SHORTCUTS"),
		"",
		d.styles.Header.Render("Navigation"),
		"  tab / l      Next pane",
		"  S-tab / h    Previous pane",
		"  1 2 3        Failing, watched, test files",
		"  up / k       Move cursor up",
		"  down / j     Move cursor down",
		"  g / G        First / last row",
		"",
		d.styles.Header.Render("Actions"),
		"  r            Run the tests now",
		"  space        Toggle the row under the cursor",
		"               (watched files and test files are remembered)",
		"",
		d.styles.Header.Render("Other"),
		"  q            Quit",
		"  ?            Show this help",
		"",
		d.styles.Faint.Render("Press any key to close this help"),
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) safeWidth() int {
	frame := d.styles.Box.GetHorizontalFrameSize()
	if d.width > frame {
		return d.width - frame
	}
	return 80
}

func (d *Dashboard) safeHeight() int {
	frame := d.styles.Box.GetVerticalFrameSize()
	if d.height > frame {
		return d.height - frame
	}
	return 24
}

func (d *Dashboard) baseHeight() int {
	// title, meta, status, blank, tabs, blank, footer
	base := 7
	if d.message != "" {
		base += 2
	}
	return base
}

func (d *Dashboard) traceRows() int {
	if d.pane != paneFailing || d.rowCount(paneFailing) == 0 {
		return 0
	}
	available := d.safeHeight() - d.baseHeight() - 2
	rows := available / 2
	if rows < tracePaneMinLines {
		rows = tracePaneMinLines
	}
	if rows > tracePaneMaxLines {
		rows = tracePaneMaxLines
	}
	return rows
}

func (d *Dashboard) listRows() int {
	available := d.safeHeight() - d.baseHeight()
	if trace := d.traceRows(); trace > 0 {
		available -= trace + 2
	}
	// Leave room for the "... more" line.
	available--
	if available < listMinRows {
		return listMinRows
	}
	return available
}

func (d *Dashboard) clampCursor(p pane) {
	n := d.rowCount(p)
	if d.cursor[p] >= n {
		d.cursor[p] = n - 1
	}
	if d.cursor[p] < 0 {
		d.cursor[p] = 0
	}
}

func (d *Dashboard) ensureCursorVisible() {
	p := d.pane
	n := d.rowCount(p)
	visible := d.listRows()
	if n == 0 || visible <= 0 {
		d.offset[p] = 0
		return
	}
	if d.cursor[p] < d.offset[p] {
		d.offset[p] = d.cursor[p]
	}
	if d.cursor[p] >= d.offset[p]+visible {
		d.offset[p] = d.cursor[p] - visible + 1
	}
	maxOffset := n - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if d.offset[p] > maxOffset {
		d.offset[p] = maxOffset
	}
	if d.offset[p] < 0 {
		d.offset[p] = 0
	}
}
