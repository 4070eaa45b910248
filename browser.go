package main

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"jvanrhyn.dev/remotetree/internal/filemeta"
	"jvanrhyn.dev/remotetree/internal/filetree"
	"jvanrhyn.dev/remotetree/internal/remote"
	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

// deliveryMsg carries one finished remote call back onto the Update
// goroutine, which owns the tree.
type deliveryMsg struct{ apply func() }

type removeDoneMsg struct {
	path string
	err  error
}

type exportDoneMsg struct {
	path string
	err  error
}

// waitDelivery reads one delivery from the loop. Update issues it again
// after every delivery so exactly one reader is outstanding. It returns nil
// once the loop is closed.
func waitDelivery(loop *filetree.ChanLoop) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-loop.Done():
			return nil
		default:
		}
		select {
		case fn := <-loop.Deliveries():
			return deliveryMsg{apply: fn}
		case <-loop.Done():
			return nil
		}
	}
}

type browser struct {
	tree    *filetree.Tree
	loop    *filetree.ChanLoop
	rows    *rowmodel.Model
	remover remote.Remover
	log     *zap.SugaredLogger

	width  int
	height int

	tbl      table.Model
	spin     spinner.Model
	lines    []rowmodel.Line
	expanded map[string]bool
	status   string
	dirty    bool

	// delete confirmation
	confirmDelete bool
	deletePath    string
	confirmFocus  int // 0 = yes, 1 = no

	exportDir string
	now       func() time.Time
}

type browserOptions struct {
	Transport     remote.Transport
	RootPath      string
	PrefetchLimit int64
	Logger        *zap.SugaredLogger
	ExportDir     string
}

func newBrowser(opts browserOptions) (*browser, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	rows := rowmodel.New(rowmodel.DefaultColumns()...)
	loop := filetree.NewChanLoop(64)
	tree, err := filetree.New(filetree.Options{
		RootPath:      opts.RootPath,
		Transport:     opts.Transport,
		Loop:          loop,
		Presenter:     rows,
		Diagnostics:   opts.Logger,
		PrefetchLimit: opts.PrefetchLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create tree: %w", err)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	t := table.New(table.WithColumns(rowmodel.TableColumns(rows.Columns(), 0)), table.WithFocused(true))
	t.SetStyles(rowmodel.TableStyles())

	b := &browser{
		tree:      tree,
		loop:      loop,
		rows:      rows,
		log:       opts.Logger,
		tbl:       t,
		spin:      sp,
		expanded:  map[string]bool{tree.Root().Path(): true},
		exportDir: opts.ExportDir,
		now:       time.Now,
	}
	if remote.CanRemove(opts.Transport) {
		b.remover, _ = opts.Transport.(remote.Remover)
	}
	tree.OnChange(func(filemeta.Record) { b.dirty = true })
	b.rebuild()
	return b, nil
}

func (m *browser) Init() tea.Cmd {
	root := m.tree.Root()
	m.status = fmt.Sprintf("Listing %s ...", root.Path())
	m.tree.Reveal(root)
	m.rebuild()
	return tea.Batch(m.spin.Tick, waitDelivery(m.loop))
}

func (m *browser) isExpanded(r rowmodel.Row) bool {
	return m.expanded[r.Path]
}

// rebuild flattens the row model into the table, keeping the cursor on the
// same entry when it still exists.
func (m *browser) rebuild() {
	var selected string
	if l, ok := m.selectedLine(); ok {
		selected = l.Path
	}
	prev := m.tbl.Cursor()

	m.lines = m.rows.Lines(m.isExpanded)
	m.tbl.SetRows(rowmodel.TableRows(m.lines, m.isExpanded))
	m.dirty = false
	if len(m.lines) == 0 {
		return
	}
	cur := minvalue(maxvalue(prev, 0), len(m.lines)-1)
	if selected != "" {
		for i, l := range m.lines {
			if l.Kind == rowmodel.Entry && l.Path == selected {
				cur = i
				break
			}
		}
	}
	m.tbl.SetCursor(cur)
}

func (m *browser) selectedLine() (rowmodel.Line, bool) {
	i := m.tbl.Cursor()
	if i < 0 || i >= len(m.lines) {
		return rowmodel.Line{}, false
	}
	return m.lines[i], true
}

// selectedNode returns the node under the cursor. Placeholder rows have none.
func (m *browser) selectedNode() *filetree.Node {
	l, ok := m.selectedLine()
	if !ok || l.Kind != rowmodel.Entry {
		return nil
	}
	return m.tree.Lookup(l.Path, false)
}

func (m *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.update(msg)
	if m.dirty {
		m.rebuild()
	}
	return model, cmd
}

func (m *browser) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case deliveryMsg:
		msg.apply()
		switch {
		case m.tree.Root() == nil:
			m.status = "⚠ root no longer exists"
		case !m.tree.Busy() && strings.HasSuffix(m.status, "..."):
			m.status = "Ready"
		}
		return m, waitDelivery(m.loop)

	case removeDoneMsg:
		if msg.err != nil {
			m.log.Warnw("remove failed", "path", msg.path, "error", msg.err)
			m.status = "⚠ " + msg.err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("Deleted %s", filemeta.Base(msg.path))
		n := m.tree.Lookup(msg.path, false)
		if n == nil {
			return m, nil
		}
		// a fresh listing of the parent reconciles the entry away
		if p := n.Parent(); p == nil || !m.tree.Refresh(p) {
			m.tree.Delete(n)
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = "⚠ export failed: " + msg.err.Error()
		} else {
			m.status = "Exported " + msg.path
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.tbl.SetColumns(rowmodel.TableColumns(m.rows.Columns(), m.width))
		m.tbl.SetHeight(maxvalue(3, m.height-6))
		return m, nil

	case tea.KeyMsg:
		if m.confirmDelete {
			return m.updateConfirm(msg)
		}
		return m.updateKeys(msg)

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m *browser) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h":
		m.confirmFocus = 0
	case "right", "l":
		m.confirmFocus = 1
	case "tab":
		m.confirmFocus = (m.confirmFocus + 1) % 2
	case "enter":
		m.confirmDelete = false
		path := m.deletePath
		m.deletePath = ""
		if m.confirmFocus != 0 {
			m.status = "Canceled"
			return m, nil
		}
		m.status = fmt.Sprintf("Deleting %s ...", filemeta.Base(path))
		return m, m.removeCmd(path)
	case "esc", "c":
		m.confirmDelete = false
		m.deletePath = ""
		m.status = "Canceled"
	}
	// swallow everything else while the modal is open
	return m, nil
}

func (m *browser) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.loop.Close()
		return m, tea.Quit
	case "enter", "right", "l":
		m.open(m.selectedNode())
		return m, nil
	case "left", "h", "backspace":
		m.collapse()
		return m, nil
	case "r":
		if n := m.selectedNode(); n != nil && m.tree.Refresh(n) {
			m.status = fmt.Sprintf("Refreshing %s ...", n.Path())
		}
		return m, nil
	case "R":
		n := m.selectedNode()
		if n != nil && n.Kind() != filemeta.Directory {
			n = n.Parent()
		}
		if n != nil && m.tree.HardRefresh(n) {
			m.expanded[n.Path()] = true
			m.status = fmt.Sprintf("Reloading %s ...", n.Path())
		}
		return m, nil
	case "e":
		return m, m.exportCSV()
	case "d":
		n := m.selectedNode()
		if n == nil || n.IsRoot() {
			return m, nil
		}
		if m.remover == nil {
			m.status = "This store does not support deletion"
			return m, nil
		}
		m.confirmDelete = true
		m.confirmFocus = 1
		m.deletePath = n.Path()
		m.status = fmt.Sprintf("Delete %s?", n.Name())
		return m, nil
	}
	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

// open expands a directory or fetches a file's content.
func (m *browser) open(n *filetree.Node) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case filemeta.Directory:
		m.expanded[n.Path()] = true
		m.tree.Reveal(n)
		if n.HasListingTask() {
			m.status = fmt.Sprintf("Listing %s ...", n.Path())
		}
	case filemeta.File:
		if n.Buffer() != nil || n.HasDownloadTask() {
			return
		}
		if m.tree.RequestDownload(n) {
			m.status = fmt.Sprintf("Downloading %s ...", n.Path())
		}
	}
	m.dirty = true
}

// collapse folds the selected directory, or the directory holding the
// selected row.
func (m *browser) collapse() {
	l, ok := m.selectedLine()
	if !ok {
		return
	}
	target := l.Path
	if l.Kind != rowmodel.Entry || !l.IsDir || !m.expanded[l.Path] {
		parent, ok := m.rows.Row(l.Parent)
		if !ok {
			return
		}
		target = parent.Path
	}
	if root := m.tree.Root(); root == nil || target == root.Path() {
		return
	}
	delete(m.expanded, target)
	m.rebuild()
	for i, line := range m.lines {
		if line.Kind == rowmodel.Entry && line.Path == target {
			m.tbl.SetCursor(i)
			break
		}
	}
}

func (m *browser) removeCmd(path string) tea.Cmd {
	r := m.remover
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return removeDoneMsg{path: path, err: r.Remove(ctx, path)}
	}
}

func (m *browser) View() string {
	head := lipgloss.NewStyle().Bold(true).Render("RemoteTree — " + m.rootLabel())
	status := m.status
	if m.tree.Busy() {
		status = fmt.Sprintf("%s %s (%d pending)", m.spin.View(), status, m.tree.Pending())
	}
	foot := lipgloss.NewStyle().Faint(true).Render(
		"↑/↓ move  Enter open  ← close  r=refresh  R=reload  e=export CSV  d=delete  q=quit")
	body := lipgloss.JoinVertical(lipgloss.Left,
		head,
		m.tbl.View(),
		m.detail(),
		status,
		foot,
	)

	w, h := screenSize(m.width, m.height)
	if m.confirmDelete {
		btnYes := lipgloss.NewStyle().Padding(0, 2)
		btnNo := lipgloss.NewStyle().Padding(0, 2)
		if m.confirmFocus == 0 {
			btnYes = btnYes.Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0"))
		} else {
			btnNo = btnNo.Background(lipgloss.Color("2")).Foreground(lipgloss.Color("0"))
		}
		buttons := lipgloss.JoinHorizontal(lipgloss.Center, btnYes.Render(" Yes "), " ", btnNo.Render(" No "))
		popup := modalBox(lipgloss.JoinVertical(lipgloss.Center, m.status, "", buttons), 60, m.width, lipgloss.DoubleBorder())
		return renderOverlay(body, popup, w, h)
	}
	return lipgloss.Place(maxvalue(1, w), maxvalue(1, h), lipgloss.Left, lipgloss.Top, body,
		lipgloss.WithWhitespaceChars(" "), lipgloss.WithWhitespaceForeground(lipgloss.Color("0")))
}

func (m *browser) rootLabel() string {
	if root := m.tree.Root(); root != nil {
		return root.Path()
	}
	return "(gone)"
}

// detail describes the selected entry, with a preview of downloaded text.
func (m *browser) detail() string {
	n := m.selectedNode()
	if n == nil {
		return ""
	}
	line := fmt.Sprintf("%s  [%s]", n.Path(), n.State())
	if buf := n.Buffer(); buf != nil {
		line += "  " + preview(buf, 60)
	}
	return lipgloss.NewStyle().Faint(true).Render(line)
}

// preview renders the start of buf on one line.
func preview(buf []byte, n int) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return ' '
	}, string(buf))
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		s = string(r[:n]) + "…"
	}
	return fmt.Sprintf("%q", s)
}
