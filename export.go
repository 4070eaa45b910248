package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

var exportHeader = []string{"Name", "Path", "Type", "SizeBytes", "SizeHuman", "Modified", "State", "Downloaded"}

// exportCSV writes the entries currently shown in the table. The rows are
// collected here, on the goroutine that owns the tree; only the file write
// runs in the command.
func (m *browser) exportCSV() tea.Cmd {
	var records [][]string
	for _, l := range m.lines {
		if l.Kind != rowmodel.Entry {
			continue
		}
		n := m.tree.Lookup(l.Path, false)
		if n == nil {
			continue
		}
		rec := n.Record()
		modified := ""
		if !rec.Updated.IsZero() {
			modified = rec.Updated.UTC().Format("2006-01-02T15:04:05Z")
		}
		records = append(records, []string{
			rec.Name,
			rec.FullPath,
			rec.Kind.String(),
			strconv.FormatInt(rec.Size, 10),
			rowmodel.HumanBytes(rec.Size),
			modified,
			n.State().String(),
			strconv.FormatBool(n.Buffer() != nil),
		})
	}
	if len(records) == 0 {
		return func() tea.Msg { return exportDoneMsg{err: fmt.Errorf("nothing to export")} }
	}
	path := filepath.Join(m.exportDir, fmt.Sprintf("remotetree-%s.csv", m.now().Format("20060102-150405")))
	return func() tea.Msg {
		return exportDoneMsg{path: path, err: writeCSV(path, records)}
	}
}

func writeCSV(path string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return err
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return w.Error()
}
