// Package rowmodel is the presentation model of a file tree: nested rows of
// per-column text, addressed by stable IDs. Rows are typed, so callers never
// need to inspect a row's content to learn what it stands for.
package rowmodel

import (
	"jvanrhyn.dev/remotetree/internal/filemeta"
)

// ID identifies a row. The zero ID is the model root and never a real row.
type ID uint64

// RowKind tags what a row stands for.
type RowKind int

const (
	// Entry rows display one remote entry.
	Entry RowKind = iota
	// Placeholder rows stand in for the not yet visible children of a
	// directory ("Loading" or "Empty").
	Placeholder
)

// Column describes one displayed column.
type Column struct {
	Title string
	Width int
}

// Row is a snapshot of a row in the model.
type Row struct {
	ID     ID
	Parent ID
	Kind   RowKind
	Path   string
	IsDir  bool
	Cells  []string
}

type row struct {
	Row
	children []ID
}

// Model holds rows in a tree. It is not safe for concurrent use; it belongs
// to the goroutine that owns the file tree projecting into it.
type Model struct {
	columns []Column
	rows    map[ID]*row
	top     []ID
	next    ID
}

// New returns an empty model with the given columns.
func New(columns ...Column) *Model {
	return &Model{
		columns: columns,
		rows:    make(map[ID]*row),
	}
}

// DefaultColumns are the columns the browser displays.
func DefaultColumns() []Column {
	return []Column{
		{Title: "Name", Width: 40},
		{Title: "Size", Width: 10},
		{Title: "Type", Width: 6},
		{Title: "Modified", Width: 17},
	}
}

// ColumnCount returns the number of configured columns.
func (m *Model) ColumnCount() int { return len(m.columns) }

// Columns returns a copy of the configured columns.
func (m *Model) Columns() []Column {
	out := make([]Column, len(m.columns))
	copy(out, m.columns)
	return out
}

// Len returns the number of rows in the model, placeholders included.
func (m *Model) Len() int { return len(m.rows) }

// Has reports whether id names a live row.
func (m *Model) Has(id ID) bool {
	_, ok := m.rows[id]
	return ok
}

// Row returns a snapshot of the row with the given id.
func (m *Model) Row(id ID) (Row, bool) {
	r, ok := m.rows[id]
	if !ok {
		return Row{}, false
	}
	snap := r.Row
	snap.Cells = append([]string(nil), r.Cells...)
	return snap, true
}

// Children returns the IDs of the rows nested directly under parent, in
// insertion order. A zero parent lists the top level rows.
func (m *Model) Children(parent ID) []ID {
	if parent == 0 {
		return append([]ID(nil), m.top...)
	}
	r, ok := m.rows[parent]
	if !ok {
		return nil
	}
	return append([]ID(nil), r.children...)
}

// AppendRow adds a row for rec under parent (zero for the top level). It
// reports false, and adds nothing, when parent is not a live row.
func (m *Model) AppendRow(parent ID, rec filemeta.Record) (ID, bool) {
	return m.append(parent, Row{
		Kind:  Entry,
		Path:  rec.FullPath,
		IsDir: rec.IsDir(),
		Cells: m.cells(rec),
	})
}

// AppendPlaceholder adds a placeholder row reading label under parent.
func (m *Model) AppendPlaceholder(parent ID, label string) (ID, bool) {
	cells := make([]string, len(m.columns))
	if len(cells) > 0 {
		cells[0] = label
	}
	return m.append(parent, Row{Kind: Placeholder, Cells: cells})
}

func (m *Model) append(parent ID, r Row) (ID, bool) {
	var siblings *[]ID
	if parent == 0 {
		siblings = &m.top
	} else {
		p, ok := m.rows[parent]
		if !ok {
			return 0, false
		}
		siblings = &p.children
	}
	m.next++
	r.ID = m.next
	r.Parent = parent
	m.rows[r.ID] = &row{Row: r}
	*siblings = append(*siblings, r.ID)
	return r.ID, true
}

// RemoveRow removes the row and everything nested under it. Unknown IDs are
// ignored.
func (m *Model) RemoveRow(id ID) {
	r, ok := m.rows[id]
	if !ok {
		return
	}
	if r.Parent == 0 {
		m.top = without(m.top, id)
	} else if p, ok := m.rows[r.Parent]; ok {
		p.children = without(p.children, id)
	}
	m.drop(r)
}

func (m *Model) drop(r *row) {
	for _, c := range r.children {
		if child, ok := m.rows[c]; ok {
			m.drop(child)
		}
	}
	delete(m.rows, r.ID)
}

// UpdateRowText rewrites the cells of an entry row in place.
func (m *Model) UpdateRowText(id ID, rec filemeta.Record) {
	r, ok := m.rows[id]
	if !ok || r.Kind != Entry {
		return
	}
	r.Path = rec.FullPath
	r.IsDir = rec.IsDir()
	r.Cells = m.cells(rec)
}

func (m *Model) cells(rec filemeta.Record) []string {
	cells := make([]string, len(m.columns))
	for i, c := range m.columns {
		cells[i] = cellText(c.Title, rec)
	}
	return cells
}

func without(ids []ID, id ID) []ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Line is one row of the flattened model.
type Line struct {
	Row
	Depth    int
	HasChild bool
}

// Lines flattens the model depth first. Rows nested under a row are only
// included when expanded reports true for it.
func (m *Model) Lines(expanded func(Row) bool) []Line {
	var out []Line
	var walk func(ids []ID, depth int)
	walk = func(ids []ID, depth int) {
		for _, id := range ids {
			r, ok := m.rows[id]
			if !ok {
				continue
			}
			out = append(out, Line{Row: r.Row, Depth: depth, HasChild: len(r.children) > 0})
			if len(r.children) > 0 && expanded != nil && expanded(r.Row) {
				walk(r.children, depth+1)
			}
		}
	}
	walk(m.top, 0)
	return out
}
