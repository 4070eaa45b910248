package filetree

import (
	"jvanrhyn.dev/remotetree/internal/filemeta"
	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

// Presenter is the presentation model the tree writes its rows into.
// Nothing else in the tree's process should write rows for tree nodes.
// *rowmodel.Model implements it.
type Presenter interface {
	ColumnCount() int
	// AppendRow adds a row for rec under parent. 0 is the model root.
	// ok is false when parent does not exist.
	AppendRow(parent rowmodel.ID, rec filemeta.Record) (rowmodel.ID, bool)
	AppendPlaceholder(parent rowmodel.ID, label string) (rowmodel.ID, bool)
	// RemoveRow removes the row and everything nested under it.
	RemoveRow(id rowmodel.ID)
	UpdateRowText(id rowmodel.ID, rec filemeta.Record)
	Has(id rowmodel.ID) bool
}

const (
	placeholderLoading = "Loading"
	placeholderEmpty   = "Empty"
)

// syncProjection brings the node's rows in line with its state.
func (n *Node) syncProjection() {
	if n.destroyed {
		return
	}
	switch n.state {
	case Deleting, Error, NonExtant:
		n.purgeProjection()
	case FolderContentsLoaded:
		n.updateProjection(true)
	case FolderContentsLoading, FolderContentsReloading, FolderKnownContentsNot,
		FileKnown, FileBuffLoading, FileBuffReloading, FileBuffLoaded:
		n.updateProjection(false)
	}
	// Speculative states and Init have no rows.
}

func (n *Node) purgeProjection() {
	p := n.tree.presenter
	if n.placeholder != 0 {
		p.RemoveRow(n.placeholder)
	}
	if n.row != 0 {
		p.RemoveRow(n.row)
	}
	n.row, n.placeholder, n.placeholderLabel = 0, 0, ""
}

func (n *Node) updateProjection(contentsLoaded bool) {
	p := n.tree.presenter
	if n.row != 0 && !p.Has(n.row) {
		// removed along with an ancestor's row
		n.row, n.placeholder, n.placeholderLabel = 0, 0, ""
	}
	if n.row == 0 {
		var parentRow rowmodel.ID
		if n.parent != nil {
			parentRow = n.parent.row
			if parentRow == 0 || !p.Has(parentRow) {
				return
			}
		}
		id, ok := p.AppendRow(parentRow, n.record)
		if !ok {
			return
		}
		n.row = id
	} else {
		p.UpdateRowText(n.row, n.record)
	}

	want := ""
	if n.record.Kind == filemeta.Directory && !n.hasVisibleChild() {
		want = placeholderLoading
		if contentsLoaded {
			want = placeholderEmpty
		}
	}
	if n.placeholder != 0 && (want != n.placeholderLabel || !p.Has(n.placeholder)) {
		p.RemoveRow(n.placeholder)
		n.placeholder, n.placeholderLabel = 0, ""
	}
	if want != "" && n.placeholder == 0 {
		if id, ok := p.AppendPlaceholder(n.row, want); ok {
			n.placeholder, n.placeholderLabel = id, want
		}
	}
}

func (n *Node) hasVisibleChild() bool {
	for _, c := range n.children {
		if c.visible && c.state != Deleting && c.state != Error {
			return true
		}
	}
	return false
}
