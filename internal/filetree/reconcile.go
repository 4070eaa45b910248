package filetree

import "jvanrhyn.dev/remotetree/internal/filemeta"

// controlPath returns the directory a listing claims to describe, taken from
// its "." entry.
func controlPath(listing []filemeta.Record) (string, bool) {
	for _, r := range listing {
		if r.IsControl() {
			return r.ContainingPath, true
		}
	}
	return "", false
}

// verifyListing reports whether listing was produced for n. The control
// entry's containing path must resolve from the root to n itself.
func (n *Node) verifyListing(listing []filemeta.Record) bool {
	dir, ok := controlPath(listing)
	if !ok || dir == "" {
		return false
	}
	return n.tree.Lookup(dir, false) == n
}

// applyListing merges a verified listing into n's children. Vanished
// children are marked Deleting before new ones are added so that an entry
// whose kind changed is replaced rather than updated.
func (n *Node) applyListing(listing []filemeta.Record) {
	n.childrenKnown = true

	entries := listing[:0:0]
	for _, r := range listing {
		if !r.IsControl() {
			entries = append(entries, r)
		}
	}
	if len(entries) == 0 {
		n.clearChildren()
		n.recompute()
		return
	}

	n.purgeUnmatched(entries)
	for _, r := range entries {
		n.insert(r)
	}
	for _, c := range n.Children() {
		c.MarkVisible()
	}
	n.recompute()
}

func (n *Node) purgeUnmatched(entries []filemeta.Record) {
	for i := len(n.children) - 1; i >= 0; i-- {
		c := n.children[i]
		if c.state == Deleting {
			continue
		}
		if !containsEntry(entries, c.record) {
			c.changeState(Deleting)
		}
	}
}

func containsEntry(entries []filemeta.Record, rec filemeta.Record) bool {
	for _, r := range entries {
		if r.Kind == rec.Kind && filemeta.CleanPath(r.FullPath) == rec.FullPath {
			return true
		}
	}
	return false
}

func (n *Node) insert(r filemeta.Record) {
	r = filemeta.NewRecord(r.FullPath, r.Kind, r.Size, r.Updated)
	for _, c := range n.children {
		if c.state == Deleting || !filemeta.SameEntry(c.record, r) {
			continue
		}
		if c.record.Size != r.Size {
			c.record.Size = r.Size
			c.syncProjection()
		}
		return
	}
	n.tree.newNode(n, r)
}
