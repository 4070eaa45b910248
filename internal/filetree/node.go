// Package filetree mirrors a remote hierarchical store as a tree of nodes.
//
// Nodes are filled lazily: listing a directory reconciles its children
// against the reply, downloading a file caches its bytes. Each node derives a
// State from its fields and keeps its rows in a Presenter in step with that
// state. A Tree is not safe for concurrent use; every call and every delivery
// runs on the goroutine that drains its Loop.
package filetree

import (
	"context"

	"jvanrhyn.dev/remotetree/internal/filemeta"
	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

// TaskKind distinguishes the two remote calls a node can wait on.
type TaskKind int

const (
	ListingTask TaskKind = iota
	DownloadTask
)

func (k TaskKind) String() string {
	if k == ListingTask {
		return "listing"
	}
	return "download"
}

// Task is the handle of one outstanding remote call. Cancelling it aborts
// the call's context; a reply for a task that is no longer attached to its
// node is dropped.
type Task struct {
	Kind   TaskKind
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTask returns a task whose context is cancelled when the task is
// replaced or its node goes away.
func NewTask(kind TaskKind) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{Kind: kind, ctx: ctx, cancel: cancel}
}

// Context is cancelled once the task stops mattering.
func (t *Task) Context() context.Context { return t.ctx }

// Cancel detaches the task's reply.
func (t *Task) Cancel() { t.cancel() }

// Node is one entry of the tree. A node owns its children; the parent
// pointer is a back-reference only.
type Node struct {
	tree     *Tree
	parent   *Node
	children []*Node

	record        filemeta.Record
	visible       bool
	childrenKnown bool
	buffer        []byte

	listTask     *Task
	downloadTask *Task

	state            State
	row              rowmodel.ID
	placeholder      rowmodel.ID
	placeholderLabel string
	destroyed        bool
}

func (t *Tree) newNode(parent *Node, rec filemeta.Record) *Node {
	if rec.Updated.IsZero() {
		rec.Updated = t.now()
	}
	n := &Node{tree: t, parent: parent, record: rec, state: Init}
	if parent != nil {
		parent.children = append(parent.children, n)
	}
	n.recompute()
	return n
}

func (n *Node) Record() filemeta.Record { return n.record }
func (n *Node) Name() string            { return n.record.Name }
func (n *Node) Path() string            { return n.record.FullPath }
func (n *Node) Kind() filemeta.Kind     { return n.record.Kind }
func (n *Node) State() State            { return n.state }
func (n *Node) Visible() bool           { return n.visible }
func (n *Node) ChildrenKnown() bool     { return n.childrenKnown }
func (n *Node) IsRoot() bool            { return n.parent == nil }

// Parent returns nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Destroyed reports whether Sweep has released the node. A destroyed node
// is detached from the tree and must not be used.
func (n *Node) Destroyed() bool { return n.destroyed }

// RowID is the node's row in the presenter, or 0 when it has none.
func (n *Node) RowID() rowmodel.ID { return n.row }

// Children returns the live children in listing order. Children already
// marked Deleting are left out.
func (n *Node) Children() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if c.state != Deleting {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the live child called name.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.state == Deleting || c.record.Kind == filemeta.Invalid {
			continue
		}
		if c.record.Name == name {
			return c
		}
	}
	return nil
}

// LookupRelative walks path from n, one segment per level. With closest
// set, the deepest node reached is returned when the walk falls short.
func (n *Node) LookupRelative(path string, closest bool) *Node {
	cur := n
	for _, seg := range filemeta.SplitPath(path) {
		next := cur.Child(seg)
		if next == nil {
			if closest {
				return cur
			}
			return nil
		}
		cur = next
	}
	return cur
}

// IsDescendantOf reports whether anc is n or one of its ancestors.
func (n *Node) IsDescendantOf(anc *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// Buffer is the downloaded content of a file, nil until fetched.
func (n *Node) Buffer() []byte { return n.buffer }

// SetBuffer replaces the cached content and reveals the node. An empty
// buffer clears it.
func (n *Node) SetBuffer(b []byte) {
	if n.ignoresCommands() {
		return
	}
	if n.record.Kind != filemeta.File {
		n.tree.usageError(n, "set buffer")
		return
	}
	if len(b) == 0 {
		b = nil
	}
	n.buffer = b
	n.MarkVisible()
	n.recompute()
}

// AttachListingTask makes t the node's outstanding listing, cancelling any
// previous one. It reports false when the node is not a live directory.
func (n *Node) AttachListingTask(t *Task) bool {
	if n.ignoresCommands() {
		return false
	}
	if n.record.Kind != filemeta.Directory || t.Kind != ListingTask {
		n.tree.usageError(n, "listing")
		return false
	}
	if n.listTask != nil {
		n.listTask.Cancel()
	}
	n.listTask = t
	n.recompute()
	return true
}

// AttachDownloadTask is AttachListingTask for file content.
func (n *Node) AttachDownloadTask(t *Task) bool {
	if n.ignoresCommands() {
		return false
	}
	if n.record.Kind != filemeta.File || t.Kind != DownloadTask {
		n.tree.usageError(n, "download")
		return false
	}
	if n.downloadTask != nil {
		n.downloadTask.Cancel()
	}
	n.downloadTask = t
	n.recompute()
	return true
}

func (n *Node) HasListingTask() bool  { return n.listTask != nil }
func (n *Node) HasDownloadTask() bool { return n.downloadTask != nil }

// MarkVisible reveals the node and every ancestor. Visibility is never
// taken back.
func (n *Node) MarkVisible() {
	if n.ignoresCommands() {
		return
	}
	if n.parent != nil {
		n.parent.MarkVisible()
	}
	if n.visible {
		return
	}
	n.visible = true
	n.recompute()
}

// ForgetContents drops what is known about a directory's children so the
// next listing starts from nothing.
func (n *Node) ForgetContents() {
	if n.ignoresCommands() || n.record.Kind != filemeta.Directory {
		return
	}
	n.childrenKnown = false
	n.clearChildren()
	n.recompute()
}

func (n *Node) clearChildren() {
	for i := len(n.children) - 1; i >= 0; i-- {
		n.children[i].changeState(Deleting)
	}
}

func (n *Node) ignoresCommands() bool {
	return n.destroyed || n.state == Deleting
}

func (n *Node) cancelTasks() {
	if n.listTask != nil {
		n.listTask.Cancel()
		n.listTask = nil
	}
	if n.downloadTask != nil {
		n.downloadTask.Cancel()
		n.downloadTask = nil
	}
}

func (n *Node) taskFor(kind TaskKind) *Task {
	if kind == ListingTask {
		return n.listTask
	}
	return n.downloadTask
}

func (n *Node) clearTask(kind TaskKind) {
	if kind == ListingTask {
		n.listTask = nil
	} else {
		n.downloadTask = nil
	}
}

// destroy releases the subtree depth-first, then detaches n from its parent.
func (n *Node) destroy() {
	for len(n.children) > 0 {
		n.children[len(n.children)-1].destroy()
	}
	n.cancelTasks()
	n.purgeProjection()
	if n.parent != nil {
		n.parent.detach(n)
	}
	n.destroyed = true
	n.buffer = nil
}

func (n *Node) detach(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}
