package filetree

import (
	"strings"
	"time"

	"github.com/jmgilman/go/errors"

	"jvanrhyn.dev/remotetree/internal/filemeta"
	"jvanrhyn.dev/remotetree/internal/remote"
	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

// Options configures a Tree. RootPath, Transport and Loop are required.
type Options struct {
	// RootPath names the single root directory, e.g. "/data".
	RootPath  string
	Transport remote.Transport
	Loop      Loop
	// Presenter defaults to a rowmodel.Model with the default columns.
	Presenter   Presenter
	Diagnostics Diagnostics
	// PrefetchLimit enables downloading child files of at most this many
	// bytes as soon as their directory is listed. 0 disables it.
	PrefetchLimit int64
	Now           func() time.Time
}

// Tree owns the root node and coordinates every remote call made for it.
type Tree struct {
	root      *Node
	transport remote.Transport
	loop      Loop
	presenter Presenter
	diag      Diagnostics
	now       func() time.Time
	prefetch  int64

	listeners []func(filemeta.Record)
	doomed    []*Node
	inflight  int
	depth     int
}

// New builds a tree whose root directory is visible and not yet listed.
func New(opts Options) (*Tree, error) {
	parts := filemeta.SplitPath(opts.RootPath)
	if len(parts) != 1 {
		return nil, errors.WithContext(
			errors.New(errors.CodeInvalidConfig, "root path must name exactly one directory"),
			"root", opts.RootPath,
		)
	}
	if opts.Transport == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "transport is required")
	}
	if opts.Loop == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "loop is required")
	}
	t := &Tree{
		transport: opts.Transport,
		loop:      opts.Loop,
		presenter: opts.Presenter,
		diag:      opts.Diagnostics,
		now:       opts.Now,
		prefetch:  opts.PrefetchLimit,
	}
	if t.presenter == nil {
		t.presenter = rowmodel.New(rowmodel.DefaultColumns()...)
	}
	if t.diag == nil {
		t.diag = nopDiagnostics{}
	}
	if t.now == nil {
		t.now = time.Now
	}
	rec := filemeta.NewRecord("/"+parts[0], filemeta.Directory, 0, t.now())
	t.root = &Node{tree: t, record: rec, visible: true, state: Init}
	t.root.recompute()
	return t, nil
}

// Root returns nil once the root itself has been removed.
func (t *Tree) Root() *Node {
	if t.root == nil || t.root.destroyed {
		return nil
	}
	return t.root
}

// Presenter returns the model the tree projects into.
func (t *Tree) Presenter() Presenter { return t.presenter }

// Lookup resolves an absolute path whose first segment is the root's name.
// With closest set, the deepest existing ancestor is returned when the path
// does not exist.
func (t *Tree) Lookup(path string, closest bool) *Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	parts := filemeta.SplitPath(path)
	if len(parts) == 0 || parts[0] != root.Name() {
		return nil
	}
	return root.LookupRelative(strings.Join(parts[1:], "/"), closest)
}

// OnChange registers fn to be called with the node's record on every state
// transition.
func (t *Tree) OnChange(fn func(filemeta.Record)) {
	t.listeners = append(t.listeners, fn)
}

func (t *Tree) notify(rec filemeta.Record) {
	for _, fn := range t.listeners {
		fn(rec)
	}
}

// Busy reports whether any remote call is outstanding.
func (t *Tree) Busy() bool { return t.inflight > 0 }

// Pending is the number of outstanding remote calls.
func (t *Tree) Pending() int { return t.inflight }

func (t *Tree) enter() { t.depth++ }

func (t *Tree) leave() {
	t.depth--
	t.Sweep()
}

// RequestListing issues a listing of n. It reports false, and does nothing,
// when n is not a live directory or a listing is already outstanding.
func (t *Tree) RequestListing(n *Node) bool {
	t.enter()
	defer t.leave()
	return t.requestListing(n)
}

func (t *Tree) requestListing(n *Node) bool {
	if n == nil || n.ignoresCommands() {
		return false
	}
	if n.record.Kind != filemeta.Directory {
		t.usageError(n, "listing")
		return false
	}
	if n.listTask != nil {
		return false
	}
	task := NewTask(ListingTask)
	if !n.AttachListingTask(task) {
		return false
	}
	path, tr := n.Path(), t.transport
	t.inflight++
	t.diag.Debugw("listing", "path", path)
	t.loop.Dispatch(func() func() {
		recs, err := tr.List(task.Context(), path)
		return func() { t.deliverListing(n, task, recs, err) }
	})
	return true
}

// RequestDownload issues a download of file n's content, under the same
// rules as RequestListing.
func (t *Tree) RequestDownload(n *Node) bool {
	t.enter()
	defer t.leave()
	return t.requestDownload(n)
}

func (t *Tree) requestDownload(n *Node) bool {
	if n == nil || n.ignoresCommands() {
		return false
	}
	if n.record.Kind != filemeta.File {
		t.usageError(n, "download")
		return false
	}
	if n.downloadTask != nil {
		return false
	}
	task := NewTask(DownloadTask)
	if !n.AttachDownloadTask(task) {
		return false
	}
	path, tr := n.Path(), t.transport
	t.inflight++
	t.diag.Debugw("download", "path", path)
	t.loop.Dispatch(func() func() {
		data, err := tr.Download(task.Context(), path)
		return func() { t.deliverDownload(n, task, data, err) }
	})
	return true
}

// stale reports whether a reply for task no longer belongs to n.
func (t *Tree) stale(n *Node, task *Task) bool {
	if n.destroyed || n.taskFor(task.Kind) != task {
		t.diag.Debugw("dropping stale reply", "path", n.record.FullPath, "task", task.Kind.String())
		return true
	}
	return false
}

func (t *Tree) deliverListing(n *Node, task *Task, recs []filemeta.Record, err error) {
	t.inflight--
	t.enter()
	defer t.leave()
	if t.stale(n, task) {
		return
	}
	n.clearTask(ListingTask)

	switch remote.Classify(err) {
	case remote.Good:
		if !n.verifyListing(recs) {
			dir, _ := controlPath(recs)
			t.protocolMismatch(n, dir)
			n.recompute()
			return
		}
		n.applyListing(recs)
		t.prefetchChildren(n)
	case remote.FileNotFound:
		t.diag.Debugw("entry vanished", "path", n.record.FullPath)
		n.changeState(Deleting)
	default:
		t.remoteFailure(n, "listing", err)
		n.recompute()
	}
}

func (t *Tree) deliverDownload(n *Node, task *Task, data []byte, err error) {
	t.inflight--
	t.enter()
	defer t.leave()
	if t.stale(n, task) {
		return
	}
	n.clearTask(DownloadTask)

	switch remote.Classify(err) {
	case remote.Good:
		n.SetBuffer(data)
	case remote.FileNotFound:
		t.diag.Debugw("entry vanished", "path", n.record.FullPath)
		n.changeState(Deleting)
	default:
		t.remoteFailure(n, "download", err)
		n.recompute()
	}
}

func (t *Tree) prefetchChildren(n *Node) {
	if t.prefetch <= 0 {
		return
	}
	for _, c := range n.Children() {
		if c.record.Kind == filemeta.File && c.buffer == nil && c.record.Size > 0 && c.record.Size <= t.prefetch {
			t.requestDownload(c)
		}
	}
}

// Reveal shows n and its ancestors and lists n when it is a directory whose
// contents were never fetched.
func (t *Tree) Reveal(n *Node) {
	t.enter()
	defer t.leave()
	if n == nil || n.ignoresCommands() {
		return
	}
	n.MarkVisible()
	if n.record.Kind == filemeta.Directory && !n.childrenKnown && n.listTask == nil {
		t.requestListing(n)
	}
}

// Refresh fetches n again: a listing for a directory, content for a file.
func (t *Tree) Refresh(n *Node) bool {
	t.enter()
	defer t.leave()
	if n == nil {
		return false
	}
	if n.record.Kind == filemeta.File {
		return t.requestDownload(n)
	}
	return t.requestListing(n)
}

// HardRefresh forgets everything below directory n and lists it again.
func (t *Tree) HardRefresh(n *Node) bool {
	t.enter()
	defer t.leave()
	if n == nil || n.ignoresCommands() || n.record.Kind != filemeta.Directory {
		return false
	}
	n.ForgetContents()
	if n.listTask != nil {
		return true
	}
	return t.requestListing(n)
}

// Delete removes n and its subtree from the tree. The remote store is not
// touched.
func (t *Tree) Delete(n *Node) {
	t.enter()
	defer t.leave()
	if n == nil {
		return
	}
	n.changeState(Deleting)
}

func (t *Tree) doom(n *Node) {
	t.doomed = append(t.doomed, n)
}

// Sweep destroys every node marked Deleting. The tree calls it after each
// command and delivery; it does nothing while one is still running.
func (t *Tree) Sweep() {
	if t.depth > 0 {
		return
	}
	for len(t.doomed) > 0 {
		n := t.doomed[0]
		t.doomed = t.doomed[1:]
		if !n.destroyed {
			n.destroy()
		}
	}
}
