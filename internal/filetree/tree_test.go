package filetree

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jvanrhyn.dev/remotetree/internal/filemeta"
	"jvanrhyn.dev/remotetree/internal/remote"
	"jvanrhyn.dev/remotetree/internal/rowmodel"
)

var stamp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// manualLoop runs dispatched work only when told to, on the test goroutine.
type manualLoop struct {
	queue []func() func()
}

func (l *manualLoop) Dispatch(work func() func()) {
	l.queue = append(l.queue, work)
}

func (l *manualLoop) runAll() {
	for len(l.queue) > 0 {
		w := l.queue[0]
		l.queue = l.queue[1:]
		w()()
	}
}

type fakeTransport struct {
	listings map[string][]filemeta.Record
	files    map[string][]byte
	failures map[string]error
	calls    []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		listings: map[string][]filemeta.Record{},
		files:    map[string][]byte{},
		failures: map[string]error{},
	}
}

func (f *fakeTransport) List(_ context.Context, dir string) ([]filemeta.Record, error) {
	f.calls = append(f.calls, "list "+dir)
	if err := f.failures[dir]; err != nil {
		return nil, err
	}
	recs, ok := f.listings[dir]
	if !ok {
		return nil, remote.NotFound(dir, nil)
	}
	return append([]filemeta.Record(nil), recs...), nil
}

func (f *fakeTransport) Download(_ context.Context, file string) ([]byte, error) {
	f.calls = append(f.calls, "download "+file)
	if err := f.failures[file]; err != nil {
		return nil, err
	}
	data, ok := f.files[file]
	if !ok {
		return nil, remote.NotFound(file, nil)
	}
	return data, nil
}

func dirRec(p string) filemeta.Record {
	return filemeta.NewRecord(p, filemeta.Directory, 0, stamp)
}

func fileRec(p string, size int64) filemeta.Record {
	return filemeta.NewRecord(p, filemeta.File, size, stamp)
}

func listing(dir string, recs ...filemeta.Record) []filemeta.Record {
	return append([]filemeta.Record{filemeta.ControlEntry(dir)}, recs...)
}

type harness struct {
	tree  *Tree
	loop  *manualLoop
	model *rowmodel.Model
	tr    *fakeTransport
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T, prefetch int64) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		loop:  &manualLoop{},
		model: rowmodel.New(rowmodel.DefaultColumns()...),
		tr:    newFakeTransport(),
		logs:  logs,
	}
	tree, err := New(Options{
		RootPath:      "/root",
		Transport:     h.tr,
		Loop:          h.loop,
		Presenter:     h.model,
		Diagnostics:   zap.New(core).Sugar(),
		PrefetchLimit: prefetch,
		Now:           func() time.Time { return stamp },
	})
	require.NoError(t, err)
	h.tree = tree
	return h
}

// listRoot delivers the scenario A listing to the root.
func (h *harness) listRoot(t *testing.T) {
	t.Helper()
	h.tr.listings["/root"] = listing("/root", dirRec("root/a"), fileRec("root/b", 10))
	h.tree.Reveal(h.tree.Root())
	h.loop.runAll()
}

func (h *harness) warnings(code string) int {
	n := 0
	for _, e := range h.logs.FilterLevelExact(zapcore.WarnLevel).All() {
		if e.ContextMap()["code"] == code {
			n++
		}
	}
	return n
}

func (h *harness) placeholderLabels(parent rowmodel.ID) []string {
	var out []string
	for _, id := range h.model.Children(parent) {
		r, ok := h.model.Row(id)
		if ok && r.Kind == rowmodel.Placeholder {
			out = append(out, r.Cells[0])
		}
	}
	return out
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{RootPath: "/a/b", Transport: newFakeTransport(), Loop: &manualLoop{}})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))

	_, err = New(Options{RootPath: "/root", Loop: &manualLoop{}})
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))

	_, err = New(Options{RootPath: "/root", Transport: newFakeTransport()})
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}

func TestNewRootIsVisibleAndUnlisted(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	require.NotNil(t, root)
	assert.True(t, root.IsRoot())
	assert.True(t, root.Visible())
	assert.Equal(t, "/root", root.Path())
	assert.Equal(t, stamp, root.Record().Updated)
	assert.Equal(t, FolderKnownContentsNot, root.State())

	require.NotZero(t, root.RowID())
	assert.Equal(t, []string{"Loading"}, h.placeholderLabels(root.RowID()))
}

func TestNewNodesKeepRemoteTimestamps(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	remoteTime := stamp.Add(-48 * time.Hour)

	h.tr.listings["/root"] = listing("/root",
		filemeta.NewRecord("root/dated", filemeta.File, 1, remoteTime),
		filemeta.NewRecord("root/undated", filemeta.File, 1, time.Time{}),
	)
	h.tree.Reveal(root)
	h.loop.runAll()

	assert.Equal(t, remoteTime, root.Child("dated").Record().Updated)
	assert.Equal(t, stamp, root.Child("undated").Record().Updated)
}

func TestScenarioListingCreatesChildren(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()

	h.tr.listings["/root"] = listing("/root", dirRec("root/a"), fileRec("root/b", 10))
	h.tree.Reveal(root)
	assert.Equal(t, FolderContentsLoading, root.State())
	assert.True(t, h.tree.Busy())

	h.loop.runAll()
	assert.False(t, h.tree.Busy())
	assert.Equal(t, FolderContentsLoaded, root.State())
	assert.True(t, root.ChildrenKnown())

	kids := root.Children()
	require.Len(t, kids, 2)
	assert.Equal(t, "/root/a", kids[0].Path())
	assert.Equal(t, filemeta.Directory, kids[0].Kind())
	assert.Equal(t, "/root/b", kids[1].Path())
	assert.Equal(t, int64(10), kids[1].Record().Size)
	assert.Equal(t, FolderKnownContentsNot, kids[0].State())
	assert.Equal(t, FileKnown, kids[1].State())

	// the root's placeholder gave way to real rows, the new directory has its own
	assert.Empty(t, h.placeholderLabels(root.RowID()))
	assert.Len(t, h.model.Children(root.RowID()), 2)
	assert.Equal(t, []string{"Loading"}, h.placeholderLabels(kids[0].RowID()))
}

func TestScenarioRelistRemovesAndRefreshes(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	a, b := root.Child("a"), root.Child("b")
	require.NotNil(t, a)
	require.NotNil(t, b)
	aRow, bRow := a.RowID(), b.RowID()

	h.tr.listings["/root"] = listing("/root", fileRec("root/b", 20))
	require.True(t, h.tree.Refresh(root))
	assert.Equal(t, FolderContentsReloading, root.State())
	h.loop.runAll()

	assert.Equal(t, Deleting, a.State())
	assert.True(t, a.Destroyed())
	assert.False(t, h.model.Has(aRow))

	kids := root.Children()
	require.Len(t, kids, 1)
	assert.Same(t, b, kids[0])
	assert.Equal(t, int64(20), b.Record().Size)
	assert.Equal(t, bRow, b.RowID())
	row, ok := h.model.Row(bRow)
	require.True(t, ok)
	assert.Equal(t, rowmodel.HumanBytes(20), row.Cells[1])
	assert.Equal(t, FolderContentsLoaded, root.State())
}

func TestScenarioFileDownload(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	b := h.tree.Root().Child("b")
	require.NotNil(t, b)
	assert.Equal(t, FileKnown, b.State())
	assert.Nil(t, b.Buffer())

	h.tr.files["/root/b"] = []byte("0123456789")
	require.True(t, h.tree.RequestDownload(b))
	assert.Equal(t, FileBuffLoading, b.State())

	h.loop.runAll()
	assert.Equal(t, FileBuffLoaded, b.State())
	assert.Equal(t, "0123456789", string(b.Buffer()))
	assert.False(t, b.HasDownloadTask())
}

func TestAttachDownloadTaskMovesToLoading(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	b := h.tree.Root().Child("b")

	task := NewTask(DownloadTask)
	require.True(t, b.AttachDownloadTask(task))
	assert.Equal(t, FileBuffLoading, b.State())

	b.SetBuffer([]byte("x"))
	assert.Equal(t, FileBuffReloading, b.State())
}

func TestScenarioNotFoundDeletesFile(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	b := root.Child("b")
	h.tr.files["/root/b"] = []byte("payload")
	h.tree.RequestDownload(b)
	h.loop.runAll()
	require.Equal(t, FileBuffLoaded, b.State())

	var seen []State
	h.tree.OnChange(func(rec filemeta.Record) {
		if rec.FullPath == "/root/b" {
			seen = append(seen, b.State())
		}
	})
	delete(h.tr.files, "/root/b")
	require.True(t, h.tree.Refresh(b))
	h.loop.runAll()

	assert.Equal(t, []State{FileBuffReloading, Deleting}, seen)
	assert.True(t, b.Destroyed())
	assert.Nil(t, root.Child("b"))
	assert.Len(t, root.Children(), 1)
}

func TestScenarioMismatchedListingIsRejected(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	a := h.tree.Root().Child("a")

	h.tr.listings["/root/a"] = append(
		[]filemeta.Record{filemeta.ControlEntry("/root/b")},
		fileRec("root/a/x", 1),
	)
	h.tree.Reveal(a)
	require.Equal(t, FolderContentsLoading, a.State())
	h.loop.runAll()

	assert.Equal(t, FolderKnownContentsNot, a.State())
	assert.False(t, a.ChildrenKnown())
	assert.Empty(t, a.Children())
	assert.Equal(t, 1, h.warnings(string(CodeProtocolMismatch)))

	// a listing without a control entry is rejected the same way
	h.tr.listings["/root/a"] = []filemeta.Record{fileRec("root/a/x", 1)}
	h.tree.Refresh(a)
	h.loop.runAll()
	assert.Empty(t, a.Children())
	assert.Equal(t, 2, h.warnings(string(CodeProtocolMismatch)))
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	before := root.Children()
	rows := h.model.Len()

	h.tree.Refresh(root)
	h.loop.runAll()

	after := root.Children()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Same(t, before[i], after[i])
	}
	assert.Equal(t, rows, h.model.Len())
}

func TestReconcileConverges(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	steps := [][]filemeta.Record{
		listing("/root", dirRec("root/a"), fileRec("root/b", 1), fileRec("root/c", 2)),
		listing("/root", fileRec("root/b", 1)),
		listing("/root", fileRec("root/a", 5), dirRec("root/d"), fileRec("root/b", 3)),
	}
	var oldA *Node
	for i, l := range steps {
		h.tr.listings["/root"] = l
		h.tree.Refresh(root)
		h.loop.runAll()
		if i == 0 {
			oldA = root.Child("a")
		}
	}
	require.NotNil(t, oldA)

	got := map[string]filemeta.Kind{}
	for _, c := range root.Children() {
		got[c.Path()] = c.Kind()
	}
	assert.Equal(t, map[string]filemeta.Kind{
		"/root/a": filemeta.File,
		"/root/b": filemeta.File,
		"/root/d": filemeta.Directory,
	}, got)
	// a changed kind, so it is a new node
	assert.True(t, oldA.Destroyed())
	assert.NotSame(t, oldA, root.Child("a"))
}

func TestEmptyListingClearsChildren(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	a := root.Child("a")

	h.tr.listings["/root"] = listing("/root")
	h.tree.Refresh(root)
	h.loop.runAll()

	assert.Empty(t, root.Children())
	assert.True(t, a.Destroyed())
	assert.True(t, root.ChildrenKnown())
	assert.Equal(t, FolderContentsLoaded, root.State())
	assert.Equal(t, []string{"Empty"}, h.placeholderLabels(root.RowID()))
}

func TestMarkVisiblePropagatesUpward(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	c := h.tree.newNode(root, dirRec("/root/c"))
	d := h.tree.newNode(c, fileRec("/root/c/d", 3))
	assert.Equal(t, FolderSpeculateIdle, c.State())
	assert.Equal(t, FileSpeculateIdle, d.State())
	assert.Zero(t, c.RowID())

	d.MarkVisible()
	assert.True(t, c.Visible())
	assert.True(t, root.Visible())
	assert.Equal(t, FolderKnownContentsNot, c.State())
	assert.Equal(t, FileKnown, d.State())
	assert.NotZero(t, d.RowID())

	// a failed call leaves visibility alone
	h.tr.failures["/root/c/d"] = remote.Unavailable("download", "/root/c/d", stderrors.New("refused"))
	h.tree.RequestDownload(d)
	h.loop.runAll()
	assert.True(t, d.Visible())
	assert.Equal(t, FileKnown, d.State())
}

func TestSpeculativeDownload(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	f := h.tree.newNode(root, fileRec("/root/f", 3))
	h.tr.files["/root/f"] = []byte("abc")

	require.True(t, h.tree.RequestDownload(f))
	assert.Equal(t, FileSpeculateLoading, f.State())
	assert.Zero(t, f.RowID())

	h.loop.runAll()
	assert.True(t, f.Visible())
	assert.Equal(t, FileBuffLoaded, f.State())
	assert.NotZero(t, f.RowID())
}

func TestAtMostOneTaskPerKind(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	h.tr.listings["/root"] = listing("/root")

	require.True(t, h.tree.RequestListing(root))
	assert.False(t, h.tree.RequestListing(root))
	assert.Len(t, h.loop.queue, 1)

	first := root.listTask
	second := NewTask(ListingTask)
	require.True(t, root.AttachListingTask(second))
	assert.Same(t, second, root.listTask)
	assert.Error(t, first.Context().Err())
	assert.NoError(t, second.Context().Err())
	assert.True(t, root.HasListingTask())
}

func TestStaleReplyIsDropped(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	h.tr.listings["/root"] = listing("/root", dirRec("root/a"))

	h.tree.RequestListing(root)
	replacement := NewTask(ListingTask)
	root.AttachListingTask(replacement)
	h.loop.runAll()

	assert.Empty(t, root.Children())
	assert.False(t, root.ChildrenKnown())
	assert.Same(t, replacement, root.listTask)
	assert.Equal(t, FolderContentsLoading, root.State())
	assert.False(t, h.tree.Busy())
}

func TestReplyForDeletedNodeIsDropped(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	a := h.tree.Root().Child("a")
	h.tr.listings["/root/a"] = listing("/root/a", fileRec("root/a/x", 1))

	h.tree.Reveal(a)
	h.tree.Delete(a)
	assert.True(t, a.Destroyed())
	h.loop.runAll()
	assert.Empty(t, a.children)
}

func TestDeletingIsTerminal(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	a, b := root.Child("a"), root.Child("b")
	h.tr.listings["/root/a"] = listing("/root/a", fileRec("root/a/x", 1))
	h.tree.Reveal(a)
	h.loop.runAll()
	x := a.Child("x")
	require.NotNil(t, x)
	aRow, xRow := a.RowID(), x.RowID()

	a.changeState(Deleting)
	b.changeState(Deleting)
	assert.Equal(t, Deleting, x.State())
	assert.False(t, h.model.Has(aRow))
	assert.False(t, h.model.Has(xRow))

	// commands are ignored until the sweep
	assert.False(t, a.AttachListingTask(NewTask(ListingTask)))
	assert.False(t, h.tree.requestListing(a))
	b.SetBuffer([]byte("late"))
	assert.Nil(t, b.Buffer())
	a.ForgetContents()
	a.recompute()
	assert.Equal(t, Deleting, a.State())
	assert.False(t, a.Destroyed())

	h.tree.Sweep()
	assert.True(t, a.Destroyed())
	assert.True(t, x.Destroyed())
	assert.True(t, b.Destroyed())
	assert.Empty(t, root.Children())
	assert.Empty(t, root.children)
	assert.Equal(t, []string{"Empty"}, h.placeholderLabels(root.RowID()))
}

func TestWrongKindRequestsAreUsageErrors(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	b := root.Child("b")

	assert.False(t, h.tree.RequestListing(b))
	assert.False(t, h.tree.RequestDownload(root))
	assert.False(t, root.AttachDownloadTask(NewTask(DownloadTask)))
	assert.False(t, b.AttachListingTask(NewTask(ListingTask)))
	root.SetBuffer([]byte("x"))

	assert.Equal(t, FileKnown, b.State())
	assert.Equal(t, FolderContentsLoaded, root.State())
	assert.Nil(t, root.Buffer())
	assert.Equal(t, 5, h.warnings(string(CodeInvalidKindOperation)))
	assert.Empty(t, h.loop.queue)
}

func TestUnavailableLeavesDataStale(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	h.tr.failures["/root"] = remote.Unavailable("list", "/root", stderrors.New("timeout"))

	h.tree.Refresh(root)
	h.loop.runAll()

	assert.Len(t, root.Children(), 2)
	assert.Equal(t, FolderContentsLoaded, root.State())
	var found bool
	for _, e := range h.logs.FilterMessage("remote listing failed").All() {
		found = found || e.ContextMap()["outcome"] == "connection_error"
	}
	assert.True(t, found)
}

func TestListingNotFoundDeletesDirectory(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	a := h.tree.Root().Child("a")

	h.tree.Reveal(a)
	h.loop.runAll()

	assert.True(t, a.Destroyed())
	assert.Equal(t, []string{"/root/b"}, []string{h.tree.Root().Children()[0].Path()})
}

func TestProjectionWaitsForParentRow(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	c := h.tree.newNode(root, dirRec("/root/c"))
	g := h.tree.newNode(c, fileRec("/root/c/g", 1))
	require.Zero(t, c.RowID())
	rows := h.model.Len()

	g.visible = true
	g.state = FileKnown
	g.syncProjection()

	assert.Zero(t, g.RowID())
	assert.Equal(t, rows, h.model.Len())
}

func TestPrefetchDownloadsSmallFiles(t *testing.T) {
	h := newHarness(t, 16)
	h.tr.listings["/root"] = listing("/root",
		fileRec("root/small", 4), fileRec("root/big", 400), fileRec("root/empty", 0), dirRec("root/d"))
	h.tr.files["/root/small"] = []byte("tiny")

	h.tree.Reveal(h.tree.Root())
	h.loop.runAll()

	root := h.tree.Root()
	assert.Equal(t, FileBuffLoaded, root.Child("small").State())
	assert.Equal(t, FileKnown, root.Child("big").State())
	assert.Equal(t, FileKnown, root.Child("empty").State())
	assert.Equal(t, []string{"list /root", "download /root/small"}, h.tr.calls)
}

func TestHardRefreshRebuildsChildren(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	oldB := root.Child("b")

	require.True(t, h.tree.HardRefresh(root))
	assert.True(t, oldB.Destroyed())
	assert.False(t, root.ChildrenKnown())
	assert.Equal(t, FolderContentsLoading, root.State())

	h.loop.runAll()
	assert.Len(t, root.Children(), 2)
	assert.NotSame(t, oldB, root.Child("b"))
}

func TestLookup(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	a := root.Child("a")

	assert.Same(t, root, h.tree.Lookup("/root", false))
	assert.Same(t, a, h.tree.Lookup("//root//a/", false))
	assert.Nil(t, h.tree.Lookup("/root/a/missing", false))
	assert.Same(t, a, h.tree.Lookup("/root/a/missing/deeper", true))
	assert.Nil(t, h.tree.Lookup("/other/a", true))
	assert.Nil(t, h.tree.Lookup("", true))
	assert.Same(t, a, root.LookupRelative("a", false))
}

func TestIsDescendantOf(t *testing.T) {
	h := newHarness(t, 0)
	h.listRoot(t)
	root := h.tree.Root()
	a, b := root.Child("a"), root.Child("b")

	assert.True(t, a.IsDescendantOf(a))
	assert.True(t, a.IsDescendantOf(root))
	assert.False(t, root.IsDescendantOf(a))
	assert.False(t, b.IsDescendantOf(a))
}

func TestRootNotFoundEmptiesTree(t *testing.T) {
	h := newHarness(t, 0)
	root := h.tree.Root()
	rootRow := root.RowID()

	h.tree.Reveal(root)
	h.loop.runAll()

	assert.Nil(t, h.tree.Root())
	assert.True(t, root.Destroyed())
	assert.False(t, h.model.Has(rootRow))
	assert.Nil(t, h.tree.Lookup("/root", true))
}

func TestChanLoopWithMemStore(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/docs", 0o755))
	require.NoError(t, util.WriteFile(fs, "/docs/readme.md", []byte("# hi"), 0o644))
	require.NoError(t, util.WriteFile(fs, "/top.txt", []byte("top"), 0o644))
	store := remote.NewBillyStore(fs, "mem")

	loop := NewChanLoop(4)
	tree, err := New(Options{RootPath: store.RootPath(), Transport: store, Loop: loop})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tree.Reveal(tree.Root())
	require.NoError(t, loop.RunNext(ctx))
	require.Len(t, tree.Root().Children(), 2)

	docs := tree.Lookup("/mem/docs", false)
	require.NotNil(t, docs)
	tree.Reveal(docs)
	require.NoError(t, loop.RunNext(ctx))
	readme := docs.Child("readme.md")
	require.NotNil(t, readme)

	tree.RequestDownload(readme)
	require.NoError(t, loop.RunNext(ctx))
	assert.Equal(t, "# hi", string(readme.Buffer()))
	assert.Equal(t, 0, loop.RunPending())
	assert.False(t, tree.Busy())
}
