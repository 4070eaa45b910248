package filetree

import "jvanrhyn.dev/remotetree/internal/filemeta"

// State is what is currently known about a node.
type State int

const (
	Init State = iota
	Error
	NonExtant
	// Deleting is terminal. A deleting node is removed by the next Sweep.
	Deleting

	FolderSpeculateIdle
	FolderSpeculateLoading
	FolderContentsLoading
	FolderContentsReloading
	FolderKnownContentsNot
	FolderContentsLoaded

	FileSpeculateIdle
	FileSpeculateLoading
	FileBuffLoading
	FileBuffReloading
	FileKnown
	FileBuffLoaded
)

var stateNames = [...]string{
	Init:                    "Init",
	Error:                   "Error",
	NonExtant:               "NonExtant",
	Deleting:                "Deleting",
	FolderSpeculateIdle:     "FolderSpeculateIdle",
	FolderSpeculateLoading:  "FolderSpeculateLoading",
	FolderContentsLoading:   "FolderContentsLoading",
	FolderContentsReloading: "FolderContentsReloading",
	FolderKnownContentsNot:  "FolderKnownContentsNot",
	FolderContentsLoaded:    "FolderContentsLoaded",
	FileSpeculateIdle:       "FileSpeculateIdle",
	FileSpeculateLoading:    "FileSpeculateLoading",
	FileBuffLoading:         "FileBuffLoading",
	FileBuffReloading:       "FileBuffReloading",
	FileKnown:               "FileKnown",
	FileBuffLoaded:          "FileBuffLoaded",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Loading reports whether a remote call is outstanding in this state.
func (s State) Loading() bool {
	switch s {
	case FolderSpeculateLoading, FolderContentsLoading, FolderContentsReloading,
		FileSpeculateLoading, FileBuffLoading, FileBuffReloading:
		return true
	}
	return false
}

// stateInputs are the persistent fields the state is derived from.
type stateInputs struct {
	current       State
	kind          filemeta.Kind
	visible       bool
	taskPending   bool
	hasChildren   bool
	childrenKnown bool
	hasBuffer     bool
}

// nextState is the transition function. It is pure: the same inputs always
// give the same state.
func nextState(in stateInputs) State {
	if in.current == Deleting {
		return Deleting
	}
	switch in.kind {
	case filemeta.Directory:
		switch {
		case !in.visible && in.taskPending:
			return FolderSpeculateLoading
		case !in.visible:
			return FolderSpeculateIdle
		case in.taskPending && in.hasChildren:
			return FolderContentsReloading
		case in.taskPending:
			return FolderContentsLoading
		case in.childrenKnown:
			return FolderContentsLoaded
		default:
			return FolderKnownContentsNot
		}
	case filemeta.File:
		switch {
		case !in.visible && in.taskPending:
			return FileSpeculateLoading
		case !in.visible:
			return FileSpeculateIdle
		case in.taskPending && in.hasBuffer:
			return FileBuffReloading
		case in.taskPending:
			return FileBuffLoading
		case in.hasBuffer:
			return FileBuffLoaded
		default:
			return FileKnown
		}
	}
	return Error
}

func (n *Node) inputs() stateInputs {
	in := stateInputs{
		current:       n.state,
		kind:          n.record.Kind,
		visible:       n.visible,
		childrenKnown: n.childrenKnown,
		hasBuffer:     n.buffer != nil,
		hasChildren:   len(n.Children()) > 0,
	}
	switch n.record.Kind {
	case filemeta.Directory:
		in.taskPending = n.listTask != nil
	case filemeta.File:
		in.taskPending = n.downloadTask != nil
	}
	return in
}

// recompute derives the node's state from its fields. Every mutation of
// those fields ends with a call to it.
func (n *Node) recompute() {
	if n.destroyed {
		return
	}
	n.changeState(nextState(n.inputs()))
}

func (n *Node) changeState(s State) {
	if n.destroyed || n.state == Deleting || s == n.state {
		return
	}
	if s == Deleting {
		n.markDeleting()
		return
	}
	n.state = s
	n.syncProjection()
	if n.parent != nil {
		n.parent.syncProjection()
	}
	n.tree.notify(n.record)
}

// markDeleting is the first phase of destruction: the subtree is marked,
// its rows and tasks are dropped, and the nodes are queued for Sweep.
func (n *Node) markDeleting() {
	for i := len(n.children) - 1; i >= 0; i-- {
		n.children[i].changeState(Deleting)
	}
	n.state = Deleting
	n.cancelTasks()
	n.syncProjection()
	if n.parent != nil {
		n.parent.syncProjection()
	}
	n.tree.doom(n)
	n.tree.notify(n.record)
}
