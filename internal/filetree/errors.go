package filetree

import (
	"github.com/jmgilman/go/errors"

	"jvanrhyn.dev/remotetree/internal/remote"
)

const (
	// CodeProtocolMismatch marks a listing whose control entry names a
	// different directory than the one it was requested for.
	CodeProtocolMismatch errors.ErrorCode = "PROTOCOL_MISMATCH"
	// CodeInvalidKindOperation marks a listing requested on a file or a
	// download requested on a directory.
	CodeInvalidKindOperation errors.ErrorCode = "INVALID_KIND_OPERATION"
)

// Diagnostics receives everything the tree has to say. Nothing the tree
// reports is fatal. *zap.SugaredLogger satisfies it.
type Diagnostics interface {
	Debugw(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

type nopDiagnostics struct{}

func (nopDiagnostics) Debugw(string, ...interface{}) {}
func (nopDiagnostics) Warnw(string, ...interface{})  {}

func (t *Tree) report(err error) {
	kv := []interface{}{"code", string(errors.GetCode(err))}
	var pe errors.PlatformError
	if errors.As(err, &pe) {
		for k, v := range pe.Context() {
			kv = append(kv, k, v)
		}
	}
	t.diag.Warnw(err.Error(), kv...)
}

func (t *Tree) usageError(n *Node, op string) {
	t.report(errors.WithContext(
		errors.Newf(CodeInvalidKindOperation, "%s is not valid on a %s", op, n.record.Kind),
		"path", n.record.FullPath,
	))
}

func (t *Tree) protocolMismatch(n *Node, control string) {
	t.report(errors.WithContextMap(
		errors.New(CodeProtocolMismatch, "listing does not belong to this node"),
		map[string]interface{}{"path": n.record.FullPath, "control": control},
	))
}

func (t *Tree) remoteFailure(n *Node, op string, err error) {
	t.diag.Warnw("remote "+op+" failed",
		"path", n.record.FullPath,
		"outcome", remote.Classify(err).String(),
		"error", err,
	)
}
