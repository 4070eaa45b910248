// Package remote provides transports that list and download entries of a
// remote store, plus wrappers that coalesce and instrument them.
package remote

import (
	"context"

	"github.com/jmgilman/go/errors"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

// Transport talks to the remote store. Implementations must be safe for
// concurrent use; calls are made off the tree's goroutine.
type Transport interface {
	// List returns the direct children of dir. The result includes the
	// control entry (filemeta.ControlEntry) of dir.
	List(ctx context.Context, dir string) ([]filemeta.Record, error)
	// Download returns the contents of file. A nil slice with a nil error
	// means the file is empty.
	Download(ctx context.Context, file string) ([]byte, error)
}

// Remover is implemented by transports that can delete remote entries.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// Outcome is the result class of a remote call.
type Outcome int

const (
	Good Outcome = iota
	FileNotFound
	ConnectionError
)

func (o Outcome) String() string {
	switch o {
	case Good:
		return "good"
	case FileNotFound:
		return "not_found"
	default:
		return "connection_error"
	}
}

// Classify maps the error returned by a Transport to an outcome. Errors
// coded NOT_FOUND mean the entry is gone; every other failure is treated as
// the remote being unavailable.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Good
	case errors.GetCode(err) == errors.CodeNotFound:
		return FileNotFound
	default:
		return ConnectionError
	}
}

// NotFound returns an error that classifies as FileNotFound.
func NotFound(path string, cause error) error {
	if cause == nil {
		return errors.WithContext(errors.New(errors.CodeNotFound, "remote entry not found"), "path", path)
	}
	return errors.WithContext(errors.Wrap(cause, errors.CodeNotFound, "remote entry not found"), "path", path)
}

// Unavailable returns an error that classifies as ConnectionError.
func Unavailable(op, path string, cause error) error {
	return errors.WrapWithContext(cause, errors.CodeUnavailable, "remote "+op+" failed", map[string]interface{}{
		"path": path,
	})
}
