// Package filemeta describes entries of a remote store and the slash
// delimited paths that address them.
package filemeta

import "time"

// Kind classifies a remote entry.
type Kind int

const (
	Invalid Kind = iota
	File
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "dir"
	default:
		return "invalid"
	}
}

// ControlName is the name of the self-referencing entry every listing
// carries for the directory it describes.
const ControlName = "."

// Record is the metadata of one remote entry.
type Record struct {
	Name           string
	FullPath       string
	Kind           Kind
	Size           int64
	Updated        time.Time
	ContainingPath string
}

// NewRecord builds a record for the entry at fullPath, deriving its name and
// containing path.
func NewRecord(fullPath string, kind Kind, size int64, updated time.Time) Record {
	fullPath = CleanPath(fullPath)
	return Record{
		Name:           Base(fullPath),
		FullPath:       fullPath,
		Kind:           kind,
		Size:           size,
		Updated:        updated,
		ContainingPath: Dir(fullPath),
	}
}

// ControlEntry returns the "." record of a listing of dir.
func ControlEntry(dir string) Record {
	dir = CleanPath(dir)
	return Record{
		Name:           ControlName,
		FullPath:       JoinPath(dir, ControlName),
		Kind:           Directory,
		ContainingPath: dir,
	}
}

// IsControl reports whether r is the self-referencing entry of a listing.
func (r Record) IsControl() bool {
	return r.Name == ControlName
}

// IsDir reports whether r describes a directory.
func (r Record) IsDir() bool { return r.Kind == Directory }

// IsZero reports whether r is the empty record.
func (r Record) IsZero() bool {
	return r.FullPath == "" && r.Kind == Invalid
}

// SameEntry reports whether a and b identify the same remote entry. Size and
// timestamps may differ between two records of the same entry.
func SameEntry(a, b Record) bool {
	return a.FullPath == b.FullPath && a.Kind == b.Kind
}
