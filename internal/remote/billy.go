package remote

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

// BillyStore serves a billy filesystem as a remote store. The store's root
// directory appears under the single segment rootName, so "/<rootName>/a"
// addresses "a" at the top of the filesystem.
type BillyStore struct {
	fs       billy.Filesystem
	rootName string
}

// NewBillyStore wraps fs. Use osfs.New to mirror a local directory and
// memfs.New for an in-memory store.
func NewBillyStore(fs billy.Filesystem, rootName string) *BillyStore {
	return &BillyStore{fs: fs, rootName: rootName}
}

// RootPath is the tree path of the store's root directory.
func (s *BillyStore) RootPath() string {
	return filemeta.CleanPath("/" + s.rootName)
}

// local maps a tree path onto the filesystem. ok is false for paths outside
// the named root.
func (s *BillyStore) local(p string) (string, bool) {
	parts := filemeta.SplitPath(p)
	if len(parts) == 0 || parts[0] != s.rootName {
		return "", false
	}
	if len(parts) == 1 {
		return "/", true
	}
	return "/" + strings.Join(parts[1:], "/"), true
}

func (s *BillyStore) List(ctx context.Context, dir string) ([]filemeta.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("list", dir, err)
	}
	dir = filemeta.CleanPath(dir)
	lp, ok := s.local(dir)
	if !ok {
		return nil, NotFound(dir, nil)
	}
	infos, err := s.fs.ReadDir(lp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NotFound(dir, err)
		}
		return nil, Unavailable("list", dir, err)
	}
	out := make([]filemeta.Record, 0, len(infos)+1)
	out = append(out, filemeta.ControlEntry(dir))
	for _, fi := range infos {
		kind := filemeta.File
		size := fi.Size()
		if fi.IsDir() {
			kind = filemeta.Directory
			size = 0
		} else if !fi.Mode().IsRegular() {
			kind = filemeta.Invalid
		}
		out = append(out, filemeta.NewRecord(filemeta.JoinPath(dir, fi.Name()), kind, size, fi.ModTime()))
	}
	return out, nil
}

func (s *BillyStore) Download(ctx context.Context, file string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, Unavailable("download", file, err)
	}
	file = filemeta.CleanPath(file)
	lp, ok := s.local(file)
	if !ok {
		return nil, NotFound(file, nil)
	}
	f, err := s.fs.Open(lp)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NotFound(file, err)
		}
		return nil, Unavailable("download", file, err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, Unavailable("download", file, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (s *BillyStore) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return Unavailable("remove", p, err)
	}
	p = filemeta.CleanPath(p)
	lp, ok := s.local(p)
	if !ok || lp == "/" {
		return NotFound(p, nil)
	}
	if _, err := s.fs.Lstat(lp); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NotFound(p, err)
		}
		return Unavailable("remove", p, err)
	}
	if err := util.RemoveAll(s.fs, lp); err != nil {
		return Unavailable("remove", p, err)
	}
	return nil
}
