package remote

import (
	"context"

	"golang.org/x/sync/singleflight"

	"jvanrhyn.dev/remotetree/internal/filemeta"
)

// Coalescing wraps a Transport so concurrent identical calls share one
// remote round trip. The tree keeps one task per node and kind, so sharing
// happens when a replaced node's call is still running and the node that
// took its place asks for the same path, or when several trees use one
// transport.
//
// The shared call is detached from every caller's cancellation. Each caller
// stops waiting when its own context is done; the call itself runs on.
type Coalescing struct {
	next Transport
	sf   singleflight.Group
}

// NewCoalescing wraps next.
func NewCoalescing(next Transport) *Coalescing {
	return &Coalescing{next: next}
}

func (c *Coalescing) do(ctx context.Context, op, p string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(op+":"+p, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, Unavailable(op, p, ctx.Err())
	}
}

func (c *Coalescing) List(ctx context.Context, dir string) ([]filemeta.Record, error) {
	dir = filemeta.CleanPath(dir)
	v, err := c.do(ctx, "list", dir, func(ctx context.Context) (interface{}, error) {
		return c.next.List(ctx, dir)
	})
	if err != nil {
		return nil, err
	}
	recs := v.([]filemeta.Record)
	// callers own their slice
	return append([]filemeta.Record(nil), recs...), nil
}

func (c *Coalescing) Download(ctx context.Context, file string) ([]byte, error) {
	file = filemeta.CleanPath(file)
	v, err := c.do(ctx, "download", file, func(ctx context.Context) (interface{}, error) {
		return c.next.Download(ctx, file)
	})
	if err != nil {
		return nil, err
	}
	data := v.([]byte)
	if data == nil {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Remove is passed straight through; deletions are never shared. Calls
// already running for the parent listing or the entry's content no longer
// describe the store, so later callers start fresh ones.
func (c *Coalescing) Remove(ctx context.Context, p string) error {
	r, ok := c.next.(Remover)
	if !ok {
		return Unavailable("remove", p, errNoRemove)
	}
	p = filemeta.CleanPath(p)
	c.sf.Forget("list:" + filemeta.Dir(p))
	c.sf.Forget("download:" + p)
	return r.Remove(ctx, p)
}
