package filetree

import (
	"context"
	"sync"
)

// Loop runs remote calls off the tree's goroutine and hands their results
// back to it. work runs on any goroutine; the func it returns must run on
// the goroutine that owns the tree.
type Loop interface {
	Dispatch(work func() func())
}

// ChanLoop is a Loop whose deliveries are read from a channel by the owner.
// Once closed, calls still running drop their results instead of waiting
// for a reader.
type ChanLoop struct {
	ch      chan func()
	done    chan struct{}
	once    sync.Once
	workers sync.WaitGroup
}

func NewChanLoop(buffer int) *ChanLoop {
	return &ChanLoop{ch: make(chan func(), buffer), done: make(chan struct{})}
}

func (l *ChanLoop) Dispatch(work func() func()) {
	select {
	case <-l.done:
		return
	default:
	}
	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		fn := work()
		select {
		case l.ch <- fn:
		case <-l.done:
		}
	}()
}

// Close stops delivery. It is safe to call more than once.
func (l *ChanLoop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed by Close.
func (l *ChanLoop) Done() <-chan struct{} { return l.done }

// Deliveries yields results in the order the calls finished.
func (l *ChanLoop) Deliveries() <-chan func() { return l.ch }

// RunNext blocks until one delivery is available and runs it.
func (l *ChanLoop) RunNext(ctx context.Context) error {
	select {
	case fn := <-l.ch:
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs every delivery that is already waiting and returns how
// many ran.
func (l *ChanLoop) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-l.ch:
			fn()
			n++
		default:
			return n
		}
	}
}
