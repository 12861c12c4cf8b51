package vfskit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"
)

// ChangeKind classifies a change reported to watchers.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeChanged
	ChangeRemoved
	ChangeRenamed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeChanged:
		return "changed"
	case ChangeRemoved:
		return "removed"
	case ChangeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Change is one filesystem change. Path is canonical: the drive prefix,
// a slash and the slash-separated path below the root.
type Change struct {
	Kind ChangeKind
	Path string
}

// ChangeToken propagates a single change notification.
type ChangeToken interface {
	HasChanged() bool
	ActiveChangeCallbacks() bool
	// RegisterChangeCallback registers fn to run when the token fires and
	// returns a function that unregisters it.
	RegisterChangeCallback(fn func()) (unregister func())
}

// CallbackChangeToken is a ChangeToken fired by the registry when a
// matching change happens.
type CallbackChangeToken struct {
	mu        sync.RWMutex
	changed   atomic.Bool
	change    Change
	callbacks []func()
}

// NewCallbackChangeToken creates an unfired token.
func NewCallbackChangeToken() *CallbackChangeToken {
	return &CallbackChangeToken{}
}

func (t *CallbackChangeToken) HasChanged() bool {
	return t.changed.Load()
}

func (t *CallbackChangeToken) ActiveChangeCallbacks() bool {
	return true
}

func (t *CallbackChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	t.mu.Lock()
	t.callbacks = append(t.callbacks, callback)
	index := len(t.callbacks) - 1
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if index < len(t.callbacks) {
			// keep indices of other registrations stable
			t.callbacks[index] = nil
		}
	}
}

// Change returns the change that fired the token.
func (t *CallbackChangeToken) Change() (Change, bool) {
	if !t.changed.Load() {
		return Change{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.change, true
}

// SignalChange fires the token once and runs the callbacks.
func (t *CallbackChangeToken) SignalChange(c Change) {
	t.mu.Lock()
	if t.changed.Load() {
		t.mu.Unlock()
		return
	}
	t.change = c
	t.changed.Store(true)
	callbacks := make([]func(), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb()
		}
	}
}

type watch struct {
	pattern string
	g       glob.Glob
	token   *CallbackChangeToken
}

// watchers holds the pending tokens of one registry.
type watchers struct {
	mu      sync.Mutex
	pending []*watch
}

func newWatchers() *watchers {
	return &watchers{}
}

func (w *watchers) add(pattern string) (*CallbackChangeToken, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("%w: bad watch pattern %q: %v", ErrInvalid, pattern, err)
	}
	t := NewCallbackChangeToken()
	w.mu.Lock()
	w.pending = append(w.pending, &watch{pattern: pattern, g: g, token: t})
	w.mu.Unlock()
	return t, nil
}

// fire signals and drops every pending token whose pattern matches.
func (w *watchers) fire(c Change) int {
	w.mu.Lock()
	var hit []*watch
	kept := w.pending[:0]
	for _, x := range w.pending {
		if x.g.Match(c.Path) {
			hit = append(hit, x)
		} else {
			kept = append(kept, x)
		}
	}
	clear(w.pending[len(kept):])
	w.pending = kept
	w.mu.Unlock()

	for _, x := range hit {
		x.token.SignalChange(c)
	}
	return len(hit)
}

func (w *watchers) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Watch returns a token that fires on the next change to a path matching
// pattern. Patterns use glob syntax over canonical paths such as
// "SD:/logs/*.txt"; '*' stays within one directory and '**' crosses them.
func (r *Registry) Watch(pattern string) (ChangeToken, error) {
	t, err := r.watchers.add(pattern)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// canonicalPath renders path on d the way watchers see it.
func canonicalPath(d *Drive, path string) string {
	rel := strings.Trim(strings.ReplaceAll(d.rest(path), `\`, "/"), "/")
	return d.prefix + "/" + rel
}

func (r *Registry) notify(kind ChangeKind, d *Drive, path string) {
	c := Change{Kind: kind, Path: canonicalPath(d, path)}
	if n := r.watchers.fire(c); n > 0 {
		r.log.WithFields(logrus.Fields{"drive": d.prefix, "change": kind.String()}).
			Debugf("[VFS] %s fired %d watchers", c.Path, n)
	}
}

// OnChange re-arms a token from tokenProducer after every change and runs
// changeAction each time. The returned function stops watching.
//
// Example:
//
//	cancel := vfskit.OnChange(
//	    func() (vfskit.ChangeToken, error) {
//	        return reg.Watch("SD:/config/*.ini")
//	    },
//	    func() {
//	        reloadConfig()
//	    },
//	)
//	defer cancel()
func OnChange(tokenProducer func() (ChangeToken, error), changeAction func()) (cancel func()) {
	ctx, cancelFunc := context.WithCancel(context.Background())

	go func() {
		for {
			token, err := tokenProducer()
			if err != nil {
				return
			}

			done := make(chan struct{})
			var once sync.Once
			unregister := token.RegisterChangeCallback(func() {
				once.Do(func() { close(done) })
			})
			if token.HasChanged() {
				once.Do(func() { close(done) })
			}

			select {
			case <-ctx.Done():
				unregister()
				return
			case <-done:
				unregister()
				changeAction()
			}
		}
	}()

	return cancelFunc
}
