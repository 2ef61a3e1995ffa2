package popup

import "sync"

// Window is a handle to an open wallet window.
type Window interface {
	// PostMessage delivers a JSON text message to the window.
	PostMessage(data string) error
	Close() error
	// Closed reports whether the window has been closed, by us or by the
	// user.
	Closed() bool
}

// Opener opens wallet windows.
type Opener interface {
	Open(url, target, features string) (Window, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(url, target, features string) (Window, error)

// Open calls f.
func (f OpenerFunc) Open(url, target, features string) (Window, error) {
	return f(url, target, features)
}

// Registry owns the single wallet window of a process. Share one Registry
// between every Transport that must not open windows side by side.
type Registry struct {
	mu     sync.Mutex
	win    Window
	revoke func()
}

// DefaultRegistry is the process-wide registry used by transports that are
// not given one.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Current returns the open window, if any.
func (r *Registry) Current() Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.win
}

// Owns reports whether w is the current window.
func (r *Registry) Owns(w Window) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return w != nil && r.win == w
}

// Replace makes w the current window, closing the previous one. revoke is
// called once w is replaced in turn, so its owner can reject whatever was
// waiting on it.
func (r *Registry) Replace(w Window, revoke func()) {
	r.mu.Lock()
	prev, prevRevoke := r.win, r.revoke
	r.win, r.revoke = w, revoke
	r.mu.Unlock()
	if prev == nil || prev == w {
		return
	}
	_ = prev.Close()
	if prevRevoke != nil {
		// The new owner may be holding its own lock while replacing.
		go prevRevoke()
	}
}

// Dispose closes w and forgets it if it is still the current window. It
// reports whether w was current.
func (r *Registry) Dispose(w Window) bool {
	if w == nil {
		return false
	}
	r.mu.Lock()
	current := r.win == w
	if current {
		r.win, r.revoke = nil, nil
	}
	r.mu.Unlock()
	_ = w.Close()
	return current
}

// Release forgets w without closing it. Used once a window was found closed
// by the user.
func (r *Registry) Release(w Window) {
	r.mu.Lock()
	if r.win == w {
		r.win, r.revoke = nil, nil
	}
	r.mu.Unlock()
}
