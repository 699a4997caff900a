package tracker

import (
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/multierr"

	"github.com/guileen/dbtrack/logger"
)

// RootNode is a driver root as seen by the Registrar. Roots satisfy it by
// embedding *Root[H, T].
type RootNode interface {
	Name() string
	Children() []Child
	deregister() error
}

// Root is the top-level entry point of one wrapped client library: it tracks
// every connection opened through it that has not closed yet.
type Root[H any, T Trackable[H]] struct {
	name  string
	opts  *Options
	conns *Registry[H, T]

	mu      sync.Mutex
	onClose []func() error
}

// NewRoot creates a root whose connections are of the given kind.
func NewRoot[H any, T Trackable[H]](opts *Options, name string, kind Kind) *Root[H, T] {
	return &Root[H, T]{
		name:  name,
		opts:  opts,
		conns: NewRegistry[H, T](opts, kind),
	}
}

func (r *Root[H, T]) Name() string {
	return r.name
}

// Options returns the options shared by every tracker under this root.
func (r *Root[H, T]) Options() *Options {
	return r.opts
}

// TrackedConnections returns the live view of open connections.
func (r *Root[H, T]) TrackedConnections() View[H, T] {
	return r.conns
}

// TrackConnection registers h, creating its tracker with newTracker if it is
// not tracked yet.
func (r *Root[H, T]) TrackConnection(h H, newTracker func(H) T) T {
	return r.conns.CreateIfAbsent(h, newTracker)
}

func (r *Root[H, T]) Children() []Child {
	return []Child{r.conns}
}

// AddOnClose registers fn to run when the root is deregistered.
func (r *Root[H, T]) AddOnClose(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = append(r.onClose, fn)
}

// deregister runs the root's callbacks and closes every open connection.
func (r *Root[H, T]) deregister() error {
	r.mu.Lock()
	callbacks := r.onClose
	r.onClose = nil
	r.mu.Unlock()

	errs := runCallbacks(callbacks)
	errs = multierr.Append(errs, closeAll(r.opts, "deregister", r.conns.Kind(), r.conns.take()))
	return aggregate("deregister", r.conns.Kind(), errs)
}

// Registrar is the process-wide directory of live driver roots. Construct one
// at startup and pass it to whatever opens roots; Close tears everything down.
type Registrar struct {
	opts *Options

	mu    sync.Mutex
	roots map[string]RootNode
}

// NewRegistrar creates an empty registrar. Deregistration failures are logged
// through opts' logger.
func NewRegistrar(opts *Options) *Registrar {
	return &Registrar{
		opts:  opts,
		roots: make(map[string]RootNode),
	}
}

// Register adds root under its name.
func (r *Registrar) Register(root RootNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roots[root.Name()]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "root %q", root.Name())
	}
	r.roots[root.Name()] = root
	r.opts.logger().Debug("root registered", logger.String("root", root.Name()))
	return nil
}

// Deregister removes the named root and closes every connection it still
// tracks. Close failures are logged, never returned: nothing upstream of a
// shutdown can act on them. It reports whether the root was registered.
func (r *Registrar) Deregister(name string) bool {
	r.mu.Lock()
	root, ok := r.roots[name]
	delete(r.roots, name)
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.deregister(root)
	return true
}

func (r *Registrar) deregister(root RootNode) {
	if err := root.deregister(); err != nil {
		r.opts.logger().Warn("errors during deregister closing connections",
			logger.String("root", root.Name()), logger.Int("failures", len(Causes(err))), logger.ErrorField(err))
		return
	}
	r.opts.logger().Debug("root deregistered", logger.String("root", root.Name()))
}

// Lookup returns the named root.
func (r *Registrar) Lookup(name string) (RootNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, ok := r.roots[name]
	return root, ok
}

// Roots returns the registered roots sorted by name.
func (r *Registrar) Roots() []RootNode {
	r.mu.Lock()
	roots := make([]RootNode, 0, len(r.roots))
	for _, root := range r.roots {
		roots = append(roots, root)
	}
	r.mu.Unlock()
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name() < roots[j].Name() })
	return roots
}

// Close deregisters every root.
func (r *Registrar) Close() {
	r.mu.Lock()
	roots := slices.Collect(maps.Values(r.roots))
	r.roots = make(map[string]RootNode)
	r.mu.Unlock()
	for _, root := range roots {
		r.deregister(root)
	}
}
