package backends

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Registry maps back-end names to factories. A registry is created by the
// code that composes the logging subsystem and handed to the front-end;
// there is no hidden process-wide instance. Registration is a cold path
// guarded by a single mutex.
type Registry struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	errorHandler types.ErrorHandler
}

type entry struct {
	name    string
	factory Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:      make(map[string]*entry),
		errorHandler: types.StderrErrorHandler,
	}
}

// NewDefaultRegistry returns a registry holding every built-in back-end.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, f := range map[string]Factory{
		ConsoleName:   func() Backend { return NewConsole() },
		AsyncFileName: func() Backend { return NewAsyncFile() },
		ZapName:       func() Backend { return NewZap() },
		ZerologName:   func() Backend { return NewZerolog() },
		LogrusName:    func() Backend { return NewLogrus() },
	} {
		_ = r.Register(name, f)
	}
	return r
}

// SetErrorHandler sets the handler told about rejected registrations.
func (r *Registry) SetErrorHandler(handler types.ErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorHandler = handler
}

// Register adds factory under name. A name that is already registered is
// rejected with types.ErrDuplicateBackend and the existing factory stays
// in place; the rejection is also reported to the error handler.
func (r *Registry) Register(name string, factory Factory) error {
	_, err := r.register(name, factory)
	return err
}

func (r *Registry) register(name string, factory Factory) (*entry, error) {
	if name == "" || factory == nil {
		return nil, errors.New("register backend: empty name or nil factory")
	}

	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		handler := r.errorHandler
		r.mu.Unlock()

		err := errors.Wrapf(types.ErrDuplicateBackend, "register %q", name)
		if handler != nil {
			handler(types.LogError{
				Operation:   "register",
				Destination: name,
				Message:     "duplicate registration rejected",
				Err:         err,
				Level:       types.ErrorLevelLow,
				Timestamp:   time.Now(),
			})
		}
		return nil, err
	}
	e := &entry{name: name, factory: factory}
	r.entries[name] = e
	r.mu.Unlock()
	return e, nil
}

// Unregister removes name. It reports whether an entry was removed;
// removing an absent name is a no-op.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

func (r *Registry) unregisterEntry(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[e.name]; ok && cur == e {
		delete(r.entries, e.name)
	}
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.factory, true
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the back-end registered under name. An unknown name
// fails with an error wrapping types.ErrUnknownBackend.
func (r *Registry) Create(name string) (Backend, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(types.ErrUnknownBackend, "backend %q (registered: %v)", name, r.Names())
	}
	b := factory()
	if b == nil {
		return nil, errors.Errorf("backend %q: factory returned nil", name)
	}
	return b, nil
}

// Registrar owns one registry entry. It registers on construction and
// Close removes the entry only if it is still the one it registered, so
// registrars can be torn down in any order.
type Registrar struct {
	registry *Registry
	entry    *entry
	err      error
	once     sync.Once
}

// NewRegistrar registers factory under name in r. Check Err to learn
// whether the registration was accepted.
func NewRegistrar(r *Registry, name string, factory Factory) *Registrar {
	e, err := r.register(name, factory)
	return &Registrar{registry: r, entry: e, err: err}
}

// Err returns the registration error, if any.
func (g *Registrar) Err() error { return g.err }

// Close removes the registrar's own entry. It is idempotent.
func (g *Registrar) Close() error {
	g.once.Do(func() {
		if g.entry != nil {
			g.registry.unregisterEntry(g.entry)
		}
	})
	return nil
}
