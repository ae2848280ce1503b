package omni

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/backends"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Configuration keys read from the "logger" section.
const (
	KeyLogger       = "logger"
	KeyIdent        = "ident"
	KeyShowLocation = "show-location"
	KeyBackends     = "backends"
)

// Configure creates, initializes and attaches the back-ends listed under
// logger.backends:
//
//	{"logger": {"ident": "app", "show-location": true,
//	  "backends": [{"name": "async_file", "file": "/tmp/a.log"},
//	               {"name": "console"}]}}
//
// Each entry's "name" is looked up in the logger's registry and the whole
// entry is passed to the back-end's Init. logger.ident and
// logger.show-location, when present, replace the values given to New.
//
// A back-end that fails to initialize is skipped; the others are still
// attached. The returned error combines every failure.
func (l *Logger) Configure(cfg *config.Tree) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case StateShuttingDown, StateClosed:
		return errors.Wrap(types.ErrClosed, "configure")
	}

	section, err := cfg.Sub(KeyLogger)
	if err != nil {
		return err
	}
	ident := section.String(KeyIdent, l.Ident())
	l.ident.Store(&ident)
	l.showLocation.Store(section.Bool(KeyShowLocation, l.ShowLocation()))

	entries, err := section.Children(KeyBackends)
	if err != nil {
		return err
	}

	var result *multierror.Error
	var ready []backends.Backend
	for i, entry := range entries {
		b, err := l.create(entry)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "%s.%s[%d]", KeyLogger, KeyBackends, i))
			continue
		}
		ready = append(ready, b)
	}
	if len(ready) > 0 {
		l.state.Store(int32(StateConfigured))
	}

	for _, b := range ready {
		l.attach(b)
	}
	if len(l.attached) > 0 {
		l.state.Store(int32(StateActive))
	}
	return result.ErrorOrNil()
}

func (l *Logger) create(entry *config.Tree) (backends.Backend, error) {
	name := entry.String("name", "")
	if name == "" {
		return nil, types.NewConfigError("", "name", "missing backend name")
	}
	b, err := l.registry.Create(name)
	if err != nil {
		return nil, err
	}
	if r, ok := b.(backends.ErrorReporter); ok {
		r.SetErrorHandler(*l.errorHandler.Load())
	}
	if err := b.Init(entry); err != nil {
		return nil, err
	}
	return b, nil
}
