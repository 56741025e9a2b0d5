package observer_test

import (
	"testing"

	"github.com/delaneyj/observa/observer"
)

type harness struct {
	sys      *observer.System
	warnings []observer.Diagnostic
	errs     []error
	infos    []string
}

func newHarness(t *testing.T, mods ...func(cfg *observer.Config)) *harness {
	t.Helper()
	h := &harness{}
	cfg := observer.DefaultConfig()
	for _, mod := range mods {
		mod(&cfg)
	}
	h.sys = observer.NewSystem(
		observer.WithConfig(cfg),
		observer.WithWarnHandler(func(d observer.Diagnostic) {
			h.warnings = append(h.warnings, d)
		}),
		observer.WithErrorHandler(func(err error, ctx any, info string) {
			h.errs = append(h.errs, err)
			h.infos = append(h.infos, info)
		}),
	)
	return h
}

func syncMode(cfg *observer.Config) {
	cfg.Async = false
}

func devMode(cfg *observer.Config) {
	cfg.Dev = true
}

// watchKey creates a watcher reading key on obj and counting callbacks.
func (h *harness) watchKey(t *testing.T, obj *observer.Object, key string, opts *observer.WatcherOptions) (*observer.Watcher, *int) {
	t.Helper()
	calls := 0
	w, err := observer.NewWatcher(h.sys, func() (any, error) {
		return obj.Get(key), nil
	}, func(newValue, oldValue any) error {
		calls++
		return nil
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return w, &calls
}
