package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"strings"
	"sync"
)

// Shared object naming convention: tspipe_<role>_<name>.so on the search
// path. The search path defaults to $TSPIPE_PLUGIN_PATH followed by the
// executable's directory.
const (
	soPrefix = "tspipe_"
	soSuffix = ".so"

	// SearchPathEnv names the environment variable listing extra plugin
	// directories, separated by the OS path list separator.
	SearchPathEnv = "TSPIPE_PLUGIN_PATH"
)

// loader opens shared objects at most once each and keeps them loaded for
// the life of the process. It is the only platform-sensitive part of the
// registry; everything else is plain Go.
type loader struct {
	mu         sync.Mutex
	searchPath []string
	results    map[string]error // absolute path -> outcome of the one open attempt
}

func newLoader() *loader {
	return &loader{
		searchPath: defaultSearchPath(),
		results:    make(map[string]error),
	}
}

func defaultSearchPath() []string {
	var dirs []string
	if env := os.Getenv(SearchPathEnv); env != "" {
		dirs = append(dirs, filepath.SplitList(env)...)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}

// loadByName locates and opens the shared object for one plugin. Loading
// runs the object's init functions, which are expected to self-register;
// if the object additionally exports "Register" as func(), it is called,
// covering objects that defer registration.
func (l *loader) loadByName(role Role, name string) error {
	file := soPrefix + role.String() + "_" + name + soSuffix

	l.mu.Lock()
	dirs := append([]string(nil), l.searchPath...)
	l.mu.Unlock()

	for _, dir := range dirs {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return l.open(path)
	}
	return fmt.Errorf("plugin: %s not found on search path", file)
}

// loadAll opens every matching shared object on the search path, each at
// most once, and collects the individual failures.
func (l *loader) loadAll() []error {
	l.mu.Lock()
	dirs := append([]string(nil), l.searchPath...)
	l.mu.Unlock()

	var errs []error
	for _, dir := range dirs {
		names, err := filepath.Glob(filepath.Join(dir, soPrefix+"*"+soSuffix))
		if err != nil {
			continue
		}
		for _, path := range names {
			if !matchesConvention(filepath.Base(path)) {
				continue
			}
			if err := l.open(path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errs
}

func matchesConvention(base string) bool {
	rest, ok := strings.CutPrefix(base, soPrefix)
	if !ok {
		return false
	}
	role, rest, ok := strings.Cut(rest, "_")
	if !ok || !strings.HasSuffix(rest, soSuffix) {
		return false
	}
	switch role {
	case RoleInput.String(), RoleProcessor.String(), RoleOutput.String():
		return len(rest) > len(soSuffix)
	}
	return false
}

// open loads the shared object at path at most once, memoizing the
// outcome: later calls for the same object return the recorded error, so
// a failed open keeps reporting its cause rather than a bare miss.
func (l *loader) open(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if res, attempted := l.results[abs]; attempted {
		return res
	}
	res := openObject(abs)
	l.results[abs] = res
	return res
}

func openObject(abs string) error {
	p, err := goplugin.Open(abs)
	if err != nil {
		return fmt.Errorf("plugin: opening %s: %w", abs, err)
	}
	if sym, err := p.Lookup("Register"); err == nil {
		if reg, ok := sym.(func()); ok {
			reg()
		}
	}
	return nil
}
