package executor

import (
	"fmt"
	"path/filepath"

	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

// Executor runs push and pull units. Each unit owns its transport; the
// selection it works from is shared read-only.
type Executor struct {
	Log  *logging.Logger
	Dial types.Dialer
	// Concurrency caps how many push destinations run at once; 0 means
	// one goroutine per destination.
	Concurrency int
}

// NewExecutor creates a new executor
func NewExecutor(log *logging.Logger, dial types.Dialer) *Executor {
	if log == nil {
		log = logging.Default()
	}
	return &Executor{Log: log, Dial: dial}
}

// resolveLocal turns a local endpoint path into an absolute, cleaned path.
// Empty means ".", and relative paths are taken from root rather than from the
// working directory.
func resolveLocal(root, p string) (string, error) {
	if p == "" {
		p = "."
	}
	p, err := util.ExpandHomeLocal(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p), nil
}

// sameDir reports whether a and b name the same directory in style. Windows
// paths compare case insensitively.
func sameDir(style util.PathStyle, a, b string) bool {
	rel, err := style.Rel(a, b)
	return err == nil && rel == "."
}

func absRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root directory %s: %v", root, err)
	}
	return abs, nil
}

func (e *Executor) logSelection(log *logging.Logger, sel types.SelectionResult) {
	log.Info("selection evaluated", map[string]interface{}{
		"root":          sel.Root,
		"files":         sel.Files.Len(),
		"dirs":          sel.Dirs.Len(),
		"ignored_files": sel.IgnoredFiles.Len(),
		"ignored_dirs":  sel.IgnoredDirs.Len(),
	})
	if log.Enabled(logging.LevelDebug) {
		log.Debug("selected", map[string]interface{}{
			"files": sel.Files.Sorted(),
			"dirs":  sel.Dirs.Sorted(),
		})
		log.Debug("ignored", map[string]interface{}{
			"files": sel.IgnoredFiles.Sorted(),
			"dirs":  sel.IgnoredDirs.Sorted(),
		})
	}
}

func (e *Executor) logStatus(log *logging.Logger, op string, st types.Status) {
	fields := map[string]interface{}{
		"state": st.State.String(),
		"dirs":  st.Dirs,
		"files": st.Files,
	}
	if st.Err != nil {
		fields["error"] = st.Err.Error()
	}
	switch st.State {
	case types.StateDone:
		log.Info(op+" finished", fields)
	case types.StateSkipped, types.StateNoSelection:
		log.Warn(op+" skipped", fields)
	default:
		log.Error(op+" failed", fields)
	}
}

func failed(err error) types.Status {
	return types.Status{State: types.StateFailed, Err: err}
}

func connectFailed(host string, err error) types.Status {
	return types.Status{
		State: types.StateConnectFailed,
		Err:   fmt.Errorf("%s: %w: %v", host, types.ErrConnection, err),
	}
}

func selfReference(ep types.Endpoint) types.Status {
	return types.Status{
		State: types.StateSkipped,
		Err:   fmt.Errorf("%s: %w", ep, types.ErrSelfReference),
	}
}
