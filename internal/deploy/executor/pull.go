package executor

import (
	"fmt"
	"os"

	"redep/internal/deploy/remote"
	"redep/internal/deploy/selector"
	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

// Pull selects on the first source and mirrors the selection into root.
// Further sources are ignored with a warning.
func (e *Executor) Pull(root string, matches, ignores []string, sources []types.Endpoint) (types.Status, error) {
	if len(sources) == 0 {
		return types.Status{State: types.StateFailed}, fmt.Errorf("no source to pull from: %w", types.ErrConfiguration)
	}
	root, err := absRoot(root)
	if err != nil {
		return types.Status{State: types.StateFailed}, err
	}
	if len(sources) > 1 {
		e.Log.Warn("more than one source configured, pulling from the first only", map[string]interface{}{
			"source":  sources[0].String(),
			"ignored": len(sources) - 1,
		})
	}

	src := sources[0]
	log := e.Log.WithFields(map[string]interface{}{"source": src.String()})
	log.Info("pull started", map[string]interface{}{"root": root})

	var st types.Status
	if src.IsLocal() {
		st = e.pullLocal(log, root, matches, ignores, src)
	} else {
		st = e.pullRemote(log, root, matches, ignores, src)
	}
	st.Endpoint = src
	e.logStatus(log, "pull", st)
	return st, nil
}

func (e *Executor) pullLocal(log *logging.Logger, root string, matches, ignores []string, src types.Endpoint) types.Status {
	source, err := resolveLocal(root, src.Path)
	if err != nil {
		return failed(err)
	}
	if sameDir(util.LocalStyle(), root, source) {
		return selfReference(src)
	}

	sel, err := selector.Select(source, matches, ignores, selector.LocalEnumerator{})
	if err != nil {
		return failed(fmt.Errorf("failed to select files under %s: %w", source, err))
	}
	e.logSelection(log, sel)
	if sel.Empty() {
		return types.Status{State: types.StateNoSelection, Err: types.ErrSelectionEmpty}
	}

	st, err := mirrorLocal(sel, root)
	if err != nil {
		st.State = types.StateFailed
		st.Err = err
	}
	return st
}

func (e *Executor) pullRemote(log *logging.Logger, root string, matches, ignores []string, src types.Endpoint) types.Status {
	t, err := e.Dial(src.Host)
	if err != nil {
		return connectFailed(src.Host, err)
	}
	defer t.Close()

	kind := remote.DetectOS(t, log)
	source, err := remote.ExpandHome(t, src.Path, kind)
	if err != nil {
		return failed(err)
	}

	sel, err := selector.Select(source, matches, ignores, selector.RemoteEnumerator{T: t, OS: kind})
	if err != nil {
		return failed(fmt.Errorf("failed to select files under %s: %w", source, err))
	}
	e.logSelection(log, sel)
	if sel.Empty() {
		return types.Status{State: types.StateNoSelection, Err: types.ErrSelectionEmpty}
	}

	st := types.Status{State: types.StateDone, Dirs: sel.Dirs.Len()}
	for _, dir := range selector.ReduceLeaves(sel.Dirs, sel.Style).Sorted() {
		dst, err := localTarget(sel, dir, root)
		if err != nil {
			return failed(err)
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			st.State = types.StateFailed
			st.Err = fmt.Errorf("failed to create directory %s: %v", dst, err)
			return st
		}
	}

	for _, file := range sel.Files.Sorted() {
		dst, err := localTarget(sel, file, root)
		if err != nil {
			st.State, st.Err = types.StateFailed, err
			return st
		}
		if err := t.Get(file, dst); err != nil {
			st.State = types.StateFailed
			st.Err = fmt.Errorf("failed to download %s to %s: %v", file, dst, err)
			return st
		}
		log.Debug("downloaded", map[string]interface{}{"src": file, "dst": dst})
		st.Files++
	}
	return st
}
