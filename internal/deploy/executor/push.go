package executor

import (
	"fmt"

	"redep/internal/deploy/remote"
	"redep/internal/deploy/selector"
	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

// Push selects under root once and sends the selection to every destination
// concurrently. Statuses come back in destination order. The returned error
// is only set when nothing was attempted.
func (e *Executor) Push(root string, matches, ignores []string, dests []types.Endpoint) ([]types.Status, error) {
	root, err := absRoot(root)
	if err != nil {
		return nil, err
	}

	sel, err := selector.Select(root, matches, ignores, selector.LocalEnumerator{})
	if err != nil {
		return nil, fmt.Errorf("failed to select files under %s: %w", root, err)
	}
	e.logSelection(e.Log, sel)
	if sel.Empty() {
		e.Log.Warn("nothing selected, no destination will be touched", map[string]interface{}{"root": root})
		return nil, types.ErrSelectionEmpty
	}

	statuses := util.FanOut(len(dests), e.Concurrency, func(i int) types.Status {
		return e.pushOne(sel, dests[i])
	})
	return statuses, nil
}

func (e *Executor) pushOne(sel types.SelectionResult, dest types.Endpoint) types.Status {
	log := e.Log.WithFields(map[string]interface{}{"destination": dest.String()})
	log.Info("push started", nil)

	var st types.Status
	if dest.IsLocal() {
		st = e.pushLocal(sel, dest)
	} else {
		st = e.pushRemote(log, sel, dest)
	}
	st.Endpoint = dest
	e.logStatus(log, "push", st)
	return st
}

func (e *Executor) pushLocal(sel types.SelectionResult, dest types.Endpoint) types.Status {
	target, err := resolveLocal(sel.Root, dest.Path)
	if err != nil {
		return failed(err)
	}
	if sameDir(sel.Style, sel.Root, target) {
		return selfReference(dest)
	}

	st, err := mirrorLocal(sel, target)
	if err != nil {
		st.State = types.StateFailed
		st.Err = err
	}
	return st
}

func (e *Executor) pushRemote(log *logging.Logger, sel types.SelectionResult, dest types.Endpoint) types.Status {
	t, err := e.Dial(dest.Host)
	if err != nil {
		return connectFailed(dest.Host, err)
	}
	defer t.Close()

	kind := remote.DetectOS(t, log)
	style := kind.Style()
	target, err := remote.ExpandHome(t, dest.Path, kind)
	if err != nil {
		return failed(err)
	}

	st := types.Status{State: types.StateDone, Dirs: sel.Dirs.Len()}
	remotePath := func(p string) (string, error) {
		rel, err := sel.Style.Rel(sel.Root, p)
		if err != nil {
			return "", err
		}
		return style.Join(target, sel.Style.ToSlash(rel)), nil
	}

	for _, dir := range selector.ReduceLeaves(sel.Dirs, sel.Style).Sorted() {
		dst, err := remotePath(dir)
		if err != nil {
			return failed(err)
		}
		if _, ok := t.Run(remote.MkdirCommand(kind, dst)); !ok {
			st.State = types.StateFailed
			st.Err = fmt.Errorf("failed to create remote directory %s", dst)
			return st
		}
	}

	for _, src := range sel.Files.Sorted() {
		dst, err := remotePath(src)
		if err != nil {
			st.State, st.Err = types.StateFailed, err
			return st
		}
		if err := t.Put(src, dst); err != nil {
			st.State = types.StateFailed
			st.Err = fmt.Errorf("failed to upload %s to %s: %v", src, dst, err)
			return st
		}
		log.Debug("uploaded", map[string]interface{}{"src": src, "dst": dst})
		st.Files++
	}
	return st
}
