package executor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"redep/internal/deploy/selector"
	"redep/internal/deploy/types"
)

// mirrorLocal recreates sel under target on the local filesystem: leaf
// directories first, then every selected file. The first error ends the copy.
func mirrorLocal(sel types.SelectionResult, target string) (types.Status, error) {
	st := types.Status{State: types.StateDone, Dirs: sel.Dirs.Len()}

	for _, dir := range selector.ReduceLeaves(sel.Dirs, sel.Style).Sorted() {
		dst, err := localTarget(sel, dir, target)
		if err != nil {
			return st, err
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return st, fmt.Errorf("failed to create directory %s: %v", dst, err)
		}
	}

	for _, src := range sel.Files.Sorted() {
		dst, err := localTarget(sel, src, target)
		if err != nil {
			return st, err
		}
		if err := copyFile(src, dst); err != nil {
			return st, err
		}
		st.Files++
	}
	return st, nil
}

// localTarget maps p, a path of the selection, to its place under target.
func localTarget(sel types.SelectionResult, p, target string) (string, error) {
	rel, err := sel.Style.Rel(sel.Root, p)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, filepath.FromSlash(sel.Style.ToSlash(rel))), nil
}

// copyFile copies source to destination, keeping the permission bits.
func copyFile(source, destination string) error {
	srcFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %v", source, err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %v", source, err)
	}

	destFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %v", destination, err)
	}

	if _, err := io.Copy(destFile, srcFile); err != nil {
		destFile.Close()
		return fmt.Errorf("failed to copy file %s to %s: %v", source, destination, err)
	}
	return destFile.Close()
}
