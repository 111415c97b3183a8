// Package selector turns match and ignore patterns into the set of files and
// directories a push or pull transfers.
//
// Patterns are expanded independently, unioned per flavor, and the ignored
// union is subtracted from the matched union for files and directories
// separately. The root directory is then always added back to the selected
// directories.
package selector

import (
	"fmt"

	"redep/internal/deploy/types"
	"redep/internal/util"
)

// Enumerator expands one pattern rooted at a directory, on the local machine
// or on a remote host.
type Enumerator interface {
	// Style is the path grammar of the paths the enumerator returns.
	Style() util.PathStyle
	// Exists reports whether root is an existing directory.
	Exists(root string) (bool, error)
	// Expand returns the files and directories matching pattern under root,
	// as paths joined onto root.
	Expand(root, pattern string) (files, dirs []string, err error)
}

// Select evaluates matches and ignores against root. A missing root yields an
// empty result and no error; callers treat that as nothing to transfer.
func Select(root string, matches, ignores []string, enum Enumerator) (types.SelectionResult, error) {
	style := enum.Style()
	root = style.Normalize(root)
	res := types.NewSelectionResult(root, style)

	ok, err := enum.Exists(root)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, nil
	}

	matchedFiles, matchedDirs, err := expandAll(root, matches, enum)
	if err != nil {
		return res, err
	}
	ignoredFiles, ignoredDirs, err := expandAll(root, ignores, enum)
	if err != nil {
		return res, err
	}

	res.Files = matchedFiles.Minus(ignoredFiles)
	res.Dirs = matchedDirs.Minus(ignoredDirs)
	res.IgnoredFiles = ignoredFiles
	res.IgnoredDirs = ignoredDirs

	// The root is transferred even when an ignore pattern names it.
	res.Dirs.Add(root)
	res.IgnoredDirs.Remove(root)
	return res, nil
}

func expandAll(root string, patterns []string, enum Enumerator) (types.PathSet, types.PathSet, error) {
	files := types.PathSet{}
	dirs := types.PathSet{}
	for _, pattern := range patterns {
		f, d, err := enum.Expand(root, pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
		}
		for _, p := range f {
			files.Add(p)
		}
		for _, p := range d {
			dirs.Add(p)
		}
	}
	return files, dirs, nil
}
