package selector

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"redep/internal/deploy/types"
	"redep/internal/util"
)

// RemoteEnumerator expands patterns on a remote host with find(1). Unlike
// the local glob, find's "*" also matches "/". Windows hosts are not
// supported and fail with types.ErrUnsupportedPlatform.
type RemoteEnumerator struct {
	T  types.Transport
	OS types.RemoteOS
}

func (e RemoteEnumerator) Style() util.PathStyle { return e.OS.Style() }

func (e RemoteEnumerator) Exists(root string) (bool, error) {
	if e.OS == types.OSWindows {
		return false, types.ErrUnsupportedPlatform
	}
	out, ok := e.T.Run(fmt.Sprintf("test -d %s && echo dir || echo missing", util.ShellQuote(root)))
	switch strings.TrimSpace(out) {
	case "dir":
		return true, nil
	case "missing":
		return false, nil
	}
	return false, fmt.Errorf("failed to check remote directory %s (ok=%v, output %q)", root, ok, strings.TrimSpace(out))
}

func (e RemoteEnumerator) Expand(root, pattern string) ([]string, []string, error) {
	if e.OS == types.OSWindows {
		return nil, nil, types.ErrUnsupportedPlatform
	}
	expr := wholenameExpr(root, pattern)
	files := e.find(root, "f", expr)
	dirs := e.find(root, "d", expr)
	return files, dirs, nil
}

// find keeps whatever was printed even when find exits non-zero, which it
// does for a single unreadable subdirectory.
func (e RemoteEnumerator) find(root, kind, expr string) []string {
	out, _ := e.T.Run(fmt.Sprintf("find %s -type %s %s", util.ShellQuote(root), kind, expr))
	var paths []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		paths = append(paths, path.Clean(line))
	}
	return paths
}

// wholenameExpr builds the -wholename test for pattern under root. A leading
// "**/" may also match no directory at all and a trailing "/**" also matches
// the stem directory, as the local glob does.
func wholenameExpr(root, pattern string) string {
	rel := path.Clean(filepath.ToSlash(pattern))
	alts := []string{under(root, rel)}
	if rest, ok := strings.CutPrefix(rel, "**/"); ok {
		alts = append(alts, under(root, rest))
	}
	for _, a := range alts {
		if stem, ok := strings.CutSuffix(a, "/**"); ok && stem != "" {
			alts = append(alts, stem)
		}
	}

	var tests []string
	seen := map[string]bool{}
	for _, a := range alts {
		if seen[a] {
			continue
		}
		seen[a] = true
		tests = append(tests, "-wholename "+util.ShellQuote(a))
	}
	if len(tests) == 1 {
		return tests[0]
	}
	return "\\( " + strings.Join(tests, " -o ") + " \\)"
}

// under places rel below root the way find prints entries, so a "." root
// keeps its "./" prefix.
func under(root, rel string) string {
	switch {
	case path.IsAbs(rel):
		return rel
	case rel == ".":
		return root
	case strings.HasSuffix(root, "/"):
		return root + rel
	}
	return root + "/" + rel
}
