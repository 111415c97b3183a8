package selector

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"redep/internal/util"
)

// LocalEnumerator expands patterns on the local filesystem. Hidden entries
// are included, "**" crosses directory boundaries and "dir/**" also matches
// dir itself.
type LocalEnumerator struct{}

func (LocalEnumerator) Style() util.PathStyle { return util.LocalStyle() }

func (LocalEnumerator) Exists(root string) (bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (LocalEnumerator) Expand(root, pattern string) ([]string, []string, error) {
	matches, err := globLocal(root, pattern)
	if err != nil {
		return nil, nil, err
	}

	var files, dirs []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			// dangling symlink or entry removed since the glob
			continue
		}
		switch {
		case info.IsDir():
			dirs = append(dirs, m)
		case info.Mode().IsRegular():
			files = append(files, m)
		}
	}
	return files, dirs, nil
}

// globLocal returns absolute matches of pattern relative to root. Patterns
// that stay inside root are matched against an fs.FS rooted there, so glob
// metacharacters in root itself are never interpreted.
func globLocal(root, pattern string) ([]string, error) {
	p := path.Clean(filepath.ToSlash(pattern))
	if filepath.IsAbs(pattern) || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, pattern)
		}
		return doublestar.FilepathGlob(full)
	}
	if p == "." {
		return []string{root}, nil
	}

	rels, err := doublestar.Glob(os.DirFS(root), p)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rels))
	for _, rel := range rels {
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	return out, nil
}
