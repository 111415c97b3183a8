package util

import (
	"fmt"
	"path"
	"runtime"
	"strings"
)

// PathStyle selects the path grammar of one side of a transfer. Local paths
// use the style of the running OS; remote paths use the style detected on the
// remote host.
type PathStyle int

const (
	Posix PathStyle = iota
	Windows
)

// LocalStyle returns the style of the machine redep runs on.
func LocalStyle() PathStyle {
	if runtime.GOOS == "windows" {
		return Windows
	}
	return Posix
}

func (s PathStyle) String() string {
	if s == Windows {
		return "windows"
	}
	return "posix"
}

// Sep returns the separator used when rendering paths in this style.
func (s PathStyle) Sep() string {
	if s == Windows {
		return "\\"
	}
	return "/"
}

// toSlash converts to the internal forward-slash form. Backslash is a legal
// file name character on POSIX, so it is only treated as a separator for Windows.
func (s PathStyle) toSlash(p string) string {
	if s == Windows {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

func (s PathStyle) fromSlash(p string) string {
	if s == Windows {
		return strings.ReplaceAll(p, "/", "\\")
	}
	return p
}

// clean returns the cleaned forward-slash form of p.
func (s PathStyle) clean(p string) string {
	if p == "" {
		return ""
	}
	q := s.toSlash(p)
	if s != Windows {
		return path.Clean(q)
	}
	unc := strings.HasPrefix(q, "//")
	c := path.Clean(q)
	if unc && !strings.HasPrefix(c, "//") {
		c = "/" + c
	}
	// path.Clean turns "C:/" into "C:", which Windows reads as drive-relative.
	if isDrive(c) && len(q) > 2 && q[2] == '/' {
		c += "/"
	}
	return c
}

func isDrive(p string) bool {
	if len(p) != 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Normalize cleans p and renders it with this style's separator.
func (s PathStyle) Normalize(p string) string {
	return s.fromSlash(s.clean(p))
}

// Join joins the non-empty elements with this style's separator and normalizes
// the result. Elements may use either separator when the style is Windows.
func (s PathStyle) Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e != "" {
			parts = append(parts, s.toSlash(e))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return s.Normalize(strings.Join(parts, "/"))
}

// IsAbs reports whether p is absolute in this style.
func (s PathStyle) IsAbs(p string) bool {
	q := s.toSlash(p)
	if s != Windows {
		return strings.HasPrefix(q, "/")
	}
	if strings.HasPrefix(q, "/") {
		return true
	}
	return len(q) >= 3 && isDrive(q[:2]) && q[2] == '/'
}

func (s PathStyle) equal(a, b string) bool {
	if s == Windows {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Rel returns target relative to base. It fails when target is not base itself
// or located under it; comparison is segment aware and, for Windows, case insensitive.
func (s PathStyle) Rel(base, target string) (string, error) {
	b := s.clean(base)
	t := s.clean(target)
	if s.equal(b, t) {
		return ".", nil
	}
	prefix := b
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if b == "." {
		if s.IsAbs(t) || t == ".." || strings.HasPrefix(t, "../") {
			return "", fmt.Errorf("path %s is not under %s", target, base)
		}
		return s.fromSlash(t), nil
	}
	if len(t) <= len(prefix) || !s.equal(t[:len(prefix)], prefix) {
		return "", fmt.Errorf("path %s is not under %s", target, base)
	}
	return s.fromSlash(t[len(prefix):]), nil
}

// Contains reports whether p is a strict descendant of ancestor.
func (s PathStyle) Contains(ancestor, p string) bool {
	rel, err := s.Rel(ancestor, p)
	return err == nil && rel != "."
}

// ToSlash renders p with forward slashes, the separator-neutral form used for
// hashing and for handing relative paths across a host boundary.
func (s PathStyle) ToSlash(p string) string {
	return s.toSlash(p)
}
