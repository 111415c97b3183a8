package types

import (
	"errors"
	"sort"

	"redep/internal/util"
)

// Endpoint is a push destination or pull source. An empty Host is the local
// machine, which is not the same as an SSH connection to localhost.
type Endpoint struct {
	Host string `toml:"host" yaml:"host"`
	Path string `toml:"path" yaml:"path"`
}

func (e Endpoint) IsLocal() bool { return e.Host == "" }

func (e Endpoint) String() string {
	if e.Host == "" {
		return e.Path
	}
	return e.Host + ":" + e.Path
}

var (
	ErrConfiguration       = errors.New("malformed endpoint")
	ErrConnection          = errors.New("connection failed")
	ErrSelectionEmpty      = errors.New("no files or directories selected")
	ErrSelfReference       = errors.New("endpoint resolves to the root directory")
	ErrUnsupportedPlatform = errors.New("remote pattern selection is not implemented for windows hosts")
)

// RemoteOS is the shell family of a remote host.
type RemoteOS int

const (
	OSPosix RemoteOS = iota
	OSWindows
)

func (o RemoteOS) String() string {
	if o == OSWindows {
		return "windows"
	}
	return "posix"
}

// Style returns the path grammar used on hosts of this family.
func (o RemoteOS) Style() util.PathStyle {
	if o == OSWindows {
		return util.Windows
	}
	return util.Posix
}

// Transport runs commands on, and copies files to and from, one remote host.
// Run reports ok=false when the command could not be started or exited non-zero.
type Transport interface {
	Run(cmd string) (stdout string, ok bool)
	Put(localPath, remotePath string) error
	Get(remotePath, localPath string) error
	Close() error
}

// Dialer opens a Transport to host. Errors are connection failures.
type Dialer func(host string) (Transport, error)

// PathSet is an unordered set of paths.
type PathSet map[string]struct{}

func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s PathSet) Add(p string)      { s[p] = struct{}{} }
func (s PathSet) Remove(p string)   { delete(s, p) }
func (s PathSet) Len() int          { return len(s) }
func (s PathSet) Has(p string) bool { _, ok := s[p]; return ok }

// Union adds every element of o to s.
func (s PathSet) Union(o PathSet) {
	for p := range o {
		s[p] = struct{}{}
	}
}

// Minus returns a new set holding the elements of s not in o.
func (s PathSet) Minus(o PathSet) PathSet {
	out := make(PathSet, len(s))
	for p := range s {
		if !o.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Sorted returns the elements in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SelectionResult is the outcome of evaluating match and ignore patterns
// against a root. Files and Dirs are what gets transferred.
type SelectionResult struct {
	Root         string
	Style        util.PathStyle
	Files        PathSet
	Dirs         PathSet
	IgnoredFiles PathSet
	IgnoredDirs  PathSet
}

func NewSelectionResult(root string, style util.PathStyle) SelectionResult {
	return SelectionResult{
		Root:         root,
		Style:        style,
		Files:        PathSet{},
		Dirs:         PathSet{},
		IgnoredFiles: PathSet{},
		IgnoredDirs:  PathSet{},
	}
}

func (r SelectionResult) Empty() bool {
	return r.Files.Len() == 0 && r.Dirs.Len() == 0
}

// State is where a push or pull unit ended.
type State int

const (
	StateDone State = iota
	StateConnectFailed
	StateNoSelection
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateConnectFailed:
		return "connect failed"
	case StateNoSelection:
		return "nothing selected"
	case StateSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Status reports the outcome of one destination (push) or source (pull).
type Status struct {
	Endpoint Endpoint
	State    State
	Err      error
	Dirs     int
	Files    int
}

// OK is false only for outcomes that should fail the command.
func (s Status) OK() bool {
	return s.State != StateConnectFailed && s.State != StateFailed
}
