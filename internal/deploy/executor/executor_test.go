package executor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

var (
	basicMatch  = []string{"**/*"}
	basicIgnore = []string{"./redep.toml", "./to_ignore.txt", "./to_ignore/**"}
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("content of "+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func basicTree(t *testing.T, root string) {
	writeTree(t, root,
		"to_push.txt",
		"to_push/to_push.txt",
		"to_ignore.txt",
		"to_ignore/to_ignore.txt",
		"redep.toml",
	)
}

func assertExists(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func assertMissing(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected %s to be absent, stat err = %v", p, err)
		}
	}
}

// fakeTransport answers like a shell of the given family and records what
// it was asked to do.
type fakeTransport struct {
	kind    types.RemoteOS
	home    string
	replies map[string]string
	failOn  string
	remote  map[string]string

	mu   sync.Mutex
	ran  []string
	puts map[string]string
}

func (f *fakeTransport) Run(cmd string) (string, bool) {
	f.mu.Lock()
	f.ran = append(f.ran, cmd)
	f.mu.Unlock()

	if f.failOn != "" && strings.Contains(cmd, f.failOn) {
		return "", false
	}
	switch {
	case cmd == "uname -s":
		return "Linux\n", f.kind == types.OSPosix
	case cmd == "ver":
		return "Microsoft Windows [Version 10.0.20348]\r\n", f.kind == types.OSWindows
	case cmd == "echo $HOME" || cmd == "echo %USERPROFILE%":
		return f.home + "\n", true
	case strings.HasPrefix(cmd, "mkdir -p ") || strings.HasPrefix(cmd, "powershell "):
		return "", true
	}
	out, ok := f.replies[cmd]
	if !ok && strings.HasPrefix(cmd, "test -d ") {
		return "missing\n", true
	}
	return out, ok
}

func (f *fakeTransport) Put(local, remote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[remote] = local
	return nil
}

func (f *fakeTransport) Get(remote, local string) error {
	content, ok := f.remote[remote]
	if !ok {
		return fmt.Errorf("no such remote file %s", remote)
	}
	return os.WriteFile(local, []byte(content), 0o644)
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func dialer(hosts map[string]*fakeTransport) types.Dialer {
	return func(host string) (types.Transport, error) {
		if tr, ok := hosts[host]; ok {
			return tr, nil
		}
		return nil, fmt.Errorf("dial tcp %s:22: connect: connection refused", host)
	}
}

func TestPushLocalBasicScenario(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)
	dest := filepath.Join(t.TempDir(), "out")

	e := NewExecutor(logging.Nop(), dialer(nil))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{{Path: dest}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != types.StateDone {
		t.Fatalf("statuses = %+v", statuses)
	}
	if statuses[0].Files != 2 {
		t.Errorf("files copied = %d, want 2", statuses[0].Files)
	}

	assertExists(t,
		filepath.Join(dest, "to_push.txt"),
		filepath.Join(dest, "to_push", "to_push.txt"),
	)
	assertMissing(t,
		filepath.Join(dest, "to_ignore.txt"),
		filepath.Join(dest, "to_ignore"),
		filepath.Join(dest, "redep.toml"),
	)

	got, err := os.ReadFile(filepath.Join(dest, "to_push", "to_push.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content of to_push/to_push.txt" {
		t.Errorf("copied content = %q", got)
	}
}

func TestPushRelativeDestinationIsAnchoredAtRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "src")
	basicTree(t, root)

	e := NewExecutor(logging.Nop(), dialer(nil))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{{Path: "../mirror"}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !statuses[0].OK() {
		t.Fatalf("status = %+v", statuses[0])
	}
	assertExists(t, filepath.Join(base, "mirror", "to_push", "to_push.txt"))
}

func TestPushSelfReference(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)

	var buf bytes.Buffer
	log := logging.New(logging.Options{Writer: &buf, Level: logging.LevelDebug})
	e := NewExecutor(log, dialer(nil))

	dests := []types.Endpoint{{Path: ""}, {Path: "."}, {Path: root}}
	statuses, err := e.Push(root, basicMatch, basicIgnore, dests)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	for i, st := range statuses {
		if st.State != types.StateSkipped || !errors.Is(st.Err, types.ErrSelfReference) {
			t.Errorf("dest %d: status = %+v", i, st)
		}
		if !st.OK() {
			t.Errorf("dest %d: self reference should not fail the command", i)
		}
	}
	if !strings.Contains(buf.String(), `"lvl":"warn"`) {
		t.Errorf("expected a warning in the log, got %s", buf.String())
	}
}

func TestPushEmptySelectionTouchesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	dialed := false
	e := NewExecutor(logging.Nop(), func(string) (types.Transport, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	})

	statuses, err := e.Push(root, basicMatch, nil, []types.Endpoint{{Host: "web", Path: "/srv"}})
	if !errors.Is(err, types.ErrSelectionEmpty) {
		t.Fatalf("err = %v, want ErrSelectionEmpty", err)
	}
	if statuses != nil || dialed {
		t.Errorf("no destination should run, statuses=%v dialed=%v", statuses, dialed)
	}
}

func TestPushTwoDestinationsOneUnreachable(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)
	dest := t.TempDir()

	e := NewExecutor(logging.Nop(), dialer(nil))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{
		{Host: "down.example.com", Path: "/srv/app"},
		{Path: dest},
	})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses", len(statuses))
	}

	if statuses[0].State != types.StateConnectFailed || !errors.Is(statuses[0].Err, types.ErrConnection) {
		t.Errorf("unreachable destination: %+v", statuses[0])
	}
	if statuses[0].OK() {
		t.Error("connect failure should fail the command")
	}
	if statuses[1].State != types.StateDone {
		t.Errorf("local destination: %+v", statuses[1])
	}
	assertExists(t, filepath.Join(dest, "to_push", "to_push.txt"))
}

func TestPushRemotePosix(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)
	tr := &fakeTransport{kind: types.OSPosix, home: "/home/deploy"}

	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"deploy@web": tr}))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{{Host: "deploy@web", Path: "~/site/"}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if statuses[0].State != types.StateDone {
		t.Fatalf("status = %+v", statuses[0])
	}

	var mkdirs []string
	for _, c := range tr.commands() {
		if strings.HasPrefix(c, "mkdir") {
			mkdirs = append(mkdirs, c)
		}
	}
	if len(mkdirs) != 1 || mkdirs[0] != "mkdir -p '/home/deploy/site/to_push'" {
		t.Errorf("mkdir commands = %v", mkdirs)
	}

	want := map[string]string{
		"/home/deploy/site/to_push.txt":         filepath.Join(root, "to_push.txt"),
		"/home/deploy/site/to_push/to_push.txt": filepath.Join(root, "to_push", "to_push.txt"),
	}
	if len(tr.puts) != len(want) {
		t.Fatalf("puts = %v", tr.puts)
	}
	for remote, local := range want {
		if tr.puts[remote] != local {
			t.Errorf("put %s <- %q, want %q", remote, tr.puts[remote], local)
		}
	}
}

func TestPushRemoteWindows(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)
	tr := &fakeTransport{kind: types.OSWindows, home: `C:\Users\deploy`}

	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"win": tr}))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{{Host: "win", Path: "~/site"}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if statuses[0].State != types.StateDone {
		t.Fatalf("status = %+v", statuses[0])
	}

	wantMkdir := `powershell -NoProfile -Command "New-Item -ItemType Directory -Force -Path 'C:\Users\deploy\site\to_push' | Out-Null"`
	found := false
	for _, c := range tr.commands() {
		if c == wantMkdir {
			found = true
		}
	}
	if !found {
		t.Errorf("missing %s in %v", wantMkdir, tr.commands())
	}
	if _, ok := tr.puts[`C:\Users\deploy\site\to_push\to_push.txt`]; !ok {
		t.Errorf("puts = %v", tr.puts)
	}
}

func TestPushRemoteMkdirFailureStopsUnit(t *testing.T) {
	root := t.TempDir()
	basicTree(t, root)
	tr := &fakeTransport{kind: types.OSPosix, home: "/home/deploy", failOn: "mkdir"}

	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"web": tr}))
	statuses, err := e.Push(root, basicMatch, basicIgnore, []types.Endpoint{{Host: "web", Path: "/srv/app"}})
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if statuses[0].State != types.StateFailed {
		t.Errorf("status = %+v", statuses[0])
	}
	if len(tr.puts) != 0 {
		t.Errorf("no file should be uploaded after a failed mkdir, got %v", tr.puts)
	}
}

func TestPullLocalScenario(t *testing.T) {
	src := t.TempDir()
	basicTree(t, src)
	root := filepath.Join(t.TempDir(), "work")

	e := NewExecutor(logging.Nop(), dialer(nil))
	st, err := e.Pull(root, basicMatch, basicIgnore, []types.Endpoint{{Path: src}})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if st.State != types.StateDone || st.Files != 2 {
		t.Fatalf("status = %+v", st)
	}
	assertExists(t,
		filepath.Join(root, "to_push.txt"),
		filepath.Join(root, "to_push", "to_push.txt"),
	)
	assertMissing(t, filepath.Join(root, "to_ignore"), filepath.Join(root, "redep.toml"))
}

func TestPullWarnsAndUsesFirstSource(t *testing.T) {
	first := t.TempDir()
	writeTree(t, first, "a.txt")
	second := t.TempDir()
	writeTree(t, second, "b.txt")
	root := t.TempDir()

	var buf bytes.Buffer
	e := NewExecutor(logging.New(logging.Options{Writer: &buf, Level: logging.LevelInfo}), dialer(nil))
	st, err := e.Pull(root, basicMatch, nil, []types.Endpoint{{Path: first}, {Path: second}})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if st.Endpoint.Path != first {
		t.Errorf("pulled from %s", st.Endpoint)
	}
	assertExists(t, filepath.Join(root, "a.txt"))
	assertMissing(t, filepath.Join(root, "b.txt"))
	if !strings.Contains(buf.String(), "more than one source") {
		t.Errorf("expected warning, got %s", buf.String())
	}
}

func TestPullNoSources(t *testing.T) {
	e := NewExecutor(logging.Nop(), dialer(nil))
	if _, err := e.Pull(t.TempDir(), basicMatch, nil, nil); !errors.Is(err, types.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestPullSelfReference(t *testing.T) {
	root := t.TempDir()
	e := NewExecutor(logging.Nop(), dialer(nil))
	st, err := e.Pull(root, basicMatch, nil, []types.Endpoint{{Path: "./"}})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateSkipped || !errors.Is(st.Err, types.ErrSelfReference) {
		t.Errorf("status = %+v", st)
	}
}

func TestPullRemotePosix(t *testing.T) {
	tr := &fakeTransport{
		kind: types.OSPosix,
		replies: map[string]string{
			"test -d '/srv/app' && echo dir || echo missing":                                               "dir\n",
			"find '/srv/app' -type f \\( -wholename '/srv/app/**/*' -o -wholename '/srv/app/*' \\)":      "/srv/app/index.php\n/srv/app/lib/a.php\n/srv/app/cache/x\n",
			"find '/srv/app' -type d \\( -wholename '/srv/app/**/*' -o -wholename '/srv/app/*' \\)":      "/srv/app/lib\n/srv/app/cache\n",
			"find '/srv/app' -type f \\( -wholename '/srv/app/cache/**' -o -wholename '/srv/app/cache' \\)": "/srv/app/cache/x\n",
			"find '/srv/app' -type d \\( -wholename '/srv/app/cache/**' -o -wholename '/srv/app/cache' \\)": "/srv/app/cache\n",
		},
		remote: map[string]string{
			"/srv/app/index.php": "<?php echo 1;",
			"/srv/app/lib/a.php": "<?php",
		},
	}
	root := t.TempDir()

	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"web": tr}))
	st, err := e.Pull(root, basicMatch, []string{"cache/**"}, []types.Endpoint{{Host: "web", Path: "/srv/app"}})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if st.State != types.StateDone || st.Files != 2 {
		t.Fatalf("status = %+v", st)
	}
	got, err := os.ReadFile(filepath.Join(root, "index.php"))
	if err != nil || string(got) != "<?php echo 1;" {
		t.Errorf("index.php = %q, %v", got, err)
	}
	assertExists(t, filepath.Join(root, "lib", "a.php"))
	assertMissing(t, filepath.Join(root, "cache"))
}

func TestPullRemoteEmptyPathIsLoginDir(t *testing.T) {
	tr := &fakeTransport{
		kind: types.OSPosix,
		replies: map[string]string{
			"test -d '.' && echo dir || echo missing":                                  "dir\n",
			"find '.' -type f \\( -wholename './**/*' -o -wholename './*' \\)":          "./index.php\n./redep.toml\n./lib/a.php\n",
			"find '.' -type d \\( -wholename './**/*' -o -wholename './*' \\)":          "./lib\n",
			"find '.' -type f -wholename './redep.toml'":                                "./redep.toml\n",
			"find '.' -type d -wholename './redep.toml'":                                "",
		},
		remote: map[string]string{
			"index.php": "<?php echo 1;",
			"lib/a.php": "<?php",
		},
	}
	root := t.TempDir()

	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"web": tr}))
	st, err := e.Pull(root, basicMatch, []string{"./redep.toml"}, []types.Endpoint{{Host: "web", Path: ""}})
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if st.State != types.StateDone || st.Files != 2 {
		t.Fatalf("status = %+v", st)
	}
	assertExists(t, filepath.Join(root, "index.php"), filepath.Join(root, "lib", "a.php"))
	assertMissing(t, filepath.Join(root, "redep.toml"))
}

func TestPullRemoteProbeFailureIsNotEmpty(t *testing.T) {
	tr := &fakeTransport{kind: types.OSPosix, failOn: "test -d"}
	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"web": tr}))
	st, err := e.Pull(t.TempDir(), basicMatch, nil, []types.Endpoint{{Host: "web", Path: "/srv/app"}})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateFailed || st.OK() {
		t.Errorf("status = %+v, expected a failed unit", st)
	}
}

func TestSameDir(t *testing.T) {
	tests := []struct {
		style    util.PathStyle
		a, b     string
		expected bool
	}{
		{util.Windows, `C:\Proj`, `c:\proj`, true},
		{util.Windows, `C:\Proj`, `C:/Proj/`, true},
		{util.Windows, `C:\Proj`, `C:\Proj\sub`, false},
		{util.Posix, "/srv/Proj", "/srv/proj", false},
		{util.Posix, "/srv/proj", "/srv/proj/", true},
	}
	for _, test := range tests {
		if got := sameDir(test.style, test.a, test.b); got != test.expected {
			t.Errorf("sameDir(%s, %q, %q) = %v, expected %v", test.style, test.a, test.b, got, test.expected)
		}
	}
}

func TestPullRemoteMissingRoot(t *testing.T) {
	tr := &fakeTransport{kind: types.OSPosix}
	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"web": tr}))
	st, err := e.Pull(t.TempDir(), basicMatch, nil, []types.Endpoint{{Host: "web", Path: "/srv/none"}})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateNoSelection || !st.OK() {
		t.Errorf("status = %+v", st)
	}
}

func TestPullRemoteWindowsUnsupported(t *testing.T) {
	tr := &fakeTransport{kind: types.OSWindows, home: `C:\Users\deploy`}
	e := NewExecutor(logging.Nop(), dialer(map[string]*fakeTransport{"win": tr}))
	st, err := e.Pull(t.TempDir(), basicMatch, nil, []types.Endpoint{{Host: "win", Path: `C:\www`}})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateFailed || !errors.Is(st.Err, types.ErrUnsupportedPlatform) {
		t.Errorf("status = %+v", st)
	}
}

func TestPullRemoteConnectFailure(t *testing.T) {
	e := NewExecutor(logging.Nop(), dialer(nil))
	st, err := e.Pull(t.TempDir(), basicMatch, nil, []types.Endpoint{{Host: "gone", Path: "/srv"}})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != types.StateConnectFailed || !errors.Is(st.Err, types.ErrConnection) {
		t.Errorf("status = %+v", st)
	}
}
