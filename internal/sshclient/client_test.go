package sshclient

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	"redep/internal/logging"
)

func TestParseHost(t *testing.T) {
	t.Setenv("USER", "localuser")

	tests := []struct {
		input        string
		expectedUser string
		expectedHost string
		expectedPort string
	}{
		{"web.example.com", "localuser", "web.example.com", "22"},
		{"web.example.com:2222", "localuser", "web.example.com", "2222"},
		{"deploy@web.example.com", "deploy", "web.example.com", "22"},
		{"deploy@web.example.com:2222", "deploy", "web.example.com", "2222"},
		{"192.168.1.100", "localuser", "192.168.1.100", "22"},
		{"192.168.1.100:8022", "localuser", "192.168.1.100", "8022"},
		{"root@[::1]:2200", "root", "::1", "2200"},
		{"::1", "localuser", "::1", "22"},
	}

	for _, test := range tests {
		u, host, port := parseHost(test.input)
		if u != test.expectedUser || host != test.expectedHost || port != test.expectedPort {
			t.Errorf("parseHost(%q) = (%q, %q, %q), expected (%q, %q, %q)",
				test.input, u, host, port, test.expectedUser, test.expectedHost, test.expectedPort)
		}
	}
}

func TestIsWindowsPath(t *testing.T) {
	tests := map[string]bool{
		`C:\www\site`:      true,
		`d:/www`:           true,
		`\\server\share\x`: true,
		`/srv/app`:         false,
		`site\x`:           false,
		`C:`:               false,
	}
	for in, want := range tests {
		if got := isWindowsPath(in); got != want {
			t.Errorf("isWindowsPath(%q) = %v, expected %v", in, got, want)
		}
	}
}

func TestWireAndQuote(t *testing.T) {
	if got := wirePath(`C:\www\a b.txt`); got != "C:/www/a b.txt" {
		t.Errorf("wirePath = %q", got)
	}
	if got := wirePath(`/srv/odd\name`); got != `/srv/odd\name` {
		t.Errorf("posix backslash must survive, got %q", got)
	}
	if got := quoteRemote("/srv/it's"); got != `'/srv/it'\''s'` {
		t.Errorf("quoteRemote posix = %q", got)
	}
	if got := quoteRemote(`C:/www/a b`); got != `"C:/www/a b"` {
		t.Errorf("quoteRemote windows = %q", got)
	}
}

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "test")
	if err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(p, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestAuthMethodsWithIdentityFile(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	key := writeKey(t)

	methods, conn, err := authMethods(Options{IdentityFile: key}, logging.Nop())
	if err != nil {
		t.Fatalf("authMethods: %v", err)
	}
	if conn != nil {
		t.Error("no agent connection expected")
	}
	if len(methods) != 1 {
		t.Errorf("expected one auth method, got %d", len(methods))
	}
}

func TestAuthMethodsMissingIdentityFile(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, _, err := authMethods(Options{IdentityFile: filepath.Join(t.TempDir(), "nope")}, logging.Nop())
	if err == nil {
		t.Fatal("expected error for an unreadable identity file")
	}
}

func TestHostKeyCallback(t *testing.T) {
	dir := t.TempDir()

	cb, err := hostKeyCallback(Options{KnownHosts: filepath.Join(dir, "missing")}, logging.Nop())
	if err != nil || cb == nil {
		t.Fatalf("missing known_hosts should fall back, got %v", err)
	}

	kh := filepath.Join(dir, "known_hosts")
	if err := os.WriteFile(kh, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	cb, err = hostKeyCallback(Options{KnownHosts: kh}, logging.Nop())
	if err != nil || cb == nil {
		t.Fatalf("known_hosts: %v", err)
	}

	cb, err = hostKeyCallback(Options{InsecureIgnoreHostKey: true}, logging.Nop())
	if err != nil || cb == nil {
		t.Fatalf("insecure: %v", err)
	}
}

func TestNewSSHClientDefaults(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	c, err := NewSSHClient("deploy@web.example.com", Options{
		IdentityFile:          writeKey(t),
		InsecureIgnoreHostKey: true,
		Log:                   logging.Nop(),
	})
	if err != nil {
		t.Fatalf("NewSSHClient: %v", err)
	}
	if c.config.User != "deploy" || c.host != "web.example.com" || c.port != "22" {
		t.Errorf("client = %s@%s:%s", c.config.User, c.host, c.port)
	}
	if c.config.Timeout != defaultTimeout {
		t.Errorf("timeout = %v", c.config.Timeout)
	}
	if _, ok := c.Run("true"); ok {
		t.Error("Run on an unconnected client must fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
