package sshclient

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"redep/internal/logging"
	"redep/internal/util"
)

var defaultKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// Signers are cached per key file so a passphrase is asked for once per
// process even when several destinations connect concurrently.
var (
	signerMu    sync.Mutex
	signerCache = map[string]ssh.Signer{}
)

// authMethods collects ssh-agent identities and private keys. The returned
// conn, when non-nil, is the agent socket and must be closed with the client.
func authMethods(opts Options, log *logging.Logger) ([]ssh.AuthMethod, net.Conn, error) {
	var methods []ssh.AuthMethod

	var agentConn net.Conn
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			log.Debug("ssh-agent unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			agentConn = conn
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	var signers []ssh.Signer
	for _, keyPath := range keyFiles(opts) {
		signer, err := loadSigner(keyPath)
		if err != nil {
			if opts.IdentityFile != "" {
				if agentConn != nil {
					agentConn.Close()
				}
				return nil, nil, err
			}
			log.Warn("skipping private key", map[string]interface{}{"key": keyPath, "error": err.Error()})
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	if len(methods) == 0 {
		return nil, nil, fmt.Errorf("no authentication method configured (start ssh-agent or provide a private key)")
	}
	return methods, agentConn, nil
}

// keyFiles returns the configured identity file, or the default keys that
// exist under ~/.ssh.
func keyFiles(opts Options) []string {
	if opts.IdentityFile != "" {
		p, err := util.ExpandHomeLocal(opts.IdentityFile)
		if err != nil {
			p = opts.IdentityFile
		}
		return []string{p}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var files []string
	for _, name := range defaultKeys {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			files = append(files, p)
		}
	}
	return files
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	signerMu.Lock()
	defer signerMu.Unlock()
	if s, ok := signerCache[keyPath]; ok {
		return s, nil
	}

	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %v", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		signer, err = parseWithPrompt(keyPath, key)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %v", keyPath, err)
	}
	signerCache[keyPath] = signer
	return signer, nil
}

// parseWithPrompt asks for the passphrase of an encrypted key. It only
// prompts when stdin is a terminal.
func parseWithPrompt(keyPath string, key []byte) (ssh.Signer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("key is encrypted and no terminal is available for the passphrase")
	}

	util.Default.Suspend()
	defer util.Default.Resume()
	fmt.Fprintf(os.Stderr, "Enter passphrase for key '%s': ", keyPath)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %v", err)
	}
	return ssh.ParsePrivateKeyWithPassphrase(key, passphrase)
}

// hostKeyCallback verifies host keys against known_hosts. Verification is
// skipped, with a warning, when disabled or when the file does not exist.
func hostKeyCallback(opts Options, log *logging.Logger) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		log.Warn("host key verification disabled by configuration", nil)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := opts.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %v", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	} else if p, err := util.ExpandHomeLocal(path); err == nil {
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Warn("known_hosts not found, host keys are not verified", map[string]interface{}{"known_hosts": path})
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %v", path, err)
	}
	return cb, nil
}
