package sshclient

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"redep/internal/deploy/types"
	"redep/internal/logging"
)

const defaultTimeout = 30 * time.Second

// Options configures authentication and host key checking for every
// connection made by a client.
type Options struct {
	// IdentityFile replaces the default ~/.ssh/id_* keys when set.
	IdentityFile string
	// KnownHosts defaults to ~/.ssh/known_hosts.
	KnownHosts            string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
	Log                   *logging.Logger
}

// SSHClient represents an SSH client connection
type SSHClient struct {
	client *ssh.Client
	config *ssh.ClientConfig
	host   string
	port   string
	log    *logging.Logger

	agentConn net.Conn

	mu      sync.Mutex
	sftp    *sftp.Client
	sftpErr error
}

var _ types.Transport = (*SSHClient)(nil)

// NewSSHClient prepares a client for addr, written "[user@]host[:port]".
// The user defaults to the local login name and the port to 22.
func NewSSHClient(addr string, opts Options) (*SSHClient, error) {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	username, host, port := parseHost(addr)
	if host == "" {
		return nil, fmt.Errorf("invalid host %q", addr)
	}
	log = log.WithFields(map[string]interface{}{"host": host, "port": port, "user": username})

	auth, agentConn, err := authMethods(opts, log)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(opts, log)
	if err != nil {
		if agentConn != nil {
			agentConn.Close()
		}
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &SSHClient{
		config: &ssh.ClientConfig{
			User:            username,
			Auth:            auth,
			HostKeyCallback: hostKeys,
			Timeout:         timeout,
		},
		host:      host,
		port:      port,
		log:       log,
		agentConn: agentConn,
	}, nil
}

// parseHost splits "[user@]host[:port]". IPv6 literals need brackets when a
// port is given.
func parseHost(addr string) (username, host, port string) {
	rest := addr
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		username, rest = rest[:i], rest[i+1:]
	}
	if username == "" {
		username = localUser()
	}

	if h, p, err := net.SplitHostPort(rest); err == nil {
		host, port = h, p
	} else {
		host, port = strings.Trim(rest, "[]"), "22"
	}
	if port == "" {
		port = "22"
	}
	return username, host, port
}

func localUser() string {
	for _, env := range []string{"USER", "USERNAME"} {
		if u := os.Getenv(env); u != "" {
			return u
		}
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return ""
}

// Connect establishes the SSH connection
func (c *SSHClient) Connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	client, err := ssh.Dial("tcp", addr, c.config)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %v", addr, err)
	}
	c.client = client
	c.log.Debug("connected", nil)
	return nil
}

// Close closes the SSH connection
func (c *SSHClient) Close() error {
	c.mu.Lock()
	if c.sftp != nil {
		c.sftp.Close()
		c.sftp = nil
	}
	c.mu.Unlock()
	if c.agentConn != nil {
		c.agentConn.Close()
	}
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// RunCommand executes a command on the remote server
func (c *SSHClient) RunCommand(cmd string) error {
	if c.client == nil {
		return fmt.Errorf("SSH client not connected")
	}
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	return session.Run(cmd)
}

// RunCommandWithOutput executes a command on the remote server and returns
// its stdout. On failure the partial output is returned with the error.
func (c *SSHClient) RunCommandWithOutput(cmd string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("SSH client not connected")
	}
	session, err := c.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %v", err)
	}
	defer session.Close()

	output, err := session.Output(cmd)
	if err != nil {
		return string(output), fmt.Errorf("command failed: %v", err)
	}
	return string(output), nil
}

// Run implements types.Transport.
func (c *SSHClient) Run(cmd string) (string, bool) {
	out, err := c.RunCommandWithOutput(cmd)
	if err != nil {
		c.log.Debug("remote command failed", map[string]interface{}{"cmd": cmd, "error": err.Error()})
		return out, false
	}
	return out, true
}

// Put implements types.Transport.
func (c *SSHClient) Put(localPath, remotePath string) error {
	return c.UploadFile(localPath, remotePath)
}

// Get implements types.Transport.
func (c *SSHClient) Get(remotePath, localPath string) error {
	return c.DownloadFile(localPath, remotePath)
}

// Dial returns a types.Dialer connecting with opts.
func Dial(opts Options) types.Dialer {
	return func(host string) (types.Transport, error) {
		c, err := NewSSHClient(host, opts)
		if err != nil {
			return nil, err
		}
		if err := c.Connect(); err != nil {
			c.Close()
			return nil, err
		}
		return c, nil
	}
}
