package sshclient

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"

	"redep/internal/util"
)

var scpAckTimeout = 30 * time.Second

// isWindowsPath reports whether p looks like a Windows absolute path
// (C:\..., C:/... or \\server\share).
func isWindowsPath(p string) bool {
	if len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') {
		return true
	}
	return strings.HasPrefix(p, "\\\\")
}

// wirePath is the form of a remote path understood by the sftp and scp
// servers: forward slashes on both families.
func wirePath(p string) string {
	if isWindowsPath(p) {
		return strings.ReplaceAll(p, "\\", "/")
	}
	return p
}

// quoteRemote quotes p for the remote shell that starts scp.
func quoteRemote(p string) string {
	if isWindowsPath(p) {
		return "\"" + strings.ReplaceAll(p, "\"", "\\\"") + "\""
	}
	return util.ShellQuote(p)
}

// sftpClient opens the sftp subsystem once per connection. A server without
// the subsystem is remembered so later transfers go straight to scp.
func (c *SSHClient) sftpClient() (*sftp.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sftp != nil {
		return c.sftp, nil
	}
	if c.sftpErr != nil {
		return nil, c.sftpErr
	}
	s, err := sftp.NewClient(c.client)
	if err != nil {
		c.sftpErr = err
		c.log.Info("sftp subsystem unavailable, falling back to scp", map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	c.sftp = s
	return s, nil
}

// UploadFile uploads a local file to remote server. The remote parent
// directory must already exist.
func (c *SSHClient) UploadFile(localPath, remotePath string) error {
	if c.client == nil {
		return fmt.Errorf("SSH client not connected")
	}
	if s, err := c.sftpClient(); err == nil {
		return sftpUpload(s, localPath, wirePath(remotePath))
	}
	return c.scpUpload(localPath, remotePath)
}

// DownloadFile downloads a remote file into localPath, whose parent
// directory must already exist.
func (c *SSHClient) DownloadFile(localPath, remotePath string) error {
	if c.client == nil {
		return fmt.Errorf("SSH client not connected")
	}
	if s, err := c.sftpClient(); err == nil {
		return sftpDownload(s, localPath, wirePath(remotePath))
	}
	return c.scpDownload(localPath, remotePath)
}

func sftpUpload(s *sftp.Client, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %v", err)
	}
	defer src.Close()
	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %v", err)
	}

	dst, err := s.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %v", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write remote file %s: %v", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %s: %v", remotePath, err)
	}
	// Windows servers reject chmod; the content is what matters.
	_ = s.Chmod(remotePath, info.Mode().Perm())
	return nil
}

func sftpDownload(s *sftp.Client, localPath, remotePath string) error {
	src, err := s.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %v", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %v", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy file data: %v", err)
	}
	return dst.Close()
}

// scpSession is the part of *ssh.Session an scpStream needs once started.
type scpSession interface {
	Wait() error
	Close() error
}

// scpStream drives one remote scp process over a session's stdio.
type scpStream struct {
	session scpSession
	stdin   io.WriteCloser
	stdout  *bufio.Reader
}

func (c *SSHClient) startSCP(cmd string) (*scpStream, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdin pipe: %v", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to get stdout pipe: %v", err)
	}
	c.log.Debug("starting remote scp", map[string]interface{}{"cmd": cmd})
	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start scp on remote: %v", err)
	}
	return &scpStream{session: session, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// ack reads one protocol status byte. 1 and 2 carry an error message line.
func (s *scpStream) ack() error {
	ch := make(chan error, 1)
	go func() {
		b, err := s.stdout.ReadByte()
		if err != nil {
			ch <- fmt.Errorf("failed to read scp ack: %v", err)
			return
		}
		switch b {
		case 0:
			ch <- nil
		case 1, 2:
			msg, _ := s.stdout.ReadString('\n')
			ch <- fmt.Errorf("scp remote error: %s", strings.TrimSpace(msg))
		default:
			ch <- fmt.Errorf("unknown scp ack: %v", b)
		}
	}()

	select {
	case err := <-ch:
		return err
	case <-time.After(scpAckTimeout):
		// Closing the session ends the pending read.
		s.session.Close()
		return fmt.Errorf("timeout waiting for scp ack")
	}
}

func (s *scpStream) null() error {
	if _, err := s.stdin.Write([]byte{0}); err != nil {
		return fmt.Errorf("failed to write scp null byte: %v", err)
	}
	return nil
}

func (s *scpStream) abort(err error) error {
	s.stdin.Close()
	s.session.Wait()
	s.session.Close()
	return err
}

func (s *scpStream) finish() error {
	s.stdin.Close()
	defer s.session.Close()
	if err := s.session.Wait(); err != nil {
		return fmt.Errorf("remote scp command failed: %v", err)
	}
	return nil
}

func (c *SSHClient) scpUpload(localPath, remotePath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %v", err)
	}
	defer localFile.Close()
	stat, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %v", err)
	}

	wire := wirePath(remotePath)
	s, err := c.startSCP("scp -t " + quoteRemote(path.Dir(wire)))
	if err != nil {
		return err
	}
	if err := s.ack(); err != nil {
		return s.abort(err)
	}

	fmt.Fprintf(s.stdin, "C%04o %d %s\n", stat.Mode().Perm(), stat.Size(), path.Base(wire))
	if err := s.ack(); err != nil {
		return s.abort(err)
	}
	if _, err := io.Copy(s.stdin, localFile); err != nil {
		return s.abort(fmt.Errorf("failed to send file data: %v", err))
	}
	if err := s.null(); err != nil {
		return s.abort(err)
	}
	if err := s.ack(); err != nil {
		return s.abort(err)
	}
	return s.finish()
}

func (c *SSHClient) scpDownload(localPath, remotePath string) error {
	s, err := c.startSCP("scp -f " + quoteRemote(wirePath(remotePath)))
	if err != nil {
		return err
	}
	if err := s.null(); err != nil {
		return s.abort(err)
	}

	b, err := s.stdout.ReadByte()
	if err != nil {
		return s.abort(fmt.Errorf("failed to read scp header byte: %v", err))
	}
	if b == 1 || b == 2 {
		msg, _ := s.stdout.ReadString('\n')
		return s.abort(fmt.Errorf("scp remote error: %s", strings.TrimSpace(msg)))
	}
	if b != 'C' {
		return s.abort(fmt.Errorf("unexpected scp header: %v", b))
	}

	// C<mode> <size> <name>
	headerLine, err := s.stdout.ReadString('\n')
	if err != nil {
		return s.abort(fmt.Errorf("failed to read scp header line: %v", err))
	}
	parts := strings.SplitN(strings.TrimSpace(headerLine), " ", 3)
	if len(parts) < 3 {
		return s.abort(fmt.Errorf("invalid scp header: %s", headerLine))
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return s.abort(fmt.Errorf("invalid size in scp header: %v", err))
	}

	lf, err := os.Create(localPath)
	if err != nil {
		return s.abort(fmt.Errorf("failed to create local file: %v", err))
	}
	defer lf.Close()

	if err := s.null(); err != nil {
		return s.abort(err)
	}
	if _, err := io.CopyN(lf, s.stdout, size); err != nil {
		return s.abort(fmt.Errorf("failed to copy file data: %v", err))
	}
	if err := s.ack(); err != nil {
		return s.abort(err)
	}
	if err := s.null(); err != nil {
		return s.abort(err)
	}
	if err := s.finish(); err != nil {
		return err
	}
	return lf.Close()
}
