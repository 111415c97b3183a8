// Package remote holds the host-facing helpers shared by remote push and
// pull: shell family detection, home expansion and command dialects.
package remote

import (
	"fmt"
	"strings"

	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

const (
	posixProbe   = "uname -s"
	windowsProbe = "ver"
)

// DetectOS probes the remote shell. A working uname means POSIX, a working
// ver means Windows; when both fail the host is assumed to be POSIX.
func DetectOS(t types.Transport, log *logging.Logger) types.RemoteOS {
	if out, ok := t.Run(posixProbe); ok {
		log.Info("remote host is posix", map[string]interface{}{"uname": strings.TrimSpace(out)})
		return types.OSPosix
	}
	if out, ok := t.Run(windowsProbe); ok {
		log.Info("remote host is windows", map[string]interface{}{"ver": strings.TrimSpace(out)})
		return types.OSWindows
	}
	log.Warn("could not identify remote os, assuming posix", nil)
	return types.OSPosix
}

// HomeCommand returns the command printing the login user's home directory.
func HomeCommand(kind types.RemoteOS) string {
	if kind == types.OSWindows {
		return "echo %USERPROFILE%"
	}
	return "echo $HOME"
}

// ExpandHome resolves a leading home marker on the remote side and
// normalizes p to the remote path style. Paths without the marker are only
// normalized and never cause a round trip. An empty p is the login directory.
func ExpandHome(t types.Transport, p string, kind types.RemoteOS) (string, error) {
	style := kind.Style()
	if strings.TrimSpace(p) == "" {
		return ".", nil
	}
	if !util.HasHomePrefix(p) {
		return style.Normalize(p), nil
	}
	out, ok := t.Run(HomeCommand(kind))
	home := strings.TrimSpace(out)
	if !ok || home == "" {
		return "", fmt.Errorf("failed to resolve remote home directory for %s", p)
	}
	return util.ExpandHome(p, home, style), nil
}

// MkdirCommand returns the command creating dir and its missing parents.
func MkdirCommand(kind types.RemoteOS, dir string) string {
	if kind == types.OSWindows {
		return fmt.Sprintf("powershell -NoProfile -Command \"New-Item -ItemType Directory -Force -Path %s | Out-Null\"", util.PowerShellQuote(dir))
	}
	return "mkdir -p " + util.ShellQuote(dir)
}
