package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"redep/internal/deploy/types"
)

// FindExisting returns the configuration file to run with. start may name
// the file itself, a directory holding redep.toml, or be empty for the
// working directory.
func FindExisting(start string) (string, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		p := filepath.Join(cwd, ConfigFileName)
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("no %s in the current directory: %w", ConfigFileName, ErrNotExist)
		}
		return p, nil
	}

	info, err := os.Stat(start)
	if err != nil {
		return "", fmt.Errorf("the specified path %s does not exist: %w", start, ErrNotExist)
	}
	if !info.IsDir() {
		return start, nil
	}
	p := filepath.Join(start, ConfigFileName)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("no %s in directory %s: %w", ConfigFileName, start, ErrNotExist)
	}
	return p, nil
}

// PathForNew returns where a configuration should live for init and edits:
// an existing directory gets redep.toml inside it, anything else is taken
// as the file path.
func PathForNew(start string) (string, error) {
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, ConfigFileName), nil
	}
	if info, err := os.Stat(start); err == nil && info.IsDir() {
		return filepath.Join(start, ConfigFileName), nil
	}
	return start, nil
}

// Default is the configuration written by Init: everything under the
// configuration's directory, except the configuration file itself.
func Default(fileName string) *Config {
	return &Config{
		RootDir: "./",
		Match:   []string{"*", "**/*"},
		Ignore:  []string{"./" + filepath.ToSlash(fileName)},
		Remotes: []Remote{},
	}
}

// Init writes cfg, or Default when nil, to configPath. An existing file is
// never overwritten.
func Init(configPath string, cfg *Config) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s: %w", configPath, ErrExists)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %v", configPath, err)
	}
	if cfg == nil {
		cfg = Default(filepath.Base(configPath))
	}
	return cfg.saveTo(configPath)
}

// ParseHostPath parses "user@host:/dir", "known_host:/dir" or a local
// "/dir". A Windows drive path such as C:\dir is local.
func ParseHostPath(s string) (types.Endpoint, error) {
	if isDrivePath(s) {
		return types.Endpoint{Path: s}, nil
	}
	host, p, found := strings.Cut(s, ":")
	if !found {
		if s == "" {
			return types.Endpoint{}, fmt.Errorf("%q: %w", s, ErrInvalidRemote)
		}
		return types.Endpoint{Path: s}, nil
	}
	if strings.ContainsAny(host, "/\\") || p == "" {
		return types.Endpoint{}, fmt.Errorf("%q: %w", s, ErrInvalidRemote)
	}
	return types.Endpoint{Host: host, Path: p}, nil
}

func isDrivePath(s string) bool {
	if len(s) < 2 || s[1] != ':' {
		return false
	}
	c := s[0]
	letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return letter && (len(s) == 2 || s[2] == '\\' || s[2] == '/')
}

func (c *Config) indexOfRemote(ep types.Endpoint) int {
	return slices.IndexFunc(c.Remotes, func(r Remote) bool {
		return r.Host != nil && r.Path != nil && *r.Host == ep.Host && *r.Path == ep.Path
	})
}

// AddRemote appends the remote described by hostPath to the file.
func AddRemote(configPath, hostPath string) (types.Endpoint, error) {
	ep, err := ParseHostPath(hostPath)
	if err != nil {
		return ep, err
	}
	cfg, err := LoadRaw(configPath)
	if err != nil {
		return ep, err
	}
	if cfg.indexOfRemote(ep) >= 0 {
		return ep, fmt.Errorf("remote %s: %w", ep, ErrDuplicate)
	}
	cfg.Remotes = append(cfg.Remotes, NewRemote(ep))
	return ep, cfg.Save()
}

// RemoveRemote deletes every entry equal to the remote described by hostPath.
func RemoveRemote(configPath, hostPath string) (types.Endpoint, error) {
	ep, err := ParseHostPath(hostPath)
	if err != nil {
		return ep, err
	}
	return ep, RemoveEndpoint(configPath, ep)
}

// RemoveEndpoint deletes every entry equal to ep.
func RemoveEndpoint(configPath string, ep types.Endpoint) error {
	cfg, err := LoadRaw(configPath)
	if err != nil {
		return err
	}
	if cfg.indexOfRemote(ep) < 0 {
		return fmt.Errorf("remote %s: %w", ep, ErrNoMatch)
	}
	cfg.Remotes = slices.DeleteFunc(cfg.Remotes, func(r Remote) bool {
		return r.Host != nil && r.Path != nil && *r.Host == ep.Host && *r.Path == ep.Path
	})
	return cfg.Save()
}

// AddIgnore appends pattern to the ignore list.
func AddIgnore(configPath, pattern string) error {
	if !validPattern(pattern) {
		return fmt.Errorf("invalid pattern %q", pattern)
	}
	cfg, err := LoadRaw(configPath)
	if err != nil {
		return err
	}
	if slices.Contains(cfg.Ignore, pattern) {
		return fmt.Errorf("ignore pattern %q: %w", pattern, ErrDuplicate)
	}
	cfg.Ignore = append(cfg.Ignore, pattern)
	return cfg.Save()
}

// RemoveIgnore deletes pattern from the ignore list. The comparison is
// literal: "./x" and "x" are different entries.
func RemoveIgnore(configPath, pattern string) error {
	cfg, err := LoadRaw(configPath)
	if err != nil {
		return err
	}
	i := slices.Index(cfg.Ignore, pattern)
	if i < 0 {
		return fmt.Errorf("ignore pattern %q: %w", pattern, ErrNoMatch)
	}
	cfg.Ignore = slices.Delete(cfg.Ignore, i, i+1)
	return cfg.Save()
}

// IsNotExist reports whether err means the configuration file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
