package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"redep/internal/deploy/types"
	"redep/internal/logging"
	"redep/internal/util"
)

const ConfigFileName = "redep.toml"

var (
	ErrExists        = errors.New("configuration file already exists")
	ErrNotExist      = errors.New("configuration file not found")
	ErrDuplicate     = errors.New("entry already present")
	ErrNoMatch       = errors.New("no matching entry")
	ErrInvalidRemote = errors.New("invalid remote, expected user@host:/path/to/dir, known_host:/path/to/dir or /path/to/dir")
	ErrInvalid       = errors.New("configuration validation failed")
)

// Config is the content of a redep.toml file.
type Config struct {
	RootDir string   `toml:"root_dir" yaml:"root_dir"`
	Match   []string `toml:"match" yaml:"match"`
	Ignore  []string `toml:"ignore" yaml:"ignore"`
	Remotes []Remote `toml:"remotes" yaml:"remotes"`
	SSH     *SSH     `toml:"ssh,omitempty" yaml:"ssh,omitempty"`

	// Root is RootDir resolved against the directory of the file.
	Root string `toml:"-" yaml:"-"`
	path string
}

// Remote is one [[remotes]] entry. Both keys are pointers so a missing key
// can be told apart from an empty one: host = "" is a local endpoint.
type Remote struct {
	Host *string `toml:"host" yaml:"host"`
	Path *string `toml:"path" yaml:"path"`
}

type SSH struct {
	IdentityFile          string `toml:"identity_file,omitempty" yaml:"identity_file,omitempty"`
	KnownHosts            string `toml:"known_hosts,omitempty" yaml:"known_hosts,omitempty"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key,omitempty" yaml:"insecure_ignore_host_key,omitempty"`
	// ConnectTimeout is in seconds.
	ConnectTimeout int `toml:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
}

func NewRemote(ep types.Endpoint) Remote {
	host, p := ep.Host, ep.Path
	return Remote{Host: &host, Path: &p}
}

func (r Remote) String() string {
	deref := func(s *string) string {
		if s == nil {
			return "<missing>"
		}
		return *s
	}
	if r.Host != nil && *r.Host == "" {
		return deref(r.Path)
	}
	return deref(r.Host) + ":" + deref(r.Path)
}

// Path returns the file the configuration was read from.
func (c *Config) Path() string { return c.path }

// Load reads, interpolates and decodes the configuration at configPath.
// ${VAR} references resolve from the OS environment first, then from a .env
// file next to the configuration.
func Load(configPath string) (*Config, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", configPath, ErrNotExist)
		}
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	envMap, _ := loadDotEnvIfExists(filepath.Dir(abs))
	rendered := interpolateEnv(string(data), envMap)

	cfg, err := decode(abs, []byte(rendered))
	if err != nil {
		return nil, err
	}
	cfg.path = abs
	cfg.Root, err = resolveRoot(abs, cfg.RootDir)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRaw decodes without interpolation, for edits that write the file back.
func LoadRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", configPath, ErrNotExist)
		}
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	cfg, err := decode(configPath, data)
	if err != nil {
		return nil, err
	}
	cfg.path = configPath
	return cfg, nil
}

func isYAML(configPath string) bool {
	ext := strings.ToLower(filepath.Ext(configPath))
	return ext == ".yaml" || ext == ".yml"
}

func decode(configPath string, data []byte) (*Config, error) {
	var cfg Config
	if isYAML(configPath) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %v", configPath, err)
		}
		return &cfg, nil
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %v", configPath, err)
	}
	for _, key := range md.Undecoded() {
		logging.Warn("unknown configuration key", map[string]interface{}{"key": key.String(), "file": configPath})
	}
	return &cfg, nil
}

func resolveRoot(configPath, rootDir string) (string, error) {
	base := filepath.Dir(configPath)
	if rootDir == "" {
		return base, nil
	}
	root, err := util.ExpandHomeLocal(rootDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(base, root)
	}
	return filepath.Clean(root), nil
}

// Save writes the configuration back to the file it was read from.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("configuration has no file path")
	}
	return c.saveTo(c.path)
}

func (c *Config) saveTo(configPath string) error {
	var buf bytes.Buffer
	if isYAML(configPath) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("error encoding config: %v", err)
		}
		enc.Close()
	} else if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("error encoding config: %v", err)
	}
	if err := os.WriteFile(configPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing config file: %v", err)
	}
	c.path = configPath
	return nil
}

// Endpoints returns the well-formed remotes in file order. Each malformed
// entry yields an error wrapping types.ErrConfiguration instead. An empty
// path is well formed: the login directory of a remote, the root locally.
func (c *Config) Endpoints() ([]types.Endpoint, []error) {
	var eps []types.Endpoint
	var errs []error
	for i, r := range c.Remotes {
		switch {
		case r.Host == nil || r.Path == nil:
			errs = append(errs, fmt.Errorf("remote %d (%s): %w: both host and path are required", i+1, r, types.ErrConfiguration))
		default:
			eps = append(eps, types.Endpoint{Host: *r.Host, Path: *r.Path})
		}
	}
	return eps, errs
}

// Validate checks patterns and SSH settings. Malformed remotes are reported
// by Endpoints instead, so one bad entry does not block the others.
func (c *Config) Validate() error {
	var validationErrors []string

	for i, p := range c.Match {
		if !validPattern(p) {
			validationErrors = append(validationErrors, fmt.Sprintf("match %d: invalid pattern %q", i+1, p))
		}
	}
	for i, p := range c.Ignore {
		if !validPattern(p) {
			validationErrors = append(validationErrors, fmt.Sprintf("ignore %d: invalid pattern %q", i+1, p))
		}
	}

	if c.SSH != nil {
		if c.SSH.ConnectTimeout < 0 {
			validationErrors = append(validationErrors, "ssh.connect_timeout cannot be negative")
		}
		if f := strings.TrimSpace(c.SSH.IdentityFile); f != "" {
			expanded, err := util.ExpandHomeLocal(f)
			if err == nil {
				if _, err := os.Stat(expanded); os.IsNotExist(err) {
					validationErrors = append(validationErrors, fmt.Sprintf("ssh.identity_file does not exist: %s", f))
				}
			}
		}
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("%w:\n%s", ErrInvalid, strings.Join(validationErrors, "\n"))
	}
	return nil
}

func validPattern(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	return doublestar.ValidatePattern(path.Clean(filepath.ToSlash(p)))
}

// loadDotEnvIfExists attempts to load a .env file from the directory of config
// and returns a map of key->value. If no .env exists or parsing fails, an empty map is returned.
func loadDotEnvIfExists(dir string) (map[string]string, error) {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	m, err := godotenv.Read(envPath)
	if err != nil {
		logging.Warn("failed to parse .env", map[string]interface{}{"file": envPath, "error": err.Error()})
		return map[string]string{}, err
	}
	return m, nil
}

// interpolateEnv replaces ${VAR} occurrences in the input text. Precedence: OS env > envMap.
// Missing variables are replaced with empty string and a warning is emitted.
func interpolateEnv(input string, envMap map[string]string) string {
	return os.Expand(input, func(name string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		if v, ok := envMap[name]; ok {
			return v
		}
		logging.Warn("environment variable not set, using empty string", map[string]interface{}{"var": name})
		return ""
	})
}
