package safedbx

import (
	"os"

	"github.com/goccy/go-yaml"
)

// EnvConfig declares an environment in a form loadable from YAML. The
// programmatic Set* methods remain the primary interface; the config path
// exists for tools that keep store settings next to the rest of their
// deployment configuration.
type EnvConfig struct {
	// Path is the environment directory, or the data file with NoSubdir.
	Path string `yaml:"path"`

	// NoSubdir treats Path as the data file itself.
	NoSubdir bool `yaml:"no_subdir"`

	// ReadOnly opens the environment without write access.
	ReadOnly bool `yaml:"read_only"`

	// NoSync skips flushing system buffers on commit.
	NoSync bool `yaml:"no_sync"`

	// NoMetaSync skips the meta flush on commit.
	NoMetaSync bool `yaml:"no_meta_sync"`

	// MapSize bounds the data size in bytes. Zero keeps the engine default.
	MapSize int64 `yaml:"map_size"`

	// MaxReaders sizes the reader slot table. Zero keeps the default.
	MaxReaders int `yaml:"max_readers"`

	// MaxDBs bounds the number of named tables. Zero keeps the default.
	MaxDBs int `yaml:"max_dbs"`

	// Mode is the unix file creation mode, as an octal string such as
	// "0644". Empty means 0644.
	Mode string `yaml:"mode"`
}

// Flags folds the boolean fields into environment open flags.
func (c *EnvConfig) Flags() uint {
	var flags uint
	if c.NoSubdir {
		flags |= NoSubdir
	}
	if c.ReadOnly {
		flags |= ReadOnly
	}
	if c.NoSync {
		flags |= NoSync
	}
	if c.NoMetaSync {
		flags |= NoMetaSync
	}
	return flags
}

// FileMode parses the Mode field.
func (c *EnvConfig) FileMode() (os.FileMode, error) {
	if c.Mode == "" {
		return 0o644, nil
	}
	var mode os.FileMode
	n := 0
	for _, r := range c.Mode {
		if r < '0' || r > '7' {
			return 0, &Error{Kind: KindCustom, Message: "mode must be an octal string"}
		}
		mode = mode<<3 | os.FileMode(r-'0')
		n++
	}
	if n == 0 || n > 4 {
		return 0, &Error{Kind: KindCustom, Message: "mode must be an octal string"}
	}
	return mode, nil
}

// LoadConfig reads an EnvConfig from a YAML file.
func LoadConfig(path string) (*EnvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg EnvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OpenEnv applies the config to env and opens it.
func (c *EnvConfig) OpenEnv(env *Env) error {
	if c.Path == "" {
		return &Error{Kind: KindInvalidPath, Message: "config has no path"}
	}
	if c.MapSize > 0 {
		if err := env.SetMapSize(c.MapSize); err != nil {
			return err
		}
	}
	if c.MaxReaders > 0 {
		if err := env.SetMaxReaders(c.MaxReaders); err != nil {
			return err
		}
	}
	if c.MaxDBs > 0 {
		if err := env.SetMaxDBs(c.MaxDBs); err != nil {
			return err
		}
	}
	mode, err := c.FileMode()
	if err != nil {
		return err
	}
	return env.Open(c.Path, c.Flags(), mode)
}

// OpenFromConfig builds an environment over the default engine from a YAML
// config file and opens it.
func OpenFromConfig(path string) (*Env, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	env := NewEnv()
	if err := cfg.OpenEnv(env); err != nil {
		return nil, err
	}
	return env, nil
}
