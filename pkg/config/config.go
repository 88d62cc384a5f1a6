// Package config loads the debugger's user-level configuration file,
// following the shape of go-delve/delve's pkg/config: a YAML file under a
// dotdir in the user's home, created with sane defaults on first run.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  = ".mdb"
	configFile = "config.yml"

	// defaultMaxHardwareStopPoints is the number of DR0-DR3 debug address
	// registers on x86-64; it is also the hard upper bound this value is
	// clamped to regardless of what the file says.
	defaultMaxHardwareStopPoints = 4
)

// Config defines every option that can be set through the config file.
type Config struct {
	// DebugInfoDirectories lists extra locations searched for separate
	// (split) debug-info files. Split DWARF itself is unsupported (see
	// spec's non-goals) but a debug-info directory can still hold a
	// full, unstripped copy of a binary's DWARF placed alongside it.
	DebugInfoDirectories []string `yaml:"debug-info-directories"`

	// DisableASLR requests that launched tracees have address space
	// layout randomization disabled, so breakpoint addresses computed
	// from a prior run stay valid.
	DisableASLR bool `yaml:"disable-aslr"`

	// MaxHardwareStopPoints caps how many hardware breakpoints/watchpoints
	// may be enabled at once. Clamped to the CPU's actual DR0-DR3 slot
	// count (4) no matter what is configured.
	MaxHardwareStopPoints int `yaml:"max-hardware-stoppoints"`
}

// Clamped returns c.MaxHardwareStopPoints bounded to [1,4], substituting
// the default (4) when the file left it unset (zero) or set it negative.
func (c *Config) Clamped() int {
	n := c.MaxHardwareStopPoints
	if n <= 0 {
		n = defaultMaxHardwareStopPoints
	}
	if n > defaultMaxHardwareStopPoints {
		n = defaultMaxHardwareStopPoints
	}
	return n
}

// LoadConfig populates a Config from ~/.mdb/config.yml, creating a default
// file the first time it is called. Errors are reported to stderr and a
// zero-value Config returned, matching the teacher's forgiving behavior:
// a broken config file should not prevent the debugger from starting.
func LoadConfig() *Config {
	if err := createConfigPath(); err != nil {
		fmt.Fprintf(os.Stderr, "could not create config directory: %v\n", err)
		return &Config{}
	}
	fullConfigFile, err := ConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to get config file path: %v\n", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating default config file: %v\n", err)
			return &Config{}
		}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to read config data: %v\n", err)
		return &Config{}
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		fmt.Fprintf(os.Stderr, "unable to decode config file: %v\n", err)
		return &Config{}
	}
	return &c
}

// SaveConfig marshals conf back to ~/.mdb/config.yml.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := ConfigFilePath(configFile)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(fullConfigFile, out, 0600)
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	if err := writeDefaultConfig(f); err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for mdb.
#
# This is the default configuration file. Commented-out options are
# disabled; delete the leading hash mark to enable an item.

# List of directories to search for separate debug-info files.
debug-info-directories: ["/usr/lib/debug/.build-id"]

# Uncomment to disable ASLR for launched tracees.
# disable-aslr: true

# Number of hardware breakpoints/watchpoints to allow at once. The CPU
# only has 4 debug address registers; values above 4 are clamped.
# max-hardware-stoppoints: 4
`)
	return err
}

func createConfigPath() error {
	p, err := ConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0700)
}

// ConfigFilePath joins file onto the config directory (~/.mdb).
func ConfigFilePath(file string) (string, error) {
	home := "."
	if usr, err := user.Current(); err == nil {
		home = usr.HomeDir
	}
	return path.Join(home, configDir, file), nil
}
