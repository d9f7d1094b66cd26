// Package paths resolves the configuration directory and the working
// directory scanned for bulk-JSON input files.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user configuration directory.
const AppName = "bulkdump"

// DefaultConfigDirName is the CWD-relative configuration directory used
// when it exists.
const DefaultConfigDirName = ".bulkdump"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "BULKDUMP_CONFIG_DIR"
	EnvWorkDir   = "BULKDUMP_WORK_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/bulkdump (fallback ~/.config/bulkdump)
// macOS:   ~/Library/Application Support/bulkdump
// Windows: %APPDATA%/bulkdump
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", AppName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > BULKDUMP_CONFIG_DIR env > $(CWD)/.bulkdump when
// it exists > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, DefaultConfigDirName)
	if info, err := os.Stat(local); err == nil && info.IsDir() {
		return local, nil
	}
	return DefaultConfigDir()
}

// ResolveWorkDir returns the directory scanned for input files following
// the precedence chain: flag > configYAMLValue > BULKDUMP_WORK_DIR env >
// current working directory.
func ResolveWorkDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvWorkDir); env != "" {
		return filepath.Abs(env)
	}
	return platformDir.getwd()
}
