package helper

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv names an extra directory searched before the system fallback
const ConfigDirEnv = "AGRIDASH_CONFIG_DIR"

// SystemConfigDir is the last-resort location for configuration files
const SystemConfigDir = "/etc/agridash"

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. ./{filename}, ./configs/{filename}, then $AGRIDASH_CONFIG_DIR/{filename}
// 3. Otherwise, fallback to /etc/agridash/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	for _, candidate := range candidatePaths(filename) {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}

	return filepath.Join(SystemConfigDir, filename)
}

func candidatePaths(filename string) []string {
	var paths []string
	if wd, err := os.Getwd(); err == nil && wd != "" {
		paths = append(paths,
			filepath.Join(wd, filename),
			filepath.Join(wd, "configs", filename),
		)
	}
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		paths = append(paths, filepath.Join(dir, filename))
	}
	return paths
}
