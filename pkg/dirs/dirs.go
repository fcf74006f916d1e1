package dirs

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "vembed"

// GetDataDir returns the path to the data directory, creating it if it doesn't exist.
// VEMBED_DATA_DIR overrides the platform default.
func GetDataDir() (string, error) {
	dataDir := os.Getenv("VEMBED_DATA_DIR")

	if dataDir == "" {
		configDir, err := os.UserConfigDir()
		if err == nil {
			dataDir = filepath.Join(configDir, appName)
		} else if exePath, err := os.Executable(); err == nil {
			// Fallback to executable location
			dataDir = filepath.Join(filepath.Dir(exePath), appName+"-data")
		}
	}

	if dataDir == "" {
		return "", fmt.Errorf("failed to find data directory path")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
