package installer

import (
	"fmt"
	"math"
	"path/filepath"
	"time"
)

// DefaultSelfDeleteDelay gives the updater time to exit before its folder is removed
const DefaultSelfDeleteDelay = 3 * time.Second

func checkDeletePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no folder to delete")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return "", fmt.Errorf("refusing to delete root folder %s", abs)
	}
	return abs, nil
}

// delaySeconds rounds delay to whole seconds, at least one
func delaySeconds(delay time.Duration) int {
	return int(math.Max(1, math.Round(delay.Seconds())))
}
