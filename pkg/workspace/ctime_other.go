//go:build !linux && !darwin

package workspace

import (
	"os"
	"time"
)

// changeTime falls back to the modification time where the platform stat
// structure carries no change time.
func changeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
