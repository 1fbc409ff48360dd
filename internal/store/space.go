package store

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
)

// EnsureFreeSpace verifies that the filesystem holding path has at least
// need bytes available. An encoded blob occupies the coded expansion of the
// padded input plus proof overhead, so callers should budget ~1.7x the blob
// size.
func EnsureFreeSpace(path string, need uint64) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("store: disk usage for %s: %w", path, err)
	}
	if usage.Free < need {
		return fmt.Errorf("store: %s has %d bytes free, need %d", path, usage.Free, need)
	}
	return nil
}
