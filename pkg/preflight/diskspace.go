package preflight

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// spaceSafetyFactor is how many times the source's logical size must be
// free on the destination volume. The factor leaves headroom for the
// uncompressed copy plus the archive existing at the same time.
const spaceSafetyFactor = 2

// CheckDiskSpace estimates whether the destination volume has enough
// free space for a backup of srcPath. It returns the required and free
// byte counts so the caller can log them.
//
// The check is advisory: an error means the measurement itself failed
// and the caller should proceed, not abort.
func CheckDiskSpace(srcPath, targetPath string) (required, free int64, err error) {
	srcSize, err := DirSize(srcPath)
	if err != nil {
		return 0, 0, fmt.Errorf("could not measure source size: %w", err)
	}

	free, err = freeBytes(targetPath)
	if err != nil {
		return 0, 0, fmt.Errorf("could not query free space for %s: %w", targetPath, err)
	}

	return srcSize * spaceSafetyFactor, free, nil
}

// DirSize walks the tree rooted at path and sums the sizes of all
// regular files. Entries that cannot be read are skipped; the result is
// a best-effort estimate, not an exact accounting.
func DirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == path {
				return walkErr // The root itself is unreadable.
			}
			return nil // Skip unreadable entries.
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("directory %s does not exist", path)
		}
		return 0, err
	}
	return total, nil
}
