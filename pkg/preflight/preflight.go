// Package preflight provides validation checks that run before the
// backup pipeline starts, ensuring the system is in a suitable state
// for the operation to proceed. Apart from creating the target
// directory, the checks do not change the system's state.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckSourceAccessible validates that the source path exists and is a directory.
func CheckSourceAccessible(srcPath string) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source directory %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source directory %s: %w", srcPath, err)
	}

	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}

	return nil
}

// CheckTargetWritable ensures the target directory can be created and is
// writable by performing filesystem modifications.
func CheckTargetWritable(targetPath string) error {
	// If the path already exists it must be a directory; MkdirAll would
	// report this too, but with a less helpful message.
	if info, err := os.Stat(targetPath); err == nil && !info.IsDir() {
		return fmt.Errorf("target path exists but is not a directory: %s", targetPath)
	}

	// Ensure the destination directory can be created.
	if err := os.MkdirAll(targetPath, 0755); err != nil {
		return fmt.Errorf("failed to create target directory %s: %w", targetPath, err)
	}

	// Perform a thorough write check by creating and deleting a temporary file.
	tempFile := filepath.Join(targetPath, ".folderback-writetest.tmp")
	f, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("target directory %s is not writable: %w", targetPath, err)
	}
	f.Close()
	_ = os.Remove(tempFile)
	return nil
}
