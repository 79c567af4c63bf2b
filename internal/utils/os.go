package utils

import (
	"os"
	"path/filepath"
)

// ExecutableName is the name the binary was started as, used in hints that
// tell the user which command to run next.
func ExecutableName() string {
	executable, err := os.Executable()
	if err != nil {
		return "camel-keys"
	}
	return filepath.Base(executable)
}
