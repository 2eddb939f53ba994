// Package fsutil provides filesystem lookups shared by the evaluator (include
// resolution, working directory), the graph builder and the executor
// (staleness).
package fsutil

import (
	"os"
	"time"
)

// Getwd returns the working directory, or "." if it cannot be determined.
func Getwd() string {
	pwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return pwd
}

// Exists reports whether the named file or directory exists.
func Exists(name string) bool {
	_, err := os.Lstat(name)
	return err == nil
}

// Mtime returns the modification time of the named file. The boolean is
// false if the file does not exist or cannot be stated.
func Mtime(name string) (time.Time, bool) {
	info, err := os.Stat(name)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
