package testutil

import (
	"os"
	"path/filepath"
	"time"

	"src.kati.dev/pkg/must"
)

// TempDir creates a temporary directory for testing that will be removed
// after the test finishes. It is different from testing.TB.TempDir in that it
// resolves symlinks in the path of the directory.
//
// It panics if the test directory cannot be created or symlinks cannot be
// resolved. It is only suitable for use in tests.
func TempDir(c Cleanuper) string {
	dir, err := os.MkdirTemp("", "kati-test")
	if err != nil {
		panic(err)
	}
	dir, err = filepath.EvalSymlinks(dir)
	if err != nil {
		panic(err)
	}
	c.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// Chdir changes into dir and restores the original working directory when the
// test finishes.
func Chdir(c Cleanuper, dir string) {
	oldWd := must.OK1(os.Getwd())
	must.Chdir(dir)
	c.Cleanup(func() { must.Chdir(oldWd) })
}

// InTempDir is like TempDir, but also changes into the test directory.
func InTempDir(c Cleanuper) string {
	dir := TempDir(c)
	Chdir(c, dir)
	return dir
}

// Dir describes the layout of a directory. The keys of the map represent
// filenames. Each value is either a string (the content of a regular file
// with permission 0644) or a Dir (a subdirectory).
type Dir map[string]interface{}

// ApplyDir creates the given filesystem layout in the current directory.
func ApplyDir(dir Dir) {
	applyDir(dir, "")
}

func applyDir(dir Dir, prefix string) {
	for name, file := range dir {
		path := filepath.Join(prefix, name)
		switch file := file.(type) {
		case string:
			must.OK(os.WriteFile(path, []byte(file), 0644))
		case Dir:
			must.OK(os.MkdirAll(path, 0755))
			applyDir(file, path)
		default:
			panic("file is neither string nor Dir")
		}
	}
}

// Touch sets the modification time of the named file, creating it empty if it
// does not exist. Staleness tests use it to fabricate old and new artifacts.
func Touch(name string, mtime time.Time) {
	if _, err := os.Stat(name); os.IsNotExist(err) {
		must.CreateEmpty(name)
	}
	must.OK(os.Chtimes(name, mtime, mtime))
}
