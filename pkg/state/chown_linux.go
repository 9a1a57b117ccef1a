//go:build linux
// +build linux

package state

import (
	"io/fs"
	"os"
	"path/filepath"
)

// chownTree applies uid/gid to every entry under root. Container runtimes
// with user-namespace remapping may already present the right ownership, so
// callers treat failure as a warning rather than an error.
func chownTree(root string, uid, gid int) error {
	return filepath.WalkDir(root, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		return os.Chown(path, uid, gid)
	})
}
