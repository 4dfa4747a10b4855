// Package scan discovers the directories a run processes.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/keagan/camstitch/pkg/util"
)

// Directory is one directory under the scan root and the names of the
// regular files directly inside it. Err is set when the directory could not
// be read; Files then holds whatever was listed before the failure.
type Directory struct {
	Path  string
	Files []string
	Err   error
}

// Directories walks root and returns every directory beneath it, root
// included, in lexical path order.
//
// Directories whose base name is in skipNames (the per-directory work
// folder) are not entered, nor are hidden directories. Directories with no
// files are still returned so the caller can report them as skipped.
// Symlinks are followed only when they resolve to a regular file.
//
// Only a failure to read root itself is returned as an error. Unreadable
// directories below it are returned with Err set and are not descended
// into, so their siblings are still scanned.
func Directories(root string, skipNames ...string) ([]Directory, error) {
	root = filepath.Clean(root)
	skip := make(map[string]struct{}, len(skipNames))
	for _, n := range skipNames {
		n = strings.TrimSpace(n)
		if n != "" {
			skip[n] = struct{}{}
		}
	}

	index := make(map[string]int)
	dirs := make([]Directory, 0, 16)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d == nil || !d.IsDir() {
				return nil
			}
			if i, ok := index[path]; ok {
				dirs[i].Err = walkErr
			} else {
				index[path] = len(dirs)
				dirs = append(dirs, Directory{Path: path, Err: walkErr})
			}
			return filepath.SkipDir
		}

		if d.IsDir() {
			if path != root {
				if _, ok := skip[d.Name()]; ok || util.IsHidden(path) {
					return filepath.SkipDir
				}
			}
			index[path] = len(dirs)
			dirs = append(dirs, Directory{Path: path})
			return nil
		}

		if !isRegular(path, d) {
			return nil
		}

		parent := filepath.Dir(path)
		if i, ok := index[parent]; ok {
			dirs[i].Files = append(dirs[i].Files, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Path < dirs[j].Path })
	for i := range dirs {
		sort.Strings(dirs[i].Files)
	}
	return dirs, nil
}

func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
