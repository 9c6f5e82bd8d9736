package pathutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// Canonicalize returns the absolute, symlink-free form of path.
//
// Unlike filepath.EvalSymlinks it tolerates paths that do not exist yet: the
// longest existing ancestor is resolved and the missing tail is re-appended
// verbatim. Dangling symlinks on the way are followed to their target.
func Canonicalize(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := absPath
	var tail []string
	for hops := 0; ; {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !isNotDir(err) {
			return "", err
		}

		if info, lerr := os.Lstat(existing); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
			if hops++; hops > maxSymlinkHops {
				return "", fmt.Errorf("too many levels of symbolic links: %s", path)
			}
			target, err := os.Readlink(existing)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(existing), target)
			}
			existing = filepath.Clean(target)
			continue
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return absPath, nil
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}
}

// IsWithin reports whether target equals root or is a descendant of it.
// Both arguments must already be canonical; no filesystem access happens here.
func IsWithin(root, target string) bool {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		root = strings.ToLower(root)
		target = strings.ToLower(target)
	}

	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

const maxSymlinkHops = 40

func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
