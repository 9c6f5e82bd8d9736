package workspace

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/util/pathutil"
)

// Resolver maps workspace-relative, slash-separated paths onto absolute
// paths under a single root and refuses anything that would leave it.
type Resolver struct {
	root string
}

// NewResolver creates a Resolver anchored at root. The root must be an
// absolute path; it is canonicalized once here and never changes afterwards.
func NewResolver(root string) (*Resolver, error) {
	if !filepath.IsAbs(root) {
		return nil, errors.InvalidInput(fmt.Sprintf("workspace root must be absolute: %s", root))
	}
	canonical, err := pathutil.Canonicalize(root)
	if err != nil {
		return nil, errors.IO(err, "resolve root", root)
	}
	return &Resolver{root: canonical}, nil
}

// Root returns the canonical workspace root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates rel and returns the absolute path it names. The empty
// string names the root itself.
//
// Any ".." segment, absolute or drive-letter prefix, or symlink whose target
// lies outside the root yields an OUT_OF_BOUNDS error.
func (r *Resolver) Resolve(rel string) (string, error) {
	if err := checkRelative(rel); err != nil {
		return "", err
	}

	cleaned := path.Clean("/" + rel)
	abs := filepath.Join(r.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))

	canonical, err := pathutil.Canonicalize(abs)
	if err != nil {
		return "", errors.IO(err, "resolve", rel)
	}
	if !pathutil.IsWithin(r.root, canonical) {
		return "", errors.OutOfBounds(rel)
	}
	return abs, nil
}

// ToRelative converts an absolute path into its workspace-relative, slash
// separated form. ok is false when abs lies outside the root; this is not an
// error, callers use it to drop unrelated paths.
func (r *Resolver) ToRelative(abs string) (rel string, ok bool) {
	if !filepath.IsAbs(abs) {
		return "", false
	}
	cleaned := filepath.Clean(abs)
	if !pathutil.IsWithin(r.root, cleaned) {
		return "", false
	}
	rp, err := filepath.Rel(r.root, cleaned)
	if err != nil {
		return "", false
	}
	if rp == "." {
		return "", true
	}
	return filepath.ToSlash(rp), true
}

func checkRelative(rel string) error {
	if rel == "" {
		return nil
	}
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.IsAbs(rel) || hasDriveLetter(rel) {
		return errors.OutOfBounds(rel)
	}
	if strings.ContainsRune(rel, 0) {
		return errors.InvalidInput("path contains a NUL byte")
	}
	for _, seg := range strings.FieldsFunc(rel, isSeparator) {
		if seg == ".." {
			return errors.OutOfBounds(rel)
		}
	}
	return nil
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
