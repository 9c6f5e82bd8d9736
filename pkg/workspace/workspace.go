// Package workspace implements the sandboxed file operations lore exposes over
// a single root directory. Every operation resolves its paths through a
// Resolver before touching the disk.
package workspace

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/grovetools/lore/errors"
	"github.com/grovetools/lore/pkg/models"
	"github.com/grovetools/lore/util/pathutil"
)

// Workspace performs file operations relative to a Resolver's root.
// It holds no mutable state and is safe for concurrent use.
type Workspace struct {
	resolver *Resolver
}

// New creates a Workspace over the given resolver.
func New(resolver *Resolver) *Workspace {
	return &Workspace{resolver: resolver}
}

// Open is a convenience for New(NewResolver(root)).
func Open(root string) (*Workspace, error) {
	r, err := NewResolver(root)
	if err != nil {
		return nil, err
	}
	return New(r), nil
}

// Root returns the canonical workspace root.
func (w *Workspace) Root() string {
	return w.resolver.Root()
}

// Resolver returns the resolver the workspace validates paths with.
func (w *Workspace) Resolver() *Resolver {
	return w.resolver
}

// ReadDir lists the children of path, or its whole subtree when
// opts.Recursive is set. Order is whatever the filesystem returns.
func (w *Workspace) ReadDir(ctx context.Context, rel string, opts ReadDirOptions) ([]DirEntry, error) {
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.FromOS(err, "readdir", rel)
	}
	if !info.IsDir() {
		return nil, errors.NotADirectory(rel)
	}

	if !opts.Recursive {
		children, err := os.ReadDir(abs)
		if err != nil {
			return nil, errors.FromOS(err, "readdir", rel)
		}
		entries := make([]DirEntry, 0, len(children))
		for _, child := range children {
			entries = append(entries, newDirEntry(joinRel(rel, child.Name()), child))
		}
		return entries, nil
	}

	// WalkDir does not descend into a symlinked root, so walk its target
	// and report entries under the path the caller asked for.
	walkRoot := abs
	if target, err := filepath.EvalSymlinks(abs); err == nil {
		walkRoot = target
	}
	var entries []DirEntry
	err = filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == walkRoot {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sub, err := filepath.Rel(walkRoot, p)
		if err != nil {
			return err
		}
		entries = append(entries, newDirEntry(joinRel(rel, filepath.ToSlash(sub)), d))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.FromOS(err, "readdir", rel)
	}
	if entries == nil {
		entries = []DirEntry{}
	}
	return entries, nil
}

// ReadFile returns the content of a file in the requested encoding.
func (w *Workspace) ReadFile(ctx context.Context, rel string, encoding Encoding) (*ReadFileResult, error) {
	encoding, err := normalizeEncoding(encoding)
	if err != nil {
		return nil, err
	}
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.FromOS(err, "readFile", rel)
	}

	result := &ReadFileResult{Encoding: encoding}
	if encoding == EncodingBase64 {
		result.Data = base64.StdEncoding.EncodeToString(data)
	} else {
		result.Data = string(data)
	}
	return result, nil
}

// WriteFile replaces the content of a file, creating it and its parent
// directories as needed. Without opts.ExpectedMtime the last writer wins.
func (w *Workspace) WriteFile(ctx context.Context, rel, data string, opts WriteOptions) (*WriteFileResult, error) {
	encoding, err := normalizeEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}
	if abs == w.resolver.Root() {
		return nil, errors.InvalidInput("cannot write to the workspace root")
	}

	payload := []byte(data)
	if encoding == EncodingBase64 {
		payload, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, errors.InvalidInput(fmt.Sprintf("data is not valid base64: %v", err))
		}
	}

	if opts.ExpectedMtime != nil {
		info, err := os.Stat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Conflict(rel, "file no longer exists")
			}
			return nil, errors.FromOS(err, "writeFile", rel)
		}
		if !info.ModTime().Equal(*opts.ExpectedMtime) {
			return nil, errors.Conflict(rel, "file was modified since it was read").
				WithDetail("mtime", info.ModTime())
		}
	}

	if !opts.NoMkdirp {
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, errors.FromOS(err, "writeFile", rel)
		}
	}
	if err := os.WriteFile(abs, payload, 0644); err != nil {
		return nil, errors.FromOS(err, "writeFile", rel)
	}
	return &WriteFileResult{BytesWritten: len(payload)}, nil
}

// Mkdir creates a directory. With recursive set, missing parents are created
// and an existing directory is not an error.
func (w *Workspace) Mkdir(ctx context.Context, rel string, recursive bool) error {
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return err
	}

	if info, err := os.Stat(abs); err == nil {
		if !info.IsDir() || !recursive {
			return errors.AlreadyExists(rel)
		}
		return nil
	}

	if recursive {
		err = os.MkdirAll(abs, 0755)
	} else {
		err = os.Mkdir(abs, 0755)
	}
	if err != nil {
		if errors.Is(errors.FromOS(err, "mkdir", rel), errors.ErrCodeNotADirectory) {
			// A file sits where a parent directory should be.
			return errors.AlreadyExists(rel)
		}
		return errors.FromOS(err, "mkdir", rel)
	}
	return nil
}

// Rename moves from onto to. An existing destination is replaced only when
// overwrite is set.
func (w *Workspace) Rename(ctx context.Context, from, to string, overwrite bool) error {
	absFrom, err := w.resolve(ctx, from)
	if err != nil {
		return err
	}
	absTo, err := w.resolver.Resolve(to)
	if err != nil {
		return err
	}
	root := w.resolver.Root()
	if absFrom == root || absTo == root {
		return errors.InvalidInput("cannot rename the workspace root")
	}

	if _, err := os.Lstat(absFrom); err != nil {
		return errors.FromOS(err, "rename", from)
	}
	if absFrom == absTo {
		return nil
	}
	if pathutil.IsWithin(absTo, absFrom) || pathutil.IsWithin(absFrom, absTo) {
		return errors.InvalidInput(fmt.Sprintf("cannot rename %s to %s: one contains the other", from, to))
	}

	// An overwritten directory is moved aside and removed only once the
	// source is in place; a failed rename puts it back.
	var aside string
	if dst, err := os.Lstat(absTo); err == nil {
		if !overwrite {
			return errors.AlreadyExists(to)
		}
		if dst.IsDir() {
			aside = filepath.Join(filepath.Dir(absTo), fmt.Sprintf(".%s.replaced-%d", filepath.Base(absTo), time.Now().UnixNano()))
			if err := os.Rename(absTo, aside); err != nil {
				return errors.FromOS(err, "rename", to)
			}
		}
	}

	if err := os.Rename(absFrom, absTo); err != nil {
		if aside != "" {
			if restoreErr := os.Rename(aside, absTo); restoreErr != nil {
				return errors.FromOS(restoreErr, "rename", to)
			}
		}
		return errors.FromOS(err, "rename", from)
	}
	if aside != "" {
		if err := os.RemoveAll(aside); err != nil {
			return errors.FromOS(err, "rename", to)
		}
	}
	return nil
}

// Remove deletes a file, or a directory tree when opts.Recursive is set.
// Removing a path that does not exist succeeds.
func (w *Workspace) Remove(ctx context.Context, rel string, opts RemoveOptions) error {
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return err
	}
	if abs == w.resolver.Root() {
		return errors.InvalidInput("cannot remove the workspace root")
	}

	info, err := os.Lstat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.FromOS(err, "remove", rel)
	}

	if info.IsDir() && opts.Recursive {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil && !os.IsNotExist(err) {
		return errors.FromOS(err, "remove", rel)
	}
	return nil
}

// Exists reports whether path exists. It only fails for paths outside the
// workspace.
func (w *Workspace) Exists(ctx context.Context, rel string) (bool, error) {
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	return err == nil, nil
}

// Stat returns metadata for path.
func (w *Workspace) Stat(ctx context.Context, rel string) (*Stat, error) {
	abs, err := w.resolve(ctx, rel)
	if err != nil {
		return nil, err
	}

	linfo, err := os.Lstat(abs)
	if err != nil {
		return nil, errors.FromOS(err, "stat", rel)
	}
	info := linfo
	isSymlink := linfo.Mode()&os.ModeSymlink != 0
	if isSymlink {
		if info, err = os.Stat(abs); err != nil {
			return nil, errors.FromOS(err, "stat", rel)
		}
	}

	return &Stat{
		Kind:      kindOf(info.IsDir()),
		Size:      info.Size(),
		Mtime:     info.ModTime(),
		Ctime:     changeTime(info),
		Mode:      info.Mode().Perm().String(),
		IsSymlink: isSymlink,
	}, nil
}

func (w *Workspace) resolve(ctx context.Context, rel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.resolver.Resolve(rel)
}

func normalizeEncoding(e Encoding) (Encoding, error) {
	switch e {
	case "":
		return EncodingUTF8, nil
	case EncodingUTF8, EncodingBase64:
		return e, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unsupported encoding %q", e))
	}
}

func newDirEntry(rel string, d fs.DirEntry) DirEntry {
	return DirEntry{
		Name: d.Name(),
		Path: rel,
		Kind: kindOf(d.IsDir()),
	}
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(path.Clean(dir), name)
}

func kindOf(isDir bool) models.Kind {
	if isDir {
		return models.KindDir
	}
	return models.KindFile
}
