package workspace

import (
	"time"

	"github.com/grovetools/lore/pkg/models"
)

// Encoding selects how file content travels over the wire.
type Encoding string

const (
	EncodingUTF8   Encoding = "utf8"
	EncodingBase64 Encoding = "base64"
)

// DirEntry describes one child produced by a directory listing.
type DirEntry struct {
	Name string      `json:"name"`
	Path string      `json:"path"`
	Kind models.Kind `json:"kind"`
}

// Stat is the metadata of a single stat call. It is never cached.
type Stat struct {
	Kind      models.Kind `json:"kind"`
	Size      int64       `json:"size"`
	Mtime     time.Time   `json:"mtime"`
	Ctime     time.Time   `json:"ctime"`
	Mode      string      `json:"mode"`
	IsSymlink bool        `json:"isSymlink"`
}

// ReadDirOptions controls ReadDir.
type ReadDirOptions struct {
	Recursive bool `json:"recursive,omitempty"`
}

// ReadFileResult is returned by ReadFile.
type ReadFileResult struct {
	Data     string   `json:"data"`
	Encoding Encoding `json:"encoding"`
}

// WriteOptions controls WriteFile.
type WriteOptions struct {
	// Encoding of the data argument. Defaults to utf8.
	Encoding Encoding `json:"encoding,omitempty" jsonschema:"enum=utf8,enum=base64"`
	// NoMkdirp disables creation of missing parent directories.
	NoMkdirp bool `json:"noMkdirp,omitempty"`
	// ExpectedMtime turns the write into a conditional one: it only proceeds
	// when the file exists and its mtime still equals this value.
	ExpectedMtime *time.Time `json:"expectedMtime,omitempty"`
}

// WriteFileResult is returned by WriteFile.
type WriteFileResult struct {
	BytesWritten int `json:"bytesWritten"`
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	Recursive bool `json:"recursive,omitempty"`
}
