package document

import "path/filepath"

// Source identifies where a document originated so loaders can operate on
// files, fs entries, or in-memory payloads without leaking implementation
// details.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the loader modalities.
type SourceKind string

const (
	SourceKindFile  SourceKind = "file"
	SourceKindBytes SourceKind = "bytes"
)

type fileSource struct {
	path string
}

func (s fileSource) Location() string { return s.path }
func (s fileSource) Kind() SourceKind { return SourceKindFile }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

// BytesSource carries an in-memory payload alongside a display name. Loaders
// use the payload directly instead of touching the filesystem.
type BytesSource struct {
	Name    string
	Payload []byte
}

func (s BytesSource) Location() string { return s.Name }
func (s BytesSource) Kind() SourceKind { return SourceKindBytes }

// SourceFromBytes returns a Source wrapping an in-memory payload.
func SourceFromBytes(name string, payload []byte) Source {
	return BytesSource{Name: name, Payload: payload}
}
