// Package storage implements the content-addressed filesystem backend
// (component C2 of the REST backup protocol): create/open/list/stat/
// read-range/write/delete over a two-level on-disk layout, with
// atomic-create semantics and per-repository quota enforcement.
package storage

import (
	"io"

	"github.com/cuemby/restbackup/pkg/types"
)

// ByteRange is a single, inclusive byte-range request. End of -1
// means "to end of file".
type ByteRange struct {
	Start int64
	End   int64 // -1 if unbounded
}

// Backend is the storage contract described in spec.md §4.2.
type Backend interface {
	// CreateRepo creates the directory tree and empty kind
	// subdirectories (plus 256 data shards) for repo. Returns an
	// apierr Conflict if the repo already exists.
	CreateRepo(repo string) error

	// RepoExists reports whether repo has been created, per the
	// existence rule in spec.md §3.2 (config object present, or the
	// directory tree with initialized shard structure).
	RepoExists(repo string) bool

	// Exists reports whether a specific object exists. name is
	// ignored for KindConfig.
	Exists(repo string, kind types.ObjectKind, name string) bool

	// List returns the entries of kind in repo. For KindData this is
	// the union over all 256 shards. Order is not guaranteed.
	List(repo string, kind types.ObjectKind) ([]types.Entry, error)

	// Stat returns size and mtime for an object.
	Stat(repo string, kind types.ObjectKind, name string) (types.Entry, error)

	// Read opens a (possibly range-restricted) reader over an
	// object's bytes along with the total object size and, when rng
	// was non-nil, the clamped range actually served. Callers must
	// Close the returned ReadCloser.
	Read(repo string, kind types.ObjectKind, name string, rng *ByteRange) (io.ReadCloser, int64, *ByteRange, error)

	// Write streams body into a new object under repo/kind/name.
	// Fails with Conflict if the object already exists, QuotaExceeded
	// if the write would push the repository over its byte budget,
	// and never leaves a partial object visible on either path.
	Write(repo string, kind types.ObjectKind, name string, body io.Reader) (int64, error)

	// Delete removes an object. Fails with NotFound if absent.
	Delete(repo string, kind types.ObjectKind, name string) error

	// ListRepos returns the slash-joined path of every repository
	// created so far. Used only for metrics reporting.
	ListRepos() ([]string, error)
}
