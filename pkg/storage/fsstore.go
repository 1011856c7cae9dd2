package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cuemby/restbackup/pkg/apierr"
	"github.com/cuemby/restbackup/pkg/types"
)

// shardNames is the fixed 00..ff set of data shard directories created
// for every new repository.
var shardNames = func() []string {
	names := make([]string, 0, 256)
	for i := 0; i < 256; i++ {
		names = append(names, fmt.Sprintf("%02x", i))
	}
	return names
}()

var allKinds = []types.ObjectKind{
	types.KindKeys,
	types.KindSnapshots,
	types.KindIndex,
	types.KindData,
	types.KindLocks,
}

// FSBackend implements Backend over a local filesystem rooted at
// dataDir. Each repository is a directory tree; writes are made
// durable via a create-exclusive link/rename discipline so that two
// concurrent writers of the same object never both observe success
// and a crash never leaves a named partial file behind.
type FSBackend struct {
	root  string
	quota int64

	sizeMu    sync.Mutex
	sizeCache map[string]int64
}

// NewFSBackend opens (without requiring it to already exist) a
// filesystem backend rooted at dataDir. quotaBytes of 0 disables
// quota enforcement.
func NewFSBackend(dataDir string, quotaBytes int64) (*FSBackend, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, apierr.Wrap(apierr.Io, "failed to prepare data directory", err)
	}
	return &FSBackend{
		root:      dataDir,
		quota:     quotaBytes,
		sizeCache: make(map[string]int64),
	}, nil
}

func (b *FSBackend) repoDir(repo string) string {
	return filepath.Join(b.root, filepath.FromSlash(repo))
}

func (b *FSBackend) kindDir(repo string, kind types.ObjectKind) string {
	return filepath.Join(b.repoDir(repo), string(kind))
}

func (b *FSBackend) objectPath(repo string, kind types.ObjectKind, name string) string {
	if kind == types.KindConfig {
		return filepath.Join(b.repoDir(repo), "config")
	}
	dir := b.kindDir(repo, kind)
	if kind.Sharded() {
		dir = filepath.Join(dir, types.Shard(name))
	}
	return filepath.Join(dir, name)
}

// CreateRepo implements Backend.
func (b *FSBackend) CreateRepo(repo string) error {
	dir := b.repoDir(repo)
	if err := os.MkdirAll(filepath.Dir(dir), 0o750); err != nil {
		return apierr.Wrap(apierr.Io, "failed to create repository", err)
	}
	if err := os.Mkdir(dir, 0o750); err != nil {
		if os.IsExist(err) {
			return apierr.New(apierr.Conflict, "repository already exists")
		}
		return apierr.Wrap(apierr.Io, "failed to create repository", err)
	}

	for _, kind := range allKinds {
		if err := os.MkdirAll(b.kindDir(repo, kind), 0o750); err != nil {
			return apierr.Wrap(apierr.Io, "failed to create repository", err)
		}
	}
	dataDir := b.kindDir(repo, types.KindData)
	for _, shard := range shardNames {
		if err := os.Mkdir(filepath.Join(dataDir, shard), 0o750); err != nil {
			return apierr.Wrap(apierr.Io, "failed to create repository", err)
		}
	}
	return nil
}

// RepoExists implements Backend. A repository is considered
// initialized once its data-shard tree or its config object is
// present; the shard tree alone lets objects be written before config
// is (§4.5), while Exists on config still reports false until config
// itself is written.
func (b *FSBackend) RepoExists(repo string) bool {
	if info, err := os.Stat(b.kindDir(repo, types.KindData)); err == nil && info.IsDir() {
		return true
	}
	return b.Exists(repo, types.KindConfig, "")
}

// Exists implements Backend.
func (b *FSBackend) Exists(repo string, kind types.ObjectKind, name string) bool {
	_, err := os.Stat(b.objectPath(repo, kind, name))
	return err == nil
}

// Stat implements Backend.
func (b *FSBackend) Stat(repo string, kind types.ObjectKind, name string) (types.Entry, error) {
	info, err := os.Stat(b.objectPath(repo, kind, name))
	if err != nil {
		return types.Entry{}, apierr.New(apierr.NotFound, "object not found")
	}
	return types.Entry{Name: name, Size: info.Size(), Mtime: info.ModTime()}, nil
}

// List implements Backend. Entries whose names fail the kind's regex
// are skipped, since they can only be partially-written temp files
// left by a crashed writer (§4.2).
func (b *FSBackend) List(repo string, kind types.ObjectKind) ([]types.Entry, error) {
	if !b.RepoExists(repo) {
		return nil, apierr.New(apierr.NotFound, "repository not found")
	}

	var entries []types.Entry
	if kind.Sharded() {
		base := b.kindDir(repo, kind)
		for _, shard := range shardNames {
			shardEntries, err := listDir(filepath.Join(base, shard), kind)
			if err != nil {
				return nil, err
			}
			entries = append(entries, shardEntries...)
		}
		return entries, nil
	}

	return listDir(b.kindDir(repo, kind), kind)
}

func listDir(dir string, kind types.ObjectKind) ([]types.Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.Wrap(apierr.Io, "failed to list objects", err)
	}

	entries := make([]types.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !types.ValidName(kind, de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, types.Entry{Name: de.Name(), Size: info.Size(), Mtime: info.ModTime()})
	}
	return entries, nil
}

// Read implements Backend.
func (b *FSBackend) Read(repo string, kind types.ObjectKind, name string, rng *ByteRange) (io.ReadCloser, int64, *ByteRange, error) {
	path := b.objectPath(repo, kind, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, nil, apierr.New(apierr.NotFound, "object not found")
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, nil, apierr.Wrap(apierr.Io, "failed to stat object", err)
	}
	size := info.Size()

	if rng == nil {
		return f, size, nil, nil
	}

	start, end := rng.Start, rng.End
	if end < 0 || end >= size {
		end = size - 1
	}
	if start < 0 || size == 0 || start > end || start >= size {
		f.Close()
		return nil, 0, nil, apierr.New(apierr.RangeNotSatisfiable, "range not satisfiable")
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, nil, apierr.Wrap(apierr.Io, "failed to seek", err)
	}

	clamped := &ByteRange{Start: start, End: end}
	return &limitedReadCloser{r: io.LimitReader(f, end-start+1), c: f}, size, clamped, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }

// Write implements Backend. The body is streamed into a uniquely
// named temporary file in the destination directory, flushed, and
// then published with os.Link followed by os.Remove of the temp name.
// Link fails atomically with EEXIST if the destination is already
// taken, which is what gives create-exclusive semantics without an
// in-process lock (§4.2, §5).
func (b *FSBackend) Write(repo string, kind types.ObjectKind, name string, body io.Reader) (int64, error) {
	if !b.RepoExists(repo) {
		return 0, apierr.New(apierr.NotFound, "repository not found")
	}

	dir := b.kindDir(repo, kind)
	if kind == types.KindConfig {
		dir = b.repoDir(repo)
	} else if kind.Sharded() {
		dir = filepath.Join(dir, types.Shard(name))
	}

	finalPath := b.objectPath(repo, kind, name)
	if _, err := os.Stat(finalPath); err == nil {
		return 0, apierr.New(apierr.Conflict, "object already exists")
	}

	tmpPath := filepath.Join(dir, "."+uuid.NewString()+".tmp")
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return 0, apierr.Wrap(apierr.Io, "failed to create temp file", err)
	}
	removeTmp := func() { os.Remove(tmpPath) }

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		removeTmp()
		return 0, apierr.Wrap(apierr.Io, "failed to write object", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		removeTmp()
		return 0, apierr.Wrap(apierr.Io, "failed to flush object", err)
	}
	if err := tmp.Close(); err != nil {
		removeTmp()
		return 0, apierr.Wrap(apierr.Io, "failed to close object", err)
	}

	if b.quota > 0 {
		used, err := b.repoSize(repo)
		if err != nil {
			removeTmp()
			return 0, err
		}
		if used+n > b.quota {
			removeTmp()
			return 0, apierr.New(apierr.QuotaExceeded, "repository quota exceeded")
		}
	}

	if err := os.Link(tmpPath, finalPath); err != nil {
		removeTmp()
		if os.IsExist(err) {
			return 0, apierr.New(apierr.Conflict, "object already exists")
		}
		return 0, apierr.Wrap(apierr.Io, "failed to publish object", err)
	}
	removeTmp()
	b.bumpCache(repo, n)
	return n, nil
}

// Delete implements Backend.
func (b *FSBackend) Delete(repo string, kind types.ObjectKind, name string) error {
	path := b.objectPath(repo, kind, name)
	info, statErr := os.Stat(path)
	if statErr != nil {
		return apierr.New(apierr.NotFound, "object not found")
	}
	if err := os.Remove(path); err != nil {
		return apierr.Wrap(apierr.Io, "failed to delete object", err)
	}
	b.bumpCache(repo, -info.Size())
	return nil
}

// ListRepos implements Backend by walking the data directory for
// subtrees that look like initialized repositories (a data/ directory
// present). It is used only for metrics reporting, not the request
// path, so a full walk on every metrics collector tick is an
// acceptable cost.
func (b *FSBackend) ListRepos() ([]string, error) {
	var repos []string
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == b.root {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, string(types.KindData))); statErr == nil {
			rel, relErr := filepath.Rel(b.root, path)
			if relErr == nil {
				repos = append(repos, filepath.ToSlash(rel))
			}
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.Io, "failed to list repositories", err)
	}
	return repos, nil
}

// repoSize returns the cumulative on-disk size of repo, walking the
// subtree on a cache miss. The cache is bumped after every successful
// write or delete; it does not include writes that are still in
// flight, so concurrent writes that each pass the quota check can
// together push the repository past its quota (§4.2, §5).
func (b *FSBackend) repoSize(repo string) (int64, error) {
	b.sizeMu.Lock()
	if v, ok := b.sizeCache[repo]; ok {
		b.sizeMu.Unlock()
		return v, nil
	}
	b.sizeMu.Unlock()

	var total int64
	err := filepath.WalkDir(b.repoDir(repo), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isTempObjectName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, apierr.Wrap(apierr.Io, "failed to compute repository size", err)
	}

	b.sizeMu.Lock()
	b.sizeCache[repo] = total
	b.sizeMu.Unlock()
	return total, nil
}

// isTempObjectName reports whether name is one of Write's in-flight
// temp files (".<uuid>.tmp"), so repoSize's cold-cache walk excludes
// bytes that have not been published yet — otherwise a write's own
// temp file would be double-counted against its own quota check.
func isTempObjectName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

func (b *FSBackend) bumpCache(repo string, delta int64) {
	b.sizeMu.Lock()
	defer b.sizeMu.Unlock()
	if v, ok := b.sizeCache[repo]; ok {
		b.sizeCache[repo] = v + delta
	}
}

var _ Backend = (*FSBackend)(nil)
