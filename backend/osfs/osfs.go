// Package osfs is a vfs.FileSystem back-end that mirrors a directory of
// the host filesystem. Fileids are assigned on first sight of a path
// and held in a bidirectional map for the life of the process; the
// host path itself is the ground truth for every attribute, so a file
// changed out from under the server (by another process touching the
// mirrored directory) is reflected on the next call that reaches it.
package osfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/xetdata/nfsserve/internal/vfs"
)

const rootID uint64 = 1

// FS mirrors root on the host filesystem. The zero value is not
// usable; construct one with New.
type FS struct {
	mu       sync.Mutex
	root     string
	nextID   atomic.Uint64
	idToPath map[uint64]string // relative to root; "" is root itself
	pathToID map[string]uint64
	serverID uint64
	readOnly bool
}

// Option configures a FS at construction time.
type Option func(*FS)

// ReadOnly marks the filesystem as rejecting every mutating call with
// NFS3ERR_ROFS regardless of the host directory's own permissions.
func ReadOnly() Option {
	return func(f *FS) { f.readOnly = true }
}

// New mirrors root, which must already exist and be a directory.
func New(root string, opts ...Option) (*FS, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("osfs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("osfs: %s is not a directory", root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("osfs: %w", err)
	}

	f := &FS{
		root:     abs,
		idToPath: map[uint64]string{rootID: ""},
		pathToID: map[string]uint64{"": rootID},
		serverID: serverIDFromUUID(uuid.New()),
	}
	f.nextID.Store(rootID + 1)
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func serverIDFromUUID(id uuid.UUID) uint64 {
	var v uint64
	for _, b := range id[8:] {
		v = v<<8 | uint64(b)
	}
	return v
}

func (f *FS) Capabilities() vfs.Capabilities { return vfs.Capabilities{ReadOnly: f.readOnly} }
func (f *FS) RootDir() uint64                { return rootID }
func (f *FS) ServerID() uint64               { return f.serverID }

// hostPath resolves a fileid to its absolute host path. Caller must
// hold f.mu.
func (f *FS) hostPath(id uint64) (string, bool) {
	rel, ok := f.idToPath[id]
	if !ok {
		return "", false
	}
	return filepath.Join(f.root, rel), true
}

// idFor assigns or reuses the fileid for a relative path. Caller must
// hold f.mu.
func (f *FS) idFor(rel string) uint64 {
	if id, ok := f.pathToID[rel]; ok {
		return id
	}
	id := f.nextID.Add(1) - 1
	f.idToPath[id] = rel
	f.pathToID[rel] = id
	return id
}

// forget drops a path (and, for directories, no longer-reachable
// descendants) from the id maps after a removal or rename away. Caller
// must hold f.mu.
func (f *FS) forget(rel string) {
	id, ok := f.pathToID[rel]
	if !ok {
		return
	}
	delete(f.pathToID, rel)
	delete(f.idToPath, id)
	prefix := rel + "/"
	for childRel, childID := range f.pathToID {
		if len(childRel) > len(prefix) && childRel[:len(prefix)] == prefix {
			delete(f.pathToID, childRel)
			delete(f.idToPath, childID)
		}
	}
}

// rebase updates a path (and its descendants) after a rename. Caller
// must hold f.mu.
func (f *FS) rebase(oldRel, newRel string) {
	id, ok := f.pathToID[oldRel]
	if !ok {
		return
	}
	delete(f.pathToID, oldRel)
	f.pathToID[newRel] = id
	f.idToPath[id] = newRel

	oldPrefix := oldRel + "/"
	for childRel, childID := range f.pathToID {
		if len(childRel) > len(oldPrefix) && childRel[:len(oldPrefix)] == oldPrefix {
			rebased := newRel + childRel[len(oldRel):]
			delete(f.pathToID, childRel)
			f.pathToID[rebased] = childID
			f.idToPath[childID] = rebased
		}
	}
}

func joinRel(dirRel, name string) string {
	if dirRel == "" {
		return name
	}
	return dirRel + "/" + name
}

func toStatus(err error) vfs.Status {
	switch {
	case err == nil:
		return vfs.StatusOK
	case errors.Is(err, fs.ErrNotExist):
		return vfs.StatusNoEnt
	case errors.Is(err, fs.ErrExist):
		return vfs.StatusExist
	case errors.Is(err, fs.ErrPermission):
		return vfs.StatusAccess
	default:
		return vfs.StatusIO
	}
}

func metadataToFattr3(id uint64, info os.FileInfo) vfs.Fattr3 {
	a := vfs.Fattr3{
		FileID: id,
		Mode:   uint32(info.Mode().Perm()),
		Size:   uint64(info.Size()),
		NLink:  1,
	}
	switch {
	case info.IsDir():
		a.Type = vfs.FileTypeDir
	case info.Mode()&os.ModeSymlink != 0:
		a.Type = vfs.FileTypeLink
	default:
		a.Type = vfs.FileTypeRegular
	}

	mtime := vfs.FromTime(info.ModTime())
	a.MTime = mtime
	a.ATime = mtime
	a.CTime = mtime

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		a.UID = st.Uid
		a.GID = st.Gid
		a.NLink = uint32(st.Nlink)
		a.ATime = vfs.NFSTime{Seconds: uint32(st.Atim.Sec), Nanoseconds: uint32(st.Atim.Nsec)}
		a.CTime = vfs.NFSTime{Seconds: uint32(st.Ctim.Sec), Nanoseconds: uint32(st.Ctim.Nsec)}
	}
	return a
}

func (f *FS) Lookup(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dirRel, ok := f.idToPath[dir]
	if !ok {
		return 0, vfs.StatusStale
	}

	switch name {
	case ".":
		return dir, vfs.StatusOK
	case "..":
		if dirRel == "" {
			return rootID, vfs.StatusOK
		}
		parentRel := filepath.Dir(dirRel)
		if parentRel == "." {
			parentRel = ""
		}
		return f.idFor(parentRel), vfs.StatusOK
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)
	info, err := os.Lstat(full)
	if err != nil {
		return 0, toStatus(err)
	}
	if !info.IsDir() && !info.Mode().IsRegular() && info.Mode()&os.ModeSymlink == 0 {
		return 0, vfs.StatusNotSupp
	}
	return f.idFor(rel), vfs.StatusOK
}

func (f *FS) GetAttr(ctx context.Context, id uint64, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	full, ok := f.hostPath(id)
	f.mu.Unlock()
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}

	info, err := os.Lstat(full)
	if err != nil {
		return vfs.Fattr3{}, toStatus(err)
	}
	return metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) SetAttr(ctx context.Context, id uint64, attr vfs.Sattr3, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	full, ok := f.hostPath(id)
	f.mu.Unlock()
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}

	if attr.Mode.Set {
		if err := os.Chmod(full, os.FileMode(attr.Mode.Mode&0o7777)); err != nil {
			return vfs.Fattr3{}, toStatus(err)
		}
	}
	if attr.UID.Set || attr.GID.Set {
		uid, gid := -1, -1
		if attr.UID.Set {
			uid = int(attr.UID.UID)
		}
		if attr.GID.Set {
			gid = int(attr.GID.GID)
		}
		if err := os.Chown(full, uid, gid); err != nil {
			return vfs.Fattr3{}, toStatus(err)
		}
	}
	if attr.Size.Set {
		if err := os.Truncate(full, int64(attr.Size.Size)); err != nil {
			return vfs.Fattr3{}, toStatus(err)
		}
	}
	if attr.ATime.How != vfs.TimeDontChange || attr.MTime.How != vfs.TimeDontChange {
		info, err := os.Lstat(full)
		if err != nil {
			return vfs.Fattr3{}, toStatus(err)
		}
		atime, mtime := info.ModTime(), info.ModTime()
		now := time.Now()
		if attr.ATime.How == vfs.TimeSetToServer {
			atime = now
		} else if attr.ATime.How == vfs.TimeSetToClient {
			atime = attr.ATime.Time.Time()
		}
		if attr.MTime.How == vfs.TimeSetToServer {
			mtime = now
		} else if attr.MTime.How == vfs.TimeSetToClient {
			mtime = attr.MTime.Time.Time()
		}
		if err := os.Chtimes(full, atime, mtime); err != nil {
			return vfs.Fattr3{}, toStatus(err)
		}
	}

	info, err := os.Lstat(full)
	if err != nil {
		return vfs.Fattr3{}, toStatus(err)
	}
	return metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) Read(ctx context.Context, id uint64, offset uint64, count uint32, user vfs.UserContext) ([]byte, bool, vfs.Status) {
	f.mu.Lock()
	full, ok := f.hostPath(id)
	f.mu.Unlock()
	if !ok {
		return nil, false, vfs.StatusStale
	}

	file, err := os.Open(full)
	if err != nil {
		return nil, false, toStatus(err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, false, toStatus(err)
	}
	size := uint64(info.Size())
	if offset >= size {
		return []byte{}, true, vfs.StatusOK
	}
	end := offset + uint64(count)
	if end > size {
		end = size
	}

	buf := make([]byte, end-offset)
	n, err := file.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return nil, false, toStatus(err)
	}
	return buf[:n], offset+uint64(n) >= size, vfs.StatusOK
}

func (f *FS) Write(ctx context.Context, id uint64, offset uint64, data []byte, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	full, ok := f.hostPath(id)
	f.mu.Unlock()
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}

	file, err := os.OpenFile(full, os.O_WRONLY, 0)
	if err != nil {
		return vfs.Fattr3{}, toStatus(err)
	}
	defer file.Close()

	if _, err := file.WriteAt(data, int64(offset)); err != nil {
		return vfs.Fattr3{}, toStatus(err)
	}

	info, err := file.Stat()
	if err != nil {
		return vfs.Fattr3{}, toStatus(err)
	}
	return metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) Create(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return 0, vfs.Fattr3{}, vfs.StatusStale
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)

	mode := os.FileMode(0o644)
	if attr.Mode.Set {
		mode = os.FileMode(attr.Mode.Mode & 0o7777)
	}
	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE, mode)
	if err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}
	if attr.Size.Set {
		_ = file.Truncate(int64(attr.Size.Size))
	}
	file.Close()

	info, err := os.Lstat(full)
	if err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}

	f.mu.Lock()
	id := f.idFor(rel)
	f.mu.Unlock()
	return id, metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) CreateExclusive(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	if f.readOnly {
		return 0, vfs.StatusROFS
	}

	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return 0, vfs.StatusStale
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)

	file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, toStatus(err)
	}
	file.Close()

	f.mu.Lock()
	id := f.idFor(rel)
	f.mu.Unlock()
	return id, vfs.StatusOK
}

func (f *FS) Mkdir(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return 0, vfs.Fattr3{}, vfs.StatusStale
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)

	mode := os.FileMode(0o755)
	if attr.Mode.Set {
		mode = os.FileMode(attr.Mode.Mode & 0o7777)
	}
	if err := os.Mkdir(full, mode); err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}

	info, err := os.Lstat(full)
	if err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}

	f.mu.Lock()
	id := f.idFor(rel)
	f.mu.Unlock()
	return id, metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) Symlink(ctx context.Context, dir uint64, name string, target string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return 0, vfs.Fattr3{}, vfs.StatusStale
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)

	if err := os.Symlink(target, full); err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}

	info, err := os.Lstat(full)
	if err != nil {
		return 0, vfs.Fattr3{}, toStatus(err)
	}

	f.mu.Lock()
	id := f.idFor(rel)
	f.mu.Unlock()
	return id, metadataToFattr3(id, info), vfs.StatusOK
}

func (f *FS) Readlink(ctx context.Context, id uint64, user vfs.UserContext) (string, vfs.Status) {
	f.mu.Lock()
	full, ok := f.hostPath(id)
	f.mu.Unlock()
	if !ok {
		return "", vfs.StatusStale
	}

	target, err := os.Readlink(full)
	if err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return "", vfs.StatusBadType
		}
		return "", toStatus(err)
	}
	return target, vfs.StatusOK
}

func (f *FS) Remove(ctx context.Context, dir uint64, name string, user vfs.UserContext) vfs.Status {
	if f.readOnly {
		return vfs.StatusROFS
	}

	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return vfs.StatusStale
	}

	rel := joinRel(dirRel, name)
	full := filepath.Join(f.root, rel)

	info, err := os.Lstat(full)
	if err != nil {
		return toStatus(err)
	}

	if info.IsDir() {
		if err := os.Remove(full); err != nil {
			if errors.Is(err, syscall.ENOTEMPTY) {
				return vfs.StatusNotEmpty
			}
			return toStatus(err)
		}
	} else if err := os.Remove(full); err != nil {
		return toStatus(err)
	}

	f.mu.Lock()
	f.forget(rel)
	f.mu.Unlock()
	return vfs.StatusOK
}

func (f *FS) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string, user vfs.UserContext) vfs.Status {
	if f.readOnly {
		return vfs.StatusROFS
	}

	f.mu.Lock()
	fromDirRel, fromOK := f.idToPath[fromDir]
	toDirRel, toOK := f.idToPath[toDir]
	f.mu.Unlock()
	if !fromOK || !toOK {
		return vfs.StatusStale
	}

	fromRel := joinRel(fromDirRel, fromName)
	toRel := joinRel(toDirRel, toName)
	fromFull := filepath.Join(f.root, fromRel)
	toFull := filepath.Join(f.root, toRel)

	if err := os.Rename(fromFull, toFull); err != nil {
		if errors.Is(err, syscall.ENOTEMPTY) {
			return vfs.StatusNotEmpty
		}
		return toStatus(err)
	}

	f.mu.Lock()
	f.forget(toRel) // anything that previously lived at the destination
	f.rebase(fromRel, toRel)
	f.mu.Unlock()
	return vfs.StatusOK
}

func (f *FS) ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int, user vfs.UserContext) ([]vfs.DirEntry, bool, vfs.Status) {
	f.mu.Lock()
	dirRel, ok := f.idToPath[dir]
	f.mu.Unlock()
	if !ok {
		return nil, true, vfs.StatusStale
	}

	full := filepath.Join(f.root, dirRel)
	names, err := os.ReadDir(full)
	if err != nil {
		return nil, true, toStatus(err)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Name() < names[j].Name() })

	f.mu.Lock()
	ids := make([]uint64, len(names))
	for i, d := range names {
		ids[i] = f.idFor(joinRel(dirRel, d.Name()))
	}
	f.mu.Unlock()

	type indexed struct {
		id   uint64
		name string
	}
	all := make([]indexed, len(names))
	for i, d := range names {
		all[i] = indexed{ids[i], d.Name()}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].id < all[j].id })

	var entries []vfs.DirEntry
	for _, e := range all {
		if e.id <= startAfter {
			continue
		}
		if maxEntries > 0 && len(entries) >= maxEntries {
			return entries, false, vfs.StatusOK
		}
		entries = append(entries, vfs.DirEntry{FileID: e.id, Name: e.name})
	}
	return entries, true, vfs.StatusOK
}
