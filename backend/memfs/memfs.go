// Package memfs is a production in-memory vfs.FileSystem back-end: a
// single mutex-guarded tree of nodes, seeded with nothing but a root
// directory and built up entirely by client calls. It holds no
// payload on disk, so every byte written lives only as long as the
// process does; that trade buys a back-end with no I/O errors of its
// own to report and no cleanup to perform on shutdown.
package memfs

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xetdata/nfsserve/internal/vfs"
)

type node struct {
	attr     vfs.Fattr3
	parent   uint64
	children map[string]uint64 // directories only, nil otherwise
	data     []byte            // regular files only
	target   string            // symlinks only
}

func (n *node) isDir() bool { return n.attr.Type == vfs.FileTypeDir }

// FS is a concurrency-safe in-memory filesystem tree. The zero value is
// not usable; construct one with New.
type FS struct {
	mu       sync.RWMutex
	nodes    map[uint64]*node
	nextID   atomic.Uint64
	serverID uint64
	readOnly bool
}

// Option configures a FS at construction time.
type Option func(*FS)

// ReadOnly marks the filesystem as rejecting every mutating call with
// NFS3ERR_ROFS, the same as a backing store mounted read-only.
func ReadOnly() Option {
	return func(f *FS) { f.readOnly = true }
}

const rootID uint64 = 1

// New returns an FS containing only an empty root directory. The
// server identifier used for WRITE's write verifier is derived from a
// fresh UUID so that two server processes never collide even if they
// happen to start in the same millisecond.
func New(opts ...Option) *FS {
	f := &FS{nodes: map[uint64]*node{}}
	f.nextID.Store(rootID + 1)
	f.serverID = serverIDFromUUID(uuid.New())

	now := vfs.FromTime(time.Now())
	f.nodes[rootID] = &node{
		attr: vfs.Fattr3{
			Type: vfs.FileTypeDir, Mode: 0o755, NLink: 2, FileID: rootID,
			ATime: now, MTime: now, CTime: now,
		},
		parent:   rootID,
		children: map[string]uint64{},
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

func serverIDFromUUID(id uuid.UUID) uint64 {
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}

func (f *FS) Capabilities() vfs.Capabilities { return vfs.Capabilities{ReadOnly: f.readOnly} }
func (f *FS) RootDir() uint64                { return rootID }
func (f *FS) ServerID() uint64               { return f.serverID }

func (f *FS) allocID() uint64 { return f.nextID.Add(1) - 1 }

func (f *FS) Lookup(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, ok := f.nodes[dir]
	if !ok {
		return 0, vfs.StatusStale
	}
	if !d.isDir() {
		return 0, vfs.StatusNotDir
	}

	switch name {
	case ".":
		return dir, vfs.StatusOK
	case "..":
		return d.parent, vfs.StatusOK
	}

	id, ok := d.children[name]
	if !ok {
		return 0, vfs.StatusNoEnt
	}
	return id, vfs.StatusOK
}

func (f *FS) GetAttr(ctx context.Context, id uint64, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}
	return n.attr, vfs.StatusOK
}

func (f *FS) SetAttr(ctx context.Context, id uint64, attr vfs.Sattr3, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}

	if attr.Size.Set {
		if int64(attr.Size.Size) < 0 {
			return vfs.Fattr3{}, vfs.StatusInval
		}
		truncateOrGrow(n, attr.Size.Size)
		n.attr.Size = attr.Size.Size
	}
	if attr.Mode.Set {
		n.attr.Mode = attr.Mode.Mode
	}
	if attr.UID.Set {
		n.attr.UID = attr.UID.UID
	}
	if attr.GID.Set {
		n.attr.GID = attr.GID.GID
	}

	now := vfs.FromTime(time.Now())
	applyTime(&n.attr.ATime, attr.ATime, now)
	applyTime(&n.attr.MTime, attr.MTime, now)
	n.attr.CTime = now

	return n.attr, vfs.StatusOK
}

func truncateOrGrow(n *node, size uint64) {
	switch {
	case int(size) < len(n.data):
		n.data = n.data[:size]
	case int(size) > len(n.data):
		grown := make([]byte, size)
		copy(grown, n.data)
		n.data = grown
	}
}

func applyTime(field *vfs.NFSTime, set vfs.SetTime3, now vfs.NFSTime) {
	switch set.How {
	case vfs.TimeSetToServer:
		*field = now
	case vfs.TimeSetToClient:
		*field = set.Time
	}
}

func (f *FS) Read(ctx context.Context, id uint64, offset uint64, count uint32, user vfs.UserContext) ([]byte, bool, vfs.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[id]
	if !ok {
		return nil, false, vfs.StatusStale
	}
	if n.attr.Type != vfs.FileTypeRegular {
		return nil, false, vfs.StatusInval
	}

	size := uint64(len(n.data))
	if offset >= size {
		return []byte{}, true, vfs.StatusOK
	}
	end := offset + uint64(count)
	if end > size {
		end = size
	}
	return append([]byte(nil), n.data[offset:end]...), end == size, vfs.StatusOK
}

func (f *FS) Write(ctx context.Context, id uint64, offset uint64, data []byte, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusStale
	}
	if n.attr.Type != vfs.FileTypeRegular {
		return vfs.Fattr3{}, vfs.StatusInval
	}

	need := int(offset) + len(data)
	if need > len(n.data) {
		grown := make([]byte, need)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:], data)
	n.attr.Size = uint64(len(n.data))
	n.attr.MTime = vfs.FromTime(time.Now())
	n.attr.CTime = n.attr.MTime

	return n.attr, vfs.StatusOK
}

func (f *FS) Create(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.nodes[dir]
	if !ok || !d.isDir() {
		return 0, vfs.Fattr3{}, vfs.StatusNotDir
	}

	if existing, found := d.children[name]; found {
		n := f.nodes[existing]
		f.applyCreateAttrLocked(n, attr)
		return existing, n.attr, vfs.StatusOK
	}

	id := f.allocID()
	now := vfs.FromTime(time.Now())
	n := &node{
		attr:   vfs.Fattr3{Type: vfs.FileTypeRegular, Mode: 0o644, NLink: 1, FileID: id, ATime: now, MTime: now, CTime: now},
		parent: dir,
	}
	f.applyCreateAttrLocked(n, attr)
	f.nodes[id] = n
	d.children[name] = id
	return id, n.attr, vfs.StatusOK
}

func (f *FS) applyCreateAttrLocked(n *node, attr vfs.Sattr3) {
	if attr.Mode.Set {
		n.attr.Mode = attr.Mode.Mode
	}
	if attr.UID.Set {
		n.attr.UID = attr.UID.UID
	}
	if attr.GID.Set {
		n.attr.GID = attr.GID.GID
	}
	if attr.Size.Set {
		truncateOrGrow(n, attr.Size.Size)
		n.attr.Size = attr.Size.Size
	}
}

func (f *FS) CreateExclusive(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	if f.readOnly {
		return 0, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.nodes[dir]
	if !ok || !d.isDir() {
		return 0, vfs.StatusNotDir
	}
	if _, exists := d.children[name]; exists {
		return 0, vfs.StatusExist
	}

	id := f.allocID()
	now := vfs.FromTime(time.Now())
	f.nodes[id] = &node{
		attr:   vfs.Fattr3{Type: vfs.FileTypeRegular, Mode: 0o644, NLink: 1, FileID: id, ATime: now, MTime: now, CTime: now},
		parent: dir,
	}
	d.children[name] = id
	return id, vfs.StatusOK
}

func (f *FS) Mkdir(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.nodes[dir]
	if !ok || !d.isDir() {
		return 0, vfs.Fattr3{}, vfs.StatusNotDir
	}
	if _, exists := d.children[name]; exists {
		return 0, vfs.Fattr3{}, vfs.StatusExist
	}

	id := f.allocID()
	now := vfs.FromTime(time.Now())
	n := &node{
		attr:     vfs.Fattr3{Type: vfs.FileTypeDir, Mode: 0o755, NLink: 2, FileID: id, ATime: now, MTime: now, CTime: now},
		parent:   dir,
		children: map[string]uint64{},
	}
	f.applyCreateAttrLocked(n, attr)
	f.nodes[id] = n
	d.children[name] = id
	d.attr.NLink++
	return id, n.attr, vfs.StatusOK
}

func (f *FS) Symlink(ctx context.Context, dir uint64, name string, target string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	if f.readOnly {
		return 0, vfs.Fattr3{}, vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.nodes[dir]
	if !ok || !d.isDir() {
		return 0, vfs.Fattr3{}, vfs.StatusNotDir
	}
	if _, exists := d.children[name]; exists {
		return 0, vfs.Fattr3{}, vfs.StatusExist
	}

	id := f.allocID()
	now := vfs.FromTime(time.Now())
	n := &node{
		attr:   vfs.Fattr3{Type: vfs.FileTypeLink, Mode: 0o777, NLink: 1, FileID: id, Size: uint64(len(target)), ATime: now, MTime: now, CTime: now},
		parent: dir,
		target: target,
	}
	f.nodes[id] = n
	d.children[name] = id
	return id, n.attr, vfs.StatusOK
}

func (f *FS) Readlink(ctx context.Context, id uint64, user vfs.UserContext) (string, vfs.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.nodes[id]
	if !ok {
		return "", vfs.StatusStale
	}
	if n.attr.Type != vfs.FileTypeLink {
		return "", vfs.StatusBadType
	}
	return n.target, vfs.StatusOK
}

func (f *FS) Remove(ctx context.Context, dir uint64, name string, user vfs.UserContext) vfs.Status {
	if f.readOnly {
		return vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.nodes[dir]
	if !ok || !d.isDir() {
		return vfs.StatusNotDir
	}
	id, ok := d.children[name]
	if !ok {
		return vfs.StatusNoEnt
	}
	target := f.nodes[id]
	if target.isDir() {
		if len(target.children) > 0 {
			return vfs.StatusNotEmpty
		}
		d.attr.NLink--
	}

	delete(d.children, name)
	delete(f.nodes, id)
	return vfs.StatusOK
}

func (f *FS) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string, user vfs.UserContext) vfs.Status {
	if f.readOnly {
		return vfs.StatusROFS
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	from, ok := f.nodes[fromDir]
	if !ok || !from.isDir() {
		return vfs.StatusNotDir
	}
	to, ok := f.nodes[toDir]
	if !ok || !to.isDir() {
		return vfs.StatusNotDir
	}
	id, ok := from.children[fromName]
	if !ok {
		return vfs.StatusNoEnt
	}

	if existingID, exists := to.children[toName]; exists {
		if existingID == id {
			return vfs.StatusOK
		}
		existing := f.nodes[existingID]
		if existing.isDir() {
			if len(existing.children) > 0 {
				return vfs.StatusNotEmpty
			}
			to.attr.NLink--
		}
		delete(f.nodes, existingID)
	}

	moved := f.nodes[id]
	delete(from.children, fromName)
	to.children[toName] = id
	moved.parent = toDir
	if moved.isDir() && fromDir != toDir {
		from.attr.NLink--
		to.attr.NLink++
	}
	return vfs.StatusOK
}

func (f *FS) ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int, user vfs.UserContext) ([]vfs.DirEntry, bool, vfs.Status) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	d, ok := f.nodes[dir]
	if !ok {
		return nil, true, vfs.StatusStale
	}
	if !d.isDir() {
		return nil, true, vfs.StatusNotDir
	}

	ids := make([]uint64, 0, len(d.children))
	names := make(map[uint64]string, len(d.children))
	for name, id := range d.children {
		ids = append(ids, id)
		names[id] = name
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var entries []vfs.DirEntry
	for _, id := range ids {
		if id <= startAfter {
			continue
		}
		if maxEntries > 0 && len(entries) >= maxEntries {
			return entries, false, vfs.StatusOK
		}
		entries = append(entries, vfs.DirEntry{FileID: id, Name: names[id]})
	}
	return entries, true, vfs.StatusOK
}
