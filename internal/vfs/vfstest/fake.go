// Package vfstest provides a minimal, in-memory vfs.FileSystem fixture
// for exercising the RPC/mount/NFS v3 dispatch packages without a real
// back-end. It is not a supported back-end implementation; see
// backend/memfs for that.
package vfstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xetdata/nfsserve/internal/vfs"
)

type node struct {
	attr     vfs.Fattr3
	children map[string]uint64 // directories only
	data     []byte            // regular files only
	target   string            // symlinks only
}

// Fake is a small, mutex-guarded in-memory tree good enough to drive
// every procedure's happy and error paths in tests.
type Fake struct {
	mu       sync.Mutex
	nodes    map[uint64]*node
	nextID   uint64
	readOnly bool
}

// New returns a Fake with just a root directory (fileid 1).
func New() *Fake {
	f := &Fake{nodes: map[uint64]*node{}, nextID: 2}
	now := vfs.FromTime(time.Unix(1700000000, 0))
	f.nodes[1] = &node{
		attr: vfs.Fattr3{
			Type: vfs.FileTypeDir, Mode: 0o755, NLink: 2, FileID: 1,
			ATime: now, MTime: now, CTime: now,
		},
		children: map[string]uint64{},
	}
	return f
}

// NewReadOnly returns a Fake whose Capabilities report ReadOnly: true.
func NewReadOnly() *Fake {
	f := New()
	f.readOnly = true
	return f
}

func (f *Fake) Capabilities() vfs.Capabilities { return vfs.Capabilities{ReadOnly: f.readOnly} }
func (f *Fake) RootDir() uint64                { return 1 }
func (f *Fake) ServerID() uint64               { return 0xabad1dea }

// AddDir registers a child directory under dir and returns its fileid.
func (f *Fake) AddDir(dir uint64, name string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	now := vfs.FromTime(time.Now())
	f.nodes[id] = &node{
		attr:     vfs.Fattr3{Type: vfs.FileTypeDir, Mode: 0o755, NLink: 2, FileID: id, ATime: now, MTime: now, CTime: now},
		children: map[string]uint64{},
	}
	f.nodes[dir].children[name] = id
	return id
}

// AddFile registers a child regular file with the given content.
func (f *Fake) AddFile(dir uint64, name string, content []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	now := vfs.FromTime(time.Now())
	f.nodes[id] = &node{
		attr: vfs.Fattr3{Type: vfs.FileTypeRegular, Mode: 0o644, NLink: 1, FileID: id, Size: uint64(len(content)), ATime: now, MTime: now, CTime: now},
		data: content,
	}
	f.nodes[dir].children[name] = id
	return id
}

func (f *Fake) Lookup(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.nodes[dir]
	if !ok || d.children == nil {
		return 0, vfs.StatusNotDir
	}
	id, ok := d.children[name]
	if !ok {
		return 0, vfs.StatusNoEnt
	}
	return id, vfs.StatusOK
}

func (f *Fake) GetAttr(ctx context.Context, id uint64, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusNoEnt
	}
	return n.attr, vfs.StatusOK
}

func (f *Fake) SetAttr(ctx context.Context, id uint64, attr vfs.Sattr3, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusNoEnt
	}
	if attr.Size.Set {
		n.attr.Size = attr.Size.Size
		if int(n.attr.Size) < len(n.data) {
			n.data = n.data[:n.attr.Size]
		}
	}
	if attr.Mode.Set {
		n.attr.Mode = attr.Mode.Mode
	}
	n.attr.CTime = vfs.FromTime(time.Now())
	return n.attr, vfs.StatusOK
}

func (f *Fake) Read(ctx context.Context, id uint64, offset uint64, count uint32, user vfs.UserContext) ([]byte, bool, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return nil, false, vfs.StatusNoEnt
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

func (f *Fake) Write(ctx context.Context, id uint64, offset uint64, data []byte, user vfs.UserContext) (vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok {
		return vfs.Fattr3{}, vfs.StatusNoEnt
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
	return n.attr, vfs.StatusOK
}

func (f *Fake) Create(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	d, ok := f.nodes[dir]
	f.mu.Unlock()
	if !ok {
		return 0, vfs.Fattr3{}, vfs.StatusNoEnt
	}
	f.mu.Lock()
	if existing, found := d.children[name]; found {
		id := existing
		f.mu.Unlock()
		n := f.nodes[id]
		return id, n.attr, vfs.StatusOK
	}
	f.mu.Unlock()
	id := f.AddFile(dir, name, nil)
	f.mu.Lock()
	n := f.nodes[id]
	f.mu.Unlock()
	return id, n.attr, vfs.StatusOK
}

func (f *Fake) CreateExclusive(ctx context.Context, dir uint64, name string, user vfs.UserContext) (uint64, vfs.Status) {
	f.mu.Lock()
	d := f.nodes[dir]
	if _, exists := d.children[name]; exists {
		f.mu.Unlock()
		return 0, vfs.StatusExist
	}
	f.mu.Unlock()
	return f.AddFile(dir, name, nil), vfs.StatusOK
}

func (f *Fake) Mkdir(ctx context.Context, dir uint64, name string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	id := f.AddDir(dir, name)
	f.mu.Lock()
	n := f.nodes[id]
	f.mu.Unlock()
	return id, n.attr, vfs.StatusOK
}

func (f *Fake) Symlink(ctx context.Context, dir uint64, name string, target string, attr vfs.Sattr3, user vfs.UserContext) (uint64, vfs.Fattr3, vfs.Status) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	now := vfs.FromTime(time.Now())
	f.nodes[id] = &node{attr: vfs.Fattr3{Type: vfs.FileTypeLink, Mode: 0o777, NLink: 1, FileID: id, ATime: now, MTime: now, CTime: now}, target: target}
	f.nodes[dir].children[name] = id
	n := f.nodes[id]
	f.mu.Unlock()
	return id, n.attr, vfs.StatusOK
}

func (f *Fake) Readlink(ctx context.Context, id uint64, user vfs.UserContext) (string, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.nodes[id]
	if !ok || n.attr.Type != vfs.FileTypeLink {
		return "", vfs.StatusBadType
	}
	return n.target, vfs.StatusOK
}

func (f *Fake) Remove(ctx context.Context, dir uint64, name string, user vfs.UserContext) vfs.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.nodes[dir]
	if !ok {
		return vfs.StatusNoEnt
	}
	id, ok := d.children[name]
	if !ok {
		return vfs.StatusNoEnt
	}
	delete(d.children, name)
	delete(f.nodes, id)
	return vfs.StatusOK
}

func (f *Fake) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string, user vfs.UserContext) vfs.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	from, ok := f.nodes[fromDir]
	if !ok {
		return vfs.StatusNoEnt
	}
	id, ok := from.children[fromName]
	if !ok {
		return vfs.StatusNoEnt
	}
	to, ok := f.nodes[toDir]
	if !ok {
		return vfs.StatusNoEnt
	}
	delete(from.children, fromName)
	to.children[toName] = id
	return vfs.StatusOK
}

func (f *Fake) ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int, user vfs.UserContext) ([]vfs.DirEntry, bool, vfs.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.nodes[dir]
	if !ok || d.children == nil {
		return nil, true, vfs.StatusNotDir
	}
	ids := make([]uint64, 0, len(d.children))
	names := map[uint64]string{}
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
