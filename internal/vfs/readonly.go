package vfs

import (
	"context"
	"sync/atomic"
)

// ReadOnlyGate wraps a FileSystem with a read-only flag that can be
// flipped at runtime, independent of whatever Capabilities the
// underlying back-end reports. config.WatchReadOnly drives Set from a
// live-reloaded config file so an operator can freeze writes without
// restarting the server.
type ReadOnlyGate struct {
	fs       FileSystem
	readOnly atomic.Bool
}

// NewReadOnlyGate wraps fs, starting in the given read-only state.
func NewReadOnlyGate(fs FileSystem, readOnly bool) *ReadOnlyGate {
	g := &ReadOnlyGate{fs: fs}
	g.readOnly.Store(readOnly)
	return g
}

// Set changes the gate's read-only state. Safe for concurrent use with
// every other method.
func (g *ReadOnlyGate) Set(readOnly bool) { g.readOnly.Store(readOnly) }

func (g *ReadOnlyGate) Capabilities() Capabilities {
	cap := g.fs.Capabilities()
	cap.ReadOnly = cap.ReadOnly || g.readOnly.Load()
	return cap
}

func (g *ReadOnlyGate) RootDir() uint64  { return g.fs.RootDir() }
func (g *ReadOnlyGate) ServerID() uint64 { return g.fs.ServerID() }

func (g *ReadOnlyGate) Lookup(ctx context.Context, dir uint64, name string, user UserContext) (uint64, Status) {
	return g.fs.Lookup(ctx, dir, name, user)
}

func (g *ReadOnlyGate) GetAttr(ctx context.Context, id uint64, user UserContext) (Fattr3, Status) {
	return g.fs.GetAttr(ctx, id, user)
}

func (g *ReadOnlyGate) SetAttr(ctx context.Context, id uint64, attr Sattr3, user UserContext) (Fattr3, Status) {
	if g.readOnly.Load() {
		return Fattr3{}, StatusROFS
	}
	return g.fs.SetAttr(ctx, id, attr, user)
}

func (g *ReadOnlyGate) Read(ctx context.Context, id uint64, offset uint64, count uint32, user UserContext) ([]byte, bool, Status) {
	return g.fs.Read(ctx, id, offset, count, user)
}

func (g *ReadOnlyGate) Write(ctx context.Context, id uint64, offset uint64, data []byte, user UserContext) (Fattr3, Status) {
	if g.readOnly.Load() {
		return Fattr3{}, StatusROFS
	}
	return g.fs.Write(ctx, id, offset, data, user)
}

func (g *ReadOnlyGate) Create(ctx context.Context, dir uint64, name string, attr Sattr3, user UserContext) (uint64, Fattr3, Status) {
	if g.readOnly.Load() {
		return 0, Fattr3{}, StatusROFS
	}
	return g.fs.Create(ctx, dir, name, attr, user)
}

func (g *ReadOnlyGate) CreateExclusive(ctx context.Context, dir uint64, name string, user UserContext) (uint64, Status) {
	if g.readOnly.Load() {
		return 0, StatusROFS
	}
	return g.fs.CreateExclusive(ctx, dir, name, user)
}

func (g *ReadOnlyGate) Mkdir(ctx context.Context, dir uint64, name string, attr Sattr3, user UserContext) (uint64, Fattr3, Status) {
	if g.readOnly.Load() {
		return 0, Fattr3{}, StatusROFS
	}
	return g.fs.Mkdir(ctx, dir, name, attr, user)
}

func (g *ReadOnlyGate) Symlink(ctx context.Context, dir uint64, name string, target string, attr Sattr3, user UserContext) (uint64, Fattr3, Status) {
	if g.readOnly.Load() {
		return 0, Fattr3{}, StatusROFS
	}
	return g.fs.Symlink(ctx, dir, name, target, attr, user)
}

func (g *ReadOnlyGate) Readlink(ctx context.Context, id uint64, user UserContext) (string, Status) {
	return g.fs.Readlink(ctx, id, user)
}

func (g *ReadOnlyGate) Remove(ctx context.Context, dir uint64, name string, user UserContext) Status {
	if g.readOnly.Load() {
		return StatusROFS
	}
	return g.fs.Remove(ctx, dir, name, user)
}

func (g *ReadOnlyGate) Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string, user UserContext) Status {
	if g.readOnly.Load() {
		return StatusROFS
	}
	return g.fs.Rename(ctx, fromDir, fromName, toDir, toName, user)
}

func (g *ReadOnlyGate) ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int, user UserContext) ([]DirEntry, bool, Status) {
	return g.fs.ReadDir(ctx, dir, startAfter, maxEntries, user)
}

var _ FileSystem = (*ReadOnlyGate)(nil)
