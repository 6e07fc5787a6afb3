package rpc

import "github.com/xetdata/nfsserve/internal/vfs"

// MountEvent is sent on a connection's optional mount-event sink: true
// for a successful MNT, false for UMNT/UMNTALL.
type MountEvent bool

// Context is the per-call record threaded through every procedure
// handler: the server's own listening port (for PMAP_GETPORT), the
// peer's address, the call's decoded AUTH_UNIX credential (zero when the
// call carries none), the shared back-end, and an optional mount-event
// sink.
type Context struct {
	ListenPort uint16
	ClientAddr string
	Auth       UnixAuth
	FS         vfs.FileSystem
	MountSink  chan<- MountEvent
}

// UserContext projects the call's AUTH_UNIX credential into the
// vfs.UserContext shape the back-end contract expects.
func (c *Context) UserContext() vfs.UserContext {
	return vfs.UserContext{UID: c.Auth.UID, GID: c.Auth.GID, GIDs: c.Auth.GIDs}
}

// SignalMount sends a mount event on the sink if one is configured. It
// never blocks indefinitely on a full, unbuffered sink from a slow
// embedder; a drop is preferable to stalling the connection.
func (c *Context) SignalMount(mounted bool) {
	if c.MountSink == nil {
		return
	}
	select {
	case c.MountSink <- MountEvent(mounted):
	default:
	}
}
