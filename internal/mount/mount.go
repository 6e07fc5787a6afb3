// Package mount implements the RFC 1813 Appendix I mount program
// (version 3, program number 100005): NULL, MNT, UMNT, UMNTALL, and
// EXPORT. The engine supports exactly one export, the back-end's root
// directory, with no client-group restrictions.
package mount

import (
	"context"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// Program is the RPC program number for mount.
const Program uint32 = 100005

// Version is the only mount version this engine speaks.
const Version uint32 = 3

const (
	ProcNull     uint32 = 0
	ProcMnt      uint32 = 1
	ProcDump     uint32 = 2
	ProcUmnt     uint32 = 3
	ProcUmntAll  uint32 = 4
	ProcExport   uint32 = 5
)

// mountstat3 values this engine produces.
const (
	mnt3OK     uint32 = 0
	mnt3ErrNoEnt uint32 = 2
)

// Dispatch handles one mount v3 call and returns the complete reply.
func Dispatch(ctx *rpc.Context, xid uint32, proc uint32, dec *xdr.Decoder) []byte {
	switch proc {
	case ProcNull:
		return rpc.EncodeSuccess(xid).Bytes()
	case ProcMnt:
		return mnt(ctx, xid, dec)
	case ProcUmnt:
		return umnt(ctx, xid, dec)
	case ProcUmntAll:
		return umntAll(ctx, xid)
	case ProcExport:
		return export(xid)
	case ProcDump:
		return dump(xid)
	default:
		return rpc.ProcUnavailReply(xid)
	}
}

func mnt(ctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	path, err := dec.String()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	fileid, status := vfs.PathToID(context.Background(), ctx.FS, path, ctx.UserContext())
	if status != vfs.StatusOK {
		e := rpc.EncodeSuccess(xid)
		e.PutUint32(mnt3ErrNoEnt)
		return e.Bytes()
	}

	ctx.SignalMount(true)

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(mnt3OK)
	e.PutOpaque(vfs.IDToFH(fileid))
	e.PutUint32(2)
	e.PutUint32(uint32(rpc.AuthNull))
	e.PutUint32(uint32(rpc.AuthUnix))
	return e.Bytes()
}

func umnt(ctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if _, err := dec.String(); err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	ctx.SignalMount(false)
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(mnt3OK)
	return e.Bytes()
}

func umntAll(ctx *rpc.Context, xid uint32) []byte {
	ctx.SignalMount(false)
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(mnt3OK)
	return e.Bytes()
}

// export reports the single exported path, "/", with an empty group
// list and no further exports in the linked list.
func export(xid uint32) []byte {
	e := rpc.EncodeSuccess(xid)
	e.PutBool(true) // one exportnode follows
	e.PutString("/")
	e.PutBool(false) // no groups
	e.PutBool(false) // no further exportnode
	return e.Bytes()
}

// dump reports an empty mount list; the engine does not track active
// mounts beyond the optional mount-event sink.
func dump(xid uint32) []byte {
	e := rpc.EncodeSuccess(xid)
	e.PutBool(false)
	return e.Bytes()
}
