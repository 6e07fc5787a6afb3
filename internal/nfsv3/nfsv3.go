// Package nfsv3 implements the NFS version 3 program (RFC 1813),
// program number 100003: the procedure catalog the engine supports,
// file-handle validation, weak-cache-consistency attribute plumbing,
// capability gating against read-only back-ends, and the directory
// pagination logic of READDIR/READDIRPLUS.
package nfsv3

import (
	"context"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// Program is the RPC program number for NFS.
const Program uint32 = 100003

// Version is the only NFS version this engine speaks.
const Version uint32 = 3

const (
	ProcNull        uint32 = 0
	ProcGetAttr     uint32 = 1
	ProcSetAttr     uint32 = 2
	ProcLookup      uint32 = 3
	ProcAccess      uint32 = 4
	ProcReadlink    uint32 = 5
	ProcRead        uint32 = 6
	ProcWrite       uint32 = 7
	ProcCreate      uint32 = 8
	ProcMkdir       uint32 = 9
	ProcSymlink     uint32 = 10
	ProcMknod       uint32 = 11
	ProcRemove      uint32 = 12
	ProcRmdir       uint32 = 13
	ProcRename      uint32 = 14
	ProcLink        uint32 = 15
	ProcReaddir     uint32 = 16
	ProcReaddirPlus uint32 = 17
	ProcFsstat      uint32 = 18
	ProcFsinfo      uint32 = 19
	ProcPathconf    uint32 = 20
	ProcCommit      uint32 = 21
)

// Dispatch handles one NFS v3 call and returns the complete reply.
// Unsupported procedures (MKNOD, LINK, COMMIT, and anything beyond the
// range) return PROC_UNAVAIL.
func Dispatch(rctx *rpc.Context, xid uint32, proc uint32, dec *xdr.Decoder) []byte {
	ctx := context.Background()
	switch proc {
	case ProcNull:
		return rpc.EncodeSuccess(xid).Bytes()
	case ProcGetAttr:
		return getattr(ctx, rctx, xid, dec)
	case ProcSetAttr:
		return setattr(ctx, rctx, xid, dec)
	case ProcLookup:
		return lookup(ctx, rctx, xid, dec)
	case ProcAccess:
		return access(ctx, rctx, xid, dec)
	case ProcReadlink:
		return readlink(ctx, rctx, xid, dec)
	case ProcRead:
		return read(ctx, rctx, xid, dec)
	case ProcWrite:
		return write(ctx, rctx, xid, dec)
	case ProcCreate:
		return create(ctx, rctx, xid, dec)
	case ProcMkdir:
		return mkdir(ctx, rctx, xid, dec)
	case ProcSymlink:
		return symlink(ctx, rctx, xid, dec)
	case ProcRemove:
		return remove(ctx, rctx, xid, dec)
	case ProcRmdir:
		return remove(ctx, rctx, xid, dec)
	case ProcRename:
		return rename(ctx, rctx, xid, dec)
	case ProcReaddir:
		return readdir(ctx, rctx, xid, dec)
	case ProcReaddirPlus:
		return readdirPlus(ctx, rctx, xid, dec)
	case ProcFsstat:
		return fsstat(ctx, rctx, xid, dec)
	case ProcFsinfo:
		return fsinfo(ctx, rctx, xid, dec)
	case ProcPathconf:
		return pathconf(ctx, rctx, xid, dec)
	default:
		return rpc.ProcUnavailReply(xid)
	}
}

// writeGated reports whether the back-end is read-only. Every mutating
// procedure, CREATE included, checks it before calling the back-end and
// replies NFS3ERR_ROFS with void wcc_data when it is true.
func writeGated(fs vfs.FileSystem) bool {
	return fs.Capabilities().ReadOnly
}

func statusReply(xid uint32, status vfs.Status) []byte {
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	return e.Bytes()
}

func statusWithVoidAttrReply(xid uint32, status vfs.Status) []byte {
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putPostOpAttr(e, vfs.PostOpAttr{})
	return e.Bytes()
}

func statusWithVoidWccReply(xid uint32, status vfs.Status) []byte {
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putVoidWccData(e)
	return e.Bytes()
}
