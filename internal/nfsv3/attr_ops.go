package nfsv3

import (
	"context"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// getattr returns fattr3 with no WCC wrapper.
func getattr(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusReply(xid, status)
	}
	attr, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusReply(xid, status)
	}
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putFattr3(e, attr)
	return e.Bytes()
}

// setattr applies sattr3, honoring an optional ctime guard that, if
// present and mismatching the object's current ctime, fails the call
// with NFS3ERR_NOT_SYNC before any mutation is attempted.
func setattr(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	newAttr, err := decodeSattr3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	hasGuard, err := dec.Bool()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	var guard vfs.NFSTime
	if hasGuard {
		if guard, err = decodeTime(dec); err != nil {
			return rpc.GarbageArgsReply(xid)
		}
	}

	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusReply(xid, status)
	}

	before, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(before, vfs.StatusOK)

	if hasGuard && (guard.Seconds != before.CTime.Seconds || guard.Nanoseconds != before.CTime.Nanoseconds) {
		return statusWithVoidWccReply(xid, vfs.StatusNotSync)
	}

	after, status := rctx.FS.SetAttr(ctx, id, newAttr, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(after, status)}
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putWccData(e, wcc)
	return e.Bytes()
}

// access echoes the requested mask, masked down to READ|LOOKUP on a
// read-only back-end. Mode bits are never consulted.
func access(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	mask, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}
	attr, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	postAttr := voidPostOpAttr(attr, status)
	if writeGated(rctx.FS) {
		mask &= vfs.AccessRead | vfs.AccessLookup
	}
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, postAttr)
	e.PutUint32(mask)
	return e.Bytes()
}

// fsstat returns the engine's synthetic, constant filesystem-capacity
// record.
func fsstat(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}
	attr, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	postAttr := voidPostOpAttr(attr, status)

	stat := vfs.DefaultFSStat()
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, postAttr)
	e.PutUint64(stat.TBytes)
	e.PutUint64(stat.FBytes)
	e.PutUint64(stat.ABytes)
	e.PutUint64(stat.TFiles)
	e.PutUint64(stat.FFiles)
	e.PutUint64(stat.AFiles)
	e.PutUint32(0xFFFFFFFF)
	return e.Bytes()
}

// fsinfo returns the engine's synthetic, constant filesystem-capability
// record.
func fsinfo(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}
	attr, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	postAttr := voidPostOpAttr(attr, status)

	info := vfs.DefaultFSInfo()
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, postAttr)
	e.PutUint32(info.RtMax)
	e.PutUint32(info.RtPref)
	e.PutUint32(info.RtMult)
	e.PutUint32(info.WtMax)
	e.PutUint32(info.WtPref)
	e.PutUint32(info.WtMult)
	e.PutUint32(info.DtPref)
	e.PutUint64(info.MaxFileSize)
	e.PutUint32(info.TimeDeltaSecs)
	e.PutUint32(info.TimeDeltaNSecs)
	e.PutUint32(info.Properties)
	return e.Bytes()
}

// pathconf returns the engine's synthetic, constant pathconf record.
func pathconf(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}
	attr, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	postAttr := voidPostOpAttr(attr, status)

	pc := vfs.DefaultPathConf()
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, postAttr)
	e.PutUint32(pc.LinkMax)
	e.PutUint32(pc.NameMax)
	e.PutBool(pc.NoTrunc)
	e.PutBool(pc.ChownRestricted)
	e.PutBool(pc.CaseInsensitive)
	e.PutBool(pc.CasePreserving)
	return e.Bytes()
}
