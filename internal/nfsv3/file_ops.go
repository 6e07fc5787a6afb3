package nfsv3

import (
	"context"
	"encoding/binary"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// read returns up to count bytes at offset; offset >= size yields an
// empty, eof=true reply.
func read(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	offset, err := dec.Uint64()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	count, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	attr, attrStatus := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	postAttr := voidPostOpAttr(attr, attrStatus)

	data, eof, status := rctx.FS.Read(ctx, id, offset, count, rctx.UserContext())
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putPostOpAttr(e, postAttr)
	if status == vfs.StatusOK {
		e.PutUint32(uint32(len(data)))
		e.PutBool(eof)
		e.PutOpaque(data)
	}
	return e.Bytes()
}

// stableHowFileSync is the stable_how value this engine always reports
// as its WRITE commitment level: FILE_SYNC, since the reference
// back-ends have no separate flush step.
const stableHowFileSync uint32 = 2

// write stores data at offset. args.count must equal len(data), else
// GARBAGE_ARGS. The engine always reports committed=FILE_SYNC and fills
// the write verifier from the back-end's server-id.
func write(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	offset, err := dec.Uint64()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	count, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	if _, err := dec.Uint32(); err != nil { // stable_how, not consulted
		return rpc.GarbageArgsReply(xid)
	}
	data, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	if uint32(len(data)) != count {
		return rpc.GarbageArgsReply(xid)
	}

	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	before, status := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(before, vfs.StatusOK)

	after, status := rctx.FS.Write(ctx, id, offset, data, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(after, status)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putWccData(e, wcc)
	if status == vfs.StatusOK {
		e.PutUint32(count)
		e.PutUint32(stableHowFileSync)
		var verf [8]byte
		binary.LittleEndian.PutUint64(verf[:], rctx.FS.ServerID())
		e.PutFixedOpaque(verf[:])
	}
	return e.Bytes()
}

// create dispatches on createmode3: UNCHECKED/GUARDED apply sattr3
// through the ordinary Create call (GUARDED first fails with EXIST if
// the name already exists), EXCLUSIVE calls CreateExclusive and omits
// post-op object attributes. The directory's pre/post attrs are
// captured around the whole attempt regardless of outcome.
func create(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	dirHandle, name, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	modeVal, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	mode := vfs.CreateMode(modeVal)

	var attr vfs.Sattr3
	switch mode {
	case vfs.CreateUnchecked, vfs.CreateGuarded:
		if attr, err = decodeSattr3(dec); err != nil {
			return rpc.GarbageArgsReply(xid)
		}
	case vfs.CreateExclusive:
		if _, err := dec.FixedOpaque(8); err != nil { // createverf3, unused
			return rpc.GarbageArgsReply(xid)
		}
	default:
		return rpc.GarbageArgsReply(xid)
	}

	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	preDir, status := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	if status != vfs.StatusOK {
		// getattr failure on the directory aborts the whole call.
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(preDir, vfs.StatusOK)

	if mode == vfs.CreateGuarded {
		if _, lookupStatus := rctx.FS.Lookup(ctx, dirID, name, rctx.UserContext()); lookupStatus == vfs.StatusOK {
			postDir, postStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
			wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(postDir, postStatus)}
			e := rpc.EncodeSuccess(xid)
			e.PutUint32(uint32(vfs.StatusExist))
			putWccData(e, wcc)
			return e.Bytes()
		}
	}

	var (
		id      uint64
		newAttr vfs.Fattr3
		hasAttr bool
	)
	if mode == vfs.CreateExclusive {
		id, status = rctx.FS.CreateExclusive(ctx, dirID, name, rctx.UserContext())
	} else {
		id, newAttr, status = rctx.FS.Create(ctx, dirID, name, attr, rctx.UserContext())
		hasAttr = status == vfs.StatusOK
	}

	postDir, postStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(postDir, postStatus)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	if status == vfs.StatusOK {
		putPostOpFH3(e, true, vfs.IDToFH(id))
		if hasAttr {
			putPostOpAttr(e, voidPostOpAttr(newAttr, vfs.StatusOK))
		} else {
			putPostOpAttr(e, vfs.PostOpAttr{})
		}
	}
	putWccData(e, wcc)
	return e.Bytes()
}
