package nfsv3

import (
	"context"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// lookup resolves a name within a directory, returning the object's
// handle plus both object and directory post-op attributes.
func lookup(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	dirHandle, name, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	dirAttr, dirStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	dirPostAttr := voidPostOpAttr(dirAttr, dirStatus)

	id, status := rctx.FS.Lookup(ctx, dirID, name, rctx.UserContext())
	if status != vfs.StatusOK {
		e := rpc.EncodeSuccess(xid)
		e.PutUint32(uint32(status))
		putPostOpAttr(e, dirPostAttr)
		return e.Bytes()
	}

	objAttr, objStatus := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	e.PutOpaque(vfs.IDToFH(id))
	putPostOpAttr(e, voidPostOpAttr(objAttr, objStatus))
	putPostOpAttr(e, dirPostAttr)
	return e.Bytes()
}

// readlink returns a symlink's target; NFS3ERR_BADTYPE if the object is
// not a symlink (surfaced by the back-end).
func readlink(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	handle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	id, status := resolveHandle(handle)
	if status != vfs.StatusOK {
		return statusReply(xid, status)
	}

	attr, attrStatus := rctx.FS.GetAttr(ctx, id, rctx.UserContext())
	if attrStatus != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, attrStatus)
	}
	postAttr := voidPostOpAttr(attr, vfs.StatusOK)

	target, status := rctx.FS.Readlink(ctx, id, rctx.UserContext())
	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putPostOpAttr(e, postAttr)
	if status == vfs.StatusOK {
		e.PutString(target)
	}
	return e.Bytes()
}

// mkdir creates a subdirectory, grounded on the same pre/post dir-attr
// and wcc_data pattern CREATE uses.
func mkdir(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	dirHandle, name, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	attr, err := decodeSattr3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	preDir, status := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(preDir, vfs.StatusOK)

	id, newAttr, status := rctx.FS.Mkdir(ctx, dirID, name, attr, rctx.UserContext())

	postDir, postStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(postDir, postStatus)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	if status == vfs.StatusOK {
		putPostOpFH3(e, true, vfs.IDToFH(id))
		putPostOpAttr(e, voidPostOpAttr(newAttr, vfs.StatusOK))
	}
	putWccData(e, wcc)
	return e.Bytes()
}

// symlink creates a symbolic link pointing at the supplied target.
func symlink(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	dirHandle, name, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	attr, err := decodeSattr3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	target, err := dec.String()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	preDir, status := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(preDir, vfs.StatusOK)

	id, newAttr, status := rctx.FS.Symlink(ctx, dirID, name, target, attr, rctx.UserContext())

	postDir, postStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(postDir, postStatus)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	if status == vfs.StatusOK {
		putPostOpFH3(e, true, vfs.IDToFH(id))
		putPostOpAttr(e, voidPostOpAttr(newAttr, vfs.StatusOK))
	}
	putWccData(e, wcc)
	return e.Bytes()
}

// remove deletes name from dir. Used for both REMOVE and RMDIR; the
// back-end decides the removal method by the object's type.
func remove(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	dirHandle, name, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	preDir, status := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preOp := voidPreOpAttr(preDir, vfs.StatusOK)

	status = rctx.FS.Remove(ctx, dirID, name, rctx.UserContext())

	postDir, postStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	wcc := vfs.WccData{Before: preOp, After: voidPostOpAttr(postDir, postStatus)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putWccData(e, wcc)
	return e.Bytes()
}

// rename moves an object between two directories; both get wcc_data.
func rename(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	if writeGated(rctx.FS) {
		return statusWithVoidWccReply(xid, vfs.StatusROFS)
	}
	fromHandle, fromName, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	toHandle, toName, err := decodeDiropArgs3(dec)
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	fromDirID, status := resolveHandle(fromHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	toDirID, status := resolveHandle(toHandle)
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}

	preFrom, status := rctx.FS.GetAttr(ctx, fromDirID, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preTo, status := rctx.FS.GetAttr(ctx, toDirID, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidWccReply(xid, status)
	}
	preFromOp := voidPreOpAttr(preFrom, vfs.StatusOK)
	preToOp := voidPreOpAttr(preTo, vfs.StatusOK)

	status = rctx.FS.Rename(ctx, fromDirID, fromName, toDirID, toName, rctx.UserContext())

	postFrom, postFromStatus := rctx.FS.GetAttr(ctx, fromDirID, rctx.UserContext())
	postTo, postToStatus := rctx.FS.GetAttr(ctx, toDirID, rctx.UserContext())
	fromWcc := vfs.WccData{Before: preFromOp, After: voidPostOpAttr(postFrom, postFromStatus)}
	toWcc := vfs.WccData{Before: preToOp, After: voidPostOpAttr(postTo, postToStatus)}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(status))
	putWccData(e, fromWcc)
	putWccData(e, toWcc)
	return e.Bytes()
}
