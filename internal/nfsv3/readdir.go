package nfsv3

import (
	"context"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// cookieVerf derives the 8-byte cookie verifier from a directory's
// mtime: high 32 bits seconds, low 32 bits nanoseconds. It is echoed on
// every reply but never validated against an incoming value — see the
// readdir/readdirPlus comment on cookieverf handling.
func cookieVerf(dirAttr vfs.PostOpAttr) [8]byte {
	var v [8]byte
	if !dirAttr.Present {
		return v
	}
	e := xdr.NewEncoder()
	e.PutUint32(dirAttr.Attr.MTime.Seconds)
	e.PutUint32(dirAttr.Attr.MTime.Nanoseconds)
	copy(v[:], e.Bytes())
	return v
}

// readdir implements the plain READDIR procedure: entries carry only
// (fileid, name, cookie), and — preserving an observed asymmetry with
// READDIRPLUS rather than "fixing" it — args.dircount serves as both the
// result-count estimate passed to the back-end and the hard total-bytes
// ceiling.
//
// The incoming cookie verifier is never checked against the directory's
// current one; readdirPlus treats it the same way.
func readdir(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	dirHandle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	cookie, err := dec.Uint64()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	if _, err := dec.FixedOpaque(8); err != nil { // cookieverf3, ignored
		return rpc.GarbageArgsReply(xid)
	}
	dircount, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	dirAttr, attrStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	dirPostAttr := voidPostOpAttr(dirAttr, attrStatus)
	verf := cookieVerf(dirPostAttr)

	estimatedMaxResults := int(dircount / 16)
	entries, end, status := vfs.ReadDirSimple(ctx, rctx.FS, dirID, cookie, estimatedMaxResults, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, dirPostAttr)
	e.PutFixedOpaque(verf[:])

	maxBytesAllowed := int(dircount) - 128
	allWritten := true
	for _, entry := range entries {
		scratch := xdr.NewEncoder()
		scratch.PutBool(true)
		scratch.PutUint64(entry.FileID)
		scratch.PutString(entry.Name)
		scratch.PutUint64(entry.FileID) // cookie == fileid
		if scratch.Len()+e.Len() >= maxBytesAllowed {
			allWritten = false
			break
		}
		e.PutFixedOpaque(scratch.Bytes())
	}
	e.PutBool(false)
	e.PutBool(allWritten && end)
	return e.Bytes()
}

// readdirPlus implements READDIRPLUS: entries additionally carry
// post_op_attr and post_op_fh3, and the hard total-bytes ceiling is
// args.maxcount (not dircount, which here only estimates a result-count
// hint and bounds the separate informative-bytes running total).
func readdirPlus(ctx context.Context, rctx *rpc.Context, xid uint32, dec *xdr.Decoder) []byte {
	dirHandle, err := dec.Opaque()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	cookie, err := dec.Uint64()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	if _, err := dec.FixedOpaque(8); err != nil { // cookieverf3, ignored
		return rpc.GarbageArgsReply(xid)
	}
	dircount, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}
	maxcount, err := dec.Uint32()
	if err != nil {
		return rpc.GarbageArgsReply(xid)
	}

	dirID, status := resolveHandle(dirHandle)
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	dirAttr, attrStatus := rctx.FS.GetAttr(ctx, dirID, rctx.UserContext())
	dirPostAttr := voidPostOpAttr(dirAttr, attrStatus)
	verf := cookieVerf(dirPostAttr)

	estimatedMaxResults := int(dircount / 16)
	entries, end, status := rctx.FS.ReadDir(ctx, dirID, cookie, estimatedMaxResults, rctx.UserContext())
	if status != vfs.StatusOK {
		return statusWithVoidAttrReply(xid, status)
	}

	e := rpc.EncodeSuccess(xid)
	e.PutUint32(uint32(vfs.StatusOK))
	putPostOpAttr(e, dirPostAttr)
	e.PutFixedOpaque(verf[:])

	maxBytesAllowed := int(maxcount) - 128
	maxDircountBytes := int(dircount)
	accumulatedDircount := 0
	allWritten := true
	for _, entry := range entries {
		objAttr, objStatus := rctx.FS.GetAttr(ctx, entry.FileID, rctx.UserContext())

		scratch := xdr.NewEncoder()
		scratch.PutBool(true)
		scratch.PutUint64(entry.FileID)
		scratch.PutString(entry.Name)
		scratch.PutUint64(entry.FileID) // cookie == fileid
		putPostOpAttr(scratch, voidPostOpAttr(objAttr, objStatus))
		putPostOpFH3(scratch, true, vfs.IDToFH(entry.FileID))

		addedDircount := 8 + 4 + len(entry.Name) + 8
		if scratch.Len()+e.Len() >= maxBytesAllowed || addedDircount+accumulatedDircount >= maxDircountBytes {
			allWritten = false
			break
		}
		e.PutFixedOpaque(scratch.Bytes())
		accumulatedDircount += addedDircount
	}
	e.PutBool(false)
	e.PutBool(allWritten && end)
	return e.Bytes()
}
