package nfsv3

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xetdata/nfsserve/internal/fh"
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/vfs/vfstest"
	"github.com/xetdata/nfsserve/internal/xdr"
)

func encArgs(build func(e *xdr.Encoder)) *xdr.Decoder {
	e := xdr.NewEncoder()
	build(e)
	return xdr.NewDecoder(bytes.NewReader(e.Bytes()))
}

// decodeAccepted strips the common (xid, REPLY, MSG_ACCEPTED, verf,
// SUCCESS) prefix every Dispatch reply shares and returns a decoder
// positioned at the procedure's result shape.
func decodeAccepted(t *testing.T, reply []byte, wantXID uint32) *xdr.Decoder {
	t.Helper()
	d := xdr.NewDecoder(bytes.NewReader(reply))
	xid, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, wantXID, xid)
	msgType, _ := d.Uint32()
	assert.Equal(t, uint32(1), msgType)
	replyStat, _ := d.Uint32()
	assert.Equal(t, uint32(0), replyStat)
	_, err = rpc.DecodeOpaqueAuth(d)
	require.NoError(t, err)
	acceptStat, _ := d.Uint32()
	assert.Equal(t, uint32(rpc.Success), acceptStat)
	return d
}

// skipFattr3 advances past one encoded fattr3 record, matching
// putFattr3's exact field widths (the 64-bit fields are not
// interchangeable with two 32-bit reads for any purpose beyond skipping).
func skipFattr3(d *xdr.Decoder) {
	for i := 0; i < 5; i++ { // type, mode, nlink, uid, gid
		_, _ = d.Uint32()
	}
	_, _ = d.Uint64() // size
	_, _ = d.Uint64() // used
	_, _ = d.Uint32() // rdev major
	_, _ = d.Uint32() // rdev minor
	_, _ = d.Uint64() // fsid
	_, _ = d.Uint64() // fileid
	for i := 0; i < 6; i++ { // atime, mtime, ctime (seconds, nseconds each)
		_, _ = d.Uint32()
	}
}

func newCtx(fs vfs.FileSystem) *rpc.Context {
	return &rpc.Context{FS: fs}
}

func rootHandle(fake *vfstest.Fake) []byte {
	return fh.Mint(fake.RootDir())
}

func TestNullReturnsEmptyBody(t *testing.T) {
	reply := Dispatch(newCtx(vfstest.New()), 1, ProcNull, xdr.NewDecoder(bytes.NewReader(nil)))
	d := decodeAccepted(t, reply, 1)
	_, err := d.Uint32()
	assert.Error(t, err, "NULL reply body must be empty")
}

func TestGetAttrRoot(t *testing.T) {
	fake := vfstest.New()
	dec := encArgs(func(e *xdr.Encoder) { e.PutOpaque(rootHandle(fake)) })
	reply := Dispatch(newCtx(fake), 2, ProcGetAttr, dec)
	d := decodeAccepted(t, reply, 2)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusOK), status)
	ftype, _ := d.Uint32()
	assert.Equal(t, uint32(vfs.FileTypeDir), ftype)
}

func TestGetAttrStaleHandle(t *testing.T) {
	fake := vfstest.New()
	handle := rootHandle(fake)
	handle[0] ^= 0xFF // flip a generation byte
	dec := encArgs(func(e *xdr.Encoder) { e.PutOpaque(handle) })
	reply := Dispatch(newCtx(fake), 3, ProcGetAttr, dec)
	d := decodeAccepted(t, reply, 3)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusStale), status)
}

func TestGetAttrBadHandleLength(t *testing.T) {
	fake := vfstest.New()
	dec := encArgs(func(e *xdr.Encoder) { e.PutOpaque([]byte{1, 2, 3}) })
	reply := Dispatch(newCtx(fake), 4, ProcGetAttr, dec)
	d := decodeAccepted(t, reply, 4)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusBadHandle), status)
}

func TestLookupNegative(t *testing.T) {
	fake := vfstest.New()
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutString("does-not-exist")
	})
	reply := Dispatch(newCtx(fake), 5, ProcLookup, dec)
	d := decodeAccepted(t, reply, 5)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusNoEnt), status)
	hasDirAttr, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, hasDirAttr, "directory post-op attr must still be present on a negative lookup")
}

func TestWriteThenRead(t *testing.T) {
	fake := vfstest.New()
	fileID := fake.AddFile(fake.RootDir(), "a", nil)
	handle := fh.Mint(fileID)

	writeDec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(handle)
		e.PutUint64(0)
		e.PutUint32(5)
		e.PutUint32(stableHowFileSync)
		e.PutOpaque([]byte("hello"))
	})
	reply := Dispatch(newCtx(fake), 6, ProcWrite, writeDec)
	d := decodeAccepted(t, reply, 6)
	status, err := d.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(vfs.StatusOK), status)

	readDec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(handle)
		e.PutUint64(0)
		e.PutUint32(10)
	})
	reply = Dispatch(newCtx(fake), 7, ProcRead, readDec)
	d = decodeAccepted(t, reply, 7)
	status, err = d.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(vfs.StatusOK), status)
	hasAttr, _ := d.Bool()
	require.True(t, hasAttr)
	skipFattr3(d)
	count, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), count)
	eof, err := d.Bool()
	require.NoError(t, err)
	assert.True(t, eof)
	data, err := d.Opaque()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteGarbageArgsOnCountMismatch(t *testing.T) {
	fake := vfstest.New()
	fileID := fake.AddFile(fake.RootDir(), "a", nil)
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(fh.Mint(fileID))
		e.PutUint64(0)
		e.PutUint32(99) // count does not match data length
		e.PutUint32(stableHowFileSync)
		e.PutOpaque([]byte("hello"))
	})
	reply := Dispatch(newCtx(fake), 8, ProcWrite, dec)
	d := xdr.NewDecoder(bytes.NewReader(reply))
	_, _ = d.Uint32()
	_, _ = d.Uint32()
	_, _ = d.Uint32()
	_, _ = rpc.DecodeOpaqueAuth(d)
	acceptStat, _ := d.Uint32()
	assert.Equal(t, uint32(rpc.GarbageArgs), acceptStat)
}

func TestReadOnlyGateBlocksCreateWithoutCallingBackend(t *testing.T) {
	fake := vfstest.NewReadOnly()
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutString("x")
		e.PutUint32(uint32(vfs.CreateUnchecked))
		e.PutBool(false) // mode
		e.PutBool(false) // uid
		e.PutBool(false) // gid
		e.PutBool(false) // size
		e.PutUint32(uint32(vfs.TimeDontChange))
		e.PutUint32(uint32(vfs.TimeDontChange))
	})
	reply := Dispatch(newCtx(fake), 9, ProcCreate, dec)
	d := decodeAccepted(t, reply, 9)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusROFS), status)

	id, status2 := fake.Lookup(context.Background(), fake.RootDir(), "x", vfs.UserContext{})
	assert.Equal(t, vfs.StatusNoEnt, status2)
	assert.Zero(t, id)
}

func TestAccessMasksToReadLookupOnReadOnly(t *testing.T) {
	fake := vfstest.NewReadOnly()
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutUint32(vfs.AccessRead | vfs.AccessModify | vfs.AccessLookup | vfs.AccessExecute)
	})
	reply := Dispatch(newCtx(fake), 10, ProcAccess, dec)
	d := decodeAccepted(t, reply, 10)
	status, err := d.Uint32()
	require.NoError(t, err)
	require.Equal(t, uint32(vfs.StatusOK), status)
	hasAttr, _ := d.Bool()
	require.True(t, hasAttr)
	skipFattr3(d)
	mask, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, vfs.AccessRead|vfs.AccessLookup, mask)
}

func TestReaddirPaginationNoDuplicatesOrOmissions(t *testing.T) {
	fake := vfstest.New()
	root := fake.RootDir()
	fake.AddFile(root, "10", nil) // fileids are assigned sequentially from 2
	fake.AddFile(root, "20", nil)
	fake.AddFile(root, "30", nil)
	fake.AddFile(root, "40", nil)

	var seen []uint64
	cookie := uint64(0)
	for {
		dec := encArgs(func(e *xdr.Encoder) {
			e.PutOpaque(rootHandle(fake))
			e.PutUint64(cookie)
			var verf [8]byte
			e.PutFixedOpaque(verf[:])
			e.PutUint32(1 << 20)
		})
		reply := Dispatch(newCtx(fake), 11, ProcReaddir, dec)
		d := decodeAccepted(t, reply, 11)
		status, err := d.Uint32()
		require.NoError(t, err)
		require.Equal(t, uint32(vfs.StatusOK), status)
		hasAttr, _ := d.Bool()
		require.True(t, hasAttr)
		skipFattr3(d)
		_, _ = d.FixedOpaque(8) // cookieverf

		var eof bool
		for {
			hasEntry, err := d.Bool()
			require.NoError(t, err)
			if !hasEntry {
				eof, err = d.Bool()
				require.NoError(t, err)
				break
			}
			fileid, _ := d.Uint64()
			name, _ := d.String()
			entryCookie, _ := d.Uint64()
			require.Equal(t, fileid, entryCookie)
			require.Greater(t, fileid, cookie)
			seen = append(seen, fileid)
			_ = name
			cookie = fileid
		}
		if eof {
			break
		}
	}
	assert.Equal(t, []uint64{2, 3, 4, 5}, seen)
}

func TestReaddirPlusBudgetTruncatesWithoutEOF(t *testing.T) {
	fake := vfstest.New()
	root := fake.RootDir()
	for i := 0; i < 50; i++ {
		fake.AddFile(root, string(rune('a'+i%26))+string(rune('0'+i/26)), nil)
	}
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutUint64(0)
		var verf [8]byte
		e.PutFixedOpaque(verf[:])
		e.PutUint32(4096)
		e.PutUint32(256) // tiny maxcount forces truncation
	})
	reply := Dispatch(newCtx(fake), 12, ProcReaddirPlus, dec)
	assert.LessOrEqual(t, len(reply), 256, "reply must respect the client's maxcount budget")
	d := decodeAccepted(t, reply, 12)
	status, _ := d.Uint32()
	require.Equal(t, uint32(vfs.StatusOK), status)
	hasAttr, _ := d.Bool()
	require.True(t, hasAttr)
	skipFattr3(d)
	_, _ = d.FixedOpaque(8)
	entryCount := 0
	for {
		hasEntry, err := d.Bool()
		require.NoError(t, err)
		if !hasEntry {
			break
		}
		_, _ = d.Uint64()
		_, _ = d.String()
		_, _ = d.Uint64()
		hasObjAttr, _ := d.Bool()
		if hasObjAttr {
			skipFattr3(d)
		}
		hasHandle, _ := d.Bool()
		if hasHandle {
			_, _ = d.Opaque()
		}
		entryCount++
	}
	eof, err := d.Bool()
	require.NoError(t, err)
	assert.False(t, eof, "a truncated listing must report eof=false")
	assert.Less(t, entryCount, 50)
}

func TestMkdirReadOnlyGate(t *testing.T) {
	fake := vfstest.NewReadOnly()
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutString("sub")
		e.PutBool(false)
		e.PutBool(false)
		e.PutBool(false)
		e.PutBool(false)
		e.PutUint32(uint32(vfs.TimeDontChange))
		e.PutUint32(uint32(vfs.TimeDontChange))
	})
	reply := Dispatch(newCtx(fake), 13, ProcMkdir, dec)
	d := decodeAccepted(t, reply, 13)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusROFS), status)
}

func TestRemoveRoutesRmdirToSameBackendCall(t *testing.T) {
	fake := vfstest.New()
	fake.AddDir(fake.RootDir(), "sub")
	dec := encArgs(func(e *xdr.Encoder) {
		e.PutOpaque(rootHandle(fake))
		e.PutString("sub")
	})
	reply := Dispatch(newCtx(fake), 14, ProcRmdir, dec)
	d := decodeAccepted(t, reply, 14)
	status, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(vfs.StatusOK), status)

	_, status2 := fake.Lookup(context.Background(), fake.RootDir(), "sub", vfs.UserContext{})
	assert.Equal(t, vfs.StatusNoEnt, status2)
}
