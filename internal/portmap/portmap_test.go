package portmap

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/xdr"
)

func decodeSuccessPrefix(t *testing.T, reply []byte, wantXID uint32) *xdr.Decoder {
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

func TestGetPortReturnsOwnPort(t *testing.T) {
	ctx := &rpc.Context{ListenPort: 2049}

	args := xdr.NewEncoder()
	args.PutUint32(100003)
	args.PutUint32(3)
	args.PutUint32(6)
	args.PutUint32(0)
	dec := xdr.NewDecoder(bytes.NewReader(args.Bytes()))

	reply := Dispatch(ctx, 42, ProcGetPort, dec)
	d := decodeSuccessPrefix(t, reply, 42)
	port, err := d.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(2049), port)
}

func TestNullProcedure(t *testing.T) {
	ctx := &rpc.Context{}
	reply := Dispatch(ctx, 1, ProcNull, xdr.NewDecoder(bytes.NewReader(nil)))
	decodeSuccessPrefix(t, reply, 1)
}

func TestUnknownProcedure(t *testing.T) {
	ctx := &rpc.Context{}
	reply := Dispatch(ctx, 1, 99, xdr.NewDecoder(bytes.NewReader(nil)))
	d := xdr.NewDecoder(bytes.NewReader(reply))
	_, _ = d.Uint32()
	_, _ = d.Uint32()
	_, _ = d.Uint32()
	_, _ = rpc.DecodeOpaqueAuth(d)
	acceptStat, _ := d.Uint32()
	assert.Equal(t, uint32(rpc.ProcUnavail), acceptStat)
}
