package server

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xetdata/nfsserve/backend/memfs"
	"github.com/xetdata/nfsserve/internal/portmap"
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/xdr"
)

func TestGenerateHostIP(t *testing.T) {
	assert.Equal(t, "127.88.0.1", generateHostIP(1))
	assert.Equal(t, "127.88.0.255", generateHostIP(255))
	assert.Equal(t, "127.88.1.0", generateHostIP(256))
	assert.Equal(t, "127.88.255.255", generateHostIP(0xFFFF))
}

func TestConfigApplyDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	assert.Equal(t, "auto", c.Host)
	assert.Equal(t, 2049, c.Port)
	assert.Equal(t, 5*time.Minute, c.Timeouts.Read)
	assert.Equal(t, 30*time.Second, c.Timeouts.Write)
	assert.Equal(t, 5*time.Minute, c.Timeouts.Idle)
	assert.Equal(t, 30*time.Second, c.Timeouts.Shutdown)
	assert.Equal(t, 5*time.Minute, c.MetricsLogInterval)
}

func TestConfigApplyDefaultsLeavesExplicitValues(t *testing.T) {
	c := Config{Host: "127.0.0.1", Port: 9999}
	c.applyDefaults()
	assert.Equal(t, "127.0.0.1", c.Host)
	assert.Equal(t, 9999, c.Port)
}

func TestConfigValidateRejectsBadPort(t *testing.T) {
	c := Config{Port: -1}
	assert.Error(t, c.validate())
	c = Config{Port: 70000}
	assert.Error(t, c.validate())
}

func TestConfigValidateRejectsNegativeMaxConnections(t *testing.T) {
	c := Config{MaxConnections: -1}
	assert.Error(t, c.validate())
}

func TestConfigValidateRequiresPositiveShutdownTimeout(t *testing.T) {
	c := Config{}
	assert.Error(t, c.validate())
	c.applyDefaults()
	assert.NoError(t, c.validate())
}

func TestReplyQueuePushPopFIFO(t *testing.T) {
	q := newReplyQueue()
	q.push([]byte("a"))
	q.push([]byte("b"))

	item, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, []byte("a"), item)

	item, ok = q.pop()
	require.True(t, ok)
	assert.Equal(t, []byte("b"), item)
}

func TestReplyQueuePopBlocksUntilPush(t *testing.T) {
	q := newReplyQueue()
	done := make(chan struct{})
	var item []byte
	var ok bool
	go func() {
		item, ok = q.pop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("pop returned before any push")
	case <-time.After(20 * time.Millisecond):
	}

	q.push([]byte("late"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pop never returned after push")
	}
	assert.True(t, ok)
	assert.Equal(t, []byte("late"), item)
}

func TestReplyQueueCloseUnblocksPop(t *testing.T) {
	q := newReplyQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop never returned after close")
	}
}

func TestReplyQueuePushAfterCloseIsDropped(t *testing.T) {
	q := newReplyQueue()
	q.close()
	q.push([]byte("dropped"))
	_, ok := q.pop()
	assert.False(t, ok)
}

// encodePortmapNullCall builds a minimal framed RPC call body for
// portmap NULL, bypassing the nfsv3 client stack entirely since this
// test only exercises the connection server's own plumbing.
func encodePortmapNullCall(xid uint32) []byte {
	e := xdr.NewEncoder()
	e.PutUint32(xid)
	e.PutUint32(0) // msg_type = CALL
	e.PutUint32(rpc.Version)
	e.PutUint32(portmap.Program)
	e.PutUint32(portmap.Version)
	e.PutUint32(portmap.ProcNull)
	e.PutUint32(uint32(rpc.AuthNull)) // cred flavor
	e.PutOpaque(nil)                  // cred body
	e.PutUint32(uint32(rpc.AuthNull)) // verf flavor
	e.PutOpaque(nil)                  // verf body
	return e.Bytes()
}

func TestServeDispatchesPortmapNullOverLoopback(t *testing.T) {
	srv := New(Config{Host: "127.0.0.1", Port: 0}, memfs.New(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	var port uint16
	require.Eventually(t, func() bool {
		port = srv.Port()
		return port != 0
	}, time.Second, time.Millisecond)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port))))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, rpc.WriteRecord(conn, encodePortmapNullCall(42)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := rpc.ReadRecord(conn)
	require.NoError(t, err)
	require.Len(t, reply, 24)

	gotXID := uint32(reply[0])<<24 | uint32(reply[1])<<16 | uint32(reply[2])<<8 | uint32(reply[3])
	assert.Equal(t, uint32(42), gotXID)

	msgType := be32(reply[4:])
	assert.Equal(t, uint32(1), msgType) // REPLY

	replyStat := be32(reply[8:])
	assert.Zero(t, replyStat) // MSG_ACCEPTED

	cancel()
	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
