package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/xetdata/nfsserve/internal/logger"
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// connection runs the reader/worker/writer pipeline for one accepted
// socket: a reader goroutine reassembles record-marked RPC calls and
// hands each to its own worker goroutine (workers may complete out of
// order), while a single writer goroutine drains an unbounded reply
// queue in completion order and frames each reply back onto the wire.
type connection struct {
	server *Server
	conn   net.Conn
	addr   string

	workers sync.WaitGroup
	replies *replyQueue
}

func newConnection(s *Server, c net.Conn) *connection {
	return &connection{
		server:  s,
		conn:    c,
		addr:    c.RemoteAddr().String(),
		replies: newReplyQueue(),
	}
}

// serve runs until the socket is closed (by the peer, by a read error,
// or by the server's shutdown sequence setting a short read deadline on
// every active connection). Before each record read the reader sets a
// read deadline of Timeouts.Idle, and before each reply write the writer
// sets a write deadline of Timeouts.Write (each only when positive); an
// expired deadline ends that side like any other I/O error.
func (c *connection) serve(ctx context.Context) {
	defer c.conn.Close()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.runWriter()
	}()

	c.runReader(ctx)

	// In-flight workers complete normally even after the reader stops;
	// the queue is closed only once they are done, so their replies are
	// still queued. If the writer has already returned on a write error,
	// those replies are never sent.
	c.workers.Wait()
	c.replies.close()
	<-writerDone
}

func (c *connection) runReader(ctx context.Context) {
	idle := c.server.config.Timeouts.Idle
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if idle > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(idle))
		}

		record, err := rpc.ReadRecord(c.conn)
		if err != nil {
			return
		}
		if c.server.metrics != nil {
			c.server.metrics.RecordBytes("read", uint64(len(record)))
		}

		c.workers.Add(1)
		go c.handleRecord(record)
	}
}

func (c *connection) handleRecord(record []byte) {
	defer c.workers.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic recovered",
				logger.ClientAddr(c.addr), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	dec := xdr.NewDecoder(bytes.NewReader(record))
	msg, err := rpc.DecodeCall(dec)
	if err != nil {
		logger.Debug("dropping malformed call", logger.ClientAddr(c.addr), logger.Err(err))
		return
	}

	start := time.Now()
	reply := c.dispatch(msg, dec)
	if c.server.metrics != nil {
		procedure := fmt.Sprintf("%d.%d", msg.Call.Prog, msg.Call.Proc)
		c.server.metrics.RecordCall(procedure, time.Since(start), acceptStatusLabel(reply))
	}
	if reply != nil {
		c.replies.push(reply)
	}
}

// acceptStatusLabel inspects a reply's reply_stat and, for an accepted
// reply, its accept_stat, purely for metrics labeling; it never affects
// what is sent on the wire. Denied replies (RPC_MISMATCH) are labeled
// directly since they carry no accept_stat at all.
func acceptStatusLabel(reply []byte) string {
	if len(reply) < 12 {
		return "unknown"
	}
	if be32(reply[8:]) != 0 { // reply_stat != MSG_ACCEPTED
		return "rpc_mismatch"
	}

	const acceptStatOffset = 4 + 4 + 4 + 4 + 4 // xid, msg_type, reply_stat, verf flavor, verf length(0)
	if len(reply) < acceptStatOffset+4 {
		return "unknown"
	}
	switch rpc.AcceptStat(be32(reply[acceptStatOffset:])) {
	case rpc.Success:
		return "ok"
	case rpc.ProgUnavail:
		return "prog_unavail"
	case rpc.ProgMismatch:
		return "prog_mismatch"
	case rpc.ProcUnavail:
		return "proc_unavail"
	case rpc.GarbageArgs:
		return "garbage_args"
	default:
		return "unknown"
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func (c *connection) dispatch(msg rpc.Message, dec *xdr.Decoder) []byte {
	if msg.Call.RPCVers != rpc.Version {
		return rpc.RPCMismatchReply(msg.XID)
	}

	var auth rpc.UnixAuth
	if msg.Call.Cred.Flavor == rpc.AuthUnix {
		var err error
		auth, err = rpc.ParseUnixAuth(msg.Call.Cred.Body)
		if err != nil {
			return rpc.GarbageArgsReply(msg.XID)
		}
	}

	rctx := &rpc.Context{
		ListenPort: c.server.Port(),
		ClientAddr: c.addr,
		Auth:       auth,
		FS:         c.server.fs,
		MountSink:  c.server.mountEvents,
	}

	return route(rctx, msg, dec)
}

func (c *connection) runWriter() {
	write := c.server.config.Timeouts.Write
	for {
		reply, ok := c.replies.pop()
		if !ok {
			return
		}
		if write > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(write))
		}
		if err := rpc.WriteRecord(c.conn, reply); err != nil {
			logger.Debug("write error, closing connection", logger.ClientAddr(c.addr), logger.Err(err))
			return
		}
		if c.server.metrics != nil {
			c.server.metrics.RecordBytes("write", uint64(len(reply)))
		}
	}
}

// replyQueue is an unbounded FIFO queue of encoded replies. Workers push
// as they complete, in whatever order that happens to be; the writer
// pops in that same completion order, which is all RFC 1057 requires
// since clients correlate replies by xid rather than wire order.
type replyQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

func newReplyQueue() *replyQueue {
	q := &replyQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *replyQueue) push(item []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed and
// drained, in which case ok is false.
func (q *replyQueue) pop() (item []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item, q.items = q.items[0], q.items[1:]
	return item, true
}

func (q *replyQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
