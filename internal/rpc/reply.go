package rpc

import "github.com/xetdata/nfsserve/internal/xdr"

// replyPrefix writes the common (xid, msg_type=REPLY, reply_stat=MSG_ACCEPTED,
// verf) prefix every accepted reply shares into e; callers then append
// their accept_body payload to the same encoder.
func replyPrefix(e *xdr.Encoder, xid uint32) {
	e.PutUint32(xid)
	e.PutUint32(1) // msg_type = REPLY
	e.PutUint32(0) // reply_stat = MSG_ACCEPTED
	NullAuth.Encode(e)
}

// EncodeSuccess starts an accepted, SUCCESS reply. The returned encoder
// already carries the (xid, REPLY, MSG_ACCEPTED, verf, SUCCESS) prefix;
// callers append the procedure's result shape.
func EncodeSuccess(xid uint32) *xdr.Encoder {
	e := xdr.NewEncoder()
	replyPrefix(e, xid)
	e.PutUint32(uint32(Success))
	return e
}

// ProcUnavailReply builds a complete PROC_UNAVAIL reply.
func ProcUnavailReply(xid uint32) []byte {
	e := xdr.NewEncoder()
	replyPrefix(e, xid)
	e.PutUint32(uint32(ProcUnavail))
	return e.Bytes()
}

// ProgUnavailReply builds a complete PROG_UNAVAIL reply.
func ProgUnavailReply(xid uint32) []byte {
	e := xdr.NewEncoder()
	replyPrefix(e, xid)
	e.PutUint32(uint32(ProgUnavail))
	return e.Bytes()
}

// ProgMismatchReply builds a complete PROG_MISMATCH reply reporting low
// and high as the only version this engine accepts for the program.
func ProgMismatchReply(xid uint32, low, high uint32) []byte {
	e := xdr.NewEncoder()
	replyPrefix(e, xid)
	e.PutUint32(uint32(ProgMismatch))
	e.PutUint32(low)
	e.PutUint32(high)
	return e.Bytes()
}

// GarbageArgsReply builds a complete GARBAGE_ARGS reply, used when a
// procedure's arguments fail to decode before any reply byte has been
// produced for that xid.
func GarbageArgsReply(xid uint32) []byte {
	e := xdr.NewEncoder()
	replyPrefix(e, xid)
	e.PutUint32(uint32(GarbageArgs))
	return e.Bytes()
}

// RPCMismatchReply builds a MSG_DENIED/RPC_MISMATCH reply for a call
// whose rpcvers was not 2.
func RPCMismatchReply(xid uint32) []byte {
	e := xdr.NewEncoder()
	e.PutUint32(xid)
	e.PutUint32(1) // msg_type = REPLY
	e.PutUint32(1) // reply_stat = MSG_DENIED
	e.PutUint32(uint32(RPCMismatch))
	e.PutUint32(Version)
	e.PutUint32(Version)
	return e.Bytes()
}
