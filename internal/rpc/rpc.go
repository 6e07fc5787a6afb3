// Package rpc implements the RFC 1057 ONC RPC v2 message shapes this
// engine needs: call/reply bodies, AUTH_NULL/AUTH_UNIX credentials, and
// the accepted/denied reply constructors the dispatcher uses to answer
// PROG_UNAVAIL, PROG_MISMATCH, PROC_UNAVAIL, GARBAGE_ARGS, and
// RPC_MISMATCH without ever touching a program module.
package rpc

import (
	"bytes"
	"fmt"

	"github.com/xetdata/nfsserve/internal/xdr"
)

// Version is the only RPC protocol version this engine speaks.
const Version uint32 = 2

// AuthFlavor is the opaque_auth discriminant.
type AuthFlavor uint32

const (
	AuthNull  AuthFlavor = 0
	AuthUnix  AuthFlavor = 1
	AuthShort AuthFlavor = 2
	AuthDES   AuthFlavor = 3
)

// AcceptStat is the accept_body discriminant.
type AcceptStat uint32

const (
	Success      AcceptStat = 0
	ProgUnavail  AcceptStat = 1
	ProgMismatch AcceptStat = 2
	ProcUnavail  AcceptStat = 3
	GarbageArgs  AcceptStat = 4
)

// RejectStat is the rejected_reply discriminant.
type RejectStat uint32

const (
	RPCMismatch RejectStat = 0
	AuthError   RejectStat = 1
)

// OpaqueAuth is the (flavor, body) pair carried as cred/verf in every
// call, and as verf in every reply.
type OpaqueAuth struct {
	Flavor AuthFlavor
	Body   []byte
}

// NullAuth is the zero-length AUTH_NULL verifier the engine always
// returns; it never authenticates itself to the client.
var NullAuth = OpaqueAuth{Flavor: AuthNull}

// Encode writes the opaque_auth wire shape.
func (a OpaqueAuth) Encode(e *xdr.Encoder) {
	e.PutUint32(uint32(a.Flavor))
	e.PutOpaque(a.Body)
}

// DecodeOpaqueAuth reads an opaque_auth.
func DecodeOpaqueAuth(d *xdr.Decoder) (OpaqueAuth, error) {
	flavor, err := d.Uint32()
	if err != nil {
		return OpaqueAuth{}, err
	}
	body, err := d.Opaque()
	if err != nil {
		return OpaqueAuth{}, err
	}
	return OpaqueAuth{Flavor: AuthFlavor(flavor), Body: body}, nil
}

// UnixAuth is the decoded body of an AUTH_UNIX credential (RFC 1057
// §9.2): a timestamp, the caller's machine name, uid, gid, and
// supplementary group list.
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// maxGIDs bounds a hostile or corrupt gid-list length; RFC 1057 itself
// caps AUTH_UNIX at 16 supplementary groups.
const maxGIDs = 16

// ParseUnixAuth decodes an AUTH_UNIX credential body. It is only called
// when the call's credential flavor is AuthUnix.
func ParseUnixAuth(body []byte) (UnixAuth, error) {
	d := xdr.NewDecoder(bytes.NewReader(body))
	stamp, err := d.Uint32()
	if err != nil {
		return UnixAuth{}, fmt.Errorf("auth_unix stamp: %w", err)
	}
	machineName, err := d.String()
	if err != nil {
		return UnixAuth{}, fmt.Errorf("auth_unix machinename: %w", err)
	}
	uid, err := d.Uint32()
	if err != nil {
		return UnixAuth{}, fmt.Errorf("auth_unix uid: %w", err)
	}
	gid, err := d.Uint32()
	if err != nil {
		return UnixAuth{}, fmt.Errorf("auth_unix gid: %w", err)
	}
	n, err := d.Uint32()
	if err != nil {
		return UnixAuth{}, fmt.Errorf("auth_unix gids length: %w", err)
	}
	if n > maxGIDs {
		return UnixAuth{}, fmt.Errorf("%w: auth_unix gids length %d exceeds %d", xdr.ErrInvalidData, n, maxGIDs)
	}
	gids := make([]uint32, n)
	for i := range gids {
		gids[i], err = d.Uint32()
		if err != nil {
			return UnixAuth{}, fmt.Errorf("auth_unix gids[%d]: %w", i, err)
		}
	}
	return UnixAuth{Stamp: stamp, MachineName: machineName, UID: uid, GID: gid, GIDs: gids}, nil
}

// CallBody is the decoded call_body: the RPC version, the (prog, vers,
// proc) triple that the dispatcher routes on, and the credential/verifier
// pair. Procedure-specific arguments follow in the same message and are
// decoded by the program module the dispatcher selects.
type CallBody struct {
	RPCVers uint32
	Prog    uint32
	Vers    uint32
	Proc    uint32
	Cred    OpaqueAuth
	Verf    OpaqueAuth
}

// Message is a decoded RPC call: its xid plus the call body. Argument
// bytes that follow the call body in the original fragment are not
// copied here; callers decode them directly from the same Decoder.
type Message struct {
	XID  uint32
	Call CallBody
}

// DecodeCall reads the xid, msg_type discriminant (must be CALL = 0),
// and call_body from d. The caller's Decoder is left positioned at the
// start of the procedure-specific arguments.
func DecodeCall(d *xdr.Decoder) (Message, error) {
	xid, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("xid: %w", err)
	}
	msgType, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("msg_type: %w", err)
	}
	if msgType != 0 {
		return Message{}, fmt.Errorf("%w: msg_type %d is not CALL", xdr.ErrInvalidData, msgType)
	}
	rpcvers, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("rpcvers: %w", err)
	}
	prog, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("prog: %w", err)
	}
	vers, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("vers: %w", err)
	}
	proc, err := d.Uint32()
	if err != nil {
		return Message{}, fmt.Errorf("proc: %w", err)
	}
	cred, err := DecodeOpaqueAuth(d)
	if err != nil {
		return Message{}, fmt.Errorf("cred: %w", err)
	}
	verf, err := DecodeOpaqueAuth(d)
	if err != nil {
		return Message{}, fmt.Errorf("verf: %w", err)
	}
	return Message{
		XID: xid,
		Call: CallBody{
			RPCVers: rpcvers,
			Prog:    prog,
			Vers:    vers,
			Proc:    proc,
			Cred:    cred,
			Verf:    verf,
		},
	}, nil
}
