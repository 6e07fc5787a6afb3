// Package portmap implements the minimal RFC 1057 Appendix A portmap
// program (version 2, program number 100000) this engine needs: NULL
// and GETPORT. GETPORT always answers with the engine's own listening
// port, regardless of the queried (prog, vers, prot) triple, so that a
// client probing the portmapper on this socket discovers everything —
// NFS, mount, and the portmapper itself — on one port.
package portmap

import (
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// Program is the RPC program number for portmap.
const Program uint32 = 100000

// Version is the only portmap version this engine speaks.
const Version uint32 = 2

const (
	ProcNull    uint32 = 0
	ProcGetPort uint32 = 3
)

// mapping is the pmap2_mapping argument to GETPORT: (program, version,
// protocol, port). The engine decodes it to stay in sync with the wire
// but never consults any field.
type mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

func decodeMapping(d *xdr.Decoder) (mapping, error) {
	var m mapping
	var err error
	if m.Prog, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.Vers, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.Prot, err = d.Uint32(); err != nil {
		return m, err
	}
	if m.Port, err = d.Uint32(); err != nil {
		return m, err
	}
	return m, nil
}

// Dispatch handles one portmap v2 call and returns the complete reply
// to write back on the connection. proc is routed to NULL or GETPORT;
// anything else yields PROC_UNAVAIL.
func Dispatch(ctx *rpc.Context, xid uint32, proc uint32, dec *xdr.Decoder) []byte {
	switch proc {
	case ProcNull:
		return rpc.EncodeSuccess(xid).Bytes()
	case ProcGetPort:
		if _, err := decodeMapping(dec); err != nil {
			return rpc.GarbageArgsReply(xid)
		}
		e := rpc.EncodeSuccess(xid)
		e.PutUint32(uint32(ctx.ListenPort))
		return e.Bytes()
	default:
		return rpc.ProcUnavailReply(xid)
	}
}
