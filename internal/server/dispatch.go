package server

import (
	"github.com/xetdata/nfsserve/internal/logger"
	"github.com/xetdata/nfsserve/internal/mount"
	"github.com/xetdata/nfsserve/internal/nfsv3"
	"github.com/xetdata/nfsserve/internal/portmap"
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/xdr"
)

// silentPrograms are routinely probed by clients (ACL, idmap, and NFSv4
// ID-mapping/metadata side-channel programs this engine never
// implements) and must be refused without the log spam a generic
// unknown-program path would produce.
var silentPrograms = map[uint32]bool{
	100227: true, // NFS_ACL
	100270: true, // idmap
	200024: true, // metadata/quota side-channel
}

// route selects the program module for msg.Call.Prog, checks its
// version, and returns the complete reply. Program numbers this engine
// does not implement at all return PROG_UNAVAIL.
func route(rctx *rpc.Context, msg rpc.Message, dec *xdr.Decoder) []byte {
	switch msg.Call.Prog {
	case portmap.Program:
		if msg.Call.Vers != portmap.Version {
			return rpc.ProgMismatchReply(msg.XID, portmap.Version, portmap.Version)
		}
		return portmap.Dispatch(rctx, msg.XID, msg.Call.Proc, dec)

	case mount.Program:
		if msg.Call.Vers != mount.Version {
			return rpc.ProgMismatchReply(msg.XID, mount.Version, mount.Version)
		}
		return mount.Dispatch(rctx, msg.XID, msg.Call.Proc, dec)

	case nfsv3.Program:
		if msg.Call.Vers != nfsv3.Version {
			return rpc.ProgMismatchReply(msg.XID, nfsv3.Version, nfsv3.Version)
		}
		return nfsv3.Dispatch(rctx, msg.XID, msg.Call.Proc, dec)

	default:
		if !silentPrograms[msg.Call.Prog] {
			logger.Debug("unknown rpc program", logger.Program(msg.Call.Prog), logger.Version(msg.Call.Vers))
		}
		return rpc.ProgUnavailReply(msg.XID)
	}
}
