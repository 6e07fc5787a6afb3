package nfsv3

import (
	"errors"

	"github.com/xetdata/nfsserve/internal/fh"
	"github.com/xetdata/nfsserve/internal/vfs"
)

// resolveHandle decodes an opaque file handle into a fileid, mapping
// fh.Parse's failure modes onto the two handle-shaped nfsstat3 values
// every procedure that takes a handle must distinguish: a payload of
// the wrong length is BADHANDLE, a well-formed handle from a different
// server generation is STALE.
func resolveHandle(handle []byte) (uint64, vfs.Status) {
	id, err := fh.Parse(handle)
	if err != nil {
		if errors.Is(err, fh.ErrStale) {
			return 0, vfs.StatusStale
		}
		return 0, vfs.StatusBadHandle
	}
	return id, vfs.StatusOK
}
