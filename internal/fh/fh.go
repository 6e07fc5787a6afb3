// Package fh mints and parses the engine's opaque NFS v3 file handles:
// 16 bytes on the wire, an 8-byte generation number followed by an
// 8-byte fileid, both little-endian. The generation number is chosen
// once per process and never changes, so handles minted by a prior run
// are always detected as stale.
package fh

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// Size is the wire length of a well-formed handle.
const Size = 16

// ErrBadHandle is returned when a handle's length is not exactly Size.
var ErrBadHandle = errors.New("fh: malformed file handle")

// ErrStale is returned when a handle's generation does not match the
// generation of the running engine.
var ErrStale = errors.New("fh: stale file handle")

var (
	genOnce  sync.Once
	genValue uint64
)

// Generation returns the process-wide generation number, computed once
// from the wall clock at first use (milliseconds since the Unix epoch).
// It never changes afterward, so it is safe to read concurrently without
// further synchronization.
func Generation() uint64 {
	genOnce.Do(func() {
		genValue = uint64(time.Now().UnixMilli())
	})
	return genValue
}

// Mint encodes a fileid into an opaque handle using the engine's current
// generation number.
func Mint(fileid uint64) []byte {
	buf := make([]byte, Size)
	binary.LittleEndian.PutUint64(buf[0:8], Generation())
	binary.LittleEndian.PutUint64(buf[8:16], fileid)
	return buf
}

// Parse decodes an opaque handle back into a fileid, verifying both its
// length and its generation number against the running engine.
func Parse(handle []byte) (uint64, error) {
	if len(handle) != Size {
		return 0, ErrBadHandle
	}
	gen := binary.LittleEndian.Uint64(handle[0:8])
	if gen != Generation() {
		return 0, ErrStale
	}
	return binary.LittleEndian.Uint64(handle[8:16]), nil
}
