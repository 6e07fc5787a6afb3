package logger

import (
	"encoding/hex"
	"log/slog"
)

// Field keys shared across the engine's log call sites. Scoped to what an
// NFS engine actually logs about: RPC identity, file handles, and transfer
// sizes — not the broader taxonomy a multi-protocol server would carry.
const (
	KeyProcedure  = "procedure"
	KeyXID        = "xid"
	KeyClientAddr = "client_addr"
	KeyUID        = "uid"
	KeyGID        = "gid"
	KeyHandle     = "handle"
	KeyOffset     = "offset"
	KeyCount      = "count"
	KeyBytesRead  = "bytes_read"
	KeyBytesWrote = "bytes_written"
	KeyEOF        = "eof"
	KeyStatus     = "status"
	KeyProgram    = "program"
	KeyVersion    = "version"
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
)

func Procedure(name string) slog.Attr { return slog.String(KeyProcedure, name) }
func XID(xid uint32) slog.Attr        { return slog.Uint64(KeyXID, uint64(xid)) }
func ClientAddr(addr string) slog.Attr { return slog.String(KeyClientAddr, addr) }

// Handle formats an opaque file handle as hex for log readability.
func Handle(fh []byte) slog.Attr { return slog.String(KeyHandle, hex.EncodeToString(fh)) }

func Offset(n uint64) slog.Attr  { return slog.Uint64(KeyOffset, n) }
func Count(n uint32) slog.Attr   { return slog.Uint64(KeyCount, uint64(n)) }
func Status(status int) slog.Attr { return slog.Int(KeyStatus, status) }
func Program(prog uint32) slog.Attr { return slog.Uint64(KeyProgram, uint64(prog)) }
func Version(vers uint32) slog.Attr { return slog.Uint64(KeyVersion, uint64(vers)) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Any(KeyError, nil)
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs converts a time.Duration's millisecond count into an Attr;
// callers pass float64(d.Microseconds())/1000 to keep this package free of
// a direct time import beyond what logger.go already needs.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }
