package vfs

import (
	"context"
	"strings"

	"github.com/xetdata/nfsserve/internal/fh"
)

// ACCESS3 bit values per RFC 1813 §3.3.4. The engine never consults mode
// bits; it echoes the requested mask, masked down to AccessRead|AccessLookup
// when the back-end is read-only.
const (
	AccessRead    uint32 = 0x0001
	AccessLookup  uint32 = 0x0002
	AccessModify  uint32 = 0x0004
	AccessExtend  uint32 = 0x0008
	AccessDelete  uint32 = 0x0010
	AccessExecute uint32 = 0x0020
)

// UserContext is the caller identity threaded down from the RPC layer's
// AUTH_UNIX credential. The reference engine does not enforce permissions
// against it; back-ends may.
type UserContext struct {
	UID  uint32
	GID  uint32
	GIDs []uint32
}

// FileSystem is the back-end contract the NFS v3 program calls into. A
// shared, concurrency-safe implementation is handed to the connection
// server once at startup and cloned (by reference) into every connection
// context; its lifetime equals the process.
//
// Each operation returns either success or a Status. Implementations own
// their own internal locking; the engine holds no lock across a back-end
// call.
type FileSystem interface {
	// Capabilities reports whether this back-end accepts mutating calls.
	Capabilities() Capabilities

	// RootDir returns the fileid of "/".
	RootDir() uint64

	// Lookup resolves name within the directory dir.
	Lookup(ctx context.Context, dir uint64, name string, user UserContext) (uint64, Status)

	// GetAttr returns the attributes of id.
	GetAttr(ctx context.Context, id uint64, user UserContext) (Fattr3, Status)

	// SetAttr applies settable attributes to id.
	SetAttr(ctx context.Context, id uint64, attr Sattr3, user UserContext) (Fattr3, Status)

	// Read returns up to count bytes starting at offset, and whether the
	// read reached end of file.
	Read(ctx context.Context, id uint64, offset uint64, count uint32, user UserContext) ([]byte, bool, Status)

	// Write stores data at offset, returning the object's attributes
	// after the write.
	Write(ctx context.Context, id uint64, offset uint64, data []byte, user UserContext) (Fattr3, Status)

	// Create makes a regular file named name in dir with the given
	// attributes, following the non-exclusive createmode3 semantics
	// (UNCHECKED/GUARDED are distinguished by the caller, not here).
	Create(ctx context.Context, dir uint64, name string, attr Sattr3, user UserContext) (uint64, Fattr3, Status)

	// CreateExclusive atomically creates-or-fails name in dir with no
	// attribute application, for createmode3 == EXCLUSIVE.
	CreateExclusive(ctx context.Context, dir uint64, name string, user UserContext) (uint64, Status)

	// Mkdir creates a subdirectory.
	Mkdir(ctx context.Context, dir uint64, name string, attr Sattr3, user UserContext) (uint64, Fattr3, Status)

	// Symlink creates a symbolic link pointing at target.
	Symlink(ctx context.Context, dir uint64, name string, target string, attr Sattr3, user UserContext) (uint64, Fattr3, Status)

	// Readlink returns the target of a symlink.
	Readlink(ctx context.Context, id uint64, user UserContext) (string, Status)

	// Remove deletes name from dir. Used for both REMOVE and RMDIR; the
	// back-end decides the removal method by the object's type.
	Remove(ctx context.Context, dir uint64, name string, user UserContext) Status

	// Rename moves fromName in fromDir to toName in toDir.
	Rename(ctx context.Context, fromDir uint64, fromName string, toDir uint64, toName string, user UserContext) Status

	// ReadDir lists directory entries strictly after startAfter (0 means
	// from the start), returning at most maxEntries entries in a fixed,
	// deterministic order, plus whether the listing reached the end of
	// the directory.
	ReadDir(ctx context.Context, dir uint64, startAfter uint64, maxEntries int, user UserContext) ([]DirEntry, bool, Status)

	// ServerID returns a stable per-process identifier used to fill the
	// WRITE procedure's write verifier.
	ServerID() uint64
}

// ReadDirSimple projects ReadDir down to the (fileid, name) pairs that
// the plain READDIR procedure needs, reusing the same back-end call as
// READDIRPLUS.
func ReadDirSimple(ctx context.Context, f FileSystem, dir uint64, startAfter uint64, maxEntries int, user UserContext) ([]DirEntry, bool, Status) {
	return f.ReadDir(ctx, dir, startAfter, maxEntries, user)
}

// PathToID walks a slash-separated path from RootDir using Lookup,
// exactly the way MNT resolves the path argument it is given.
func PathToID(ctx context.Context, f FileSystem, path string, user UserContext) (uint64, Status) {
	id := f.RootDir()
	path = strings.Trim(path, "/")
	if path == "" {
		return id, StatusOK
	}
	for _, component := range strings.Split(path, "/") {
		if component == "" {
			continue
		}
		next, st := f.Lookup(ctx, id, component, user)
		if st != StatusOK {
			return 0, st
		}
		id = next
	}
	return id, StatusOK
}

// IDToFH mints an opaque handle for a fileid.
func IDToFH(id uint64) []byte {
	return fh.Mint(id)
}

// FHToID parses an opaque handle back into a fileid.
func FHToID(handle []byte) (uint64, error) {
	return fh.Parse(handle)
}

// FSInfo3 is the synthetic, constant filesystem-capability record FSINFO
// reports for every object, per design note: rt/wt preferred 1 MiB, max
// file size 128 GiB, 1 ms time granularity, SYMLINK|HOMOGENEOUS|CANSETTIME.
type FSInfo3 struct {
	RtMax           uint32
	RtPref          uint32
	RtMult          uint32
	WtMax           uint32
	WtPref          uint32
	WtMult          uint32
	DtPref          uint32
	MaxFileSize     uint64
	TimeDeltaSecs   uint32
	TimeDeltaNSecs  uint32
	Properties      uint32
}

const (
	fsInfoPropFSLink       = 0x0001
	fsInfoPropFSSymlink    = 0x0002
	fsInfoPropHomogeneous  = 0x0008
	fsInfoPropCanSetTime   = 0x0010
)

// DefaultFSInfo returns the engine's fixed FSINFO constants.
func DefaultFSInfo() FSInfo3 {
	const oneMiB = 1 << 20
	return FSInfo3{
		RtMax:          oneMiB,
		RtPref:         oneMiB,
		RtMult:         4096,
		WtMax:          oneMiB,
		WtPref:         oneMiB,
		WtMult:         4096,
		DtPref:         oneMiB,
		MaxFileSize:    128 << 30,
		TimeDeltaSecs:  0,
		TimeDeltaNSecs: 1_000_000,
		Properties:     fsInfoPropFSSymlink | fsInfoPropHomogeneous | fsInfoPropCanSetTime,
	}
}

// FSStat3 is the synthetic, constant filesystem-capacity record FSSTAT
// reports: 1 TiB total, 1 Gi files, all reported as "free" too since the
// reference back-ends never run out.
type FSStat3 struct {
	TBytes  uint64
	FBytes  uint64
	ABytes  uint64
	TFiles  uint64
	FFiles  uint64
	AFiles  uint64
	Invarsec uint32
}

// DefaultFSStat returns the engine's fixed FSSTAT constants.
func DefaultFSStat() FSStat3 {
	const oneTiB = 1 << 40
	const oneGiFiles = 1 << 30
	return FSStat3{
		TBytes: oneTiB,
		FBytes: oneTiB,
		ABytes: oneTiB,
		TFiles: oneGiFiles,
		FFiles: oneGiFiles,
		AFiles: oneGiFiles,
	}
}

// PathConf3 is the synthetic, constant PATHCONF record.
type PathConf3 struct {
	LinkMax        uint32
	NameMax        uint32
	NoTrunc        bool
	ChownRestricted bool
	CaseInsensitive bool
	CasePreserving  bool
}

// DefaultPathConf returns the engine's fixed PATHCONF constants:
// name_max 32768, case-preserving, case-sensitive, no truncation, chown
// restricted.
func DefaultPathConf() PathConf3 {
	return PathConf3{
		LinkMax:         1,
		NameMax:         32768,
		NoTrunc:         true,
		ChownRestricted: true,
		CaseInsensitive: false,
		CasePreserving:  true,
	}
}
