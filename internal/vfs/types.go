// Package vfs defines the virtual file-system contract the NFS v3
// program calls into, and the attribute/status types shared by the
// wire protocol and the back-end implementations. Concrete back-ends
// (an in-memory demo tree, a host-filesystem mirror) live outside this
// package and satisfy FileSystem.
package vfs

import "time"

// Status is the nfsstat3 enumeration from RFC 1813 §2.6. The engine
// surfaces back-end failures verbatim through this type and adds a
// handful of values itself (BadHandle, Stale, ROFS, NotSync, BadType);
// back-ends may return some of these as well.
type Status uint32

const (
	StatusOK             Status = 0
	StatusPerm           Status = 1
	StatusNoEnt          Status = 2
	StatusIO             Status = 5
	StatusNXIO           Status = 6
	StatusAccess         Status = 13
	StatusExist          Status = 17
	StatusXDev           Status = 18
	StatusNoDev          Status = 19
	StatusNotDir         Status = 20
	StatusIsDir          Status = 21
	StatusInval          Status = 22
	StatusFBig           Status = 27
	StatusNoSpc          Status = 28
	StatusROFS           Status = 30
	StatusMlink          Status = 31
	StatusNameTooLong    Status = 63
	StatusNotEmpty       Status = 66
	StatusDQuot          Status = 69
	StatusStale          Status = 70
	StatusRemote         Status = 71
	StatusBadHandle      Status = 10001
	StatusNotSync        Status = 10002
	StatusBadCookie      Status = 10003
	StatusNotSupp        Status = 10004
	StatusTooSmall       Status = 10005
	StatusServerFault    Status = 10006
	StatusBadType        Status = 10007
	StatusJukebox        Status = 10008
)

// FileType is the ftype3 discriminant.
type FileType uint32

const (
	FileTypeRegular FileType = 1
	FileTypeDir     FileType = 2
	FileTypeBlock   FileType = 3
	FileTypeChar    FileType = 4
	FileTypeLink    FileType = 5
	FileTypeSocket  FileType = 6
	FileTypeFIFO    FileType = 7
)

// NFSTime is the (seconds, nanoseconds) pair nfstime3 uses for access,
// modification, and change timestamps.
type NFSTime struct {
	Seconds     uint32
	Nanoseconds uint32
}

// FromTime converts a time.Time into the wire's (seconds, nanoseconds)
// shape, truncating to the Unix epoch granularity NFS v3 defines.
func FromTime(t time.Time) NFSTime {
	return NFSTime{
		Seconds:     uint32(t.Unix()),
		Nanoseconds: uint32(t.Nanosecond()),
	}
}

// Time reconstructs a time.Time from the wire representation.
func (t NFSTime) Time() time.Time {
	return time.Unix(int64(t.Seconds), int64(t.Nanoseconds))
}

// Before reports whether t happened strictly before other.
func (t NFSTime) Before(other NFSTime) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Nanoseconds < other.Nanoseconds
}

// Fattr3 is the full object attribute record returned by most
// successful replies.
type Fattr3 struct {
	Type       FileType
	Mode       uint32
	NLink      uint32
	UID        uint32
	GID        uint32
	Size       uint64
	Used       uint64
	RDevMajor  uint32
	RDevMinor  uint32
	FSID       uint64
	FileID     uint64
	ATime      NFSTime
	MTime      NFSTime
	CTime      NFSTime
}

// NormalizedMode returns Mode with the owner-write bit forced on, as the
// engine always reports it regardless of what a back-end tracks
// internally.
func (a Fattr3) NormalizedMode() uint32 {
	const ownerWrite = 0o200
	return a.Mode | ownerWrite
}

// SetMode3 is a tagged optional mode field in Sattr3.
type SetMode3 struct {
	Set  bool
	Mode uint32
}

// SetUID3 is a tagged optional uid field in Sattr3.
type SetUID3 struct {
	Set bool
	UID uint32
}

// SetGID3 is a tagged optional gid field in Sattr3.
type SetGID3 struct {
	Set bool
	GID uint32
}

// SetSize3 is a tagged optional size field in Sattr3.
type SetSize3 struct {
	Set  bool
	Size uint64
}

// TimeHow is the set_atime/set_mtime discriminant: don't change, set to
// the server's current clock, or set to a client-supplied value.
type TimeHow uint32

const (
	TimeDontChange  TimeHow = 0
	TimeSetToServer TimeHow = 1
	TimeSetToClient TimeHow = 2
)

// SetTime3 is the three-way tagged atime/mtime field in Sattr3.
type SetTime3 struct {
	How  TimeHow
	Time NFSTime
}

// Sattr3 is the settable-attributes record: six independently optional
// fields.
type Sattr3 struct {
	Mode  SetMode3
	UID   SetUID3
	GID   SetGID3
	Size  SetSize3
	ATime SetTime3
	MTime SetTime3
}

// WccAttr is the lightweight pre-op attribute triple: size, mtime, ctime,
// captured before a mutation so the client can detect whether its cache
// is still valid.
type WccAttr struct {
	Size  uint64
	MTime NFSTime
	CTime NFSTime
}

// PreOpAttr is a WccAttr that may be absent ("void" in RFC 1813's union
// shape) when the engine could not capture it before the mutation.
type PreOpAttr struct {
	Present bool
	Attr    WccAttr
}

// PostOpAttr is a Fattr3 that may be absent.
type PostOpAttr struct {
	Present bool
	Attr    Fattr3
}

// WccData groups the pre- and post-operation attribute pair every
// mutating NFS v3 reply carries.
type WccData struct {
	Before PreOpAttr
	After  PostOpAttr
}

// Capabilities describes what a back-end supports. A read-only back-end
// causes the engine to reject mutating procedures with NFS3ERR_ROFS
// without ever calling it.
type Capabilities struct {
	ReadOnly bool
}

// DirEntry is one row of a directory listing as the back-end reports it.
type DirEntry struct {
	FileID uint64
	Name   string
}

// CreateMode is the createmode3 discriminant for the CREATE procedure.
type CreateMode uint32

const (
	CreateUnchecked CreateMode = 0
	CreateGuarded   CreateMode = 1
	CreateExclusive CreateMode = 2
)
