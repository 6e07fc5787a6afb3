package nfsv3

import (
	"github.com/xetdata/nfsserve/internal/vfs"
	"github.com/xetdata/nfsserve/internal/xdr"
)

func putTime(e *xdr.Encoder, t vfs.NFSTime) {
	e.PutUint32(t.Seconds)
	e.PutUint32(t.Nanoseconds)
}

func decodeTime(d *xdr.Decoder) (vfs.NFSTime, error) {
	sec, err := d.Uint32()
	if err != nil {
		return vfs.NFSTime{}, err
	}
	nsec, err := d.Uint32()
	if err != nil {
		return vfs.NFSTime{}, err
	}
	return vfs.NFSTime{Seconds: sec, Nanoseconds: nsec}, nil
}

// putFattr3 encodes a full fattr3 record in declaration order.
func putFattr3(e *xdr.Encoder, a vfs.Fattr3) {
	e.PutUint32(uint32(a.Type))
	e.PutUint32(a.NormalizedMode())
	e.PutUint32(a.NLink)
	e.PutUint32(a.UID)
	e.PutUint32(a.GID)
	e.PutUint64(a.Size)
	e.PutUint64(a.Used)
	e.PutUint32(a.RDevMajor)
	e.PutUint32(a.RDevMinor)
	e.PutUint64(a.FSID)
	e.PutUint64(a.FileID)
	putTime(e, a.ATime)
	putTime(e, a.MTime)
	putTime(e, a.CTime)
}

// putPostOpAttr encodes a post_op_attr union: bool present, then fattr3.
func putPostOpAttr(e *xdr.Encoder, a vfs.PostOpAttr) {
	e.PutBool(a.Present)
	if a.Present {
		putFattr3(e, a.Attr)
	}
}

// putPostOpFH3 encodes a post_op_fh3 union: bool present, then an opaque
// handle.
func putPostOpFH3(e *xdr.Encoder, present bool, handle []byte) {
	e.PutBool(present)
	if present {
		e.PutOpaque(handle)
	}
}

// voidPostOpAttr attaches attributes if the getattr call that produced
// them succeeded, else reports the post_op_attr as void — the same
// getattr-may-fail-without-failing-the-call pattern every procedure uses
// to build its attribute tail.
func voidPostOpAttr(attr vfs.Fattr3, status vfs.Status) vfs.PostOpAttr {
	if status != vfs.StatusOK {
		return vfs.PostOpAttr{}
	}
	return vfs.PostOpAttr{Present: true, Attr: attr}
}

func voidPreOpAttr(attr vfs.Fattr3, status vfs.Status) vfs.PreOpAttr {
	if status != vfs.StatusOK {
		return vfs.PreOpAttr{}
	}
	return vfs.PreOpAttr{Present: true, Attr: vfs.WccAttr{Size: attr.Size, MTime: attr.MTime, CTime: attr.CTime}}
}

// putWccData encodes the (pre_op_attr, post_op_attr) pair every mutating
// reply's wcc_data carries.
func putWccData(e *xdr.Encoder, wcc vfs.WccData) {
	e.PutBool(wcc.Before.Present)
	if wcc.Before.Present {
		e.PutUint64(wcc.Before.Attr.Size)
		putTime(e, wcc.Before.Attr.MTime)
		putTime(e, wcc.Before.Attr.CTime)
	}
	putPostOpAttr(e, wcc.After)
}

// putVoidWccData encodes an empty wcc_data: both halves absent. Used on
// early failure paths before any attribute has been captured.
func putVoidWccData(e *xdr.Encoder) {
	e.PutBool(false)
	e.PutBool(false)
}

// decodeSattr3 decodes the six independently-tagged settable attributes.
func decodeSattr3(d *xdr.Decoder) (vfs.Sattr3, error) {
	var s vfs.Sattr3
	hasMode, err := d.Bool()
	if err != nil {
		return s, err
	}
	if hasMode {
		if s.Mode.Mode, err = d.Uint32(); err != nil {
			return s, err
		}
		s.Mode.Set = true
	}
	hasUID, err := d.Bool()
	if err != nil {
		return s, err
	}
	if hasUID {
		if s.UID.UID, err = d.Uint32(); err != nil {
			return s, err
		}
		s.UID.Set = true
	}
	hasGID, err := d.Bool()
	if err != nil {
		return s, err
	}
	if hasGID {
		if s.GID.GID, err = d.Uint32(); err != nil {
			return s, err
		}
		s.GID.Set = true
	}
	hasSize, err := d.Bool()
	if err != nil {
		return s, err
	}
	if hasSize {
		if s.Size.Size, err = d.Uint64(); err != nil {
			return s, err
		}
		s.Size.Set = true
	}
	if s.ATime, err = decodeSetTime(d); err != nil {
		return s, err
	}
	if s.MTime, err = decodeSetTime(d); err != nil {
		return s, err
	}
	return s, nil
}

// decodeSetTime decodes a set_atime/set_mtime three-way discriminated
// union: DONT_CHANGE=0, SET_TO_SERVER_TIME=1, SET_TO_CLIENT_TIME=2.
func decodeSetTime(d *xdr.Decoder) (vfs.SetTime3, error) {
	how, err := d.Uint32()
	if err != nil {
		return vfs.SetTime3{}, err
	}
	switch vfs.TimeHow(how) {
	case vfs.TimeDontChange, vfs.TimeSetToServer:
		return vfs.SetTime3{How: vfs.TimeHow(how)}, nil
	case vfs.TimeSetToClient:
		t, err := decodeTime(d)
		if err != nil {
			return vfs.SetTime3{}, err
		}
		return vfs.SetTime3{How: vfs.TimeSetToClient, Time: t}, nil
	default:
		return vfs.SetTime3{}, xdr.ErrInvalidData
	}
}

// decodeDiropArgs3 decodes {dir nfs_fh3, name filename3}.
func decodeDiropArgs3(d *xdr.Decoder) (handle []byte, name string, err error) {
	if handle, err = d.Opaque(); err != nil {
		return nil, "", err
	}
	if name, err = d.String(); err != nil {
		return nil, "", err
	}
	return handle, name, nil
}
