// Package xdr implements RFC 1014 / RFC 4506 External Data Representation
// encoding and decoding for the primitive and compound shapes the RPC and
// NFS v3 programs need: fixed-width integers, booleans, opaque byte
// strings, and the padding rules that keep everything 4-byte aligned.
package xdr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidData signals a decode failure: an unknown enum value, a bad
// union discriminant, or data that does not fit the XDR shape being
// decoded. Callers outside this package generally map it to
// NFS3ERR_GARBAGEARGS / GARBAGE_ARGS.
var ErrInvalidData = errors.New("xdr: invalid data")

// maxOpaque bounds variable-length opaque/string decodes against a
// corrupt or hostile length prefix; nothing in the NFS v3 procedures this
// engine supports ever needs an opaque blob this large.
const maxOpaque = 64 << 20

// Encoder accumulates XDR-encoded bytes into an in-memory buffer. The
// zero value is ready to use.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the accumulated, 4-byte-aligned wire representation.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len reports the number of bytes written so far.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// PutUint32 encodes an unsigned 32-bit integer, big-endian.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// PutInt32 encodes a signed 32-bit integer, big-endian two's complement.
func (e *Encoder) PutInt32(v int32) {
	e.PutUint32(uint32(v))
}

// PutUint64 encodes an unsigned 64-bit (hyper) integer, big-endian.
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// PutInt64 encodes a signed 64-bit (hyper) integer, big-endian.
func (e *Encoder) PutInt64(v int64) {
	e.PutUint64(uint64(v))
}

// PutBool encodes a boolean as a 4-byte 0/1.
func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutUint32(1)
	} else {
		e.PutUint32(0)
	}
}

// PutFixedOpaque writes fixed-length opaque data verbatim, padded to a
// multiple of 4 bytes. The caller is responsible for the data being
// exactly the declared fixed length.
func (e *Encoder) PutFixedOpaque(data []byte) {
	e.buf.Write(data)
	e.writePadding(len(data))
}

// PutOpaque writes variable-length opaque data: a 4-byte length prefix,
// the payload, then zero padding to a multiple of 4 bytes.
func (e *Encoder) PutOpaque(data []byte) {
	e.PutUint32(uint32(len(data)))
	e.buf.Write(data)
	e.writePadding(len(data))
}

// PutString writes an XDR string: identical wire shape to PutOpaque.
func (e *Encoder) PutString(s string) {
	e.PutOpaque([]byte(s))
}

func (e *Encoder) writePadding(dataLen int) {
	if pad := padLen(dataLen); pad > 0 {
		var zero [4]byte
		e.buf.Write(zero[:pad])
	}
}

func padLen(n int) int {
	return (4 - (n % 4)) % 4
}

// Decoder consumes XDR-encoded bytes from an io.Reader. It is used both
// over a bytes.Reader wrapping one fully-reassembled RPC message, and
// (in principle) over any io.Reader that yields a conformant byte stream.
type Decoder struct {
	r io.Reader
}

// NewDecoder wraps r for sequential XDR decoding.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) readFull(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: short read wanting %d bytes: %v", ErrInvalidData, n, err)
		}
		return nil, err
	}
	return b, nil
}

// Uint32 decodes an unsigned 32-bit integer.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Int32 decodes a signed 32-bit integer.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Uint64 decodes an unsigned 64-bit (hyper) integer.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.readFull(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64 decodes a signed 64-bit (hyper) integer.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Bool decodes a 4-byte boolean. Any nonzero value decodes as true.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// FixedOpaque decodes n bytes of fixed-length opaque data plus its
// padding to the next 4-byte boundary.
func (d *Decoder) FixedOpaque(n int) ([]byte, error) {
	b, err := d.readFull(n)
	if err != nil {
		return nil, err
	}
	if pad := padLen(n); pad > 0 {
		if _, err := d.readFull(pad); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Opaque decodes variable-length opaque data: a length prefix, the
// payload, and its padding.
func (d *Decoder) Opaque() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if n > maxOpaque {
		return nil, fmt.Errorf("%w: opaque length %d exceeds limit", ErrInvalidData, n)
	}
	b, err := d.readFull(int(n))
	if err != nil {
		return nil, err
	}
	if pad := padLen(int(n)); pad > 0 {
		if _, err := d.readFull(pad); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// String decodes an XDR string: identical wire shape to Opaque.
func (d *Decoder) String() (string, error) {
	b, err := d.Opaque()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
