package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// lastFragmentBit marks the final fragment of a record (RFC 1057 §10):
// the high bit of the 4-byte fragment header.
const lastFragmentBit = uint32(1) << 31

// maxFragmentLength is the largest payload length a single fragment
// header can express (31 bits); the engine's own replies are always
// well below this and are never split.
const maxFragmentLength = lastFragmentBit - 1

// ReadRecord reads one complete record-marked RPC message from r:
// one or more length-prefixed fragments, concatenated until a fragment
// with the last-fragment bit set is consumed.
func ReadRecord(r io.Reader) ([]byte, error) {
	var record []byte
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		word := binary.BigEndian.Uint32(header[:])
		isLast := word&lastFragmentBit != 0
		length := word &^ lastFragmentBit

		start := len(record)
		record = append(record, make([]byte, length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("fragment payload: %w", err)
		}
		if isLast {
			return record, nil
		}
	}
}

// WriteRecord frames buf as a single, last-fragment record and writes it
// to w. The engine never needs to split a reply across fragments.
func WriteRecord(w io.Writer, buf []byte) error {
	if uint32(len(buf)) > maxFragmentLength {
		return fmt.Errorf("rpc: reply of %d bytes exceeds single-fragment limit", len(buf))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], lastFragmentBit|uint32(len(buf)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(buf)
	return err
}
