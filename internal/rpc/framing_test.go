package rpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRecordShape(t *testing.T) {
	payload := []byte("hello world")
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, payload))

	assert.Equal(t, 4+len(payload), buf.Len())
	header := buf.Bytes()[:4]
	word := uint32(header[0])<<24 | uint32(header[1])<<16 | uint32(header[2])<<8 | uint32(header[3])
	assert.NotZero(t, word&lastFragmentBit)
	assert.Equal(t, uint32(len(payload)), word&^lastFragmentBit)
}

func TestReadRecordSingleFragment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecord(&buf, []byte("abc")))

	got, err := ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestReadRecordMultipleFragments(t *testing.T) {
	var buf bytes.Buffer
	// first fragment, not last
	header1 := [4]byte{0, 0, 0, 3}
	buf.Write(header1[:])
	buf.WriteString("foo")
	// second fragment, last
	require.NoError(t, WriteRecord(&buf, []byte("bar")))

	got, err := ReadRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("foobar"), got)
}

func TestReadRecordShortReadFails(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x80, 0, 0, 10})
	buf.WriteString("short")
	_, err := ReadRecord(&buf)
	require.Error(t, err)
}
