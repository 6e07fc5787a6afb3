package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	enc := NewEncoder()
	enc.PutUint32(0xdeadbeef)
	enc.PutInt32(-7)
	enc.PutUint64(0x0102030405060708)
	enc.PutInt64(-1)
	enc.PutBool(true)
	enc.PutBool(false)

	assert.Equal(t, 0, enc.Len()%4, "encoded length must be a multiple of 4")

	dec := NewDecoder(bytes.NewReader(enc.Bytes()))

	u32, err := dec.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), u32)

	i32, err := dec.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)

	u64, err := dec.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0102030405060708), u64)

	i64, err := dec.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), i64)

	b1, err := dec.Bool()
	require.NoError(t, err)
	assert.True(t, b1)

	b2, err := dec.Bool()
	require.NoError(t, err)
	assert.False(t, b2)
}

func TestOpaquePadding(t *testing.T) {
	cases := []struct {
		data     []byte
		wantSize int
	}{
		{[]byte{}, 4},
		{[]byte{1}, 4 + 4},
		{[]byte{1, 2}, 4 + 4},
		{[]byte{1, 2, 3}, 4 + 4},
		{[]byte{1, 2, 3, 4}, 4 + 4},
		{[]byte{1, 2, 3, 4, 5}, 4 + 8},
	}
	for _, tc := range cases {
		enc := NewEncoder()
		enc.PutOpaque(tc.data)
		assert.Equal(t, tc.wantSize, enc.Len())
		assert.Equal(t, 0, enc.Len()%4)

		dec := NewDecoder(bytes.NewReader(enc.Bytes()))
		got, err := dec.Opaque()
		require.NoError(t, err)
		assert.Equal(t, tc.data, got)
	}
}

func TestStringRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.PutString("hello")
	dec := NewDecoder(bytes.NewReader(enc.Bytes()))
	got, err := dec.String()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestDecodePastEndFails(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte{0, 0, 0}))
	_, err := dec.Uint32()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestOpaqueLengthLimit(t *testing.T) {
	enc := NewEncoder()
	enc.PutUint32(0xFFFFFFFF)
	dec := NewDecoder(bytes.NewReader(enc.Bytes()))
	_, err := dec.Opaque()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestFixedOpaqueRoundTrip(t *testing.T) {
	enc := NewEncoder()
	enc.PutFixedOpaque([]byte{1, 2, 3})
	assert.Equal(t, 4, enc.Len())

	dec := NewDecoder(bytes.NewReader(enc.Bytes()))
	got, err := dec.FixedOpaque(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}
