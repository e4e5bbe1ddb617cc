package segment

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

// lz4LiteralsOnlyBlock builds a minimal, valid LZ4 block format frame
// holding data as the block's sole (literals-only) sequence -- legal per
// the LZ4 block format spec's "final sequence contains only literals"
// rule, and the simplest deterministic way to exercise the decompression
// path without depending on a particular compressor's output bytes.
func lz4LiteralsOnlyBlock(data []byte) []byte {
	var out []byte
	litLen := len(data)
	if litLen < 15 {
		out = append(out, byte(litLen<<4))
	} else {
		out = append(out, 0xF0)
		remaining := litLen - 15
		for remaining >= 255 {
			out = append(out, 0xFF)
			remaining -= 255
		}
		out = append(out, byte(remaining))
	}
	out = append(out, data...)
	return out
}

func buildVarByteHeader(valuesPerChunk, totalDocs, maxValueLength, compressionType, chunksCount, headerSize int32) []byte {
	buf := make([]byte, 28)
	binary.BigEndian.PutUint32(buf[0:], 4) // version
	binary.BigEndian.PutUint32(buf[4:], uint32(valuesPerChunk))
	binary.BigEndian.PutUint32(buf[8:], uint32(totalDocs))
	binary.BigEndian.PutUint32(buf[12:], uint32(maxValueLength))
	binary.BigEndian.PutUint32(buf[16:], uint32(compressionType))
	binary.BigEndian.PutUint32(buf[20:], uint32(chunksCount))
	binary.BigEndian.PutUint32(buf[24:], uint32(headerSize))
	return buf
}

func lengthPrefixed(values ...string) []byte {
	var out []byte
	for _, v := range values {
		lenBuf := make([]byte, 4)
		binary.BigEndian.PutUint32(lenBuf, uint32(len(v)))
		out = append(out, lenBuf...)
		out = append(out, v...)
	}
	return out
}

func TestVarByteUncompressedRoundTrip(t *testing.T) {
	header := buildVarByteHeader(2, 3, 2, compressionNone, 2, 28)
	chunk0 := lengthPrefixed("ab", "cd")
	chunk1 := lengthPrefixed("e")

	offset0 := int64(28 + 2*8)
	offset1 := offset0 + int64(len(chunk0))

	region := append([]byte{}, header...)
	offBuf := make([]byte, 16)
	binary.BigEndian.PutUint64(offBuf[0:], uint64(offset0))
	binary.BigEndian.PutUint64(offBuf[8:], uint64(offset1))
	region = append(region, offBuf...)
	region = append(region, chunk0...)
	region = append(region, chunk1...)

	r, err := openVarByte("col", region, nil)
	require.NoError(t, err)

	values, err := r.ReadAllStrings()
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd", "e"}, values)

	v, err := r.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("e"), v)

	_, err = r.Get(3)
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestVarByteLZ4RoundTrip(t *testing.T) {
	header := buildVarByteHeader(2, 2, 2, compressionLZ4, 1, 28)
	plain := lengthPrefixed("ab", "cd")
	compressed := lz4LiteralsOnlyBlock(plain)

	chunk := make([]byte, 4+len(compressed))
	binary.BigEndian.PutUint32(chunk[0:], uint32(len(plain)))
	copy(chunk[4:], compressed)

	offset0 := int64(28 + 1*8)
	region := append([]byte{}, header...)
	offBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(offBuf, uint64(offset0))
	region = append(region, offBuf...)
	region = append(region, chunk...)

	r, err := openVarByte("col", region, nil)
	require.NoError(t, err)

	values, err := r.ReadAllStrings()
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "cd"}, values)
}

func TestVarByteUnsupportedVersion(t *testing.T) {
	header := make([]byte, 28)
	binary.BigEndian.PutUint32(header[0:], 3)
	_, err := openVarByte("col", header, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedEncoding))
}

func TestVarByteUnsupportedCompression(t *testing.T) {
	header := buildVarByteHeader(1, 1, 1, 99, 0, 28)
	_, err := openVarByte("col", header, nil)
	assert.True(t, errors.Is(err, ErrUnsupportedEncoding))
}

func TestVarByteTotalDocsTooSmallForChunksCount(t *testing.T) {
	// chunksCount=3, valuesPerChunk=10 implies at least 20 docs in the
	// first two chunks alone; totalDocs=1 is inconsistent with that and
	// must be rejected at open time rather than driving a negative
	// chunkValueCount later.
	header := buildVarByteHeader(10, 1, 1, compressionNone, 3, 28)
	region := append([]byte{}, header...)
	region = append(region, make([]byte, 3*8)...)

	_, err := openVarByte("col", region, nil)
	assert.True(t, errors.Is(err, ErrIndexMapMalformed))
}

func TestVarByteChunkOffsetsMustIncrease(t *testing.T) {
	header := buildVarByteHeader(1, 2, 1, compressionNone, 2, 28)
	region := append([]byte{}, header...)
	offBuf := make([]byte, 16)
	binary.BigEndian.PutUint64(offBuf[0:], 44)
	binary.BigEndian.PutUint64(offBuf[8:], 40) // decreasing: invalid
	region = append(region, offBuf...)
	region = append(region, make([]byte, 20)...)

	_, err := openVarByte("col", region, nil)
	assert.True(t, errors.Is(err, ErrIO))
}
