package segment

import (
	"encoding/binary"
	"sync"

	lz4 "github.com/pierrec/lz4/v4"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
	"github.com/wirybeaver/datafusion-pinot/internal/metrics"
)

const (
	compressionNone = 0
	compressionLZ4  = 4

	varByteHeaderFields = 7
	varByteHeaderSize   = varByteHeaderFields * 4
)

// varByteReader decodes the RAW (non-dictionary) VarByteChunk v4 forward
// index format: a fixed header, a sorted array of chunk-start offsets, and
// a payload of (optionally LZ4-compressed) chunks, each holding a run of
// length-prefixed values. See spec.md §4.5/§6.1 for the authoritative wire
// layout; original_source/pinot-segment/src/forward_index/var_byte.rs
// grounds the chunk-caching convention but implements a materially
// different byte layout and is not used for the layout itself. A doc id's
// chunk is found by dividing by values_per_chunk; the offsets array is not
// searched.
type varByteReader struct {
	column  string
	region  []byte
	metrics *metrics.Metrics

	valuesPerChunk  int32
	totalDocs       int32
	maxValueLength  int32
	compressionType int32
	chunksCount     int32
	headerSize      int32

	offsets []int64 // chunksCount entries, relative to region start

	mu           sync.Mutex
	cachedChunk  int32 // -1 if nothing cached
	cachedValues [][]byte
}

func openVarByte(column string, region []byte, m *metrics.Metrics) (*varByteReader, error) {
	if len(region) < varByteHeaderSize {
		return nil, errors.New(ErrIO, "forward index region for column "+column+" too small for header")
	}

	be32 := func(off int) int32 { return int32(binary.BigEndian.Uint32(region[off:])) }

	version := be32(0)
	if version != 4 {
		return nil, errors.New(ErrUnsupportedEncoding, "unsupported RAW forward index version for column "+column)
	}

	r := &varByteReader{
		column:          column,
		region:          region,
		metrics:         m,
		valuesPerChunk:  be32(4),
		totalDocs:       be32(8),
		maxValueLength:  be32(12),
		compressionType: be32(16),
		chunksCount:     be32(20),
		headerSize:      be32(24),
		cachedChunk:     -1,
	}

	if r.valuesPerChunk <= 0 {
		return nil, errors.New(ErrIndexMapMalformed, "invalid valuesPerChunk for column "+column)
	}
	if r.chunksCount < 0 || r.totalDocs < 0 {
		return nil, errors.New(ErrIndexMapMalformed, "invalid chunksCount/totalDocs for column "+column)
	}
	if r.chunksCount > 0 && r.totalDocs < (r.chunksCount-1)*r.valuesPerChunk {
		return nil, errors.New(ErrIndexMapMalformed, "totalDocs too small for chunksCount*valuesPerChunk in column "+column)
	}
	if r.compressionType != compressionNone && r.compressionType != compressionLZ4 {
		return nil, errors.New(ErrUnsupportedEncoding, "unsupported compression for column "+column)
	}
	if r.headerSize < varByteHeaderSize {
		return nil, errors.New(ErrIO, "invalid headerSize for column "+column)
	}

	offsetsStart := int(r.headerSize)
	offsetsBytes := int(r.chunksCount) * 8
	if offsetsStart+offsetsBytes > len(region) {
		return nil, errors.New(ErrIO, "chunk offsets array out of bounds for column "+column)
	}

	r.offsets = make([]int64, r.chunksCount)
	var prev int64 = -1
	expectedFirst := int64(r.headerSize) + int64(r.chunksCount)*8
	for i := 0; i < int(r.chunksCount); i++ {
		off := int64(binary.BigEndian.Uint64(region[offsetsStart+i*8:]))
		if off <= prev {
			return nil, errors.New(ErrIO, "chunk offsets not strictly increasing for column "+column)
		}
		if off < 0 || off > int64(len(region)) {
			return nil, errors.New(ErrIO, "chunk offset out of bounds for column "+column)
		}
		if i == 0 && off != expectedFirst {
			return nil, errors.New(ErrIO, "first chunk offset does not match header_size + 8*chunks_count for column "+column)
		}
		r.offsets[i] = off
		prev = off
	}

	return r, nil
}

// chunkValueCount returns how many values the given chunk holds: the
// target values_per_chunk for every chunk but the last, which may be
// shorter. Spec.md §9: this count must be derived from total_docs, not
// trusted from the payload, since some writers pad the last chunk.
func (r *varByteReader) chunkValueCount(chunkIdx int32) int32 {
	if chunkIdx < r.chunksCount-1 {
		return r.valuesPerChunk
	}
	return r.totalDocs - (r.chunksCount-1)*r.valuesPerChunk
}

func (r *varByteReader) chunkByteRange(chunkIdx int32) (int64, int64) {
	start := r.offsets[chunkIdx]
	var end int64
	if int(chunkIdx)+1 < len(r.offsets) {
		end = r.offsets[chunkIdx+1]
	} else {
		end = int64(len(r.region))
	}
	return start, end
}

// decodeChunk returns the values_per_chunk (or shorter, for the last
// chunk) length-prefixed values contained in chunk chunkIdx, decompressing
// if necessary. Results are cached for the most recently decoded chunk so
// that reading a column in document order is O(N), not O(N*values_per_chunk).
func (r *varByteReader) decodeChunk(chunkIdx int32) ([][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cachedChunk == chunkIdx {
		return r.cachedValues, nil
	}

	start, end := r.chunkByteRange(chunkIdx)
	if end < start || end > int64(len(r.region)) {
		return nil, errors.New(ErrIO, "chunk byte range out of bounds for column "+r.column)
	}
	raw := r.region[start:end]

	var decoded []byte
	switch r.compressionType {
	case compressionNone:
		decoded = raw
	case compressionLZ4:
		if len(raw) < 4 {
			return nil, errors.New(ErrDecompressionFailure, "LZ4 chunk too short for length prefix in column "+r.column)
		}
		decompressedLen := int(binary.BigEndian.Uint32(raw[:4]))
		dst := make([]byte, decompressedLen)
		n, err := lz4.UncompressBlock(raw[4:], dst)
		if err != nil {
			return nil, errors.Wrapf(errors.New(ErrDecompressionFailure, err.Error()), "LZ4 decompression failed for column %s chunk %d", r.column, chunkIdx)
		}
		if n != decompressedLen {
			return nil, errors.New(ErrDecompressionFailure, "LZ4 decompressed length mismatch for column "+r.column)
		}
		decoded = dst
		if r.metrics != nil {
			r.metrics.BytesDecompressed.Add(float64(n))
		}
	default:
		return nil, errors.New(ErrUnsupportedEncoding, "unsupported compression for column "+r.column)
	}

	count := int(r.chunkValueCount(chunkIdx))
	if count < 0 {
		return nil, errors.New(ErrIndexMapMalformed, "negative value count for column "+r.column)
	}
	values := make([][]byte, 0, count)
	pos := 0
	for i := 0; i < count; i++ {
		if pos+4 > len(decoded) {
			return nil, errors.New(ErrIO, "truncated value length in column "+r.column)
		}
		length := int(binary.BigEndian.Uint32(decoded[pos:]))
		pos += 4
		if length < 0 || pos+length > len(decoded) {
			return nil, errors.New(ErrIO, "truncated value payload in column "+r.column)
		}
		values = append(values, decoded[pos:pos+length])
		pos += length
	}

	r.cachedChunk = chunkIdx
	r.cachedValues = values
	return values, nil
}

// Get returns the bytes stored at docID.
func (r *varByteReader) Get(docID int32) ([]byte, error) {
	if docID < 0 || docID >= r.totalDocs {
		return nil, errors.New(ErrOutOfRange, "doc id out of range for column "+r.column)
	}
	chunkIdx := docID / r.valuesPerChunk
	localIdx := docID % r.valuesPerChunk
	if chunkIdx >= r.chunksCount {
		return nil, errors.New(ErrOutOfRange, "chunk index out of range for column "+r.column)
	}
	if localIdx >= r.chunkValueCount(chunkIdx) {
		return nil, errors.New(ErrOutOfRange, "local index out of range within chunk for column "+r.column)
	}

	values, err := r.decodeChunk(chunkIdx)
	if err != nil {
		return nil, err
	}
	return values[localIdx], nil
}

// ReadAllStrings decodes every row in document order, reusing the chunk
// cache across the scan (sequential doc_ids only ever touch the cached
// chunk once).
func (r *varByteReader) ReadAllStrings() ([]string, error) {
	out := make([]string, r.totalDocs)
	for doc := int32(0); doc < r.totalDocs; doc++ {
		b, err := r.Get(doc)
		if err != nil {
			return nil, err
		}
		out[doc] = string(b)
	}
	return out, nil
}
