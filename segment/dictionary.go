package segment

import (
	"encoding/binary"
	"math"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

// magicMarker is the 8-byte constant that opens every dictionary and
// forward-index region in the packed storage artifact.
var magicMarker = [8]byte{0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAF, 0xBE, 0xAD}

const magicMarkerSize = 8

func checkMagic(region []byte, column string) ([]byte, error) {
	if len(region) < magicMarkerSize {
		return nil, errors.New(ErrMagicMismatch, "region for column "+column+" too small for magic marker")
	}
	for i := 0; i < magicMarkerSize; i++ {
		if region[i] != magicMarker[i] {
			return nil, errors.New(ErrMagicMismatch, "magic marker mismatch for column "+column+" at byte 0")
		}
	}
	return region[magicMarkerSize:], nil
}

// dictionary is value i of a column's dictionary, resolved according to its
// physical type. Tagged by dataType rather than dynamic dispatch, per
// spec.md §9's "polymorphism over column types" design note.
type dictionary struct {
	dataType    DataType
	cardinality uint32

	ints    []int32
	longs   []int64
	floats  []float32
	doubles []float64
	strings []string
}

// openDictionary parses a dictionary region: 8-byte magic marker followed
// by cardinality fixed-width (numeric) or fixed-length null-padded
// (string) entries. See original_source/pinot-segment/src/forward_index/
// dictionary.rs for the per-type layout this follows.
func openDictionary(column string, region []byte, dt DataType, cardinality uint32, maxLen int) (*dictionary, error) {
	body, err := checkMagic(region, column)
	if err != nil {
		return nil, err
	}

	d := &dictionary{dataType: dt, cardinality: cardinality}

	switch dt {
	case TypeInt:
		want := int(cardinality) * 4
		if len(body) < want {
			return nil, errors.New(ErrIO, "dictionary region for column "+column+" too small")
		}
		d.ints = make([]int32, cardinality)
		for i := range d.ints {
			d.ints[i] = int32(binary.BigEndian.Uint32(body[i*4:]))
		}
	case TypeLong:
		want := int(cardinality) * 8
		if len(body) < want {
			return nil, errors.New(ErrIO, "dictionary region for column "+column+" too small")
		}
		d.longs = make([]int64, cardinality)
		for i := range d.longs {
			d.longs[i] = int64(binary.BigEndian.Uint64(body[i*8:]))
		}
	case TypeFloat:
		want := int(cardinality) * 4
		if len(body) < want {
			return nil, errors.New(ErrIO, "dictionary region for column "+column+" too small")
		}
		d.floats = make([]float32, cardinality)
		for i := range d.floats {
			d.floats[i] = math.Float32frombits(binary.BigEndian.Uint32(body[i*4:]))
		}
	case TypeDouble:
		want := int(cardinality) * 8
		if len(body) < want {
			return nil, errors.New(ErrIO, "dictionary region for column "+column+" too small")
		}
		d.doubles = make([]float64, cardinality)
		for i := range d.doubles {
			d.doubles[i] = math.Float64frombits(binary.BigEndian.Uint64(body[i*8:]))
		}
	case TypeString:
		if maxLen <= 0 {
			// Open source-behavior question (spec.md §9): variable-length
			// (length-prefixed) string dictionaries are not covered by the
			// current core; treat as a future extension.
			return nil, errors.New(ErrUnsupportedEncoding, "variable-length string dictionary not supported for column "+column)
		}
		want := int(cardinality) * maxLen
		if len(body) < want {
			return nil, errors.New(ErrIO, "dictionary region for column "+column+" too small")
		}
		d.strings = make([]string, cardinality)
		for i := range d.strings {
			entry := body[i*maxLen : (i+1)*maxLen]
			end := 0
			for end < len(entry) && entry[end] != 0x00 {
				end++
			}
			d.strings[i] = string(entry[:end])
		}
	default:
		return nil, errors.New(ErrUnsupportedType, "unsupported dictionary type for column "+column+": "+string(dt))
	}

	return d, nil
}

func (d *dictionary) Int32(column string, id uint32) (int32, error) {
	if id >= uint32(len(d.ints)) {
		return 0, errors.New(ErrOutOfRange, "dictionary id out of range for column "+column)
	}
	return d.ints[id], nil
}

func (d *dictionary) Int64(column string, id uint32) (int64, error) {
	if id >= uint32(len(d.longs)) {
		return 0, errors.New(ErrOutOfRange, "dictionary id out of range for column "+column)
	}
	return d.longs[id], nil
}

func (d *dictionary) Float32(column string, id uint32) (float32, error) {
	if id >= uint32(len(d.floats)) {
		return 0, errors.New(ErrOutOfRange, "dictionary id out of range for column "+column)
	}
	return d.floats[id], nil
}

func (d *dictionary) Float64(column string, id uint32) (float64, error) {
	if id >= uint32(len(d.doubles)) {
		return 0, errors.New(ErrOutOfRange, "dictionary id out of range for column "+column)
	}
	return d.doubles[id], nil
}

func (d *dictionary) String(column string, id uint32) (string, error) {
	if id >= uint32(len(d.strings)) {
		return "", errors.New(ErrOutOfRange, "dictionary id out of range for column "+column)
	}
	return d.strings[id], nil
}
