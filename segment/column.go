package segment

import (
	"github.com/wirybeaver/datafusion-pinot/internal/errors"
	"github.com/wirybeaver/datafusion-pinot/internal/metrics"
)

// Kind tags the physical representation of a materialized Column. Dispatch
// on columns happens by switching on Kind, not through an interface
// hierarchy, per spec.md §9.
type Kind int

const (
	KindInt32 Kind = iota
	KindInt64
	KindFloat32
	KindFloat64
	KindString
)

// Column is a fully materialized column: total_docs values in on-disk
// document order, held in the slice matching Kind.
type Column struct {
	Name string
	Kind Kind

	Int32s   []int32
	Int64s   []int64
	Float32s []float32
	Float64s []float64
	Strings  []string
}

// Len returns the number of rows held in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindInt32:
		return len(c.Int32s)
	case KindInt64:
		return len(c.Int64s)
	case KindFloat32:
		return len(c.Float32s)
	case KindFloat64:
		return len(c.Float64s)
	case KindString:
		return len(c.Strings)
	default:
		return 0
	}
}

// readDictIDs unpacks n bits_per_value-wide dictionary ids from a
// forward-index region (magic marker already stripped).
func readDictIDs(body []byte, n uint32, bitsPerValue uint8) []uint32 {
	ids := make([]uint32, n)
	if bitsPerValue == 0 {
		// cardinality <= 1: every row resolves to dictionary entry 0.
		return ids
	}
	for i := range ids {
		ids[i] = getBits(body, uint64(i), bitsPerValue)
	}
	return ids
}

// materializeDictionaryColumn reads a dictionary-encoded column: bit-packed
// ids resolved against the column's dictionary. Implements spec.md §4.6's
// dictionary-encoded path.
func materializeDictionaryColumn(meta *ColumnMetadata, totalDocs uint32, fwdRegion []byte, dict *dictionary) (*Column, error) {
	body, err := checkMagic(fwdRegion, meta.Name)
	if err != nil {
		return nil, err
	}

	ids := readDictIDs(body, totalDocs, meta.BitsPerValue)

	col := &Column{Name: meta.Name}

	switch meta.DataType {
	case TypeInt:
		col.Kind = KindInt32
		col.Int32s = make([]int32, totalDocs)
		for i, id := range ids {
			v, err := dict.Int32(meta.Name, id)
			if err != nil {
				return nil, err
			}
			col.Int32s[i] = v
		}
	case TypeLong:
		col.Kind = KindInt64
		col.Int64s = make([]int64, totalDocs)
		for i, id := range ids {
			v, err := dict.Int64(meta.Name, id)
			if err != nil {
				return nil, err
			}
			col.Int64s[i] = v
		}
	case TypeFloat:
		col.Kind = KindFloat32
		col.Float32s = make([]float32, totalDocs)
		for i, id := range ids {
			v, err := dict.Float32(meta.Name, id)
			if err != nil {
				return nil, err
			}
			col.Float32s[i] = v
		}
	case TypeDouble:
		col.Kind = KindFloat64
		col.Float64s = make([]float64, totalDocs)
		for i, id := range ids {
			v, err := dict.Float64(meta.Name, id)
			if err != nil {
				return nil, err
			}
			col.Float64s[i] = v
		}
	case TypeString:
		col.Kind = KindString
		col.Strings = make([]string, totalDocs)
		for i, id := range ids {
			v, err := dict.String(meta.Name, id)
			if err != nil {
				return nil, err
			}
			col.Strings[i] = v
		}
	default:
		return nil, errors.New(ErrUnsupportedType, "unsupported type for column "+meta.Name+": "+string(meta.DataType))
	}

	return col, nil
}

// materializeRawStringColumn reads a RAW-encoded STRING column via the
// variable-byte chunk reader. Implements spec.md §4.6's RAW path; RAW is
// only supported for STRING in this version.
func materializeRawStringColumn(meta *ColumnMetadata, fwdRegion []byte, m *metrics.Metrics) (*Column, error) {
	if meta.DataType != TypeString {
		return nil, errors.New(ErrUnsupportedEncoding, "RAW encoding only supported for STRING, got "+string(meta.DataType)+" for column "+meta.Name)
	}

	body, err := checkMagic(fwdRegion, meta.Name)
	if err != nil {
		return nil, err
	}

	reader, err := openVarByte(meta.Name, body, m)
	if err != nil {
		return nil, err
	}
	values, err := reader.ReadAllStrings()
	if err != nil {
		return nil, err
	}

	return &Column{Name: meta.Name, Kind: KindString, Strings: values}, nil
}
