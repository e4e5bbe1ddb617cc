package segment

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

// BatchStream produces arrow.Record batches of batchSize rows from a
// Reader, pulling one batch at a time via Next. There are no suspension
// points: Next runs synchronously on the caller's goroutine, matching
// spec.md §5's single-threaded-per-Reader model.
type BatchStream struct {
	reader     *Reader
	schema     *arrow.Schema
	projection []string
	batchSize  int

	totalRows int64
	nextRow   int64
}

// Scan builds a BatchStream over r, projecting the named columns in the
// given order. A nil projection selects every column in the segment's
// declaration order; an explicit empty slice selects none, and Next will
// still yield the full row count's worth of zero-column batches.
func Scan(r *Reader, projection []string, batchSize int) (*BatchStream, error) {
	if batchSize <= 0 {
		return nil, errors.New(ErrOutOfRange, "batchSize must be positive")
	}

	if projection == nil {
		projection = r.meta.ColumnOrder
	}

	fields := make([]arrow.Field, len(projection))
	for i, name := range projection {
		meta, err := r.meta.Column(name)
		if err != nil {
			return nil, err
		}
		dt, err := arrowType(meta.DataType)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: false}
	}

	return &BatchStream{
		reader:     r,
		schema:     arrow.NewSchema(fields, nil),
		projection: projection,
		batchSize:  batchSize,
		totalRows:  r.RowCount(),
	}, nil
}

// Next produces the next batch. It returns (nil, false, nil) once every
// row has been produced; (nil, false, err) on decode failure.
func (s *BatchStream) Next() (arrow.Record, bool, error) {
	if s.nextRow >= s.totalRows {
		return nil, false, nil
	}

	start := s.nextRow
	end := start + int64(s.batchSize)
	if end > s.totalRows {
		end = s.totalRows
	}
	numRows := end - start

	cols := make([]arrow.Array, len(s.projection))
	mem := memory.NewGoAllocator()
	for i, name := range s.projection {
		col, err := s.reader.ReadColumn(name)
		if err != nil {
			return nil, false, err
		}
		arr, err := sliceColumn(mem, col, start, end)
		if err != nil {
			return nil, false, err
		}
		cols[i] = arr
	}

	rec := array.NewRecord(s.schema, cols, numRows)
	s.nextRow = end
	s.reader.metrics.BatchesProduced.Inc()
	return rec, true, nil
}

func sliceColumn(mem memory.Allocator, col *Column, start, end int64) (arrow.Array, error) {
	switch col.Kind {
	case KindInt32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(col.Int32s[start:end], nil)
		return b.NewArray(), nil
	case KindInt64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(col.Int64s[start:end], nil)
		return b.NewArray(), nil
	case KindFloat32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(col.Float32s[start:end], nil)
		return b.NewArray(), nil
	case KindFloat64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(col.Float64s[start:end], nil)
		return b.NewArray(), nil
	case KindString:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(col.Strings[start:end], nil)
		return b.NewArray(), nil
	default:
		return nil, errors.New(ErrUnsupportedType, "unsupported column kind for column "+col.Name)
	}
}
