package segment

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
	"github.com/wirybeaver/datafusion-pinot/internal/logger"
	"github.com/wirybeaver/datafusion-pinot/internal/metrics"
	"github.com/wirybeaver/datafusion-pinot/internal/monitor"
)

const (
	metadataFileName = "metadata.properties"
	indexMapFileName = "index_map"
	packedStoreFile  = "columns.psf"
)

// Option configures a Reader at Open time.
type Option func(*Reader)

// WithLogger injects a structured logger. Diagnostic only: it never
// participates in decode decisions. Defaults to logger.NopLogger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reader) { r.log = l }
}

// WithMetricsRegisterer registers the reader's counters against
// reg. Defaults to a no-op registry, so embedding the core has no
// observability side effect unless the caller opts in.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(r *Reader) { r.metrics = metrics.New(reg) }
}

// WithErrorMonitor reports fatal parse/decode errors (MagicMismatch,
// MetadataMalformed, IndexMapMalformed, DecompressionFailure) to the
// package-level monitor in addition to returning them to the caller. The
// monitor itself must already have been initialized via
// monitor.InitErrorMonitor; this option only toggles whether this Reader
// reports to it.
func WithErrorMonitor() Option {
	return func(r *Reader) { r.reportErrors = true }
}

type onceColumn struct {
	once sync.Once
	col  *Column
	err  error
}

// Reader is a single segment directory opened for reading. It is safe for
// a single goroutine to drive end to end; it keeps no suspension points and
// makes no concurrency guarantees across goroutines beyond the
// materialization cache described in ReadColumn.
type Reader struct {
	meta     *SegmentMetadata
	indexMap *IndexMap
	file     *os.File
	schema   *arrow.Schema

	log          logger.Logger
	metrics      *metrics.Metrics
	reportErrors bool

	cacheMu sync.Mutex
	cache   map[string]*onceColumn
}

// Open opens a v3 segment directory: <path>/metadata.properties,
// <path>/index_map, <path>/columns.psf. It parses metadata and the index
// map eagerly and opens a handle to the packed storage artifact, but reads
// no column data until ReadColumn or Scan is called.
func Open(path string, opts ...Option) (*Reader, error) {
	r := &Reader{
		log:     logger.NopLogger,
		metrics: metrics.New(nil),
		cache:   make(map[string]*onceColumn),
	}
	for _, opt := range opts {
		opt(r)
	}

	metaBytes, err := os.ReadFile(filepath.Join(path, metadataFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", metadataFileName)
	}
	meta, err := ParseMetadata(metaBytes)
	if err != nil {
		r.reportFatal(err)
		return nil, err
	}

	indexBytes, err := os.ReadFile(filepath.Join(path, indexMapFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", indexMapFileName)
	}
	indexMap, err := ParseIndexMap(indexBytes)
	if err != nil {
		r.reportFatal(err)
		return nil, err
	}

	f, err := os.Open(filepath.Join(path, packedStoreFile))
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", packedStoreFile)
	}

	schema := buildSchema(meta)

	r.meta = meta
	r.indexMap = indexMap
	r.file = f
	r.schema = schema

	r.log.Debugf("segment: opened %s (%d docs, %d columns)", path, meta.TotalDocs, len(meta.ColumnOrder))
	r.metrics.SegmentsOpened.Inc()

	return r, nil
}

func (r *Reader) reportFatal(err error) {
	if r.reportErrors {
		switch {
		case errors.Is(err, ErrMagicMismatch),
			errors.Is(err, ErrMetadataMalformed),
			errors.Is(err, ErrIndexMapMalformed),
			errors.Is(err, ErrDecompressionFailure):
			code := errors.ErrUncoded
			for _, c := range []errors.Code{ErrMagicMismatch, ErrMetadataMalformed, ErrIndexMapMalformed, ErrDecompressionFailure} {
				if errors.Is(err, c) {
					code = c
					break
				}
			}
			monitor.CaptureError(code, err)
		}
	}
}

// buildSchema derives the Arrow schema for every column in declaration
// order. It never fails on a column whose data_type is recognized but not
// materializable (BYTES, BOOLEAN, TIMESTAMP): that column still gets a
// schema entry, typed arrow.Null as a placeholder, and only rejects with
// ErrUnsupportedType when actually materialized via ReadColumn/Scan. This
// keeps Open usable for segments that merely contain such a column,
// matching spec.md §6.2/§7's "rejected at materialization, not at open"
// contract.
func buildSchema(meta *SegmentMetadata) *arrow.Schema {
	fields := make([]arrow.Field, len(meta.ColumnOrder))
	for i, name := range meta.ColumnOrder {
		col := meta.Columns[name]
		dt, err := arrowType(col.DataType)
		if err != nil {
			dt = arrow.Null
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: false}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(dt DataType) (arrow.DataType, error) {
	switch dt {
	case TypeInt:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeLong:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeString:
		return arrow.BinaryTypes.String, nil
	default:
		return nil, errors.New(ErrUnsupportedType, "unsupported type for arrow schema: "+string(dt))
	}
}

// Schema returns the segment's Arrow schema, columns in declaration order.
func (r *Reader) Schema() *arrow.Schema {
	return r.schema
}

// RowCount returns the segment's total document count.
func (r *Reader) RowCount() int64 {
	return int64(r.meta.TotalDocs)
}

// ReadColumn materializes column name in full, caching the result so that
// repeated calls (including concurrent ones, from ReadColumn or Scan) incur
// the decode cost at most once per Reader.
func (r *Reader) ReadColumn(name string) (*Column, error) {
	meta, err := r.meta.Column(name)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	entry, ok := r.cache[name]
	if !ok {
		entry = &onceColumn{}
		r.cache[name] = entry
	}
	r.cacheMu.Unlock()

	entry.once.Do(func() {
		entry.col, entry.err = r.materializeColumn(meta)
		if entry.err != nil {
			r.reportFatal(entry.err)
		} else {
			r.metrics.ColumnsMaterialized.Inc()
			r.log.Debugf("segment: materialized column %s (%d rows)", name, entry.col.Len())
		}
	})
	return entry.col, entry.err
}

func (r *Reader) materializeColumn(meta *ColumnMetadata) (*Column, error) {
	fwdLoc, ok := r.indexMap.ForwardIndex(meta.Name)
	if !ok {
		return nil, errors.New(ErrIndexMapMalformed, "missing forward_index entry for column "+meta.Name)
	}
	fwdRegion, err := r.readRegion(fwdLoc)
	if err != nil {
		return nil, err
	}

	if !meta.HasDictionary {
		col, err := materializeRawStringColumn(meta, fwdRegion, r.metrics)
		if err != nil {
			return nil, err
		}
		return col, nil
	}

	dictLoc, ok := r.indexMap.Dictionary(meta.Name)
	if !ok {
		return nil, errors.New(ErrIndexMapMalformed, "missing dictionary entry for column "+meta.Name)
	}
	dictRegion, err := r.readRegion(dictLoc)
	if err != nil {
		return nil, err
	}
	dict, err := openDictionary(meta.Name, dictRegion, meta.DataType, meta.Cardinality, meta.StringColumnMaxLength)
	if err != nil {
		return nil, err
	}

	return materializeDictionaryColumn(meta, r.meta.TotalDocs, fwdRegion, dict)
}

func (r *Reader) readRegion(loc *IndexLocation) ([]byte, error) {
	buf := make([]byte, loc.Size)
	n, err := r.file.ReadAt(buf, loc.Offset)
	if err != nil {
		return nil, errors.Wrapf(err, "reading region at offset %d size %d", loc.Offset, loc.Size)
	}
	if int64(n) != loc.Size {
		return nil, errors.New(ErrIO, "short read of packed storage region")
	}
	return buf, nil
}

// Close releases the packed storage file handle. It does not clear the
// materialization cache; a closed Reader must not be used further.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
