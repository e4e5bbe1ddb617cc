package segment

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

// DataType is the physical type a column was written with. Only INT, LONG,
// FLOAT, DOUBLE and STRING can be materialized by this core; the others
// parse cleanly but fail at ReadColumn time with ErrUnsupportedType.
type DataType string

const (
	TypeInt     DataType = "INT"
	TypeLong    DataType = "LONG"
	TypeFloat   DataType = "FLOAT"
	TypeDouble  DataType = "DOUBLE"
	TypeString  DataType = "STRING"
	TypeBytes   DataType = "BYTES"
	TypeBoolean DataType = "BOOLEAN"
	TypeTimestamp DataType = "TIMESTAMP"
)

// ColumnMetadata is the parsed per-column section of metadata.properties.
type ColumnMetadata struct {
	Name                  string
	DataType              DataType
	Cardinality           uint32
	BitsPerValue          uint8
	HasDictionary         bool
	IsSorted              bool
	StringColumnMaxLength int // 0 means "not a fixed-length string dictionary"
}

// SegmentMetadata is the parsed form of v3/metadata.properties.
type SegmentMetadata struct {
	SegmentName string
	TableName   string
	TotalDocs   uint32
	Version     int

	// ColumnOrder preserves first-seen order of column declarations so that
	// schema() and full-projection scans have a deterministic column order.
	ColumnOrder []string
	Columns     map[string]*ColumnMetadata
}

// Column looks up column metadata by name.
func (m *SegmentMetadata) Column(name string) (*ColumnMetadata, error) {
	c, ok := m.Columns[name]
	if !ok {
		return nil, errors.New(ErrColumnNotFound, "unknown column: "+name)
	}
	return c, nil
}

// ParseMetadata parses the contents of v3/metadata.properties: a
// line-oriented key=value properties blob, '#'/'!' comments, blank lines
// ignored, dot-namespaced keys. See original_source/pinot-segment's
// metadata.rs for the properties-parsing convention this follows.
func ParseMetadata(data []byte) (*SegmentMetadata, error) {
	props := make(map[string]string)
	var keys []string // in file order

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if _, dup := props[key]; dup {
			return nil, errors.New(ErrMetadataMalformed, "duplicate key: "+key)
		}
		props[key] = value
		keys = append(keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading metadata.properties")
	}

	totalDocsStr, ok := props["segment.total.docs"]
	if !ok {
		return nil, errors.New(ErrMetadataMalformed, "missing segment.total.docs")
	}
	totalDocs, err := strconv.ParseUint(totalDocsStr, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid segment.total.docs %q", totalDocsStr)
	}

	versionStr, ok := props["segment.version"]
	if !ok {
		return nil, errors.New(ErrMetadataMalformed, "missing segment.version")
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid segment.version %q", versionStr)
	}
	if version != 3 {
		return nil, errors.New(ErrMetadataMalformed, "unsupported segment.version: "+versionStr)
	}

	meta := &SegmentMetadata{
		SegmentName: props["segment.name"],
		TableName:   props["segment.table.name"],
		TotalDocs:   uint32(totalDocs),
		Version:     version,
		Columns:     make(map[string]*ColumnMetadata),
	}

	// Discover column names from any "column.<name>.<suffix>" key, in file
	// order, splitting from the right: first token is always "column", last
	// token is the property suffix, everything in between (rejoined with '.')
	// is the column name. This mirrors the right-to-left parse the index map
	// uses for the same dots-in-names ambiguity.
	for _, key := range keys {
		if !strings.HasPrefix(key, "column.") {
			continue
		}
		rest := key[len("column."):]
		dot := strings.LastIndexByte(rest, '.')
		if dot < 0 {
			continue
		}
		name := rest[:dot]
		if _, exists := meta.Columns[name]; exists {
			continue
		}
		col, err := parseColumnMetadata(name, props)
		if err != nil {
			return nil, err
		}
		meta.Columns[name] = col
		meta.ColumnOrder = append(meta.ColumnOrder, name)
	}

	return meta, nil
}

func parseColumnMetadata(name string, props map[string]string) (*ColumnMetadata, error) {
	prefix := "column." + name + "."

	dataTypeStr, ok := props[prefix+"dataType"]
	if !ok {
		return nil, errors.New(ErrMetadataMalformed, "missing dataType for column "+name)
	}

	cardinality, err := parseOptionalUint32(props, prefix+"cardinality")
	if err != nil {
		return nil, errors.Wrapf(err, "column %s cardinality", name)
	}

	bits, err := parseOptionalUint32(props, prefix+"bitsPerElement")
	if err != nil {
		return nil, errors.Wrapf(err, "column %s bitsPerElement", name)
	}
	if bits > 32 {
		return nil, errors.New(ErrMetadataMalformed, "column "+name+" bitsPerElement out of range")
	}

	hasDictionary := true
	if v, ok := props[prefix+"hasDictionary"]; ok {
		hasDictionary = v == "true"
	}

	isSorted := false
	if v, ok := props[prefix+"isSorted"]; ok {
		isSorted = v == "true"
	}

	// Open source-behavior question (spec.md §9): the exact key for
	// fixed-length string width isn't definitively documented upstream.
	// Accept both the vendor's documented key and the key the original
	// implementation actually reads.
	maxLen := 0
	for _, key := range []string{prefix + "columnMaxLength", prefix + "lengthOfEachEntry"} {
		if v, ok := props[key]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, errors.Wrapf(err, "column %s string max length", name)
			}
			maxLen = n
			break
		}
	}

	return &ColumnMetadata{
		Name:                  name,
		DataType:              DataType(dataTypeStr),
		Cardinality:           cardinality,
		BitsPerValue:          uint8(bits),
		HasDictionary:         hasDictionary,
		IsSorted:              isSorted,
		StringColumnMaxLength: maxLen,
	}, nil
}

func parseOptionalUint32(props map[string]string, key string) (uint32, error) {
	v, ok := props[key]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
