package segment

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

// Section names recognized in the index map.
const (
	SectionDictionary   = "dictionary"
	SectionForwardIndex = "forward_index"
)

// IndexLocation is a contiguous byte range in the packed storage artifact.
type IndexLocation struct {
	Offset int64
	Size   int64
}

// IndexMap locates each column's dictionary and forward-index regions
// inside the packed storage artifact.
type IndexMap struct {
	locations map[indexKey]*IndexLocation
}

type indexKey struct {
	column  string
	section string
}

// Dictionary returns the dictionary region location for column, if any.
func (m *IndexMap) Dictionary(column string) (*IndexLocation, bool) {
	loc, ok := m.locations[indexKey{column, SectionDictionary}]
	return loc, ok
}

// ForwardIndex returns the forward-index region location for column.
func (m *IndexMap) ForwardIndex(column string) (*IndexLocation, bool) {
	loc, ok := m.locations[indexKey{column, SectionForwardIndex}]
	return loc, ok
}

// ParseIndexMap parses the v3/index_map artifact: lines of the form
// "<column>.<section>.(startOffset|size)=<integer>". Column names may
// contain dots, so each line is parsed from the right: the last segment is
// the property, the second-to-last is the section, and everything before
// that is the column name.
func ParseIndexMap(data []byte) (*IndexMap, error) {
	locations := make(map[indexKey]*IndexLocation)
	// Track which of startOffset/size have been seen per key so that a
	// missing half of the pair is reported precisely.
	seenOffset := make(map[indexKey]bool)
	seenSize := make(map[indexKey]bool)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			continue
		}
		keyPart := strings.TrimSpace(line[:eq])
		valuePart := strings.TrimSpace(line[eq+1:])

		parts := strings.Split(keyPart, ".")
		if len(parts) < 3 {
			return nil, errors.New(ErrIndexMapMalformed, "malformed index map entry: "+line)
		}

		property := parts[len(parts)-1]
		section := parts[len(parts)-2]
		if section != SectionDictionary && section != SectionForwardIndex {
			return nil, errors.New(ErrIndexMapMalformed, "unknown section in index map: "+section)
		}
		column := strings.Join(parts[:len(parts)-2], ".")

		value, err := strconv.ParseInt(valuePart, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid index map value %q", valuePart)
		}

		key := indexKey{column, section}
		loc, ok := locations[key]
		if !ok {
			loc = &IndexLocation{}
			locations[key] = loc
		}

		switch property {
		case "startOffset":
			if seenOffset[key] {
				return nil, errors.New(ErrIndexMapMalformed, "duplicate startOffset for "+column+"."+section)
			}
			seenOffset[key] = true
			loc.Offset = value
		case "size":
			if seenSize[key] {
				return nil, errors.New(ErrIndexMapMalformed, "duplicate size for "+column+"."+section)
			}
			seenSize[key] = true
			loc.Size = value
		default:
			return nil, errors.New(ErrIndexMapMalformed, "unknown index map property: "+property)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading index_map")
	}

	for key := range locations {
		if !seenOffset[key] {
			return nil, errors.New(ErrIndexMapMalformed, "missing startOffset for "+key.column+"."+key.section)
		}
		if !seenSize[key] {
			return nil, errors.New(ErrIndexMapMalformed, "missing size for "+key.column+"."+key.section)
		}
	}

	return &IndexMap{locations: locations}, nil
}
