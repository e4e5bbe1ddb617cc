package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wirybeaver/datafusion-pinot/internal/errors"
)

func TestParseMetadata(t *testing.T) {
	data := []byte(`
# sample metadata
segment.name=testSegment
segment.table.name=testTable
segment.total.docs=1000
segment.version=3

column.id.dataType=INT
column.id.cardinality=1000
column.id.bitsPerElement=10
column.id.hasDictionary=true
column.id.isSorted=true

column.my.dotted.name.dataType=STRING
column.my.dotted.name.cardinality=5
column.my.dotted.name.bitsPerElement=3
column.my.dotted.name.columnMaxLength=16

! legacy comment marker
column.raw_text.dataType=STRING
column.raw_text.hasDictionary=false
`)

	meta, err := ParseMetadata(data)
	require.NoError(t, err)

	assert.Equal(t, "testSegment", meta.SegmentName)
	assert.Equal(t, "testTable", meta.TableName)
	assert.EqualValues(t, 1000, meta.TotalDocs)
	assert.Equal(t, 3, meta.Version)
	assert.ElementsMatch(t, []string{"id", "my.dotted.name", "raw_text"}, meta.ColumnOrder)

	id, err := meta.Column("id")
	require.NoError(t, err)
	assert.Equal(t, TypeInt, id.DataType)
	assert.EqualValues(t, 1000, id.Cardinality)
	assert.EqualValues(t, 10, id.BitsPerValue)
	assert.True(t, id.HasDictionary)
	assert.True(t, id.IsSorted)

	dotted, err := meta.Column("my.dotted.name")
	require.NoError(t, err)
	assert.Equal(t, TypeString, dotted.DataType)
	assert.Equal(t, 16, dotted.StringColumnMaxLength)

	raw, err := meta.Column("raw_text")
	require.NoError(t, err)
	assert.False(t, raw.HasDictionary)
	assert.False(t, raw.IsSorted) // default

	_, err = meta.Column("nonexistent")
	assert.True(t, errors.Is(err, ErrColumnNotFound))
}

func TestParseMetadataLengthOfEachEntryAlias(t *testing.T) {
	data := []byte(`
segment.total.docs=1
segment.version=3
column.name.dataType=STRING
column.name.lengthOfEachEntry=32
`)
	meta, err := ParseMetadata(data)
	require.NoError(t, err)
	col, err := meta.Column("name")
	require.NoError(t, err)
	assert.Equal(t, 32, col.StringColumnMaxLength)
}

func TestParseMetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing total docs", "segment.version=3\n"},
		{"missing version", "segment.total.docs=1\n"},
		{"unsupported version", "segment.total.docs=1\nsegment.version=2\n"},
		{"duplicate key", "segment.total.docs=1\nsegment.total.docs=2\nsegment.version=3\n"},
		{"bad column bits", "segment.total.docs=1\nsegment.version=3\ncolumn.x.dataType=INT\ncolumn.x.bitsPerElement=99\n"},
		{"missing dataType", "segment.total.docs=1\nsegment.version=3\ncolumn.x.cardinality=1\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseMetadata([]byte(test.data))
			assert.Error(t, err)
		})
	}
}
