package segment

import "github.com/wirybeaver/datafusion-pinot/internal/errors"

// Error codes for every fallible operation in the segment core. Callers
// should use errors.Is(err, segment.ErrOutOfRange) rather than matching on
// message text.
const (
	ErrIO                   errors.Code = "IO"
	ErrMetadataMalformed    errors.Code = "MetadataMalformed"
	ErrIndexMapMalformed    errors.Code = "IndexMapMalformed"
	ErrMagicMismatch        errors.Code = "MagicMismatch"
	ErrUnsupportedType      errors.Code = "UnsupportedType"
	ErrUnsupportedEncoding  errors.Code = "UnsupportedEncoding"
	ErrOutOfRange           errors.Code = "OutOfRange"
	ErrDecompressionFailure errors.Code = "DecompressionFailure"
	ErrColumnNotFound       errors.Code = "ColumnNotFound"
)
