package protocol

const (
	// DefaultMaxBulkLen matches the proto-max-bulk-len default of Redis (512MB)
	DefaultMaxBulkLen = 512 * 1024 * 1024

	// DefaultMaxArrayLen is the maximum number of elements in one array
	DefaultMaxArrayLen = 1024 * 1024

	// DefaultMaxDepth is the maximum array nesting level
	DefaultMaxDepth = 64

	// DefaultMaxLineLen bounds simple strings, errors, integers and length
	// headers (64KB, the inline limit of Redis)
	DefaultMaxLineLen = 64 * 1024

	// DefaultMaxBufferSize bounds the bytes held for a single incomplete frame
	DefaultMaxBufferSize = DefaultMaxBulkLen + DefaultMaxLineLen
)

// Limits bounds what the decoder accepts from a peer. A zero field selects
// the default, a negative one disables the check.
type Limits struct {
	MaxBulkLen    int64
	MaxArrayLen   int64
	MaxDepth      int
	MaxLineLen    int
	MaxBufferSize int
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxBulkLen:    DefaultMaxBulkLen,
		MaxArrayLen:   DefaultMaxArrayLen,
		MaxDepth:      DefaultMaxDepth,
		MaxLineLen:    DefaultMaxLineLen,
		MaxBufferSize: DefaultMaxBufferSize,
	}
}

// normalize replaces zero fields with defaults
func (l Limits) normalize() Limits {
	d := DefaultLimits()
	if l.MaxBulkLen == 0 {
		l.MaxBulkLen = d.MaxBulkLen
	}
	if l.MaxArrayLen == 0 {
		l.MaxArrayLen = d.MaxArrayLen
	}
	if l.MaxDepth == 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxLineLen == 0 {
		l.MaxLineLen = d.MaxLineLen
	}
	if l.MaxBufferSize == 0 {
		l.MaxBufferSize = d.MaxBufferSize
	}
	return l
}
