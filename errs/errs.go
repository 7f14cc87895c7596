// Package errs defines the error taxonomy shared by every layer of pagestore:
// the paged file, the record file, and the linear-hash index each return one
// of these kinds rather than ad hoc strings, so callers can dispatch on Code
// with errors.As instead of matching on message text.
package errs

import "fmt"

// Code categorizes a failure. Codes are kinds, not exhaustive error values —
// two errors with the same Code can carry different messages and details.
type Code string

const (
	// I/O codes (paged file layer).
	CodeFileExists     Code = "FILE_EXISTS"
	CodeFileNotFound   Code = "FILE_NOT_FOUND"
	CodeSeekFailure    Code = "SEEK_FAILURE"
	CodeShortRead      Code = "SHORT_READ"
	CodeShortWrite     Code = "SHORT_WRITE"
	CodeNullBuffer     Code = "NULL_BUFFER"
	CodeNonAlignedSize Code = "NON_ALIGNED_SIZE"

	// Page/record codes (record file layer).
	CodeBadHandle        Code = "BAD_HANDLE"
	CodeBadData          Code = "BAD_DATA"
	CodeSizeTooLarge     Code = "SIZE_TOO_LARGE"
	CodeRecordNotFound   Code = "RECORD_NOT_FOUND"
	CodeAttrNotFound     Code = "ATTR_NOT_FOUND"
	CodeMapEntryNotFound Code = "MAP_ENTRY_NOT_FOUND"

	// Index codes (linear-hash layer).
	CodeInvalidInitialBucketCount Code = "INVALID_INITIAL_BUCKET_COUNT"
	CodeBadPage                   Code = "BAD_PAGE"
	CodeOutOfBound                Code = "OUT_OF_BOUND"
	CodeMetadataMissing           Code = "METADATA_MISSING"
	CodeMetadataError             Code = "METADATA_ERROR"
	CodeNoSpace                   Code = "NO_SPACE"
	CodeEntryNotFound             Code = "ENTRY_NOT_FOUND"
	CodeDuplicateEntry            Code = "DUPLICATE_ENTRY"
	CodeInvalidOperation          Code = "INVALID_OPERATION"
)

// baseError carries a code, a message and an optional cause, plus lazily
// allocated structured details for logging.
type baseError struct {
	cause   error
	message string
	code    Code
	details map[string]any
}

func newBase(cause error, code Code, msg string) *baseError {
	return &baseError{cause: cause, code: code, message: msg}
}

func (b *baseError) Error() string {
	if b.cause != nil {
		return fmt.Sprintf("%s: %v", b.message, b.cause)
	}
	return b.message
}

func (b *baseError) Unwrap() error { return b.cause }

func (b *baseError) Code() Code { return b.code }

func (b *baseError) Details() map[string]any { return b.details }

func (b *baseError) withDetail(key string, value any) {
	if b.details == nil {
		b.details = make(map[string]any)
	}
	b.details[key] = value
}

// IOError reports a failure from the paged file layer: file creation,
// opening, or a read/write/append that could not complete.
type IOError struct {
	*baseError
	path string
	page int64
}

// NewIOError builds an IOError with the given code.
func NewIOError(cause error, code Code, msg string) *IOError {
	return &IOError{baseError: newBase(cause, code, msg)}
}

// WithPath attaches the file path under operation.
func (e *IOError) WithPath(path string) *IOError {
	e.path = path
	e.withDetail("path", path)
	return e
}

// WithPage attaches the page number under operation, when known.
func (e *IOError) WithPage(page int64) *IOError {
	e.page = page
	e.withDetail("page", page)
	return e
}

// Path returns the file path recorded on this error, if any.
func (e *IOError) Path() string { return e.path }

// Page returns the page number recorded on this error, if any.
func (e *IOError) Page() int64 { return e.page }

// PageError reports a failure inside the slotted-page / record-file layer:
// a corrupted directory, an oversized record, a missing RID or attribute.
type PageError struct {
	*baseError
	page int64
	slot int
}

// NewPageError builds a PageError with the given code.
func NewPageError(cause error, code Code, msg string) *PageError {
	return &PageError{baseError: newBase(cause, code, msg)}
}

// WithPage attaches the page number under operation.
func (e *PageError) WithPage(page int64) *PageError {
	e.page = page
	e.withDetail("page", page)
	return e
}

// WithSlot attaches the slot number under operation.
func (e *PageError) WithSlot(slot int) *PageError {
	e.slot = slot
	e.withDetail("slot", slot)
	return e
}

// Page returns the page number recorded on this error, if any.
func (e *PageError) Page() int64 { return e.page }

// Slot returns the slot number recorded on this error, if any.
func (e *PageError) Slot() int { return e.slot }

// IndexError reports a failure inside the linear-hash index layer: bad
// bucket routing, metadata inconsistency, duplicate or missing entries.
type IndexError struct {
	*baseError
	bucket uint32
}

// NewIndexError builds an IndexError with the given code.
func NewIndexError(cause error, code Code, msg string) *IndexError {
	return &IndexError{baseError: newBase(cause, code, msg)}
}

// WithBucket attaches the bucket number under operation.
func (e *IndexError) WithBucket(bucket uint32) *IndexError {
	e.bucket = bucket
	e.withDetail("bucket", bucket)
	return e
}

// Bucket returns the bucket number recorded on this error, if any.
func (e *IndexError) Bucket() uint32 { return e.bucket }

// Is reports whether err carries the given code, unwrapping as needed.
func Is(err error, code Code) bool {
	type coder interface{ Code() Code }
	for err != nil {
		if c, ok := err.(coder); ok && c.Code() == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
