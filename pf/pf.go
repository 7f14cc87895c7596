// Package pf implements the paged file layer: a named on-disk file treated
// as a sequence of fixed-size pages, read and written directly through the
// operating system file interface. There is no buffer pool and no
// replacement policy here — every ReadPage/WritePage is a direct syscall;
// callers above this layer (rf, lhx) own any scratch buffers they need.
package pf

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkdb/pagestore/errs"
)

// File is an open handle to a paged file. A File exclusively owns its
// underlying *os.File; Close releases both.
type File struct {
	name     string
	pageSize int
	f        *os.File
	handleID uuid.UUID
	log      *zap.SugaredLogger

	readCount   uint64
	writeCount  uint64
	appendCount uint64
}

// Counters reports the monotonically increasing per-handle read, write and
// append counts accumulated since Open. They are not persisted.
type Counters struct {
	Reads   uint64
	Writes  uint64
	Appends uint64
}

// Create creates a new, empty paged file at path. It fails if the file
// already exists.
func Create(path string, log *zap.SugaredLogger) error {
	if _, err := os.Stat(path); err == nil {
		return errs.NewIOError(nil, errs.CodeFileExists, "file already exists").WithPath(path)
	} else if !os.IsNotExist(err) {
		return errs.NewIOError(err, errs.CodeFileExists, "failed to stat file").WithPath(path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return errs.NewIOError(err, errs.CodeFileExists, "failed to create file").WithPath(path)
	}
	if err := f.Close(); err != nil {
		return errs.NewIOError(err, errs.CodeShortWrite, "failed to close created file").WithPath(path)
	}
	if log != nil {
		log.Infow("paged file created", "path", path)
	}
	return nil
}

// Destroy removes a paged file from disk.
func Destroy(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errs.NewIOError(err, errs.CodeFileNotFound, "file does not exist").WithPath(path)
		}
		return errs.NewIOError(err, errs.CodeFileNotFound, "failed to remove file").WithPath(path)
	}
	return nil
}

// Open acquires a read/write handle to an existing paged file. pageSize
// must match the page size the file was created under; the file's length
// must be an exact multiple of pageSize, or the file is corrupt and Open
// fails fatally with CodeNonAlignedSize.
func Open(path string, pageSize int, log *zap.SugaredLogger) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewIOError(err, errs.CodeFileNotFound, "file does not exist").WithPath(path)
		}
		return nil, errs.NewIOError(err, errs.CodeFileNotFound, "failed to open file").WithPath(path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.NewIOError(err, errs.CodeSeekFailure, "failed to stat open file").WithPath(path)
	}
	if stat.Size()%int64(pageSize) != 0 {
		f.Close()
		return nil, errs.NewIOError(nil, errs.CodeNonAlignedSize, "file size is not a multiple of page size").
			WithPath(path)
	}
	id := uuid.New()
	if log != nil {
		log = log.With("handle_id", id.String(), "path", path)
		log.Infow("paged file opened", "page_count", stat.Size()/int64(pageSize))
	}
	return &File{name: path, pageSize: pageSize, f: f, handleID: id, log: log}, nil
}

// Close releases the handle. Closing a handle that has already been closed
// is a no-op.
func (h *File) Close() error {
	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	if h.log != nil {
		if err != nil {
			h.log.Errorw("paged file close failed", "error", err)
		} else {
			h.log.Infow("paged file closed")
		}
	}
	if err != nil {
		return errs.NewIOError(err, errs.CodeShortWrite, "failed to close file").WithPath(h.name)
	}
	return nil
}

// PageSize returns the fixed page size this handle was opened with.
func (h *File) PageSize() int { return h.pageSize }

// Name returns the path this handle was opened against.
func (h *File) Name() string { return h.name }

// PageCount returns the number of pages in the file, computed from the
// file's current length. The length must be an exact multiple of the page
// size; anything else means the file is corrupt.
func (h *File) PageCount() (int64, error) {
	if h.f == nil {
		return 0, errs.NewIOError(nil, errs.CodeBadHandle, "handle is closed").WithPath(h.name)
	}
	stat, err := h.f.Stat()
	if err != nil {
		return 0, errs.NewIOError(err, errs.CodeSeekFailure, "failed to stat file").WithPath(h.name)
	}
	if stat.Size()%int64(h.pageSize) != 0 {
		return 0, errs.NewIOError(nil, errs.CodeNonAlignedSize, "file size is not a multiple of page size").
			WithPath(h.name)
	}
	return stat.Size() / int64(h.pageSize), nil
}

// ReadPage reads exactly PageSize bytes at page pageNo into buf. buf must
// be at least PageSize bytes long.
func (h *File) ReadPage(pageNo int64, buf []byte) error {
	if buf == nil {
		return errs.NewIOError(nil, errs.CodeNullBuffer, "nil buffer passed to ReadPage")
	}
	if len(buf) < h.pageSize {
		return errs.NewIOError(nil, errs.CodeNullBuffer, "buffer smaller than page size")
	}
	if h.f == nil {
		return errs.NewIOError(nil, errs.CodeBadHandle, "handle is closed").WithPath(h.name)
	}
	count, err := h.PageCount()
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo >= count {
		return errs.NewIOError(nil, errs.CodeSeekFailure, "page number out of range").
			WithPath(h.name).WithPage(pageNo)
	}
	off := pageNo * int64(h.pageSize)
	n, err := h.f.ReadAt(buf[:h.pageSize], off)
	if err != nil && !errors.Is(err, io.EOF) {
		return errs.NewIOError(err, errs.CodeShortRead, "failed to read page").WithPath(h.name).WithPage(pageNo)
	}
	if n != h.pageSize {
		return errs.NewIOError(nil, errs.CodeShortRead, fmt.Sprintf("short read: got %d bytes", n)).
			WithPath(h.name).WithPage(pageNo)
	}
	h.readCount++
	return nil
}

// WritePage writes exactly PageSize bytes at page pageNo. Writing at
// pageNo == PageCount() counts as an append; any write to a smaller page
// number counts as a write.
func (h *File) WritePage(pageNo int64, buf []byte) error {
	if buf == nil {
		return errs.NewIOError(nil, errs.CodeNullBuffer, "nil buffer passed to WritePage")
	}
	if len(buf) != h.pageSize {
		return errs.NewIOError(nil, errs.CodeNullBuffer, "buffer is not exactly one page")
	}
	if h.f == nil {
		return errs.NewIOError(nil, errs.CodeBadHandle, "handle is closed").WithPath(h.name)
	}
	count, err := h.PageCount()
	if err != nil {
		return err
	}
	if pageNo < 0 || pageNo > count {
		return errs.NewIOError(nil, errs.CodeSeekFailure, "page number out of range").
			WithPath(h.name).WithPage(pageNo)
	}
	off := pageNo * int64(h.pageSize)
	n, err := h.f.WriteAt(buf, off)
	if err != nil {
		return errs.NewIOError(err, errs.CodeShortWrite, "failed to write page").WithPath(h.name).WithPage(pageNo)
	}
	if n != h.pageSize {
		return errs.NewIOError(nil, errs.CodeShortWrite, fmt.Sprintf("short write: wrote %d bytes", n)).
			WithPath(h.name).WithPage(pageNo)
	}
	if pageNo == count {
		h.appendCount++
	} else {
		h.writeCount++
	}
	return nil
}

// AppendPage appends one new page to the end of the file and returns its
// page number.
func (h *File) AppendPage(buf []byte) (int64, error) {
	if buf == nil {
		return 0, errs.NewIOError(nil, errs.CodeNullBuffer, "nil buffer passed to AppendPage")
	}
	if len(buf) != h.pageSize {
		return 0, errs.NewIOError(nil, errs.CodeNullBuffer, "buffer is not exactly one page")
	}
	if h.f == nil {
		return 0, errs.NewIOError(nil, errs.CodeBadHandle, "handle is closed").WithPath(h.name)
	}
	count, err := h.PageCount()
	if err != nil {
		return 0, err
	}
	off := count * int64(h.pageSize)
	n, err := h.f.WriteAt(buf, off)
	if err != nil {
		return 0, errs.NewIOError(err, errs.CodeShortWrite, "failed to append page").WithPath(h.name)
	}
	if n != h.pageSize {
		return 0, errs.NewIOError(nil, errs.CodeShortWrite, fmt.Sprintf("short write on append: wrote %d bytes", n)).
			WithPath(h.name)
	}
	h.appendCount++
	return count, nil
}

// Counters reports this handle's accumulated read/write/append counts.
func (h *File) Counters() Counters {
	return Counters{Reads: h.readCount, Writes: h.writeCount, Appends: h.appendCount}
}

// HandleID returns the random identifier this handle was tagged with at
// Open, used to correlate log lines from a single handle's lifetime.
func (h *File) HandleID() uuid.UUID { return h.handleID }
