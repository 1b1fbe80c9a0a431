// Package mmap maps files read-only into memory so readers can slice pages
// straight out of the page cache.
package mmap

import (
	"io"
	"os"
	"sync"

	"github.com/ajitpratap0/tessera/pkg/errors"
)

// Advice hints the kernel about the expected access pattern.
type Advice int

const (
	// AdviceNormal applies no special treatment.
	AdviceNormal Advice = iota
	// AdviceSequential expects pages to be read in order.
	AdviceSequential
	// AdviceRandom expects scattered reads.
	AdviceRandom
	// AdviceWillNeed asks the kernel to prefetch.
	AdviceWillNeed
)

// Reader is a read-only memory-mapped file. It implements io.ReaderAt and
// io.Closer. Slices returned by Bytes are valid until Close.
type Reader struct {
	mu     sync.RWMutex
	file   *os.File
	data   []byte
	size   int64
	mapped bool
	closed bool
}

// Open maps the named file. Empty files are valid and map to an empty
// region.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open file").
			WithDetail("path", path)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat file").
			WithDetail("path", path)
	}

	size := stat.Size()
	if int64(int(size)) != size {
		f.Close()
		return nil, errors.Newf(errors.ErrorTypeFile, "file of %d bytes is too large to map", size).
			WithDetail("path", path)
	}

	r := &Reader{file: f, size: size}
	if size == 0 {
		return r, nil
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to mmap file").
			WithDetail("path", path)
	}
	r.data = data
	r.mapped = mapped
	return r, nil
}

// Bytes returns the whole mapped region. It must not be modified, and must
// not be used after Close.
func (r *Reader) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data
}

// Size returns the file size in bytes.
func (r *Reader) Size() int64 {
	return r.size
}

// Mapped reports whether the region is backed by an actual memory mapping
// rather than a heap copy.
func (r *Reader) Mapped() bool {
	return r.mapped
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, errors.New(errors.ErrorTypeFile, "read from closed mapping")
	}
	if off < 0 {
		return 0, errors.Newf(errors.ErrorTypeInvalidArgument, "negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Advise passes an access-pattern hint to the kernel. It is a no-op where
// the platform has no equivalent.
func (r *Reader) Advise(a Advice) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.mapped || r.closed {
		return nil
	}
	return advise(r.data, a)
}

// Close unmaps the region and closes the file. Further calls are no-ops.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.mapped && r.data != nil {
		err = unmapFile(r.data)
	}
	r.data = nil

	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to unmap file")
	}
	return nil
}
