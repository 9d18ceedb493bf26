package zipflow

import (
	"context"
	"io"
	"os"
)

// Source is the reader-side byte-source contract: an initialised, sized,
// randomly-readable span of bytes. The reader borrows a Source; it never
// owns or closes one.
type Source interface {
	// Size reports the total number of bytes available from the source.
	Size() int64
	// ReadWindow reads exactly length bytes starting at offset, or returns
	// an error. Reads may be non-contiguous across calls.
	ReadWindow(ctx context.Context, offset int64, length int64) ([]byte, error)
}

// Sink is the writer-side byte-sink contract. The writer owns its Sink for
// the duration of the session and calls Finalize exactly once, at Close.
type Sink interface {
	// WriteWindow appends p to the sink. Calls are strictly sequential.
	WriteWindow(ctx context.Context, p []byte) error
	// Finalize completes the sink and returns whatever artifact the
	// concrete sink produces (a file path, a byte slice, an io.ReadSeeker,
	// ...). The result's type is sink-specific.
	Finalize(ctx context.Context) (any, error)
}

// memorySource is the default in-memory Source, backing tests and any
// caller that already has the whole archive in RAM.
type memorySource struct {
	data []byte
}

// NewMemorySource adapts a byte slice already in memory to Source.
func NewMemorySource(data []byte) Source { return &memorySource{data: data} }

func (s *memorySource) Size() int64 { return int64(len(s.data)) }

func (s *memorySource) ReadWindow(_ context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(s.data)) {
		return nil, io.ErrUnexpectedEOF
	}
	out := make([]byte, length)
	copy(out, s.data[offset:offset+length])
	return out, nil
}

// fileSource is a Source backed by an *os.File (or anything implementing
// io.ReaderAt plus a known size), for archives read directly off disk.
type fileSource struct {
	r    io.ReaderAt
	size int64
}

// NewFileSource adapts an io.ReaderAt of known size to Source. Typical use
// is an *os.File opened for reading.
func NewFileSource(r io.ReaderAt, size int64) Source {
	return &fileSource{r: r, size: size}
}

// OpenFileSource opens path and wraps it as a Source, returning the
// *os.File so the caller can Close it when done (the Source interface does
// not include Close).
func OpenFileSource(path string) (Source, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return NewFileSource(f, fi.Size()), f, nil
}

func (s *fileSource) Size() int64 { return s.size }

func (s *fileSource) ReadWindow(_ context.Context, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > s.size {
		return nil, io.ErrUnexpectedEOF
	}
	buf := make([]byte, length)
	if _, err := s.r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// memorySink is the default in-memory Sink, backed by sinkBuilder
// (multireadseeker.go) so that accumulated write windows are joined
// lazily into a single seekable view rather than copied into one
// ever-growing flat buffer.
type memorySink struct {
	b sinkBuilder
}

// NewMemorySink creates an in-memory Sink. Finalize returns an
// io.ReadSeeker over everything written.
func NewMemorySink() Sink { return &memorySink{} }

func (s *memorySink) WriteWindow(_ context.Context, p []byte) error {
	s.b.addBytes(p)
	return nil
}

func (s *memorySink) Finalize(_ context.Context) (any, error) {
	return s.b.createReadSeeker(), nil
}

// Bytes materialises the sink's contents as a single contiguous slice. It
// is a convenience for tests and small archives; large archives should
// read the Finalize result incrementally instead.
func (s *memorySink) Bytes() []byte {
	out := make([]byte, s.b.size())
	_, _ = io.ReadFull(s.b.createReadSeeker(), out)
	return out
}

// fileSink is a Sink backed by an *os.File, appending each window directly.
type fileSink struct {
	f *os.File
}

// NewFileSink adapts an already-open, writable *os.File to Sink. The
// file's path is not tracked here; callers that need it should keep a
// reference to the *os.File themselves.
func NewFileSink(f *os.File) Sink { return &fileSink{f: f} }

func (s *fileSink) WriteWindow(_ context.Context, p []byte) error {
	_, err := s.f.Write(p)
	return err
}

func (s *fileSink) Finalize(_ context.Context) (any, error) {
	if err := s.f.Sync(); err != nil {
		return nil, err
	}
	return s.f, nil
}
