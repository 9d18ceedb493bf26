// Tests that involve both reading and writing.

package zipflow

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go4.org/readerutil"
)

// sameBytes is an io.ReaderAt that reads as an infinite run of one repeated
// byte, letting tests exercise multi-gigabyte entries without materialising
// them.
type sameBytes struct{ b byte }

func (s *sameBytes) ReadAt(p []byte, _ int64) (int, error) {
	for i := range p {
		p[i] = s.b
	}
	return len(p), nil
}

// sameBytesSource adapts a go4.org/readerutil.SizeReaderAt join to the
// Source interface, avoiding the need to hold the whole span in memory.
type sameBytesSource struct {
	r    io.ReaderAt
	size int64
}

func (s sameBytesSource) Size() int64 { return s.size }

func (s sameBytesSource) ReadWindow(_ context.Context, offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := s.r.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// TestOver65kFiles checks that the entry count promotes the archive to
// ZIP64 once it crosses the 16-bit central directory record limit, and that
// the standard library's own reader can still open the result.
func TestOver65kFiles(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	ctx := context.Background()
	const nFiles = (1 << 16) + 42

	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	for i := 0; i < nFiles; i++ {
		err := w.Add(ctx, fmt.Sprintf("%d.dat", i), NewMemorySource(nil), AddOptions{})
		require.NoError(t, err)
	}
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw := readAllSeeker(t, result.(io.ReadSeeker))

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	require.Len(t, zr.File, nFiles)
	for i := 0; i < nFiles; i++ {
		require.Equal(t, fmt.Sprintf("%d.dat", i), zr.File[i].Name)
	}
}

// TestCrossPackageRoundTrip builds an archive with the standard library's
// writer and reads it back with this package's Reader, checking the two
// implementations of the format agree.
func TestCrossPackageRoundTrip(t *testing.T) {
	ctx := context.Background()
	contents := map[string]string{
		"a.txt":     "hello from the standard library",
		"dir/b.txt": "nested file",
		"empty.txt": "",
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range contents {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	r, err := NewReader(ctx, NewMemorySource(buf.Bytes()), CurrentConfig())
	require.NoError(t, err)
	require.Len(t, r.Entries(), len(contents))

	got := map[string]string{}
	for _, e := range r.Entries() {
		data, err := r.Extract(ctx, e, "")
		require.NoError(t, err)
		got[e.Name] = string(data)
	}
	require.Equal(t, contents, got)
}

// tailSink records only the final few bytes written plus a running total,
// so a multi-gigabyte stream can be verified without holding it in memory.
type tailSink struct {
	n    int64
	tail []byte
}

func (s *tailSink) WriteWindow(_ context.Context, p []byte) error {
	s.n += int64(len(p))
	s.tail = append(s.tail, p...)
	if len(s.tail) > 64 {
		s.tail = s.tail[len(s.tail)-64:]
	}
	return nil
}

func (s *tailSink) Finalize(_ context.Context) (any, error) { return nil, nil }

// TestZip64Promotion checks that an entry whose uncompressed size exceeds
// the 32-bit field limit is promoted to ZIP64 and round-trips, using a
// go4.org/readerutil-joined constant-byte span so the multi-gigabyte
// payload is never held in memory.
func TestZip64Promotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large-volume test in short mode")
	}
	ctx := context.Background()

	const size = int64(uint32max) + 4096
	tail := []byte("END\n")
	joined := readerutil.NewMultiReaderAt(
		io.NewSectionReader(&sameBytes{b: 'x'}, 0, size-int64(len(tail))),
		bytes.NewReader(tail),
	)
	content := sameBytesSource{r: joined, size: joined.Size()}

	tmpFile, err := createTempFile(t)
	require.NoError(t, err)
	defer tmpFile.Close()
	w := NewWriter(NewFileSink(tmpFile), CurrentConfig())
	require.NoError(t, w.Add(ctx, "huge.bin", content, AddOptions{}))
	_, err = w.Close(ctx, "")
	require.NoError(t, err)

	fi, err := tmpFile.Stat()
	require.NoError(t, err)
	src := NewFileSource(tmpFile, fi.Size())

	r, err := NewReader(ctx, src, CurrentConfig())
	require.NoError(t, err)
	require.Len(t, r.Entries(), 1)
	e := r.Entries()[0]
	zip64, ok := e.Zip64()
	require.True(t, ok)
	require.NotNil(t, zip64)
	require.Equal(t, uint64(size), e.UncompressedSize)

	out := &tailSink{}
	require.NoError(t, r.ExtractTo(ctx, e, "", out, nil))
	require.Equal(t, size, out.n)
	require.Equal(t, tail, out.tail[len(out.tail)-len(tail):])
}

func createTempFile(t *testing.T) (*os.File, error) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "zipflow-zip64-*.zip")
	return f, err
}
