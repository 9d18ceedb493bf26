package zipflow

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSimpleArchive(t *testing.T, names []string) []byte {
	t.Helper()
	ctx := context.Background()
	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	for _, name := range names {
		err := w.Add(ctx, name, NewMemorySource([]byte("contents of "+name)), AddOptions{})
		require.NoError(t, err)
	}
	result, err := w.Close(ctx, "a short comment")
	require.NoError(t, err)
	rs := result.(io.ReadSeeker)
	_, err = rs.Seek(0, io.SeekStart)
	require.NoError(t, err)
	raw, err := io.ReadAll(rs)
	require.NoError(t, err)
	return raw
}

func TestLocateEOCD_FindsRecordAtTail(t *testing.T) {
	raw := buildSimpleArchive(t, []string{"a.txt", "b.txt"})
	src := NewMemorySource(raw)

	offset, record, err := locateEOCD(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, record, len(raw)-int(offset))

	fields, err := parseEOCD(record)
	require.NoError(t, err)
	require.EqualValues(t, 2, fields.entryCount)
	require.Equal(t, "a short comment", string(fields.comment))
}

func TestLocateEOCD_TooSmallSourceFails(t *testing.T) {
	src := NewMemorySource([]byte("short"))
	_, _, err := locateEOCD(context.Background(), src)
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestParseEOCD_TruncatedRecordFails(t *testing.T) {
	_, err := parseEOCD(make([]byte, 10))
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestResolveZip64_AbsentWhenNotSentineled(t *testing.T) {
	raw := buildSimpleArchive(t, []string{"x.txt"})
	src := NewMemorySource(raw)
	offset, record, err := locateEOCD(context.Background(), src)
	require.NoError(t, err)
	fields, err := parseEOCD(record)
	require.NoError(t, err)

	loc, err := resolveZip64(context.Background(), src, offset, fields)
	require.NoError(t, err)
	require.Nil(t, loc)
}

func TestParseCentralDirectory_RecoversEntries(t *testing.T) {
	names := []string{"one.txt", "dir/two.txt", "three.bin"}
	raw := buildSimpleArchive(t, names)
	src := NewMemorySource(raw)

	offset, record, err := locateEOCD(context.Background(), src)
	require.NoError(t, err)
	fields, err := parseEOCD(record)
	require.NoError(t, err)

	entries, err := parseCentralDirectory(context.Background(), src, int64(fields.cdOffset), int64(fields.cdSize))
	require.NoError(t, err)
	require.Len(t, entries, len(names))
	for i, e := range entries {
		require.Equal(t, names[i], e.Name)
		require.False(t, e.Directory)
		require.False(t, e.Encrypted)
	}
	_ = offset
}

func TestParseCentralDirectory_TruncatedBufferFails(t *testing.T) {
	raw := buildSimpleArchive(t, []string{"one.txt"})
	src := NewMemorySource(raw)
	offset, record, err := locateEOCD(context.Background(), src)
	require.NoError(t, err)
	fields, err := parseEOCD(record)
	require.NoError(t, err)
	_ = offset

	_, err = parseCentralDirectory(context.Background(), src, int64(fields.cdOffset), int64(fields.cdSize)-1)
	require.Error(t, err)
}
