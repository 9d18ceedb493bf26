package zipflow

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReader_ParsesEntriesAndComment(t *testing.T) {
	raw := buildSimpleArchive(t, []string{"a.txt", "b/c.txt"})
	r, err := NewReader(context.Background(), NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)
	require.Equal(t, "a short comment", r.Comment())

	names := make([]string, len(r.Entries()))
	for i, e := range r.Entries() {
		names[i] = e.Name
	}
	require.Equal(t, []string{"a.txt", "b/c.txt"}, names)
}

func TestNewReader_RejectsTruncatedArchive(t *testing.T) {
	_, err := NewReader(context.Background(), NewMemorySource([]byte("not a zip")), CurrentConfig())
	require.ErrorIs(t, err, ErrBadFormat)
}

func TestReader_ExtractRoundTripsUncompressedEntry(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	require.NoError(t, w.Add(ctx, "plain.txt", NewMemorySource([]byte("hello reader")), AddOptions{}))
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw, err := io.ReadAll(result.(io.ReadSeeker))
	require.NoError(t, err)

	r, err := NewReader(ctx, NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)
	require.Len(t, r.Entries(), 1)

	got, err := r.Extract(ctx, r.Entries()[0], "")
	require.NoError(t, err)
	require.Equal(t, "hello reader", string(got))
}

func TestReader_ExtractRoundTripsCompressedEntry(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	payload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, w.Add(ctx, "compressed.txt", NewMemorySource(payload), AddOptions{Level: 6}))
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw, err := io.ReadAll(result.(io.ReadSeeker))
	require.NoError(t, err)

	r, err := NewReader(ctx, NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)

	got, err := r.Extract(ctx, r.Entries()[0], "")
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReader_ExtractRoundTripsEncryptedEntry(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	require.NoError(t, w.Add(ctx, "secret.txt", NewMemorySource([]byte("top secret payload")), AddOptions{Password: "swordfish"}))
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw, err := io.ReadAll(result.(io.ReadSeeker))
	require.NoError(t, err)

	r, err := NewReader(ctx, NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)
	e := r.Entries()[0]
	require.True(t, e.Encrypted)

	got, err := r.Extract(ctx, e, "swordfish")
	require.NoError(t, err)
	require.Equal(t, "top secret payload", string(got))
}

func TestReader_ExtractWithoutPasswordOnEncryptedEntryFails(t *testing.T) {
	ctx := context.Background()
	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	require.NoError(t, w.Add(ctx, "secret.txt", NewMemorySource([]byte("x")), AddOptions{Password: "swordfish"}))
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw, err := io.ReadAll(result.(io.ReadSeeker))
	require.NoError(t, err)

	r, err := NewReader(ctx, NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)

	_, err = r.Extract(ctx, r.Entries()[0], "")
	require.ErrorIs(t, err, ErrEncrypted)
}

func TestReader_ExtractToReportsProgress(t *testing.T) {
	ctx := context.Background()
	withSavedConfig(t)
	_, err := Configure(Config{ChunkSize: 8})
	require.NoError(t, err)

	sink := &memorySink{}
	w := NewWriter(sink, CurrentConfig())
	const payload = "0123456789012345678901234567890123456789012345678901234567890123456789012345678901234567890123456789"
	require.NoError(t, w.Add(ctx, "big.txt", NewMemorySource([]byte(payload)), AddOptions{}))
	result, err := w.Close(ctx, "")
	require.NoError(t, err)
	raw, err := io.ReadAll(result.(io.ReadSeeker))
	require.NoError(t, err)

	r, err := NewReader(ctx, NewMemorySource(raw), CurrentConfig())
	require.NoError(t, err)

	var calls int
	out := &memorySink{}
	err = r.ExtractTo(ctx, r.Entries()[0], "", out, func(done, total int64) { calls++ })
	require.NoError(t, err)
	require.Greater(t, calls, 1)
	require.Equal(t, payload, string(out.Bytes()))
}
