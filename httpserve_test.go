package zipflow

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServeArchive_SetsContentTypeAndETag(t *testing.T) {
	archive := []byte("fake archive bytes for an etag test")
	content := bytes.NewReader(archive)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/out.zip", nil)

	err := ServeArchive(rec, req, "out.zip", time.Now(), content, int64(len(archive)))
	require.NoError(t, err)

	require.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("Etag"))
	require.Equal(t, archive, rec.Body.Bytes())
}

func TestServeArchive_PreservesExplicitContentType(t *testing.T) {
	archive := []byte("other bytes")
	content := bytes.NewReader(archive)

	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Type", "application/octet-stream")
	req := httptest.NewRequest(http.MethodGet, "/out.zip", nil)

	err := ServeArchive(rec, req, "out.zip", time.Now(), content, int64(len(archive)))
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
}

func TestServeArchive_SupportsRangeRequests(t *testing.T) {
	archive := []byte("0123456789abcdefghij")
	content := bytes.NewReader(archive)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/out.zip", nil)
	req.Header.Set("Range", "bytes=5-9")

	err := ServeArchive(rec, req, "out.zip", time.Now(), content, int64(len(archive)))
	require.NoError(t, err)
	require.Equal(t, http.StatusPartialContent, rec.Code)
	require.Equal(t, "56789", rec.Body.String())
}

func TestArchiveETag_DeterministicForSameContent(t *testing.T) {
	archive := []byte("deterministic etag input")
	a, err := archiveETag(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	b, err := archiveETag(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	require.Equal(t, a, b)
}
