package zipflow

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ServeArchive serves a fully-built archive (the io.ReadSeeker returned by
// Writer.Close, or any seekable view over archive bytes) over HTTP with
// range-request support. The ETag is computed from the already-materialised
// archive content, since Writer produces concrete bytes rather than a
// deferred template.
func ServeArchive(w http.ResponseWriter, r *http.Request, name string, modTime time.Time, content io.ReadSeeker, size int64) error {
	etag, err := archiveETag(content, size)
	if err != nil {
		return err
	}

	if _, ok := w.Header()["Content-Type"]; !ok {
		w.Header().Set("Content-Type", "application/zip")
	}
	if _, ok := w.Header()["Etag"]; !ok {
		w.Header().Set("Etag", etag)
	}

	http.ServeContent(w, r, name, modTime, content)
	return nil
}

func archiveETag(content io.ReadSeeker, size int64) (string, error) {
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := md5.New()
	if _, err := io.CopyN(h, content, size); err != nil && err != io.EOF {
		return "", err
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return fmt.Sprintf("%q", hex.EncodeToString(h.Sum(nil))), nil
}
