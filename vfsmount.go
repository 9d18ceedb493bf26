package zipflow

import (
	"bytes"
	"context"
	"io"
	"io/fs"

	"github.com/brittlewing/zipflow/internal/vfs"
)

// readerOpener adapts Reader.Extract to vfs.Opener.
type readerOpener struct {
	r *Reader
	// byName resolves an archive path to its Entry; built once since
	// Reader.Entries() is a flat, already-parsed slice.
	byName map[string]*Entry
}

func newReaderOpener(r *Reader) *readerOpener {
	byName := make(map[string]*Entry, len(r.Entries()))
	for _, e := range r.Entries() {
		byName[e.Name] = e
	}
	return &readerOpener{r: r, byName: byName}
}

func (o *readerOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	e, ok := o.byName[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	data, err := o.r.Extract(ctx, e, "")
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// FS mounts r's entries as an io/fs.FS, letting callers walk the archive
// with filepath.WalkDir-style code instead of iterating Entries directly.
// Entries requiring a password are opened with an empty password and will
// fail to read; use Reader.ExtractTo directly for encrypted archives.
func FS(r *Reader) fs.FS {
	entries := make([]vfs.EntryInfo, 0, len(r.Entries()))
	for _, e := range r.Entries() {
		entries = append(entries, vfs.EntryInfo{
			Name:    e.Name,
			Size:    int64(e.UncompressedSize),
			Mode:    e.Mode(),
			ModTime: e.Modified,
		})
	}
	return vfs.New(entries, newReaderOpener(r))
}
