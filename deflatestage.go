package zipflow

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateWriterStage adapts klauspost/compress/flate.Writer to codecStage
// for the write (Deflate) direction. klauspost/compress is used here
// instead of the standard library's compress/flate because the rest of the
// corpus this module was grown from (buildbarn-bb-storage) already
// standardises on it for streaming compression; see DESIGN.md.
type deflateWriterStage struct {
	buf *bytes.Buffer
	fw  *flate.Writer
}

func newDeflateWriterStage(level int) (codecStage, error) {
	if level == 0 {
		level = flate.DefaultCompression
	}
	buf := &bytes.Buffer{}
	fw, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, err
	}
	return &deflateWriterStage{buf: buf, fw: fw}, nil
}

func (d *deflateWriterStage) append(p []byte) ([]byte, error) {
	if _, err := d.fw.Write(p); err != nil {
		return nil, err
	}
	return d.drain(), nil
}

func (d *deflateWriterStage) flush() ([]byte, error) {
	if err := d.fw.Close(); err != nil {
		return nil, err
	}
	return d.drain(), nil
}

func (d *deflateWriterStage) drain() []byte {
	out := make([]byte, d.buf.Len())
	copy(out, d.buf.Bytes())
	d.buf.Reset()
	return out
}

// deflateReaderStage adapts flate.Reader to codecStage for the read
// (Inflate) direction. Compressed windows are accumulated as they arrive
// and the whole entry is inflated in one pass on flush: DEFLATE blocks
// straddle window boundaries arbitrarily, so there is no sound way to hand
// partial output back to the caller mid-entry without risking the
// underlying bufio reader spinning on a short read.
type deflateReaderStage struct {
	compressed bytes.Buffer
}

func newDeflateReaderStage() (codecStage, error) {
	return &deflateReaderStage{}, nil
}

func (d *deflateReaderStage) append(p []byte) ([]byte, error) {
	d.compressed.Write(p)
	return nil, nil
}

func (d *deflateReaderStage) flush() ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(d.compressed.Bytes()))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, err
	}
	return out, nil
}
