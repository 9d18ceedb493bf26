package zipflow

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// joinedReadSeeker is an io.ReadSeeker composed of multiple io.ReadSeekers
// laid end to end, letting memorySink.Finalize hand back a single seekable
// view over every window WriteWindow accumulated without copying them into
// one flat buffer first.
type joinedReadSeeker struct {
	parts     []seekerPart
	offset    int64 // current offset from start
	partIndex int   // index of the part containing offset, or len(parts) at end
	length    int64 // total size of all parts combined
	seekValid bool  // if false, the current part needs re-seeking before Read
}

type seekerPart struct {
	offset  int64
	length  int64
	content io.ReadSeeker
}

// sinkBuilder accumulates the byte windows a Sink receives and joins them
// lazily into a joinedReadSeeker, the same part-joining approach the
// archive template builder used for stitching header/payload/descriptor
// spans, repurposed here for write-side buffering instead of read-side
// template assembly.
type sinkBuilder struct {
	parts  []seekerPart
	offset int64
}

func (b *sinkBuilder) addBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	b.parts = append(b.parts, seekerPart{offset: b.offset, length: int64(len(cp)), content: bytes.NewReader(cp)})
	b.offset += int64(len(cp))
}

func (b *sinkBuilder) size() int64 { return b.offset }

func (b *sinkBuilder) createReadSeeker() io.ReadSeeker {
	return &joinedReadSeeker{parts: b.parts, length: b.offset}
}

func (m *joinedReadSeeker) Read(p []byte) (n int, err error) {
	if m.offset >= m.length {
		return 0, io.EOF
	}
	currentPart := &m.parts[m.partIndex]
	partOffset := m.offset - currentPart.offset
	partRemaining := currentPart.length - partOffset
	toRead := int(len(p))
	if int64(toRead) > partRemaining {
		toRead = int(partRemaining)
	}

	if !m.seekValid {
		if _, err = currentPart.content.Seek(partOffset, io.SeekStart); err != nil {
			return
		}
		m.seekValid = true
	}

	n, err = currentPart.content.Read(p[:toRead])
	if err == io.EOF && n < toRead {
		err = io.ErrUnexpectedEOF
	}

	m.offset += int64(n)
	if int64(n) == partRemaining {
		if err == io.EOF && m.partIndex < len(m.parts)-1 {
			err = nil
		}
		m.partIndex++
		m.seekValid = false
	}
	return
}

func (m *joinedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = m.offset + offset
	case io.SeekEnd:
		newOffset = m.length + offset
	}
	if newOffset > m.length {
		newOffset = m.length
	}
	if newOffset < 0 {
		return 0, fmt.Errorf("zipflow: seek offset %d is before start", newOffset)
	}
	m.offset = newOffset
	m.partIndex = sort.Search(len(m.parts), func(i int) bool {
		return m.parts[i].offset+m.parts[i].length > newOffset
	})
	m.seekValid = false
	return newOffset, nil
}
