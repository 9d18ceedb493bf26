package zipflow

import (
	"context"
	"io"
	"sort"
)

// compositeSource joins multiple Sources sequentially into one Source. The
// parts are Source values directly, since Source's ReadWindow is already
// context-aware, so no ignoreContext/withContext adapter pair is needed.
//
// This backs archives assembled from independently-produced spans without
// copying them into one buffer first — e.g. a cached EOCD/central-directory
// prefix in memory joined to a lazily-fetched payload range from a remote
// adapter.
type compositeSource struct {
	parts []sourcePart
	size  int64
}

type sourcePart struct {
	offset int64
	src    Source
}

// JoinSources concatenates parts in order into a single Source spanning
// their combined size. Zero-length parts are skipped.
func JoinSources(parts ...Source) Source {
	cs := &compositeSource{}
	for _, p := range parts {
		if p.Size() == 0 {
			continue
		}
		cs.parts = append(cs.parts, sourcePart{offset: cs.size, src: p})
		cs.size += p.Size()
	}
	return cs
}

func (cs *compositeSource) Size() int64 { return cs.size }

// endOffset is the offset at which the part at partIndex ends.
func (cs *compositeSource) endOffset(partIndex int) int64 {
	if partIndex == len(cs.parts)-1 {
		return cs.size
	}
	return cs.parts[partIndex+1].offset
}

func (cs *compositeSource) ReadWindow(ctx context.Context, offset, length int64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if offset < 0 || offset+length > cs.size {
		return nil, io.ErrUnexpectedEOF
	}

	out := make([]byte, 0, length)
	firstPartIndex := sort.Search(len(cs.parts), func(i int) bool {
		return cs.endOffset(i) > offset
	})

	remaining := length
	off := offset
	for partIndex := firstPartIndex; partIndex < len(cs.parts) && remaining > 0; partIndex++ {
		part := cs.parts[partIndex]
		if partIndex > firstPartIndex {
			off = part.offset
		}
		partRemaining := cs.endOffset(partIndex) - off
		toRead := remaining
		if toRead > partRemaining {
			toRead = partRemaining
		}
		window, err := part.src.ReadWindow(ctx, off-part.offset, toRead)
		if err != nil {
			return nil, err
		}
		out = append(out, window...)
		remaining -= toRead
		off += toRead
	}
	if remaining > 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return out, nil
}
