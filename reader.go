package zipflow

import (
	"context"
	"encoding/binary"
)

// Reader parses a ZIP archive's central directory at construction and
// serves entries from it, driving the inflate pipeline over the chunked
// mover for payload extraction.
type Reader struct {
	src     Source
	cfg     Config
	entries []*Entry
	comment string
}

// NewReader parses src's end-of-central-directory record and central
// directory, returning a Reader ready to serve Entries/Extract. cfg is
// snapshotted at construction.
func NewReader(ctx context.Context, src Source, cfg Config) (*Reader, error) {
	snap := cfg.snapshot()

	eocdOffset, record, err := locateEOCD(ctx, src)
	if err != nil {
		return nil, err
	}
	eocd, err := parseEOCD(record)
	if err != nil {
		return nil, err
	}

	cdOffset := int64(eocd.cdOffset)
	cdSize := int64(eocd.cdSize)
	entryCount := int(eocd.entryCount)
	comment := decodeZipText(eocd.comment, true)

	zip64, err := resolveZip64(ctx, src, eocdOffset, eocd)
	if err != nil {
		return nil, err
	}
	if zip64 != nil {
		cdOffset = int64(zip64.cdOffset)
		cdSize = int64(zip64.cdSize)
		entryCount = int(zip64.entryCount)
	}

	entries, err := parseCentralDirectory(ctx, src, cdOffset, cdSize)
	if err != nil {
		return nil, err
	}
	if len(entries) != entryCount {
		snap.Logger.Warn("zipflow: central directory entry count mismatch",
			"declared", entryCount, "parsed", len(entries))
	}

	return &Reader{src: src, cfg: snap, entries: entries, comment: comment}, nil
}

// Entries returns every directory entry parsed from the archive, in
// central-directory order.
func (r *Reader) Entries() []*Entry { return r.entries }

// Comment returns the archive-level comment.
func (r *Reader) Comment() string { return r.comment }

// localHeaderInfo is the result of re-reading an entry's local file header.
type localHeaderInfo struct {
	payloadOffset  int64
	compressedSize int64
}

func (r *Reader) readLocalHeader(ctx context.Context, e *Entry) (localHeaderInfo, error) {
	fixed, err := r.src.ReadWindow(ctx, int64(e.LocalHeaderOffset), fileHeaderLen)
	if err != nil {
		return localHeaderInfo{}, err
	}
	if binary.LittleEndian.Uint32(fixed[0:4]) != fileHeaderSignature {
		return localHeaderInfo{}, newError(KindBadFormat, "read-local-header", e.Name, nil)
	}
	nameLen := int(binary.LittleEndian.Uint16(fixed[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(fixed[28:30]))

	payloadOffset := int64(e.LocalHeaderOffset) + fileHeaderLen + int64(nameLen) + int64(extraLen)
	return localHeaderInfo{
		payloadOffset:  payloadOffset,
		compressedSize: int64(e.CompressedSize),
	}, nil
}

// ExtractTo drives the inflate pipeline for e, writing plaintext windows to
// sink as they are produced. password is required when e.Encrypted is
// true and ignored otherwise. progress reports (bytesProcessed, total)
// after each window.
func (r *Reader) ExtractTo(ctx context.Context, e *Entry, password string, sink Sink, progress ProgressFunc) error {
	if e.Encrypted && password == "" {
		return newError(KindEncrypted, "extract", e.Name, nil)
	}

	local, err := r.readLocalHeader(ctx, e)
	if err != nil {
		return err
	}

	policy := StagePolicy{
		Compressed:  e.Method == Deflate,
		Encrypted:   e.Encrypted,
		Password:    password,
		Signed:      !e.Encrypted,
		ExpectedCRC: e.CRC32,
	}

	codecFactory := func() (codecStage, error) { return newDeflateReaderStage() }
	cryptoFactory := func() (cryptoStage, error) { return newAESDecryptStage(password, local.compressedSize) }

	stage, err := newDispatchedStage(ctx, r.cfg, Inflate, policy, codecFactory, cryptoFactory)
	if err != nil {
		return err
	}

	_, _, err = Copy(ctx, r.src, local.payloadOffset, local.compressedSize, stage, sink, progress)
	return err
}

// Extract fully extracts e into memory and returns the plaintext.
func (r *Reader) Extract(ctx context.Context, e *Entry, password string) ([]byte, error) {
	sink := &memorySink{}
	if err := r.ExtractTo(ctx, e, password, sink, nil); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}
