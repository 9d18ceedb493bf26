package zipflow

import (
	"context"
	"encoding/binary"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// countingSink wraps a Sink to track how many bytes pass through
// WriteWindow, used to measure an entry's compressed payload size without
// requiring Sink itself to expose a size.
type countingSink struct {
	Sink
	n int64
}

func (c *countingSink) WriteWindow(ctx context.Context, p []byte) error {
	if err := c.Sink.WriteWindow(ctx, p); err != nil {
		return err
	}
	c.n += int64(len(p))
	return nil
}

// writeBuf is a little-endian cursor over a fixed-size byte slice, a small
// incremental-encode helper for header assembly.
type writeBuf []byte

func (b *writeBuf) uint16(v uint16) { binary.LittleEndian.PutUint16(*b, v); *b = (*b)[2:] }
func (b *writeBuf) uint32(v uint32) { binary.LittleEndian.PutUint32(*b, v); *b = (*b)[4:] }
func (b *writeBuf) uint64(v uint64) { binary.LittleEndian.PutUint64(*b, v); *b = (*b)[8:] }

// detectUTF8 reports whether s is valid UTF-8, and whether it requires the
// UTF-8 flag because it isn't CP-437/ASCII compatible. The heuristic
// (forbid control chars, 0x7e, 0x5c) is an established ZIP interop
// convention, not something this module should second-guess.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

// AddOptions configures one Writer.Add call.
type AddOptions struct {
	Directory bool
	Password  string
	Level     int // DEFLATE level; 0 disables compression (Store)
	Zip64     bool
	Mode      os.FileMode
	ModTime   time.Time
	Comment   string
	Extra     []byte

	// BufferedWrite stages the entry in memory and appends it to the real
	// sink atomically at the end of Add, instead of writing directly. This
	// lets concurrent add operations race on their own buffers and then
	// serialise on append order.
	BufferedWrite bool
}

// pendingEntry is the writer's cached record for one entry, carrying
// everything Close needs to emit the central directory.
type pendingEntry struct {
	Record
	comment string

	// payloadMethod is the compression method actually applied to the
	// payload bytes (Store or Deflate). Record.Method holds aesMethod for
	// encrypted entries instead, since that's what the wire format's method
	// field stores; payloadMethod is what belongs inside the WinZip-AES
	// extra's inner-method slot.
	payloadMethod uint16
}

// Writer assembles a ZIP archive onto a Sink, one entry at a time.
type Writer struct {
	sink    Sink
	cfg     Config
	names   map[string]bool
	entries []*pendingEntry
	offset  int64
	zip64   bool // sticky: once set, later entries are written in ZIP64 form too
}

// NewWriter creates a Writer over sink. cfg is snapshotted at construction.
func NewWriter(sink Sink, cfg Config) *Writer {
	return &Writer{sink: sink, cfg: cfg.snapshot(), names: make(map[string]bool)}
}

// Add writes one entry. source may be nil for a directory entry.
func (w *Writer) Add(ctx context.Context, name string, source Source, opts AddOptions) error {
	name = strings.TrimRight(name, " \t\r\n")
	if opts.Directory && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	if w.names[name] {
		return newError(KindDuplicatedName, "add", name, nil)
	}

	compressed := opts.Level != 0 && !opts.Directory
	encrypted := opts.Password != ""

	var size int64
	if source != nil {
		size = source.Size()
	}
	zip64 := opts.Zip64 || w.zip64 || size >= uint32max

	e := &pendingEntry{comment: opts.Comment}
	e.Name = name
	e.Directory = opts.Directory
	e.Encrypted = encrypted
	e.Modified = opts.ModTime
	if e.Modified.IsZero() {
		e.Modified = time.Now()
	}
	e.SetMode(opts.Mode)

	method := Store
	if compressed {
		method = Deflate
	}
	e.payloadMethod = method
	e.Method = method
	if encrypted {
		e.Method = aesMethod
	}

	utf8Valid1, utf8Require1 := detectUTF8(e.Name)
	utf8Valid2, utf8Require2 := detectUTF8(e.comment)
	if (utf8Require1 || utf8Require2) && utf8Valid1 && utf8Valid2 {
		e.UTF8 = true
	}

	e.VersionNeeded = zipVersionDefault
	if zip64 {
		e.VersionNeeded = zipVersionZip64
	}
	if encrypted {
		e.VersionNeeded = zipVersionAES
	}
	e.Flags = descriptorFlagBit
	if encrypted {
		e.Flags |= encryptedFlagBit
	}
	if e.UTF8 {
		e.Flags |= utf8FlagBit
	}
	e.Extra = append([]byte(nil), opts.Extra...)

	target := w.sink
	var buffer *memorySink
	if opts.BufferedWrite {
		buffer = &memorySink{}
		target = buffer
	}

	localOffset := w.offset
	n, sig, err := w.writeEntry(ctx, target, e, source, method, compressed, encrypted, zip64, opts.Password, opts.Level)
	if err != nil {
		return err
	}

	if buffer != nil {
		blob := buffer.Bytes()
		if err := w.sink.WriteWindow(ctx, blob); err != nil {
			return err
		}
		n = int64(len(blob))
	}

	e.CRC32 = sig
	e.LocalHeaderOffset = uint64(localOffset)
	w.offset += n
	if e.needsZip64() || e.LocalHeaderOffset >= uint32max {
		w.zip64 = true
	}

	w.names[name] = true
	w.entries = append(w.entries, e)
	return nil
}

// writeEntry emits the local header, drives the payload through the codec
// pipeline and chunked mover, and emits the data descriptor, returning the
// total bytes written to target and the resulting CRC-32 signature (zero
// for encrypted entries, whose HMAC tag is written into the payload).
func (w *Writer) writeEntry(ctx context.Context, target Sink, e *pendingEntry, source Source, method uint16, compressed, encrypted, zip64 bool, password string, level int) (int64, uint32, error) {
	var written int64

	localExtra := w.localHeaderExtra(e, zip64, encrypted)

	header := w.encodeLocalHeader(e, localExtra)
	if err := target.WriteWindow(ctx, header); err != nil {
		return 0, 0, err
	}
	written += int64(len(header))
	if err := target.WriteWindow(ctx, []byte(e.Name)); err != nil {
		return 0, 0, err
	}
	written += int64(len(e.Name))
	if err := target.WriteWindow(ctx, localExtra); err != nil {
		return 0, 0, err
	}
	written += int64(len(localExtra))

	policy := StagePolicy{
		Compressed: compressed,
		Encrypted:  encrypted,
		Password:   password,
		Signed:     !encrypted,
		Level:      level,
	}
	codecFactory := func() (codecStage, error) { return newDeflateWriterStage(level) }
	cryptoFactory := func() (cryptoStage, error) { return newAESEncryptStage(password) }

	var sig uint32
	if source != nil {
		stage, err := newDispatchedStage(ctx, w.cfg, Deflate, policy, codecFactory, cryptoFactory)
		if err != nil {
			return 0, 0, err
		}
		counting := &countingSink{Sink: target}
		var uncompressedLen int64
		sig, uncompressedLen, err = Copy(ctx, source, 0, source.Size(), stage, counting, nil)
		if err != nil {
			return 0, 0, err
		}
		e.UncompressedSize = uint64(uncompressedLen)
		e.CompressedSize = uint64(counting.n)
		written += counting.n
	}

	descriptor := w.encodeDataDescriptor(e, sig, zip64)
	if err := target.WriteWindow(ctx, descriptor); err != nil {
		return 0, 0, err
	}
	written += int64(len(descriptor))

	return written, sig, nil
}

// localHeaderExtra assembles the local header's extra field: the
// caller-supplied Extra, plus a ZIP64 extra (sizes only — the local-offset
// slot is omitted, since nothing precedes the local header that would need
// it) when zip64 is set, plus a WinZip-AES extra carrying the true payload
// method when encrypted is set. The ZIP64 size slots are written as zero
// placeholders: bit 3 of Flags is always set, so the true sizes live in the
// trailing data descriptor, not here.
func (w *Writer) localHeaderExtra(e *pendingEntry, zip64, encrypted bool) []byte {
	extra := append([]byte(nil), e.Extra...)
	if zip64 {
		var zero uint64
		extra = append(extra, encodeZip64Extra(&zero, &zero, nil)...)
	}
	if encrypted {
		extra = append(extra, encodeAESExtra(e.payloadMethod)...)
	}
	return extra
}

func (w *Writer) encodeLocalHeader(e *pendingEntry, extra []byte) []byte {
	buf := make([]byte, fileHeaderLen)
	b := writeBuf(buf)
	modDate, modTime := dosDateTime(e.Modified)
	b.uint32(fileHeaderSignature)
	b.uint16(e.VersionNeeded)
	b.uint16(e.Flags)
	b.uint16(e.Method)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(0) // CRC, compressed size, uncompressed size all deferred to the
	b.uint32(0) // data descriptor, since bit 3 of Flags is always set.
	b.uint32(0)
	b.uint16(uint16(len(e.Name)))
	b.uint16(uint16(len(extra)))
	return buf
}

func (w *Writer) encodeDataDescriptor(e *pendingEntry, sig uint32, zip64 bool) []byte {
	crc := sig
	if e.Encrypted {
		crc = 0 // encrypted entries store a zero CRC; the HMAC authenticates instead
	}
	if zip64 {
		buf := make([]byte, dataDescriptor64Len)
		b := writeBuf(buf)
		b.uint32(dataDescriptorSignature)
		b.uint32(crc)
		b.uint64(e.CompressedSize)
		b.uint64(e.UncompressedSize)
		return buf
	}
	buf := make([]byte, dataDescriptorLen)
	b := writeBuf(buf)
	b.uint32(dataDescriptorSignature)
	b.uint32(crc)
	b.uint32(uint32(e.CompressedSize))
	b.uint32(uint32(e.UncompressedSize))
	return buf
}

// Close finalises the archive: promotes to ZIP64 if any threshold was
// crossed, emits the central directory, optional ZIP64 EOCD/locator, and
// EOCD with comment.
func (w *Writer) Close(ctx context.Context, comment string) (any, error) {
	if len(comment) > MaxCommentLength {
		return nil, newError(KindCommentTooLong, "close", "", nil)
	}

	needZip64 := w.zip64 || len(w.entries) >= uint16max || w.offset >= uint32max
	for _, e := range w.entries {
		if e.needsZip64() || e.LocalHeaderOffset >= uint32max {
			needZip64 = true
		}
	}

	dirStart := w.offset
	var dirSize int64
	for _, e := range w.entries {
		rec := w.encodeCentralDirectoryRecord(e, needZip64)
		if err := w.sink.WriteWindow(ctx, rec); err != nil {
			return nil, err
		}
		dirSize += int64(len(rec))
	}
	w.offset = dirStart + dirSize

	if needZip64 {
		zrec := w.encodeZip64EOCD(int64(len(w.entries)), dirSize, dirStart)
		if err := w.sink.WriteWindow(ctx, zrec); err != nil {
			return nil, err
		}
		w.offset += int64(len(zrec))
	}

	eocd := w.encodeEOCD(needZip64, int64(len(w.entries)), dirSize, dirStart, comment)
	if err := w.sink.WriteWindow(ctx, eocd); err != nil {
		return nil, err
	}
	if err := w.sink.WriteWindow(ctx, []byte(comment)); err != nil {
		return nil, err
	}

	return w.sink.Finalize(ctx)
}

func (w *Writer) encodeCentralDirectoryRecord(e *pendingEntry, zip64 bool) []byte {
	extra := append([]byte(nil), e.Extra...)

	compressedSize := uint32(e.CompressedSize)
	uncompressedSize := uint32(e.UncompressedSize)
	localOffset := uint32(e.LocalHeaderOffset)
	needZip64 := zip64 || e.needsZip64() || e.LocalHeaderOffset >= uint32max
	if needZip64 {
		compressedSize = uint32max
		uncompressedSize = uint32max
		localOffset = uint32max
		var u, c, o *uint64
		cs, us, lo := e.CompressedSize, e.UncompressedSize, e.LocalHeaderOffset
		u = &us
		c = &cs
		o = &lo
		extra = append(extra, encodeZip64Extra(u, c, o)...)
	}
	if e.Encrypted {
		extra = append(extra, encodeAESExtra(e.payloadMethod)...)
	}

	versionNeeded := zipVersionDefault
	if needZip64 {
		versionNeeded = zipVersionZip64
	}
	if e.Encrypted {
		versionNeeded = zipVersionAES
	}

	method := e.Method
	if e.Encrypted {
		method = aesMethod
	}

	buf := make([]byte, directoryHeaderLen)
	b := writeBuf(buf)
	modDate, modTime := dosDateTime(e.Modified)
	crc := e.CRC32
	if e.Encrypted {
		crc = 0
	}
	versionMadeBy := e.VersionMadeBy&0xff00 | zipVersionDefault
	if needZip64 {
		versionMadeBy = e.VersionMadeBy&0xff00 | zipVersionZip64
	}

	b.uint32(directoryHeaderSignature)
	b.uint16(versionMadeBy)
	b.uint16(versionNeeded)
	b.uint16(e.Flags)
	b.uint16(method)
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(crc)
	b.uint32(compressedSize)
	b.uint32(uncompressedSize)
	b.uint16(uint16(len(e.Name)))
	b.uint16(uint16(len(extra)))
	b.uint16(uint16(len(e.comment)))
	b.uint16(0) // disk number start
	b.uint16(0) // internal file attrs
	b.uint32(e.ExternalAttrs)
	b.uint32(localOffset)

	out := make([]byte, 0, len(buf)+len(e.Name)+len(extra)+len(e.comment))
	out = append(out, buf...)
	out = append(out, []byte(e.Name)...)
	out = append(out, extra...)
	out = append(out, []byte(e.comment)...)
	return out
}

func (w *Writer) encodeZip64EOCD(records, dirSize, dirOffset int64) []byte {
	buf := make([]byte, directory64EndLen+directory64LocLen)
	b := writeBuf(buf)
	b.uint32(directory64EndSignature)
	b.uint64(directory64EndLen - 12)
	b.uint16(zipVersionZip64)
	b.uint16(zipVersionZip64)
	b.uint32(0)
	b.uint32(0)
	b.uint64(uint64(records))
	b.uint64(uint64(records))
	b.uint64(uint64(dirSize))
	b.uint64(uint64(dirOffset))

	end := dirOffset + dirSize
	b.uint32(directory64LocSignature)
	b.uint32(0)
	b.uint64(uint64(end))
	b.uint32(1)
	return buf
}

func (w *Writer) encodeEOCD(zip64 bool, records, dirSize, dirOffset int64, comment string) []byte {
	buf := make([]byte, directoryEndLen)
	b := writeBuf(buf)
	b.uint32(directoryEndSignature)
	b.uint16(0)
	b.uint16(0)
	if zip64 {
		b.uint16(uint16max)
		b.uint16(uint16max)
		b.uint32(uint32max)
		b.uint32(uint32max)
	} else {
		b.uint16(uint16(records))
		b.uint16(uint16(records))
		b.uint32(uint32(dirSize))
		b.uint32(uint32(dirOffset))
	}
	b.uint16(uint16(len(comment)))
	return buf
}
