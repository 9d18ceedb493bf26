package zipflow

import (
	"context"
	"encoding/binary"
)

// locateEOCD performs the backward scan for the end-of-central-directory
// record: try the minimum 22-byte window first, then extend up to
// 22+65535 bytes (22 plus the maximum comment length) and scan backward
// byte by byte for the signature.
func locateEOCD(ctx context.Context, src Source) (eocdOffset int64, record []byte, err error) {
	size := src.Size()
	if size < directoryEndLen {
		return 0, nil, newError(KindBadFormat, "locate-eocd", "", nil)
	}

	tail, readErr := src.ReadWindow(ctx, size-directoryEndLen, directoryEndLen)
	if readErr != nil {
		return 0, nil, readErr
	}
	if binary.LittleEndian.Uint32(tail[0:4]) == directoryEndSignature {
		return size - directoryEndLen, tail, nil
	}

	maxWindow := int64(directoryEndLen + MaxCommentLength)
	if maxWindow > size {
		maxWindow = size
	}

	window, readErr := src.ReadWindow(ctx, size-maxWindow, maxWindow)
	if readErr != nil {
		return 0, nil, readErr
	}

	for i := len(window) - directoryEndLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(window[i:i+4]) == directoryEndSignature {
			return size - maxWindow + int64(i), window[i:], nil
		}
	}
	return 0, nil, newError(KindBadFormat, "locate-eocd", "", nil)
}

// eocdFields is the fixed 22-byte EOCD record, decoded.
type eocdFields struct {
	entryCount    uint16
	cdSize        uint32
	cdOffset      uint32
	commentLength uint16
	comment       []byte
}

func parseEOCD(record []byte) (eocdFields, error) {
	if len(record) < directoryEndLen {
		return eocdFields{}, newError(KindBadFormat, "parse-eocd", "", nil)
	}
	f := eocdFields{
		entryCount:    binary.LittleEndian.Uint16(record[10:12]),
		cdSize:        binary.LittleEndian.Uint32(record[12:16]),
		cdOffset:      binary.LittleEndian.Uint32(record[16:20]),
		commentLength: binary.LittleEndian.Uint16(record[20:22]),
	}
	if int(f.commentLength) <= len(record)-directoryEndLen {
		f.comment = record[directoryEndLen : directoryEndLen+int(f.commentLength)]
	}
	return f, nil
}

// zip64Locator is the resolved ZIP64 entry count/directory size/offset,
// superseding the 32-bit EOCD fields when present.
type zip64Locator struct {
	entryCount uint64
	cdSize     uint64
	cdOffset   uint64
}

// resolveZip64 checks whether eocd's fields carry the ZIP64 sentinel
// (entry count 0xFFFF or directory offset 0xFFFFFFFF) and if so reads the
// 20-byte locator immediately preceding the EOCD and the 56-byte ZIP64 EOCD
// record it points to.
func resolveZip64(ctx context.Context, src Source, eocdOffset int64, eocd eocdFields) (*zip64Locator, error) {
	if eocd.entryCount != uint16max && eocd.cdOffset != uint32max {
		return nil, nil
	}

	locOffset := eocdOffset - directory64LocLen
	if locOffset < 0 {
		return nil, newError(KindBadFormat, "locate-zip64-locator", "", nil)
	}
	loc, err := src.ReadWindow(ctx, locOffset, directory64LocLen)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(loc[0:4]) != directory64LocSignature {
		return nil, newError(KindBadFormat, "locate-zip64-locator", "", nil)
	}
	zip64EOCDOffset := int64(binary.LittleEndian.Uint64(loc[8:16]))

	rec, err := src.ReadWindow(ctx, zip64EOCDOffset, directory64EndLen)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(rec[0:4]) != directory64EndSignature {
		return nil, newError(KindBadFormat, "locate-zip64-eocd", "", nil)
	}
	return &zip64Locator{
		entryCount: binary.LittleEndian.Uint64(rec[32:40]),
		cdSize:     binary.LittleEndian.Uint64(rec[40:48]),
		cdOffset:   binary.LittleEndian.Uint64(rec[48:56]),
	}, nil
}

// parseCentralDirectory walks the directory span [offset, offset+size)
// producing one Entry per record.
func parseCentralDirectory(ctx context.Context, src Source, offset, size int64) ([]*Entry, error) {
	buf, err := src.ReadWindow(ctx, offset, size)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for len(buf) > 0 {
		if len(buf) < directoryHeaderLen {
			return nil, newError(KindBadFormat, "parse-central-directory", "", nil)
		}
		if binary.LittleEndian.Uint32(buf[0:4]) != directoryHeaderSignature {
			return nil, newError(KindBadFormat, "parse-central-directory", "", nil)
		}

		e := &Entry{}
		r := &e.Record
		r.VersionMadeBy = binary.LittleEndian.Uint16(buf[4:6])
		r.VersionNeeded = binary.LittleEndian.Uint16(buf[6:8])
		r.Flags = binary.LittleEndian.Uint16(buf[8:10])
		r.Method = binary.LittleEndian.Uint16(buf[10:12])
		modTime := binary.LittleEndian.Uint16(buf[12:14])
		modDate := binary.LittleEndian.Uint16(buf[14:16])
		r.Modified = dosToTime(modDate, modTime)
		crc := binary.LittleEndian.Uint32(buf[16:20])
		compressedSize32 := binary.LittleEndian.Uint32(buf[20:24])
		uncompressedSize32 := binary.LittleEndian.Uint32(buf[24:28])
		nameLen := int(binary.LittleEndian.Uint16(buf[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(buf[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(buf[32:34]))
		localOffset32 := binary.LittleEndian.Uint32(buf[42:46])
		r.ExternalAttrs = binary.LittleEndian.Uint32(buf[38:42])

		r.CRC32 = crc
		r.CompressedSize = uint64(compressedSize32)
		r.UncompressedSize = uint64(uncompressedSize32)
		r.LocalHeaderOffset = uint64(localOffset32)

		const fixedLen = directoryHeaderLen
		if len(buf) < fixedLen+nameLen+extraLen+commentLen {
			return nil, newError(KindBadFormat, "parse-central-directory", "", nil)
		}
		nameBytes := buf[fixedLen : fixedLen+nameLen]
		extra := buf[fixedLen+nameLen : fixedLen+nameLen+extraLen]
		commentBytes := buf[fixedLen+nameLen+extraLen : fixedLen+nameLen+extraLen+commentLen]

		r.UTF8 = r.Flags&utf8FlagBit != 0
		r.Name = decodeZipText(nameBytes, r.UTF8)
		r.Comment = decodeZipText(commentBytes, r.UTF8)
		r.Extra = extra
		r.Encrypted = r.Flags&encryptedFlagBit != 0
		r.Directory = r.ExternalAttrs&directoryAttrBit != 0 || hasTrailingSlash(r.Name)

		set := parseExtras(extra)
		zip64, zerr := set.zip64(
			uncompressedSize32 == uint32max,
			compressedSize32 == uint32max,
			localOffset32 == uint32max,
		)
		if zerr != nil {
			return nil, zerr
		}
		if zip64 != nil {
			r.zip64 = zip64
			if zip64.UncompressedSize != nil {
				r.UncompressedSize = *zip64.UncompressedSize
			}
			if zip64.CompressedSize != nil {
				r.CompressedSize = *zip64.CompressedSize
			}
			if zip64.LocalHeaderOffset != nil {
				r.LocalHeaderOffset = *zip64.LocalHeaderOffset
			}
		}

		if r.Encrypted {
			aesExtra, aerr := set.winZipAES()
			if aerr != nil {
				return nil, aerr
			}
			if aesExtra == nil || r.Method != aesMethod {
				return nil, newError(KindUnsupportedCompression, "parse-central-directory", r.Name, nil)
			}
			r.aes = aesExtra
			r.Method = aesExtra.InnerMethod
		}

		entries = append(entries, e)
		buf = buf[fixedLen+nameLen+extraLen+commentLen:]
	}
	return entries, nil
}

func hasTrailingSlash(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}

func decodeZipText(b []byte, utf8 bool) string {
	if utf8 {
		return string(b)
	}
	return decodeCP437(b)
}
