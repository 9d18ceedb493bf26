package zipflow

import "encoding/binary"

const (
	zip64ExtraTag  uint16 = 0x0001
	aesExtraTag    uint16 = 0x9901
	aesVendorAE    uint16 = 0x4145 // "AE"
	aesVendorVer2  byte   = 2
	aesStrength256 byte   = 3
)

// Zip64Extra carries the 64-bit values that replace 0xFFFFFFFF sentinels in
// the enclosing header. Only the fields that were actually sentineled carry
// a slot, in the fixed order {uncompressed, compressed, localOffset}.
type Zip64Extra struct {
	UncompressedSize *uint64
	CompressedSize   *uint64
	LocalHeaderOffset *uint64
}

// AESExtra describes a WinZip-AES (tag 0x9901) extra field.
type AESExtra struct {
	VendorVersion  byte // 1 (AE-1) or 2 (AE-2)
	VendorID       uint16
	Strength       byte // must be 3 (AES-256) to be accepted
	InnerMethod    uint16
}

// extraSet is the parsed form of an entry's raw extra-field blob: a
// sequence of (tagU16LE, sizeU16LE, bytes) records, keyed by tag for
// lookup.
type extraSet struct {
	raw   []byte
	byTag map[uint16][]byte
}

func parseExtras(raw []byte) extraSet {
	set := extraSet{raw: raw, byTag: make(map[uint16][]byte)}
	b := raw
	for len(b) >= 4 {
		tag := binary.LittleEndian.Uint16(b[0:2])
		size := binary.LittleEndian.Uint16(b[2:4])
		b = b[4:]
		if int(size) > len(b) {
			break
		}
		set.byTag[tag] = b[:size]
		b = b[size:]
	}
	return set
}

func (s extraSet) Raw(tag uint16) ([]byte, bool) {
	v, ok := s.byTag[tag]
	return v, ok
}

// zip64 parses the ZIP64 extra, consuming only the slots that the sentinel
// fields in the enclosing header call for, in the fixed order
// {uncompressed, compressed, localOffset}. Each of needUncompressed,
// needCompressed, needOffset reflects whether that header field carried
// the 0xFFFFFFFF sentinel.
func (s extraSet) zip64(needUncompressed, needCompressed, needOffset bool) (*Zip64Extra, error) {
	data, ok := s.Raw(zip64ExtraTag)
	if !ok {
		if needUncompressed || needCompressed || needOffset {
			return nil, newError(KindBadFormat, "parse-zip64-extra", "", nil)
		}
		return nil, nil
	}
	out := &Zip64Extra{}
	take := func(need bool) (*uint64, error) {
		if !need {
			return nil, nil
		}
		if len(data) < 8 {
			return nil, newError(KindBadFormat, "parse-zip64-extra", "", nil)
		}
		v := binary.LittleEndian.Uint64(data[:8])
		data = data[8:]
		return &v, nil
	}
	var err error
	if out.UncompressedSize, err = take(needUncompressed); err != nil {
		return nil, err
	}
	if out.CompressedSize, err = take(needCompressed); err != nil {
		return nil, err
	}
	if out.LocalHeaderOffset, err = take(needOffset); err != nil {
		return nil, err
	}
	return out, nil
}

// winZipAES parses the WinZip-AES extra (tag 0x9901) if present.
func (s extraSet) winZipAES() (*AESExtra, error) {
	data, ok := s.Raw(aesExtraTag)
	if !ok {
		return nil, nil
	}
	if len(data) < 7 {
		return nil, newError(KindBadFormat, "parse-aes-extra", "", nil)
	}
	a := &AESExtra{
		VendorVersion: byte(binary.LittleEndian.Uint16(data[0:2])),
		VendorID:      binary.LittleEndian.Uint16(data[2:4]),
		Strength:      data[4],
		InnerMethod:   binary.LittleEndian.Uint16(data[5:7]),
	}
	if a.Strength != aesStrength256 {
		return nil, newError(KindUnsupportedEncryption, "parse-aes-extra", "", nil)
	}
	return a, nil
}

// encodeZip64Extra lays out a ZIP64 extra with exactly the slots in vals,
// in {uncompressed, compressed, localOffset} order. Omitting the entire
// LocalHeaderOffset slot is used in the local-header copy (offset isn't
// known there); the central-directory copy always supplies all three that
// are sentineled.
func encodeZip64Extra(uncompressed, compressed, offset *uint64) []byte {
	size := 0
	for _, v := range []*uint64{uncompressed, compressed, offset} {
		if v != nil {
			size += 8
		}
	}
	buf := make([]byte, 4+size)
	binary.LittleEndian.PutUint16(buf[0:2], zip64ExtraTag)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(size))
	b := buf[4:]
	for _, v := range []*uint64{uncompressed, compressed, offset} {
		if v != nil {
			binary.LittleEndian.PutUint64(b[:8], *v)
			b = b[8:]
		}
	}
	return buf
}

// encodeAESExtra lays out an 11-byte WinZip-AES extra field: vendor="AE",
// version=2, strength=3, inner method.
func encodeAESExtra(innerMethod uint16) []byte {
	buf := make([]byte, 4+7)
	binary.LittleEndian.PutUint16(buf[0:2], aesExtraTag)
	binary.LittleEndian.PutUint16(buf[2:4], 7)
	data := buf[4:]
	binary.LittleEndian.PutUint16(data[0:2], uint16(aesVendorVer2))
	binary.LittleEndian.PutUint16(data[2:4], aesVendorAE)
	data[4] = aesStrength256
	binary.LittleEndian.PutUint16(data[5:7], innerMethod)
	return buf
}
