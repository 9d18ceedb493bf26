package zipflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

func TestParseExtras_MultipleRecords(t *testing.T) {
	raw := append(encodeZip64Extra(u64(10), u64(20), nil), encodeAESExtra(Deflate)...)
	set := parseExtras(raw)

	zip64Data, ok := set.Raw(zip64ExtraTag)
	require.True(t, ok)
	require.Len(t, zip64Data, 16)

	aesData, ok := set.Raw(aesExtraTag)
	require.True(t, ok)
	require.Len(t, aesData, 7)
}

func TestExtraSet_Zip64RoundTrip(t *testing.T) {
	raw := encodeZip64Extra(u64(0xFFFFFFFF00), u64(0x200000000), u64(0x300000000))
	set := parseExtras(raw)

	got, err := set.zip64(true, true, true)
	require.NoError(t, err)
	require.Equal(t, uint64(0xFFFFFFFF00), *got.UncompressedSize)
	require.Equal(t, uint64(0x200000000), *got.CompressedSize)
	require.Equal(t, uint64(0x300000000), *got.LocalHeaderOffset)
}

func TestExtraSet_Zip64PartialSlots(t *testing.T) {
	// Only the uncompressed-size slot is sentineled; the extra field
	// carries exactly one 8-byte value.
	raw := encodeZip64Extra(u64(123), nil, nil)
	set := parseExtras(raw)

	got, err := set.zip64(true, false, false)
	require.NoError(t, err)
	require.Equal(t, uint64(123), *got.UncompressedSize)
	require.Nil(t, got.CompressedSize)
	require.Nil(t, got.LocalHeaderOffset)
}

func TestExtraSet_Zip64MissingExtraButSentineled(t *testing.T) {
	set := parseExtras(nil)
	_, err := set.zip64(true, false, false)
	require.Error(t, err)

	got, err := set.zip64(false, false, false)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestExtraSet_WinZipAESRoundTrip(t *testing.T) {
	raw := encodeAESExtra(Deflate)
	set := parseExtras(raw)

	aes, err := set.winZipAES()
	require.NoError(t, err)
	require.NotNil(t, aes)
	require.Equal(t, byte(2), aes.VendorVersion)
	require.Equal(t, byte(3), aes.Strength)
	require.Equal(t, Deflate, aes.InnerMethod)
}

func TestExtraSet_WinZipAESRejectsWeakStrength(t *testing.T) {
	raw := encodeAESExtra(Store)
	// Corrupt the strength byte (offset 4 within the 7-byte payload, so
	// byte 8 of the full record) to a value other than 3 (AES-256).
	raw[8] = 1

	set := parseExtras(raw)
	_, err := set.winZipAES()
	require.Error(t, err)
}

func TestExtraSet_WinZipAESAbsent(t *testing.T) {
	set := parseExtras(nil)
	aes, err := set.winZipAES()
	require.NoError(t, err)
	require.Nil(t, aes)
}
