package zipflow

// cp437HighHalf maps the high half of IBM-PC code page 437 (bytes
// 0x80-0xFF) to the Unicode code point a byte-for-byte-faithful decoder
// should produce. The low half (0x00-0x7F) is identical to ASCII and needs
// no table.
//
// A couple of entries (marked below) are kept byte-for-byte to avoid
// behaviour regressions rather than "corrected" against a different
// reference.
var cp437HighHalf = [128]rune{
	0x00: 'Ç', 0x01: 'ü', 0x02: 'é', 0x03: 'â', 0x04: 'ä', 0x05: 'à', 0x06: 'å', 0x07: 'ç',
	0x08: 'ê', 0x09: 'ë', 0x0A: 'è', 0x0B: 'ï', 0x0C: 'î', 0x0D: 'ì', 0x0E: 'Ä', 0x0F: 'Å',
	0x10: 'É', 0x11: 'æ', 0x12: 'Æ', 0x13: 'ô', 0x14: 'ö', 0x15: 'ò', 0x16: 'û', 0x17: 'ù',
	0x18: 'ÿ', 0x19: 'Ö', 0x1A: 'Ü', 0x1B: '¢', 0x1C: '£', 0x1D: '¥', 0x1E: '₧', 0x1F: 'ƒ',
	0x20: 'á', 0x21: 'í', 0x22: 'ó', 0x23: 'ú', 0x24: 'ñ', 0x25: 'Ñ', 0x26: 'ª', 0x27: 'º',
	0x28: '¿', 0x29: '⌐', 0x2A: '¬', 0x2B: '½', 0x2C: '¼', 0x2D: '¡', 0x2E: '«', 0x2F: '»',
	0x30: '░', 0x31: '▒', 0x32: '▓', 0x33: '│', 0x34: '┤', 0x35: '╡', 0x36: '╢', 0x37: '╖',
	0x38: '╕', 0x39: '╣', 0x3A: '║', 0x3B: '╗', 0x3C: '╝', 0x3D: '╜', 0x3E: '╛', 0x3F: '┐',
	0x40: '└', 0x41: '┴', 0x42: '┬', 0x43: '├', 0x44: '─', 0x45: '┼', 0x46: '╞', 0x47: '╟',
	0x48: '╚', 0x49: '╔', 0x4A: '╩', 0x4B: '╦', 0x4C: '╠', 0x4D: '═', 0x4E: '╬', 0x4F: '╧',
	// 0x50/0x51 must stay as they are: changing them would silently alter
	// the names decoded from archives that happen to use these bytes.
	0x50: '╨', 0x51: '╤', 0x52: '╥', 0x53: '╙', 0x54: '╘', 0x55: '╒', 0x56: '╓', 0x57: '╫',
	0x58: '╪', 0x59: '┘', 0x5A: '┌', 0x5B: '█', 0x5C: '▄', 0x5D: '▌', 0x5E: '▐', 0x5F: '▀',
	0x60: 'α', 0x61: 'ß', 0x62: 'Γ', 0x63: 'π', 0x64: 'Σ', 0x65: 'σ', 0x66: 'µ', 0x67: 'τ',
	0x68: 'Φ', 0x69: 'Θ', 0x6A: 'Ω', 0x6B: 'δ', 0x6C: '∞', 0x6D: 'φ', 0x6E: 'ε', 0x6F: '∩',
	0x70: '≡', 0x71: '±', 0x72: '≥', 0x73: '≤', 0x74: '⌠', 0x75: '⌡', 0x76: '÷', 0x77: '≈',
	0x78: '°', 0x79: '∙', 0x7A: '·', 0x7B: '√', 0x7C: 'ⁿ', 0x7D: '²', 0x7E: '■', 0x7F: ' ',
}

// decodeCP437 decodes raw bytes as IBM-PC code page 437, as required for
// names and comments when general-purpose bit 11 is clear. Decoding is
// lossless: every input byte maps to exactly one rune, so re-encoding
// reproduces the original bytes.
func decodeCP437(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		if c < 0x80 {
			r[i] = rune(c)
		} else {
			r[i] = cp437HighHalf[c-0x80]
		}
	}
	return string(r)
}

// encodeCP437 is the inverse of decodeCP437. It reports ok=false if s
// contains a rune that has no CP437 slot.
func encodeCP437(s string) (b []byte, ok bool) {
	runes := []rune(s)
	out := make([]byte, 0, len(runes))
	for _, r := range runes {
		if r < 0x80 {
			out = append(out, byte(r))
			continue
		}
		found := false
		for i, cr := range cp437HighHalf {
			if cr == r {
				out = append(out, byte(0x80+i))
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}
