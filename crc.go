package zipflow

import "hash/crc32"

// crcAccumulator is a rolling IEEE-802.3 CRC-32 over a sequence of byte
// chunks. Multiple Append calls are equivalent to one Append over the
// concatenation of their arguments, by construction of hash/crc32's
// incremental table update.
type crcAccumulator struct {
	crc uint32
}

// Append folds p into the running checksum.
func (a *crcAccumulator) Append(p []byte) {
	a.crc = crc32.Update(a.crc, crc32.IEEETable, p)
}

// Sum32 returns the finalised checksum of everything appended so far.
func (a *crcAccumulator) Sum32() uint32 { return a.crc }

// Reset clears the accumulator back to its initial state.
func (a *crcAccumulator) Reset() { a.crc = 0 }
