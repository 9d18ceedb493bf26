package zipflow

// Direction selects which way a Stage threads data: Inflate for reading an
// entry's payload back to plaintext, Deflate for writing plaintext out as
// an entry's payload.
type Direction int

const (
	Inflate Direction = iota
	Deflate
)

// StagePolicy configures the codec chain a Stage assembles for one entry.
type StagePolicy struct {
	Compressed bool
	Signed     bool
	Encrypted  bool
	Password   string

	// ExpectedCRC is verified against the accumulated CRC on Flush when
	// Direction is Inflate, Signed is true and Encrypted is false.
	ExpectedCRC uint32

	// Level is the DEFLATE compression level (0 = default). Ignored unless
	// Compressed is true and Direction is Deflate.
	Level int
}

// codecStage is a stateful, streaming compressor/decompressor with an
// append/flush contract. Concrete implementations live in deflatestage.go.
type codecStage interface {
	append(p []byte) ([]byte, error)
	flush() ([]byte, error)
}

// cryptoStage is the external collaborator providing AES-CTR encryption and
// HMAC-SHA1 authentication for WinZip-AES entries. Concrete implementation
// lives in cryptostage.go.
type cryptoStage interface {
	append(p []byte) ([]byte, error)
	// flush finalises the stream. For decryption, it validates the stored
	// HMAC tag and returns ErrInvalidSignature on mismatch.
	flush() ([]byte, error)
}

// Stage is the pipeline assembler's public interface: append a window of
// input and receive a window of output ready for the sink, then flush to
// finalise and obtain (or verify) the CRC-32 signature.
type Stage interface {
	Append(p []byte) ([]byte, error)
	Flush() (tail []byte, signature uint32, err error)
}

// newStage builds the fixed-order codec chain for dir and policy.
// codecFactory and cryptoFactory let callers swap in
// worker-dispatched implementations (internal/workerpool) without this
// file knowing about the pool.
func newStage(dir Direction, policy StagePolicy, codecFactory func() (codecStage, error), cryptoFactory func() (cryptoStage, error)) (Stage, error) {
	var (
		codec  codecStage
		crypto cryptoStage
		err    error
	)
	if policy.Compressed {
		if codec, err = codecFactory(); err != nil {
			return nil, err
		}
	}
	if policy.Encrypted {
		if crypto, err = cryptoFactory(); err != nil {
			return nil, err
		}
	}

	crc := &crcAccumulator{}
	// CRC is computed over plaintext only when the entry is signed and NOT
	// encrypted; AES entries are authenticated by their own HMAC instead,
	// and their stored CRC is zero.
	trackCRC := policy.Signed && !policy.Encrypted

	return &pipelineStage{
		dir:      dir,
		policy:   policy,
		codec:    codec,
		crypto:   crypto,
		crc:      crc,
		trackCRC: trackCRC,
	}, nil
}

type pipelineStage struct {
	dir      Direction
	policy   StagePolicy
	codec    codecStage
	crypto   cryptoStage
	crc      *crcAccumulator
	trackCRC bool
	done     bool
}

func (s *pipelineStage) Append(p []byte) ([]byte, error) {
	if s.done {
		return nil, newError(KindInvalidSignature, "stage-append", "", errStagePoisoned)
	}
	if s.dir == Inflate {
		return s.appendInflate(p)
	}
	return s.appendDeflate(p)
}

func (s *pipelineStage) appendInflate(p []byte) ([]byte, error) {
	out := p
	var err error
	if s.crypto != nil {
		if out, err = s.crypto.append(out); err != nil {
			s.done = true
			return nil, err
		}
	}
	if s.codec != nil {
		if out, err = s.codec.append(out); err != nil {
			s.done = true
			return nil, err
		}
	}
	if s.trackCRC {
		s.crc.Append(out)
	}
	return out, nil
}

func (s *pipelineStage) appendDeflate(p []byte) ([]byte, error) {
	if s.trackCRC {
		s.crc.Append(p)
	}
	out := p
	var err error
	if s.codec != nil {
		if out, err = s.codec.append(out); err != nil {
			s.done = true
			return nil, err
		}
	}
	if s.crypto != nil {
		if out, err = s.crypto.append(out); err != nil {
			s.done = true
			return nil, err
		}
	}
	return out, nil
}

func (s *pipelineStage) Flush() ([]byte, uint32, error) {
	if s.done {
		return nil, 0, newError(KindInvalidSignature, "stage-flush", "", errStagePoisoned)
	}
	s.done = true

	if s.dir == Inflate {
		return s.flushInflate()
	}
	return s.flushDeflate()
}

func (s *pipelineStage) flushInflate() ([]byte, uint32, error) {
	var tail []byte
	if s.crypto != nil {
		t, err := s.crypto.flush()
		if err != nil {
			return nil, 0, newError(KindInvalidSignature, "stage-flush", "", err)
		}
		tail = t
	}
	if s.codec != nil {
		t, err := s.codec.flush()
		if err != nil {
			return nil, 0, err
		}
		tail = append(tail, t...)
	}
	if s.trackCRC {
		s.crc.Append(tail)
	}
	sig := s.crc.Sum32()
	if s.trackCRC && sig != s.policy.ExpectedCRC {
		return nil, sig, newError(KindInvalidSignature, "stage-flush", "", nil)
	}
	return tail, sig, nil
}

func (s *pipelineStage) flushDeflate() ([]byte, uint32, error) {
	sig := s.crc.Sum32()
	var out []byte
	if s.codec != nil {
		t, err := s.codec.flush()
		if err != nil {
			return nil, 0, err
		}
		out = t
	}
	if s.crypto != nil {
		if len(out) > 0 {
			enc, err := s.crypto.append(out)
			if err != nil {
				return nil, 0, err
			}
			out = enc
		}
		t, err := s.crypto.flush()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t...)
	}
	return out, sig, nil
}

var errStagePoisoned = newError(KindInvalidSignature, "stage", "", nil)
