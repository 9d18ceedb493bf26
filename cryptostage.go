package zipflow

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"hash"

	"golang.org/x/crypto/pbkdf2"
)

// WinZip-AES (AE-2) framing constants for AES-256, the only strength this
// package accepts.
const (
	aesSaltLen      = 16
	aesKeyLen       = 32
	aesPwdVerifyLen = 2
	aesMACLen       = 10 // HMAC-SHA1 truncated to 80 bits, per the AE spec
	pbkdf2Iterations = 1000
)

// deriveAESKeys runs PBKDF2-HMAC-SHA1 over password and salt, producing the
// encryption key, the MAC key, and the 2-byte password-verification value,
// exactly as WinZip's AE-2 scheme requires. golang.org/x/crypto/pbkdf2 is
// used instead of hand-rolling the KDF; see DESIGN.md.
func deriveAESKeys(password string, salt []byte) (encKey, macKey, pwdVerify []byte) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 2*aesKeyLen+aesPwdVerifyLen, sha1.New)
	return derived[:aesKeyLen], derived[aesKeyLen : 2*aesKeyLen], derived[2*aesKeyLen:]
}

// aesEncryptStage implements cryptoStage for the write path: it prepends
// the random salt and password-verification value to the first output
// window, CTR-encrypts the plaintext, keeps a running HMAC over the
// ciphertext, and appends the truncated tag on flush.
type aesEncryptStage struct {
	password    string
	wroteHeader bool
	stream      cipher.Stream
	mac         hash.Hash
}

func newAESEncryptStage(password string) (cryptoStage, error) {
	return &aesEncryptStage{password: password}, nil
}

func (s *aesEncryptStage) ensureHeader() ([]byte, error) {
	if s.wroteHeader {
		return nil, nil
	}
	salt := make([]byte, aesSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	encKey, macKey, pwdVerify := deriveAESKeys(s.password, salt)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	s.stream = cipher.NewCTR(block, make([]byte, aes.BlockSize))
	s.mac = hmac.New(sha1.New, macKey)
	s.wroteHeader = true

	out := make([]byte, 0, aesSaltLen+aesPwdVerifyLen)
	out = append(out, salt...)
	out = append(out, pwdVerify...)
	return out, nil
}

func (s *aesEncryptStage) append(p []byte) ([]byte, error) {
	header, err := s.ensureHeader()
	if err != nil {
		return nil, err
	}
	cipherText := make([]byte, len(p))
	s.stream.XORKeyStream(cipherText, p)
	s.mac.Write(cipherText)
	return append(header, cipherText...), nil
}

func (s *aesEncryptStage) flush() ([]byte, error) {
	header, err := s.ensureHeader()
	if err != nil {
		return nil, err
	}
	tag := s.mac.Sum(nil)[:aesMACLen]
	return append(header, tag...), nil
}

// aesDecryptStage implements cryptoStage for the read path. It is
// constructed with the exact total length of the framed stream it will be
// fed (salt + password-verification + ciphertext + tag), so it can always
// hold back the trailing aesMACLen bytes without knowing in advance how
// many append() calls there will be.
type aesDecryptStage struct {
	password  string
	totalLen  int64
	fed       int64
	buf       bytes.Buffer
	header    bool
	stream    cipher.Stream
	mac       hash.Hash
}

func newAESDecryptStage(password string, totalLen int64) (cryptoStage, error) {
	return &aesDecryptStage{password: password, totalLen: totalLen}, nil
}

func (s *aesDecryptStage) append(p []byte) ([]byte, error) {
	s.buf.Write(p)
	s.fed += int64(len(p))

	remainingUnfed := s.totalLen - s.fed
	holdBack := int64(aesMACLen) - remainingUnfed
	if holdBack < 0 {
		holdBack = 0
	}

	if !s.header {
		need := aesSaltLen + aesPwdVerifyLen
		available := s.buf.Len() - int(holdBack)
		if available < need {
			return nil, nil
		}
		header := make([]byte, need)
		if _, err := s.buf.Read(header); err != nil {
			return nil, err
		}
		salt := header[:aesSaltLen]
		encKey, macKey, _ := deriveAESKeys(s.password, salt)
		block, err := aes.NewCipher(encKey)
		if err != nil {
			return nil, err
		}
		s.stream = cipher.NewCTR(block, make([]byte, aes.BlockSize))
		s.mac = hmac.New(sha1.New, macKey)
		s.header = true
	}

	available := s.buf.Len() - int(holdBack)
	if available <= 0 {
		return nil, nil
	}
	cipherText := make([]byte, available)
	if _, err := s.buf.Read(cipherText); err != nil {
		return nil, err
	}
	s.mac.Write(cipherText)
	plainText := make([]byte, len(cipherText))
	s.stream.XORKeyStream(plainText, cipherText)
	return plainText, nil
}

func (s *aesDecryptStage) flush() ([]byte, error) {
	tag := s.buf.Bytes()
	if len(tag) != aesMACLen || s.mac == nil {
		return nil, newError(KindInvalidSignature, "aes-flush", "", nil)
	}
	computed := s.mac.Sum(nil)[:aesMACLen]
	if !hmac.Equal(tag, computed) {
		return nil, newError(KindInvalidSignature, "aes-flush", "", nil)
	}
	return nil, nil
}
