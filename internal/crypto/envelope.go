package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/briefcase-app/briefcase-server/internal/model"
)

const (
	// KeySize is the AES-256 key size.
	KeySize = 32
	// BlockSize is the AES block size used for the IV and padding.
	BlockSize = aes.BlockSize

	// kdfIterations is the PBKDF2 round count. Derivation is deliberately
	// slow so a single compromised derived key does not make brute-forcing
	// the master key cheap.
	kdfIterations = 100_000

	// minMasterKeyLen is the minimum master key entropy in bytes.
	minMasterKeyLen = 32
)

var (
	// ErrEncryptionFailed wraps any failure while producing an envelope.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrDecryptionFailed wraps any failure while opening an envelope. Bad
	// base64, a malformed IV, invalid padding and a key mismatch all
	// collapse into this one error so the engine cannot be used as a
	// padding oracle.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Envelope is the (ciphertext, IV) pair produced for one document, both
// base64 encoded.
type Envelope struct {
	Ciphertext string
	IV         string
}

// Engine encrypts and decrypts document content with per-document keys
// derived from a master secret. It is stateless: output is a pure function
// of (content, document id, master key) plus the random IV.
type Engine struct {
	masterKey []byte
}

// NewEngine validates the master key and returns an Engine. The master key
// must carry at least 32 bytes of entropy; a missing or short key is a
// configuration error, never a silent no-op.
func NewEngine(masterKey string) (*Engine, error) {
	if len(masterKey) < minMasterKeyLen {
		return nil, model.NewConfigurationError("encryption master key must be at least %d bytes", minMasterKeyLen)
	}
	return &Engine{masterKey: []byte(masterKey)}, nil
}

// DeriveKey derives the document-specific AES-256 key. The document id is
// the KDF salt, so no two documents are ever encrypted under the same
// derived key and compromise of one derived key exposes no other document.
func (e *Engine) DeriveKey(documentID uuid.UUID) []byte {
	return pbkdf2.Key(e.masterKey, []byte(documentID.String()), kdfIterations, KeySize, sha256.New)
}

// Encrypt encrypts content for the given document using AES-256-CBC with
// PKCS#7 padding. A fresh random IV is generated on every call, including
// repeat calls for the same document.
func (e *Engine) Encrypt(content []byte, documentID uuid.UUID) (Envelope, error) {
	block, err := aes.NewCipher(e.DeriveKey(documentID))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	iv := make([]byte, BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	padded := pkcs7Pad(content, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens an envelope for the given document. The same document id
// used at encryption time is required; a mismatched id derives a different
// key and manifests as a padding failure, indistinguishable from any other
// decryption failure.
func (e *Engine) Decrypt(env Envelope, documentID uuid.UUID) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryptionFailed)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid iv encoding", ErrDecryptionFailed)
	}
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: malformed iv", ErrDecryptionFailed)
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: malformed ciphertext", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(e.DeriveKey(documentID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	content, err := pkcs7Unpad(padded, BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return content, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
