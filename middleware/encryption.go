package middleware

import (
	pk "github.com/pipelinekit/pipelinekit"
)

// Encryptor is the encryption integration contract. Concrete cryptographic
// implementations (AES-GCM, ChaCha20-Poly1305, envelope encryption against a
// KMS) are explicitly out of scope for this module; callers supply one.
// Encrypt must use fresh randomness per call so that encrypting identical
// plaintext twice yields different ciphertext.
type Encryptor interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}

// EncryptionMiddleware encrypts the handler's result as a post-processing
// step. Its priority places it immediately after PriorityPostProcessing, so
// when CompressionMiddleware is also installed encryption runs inside it:
// the result is encrypted first and the ciphertext is then compressed.
type EncryptionMiddleware[C pk.Command, R ~[]byte] struct {
	enc Encryptor
}

// NewEncryptionMiddleware wraps enc as post-processing middleware.
func NewEncryptionMiddleware[C pk.Command, R ~[]byte](enc Encryptor) *EncryptionMiddleware[C, R] {
	return &EncryptionMiddleware[C, R]{enc: enc}
}

// Priority implements pk.Middleware.
func (m *EncryptionMiddleware[C, R]) Priority() int { return pk.After(pk.PriorityPostProcessing) }

// Name implements pk.Name.
func (m *EncryptionMiddleware[C, R]) Name() string { return "encryption" }

// Execute implements pk.Middleware.
func (m *EncryptionMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	result, err := next(ctx, cmd)
	if err != nil {
		return result, err
	}
	ciphertext, eerr := m.enc.Encrypt(result)
	if eerr != nil {
		return result, pk.NewError(pk.KindEncryption, ErrEncryption, "encryption")
	}
	ctx.SetAnnotation("encryption", "applied")
	return R(ciphertext), nil
}

// DecryptionMiddleware reverses EncryptionMiddleware, applied as
// pre-processing before the handler sees an encrypted command payload.
type DecryptionMiddleware[C ~[]byte, R any] struct {
	enc Encryptor
}

// NewDecryptionMiddleware wraps enc as pre-processing middleware.
func NewDecryptionMiddleware[C ~[]byte, R any](enc Encryptor) *DecryptionMiddleware[C, R] {
	return &DecryptionMiddleware[C, R]{enc: enc}
}

// Priority implements pk.Middleware.
func (m *DecryptionMiddleware[C, R]) Priority() int { return pk.PriorityPreProcessing }

// Name implements pk.Name.
func (m *DecryptionMiddleware[C, R]) Name() string { return "decryption" }

// Execute implements pk.Middleware.
func (m *DecryptionMiddleware[C, R]) Execute(ctx *pk.Context, cmd C, next pk.Next[C, R]) (R, error) {
	var zero R
	plaintext, err := m.enc.Decrypt(cmd)
	if err != nil {
		return zero, pk.NewError(pk.KindDecryption, ErrDecryption, "decryption")
	}
	return next(ctx, C(plaintext))
}
