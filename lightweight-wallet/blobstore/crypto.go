// Package blobstore implements the encrypted durable-state collaborator
// (§6): ChaCha20-Poly1305 authenticated encryption with an Argon2id-derived
// key, plus carbonado-style (src/carbonado.rs) chunked compression for
// blobs too large to encrypt as a single AEAD payload. The versioned inner
// envelope comes from rgbstash's own blob codec; this package only adds
// the at-rest encryption layer around it.
package blobstore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// saltString is the fixed Argon2id salt the wallet uses to derive its
// blob-encryption key from the user's passphrase. Fixed rather than
// per-wallet random because the key must be re-derivable from the
// passphrase alone on a fresh device with no prior state to read a salt
// from.
const saltString = "DIBA BitMask Password Hash"

const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	keyLen        = chacha20poly1305.KeySize
)

var ErrCiphertextTooShort = errors.New("blobstore: ciphertext shorter than nonce")

// DeriveKey derives a 32-byte ChaCha20-Poly1305 key from a passphrase
// using Argon2id, matching bitmask-core's key-derivation parameters.
func DeriveKey(passphrase []byte) []byte {
	return argon2.IDKey(passphrase, []byte(saltString), argon2Time, argon2Memory, argon2Threads, keyLen)
}

// Seal encrypts plaintext under key with a fresh random nonce, prepending
// the nonce to the returned ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("blobstore: init aead: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("blobstore: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a ciphertext produced by Seal.
func Open(key, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("blobstore: init aead: %w", err)
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("blobstore: decrypt: %w", err)
	}
	return plaintext, nil
}
