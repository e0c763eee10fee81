package blobstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the blob store's configuration.
type Config struct {
	// Dir is the directory blobs are written under.
	Dir string

	// Passphrase derives the at-rest encryption key via Argon2id.
	Passphrase []byte
}

func DefaultConfig() *Config {
	return &Config{Dir: ".rgb-wallet/blobs"}
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return errEmptyDir
	}
	if len(c.Passphrase) == 0 {
		return errEmptyPassphrase
	}
	return nil
}

// Store is a filesystem-backed encrypted blob store: the durable side of
// rgbstash's ConsumeBundle/ConsumeAnchor writes when a wallet chooses to
// keep consignments and media outside its SQLite database.
type Store struct {
	cfg *Config
	key []byte
}

func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("blobstore: create directory: %w", err)
	}

	return &Store{cfg: cfg, key: DeriveKey(cfg.Passphrase)}, nil
}

// Put encrypts and chunk-encodes plaintext, writing it under name.
func (s *Store) Put(name string, plaintext []byte) error {
	encoded, err := EncodeChunks(s.key, plaintext)
	if err != nil {
		return fmt.Errorf("blobstore: encode %q: %w", name, err)
	}
	return os.WriteFile(s.path(name), encoded, 0600)
}

// Get reads and decrypts the blob stored under name.
func (s *Store) Get(name string) ([]byte, error) {
	encoded, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %q: %w", name, err)
	}
	plaintext, err := DecodeChunks(s.key, encoded)
	if err != nil {
		return nil, fmt.Errorf("blobstore: decode %q: %w", name, err)
	}
	return plaintext, nil
}

// Delete removes a stored blob.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blobstore: delete %q: %w", name, err)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.cfg.Dir, name+".blob")
}
