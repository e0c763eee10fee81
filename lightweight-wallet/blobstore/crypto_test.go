package blobstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	key := DeriveKey([]byte("correct horse battery staple"))
	plaintext := []byte("rgb consignment bytes")

	ciphertext, err := Seal(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := Open(key, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	t.Parallel()

	ciphertext, err := Seal(DeriveKey([]byte("pass1")), []byte("secret"))
	require.NoError(t, err)

	_, err = Open(DeriveKey([]byte("pass2")), ciphertext)
	require.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	t.Parallel()

	a := DeriveKey([]byte("same passphrase"))
	b := DeriveKey([]byte("same passphrase"))
	require.Equal(t, a, b)

	c := DeriveKey([]byte("different passphrase"))
	require.NotEqual(t, a, c)
}

func TestOpenRejectsShortCiphertext(t *testing.T) {
	t.Parallel()

	_, err := Open(DeriveKey([]byte("x")), []byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrCiphertextTooShort)
}
