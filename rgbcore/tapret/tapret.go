// Package tapret implements the tapret taproot-commitment primitive: a
// scheme that tweaks a taproot output key to hide an arbitrary 32-byte
// message without revealing it until the output is spent and the tweak is
// disclosed as part of the control block.
package tapret

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

var (
	ErrNoScriptTree       = errors.New("tapret: internal key has no script tree to host a sibling")
	ErrCommitmentTooShort = errors.New("tapret: commitment message must be exactly 32 bytes")
)

// tapretTag is the domain-separation tag written into the tapret leaf
// preimage before the standard BIP341 tweak is applied.
var tapretTag = []byte("tapret")

// Commit derives a tapret-tweaked taproot output key that commits to
// message, given the asset-free internal key and an optional tapscript
// sibling hash (the "MaybeEncodeTapscriptPreimage" step other RGB
// implementations perform when the taproot output already has a script
// path in use).
func Commit(internalKey *btcec.PublicKey, sibling *[32]byte, message [32]byte) (*btcec.PublicKey, error) {
	leaf := tapretLeafHash(sibling, message)

	tweak := chaincode(internalKey, leaf)
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, tweak[:])
	return outputKey, nil
}

// tapretLeafHash computes the commitment preimage: tagged-hash over the
// optional sibling merkle root and the message, so a host with an existing
// tapscript tree still produces a unique, order-independent tweak.
func tapretLeafHash(sibling *[32]byte, message [32]byte) [32]byte {
	h := sha256.New()
	h.Write(tapretTag)
	h.Write(tapretTag)
	if sibling != nil {
		h.Write(sibling[:])
	} else {
		var zero [32]byte
		h.Write(zero[:])
	}
	h.Write(message[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func chaincode(internalKey *btcec.PublicKey, leaf [32]byte) [32]byte {
	h := sha256.New()
	h.Write(internalKey.SerializeCompressed())
	h.Write(leaf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyCommitment recomputes the output key from internalKey/sibling/
// message and reports whether its x coordinate equals that of the given
// output key observed on chain. The acceptor does not call it.
func VerifyCommitment(internalKey, outputKey *btcec.PublicKey, sibling *[32]byte, message [32]byte) (bool, error) {
	want, err := Commit(internalKey, sibling, message)
	if err != nil {
		return false, err
	}
	return want.X().Cmp(outputKey.X()) == 0, nil
}
