package rgbcore

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Bundle is a set of transitions closed under the same witness transaction.
// Revealed transitions are the ones this holder knows in full; Concealed
// entries preserve privacy for transitions the holder only knows about by
// their opid and input fingerprints.
type Bundle struct {
	ContractId ContractId
	Revealed   map[OpId]Transition
	Concealed  map[OpId][]TransitionInput
}

func NewBundle(contractId ContractId) *Bundle {
	return &Bundle{
		ContractId: contractId,
		Revealed:   make(map[OpId]Transition),
		Concealed:  make(map[OpId][]TransitionInput),
	}
}

// BundleId is the content hash over every revealed and concealed member,
// the leaf value committed into the LNPBP4 tree by the anchor.
func (b *Bundle) BundleId() OpId {
	h := hasher()
	h.Write(b.ContractId[:])
	for id, t := range b.Revealed {
		h.Write(id[:])
		opid := TransitionOpId(t)
		h.Write(opid[:])
	}
	for id, inputs := range b.Concealed {
		h.Write(id[:])
		for _, in := range inputs {
			h.Write(in.PrevId[:])
		}
	}
	var id OpId
	copy(id[:], h.Sum(nil))
	return id
}

// Conceal moves a revealed transition into the concealed set, retaining
// only its opid and input fingerprints.
func (b *Bundle) Conceal(opid OpId) {
	t, ok := b.Revealed[opid]
	if !ok {
		return
	}
	b.Concealed[opid] = t.Inputs
	delete(b.Revealed, opid)
}

// Anchor is the proof linking a Bitcoin transaction id to a transition
// bundle: an LNPBP4 multi-protocol commitment whose root is tweaked into
// one taproot output of that transaction.
type Anchor struct {
	Txid chainhash.Hash

	// MerkleRoot is the LNPBP4 multi-protocol commitment root over every
	// (contract id, bundle id) leaf anchored by this transaction.
	MerkleRoot [32]byte

	// VoutHost is the output index carrying the tapret commitment.
	VoutHost uint32

	// BundleIds maps every contractId committed by this anchor to its
	// bundleId; as a map it keeps no insertion order.
	BundleIds map[ContractId]OpId
}

func NewAnchor(txid chainhash.Hash, voutHost uint32) *Anchor {
	return &Anchor{
		Txid:      txid,
		VoutHost:  voutHost,
		BundleIds: make(map[ContractId]OpId),
	}
}
