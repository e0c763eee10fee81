// Package lnpbp4 implements a simplified LNPBP4 multi-protocol commitment
// tree: a fixed-depth Merkle structure that lets one Bitcoin output anchor
// one leaf per contract. It is deliberately narrower than a general sparse
// Merkle key-value store: RGB only needs one leaf per contract per
// anchored transaction, so a fixed-depth binary tree keyed by a
// protocol-id slot suffices.
package lnpbp4

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sort"

	"github.com/rgb-wg/rgb-wallet/rgbcore"
)

// TreeDepth bounds the number of protocol slots; width = 2^TreeDepth.
const TreeDepth = 8

var ErrNoFreeSlot = errors.New("lnpbp4: no free slot for protocol id after bounded probing")

// Leaf is one (contractId, bundleId) commitment entry.
type Leaf struct {
	ProtocolId rgbcore.ContractId
	Message    [32]byte
}

// MultiCommitment is the LNPBP4 Merkle tree built over a set of leaves.
type MultiCommitment struct {
	leaves map[uint32]Leaf
}

func New() *MultiCommitment {
	return &MultiCommitment{leaves: make(map[uint32]Leaf)}
}

// slot deterministically maps a protocol id to a tree position by probing
// linearly from its low bits, the same collision strategy LNPBP4 itself
// uses to keep commitments reproducible from the protocol id alone.
func (m *MultiCommitment) slot(id rgbcore.ContractId) (uint32, error) {
	width := uint32(1) << TreeDepth
	start := binary.BigEndian.Uint32(id[:4]) % width
	for i := uint32(0); i < width; i++ {
		pos := (start + i) % width
		if existing, ok := m.leaves[pos]; !ok || existing.ProtocolId == id {
			return pos, nil
		}
	}
	return 0, ErrNoFreeSlot
}

// Insert adds or replaces a leaf for the given contract id.
func (m *MultiCommitment) Insert(id rgbcore.ContractId, message [32]byte) error {
	pos, err := m.slot(id)
	if err != nil {
		return err
	}
	m.leaves[pos] = Leaf{ProtocolId: id, Message: message}
	return nil
}

// Root computes the commitment root: a single sha256 over an "LNPBP4"
// prefix and every occupied slot in index order, each slot written with
// its position so an empty tree and a tree with only slot-0 occupied
// never collide.
func (m *MultiCommitment) Root() [32]byte {
	positions := make([]uint32, 0, len(m.leaves))
	for pos := range m.leaves {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	h := sha256.New()
	h.Write([]byte("LNPBP4"))
	var buf [4]byte
	for _, pos := range positions {
		leaf := m.leaves[pos]
		binary.BigEndian.PutUint32(buf[:], pos)
		h.Write(buf[:])
		h.Write(leaf.ProtocolId[:])
		h.Write(leaf.Message[:])
	}
	var root [32]byte
	copy(root[:], h.Sum(nil))
	return root
}

// Proof returns the ordered leaf list used to recompute the root, the
// minimal data an anchor-fidelity check needs to reproduce Root()
// independently.
func (m *MultiCommitment) Proof() []Leaf {
	positions := make([]uint32, 0, len(m.leaves))
	for pos := range m.leaves {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })

	out := make([]Leaf, 0, len(positions))
	for _, pos := range positions {
		out = append(out, m.leaves[pos])
	}
	return out
}

// RootFromLeaves recomputes a root independently from a leaf set, used by
// the acceptor to verify an anchor without needing the original tree.
func RootFromLeaves(leaves []Leaf) [32]byte {
	t := New()
	for _, l := range leaves {
		// Best effort re-insertion; collisions are vanishingly unlikely
		// given TreeDepth and a well-formed consignment, and Insert
		// replaces the message when the slot is already held by the
		// same id.
		_ = t.Insert(l.ProtocolId, l.Message)
	}
	return t.Root()
}
