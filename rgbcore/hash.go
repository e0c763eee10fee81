package rgbcore

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// hasher returns a fresh content hasher keyed the way the rest of the core
// expects OpId/ContractId derivations to be: a plain blake3 hash, grounded
// on the same primitive bitmask-core's swap module uses to derive its
// offer/bid identifiers (src/rgb/swap.rs).
func hasher() *blake3.Hasher {
	return blake3.New(32, nil)
}

// GenesisOpId derives the content-hash OpId of a genesis.
func GenesisOpId(g Genesis) OpId {
	h := hasher()
	h.Write(g.SchemaId[:])
	h.Write([]byte(g.Ticker))
	h.Write([]byte(g.Name))
	h.Write([]byte{g.Precision})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], g.Supply)
	h.Write(buf[:])
	for _, out := range g.InitialOut {
		writeOutput(h, out)
	}
	var id OpId
	copy(id[:], h.Sum(nil))
	return id
}

// ContractIdFromGenesis derives the stable ContractId from a genesis; by
// protocol convention this equals the genesis's own OpId.
func ContractIdFromGenesis(g Genesis) ContractId {
	return ContractId(GenesisOpId(g))
}

// TransitionOpId derives the content-hash OpId of a transition.
func TransitionOpId(t Transition) OpId {
	h := hasher()
	h.Write(t.ContractId[:])
	h.Write([]byte(t.TypeName))
	for _, in := range t.Inputs {
		h.Write(in.PrevId[:])
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], in.OutputIndex)
		h.Write(buf[:])
		binary.BigEndian.PutUint16(buf[:2], uint16(in.Type))
		h.Write(buf[:2])
	}
	for _, out := range t.Outputs {
		writeOutput(h, out)
	}
	h.Write(t.Supplement)
	var id OpId
	copy(id[:], h.Sum(nil))
	return id
}

func writeOutput(h *blake3.Hasher, out TransitionOutput) {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[:2], uint16(out.Type))
	h.Write(buf[:2])
	h.Write([]byte(out.Seal.String()))
	h.Write([]byte{byte(out.State.Kind)})
	binary.BigEndian.PutUint64(buf[:], out.State.Amount)
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:4], out.State.TokenIndex)
	h.Write(buf[:4])
}
