// Package rgbpsbt implements the PSBT Constructor (C4): building a
// Bitcoin PSBT from chosen inputs and outputs under a taproot descriptor,
// embedding RGB proprietary keys, and enforcing a unique tapret-host
// output. Proprietary key subtypes start at 0x70 to avoid colliding with
// BIP-174 standard key types.
package rgbpsbt

import "github.com/btcsuite/btcd/btcutil/psbt"

// ProprietaryIdentifier is the vendor prefix placed on every RGB
// proprietary key.
var ProprietaryIdentifier = []byte("RGB")

// Proprietary key subtypes.
const (
	// PsbtOutTapretHost marks an output as the tapret commitment host.
	PsbtOutTapretHost uint8 = 0x70

	// PsbtOutTapretCommitment holds the LNPBP4 multi-protocol commitment
	// root tweaked into the host output.
	PsbtOutTapretCommitment uint8 = 0x71

	// PsbtInConsumer links an input to the (contractId, opid) transition
	// that consumes it.
	PsbtInConsumer uint8 = 0x72

	// PsbtGlobalTransition carries one transition's serialized bytes,
	// keyed by contract id in the key data.
	PsbtGlobalTransition uint8 = 0x73
)

func proprietaryKey(subtype uint8, keyData []byte) psbt.ProprietaryKey {
	return psbt.ProprietaryKey{
		Identifier: ProprietaryIdentifier,
		Subtype:    subtype,
		Key:        keyData,
	}
}

// MarkTapretHost adds the PSBT_OUT_TAPRET_HOST proprietary key to output
// index `vout` of packet, marking it as the tapret commitment host.
func MarkTapretHost(p *psbt.Packet, vout int) {
	out := &p.Outputs[vout]
	out.Unknowns = append(out.Unknowns, &psbt.Unknown{
		Key:   encodeProprietaryKey(proprietaryKey(PsbtOutTapretHost, nil)),
		Value: []byte{1},
	})
}

// IsTapretHost reports whether output `vout` carries the tapret-host
// marker.
func IsTapretHost(p *psbt.Packet, vout int) bool {
	for _, u := range p.Outputs[vout].Unknowns {
		if matchesKey(u.Key, PsbtOutTapretHost) {
			return true
		}
	}
	return false
}

// SetTapretCommitment stamps the LNPBP4 merkle root onto the tapret-host
// output as PSBT_OUT_TAPRET_COMMITMENT.
func SetTapretCommitment(p *psbt.Packet, vout int, root [32]byte) {
	out := &p.Outputs[vout]
	out.Unknowns = append(out.Unknowns, &psbt.Unknown{
		Key:   encodeProprietaryKey(proprietaryKey(PsbtOutTapretCommitment, nil)),
		Value: root[:],
	})
}

// TapretCommitment reads back a previously-set commitment root, if any.
func TapretCommitment(p *psbt.Packet, vout int) ([32]byte, bool) {
	for _, u := range p.Outputs[vout].Unknowns {
		if matchesKey(u.Key, PsbtOutTapretCommitment) && len(u.Value) == 32 {
			var root [32]byte
			copy(root[:], u.Value)
			return root, true
		}
	}
	return [32]byte{}, false
}

// SetConsumer marks input `vin` as consumed by the transition identified
// by (contractId, opid): RGB_IN_CONSUMER(contract_id, opid).
func SetConsumer(p *psbt.Packet, vin int, contractID, opid [32]byte) {
	keyData := append(append([]byte{}, contractID[:]...), opid[:]...)
	in := &p.Inputs[vin]
	in.Unknowns = append(in.Unknowns, &psbt.Unknown{
		Key:   encodeProprietaryKey(proprietaryKey(PsbtInConsumer, keyData)),
		Value: []byte{1},
	})
}

// Consumers returns every (contractId, opid) pair marking input `vin`.
func Consumers(p *psbt.Packet, vin int) [][2][32]byte {
	var out [][2][32]byte
	for _, u := range p.Inputs[vin].Unknowns {
		subtype, keyData, ok := decodeProprietaryKey(u.Key)
		if !ok || subtype != PsbtInConsumer || len(keyData) != 64 {
			continue
		}
		var contractID, opid [32]byte
		copy(contractID[:], keyData[:32])
		copy(opid[:], keyData[32:])
		out = append(out, [2][32]byte{contractID, opid})
	}
	return out
}

// SetTransition attaches a transition's serialized bytes to the global
// map, keyed by contract id.
func SetTransition(p *psbt.Packet, contractID [32]byte, transitionBytes []byte) {
	p.Unknowns = append(p.Unknowns, &psbt.Unknown{
		Key:   encodeProprietaryKey(proprietaryKey(PsbtGlobalTransition, contractID[:])),
		Value: transitionBytes,
	})
}

// Transitions returns every (contractId -> transitionBytes) pair attached
// to the packet's global map.
func Transitions(p *psbt.Packet) map[[32]byte][]byte {
	out := make(map[[32]byte][]byte)
	for _, u := range p.Unknowns {
		subtype, keyData, ok := decodeProprietaryKey(u.Key)
		if !ok || subtype != PsbtGlobalTransition || len(keyData) != 32 {
			continue
		}
		var contractID [32]byte
		copy(contractID[:], keyData)
		out[contractID] = u.Value
	}
	return out
}

// encodeProprietaryKey serializes a psbt.ProprietaryKey into the raw key
// bytes used by psbt.Unknown, following BIP-174's
// <compact-size identifier len><identifier><subtype><key data> layout.
func encodeProprietaryKey(pk psbt.ProprietaryKey) []byte {
	key := make([]byte, 0, 1+len(pk.Identifier)+1+len(pk.Key))
	key = append(key, byte(len(pk.Identifier)))
	key = append(key, pk.Identifier...)
	key = append(key, pk.Subtype)
	key = append(key, pk.Key...)
	return key
}

func decodeProprietaryKey(key []byte) (subtype uint8, keyData []byte, ok bool) {
	if len(key) < 1 {
		return 0, nil, false
	}
	idLen := int(key[0])
	if len(key) < 1+idLen+1 {
		return 0, nil, false
	}
	identifier := key[1 : 1+idLen]
	if string(identifier) != string(ProprietaryIdentifier) {
		return 0, nil, false
	}
	subtype = key[1+idLen]
	keyData = key[1+idLen+1:]
	return subtype, keyData, true
}

func matchesKey(key []byte, subtype uint8) bool {
	st, _, ok := decodeProprietaryKey(key)
	return ok && st == subtype
}
