package rgbswap

import (
	"bytes"
	"errors"
	"sort"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// ErrInconclusive is returned when two xpub entries collide without one
// strictly suffix-containing the other's derivation.
var ErrInconclusive = errors.New("rgbswap: inconclusive xpub merge")

// Join merges two independently built half-PSBTs (seller's offer,
// buyer's bid) into one.
// version = max; xpub maps merged; inputs concatenated; outputs
// deduplicated by (scriptPubkey, value); lock_time = max; proprietary/
// unknown maps unioned.
func Join(offer, bid *psbt.Packet) (*psbt.Packet, error) {
	joined := &psbt.Packet{
		UnsignedTx: wire.NewMsgTx(maxVersion(offer.UnsignedTx.Version, bid.UnsignedTx.Version)),
	}

	xpubs, err := mergeXpubs(offer.Xpub, bid.Xpub)
	if err != nil {
		return nil, err
	}
	joined.Xpub = xpubs

	joined.Unknowns = unionUnknowns(offer.Unknowns, bid.Unknowns)

	ins := append(deref(offer.UnsignedTx.TxIn), deref(bid.UnsignedTx.TxIn)...)
	joined.UnsignedTx.TxIn = make([]*wire.TxIn, len(ins))
	for i := range ins {
		joined.UnsignedTx.TxIn[i] = &ins[i]
	}
	joined.Inputs = append(append([]psbt.PInput{}, offer.Inputs...), bid.Inputs...)

	outs, pouts := dedupeOutputs(offer, bid)
	joined.UnsignedTx.TxOut = outs
	joined.Outputs = pouts

	joined.UnsignedTx.LockTime = maxU32(offer.UnsignedTx.LockTime, bid.UnsignedTx.LockTime)

	return joined, nil
}

func deref(ins []*wire.TxIn) []wire.TxIn {
	out := make([]wire.TxIn, len(ins))
	for i, in := range ins {
		out[i] = *in
	}
	return out
}

func maxVersion(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func mergeXpubs(a, b []psbt.Xpub) ([]psbt.Xpub, error) {
	byKey := make(map[string]psbt.Xpub)
	for _, x := range a {
		byKey[string(x.ExtendedKey)] = x
	}
	for _, x := range b {
		existing, ok := byKey[string(x.ExtendedKey)]
		if !ok {
			byKey[string(x.ExtendedKey)] = x
			continue
		}
		if pathSuffixContains(existing.Bip32Path, x.Bip32Path) {
			continue
		}
		if pathSuffixContains(x.Bip32Path, existing.Bip32Path) {
			byKey[string(x.ExtendedKey)] = x
			continue
		}
		return nil, ErrInconclusive
	}

	out := make([]psbt.Xpub, 0, len(byKey))
	for _, x := range byKey {
		out = append(out, x)
	}
	return out, nil
}

// pathSuffixContains reports whether long strictly suffix-contains short.
func pathSuffixContains(long, short []uint32) bool {
	if len(long) <= len(short) {
		return false
	}
	offset := len(long) - len(short)
	for i, v := range short {
		if long[offset+i] != v {
			return false
		}
	}
	return true
}

func unionUnknowns(a, b []*psbt.Unknown) []*psbt.Unknown {
	seen := make(map[string]struct{})
	var out []*psbt.Unknown
	for _, list := range [][]*psbt.Unknown{a, b} {
		for _, u := range list {
			key := string(u.Key) + "|" + string(u.Value)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, u)
		}
	}
	return out
}

type outKey struct {
	script string
	value  int64
}

func dedupeOutputs(offer, bid *psbt.Packet) ([]*wire.TxOut, []psbt.POutput) {
	seen := make(map[outKey]struct{})
	var outs []*wire.TxOut
	var pouts []psbt.POutput

	add := func(p *psbt.Packet) {
		for i, o := range p.UnsignedTx.TxOut {
			k := outKey{script: string(o.PkScript), value: o.Value}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			outs = append(outs, o)
			pouts = append(pouts, p.Outputs[i])
		}
	}
	add(offer)
	add(bid)

	return outs, pouts
}

// Sorted returns a copy of the packet with its inputs and outputs sorted
// into a canonical order (by previous outpoint, and by value, then
// scriptPubkey, respectively), so that
// offer.join(bid).sorted() == bid.join(offer).sorted().
func Sorted(p *psbt.Packet) *psbt.Packet {
	type inPair struct {
		txin  wire.TxIn
		pin   psbt.PInput
	}
	ins := make([]inPair, len(p.UnsignedTx.TxIn))
	for i, in := range p.UnsignedTx.TxIn {
		ins[i] = inPair{txin: *in, pin: p.Inputs[i]}
	}
	sort.Slice(ins, func(i, j int) bool {
		return compareOutPoint(ins[i].txin.PreviousOutPoint, ins[j].txin.PreviousOutPoint) < 0
	})

	type outPair struct {
		txout *wire.TxOut
		pout  psbt.POutput
	}
	outs := make([]outPair, len(p.UnsignedTx.TxOut))
	for i, o := range p.UnsignedTx.TxOut {
		outs[i] = outPair{txout: o, pout: p.Outputs[i]}
	}
	sort.Slice(outs, func(i, j int) bool {
		if outs[i].txout.Value != outs[j].txout.Value {
			return outs[i].txout.Value < outs[j].txout.Value
		}
		return bytes.Compare(outs[i].txout.PkScript, outs[j].txout.PkScript) < 0
	})

	sorted := &psbt.Packet{
		UnsignedTx: wire.NewMsgTx(p.UnsignedTx.Version),
		Xpub:       p.Xpub,
		Unknowns:   p.Unknowns,
	}
	sorted.UnsignedTx.LockTime = p.UnsignedTx.LockTime
	for _, in := range ins {
		txin := in.txin
		sorted.UnsignedTx.TxIn = append(sorted.UnsignedTx.TxIn, &txin)
		sorted.Inputs = append(sorted.Inputs, in.pin)
	}
	for _, o := range outs {
		sorted.UnsignedTx.TxOut = append(sorted.UnsignedTx.TxOut, o.txout)
		sorted.Outputs = append(sorted.Outputs, o.pout)
	}
	return sorted
}

func compareOutPoint(a, b wire.OutPoint) int {
	if c := bytes.Compare(a.Hash[:], b.Hash[:]); c != 0 {
		return c
	}
	if a.Index < b.Index {
		return -1
	}
	if a.Index > b.Index {
		return 1
	}
	return 0
}
