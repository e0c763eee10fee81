// Package rgbcore implements the RGB client-side data model: the contract
// graph of genesis, transitions, anchors and bundles that the rest of the
// wallet core (rgbpsbt, rgbstash, rgbwatcher, rgbfreighter, rgbswap) builds
// on top of.
package rgbcore

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ContractId is the 32-byte identifier of a contract, derived from its
// genesis. Stable for the life of the asset.
type ContractId [32]byte

// String returns the hex encoding of the contract id.
func (c ContractId) String() string {
	return hex.EncodeToString(c[:])
}

// OpId is the 32-byte content hash of a transition or genesis.
type OpId [32]byte

func (o OpId) String() string {
	return hex.EncodeToString(o[:])
}

// IsGenesis reports whether this OpId is the zero value, used as the
// sentinel "producing operation" for genesis-created outputs.
func (o OpId) IsGenesis() bool {
	return o == OpId{}
}

// AssignmentType names the kind of state an output carries. The core
// supports exactly three interface index values: 9 (generic contract),
// 20 (RGB20 fungible), 21 (RGB21 unique digital asset).
type AssignmentType uint16

const (
	AssignmentTypeGeneric AssignmentType = 9
	AssignmentTypeRGB20   AssignmentType = 20
	AssignmentTypeRGB21   AssignmentType = 21
)

func (t AssignmentType) String() string {
	switch t {
	case AssignmentTypeGeneric:
		return "generic"
	case AssignmentTypeRGB20:
		return "RGB20"
	case AssignmentTypeRGB21:
		return "RGB21"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(t))
	}
}

// StateKind is the closed tagged variant of owned state. All three cases
// must be handled explicitly by the composer, acceptor and state
// materializer; there is no default branch.
type StateKind uint8

const (
	StateAmount StateKind = iota
	StateData
	StateVoid
)

// State is the value carried by an Assignment. Exactly one of the fields is
// meaningful, selected by Kind.
type State struct {
	Kind       StateKind
	Amount     uint64
	TokenIndex uint32
}

func NewAmount(v uint64) State { return State{Kind: StateAmount, Amount: v} }
func NewData(idx uint32) State { return State{Kind: StateData, TokenIndex: idx} }
func NewVoid() State           { return State{Kind: StateVoid} }

// Opout references one specific owned output of a transition or genesis.
type Opout struct {
	OpId           OpId
	AssignmentType AssignmentType
	OutputIndex    uint32
}

func (o Opout) String() string {
	return fmt.Sprintf("%s/%d/%d", o.OpId, o.AssignmentType, o.OutputIndex)
}

// Seal is a commitment binding asset state to a Bitcoin outpoint, either
// revealed (tapret1st:txid:vout) or blinded (utxob:<baid58>) behind a
// blinding factor until the owner chooses to reveal it.
type Seal struct {
	// Blinded, when true, means Txid/Vout are not yet known to anyone but
	// the seal's owner; BlindingFactor and the opaque BlindedBaid58 are
	// what gets transmitted on the wire instead.
	Blinded bool

	Txid chainhash.Hash
	Vout uint32

	BlindingFactor uint64
	BlindedBaid58  string
}

// RevealedSeal constructs a seal in its revealed tapret1st:txid:vout form.
func RevealedSeal(txid chainhash.Hash, vout uint32) Seal {
	return Seal{Txid: txid, Vout: vout}
}

func (s Seal) OutPoint() wire.OutPoint {
	return wire.OutPoint{Hash: s.Txid, Index: s.Vout}
}

func (s Seal) String() string {
	if s.Blinded {
		return "utxob:" + s.BlindedBaid58
	}
	return fmt.Sprintf("tapret1st:%s:%d", s.Txid, s.Vout)
}

// Assignment is owned state held under exactly one seal.
type Assignment struct {
	Seal  Seal
	State State
}

// TransitionInput references one opout consumed by a transition.
type TransitionInput struct {
	PrevId      OpId
	OutputIndex uint32
	Type        AssignmentType
}

// TransitionOutput is one output produced by a transition: a seal plus the
// state it carries.
type TransitionOutput struct {
	Type  AssignmentType
	Seal  Seal
	State State
}

// Transition is a node of the asset state graph.
type Transition struct {
	ContractId ContractId
	TypeName   string
	Inputs     []TransitionInput
	Outputs    []TransitionOutput

	// Supplement carries optional auxiliary data (e.g. media references)
	// that does not affect consensus-relevant state.
	Supplement []byte
}

// Genesis is the root of an asset's history.
type Genesis struct {
	SchemaId   [32]byte
	Ticker     string
	Name       string
	Precision  uint8
	Supply     uint64
	Media      *Media
	InitialOut []TransitionOutput
}

// Media references an attached media file by digest, per the
// bitmask-core MediaInfo supplement.
type Media struct {
	Digest [32]byte
	Mime   string
	Source string
}

// ContractState is the materialized view derived by replaying genesis and
// transitions in topological order: each live seal mapped to its current
// assignment.
type ContractState struct {
	ContractId ContractId
	Live       map[Opout]Assignment
}

func NewContractState(id ContractId) *ContractState {
	return &ContractState{ContractId: id, Live: make(map[Opout]Assignment)}
}

// BalanceOf sums every live fungible assignment, ignoring Data/Void state.
func (cs *ContractState) BalanceOf() uint64 {
	var total uint64
	for _, a := range cs.Live {
		if a.State.Kind == StateAmount {
			total += a.State.Amount
		}
	}
	return total
}

// TokenIndexes returns the set of distinct UDA token indexes currently
// live in this contract's state.
func (cs *ContractState) TokenIndexes() map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for _, a := range cs.Live {
		if a.State.Kind == StateData {
			out[a.State.TokenIndex] = struct{}{}
		}
	}
	return out
}
