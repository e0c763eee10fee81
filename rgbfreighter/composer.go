// Package rgbfreighter implements the Transfer Composer (C5) and
// Transfer Acceptor (C6): the algorithmic heart of the wallet core,
// turning an invoice and a funded PSBT into transitions, a bundle, an
// anchor, and consignments, and validating the reverse direction.
package rgbfreighter

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/rgb-wg/rgb-wallet/rgbcore/lnpbp4"
	"github.com/rgb-wg/rgb-wallet/rgbcore/tapret"
	"github.com/rgb-wg/rgb-wallet/rgbpsbt"
)

var log = btclog.Disabled

func UseLogger(l btclog.Logger) { log = l }

// Options tunes the composer.
type Options struct {
	// Strict is not read by Compose, which builds no consignments;
	// consignment scoping is chosen by AssembleParams.Strict instead.
	// When that flag is false, a single consignment covers the union,
	// which leaks to each recipient the existence of the other
	// recipients' seals.
	Strict bool

	// OtherInvoices are auxiliary invoices against the same contract
	// settled within the same transition.
	OtherInvoices []InvoiceLike

	// MaxBundles and MaxTerminals are not read by Compose.
	MaxBundles   int
	MaxTerminals int
}

// InvoiceLike is the minimal shape an auxiliary invoice needs.
type InvoiceLike struct {
	Amount      uint64
	Beneficiary rgbcore.Seal
}

// Stash is the subset of rgbstash.Stash the composer needs.
type Stash interface {
	ContractsByOutpoint(op OutPoint) ([]rgbcore.ContractId, error)
	StateForOutpoints(contractID rgbcore.ContractId, outpoints []OutPoint) (map[rgbcore.Opout]rgbcore.Assignment, error)
	ConsumeBundle(contractID rgbcore.ContractId, bundle *rgbcore.Bundle, witnessTxid [32]byte) error
	ConsumeAnchor(anchor *rgbcore.Anchor) error
}

// OutPoint is the composer's own outpoint type at the Stash interface
// boundary; StashAdapter bridges it to wire.OutPoint.
type OutPoint struct {
	Txid [32]byte
	Vout uint32
}

// ComposeParams bundles composer inputs: an invoice, a mutable PSBT, the
// spent prev-outs, the stash, and tuning options.
type ComposeParams struct {
	Invoice    Invoice
	Packet     *psbt.Packet
	PrevOuts   []OutPoint
	Stash      Stash
	Options    Options
}

// Invoice is the minimal invoice shape the composer consumes; callers
// adapt rgbcore/invoice.Invoice into this before calling Compose.
type Invoice struct {
	ContractId     rgbcore.ContractId
	Interface      string
	AssignmentType rgbcore.AssignmentType
	Amount         uint64
	TokenIndex     uint32
	Beneficiary    rgbcore.Seal
	Expired        bool
}

// Result is what Compose returns: the finalized transitions plus the
// anchor/bundle ready for persistence. Compose leaves Consignments nil;
// Assemble builds consignments.
type Result struct {
	Transitions   map[rgbcore.ContractId][]rgbcore.Transition
	Anchor        *rgbcore.Anchor
	Bundles       map[rgbcore.ContractId]*rgbcore.Bundle
	Consignments  []*rgbcore.Consignment
}

// Compose selects state for the invoice's contract, builds the primary
// transition plus any blank transitions for other affected contracts, and
// anchors them all in one LNPBP4 commitment.
func Compose(p ComposeParams) (*Result, error) {
	// Step 1: validate invoice.
	if p.Invoice.Expired {
		return nil, rgbcore.ErrInvoiceExpired
	}
	if p.Invoice.ContractId == (rgbcore.ContractId{}) {
		return nil, rgbcore.ErrInvoiceNoContract
	}
	if p.Invoice.Interface == "" {
		return nil, rgbcore.ErrInvoiceNoIface
	}

	// Step 2: classify PSBT outputs by velocity hint into a pool of
	// payer-owned candidate vouts (those carrying BIP32 derivation). No
	// beneficiary witness output is excluded: beneficiaryPkScript returns
	// nil for every seal.
	pool := buildVelocityPool(p.Packet, p.Invoice.Beneficiary)

	// Step 3: locate prev-outputs and collect touched contracts.
	contractStates := make(map[rgbcore.ContractId]map[rgbcore.Opout]rgbcore.Assignment)
	touchedContracts := make(map[rgbcore.ContractId]struct{})
	for _, op := range p.PrevOuts {
		ids, err := p.Stash.ContractsByOutpoint(op)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		for _, id := range ids {
			touchedContracts[id] = struct{}{}
		}
	}
	for id := range touchedContracts {
		state, err := p.Stash.StateForOutpoints(id, p.PrevOuts)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		contractStates[id] = state
	}

	primaryState := contractStates[p.Invoice.ContractId]
	if primaryState == nil {
		primaryState = map[rgbcore.Opout]rgbcore.Assignment{}
	}

	// The unsigned tx's txid is already final at this point: a taproot
	// txid hashes only the non-witness serialization, so every output
	// created by this transaction can be sealed against it now instead of
	// waiting for the PSBT to be signed.
	witnessTxid := p.Packet.UnsignedTx.TxHash()

	// inputOutpoints resolves every consumed opout back to the Bitcoin
	// outpoint it was sealed against, needed below to find which PSBT
	// input actually spends it.
	inputOutpoints := make(map[rgbcore.Opout]wire.OutPoint)
	for _, state := range contractStates {
		for opout, assign := range state {
			inputOutpoints[opout] = assign.Seal.OutPoint()
		}
	}

	// Step 4: build the primary transition.
	primary, changeOuts, err := buildPrimaryTransition(p.Invoice, primaryState, pool, p.Options, witnessTxid)
	if err != nil {
		return nil, err
	}
	log.Debugf("compose: primary transition settled with %d change output(s)", len(changeOuts))

	transitions := map[rgbcore.ContractId][]rgbcore.Transition{
		p.Invoice.ContractId: {primary},
	}

	// Step 5: build blank transitions for every other touched contract,
	// preserving any assignment sitting on a prev-output that isn't the
	// primary contract's.
	for id, state := range contractStates {
		if id == p.Invoice.ContractId {
			continue
		}
		blank, err := buildBlankTransition(id, state, pool, witnessTxid)
		if err != nil {
			return nil, err
		}
		transitions[id] = append(transitions[id], blank)
	}

	// Step 6: bind transitions to PSBT inputs/outputs.
	if err := bindToPSBT(p.Packet, transitions, inputOutpoints); err != nil {
		return nil, err
	}

	// Step 7: bundle and anchor.
	bundles := make(map[rgbcore.ContractId]*rgbcore.Bundle)
	tree := lnpbp4.New()
	for id, ts := range transitions {
		bundle := rgbcore.NewBundle(id)
		for _, t := range ts {
			bundle.Revealed[rgbcore.TransitionOpId(t)] = t
		}
		bundles[id] = bundle
		if err := tree.Insert(id, [32]byte(bundle.BundleId())); err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
	}
	root := tree.Root()

	hostIdx, ok := findTapretHost(p.Packet)
	if !ok {
		return nil, rgbcore.ErrNoHostOutput
	}
	rgbpsbt.SetTapretCommitment(p.Packet, hostIdx, root)

	anchor := rgbcore.NewAnchor(witnessTxid, uint32(hostIdx))
	anchor.MerkleRoot = root
	for id, b := range bundles {
		anchor.BundleIds[id] = b.BundleId()
	}

	// Step 8: persist the anchor and every bundle it commits to under the
	// witness txid, so contract state can be replayed once the caller
	// broadcasts and confirms this transaction.
	if err := p.Stash.ConsumeAnchor(anchor); err != nil {
		return nil, fmt.Errorf("compose: %w", err)
	}
	for id, bundle := range bundles {
		if err := p.Stash.ConsumeBundle(id, bundle, witnessTxid); err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
	}

	return &Result{
		Transitions:  transitions,
		Anchor:       anchor,
		Bundles:      bundles,
		Consignments: nil, // Compose does not fill this; Assemble builds consignments
	}, nil
}

// VerifyTapretCommitment reproduces the anchor-fidelity check: recomputing
// the tapret commitment from the bundle
// and LNPBP4 root and comparing it against the on-chain output key.
func VerifyTapretCommitment(anchor *rgbcore.Anchor, internalKeyX []byte, outputKeyX []byte, sibling *[32]byte) (bool, error) {
	_ = tapret.ErrNoScriptTree // referenced for godoc linkage; real check below
	return compareXOnly(internalKeyX, outputKeyX, anchor.MerkleRoot, sibling)
}

func compareXOnly(internalKeyX, outputKeyX []byte, message [32]byte, sibling *[32]byte) (bool, error) {
	ik, err := parsePubKeyX(internalKeyX)
	if err != nil {
		return false, err
	}
	ok, err := parsePubKeyX(outputKeyX)
	if err != nil {
		return false, err
	}
	return tapret.VerifyCommitment(ik, ok, sibling, message)
}
