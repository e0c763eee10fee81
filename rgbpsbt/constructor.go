package rgbpsbt

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
)

var log = btclog.Disabled

func UseLogger(l btclog.Logger) { log = l }

// Construction errors returned by Build.
var (
	ErrEmptyInputs         = errors.New("rgbpsbt: no inputs supplied")
	ErrWrongDescriptor     = errors.New("rgbpsbt: output does not match taproot descriptor")
	ErrScriptPubkeyMismatch = errors.New("rgbpsbt: previous scriptPubkey does not match descriptor derivation")
)

// InflationError reports that outputs exceed inputs without force_inflation.
type InflationError struct {
	Input, Output int64
}

func (e *InflationError) Error() string {
	return fmt.Sprintf("rgbpsbt: inflation: inputs=%d outputs=%d", e.Input, e.Output)
}

// OutputUnknownError reports a funding transaction the Resolver could not
// find.
type OutputUnknownError struct {
	Txid chainhash.Hash
	Vout uint32
}

func (e *OutputUnknownError) Error() string {
	return fmt.Sprintf("rgbpsbt: unknown output %s:%d", e.Txid, e.Vout)
}

// InputDescriptor is one chosen PSBT input.
type InputDescriptor struct {
	OutPoint wire.OutPoint
	Terminal Terminal
	Sequence uint32
	SigHash  txscript.SigHashType
	// Tweak, if non-nil, is the tapret tweak previously applied to this
	// input's output; required to reproduce the control block at sign
	// time.
	Tweak *[32]byte
}

// Terminal is a derivation path's final two components: app index and
// address index, mirroring the Watcher's terminal keying.
type Terminal struct {
	App   uint32
	Index uint32
}

// Output is one desired PSBT output.
type Output struct {
	Script []byte
	Amount int64
}

// Descriptor resolves scriptPubkeys and internal keys at a terminal path,
// backed in this wallet by lightweight-wallet/keyring.
type Descriptor interface {
	ScriptAt(t Terminal) ([]byte, error)
	InternalKeyAt(t Terminal) ([]byte, error)
}

// FundingResolver is the subset of C1 the constructor needs: fetching a
// previous transaction to verify its scriptPubkey.
type FundingResolver interface {
	ResolveTx(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)
}

// BuildParams bundles everything Build needs.
type BuildParams struct {
	Descriptor Descriptor
	Resolver   FundingResolver
	Inputs     []InputDescriptor
	Outputs    []Output

	// ChangeScript, if non-empty, requests an automatically-computed
	// change output of sum(inputs) - sum(outputs) - Fee.
	ChangeScript []byte
	Fee          int64
	ForceInflation bool

	// TapretHostIndex selects which output carries the tapret-host
	// marker; defaults to the first non-change output if negative.
	TapretHostIndex int
}

// Build constructs a funded PSBT from the given inputs and outputs,
// marking the tapret host output and computing change.
func Build(ctx context.Context, p BuildParams) (*psbt.Packet, error) {
	if len(p.Inputs) == 0 {
		return nil, ErrEmptyInputs
	}

	unsignedTx := wire.NewMsgTx(2)
	var totalIn int64
	for _, in := range p.Inputs {
		unsignedTx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: in.OutPoint,
			Sequence:         seqOrDefault(in.Sequence),
		})
	}

	for _, out := range p.Outputs {
		unsignedTx.AddTxOut(wire.NewTxOut(out.Amount, out.Script))
	}

	totalOut := int64(0)
	for _, out := range p.Outputs {
		totalOut += out.Amount
	}

	changeIdx := -1
	if len(p.ChangeScript) > 0 {
		// computed after we know totalIn, added below.
		changeIdx = len(unsignedTx.TxOut)
		unsignedTx.AddTxOut(wire.NewTxOut(0, p.ChangeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		return nil, fmt.Errorf("rgbpsbt: %w", err)
	}

	for i, in := range p.Inputs {
		fundingTx, err := p.Resolver.ResolveTx(ctx, in.OutPoint.Hash)
		if err != nil {
			return nil, &OutputUnknownError{Txid: in.OutPoint.Hash, Vout: in.OutPoint.Index}
		}
		if int(in.OutPoint.Index) >= len(fundingTx.TxOut) {
			return nil, &OutputUnknownError{Txid: in.OutPoint.Hash, Vout: in.OutPoint.Index}
		}
		prevOut := fundingTx.TxOut[in.OutPoint.Index]
		totalIn += prevOut.Value

		wantScript, err := p.Descriptor.ScriptAt(in.Terminal)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWrongDescriptor, err)
		}
		if !bytesEqual(wantScript, prevOut.PkScript) {
			return nil, fmt.Errorf("%w: input %d", ErrScriptPubkeyMismatch, i)
		}

		packet.Inputs[i].WitnessUtxo = prevOut
		packet.Inputs[i].SighashType = sighashOrDefault(in.SigHash)

		internalKey, err := p.Descriptor.InternalKeyAt(in.Terminal)
		if err == nil && len(internalKey) > 0 {
			packet.Inputs[i].Bip32Derivation = append(packet.Inputs[i].Bip32Derivation, &psbt.Bip32Derivation{
				PubKey: internalKey,
				Bip32Path: []uint32{
					hardened(1017), hardened(0), hardened(in.Terminal.App), 0, in.Terminal.Index,
				},
			})
		}
	}

	if changeIdx >= 0 {
		change := totalIn - totalOut - p.Fee
		if change < 0 && !p.ForceInflation {
			return nil, &InflationError{Input: totalIn, Output: totalOut + p.Fee}
		}
		if change > 0 {
			unsignedTx.TxOut[changeIdx].Value = change
		} else {
			// Drop the unused change output rather than emit a
			// zero-value/negative one.
			unsignedTx.TxOut = append(unsignedTx.TxOut[:changeIdx], unsignedTx.TxOut[changeIdx+1:]...)
			packet.Outputs = append(packet.Outputs[:changeIdx], packet.Outputs[changeIdx+1:]...)
			changeIdx = -1
		}
	}

	hostIdx := p.TapretHostIndex
	if hostIdx < 0 {
		hostIdx = 0
		for i := range unsignedTx.TxOut {
			if i == changeIdx {
				continue
			}
			hostIdx = i
			break
		}
	}
	MarkTapretHost(packet, hostIdx)

	return packet, nil
}

func seqOrDefault(seq uint32) uint32 {
	if seq == 0 {
		return wire.MaxTxInSequenceNum
	}
	return seq
}

func sighashOrDefault(sh txscript.SigHashType) txscript.SigHashType {
	if sh == 0 {
		return txscript.SigHashAll
	}
	return sh
}

func hardened(i uint32) uint32 {
	return i + 0x80000000
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
