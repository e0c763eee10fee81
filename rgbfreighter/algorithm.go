package rgbfreighter

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
	"github.com/rgb-wg/rgb-wallet/rgbpsbt"
	"github.com/rgb-wg/rgb-wallet/rgbstash"
)

// buildVelocityPool classifies PSBT outputs by velocity hint, treating any
// output carrying BIP32 derivation (marking it payer-owned) as a
// change-output candidate. An output is skipped as the beneficiary's
// witness output only when beneficiaryPkScript returns a script, and it
// returns nil for every seal, so no output is excluded on that ground.
// This implementation does not read a contract-declared velocity hint
// from the schema, so every payer-owned output is pooled under the
// default velocity class.
func buildVelocityPool(p *psbt.Packet, beneficiary rgbcore.Seal) *rgbcore.VelocityPool {
	pool := rgbcore.NewVelocityPool()
	beneficiaryScript := beneficiaryPkScript(beneficiary)

	for i, out := range p.Outputs {
		if len(p.UnsignedTx.TxOut) <= i {
			continue
		}
		if beneficiaryScript != nil && bytesEq(p.UnsignedTx.TxOut[i].PkScript, beneficiaryScript) {
			continue
		}
		if len(out.Bip32Derivation) > 0 || len(out.TaprootBip32Derivation) > 0 {
			pool.Add(rgbcore.VelocityHintDefault, uint32(i))
		}
	}
	return pool
}

func beneficiaryPkScript(seal rgbcore.Seal) []byte {
	if seal.Blinded {
		return nil
	}
	return nil // revealed witness-output beneficiaries are resolved by the wallet layer before Compose is called
}

func bytesEq(a, b []byte) bool {
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

// buildPrimaryTransition selects inputs from the primary contract's
// state, routes mismatched-type state to change, settles the
// beneficiary, and computes change. witnessTxid is the to-be-broadcast
// transaction's txid, computed from the unsigned tx before signing since
// a taproot txid does not depend on witness data; change outputs are
// sealed against it immediately rather than left to be patched in later.
func buildPrimaryTransition(inv Invoice, state map[rgbcore.Opout]rgbcore.Assignment, pool *rgbcore.VelocityPool, opts Options, witnessTxid chainhash.Hash) (rgbcore.Transition, []rgbcore.TransitionOutput, error) {
	t := rgbcore.Transition{ContractId: inv.ContractId, TypeName: "transfer"}

	var sumInputs uint64
	var stateKind = rgbcore.StateAmount
	var changeOuts []rgbcore.TransitionOutput

	for opout, assign := range state {
		t.Inputs = append(t.Inputs, rgbcore.TransitionInput{PrevId: opout.OpId, OutputIndex: opout.OutputIndex, Type: opout.AssignmentType})

		if opout.AssignmentType != inv.AssignmentType {
			vout, ok := pool.Next(rgbcore.VelocityHintDefault)
			if !ok {
				return rgbcore.Transition{}, nil, rgbcore.ErrNoBeneficiaryOutput
			}
			out := rgbcore.TransitionOutput{
				Type:  opout.AssignmentType,
				Seal:  rgbcore.RevealedSeal(witnessTxid, vout),
				State: assign.State,
			}
			t.Outputs = append(t.Outputs, out)
			changeOuts = append(changeOuts, out)
			continue
		}

		switch assign.State.Kind {
		case rgbcore.StateAmount:
			sumInputs += assign.State.Amount
			stateKind = rgbcore.StateAmount
		case rgbcore.StateData:
			stateKind = rgbcore.StateData
		case rgbcore.StateVoid:
			stateKind = rgbcore.StateVoid
		}
	}

	for _, aux := range opts.OtherInvoices {
		if sumInputs < aux.Amount {
			return rgbcore.Transition{}, nil, rgbcore.ErrInsufficientState
		}
		sumInputs -= aux.Amount
		t.Outputs = append(t.Outputs, rgbcore.TransitionOutput{
			Type:  inv.AssignmentType,
			Seal:  aux.Beneficiary,
			State: rgbcore.NewAmount(aux.Amount),
		})
	}

	switch stateKind {
	case rgbcore.StateAmount:
		if sumInputs < inv.Amount {
			return rgbcore.Transition{}, nil, rgbcore.ErrInsufficientState
		}
		change := sumInputs - inv.Amount
		if change > 0 {
			vout, ok := pool.Next(rgbcore.VelocityHintDefault)
			if !ok {
				return rgbcore.Transition{}, nil, rgbcore.ErrNoBeneficiaryOutput
			}
			out := rgbcore.TransitionOutput{
				Type:  inv.AssignmentType,
				Seal:  rgbcore.RevealedSeal(witnessTxid, vout),
				State: rgbcore.NewAmount(change),
			}
			t.Outputs = append(t.Outputs, out)
			changeOuts = append(changeOuts, out)
		}
		t.Outputs = append(t.Outputs, rgbcore.TransitionOutput{
			Type:  inv.AssignmentType,
			Seal:  inv.Beneficiary,
			State: rgbcore.NewAmount(inv.Amount),
		})
	case rgbcore.StateData:
		found := false
		for opout, assign := range state {
			if opout.AssignmentType == inv.AssignmentType && assign.State.TokenIndex == inv.TokenIndex {
				found = true
			}
		}
		if !found {
			return rgbcore.Transition{}, nil, rgbcore.ErrInsufficientState
		}
		t.Outputs = append(t.Outputs, rgbcore.TransitionOutput{
			Type:  inv.AssignmentType,
			Seal:  inv.Beneficiary,
			State: rgbcore.NewData(inv.TokenIndex),
		})
	case rgbcore.StateVoid:
		t.Outputs = append(t.Outputs, rgbcore.TransitionOutput{
			Type:  inv.AssignmentType,
			Seal:  inv.Beneficiary,
			State: rgbcore.NewVoid(),
		})
	}

	return t, changeOuts, nil
}

// buildBlankTransition reassigns every assignment on a spent prev-output
// for a non-primary contract to a change vout via a zero-payment
// transition, so it is never silently burned.
func buildBlankTransition(contractID rgbcore.ContractId, state map[rgbcore.Opout]rgbcore.Assignment, pool *rgbcore.VelocityPool, witnessTxid chainhash.Hash) (rgbcore.Transition, error) {
	t := rgbcore.Transition{ContractId: contractID, TypeName: "blank"}
	for opout, assign := range state {
		t.Inputs = append(t.Inputs, rgbcore.TransitionInput{PrevId: opout.OpId, OutputIndex: opout.OutputIndex, Type: opout.AssignmentType})

		vout, ok := pool.Next(rgbcore.VelocityHintDefault)
		if !ok {
			return rgbcore.Transition{}, rgbcore.ErrNoBeneficiaryOutput
		}
		t.Outputs = append(t.Outputs, rgbcore.TransitionOutput{
			Type:  opout.AssignmentType,
			Seal:  rgbcore.RevealedSeal(witnessTxid, vout),
			State: assign.State,
		})
	}
	return t, nil
}

// bindToPSBT marks every PSBT input whose outpoint matches a transition
// input with RGB_IN_CONSUMER, and attaches each transition's
// rgbstash.EncodeTransition bytes (a versioned gob blob) globally via
// PSBT_TRANSITION so other RGB-aware wallets can read
// the transition straight off the PSBT. inputOutpoints resolves a consumed
// opout back to the Bitcoin outpoint it was sealed against, the link
// needed to find which PSBT input actually spends it.
func bindToPSBT(p *psbt.Packet, transitions map[rgbcore.ContractId][]rgbcore.Transition, inputOutpoints map[rgbcore.Opout]wire.OutPoint) error {
	for contractID, ts := range transitions {
		for _, t := range ts {
			opid := rgbcore.TransitionOpId(t)

			for _, in := range t.Inputs {
				opout := rgbcore.Opout{OpId: in.PrevId, AssignmentType: in.Type, OutputIndex: in.OutputIndex}
				outpoint, ok := inputOutpoints[opout]
				if !ok {
					continue
				}
				for vin, txin := range p.UnsignedTx.TxIn {
					if txin.PreviousOutPoint == outpoint {
						rgbpsbt.SetConsumer(p, vin, contractID, opid)
					}
				}
			}

			encoded, err := rgbstash.EncodeTransition(t)
			if err != nil {
				return fmt.Errorf("rgbfreighter: encode transition: %w", err)
			}
			rgbpsbt.SetTransition(p, contractID, encoded)
		}
	}
	return nil
}

func findTapretHost(p *psbt.Packet) (int, bool) {
	for i := range p.Outputs {
		if rgbpsbt.IsTapretHost(p, i) {
			return i, true
		}
	}
	return -1, false
}

func parsePubKeyX(x []byte) (*btcec.PublicKey, error) {
	if len(x) != 32 {
		return nil, fmt.Errorf("rgbfreighter: expected 32-byte x-only key, got %d", len(x))
	}
	key, err := btcec.ParsePubKey(append([]byte{0x02}, x...))
	if err != nil {
		return nil, fmt.Errorf("rgbfreighter: parse pubkey: %w", err)
	}
	return key, nil
}
