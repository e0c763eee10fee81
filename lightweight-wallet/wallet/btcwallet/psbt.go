package btcwallet

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/waddrmgr"
)

// FundedPsbt is a PSBT funded with wallet UTXOs plus the index of its
// change output (-1 if none was needed).
type FundedPsbt struct {
	Packet            *psbt.Packet
	ChangeOutputIndex int32
	ChainFees         int64
}

// FundPsbt funds a PSBT with wallet UTXOs, selecting coins until the
// requested outputs plus an estimated fee are covered.
func (w *WalletAnchor) FundPsbt(
	ctx context.Context,
	packet *psbt.Packet,
	minConfs uint32,
	feeRateSatPerVByte int64,
	changeIdx int32,
) (*FundedPsbt, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.wallet == nil {
		return nil, ErrWalletNotLoaded
	}
	if packet == nil || packet.UnsignedTx == nil {
		return nil, ErrInvalidPsbt
	}

	var outputAmount btcutil.Amount
	for _, txOut := range packet.UnsignedTx.TxOut {
		outputAmount += btcutil.Amount(txOut.Value)
	}

	estimatedVSize := int64(len(packet.UnsignedTx.TxIn)*180 + len(packet.UnsignedTx.TxOut)*34 + 10)
	estimatedFee := btcutil.Amount(estimatedVSize * feeRateSatPerVByte)
	totalRequired := outputAmount + estimatedFee

	unspent, err := w.wallet.ListUnspent(int32(minConfs), 9999999, "")
	if err != nil {
		return nil, fmt.Errorf("list unspent: %w", err)
	}

	var selectedCoins []*wire.TxIn
	var totalInput btcutil.Amount

	for _, utxo := range unspent {
		txHash, err := chainhash.NewHashFromStr(utxo.TxID)
		if err != nil {
			continue
		}
		outpoint := wire.OutPoint{Hash: *txHash, Index: utxo.Vout}
		if w.utxoLocks.IsLocked(outpoint) {
			continue
		}
		amt, err := btcutil.NewAmount(utxo.Amount)
		if err != nil {
			continue
		}

		selectedCoins = append(selectedCoins, wire.NewTxIn(&outpoint, nil, nil))
		totalInput += amt
		w.utxoLocks.LockUTXO(outpoint, w.cfg.UtxoLockDuration)

		if totalInput >= totalRequired {
			break
		}
	}

	if totalInput < totalRequired {
		return nil, ErrInsufficientFunds
	}

	for _, txIn := range selectedCoins {
		packet.UnsignedTx.TxIn = append(packet.UnsignedTx.TxIn, txIn)

		pInput := psbt.PInput{}
		if _, prevOut, _, err := w.wallet.FetchOutpointInfo(&txIn.PreviousOutPoint); err == nil && prevOut != nil {
			pInput.WitnessUtxo = prevOut
		}
		packet.Inputs = append(packet.Inputs, pInput)
	}

	change := totalInput - totalRequired
	changeOutputIndex := int32(-1)

	if change > btcutil.Amount(546) {
		changeAddr, err := w.wallet.NewChangeAddress(waddrmgr.DefaultAccountNum, waddrmgr.KeyScopeBIP0084)
		if err != nil {
			return nil, fmt.Errorf("get change address: %w", err)
		}
		changeScript, err := txscript.PayToAddrScript(changeAddr)
		if err != nil {
			return nil, fmt.Errorf("build change script: %w", err)
		}
		changeOut := &wire.TxOut{Value: int64(change), PkScript: changeScript}

		if changeIdx >= 0 && int(changeIdx) <= len(packet.UnsignedTx.TxOut) {
			newOuts := make([]*wire.TxOut, 0, len(packet.UnsignedTx.TxOut)+1)
			newOuts = append(newOuts, packet.UnsignedTx.TxOut[:changeIdx]...)
			newOuts = append(newOuts, changeOut)
			newOuts = append(newOuts, packet.UnsignedTx.TxOut[changeIdx:]...)
			packet.UnsignedTx.TxOut = newOuts
			changeOutputIndex = changeIdx
		} else {
			packet.UnsignedTx.TxOut = append(packet.UnsignedTx.TxOut, changeOut)
			changeOutputIndex = int32(len(packet.UnsignedTx.TxOut) - 1)
		}
		packet.Outputs = append(packet.Outputs, psbt.POutput{})
	}

	return &FundedPsbt{
		Packet:            packet,
		ChangeOutputIndex: changeOutputIndex,
		ChainFees:         int64(estimatedFee),
	}, nil
}

// SignPsbt signs every input the wallet holds the key for, leaving
// others untouched for a counterparty to sign (the scriptless-swap case).
func (w *WalletAnchor) SignPsbt(ctx context.Context, packet *psbt.Packet) (*psbt.Packet, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.wallet == nil {
		return nil, ErrWalletNotLoaded
	}
	if packet == nil {
		return nil, ErrInvalidPsbt
	}

	for i := range packet.Inputs {
		if i >= len(packet.UnsignedTx.TxIn) {
			continue
		}
		_ = w.signInput(packet, i)
	}
	return packet, nil
}

func (w *WalletAnchor) signInput(packet *psbt.Packet, inputIdx int) error {
	pInput := packet.Inputs[inputIdx]
	if pInput.WitnessUtxo == nil {
		return fmt.Errorf("missing witness UTXO for input %d", inputIdx)
	}
	prevOut := pInput.WitnessUtxo

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(prevOut.PkScript, w.cfg.NetParams)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("extract address: %w", err)
	}

	privKey, err := w.wallet.PrivKeyForAddress(addrs[0])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, addrs[0])
	}

	if txscript.IsPayToWitnessPubKeyHash(prevOut.PkScript) {
		return w.signP2WPKH(packet, inputIdx, prevOut, privKey)
	}
	return fmt.Errorf("unsupported script type for input %d", inputIdx)
}

func (w *WalletAnchor) signP2WPKH(packet *psbt.Packet, inputIdx int, prevOut *wire.TxOut, privKey *btcec.PrivateKey) error {
	sigHashes := txscript.NewTxSigHashes(packet.UnsignedTx, nil)

	sigHash, err := txscript.CalcWitnessSigHash(
		prevOut.PkScript, sigHashes, txscript.SigHashAll,
		packet.UnsignedTx, inputIdx, prevOut.Value,
	)
	if err != nil {
		return fmt.Errorf("calc sighash: %w", err)
	}

	sig := ecdsa.Sign(privKey, sigHash)
	sigBytes := append(sig.Serialize(), byte(txscript.SigHashAll))
	pubKeyBytes := privKey.PubKey().SerializeCompressed()

	packet.UnsignedTx.TxIn[inputIdx].Witness = wire.TxWitness{sigBytes, pubKeyBytes}
	return nil
}

// SignAndFinalizePsbt signs, then finalizes every input that can be.
func (w *WalletAnchor) SignAndFinalizePsbt(ctx context.Context, packet *psbt.Packet) (*psbt.Packet, error) {
	signed, err := w.SignPsbt(ctx, packet)
	if err != nil {
		return nil, fmt.Errorf("sign PSBT: %w", err)
	}
	for i := range signed.Inputs {
		_ = psbt.Finalize(signed, i)
	}
	return signed, nil
}

// ImportTaprootOutput imports a taproot output into the wallet for
// watching, used when rgbwatcher hands out a freshly derived RGB address.
func (w *WalletAnchor) ImportTaprootOutput(ctx context.Context, pubKey *btcec.PublicKey) (btcutil.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.wallet == nil {
		return nil, ErrWalletNotLoaded
	}

	pubKeyBytes := pubKey.SerializeCompressed()[1:]
	addr, err := btcutil.NewAddressTaproot(pubKeyBytes, w.cfg.NetParams)
	if err != nil {
		return nil, fmt.Errorf("build taproot address: %w", err)
	}

	_ = w.wallet.ImportPublicKey(pubKey, waddrmgr.WitnessPubKey)
	return addr, nil
}

// UnlockInput releases a previously locked UTXO.
func (w *WalletAnchor) UnlockInput(ctx context.Context, outpoint wire.OutPoint) error {
	return w.utxoLocks.UnlockUTXO(outpoint)
}
