package rgbstash

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog"
	"github.com/rgb-wg/rgb-wallet/rgbcore"
)

var log = btclog.Disabled

func UseLogger(l btclog.Logger) { log = l }

// Stash is the persistent knowledge base of one participant. A Stash is
// owned by at most one composer/acceptor at a time; callers serialize
// access, and Lock enforces this with a simple mutex rather than silently
// tolerating concurrent mutation.
type Stash struct {
	db *sql.DB
	mu sync.Mutex

	// states caches the materialized ContractState per contract, rebuilt
	// lazily from genesis + transitions on first access after Open.
	states map[rgbcore.ContractId]*rgbcore.ContractState
}

// Open wraps an already-migrated database connection.
func Open(db *sql.DB) *Stash {
	return &Stash{db: db, states: make(map[rgbcore.ContractId]*rgbcore.ContractState)}
}

// Lock serializes access for the duration of one composition or
// acceptance.
func (s *Stash) Lock() (unlock func()) {
	s.mu.Lock()
	return s.mu.Unlock
}

// TryLock reports rgbcore.ErrBusy instead of blocking, for callers that
// want to surface a concurrent-use violation rather than queue behind it.
func (s *Stash) TryLock() (unlock func(), err error) {
	if !s.mu.TryLock() {
		return nil, rgbcore.ErrBusy
	}
	return s.mu.Unlock, nil
}

// Genesis reads a contract's genesis.
func (s *Stash) Genesis(contractID rgbcore.ContractId) (*rgbcore.Genesis, error) {
	row := s.db.QueryRow(`SELECT blob FROM genesis WHERE contract_id = ?`, contractID[:])
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("genesis(%s): %w", contractID, rgbcore.ErrRetrieveFailed)
		}
		return nil, fmt.Errorf("genesis(%s): %w", contractID, err)
	}
	var g rgbcore.Genesis
	if _, err := decodeBlob(blob, &g); err != nil {
		return nil, fmt.Errorf("genesis(%s): %w", contractID, err)
	}
	return &g, nil
}

// Schema reads a raw schema blob by id; the Stash only stores and
// returns opaque bytes, since the schema language itself is out of scope
// here.
func (s *Stash) Schema(schemaID [32]byte) ([]byte, error) {
	row := s.db.QueryRow(`SELECT blob FROM schemas WHERE schema_id = ?`, schemaID[:])
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("schema(%x): %w", schemaID, rgbcore.ErrRetrieveFailed)
		}
		return nil, err
	}
	return blob, nil
}

// Transition reads one transition by opid.
func (s *Stash) Transition(opid rgbcore.OpId) (*rgbcore.Transition, error) {
	row := s.db.QueryRow(`SELECT blob FROM transitions WHERE opid = ?`, opid[:])
	var blob []byte
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transition(%s): %w", opid, rgbcore.ErrRetrieveFailed)
		}
		return nil, err
	}
	var t rgbcore.Transition
	if _, err := decodeBlob(blob, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// AnchoredBundle reads the anchor and bundle sharing a witness txid for a
// given contract.
func (s *Stash) AnchoredBundle(contractID rgbcore.ContractId, txid chainhash.Hash) (*rgbcore.Anchor, *rgbcore.Bundle, error) {
	var anchorBlob, bundleBlob []byte
	row := s.db.QueryRow(`SELECT blob FROM anchors WHERE txid = ?`, txid[:])
	if err := row.Scan(&anchorBlob); err != nil {
		return nil, nil, fmt.Errorf("anchored_bundle(%s): %w", txid, rgbcore.ErrRetrieveFailed)
	}
	row = s.db.QueryRow(`SELECT blob FROM bundles WHERE contract_id = ? AND txid = ?`, contractID[:], txid[:])
	if err := row.Scan(&bundleBlob); err != nil {
		return nil, nil, fmt.Errorf("anchored_bundle(%s): %w", txid, rgbcore.ErrRetrieveFailed)
	}

	var anchor rgbcore.Anchor
	if _, err := decodeBlob(anchorBlob, &anchor); err != nil {
		return nil, nil, err
	}
	bundle := rgbcore.NewBundle(contractID)
	if _, err := decodeBlob(bundleBlob, bundle); err != nil {
		return nil, nil, err
	}
	return &anchor, bundle, nil
}

// ContractsByOutpoint returns every contract with state living on the
// given outpoint.
func (s *Stash) ContractsByOutpoint(op wire.OutPoint) ([]rgbcore.ContractId, error) {
	rows, err := s.db.Query(`SELECT DISTINCT contract_id FROM outpoint_index WHERE txid = ? AND vout = ?`,
		op.Hash[:], op.Index)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rgbcore.ContractId
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var id rgbcore.ContractId
		copy(id[:], blob)
		out = append(out, id)
	}
	return out, rows.Err()
}

// OpoutsByTerminals returns the opouts currently resident at each of the
// given (revealed) seals.
func (s *Stash) OpoutsByTerminals(seals []rgbcore.Seal) ([]rgbcore.Opout, error) {
	var out []rgbcore.Opout
	for _, seal := range seals {
		if seal.Blinded {
			continue
		}
		rows, err := s.db.Query(`SELECT opid, assignment_type, output_index FROM outpoint_index WHERE txid = ? AND vout = ?`,
			seal.Txid[:], seal.Vout)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var opidBlob []byte
			var assignType uint16
			var outIdx uint32
			if err := rows.Scan(&opidBlob, &assignType, &outIdx); err != nil {
				rows.Close()
				return nil, err
			}
			var opid rgbcore.OpId
			copy(opid[:], opidBlob)
			out = append(out, rgbcore.Opout{OpId: opid, AssignmentType: rgbcore.AssignmentType(assignType), OutputIndex: outIdx})
		}
		rows.Close()
	}
	return out, nil
}

// StateForOutpoints materializes the contract's state (replaying genesis
// and transitions) and filters it down to assignments resident on the
// given outpoints.
func (s *Stash) StateForOutpoints(contractID rgbcore.ContractId, outpoints []wire.OutPoint) (map[rgbcore.Opout]rgbcore.Assignment, error) {
	state, err := s.materialize(contractID)
	if err != nil {
		return nil, err
	}

	want := make(map[wire.OutPoint]struct{}, len(outpoints))
	for _, op := range outpoints {
		want[op] = struct{}{}
	}

	out := make(map[rgbcore.Opout]rgbcore.Assignment)
	for opout, assign := range state.Live {
		if assign.Seal.Blinded {
			continue
		}
		if _, ok := want[assign.Seal.OutPoint()]; ok {
			out[opout] = assign
		}
	}
	return out, nil
}

// materialize replays genesis + every transition of a contract in
// topological (insertion) order to rebuild its current ContractState.
// This implementation relies on transitions being written in an order
// consistent with their dependency graph (ConsumeBundle does not check
// that inputs already exist) and makes a single linear pass over the
// transitions table without a separate topo-sort.
func (s *Stash) materialize(contractID rgbcore.ContractId) (*rgbcore.ContractState, error) {
	if cached, ok := s.states[contractID]; ok {
		return cached, nil
	}

	g, err := s.Genesis(contractID)
	if err != nil {
		return nil, err
	}

	state := rgbcore.NewContractState(contractID)
	genesisOpId := rgbcore.GenesisOpId(*g)
	for i, out := range g.InitialOut {
		state.Live[rgbcore.Opout{OpId: genesisOpId, AssignmentType: out.Type, OutputIndex: uint32(i)}] = rgbcore.Assignment{Seal: out.Seal, State: out.State}
	}

	rows, err := s.db.Query(`SELECT blob FROM transitions WHERE contract_id = ?`, contractID[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var t rgbcore.Transition
		if _, err := decodeBlob(blob, &t); err != nil {
			return nil, err
		}
		applyTransition(state, t)
	}

	s.states[contractID] = state
	return state, nil
}

func applyTransition(state *rgbcore.ContractState, t rgbcore.Transition) {
	opid := rgbcore.TransitionOpId(t)
	for _, in := range t.Inputs {
		delete(state.Live, rgbcore.Opout{OpId: in.PrevId, AssignmentType: in.Type, OutputIndex: in.OutputIndex})
	}
	for i, out := range t.Outputs {
		state.Live[rgbcore.Opout{OpId: opid, AssignmentType: out.Type, OutputIndex: uint32(i)}] = rgbcore.Assignment{Seal: out.Seal, State: out.State}
	}
}

// ConsumeAnchor writes an anchor. Writes are append-only; a given txid
// may be written at most once.
func (s *Stash) ConsumeAnchor(anchor *rgbcore.Anchor) error {
	blob, err := encodeBlob(CurrentVersion, anchor)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO anchors (txid, blob) VALUES (?, ?)`, anchor.Txid[:], blob)
	if err != nil {
		return fmt.Errorf("consume_anchor(%s): %w", anchor.Txid, rgbcore.ErrWriteFailed)
	}
	return nil
}

// ConsumeBundle writes a contract's transition bundle under a witness
// txid, along with an index entry for every output opout so later
// outpoint-keyed lookups are O(1). Writes are idempotent: re-consuming
// the same bundle is a no-op, so Accept can be safely retried.
func (s *Stash) ConsumeBundle(contractID rgbcore.ContractId, bundle *rgbcore.Bundle, witnessTxid chainhash.Hash) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	blob, err := encodeBlob(CurrentVersion, bundle)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO bundles (contract_id, txid, blob) VALUES (?, ?, ?)`,
		contractID[:], witnessTxid[:], blob); err != nil {
		return fmt.Errorf("consume_bundle(%s): %w", witnessTxid, rgbcore.ErrWriteFailed)
	}

	for opid, t := range bundle.Revealed {
		tBlob, err := encodeBlob(CurrentVersion, t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO transitions (opid, contract_id, blob) VALUES (?, ?, ?)`,
			opid[:], contractID[:], tBlob); err != nil {
			return fmt.Errorf("consume_bundle(%s): %w", witnessTxid, rgbcore.ErrWriteFailed)
		}

		for i, out := range t.Outputs {
			if out.Seal.Blinded {
				continue
			}
			var txidBuf [32]byte
			copy(txidBuf[:], out.Seal.Txid[:])
			var voutBuf [4]byte
			binary.BigEndian.PutUint32(voutBuf[:], out.Seal.Vout)
			if _, err := tx.Exec(`INSERT OR IGNORE INTO outpoint_index
				(txid, vout, contract_id, opid, assignment_type, output_index) VALUES (?, ?, ?, ?, ?, ?)`,
				txidBuf[:], out.Seal.Vout, contractID[:], opid[:], uint16(out.Type), i); err != nil {
				return fmt.Errorf("consume_bundle(%s): %w", witnessTxid, rgbcore.ErrWriteFailed)
			}
		}

		for _, in := range t.Inputs {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO consumed_opouts (opid, assignment_type, output_index) VALUES (?, ?, ?)`,
				in.PrevId[:], uint16(in.Type), in.OutputIndex); err != nil {
				return fmt.Errorf("consume_bundle(%s): %w", witnessTxid, rgbcore.ErrWriteFailed)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	delete(s.states, contractID)
	return nil
}

// ConsumeGenesis writes a newly-learned genesis. Idempotent.
func (s *Stash) ConsumeGenesis(contractID rgbcore.ContractId, g *rgbcore.Genesis) error {
	blob, err := encodeBlob(CurrentVersion, g)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO genesis (contract_id, blob) VALUES (?, ?)`, contractID[:], blob)
	if err != nil {
		return fmt.Errorf("consume_genesis(%s): %w", contractID, rgbcore.ErrWriteFailed)
	}
	return nil
}

// ConsumeSchema writes a newly-learned schema blob. Idempotent.
func (s *Stash) ConsumeSchema(schemaID [32]byte, blob []byte) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO schemas (schema_id, blob) VALUES (?, ?)`, schemaID[:], blob)
	if err != nil {
		return fmt.Errorf("consume_schema(%x): %w", schemaID, rgbcore.ErrWriteFailed)
	}
	return nil
}

// IsConsumed reports whether an opout has already been spent by some
// transition recorded in the stash.
func (s *Stash) IsConsumed(o rgbcore.Opout) (bool, error) {
	row := s.db.QueryRow(`SELECT 1 FROM consumed_opouts WHERE opid = ? AND assignment_type = ? AND output_index = ?`,
		o.OpId[:], uint16(o.AssignmentType), o.OutputIndex)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// RollbackWitness undoes an eager write keyed by witness txid. This is
// never automatic, only an explicit caller-invoked recovery for a
// composition whose transaction was never broadcast or was replaced.
func (s *Stash) RollbackWitness(contractID rgbcore.ContractId, witnessTxid chainhash.Hash) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM anchors WHERE txid = ?`, witnessTxid[:]); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bundles WHERE contract_id = ? AND txid = ?`, contractID[:], witnessTxid[:]); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM outpoint_index WHERE txid = ? AND contract_id = ?`, witnessTxid[:], contractID[:]); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	delete(s.states, contractID)
	return nil
}
