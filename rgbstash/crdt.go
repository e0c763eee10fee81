package rgbstash

// OfferRecord is the CRDT-mergeable shape of a swap offer, grounded on
// original_source's src/rgb/crdt.rs: a local, mergeable list of public
// offers so two devices sharing one seed can reconcile independently
// created offers without clobbering each other. Payload is kept as given;
// no code in this module converts rgbswap.Offer to or from this shape.
type OfferRecord struct {
	OfferID   string
	Status    string
	UpdatedAt int64
	Payload   []byte
}

// MergeOffers merges two offer sets with last-writer-wins-per-record
// semantics keyed by OfferID: for any id present in both sets, the record
// with the greater UpdatedAt wins outright (RGB offers are immutable
// except for their Status field, so a single timestamp comparison per
// record is sufficient — no need for per-field vector clocks).
func MergeOffers(local, remote []OfferRecord) []OfferRecord {
	byID := make(map[string]OfferRecord, len(local)+len(remote))
	for _, o := range local {
		byID[o.OfferID] = o
	}
	for _, o := range remote {
		existing, ok := byID[o.OfferID]
		if !ok || o.UpdatedAt > existing.UpdatedAt {
			byID[o.OfferID] = o
		}
	}

	out := make([]OfferRecord, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	return out
}

// PersistOffers writes the merged offer set to durable storage.
func (s *Stash) PersistOffers(records []OfferRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS offers (
		offer_id TEXT PRIMARY KEY, status TEXT NOT NULL, updated_at INTEGER NOT NULL, payload BLOB NOT NULL)`); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := tx.Exec(`INSERT INTO offers (offer_id, status, updated_at, payload) VALUES (?, ?, ?, ?)
			ON CONFLICT(offer_id) DO UPDATE SET status=excluded.status, updated_at=excluded.updated_at, payload=excluded.payload
			WHERE excluded.updated_at > offers.updated_at`,
			r.OfferID, r.Status, r.UpdatedAt, r.Payload); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadOffers reads the locally-known offer set.
func (s *Stash) LoadOffers() ([]OfferRecord, error) {
	rows, err := s.db.Query(`SELECT offer_id, status, updated_at, payload FROM offers`)
	if err != nil {
		// The table may not exist yet if no offer has ever been
		// persisted; that is not an error, just an empty set.
		return nil, nil
	}
	defer rows.Close()

	var out []OfferRecord
	for rows.Next() {
		var r OfferRecord
		if err := rows.Scan(&r.OfferID, &r.Status, &r.UpdatedAt, &r.Payload); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
