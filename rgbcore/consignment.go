package rgbcore

// Consignment is a self-contained slice of the contract graph being
// transmitted: schema + genesis + bundles + anchors + the terminal seals
// where state is being transferred to the receiver.
type Consignment struct {
	ContractId ContractId
	SchemaId   [32]byte
	Genesis    Genesis
	Bundles    []*Bundle
	Anchors    []*Anchor
	Terminals  []Seal
}

// MaxBundles and MaxTerminals bound a single consignment; exceeding
// either is a TooManyBundles/TooManyTerminals composer error.
const (
	MaxBundles   = 4096
	MaxTerminals = 256

	// MaxConsignmentSize is the strict-encoding size bound for a single
	// wire-format consignment (raw or armored).
	MaxConsignmentSize = 0xFFFFFF
)

// PublicOpouts returns every opout exposed by this consignment's revealed
// bundles, used by the acceptor to index newly-learned state.
func (c *Consignment) PublicOpouts() []Opout {
	var out []Opout
	for _, b := range c.Bundles {
		for opid, t := range b.Revealed {
			for i, o := range t.Outputs {
				out = append(out, Opout{
					OpId:           opid,
					AssignmentType: o.Type,
					OutputIndex:    uint32(i),
				})
			}
		}
	}
	return out
}
