package rgbfreighter

import (
	"github.com/rgb-wg/rgb-wallet/rgbcore"
)

// AssembleParams bundles what the consignment assembler needs.
type AssembleParams struct {
	ContractId rgbcore.ContractId
	Genesis    rgbcore.Genesis
	SchemaId   [32]byte
	Bundles    map[rgbcore.ContractId]*rgbcore.Bundle
	Anchors    []*rgbcore.Anchor
	Terminals  []rgbcore.Seal
	Strict     bool

	MaxBundles   int
	MaxTerminals int
}

// Assemble builds one or more consignments from the given bundles and
// anchors. In strict mode, one consignment per terminal seal is returned;
// in non-strict mode a single consignment covering the union is returned.
// Only the bundles passed in are included: inputs are not followed back
// to genesis. Within the primary contract, a transition with no output on
// a wanted terminal is concealed whole; transitions of other contracts
// stay revealed.
func Assemble(p AssembleParams) ([]*rgbcore.Consignment, error) {
	maxBundles := p.MaxBundles
	if maxBundles == 0 {
		maxBundles = rgbcore.MaxBundles
	}
	maxTerminals := p.MaxTerminals
	if maxTerminals == 0 {
		maxTerminals = rgbcore.MaxTerminals
	}
	if len(p.Terminals) > maxTerminals {
		return nil, rgbcore.ErrTooManyTerminals
	}

	if !p.Strict {
		c, err := assembleOne(p, p.Terminals, maxBundles)
		if err != nil {
			return nil, err
		}
		return []*rgbcore.Consignment{c}, nil
	}

	var out []*rgbcore.Consignment
	for _, term := range p.Terminals {
		c, err := assembleOne(p, []rgbcore.Seal{term}, maxBundles)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// assembleOne builds a single consignment scoped to the given terminals,
// concealing each primary-contract transition that has no output on any
// of them.
func assembleOne(p AssembleParams, terminals []rgbcore.Seal, maxBundles int) (*rgbcore.Consignment, error) {
	wanted := make(map[rgbcore.Seal]struct{}, len(terminals))
	for _, t := range terminals {
		wanted[t] = struct{}{}
	}

	out := &rgbcore.Consignment{
		ContractId: p.ContractId,
		SchemaId:   p.SchemaId,
		Genesis:    p.Genesis,
		Anchors:    p.Anchors,
		Terminals:  terminals,
	}

	count := 0
	for _, bundle := range p.Bundles {
		scoped := rgbcore.NewBundle(bundle.ContractId)
		for opid, t := range bundle.Revealed {
			onPath := false
			for _, o := range t.Outputs {
				if _, ok := wanted[o.Seal]; ok {
					onPath = true
					break
				}
			}
			if onPath || bundle.ContractId != p.ContractId {
				scoped.Revealed[opid] = t
			} else {
				scoped.Concealed[opid] = t.Inputs
			}
		}
		for opid, inputs := range bundle.Concealed {
			scoped.Concealed[opid] = inputs
		}

		count++
		if count > maxBundles {
			return nil, rgbcore.ErrTooManyBundles
		}
		out.Bundles = append(out.Bundles, scoped)
	}

	return out, nil
}
