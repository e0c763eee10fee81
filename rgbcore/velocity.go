package rgbcore

// VelocityHint is a contract-declared preference for how frequently an
// assignment type moves, used by the composer to pick which payer-owned
// PSBT output should receive a given change assignment. Grounded on
// original_source's rgb_velocity_hint()/ContractSuppl.velocity usage.
type VelocityHint uint8

const (
	VelocityHintDefault VelocityHint = iota
	VelocityHintFast
	VelocityHintNormal
	VelocityHintSlow
)

// VelocityPool groups payer-owned candidate vouts by velocity hint so the
// composer can cycle through same-class outputs, falling back to the
// default-velocity pool when no class-specific output is available.
type VelocityPool struct {
	byHint map[VelocityHint][]uint32
	cursor map[VelocityHint]int
}

func NewVelocityPool() *VelocityPool {
	return &VelocityPool{
		byHint: make(map[VelocityHint][]uint32),
		cursor: make(map[VelocityHint]int),
	}
}

// Add registers a candidate output index under the given velocity hint.
func (p *VelocityPool) Add(hint VelocityHint, voutIndex uint32) {
	p.byHint[hint] = append(p.byHint[hint], voutIndex)
}

// Next returns the next candidate output for the given hint, cycling
// through the class pool and falling back to the default-velocity pool,
// and false if neither pool has any entries.
func (p *VelocityPool) Next(hint VelocityHint) (uint32, bool) {
	if vout, ok := p.nextFrom(hint); ok {
		return vout, true
	}
	if hint != VelocityHintDefault {
		return p.nextFrom(VelocityHintDefault)
	}
	return 0, false
}

func (p *VelocityPool) nextFrom(hint VelocityHint) (uint32, bool) {
	pool := p.byHint[hint]
	if len(pool) == 0 {
		return 0, false
	}
	i := p.cursor[hint] % len(pool)
	p.cursor[hint] = i + 1
	return pool[i], true
}
