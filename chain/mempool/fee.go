package mempool

import "context"

// EstimateFee maps a confirmation-target tier to a fee rate in
// satoshis-per-vbyte, bridging mempool.space's fee tiers into a single
// fee-rate lookup.
func (r *Resolver) EstimateFee(ctx context.Context, confTarget uint32) (int64, error) {
	fees, err := r.client.GetFeeEstimates(ctx)
	if err != nil {
		return 0, err
	}
	switch {
	case confTarget <= 1:
		return fees.FastestFee, nil
	case confTarget <= 3:
		return fees.HalfHourFee, nil
	case confTarget <= 6:
		return fees.HourFee, nil
	default:
		return fees.EconomyFee, nil
	}
}
