package indexer

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// MaxFeeRate is the highest provider rate, in sat/vB, taken at face value.
// Tiers above it are treated as unusable.
const MaxFeeRate = 10_000

// FeeEstimate is one tier of the provider's fee table.
type FeeEstimate struct {
	Target int     // confirmation target in blocks
	Rate   float64 // sat/vB
}

// FeeEstimates fetches GET /fee-estimates, sorted by target. Keys that are
// not positive integers and rates outside (0, MaxFeeRate] are dropped.
func (c *Client) FeeEstimates(ctx context.Context) ([]FeeEstimate, error) {
	body, err := c.get(ctx, "/fee-estimates", nil)
	if err != nil {
		return nil, err
	}
	var table map[string]float64
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, networkErr("decode /fee-estimates: %v", err)
	}

	estimates := make([]FeeEstimate, 0, len(table))
	for k, v := range table {
		target, err := strconv.Atoi(k)
		if err != nil || target <= 0 || !(v > 0 && v <= MaxFeeRate) {
			continue
		}
		estimates = append(estimates, FeeEstimate{Target: target, Rate: v})
	}
	sort.Slice(estimates, func(i, j int) bool { return estimates[i].Target < estimates[j].Target })
	return estimates, nil
}

// pickFeeRate returns the rate for target, else the nearest target above
// it, else the nearest below. ok is false for an empty table.
func pickFeeRate(estimates []FeeEstimate, target int) (rate float64, ok bool) {
	if len(estimates) == 0 {
		return 0, false
	}
	i := sort.Search(len(estimates), func(i int) bool { return estimates[i].Target >= target })
	if i < len(estimates) {
		return estimates[i].Rate, true
	}
	return estimates[len(estimates)-1].Rate, true
}

// FeeRate returns the medium-priority fee rate in whole sat/vB, rounded up.
// It never fails: a missing or unusable fee table yields the fallback rate.
func (c *Client) FeeRate(ctx context.Context) uint64 {
	estimates, err := c.FeeEstimates(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Uint64("fallback", c.fallbackFee).Msg("fee estimate unavailable, using fallback")
		return c.fallbackFee
	}
	rate, ok := pickFeeRate(estimates, c.feeTarget)
	if !ok {
		c.logger.Warn().Uint64("fallback", c.fallbackFee).Msg("fee table empty, using fallback")
		return c.fallbackFee
	}
	sats := uint64(math.Ceil(rate))
	c.logger.Debug().Int("target", c.feeTarget).Float64("estimate", rate).Uint64("rate", sats).Msg("fee rate")
	return sats
}
