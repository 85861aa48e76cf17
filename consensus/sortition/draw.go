package sortition

import (
	"math/big"
)

// maxSubUsers bounds how many sub-users a single draw can ever report. No
// realistic (votingPower, totalPower, expectation) triple drives the
// binomial tail past a few hundred draws; this is a safety backstop against
// a pathological configuration spinning the loop below forever.
const maxSubUsers = 10_000

// draw is the binomial sub-user sampler: given a signer's voting power out
// of the total, the committee's expected size, and 32 bytes of VRF output
// used as the source of randomness, it returns how many "sub-users" this
// signer drew for the round (spec.md §4.3). There is no committee-sampling
// library anywhere in the example pack; this follows the Algorand
// cryptographic-sortition construction -- walk the binomial CDF with
// arbitrary-precision arithmetic until it exceeds a hash-derived uniform
// sample in [0, 1) -- which is what the distilled formula in
// vrf_sortition.rs's `draw(voting_power, total_power, expectation,
// vrf_hash)` call computes (see DESIGN.md Open Question 1).
func draw(votingPower, totalPower uint64, expectation float64, vrfHash [32]byte) uint64 {
	if votingPower == 0 || totalPower == 0 || expectation <= 0 {
		return 0
	}
	p := expectation / float64(totalPower)
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return votingPower
	}

	target := hashToUnitInterval(vrfHash)
	n := new(big.Float).SetPrec(200).SetUint64(votingPower)
	prob := big.NewFloat(p).SetPrec(200)
	oneMinusP := new(big.Float).SetPrec(200).Sub(big.NewFloat(1), prob)

	// pmf(0) = (1-p)^n, built by repeated squaring-free multiplication; n is
	// bounded in practice (voting power of a single validator), so a plain
	// loop is fine.
	pmf := new(big.Float).SetPrec(200).SetInt64(1)
	for i := uint64(0); i < votingPower; i++ {
		pmf.Mul(pmf, oneMinusP)
	}

	cdf := new(big.Float).SetPrec(200).Copy(pmf)
	if cdf.Cmp(target) > 0 {
		return 0
	}

	limit := votingPower
	if limit > maxSubUsers {
		limit = maxSubUsers
	}
	for j := uint64(0); j < limit; j++ {
		// pmf(j+1) = pmf(j) * (n-j)/(j+1) * p/(1-p)
		remaining := new(big.Float).SetPrec(200).Sub(n, new(big.Float).SetPrec(200).SetUint64(j))
		pmf.Mul(pmf, remaining)
		pmf.Quo(pmf, new(big.Float).SetPrec(200).SetUint64(j+1))
		pmf.Mul(pmf, prob)
		pmf.Quo(pmf, oneMinusP)
		cdf.Add(cdf, pmf)
		if cdf.Cmp(target) > 0 {
			return j + 1
		}
	}
	return limit
}

// hashToUnitInterval interprets a 32-byte hash as a big-endian integer and
// scales it into [0, 1) at 200 bits of precision.
func hashToUnitInterval(hash [32]byte) *big.Float {
	asInt := new(big.Int).SetBytes(hash[:])
	numerator := new(big.Float).SetPrec(200).SetInt(asInt)
	denominator := new(big.Float).SetPrec(200).SetInt(new(big.Int).Lsh(big.NewInt(1), 256))
	return numerator.Quo(numerator, denominator)
}
