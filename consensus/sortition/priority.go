// Package sortition implements C3: VRF-based sub-user sortition used to
// pick proposers and weight priorities without a trusted leader schedule
// (spec.md §4.3).
package sortition

import (
	"crypto/sha256"
	"encoding/binary"

	"tendercore/consensus/types"
)

// Config is the per-round sortition parameterization.
type Config struct {
	TotalPower  uint64
	Expectation float64
}

// CreateHighestPriorityInfo runs the three-step sortition: prove, draw, pick
// the maximum candidate priority over the drawn sub-users (spec.md §4.3).
// A nil result means the signer drew zero sub-users this round.
func CreateHighestPriorityInfo(seed []byte, signer *Signer, signerIndex uint32, votingPower uint64, cfg Config) (*types.PriorityInfo, error) {
	vrfHash, proof := signer.prove(seed)
	j := draw(votingPower, cfg.TotalPower, cfg.Expectation, vrfHash)
	if j == 0 {
		return nil, nil
	}

	var best [32]byte
	var bestIdx uint64
	for subUserIdx := uint64(0); subUserIdx < j; subUserIdx++ {
		candidate := candidatePriority(vrfHash, subUserIdx)
		if subUserIdx == 0 || bytesGreater(candidate, best) {
			best = candidate
			bestIdx = subUserIdx
		}
	}
	return &types.PriorityInfo{
		SignerIndex:       signerIndex,
		Priority:          best,
		SubUserIndex:      bestIdx,
		NumberOfElections: j,
		VRFHash:           vrfHash,
		VRFProof:          proof,
	}, nil
}

// Verify recomputes and checks a foreign PriorityInfo (spec.md §4.3).
func Verify(info *types.PriorityInfo, seed []byte, signerPubKey []byte, votingPower uint64, cfg Config) error {
	if info == nil {
		return ErrNoElection
	}
	if err := verifyHash(signerPubKey, seed, info.VRFProof, info.VRFHash); err != nil {
		return err
	}
	j := draw(votingPower, cfg.TotalPower, cfg.Expectation, info.VRFHash)
	if info.SubUserIndex >= j {
		return ErrSubUserOutOfRange
	}
	want := candidatePriority(info.VRFHash, info.SubUserIndex)
	if want != info.Priority {
		return ErrPriorityMismatch
	}
	return nil
}

func candidatePriority(vrfHash [32]byte, subUserIdx uint64) [32]byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, subUserIdx)
	concatenated := make([]byte, 0, 32+8)
	concatenated = append(concatenated, vrfHash[:]...)
	concatenated = append(concatenated, buf...)
	return sha256.Sum256(concatenated)
}

func bytesGreater(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
