package config

import "fmt"

// ValidateConsensus rejects a timeout configuration that could stall the
// worker or wedge it in a commit-timeout loop.
func ValidateConsensus(c ConsensusConfig) error {
	if c.ProposeBaseMs <= 0 || c.PrevoteBaseMs <= 0 || c.PrecommitBaseMs <= 0 {
		return fmt.Errorf("consensus: step timeout base must be positive")
	}
	if c.CommitTimeoutMs <= 0 {
		return fmt.Errorf("consensus: commit timeout must be positive")
	}
	if c.AllowedFutureViewsGap == 0 {
		return fmt.Errorf("consensus: allowed future views gap must be positive")
	}
	if c.SortitionExpectation <= 0 {
		return fmt.Errorf("consensus: sortition expectation must be positive")
	}
	return nil
}
