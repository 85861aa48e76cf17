package genesis

import (
	"encoding/hex"
	"fmt"
	"strings"

	"tendercore/consensus/types"
	"tendercore/crypto"
)

// InitialValidators converts the genesis validator list into C1's
// bootstrap input: one types.Validator per entry, address decoded from
// its bech32 form and public key from hex, weighted by Power (spec.md
// §4.1 "Initial committee: read from genesis").
func (s *GenesisSpec) InitialValidators() ([]types.Validator, error) {
	out := make([]types.Validator, 0, len(s.Validators))
	for i, v := range s.Validators {
		if v.Power == 0 {
			return nil, fmt.Errorf("genesis: validator %d has zero power", i)
		}
		addr, err := crypto.DecodeAddress(v.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: validator %d address: %w", i, err)
		}
		pub, err := hex.DecodeString(strings.TrimPrefix(v.PubKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("genesis: validator %d pubkey: %w", i, err)
		}
		var out20 [20]byte
		copy(out20[:], addr.Bytes())
		out = append(out, types.Validator{
			PublicKey: pub,
			Address:   out20,
			Weight:    v.Power,
		})
	}
	return out, nil
}
