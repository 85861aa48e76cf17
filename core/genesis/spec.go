// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// GenesisSpec is the on-disk description of a chain's starting committee
// (spec.md §4.1 "Initial committee: read from genesis"). Account balances,
// native token issuance, and role grants belong to the execution layer this
// module does not implement.
type GenesisSpec struct {
	GenesisTime string          `json:"genesisTime"`
	Validators  []ValidatorSpec `json:"validators"`
	ChainID     *uint64         `json:"chainId,omitempty"`

	genesisTimestamp time.Time
	chainIDValue     uint64
	hasChainID       bool
}

type ValidatorSpec struct {
	Address           string `json:"address"`
	Power             uint64 `json:"power"`
	PubKey            string `json:"pubKey,omitempty"`
	Moniker           string `json:"moniker,omitempty"`
	AutoPopulateLocal bool   `json:"autoPopulateLocal,omitempty"`
}

type ValidatorAutoPopulateInfo struct {
	Address string
	PubKey  string
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }
func (s *GenesisSpec) ChainIDValue() (uint64, bool) {
	if s.hasChainID {
		return s.chainIDValue, true
	}
	return 0, false
}

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	s.hasChainID = false
	s.chainIDValue = 0
	if s.ChainID != nil {
		s.hasChainID = true
		s.chainIDValue = *s.ChainID
	}

	validatorAddresses := make(map[string]struct{}, len(s.Validators))
	autoPopulateCount := 0
	for i := range s.Validators {
		v := &s.Validators[i]
		if v.Power == 0 {
			return fmt.Errorf("validator[%d]: power must be greater than zero", i)
		}

		if v.AutoPopulateLocal {
			autoPopulateCount++
			if strings.TrimSpace(v.Address) != "" {
				return fmt.Errorf("validator[%d]: address must be omitted when autoPopulateLocal is set", i)
			}
			if strings.TrimSpace(v.PubKey) != "" {
				pk := strings.TrimSpace(v.PubKey)
				pk = strings.TrimPrefix(pk, "0x")
				if _, err := hex.DecodeString(pk); err != nil {
					return fmt.Errorf("validator[%d]: invalid pubKey: %w", i, err)
				}
			}
			continue
		}

		if strings.TrimSpace(v.Address) == "" {
			return fmt.Errorf("validator[%d]: address must be provided", i)
		}
		addr, err := ParseBech32Account(v.Address)
		if err != nil {
			return fmt.Errorf("validator[%d]: %w", i, err)
		}
		if strings.TrimSpace(v.PubKey) != "" {
			pk := strings.TrimSpace(v.PubKey)
			pk = strings.TrimPrefix(pk, "0x")
			if _, err := hex.DecodeString(pk); err != nil {
				return fmt.Errorf("validator[%d]: invalid pubKey: %w", i, err)
			}
		}
		addrKey := string(addr[:])
		if _, exists := validatorAddresses[addrKey]; exists {
			return fmt.Errorf("validator[%d]: duplicate address %q", i, v.Address)
		}
		validatorAddresses[addrKey] = struct{}{}
	}
	if autoPopulateCount > 1 {
		return fmt.Errorf("validators: multiple entries marked for local auto-population")
	}
	return nil
}

// ResolveValidatorAutoPopulate inspects the validator list and, if a validator
// is marked for local auto-population, fills it using the provided information.
// The spec is revalidated after mutation so downstream consumers observe a
// fully-resolved configuration.
func (s *GenesisSpec) ResolveValidatorAutoPopulate(info *ValidatorAutoPopulateInfo) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}

	if err := s.validate(); err != nil {
		return false, err
	}

	var target *ValidatorSpec
	for i := range s.Validators {
		if s.Validators[i].AutoPopulateLocal {
			target = &s.Validators[i]
			break
		}
	}
	if target == nil {
		return false, nil
	}

	if info == nil {
		return false, fmt.Errorf("validator auto-populate info required")
	}

	addr := strings.TrimSpace(info.Address)
	if addr == "" {
		return false, fmt.Errorf("validator auto-populate address must be provided")
	}
	if _, err := ParseBech32Account(addr); err != nil {
		return false, fmt.Errorf("validator auto-populate address invalid: %w", err)
	}

	originalAddress := target.Address
	originalPubKey := target.PubKey
	originalFlag := target.AutoPopulateLocal

	target.Address = addr

	if strings.TrimSpace(target.PubKey) == "" && strings.TrimSpace(info.PubKey) != "" {
		normalized := strings.TrimSpace(info.PubKey)
		normalized = strings.TrimPrefix(normalized, "0x")
		if _, err := hex.DecodeString(normalized); err != nil {
			target.Address = originalAddress
			return false, fmt.Errorf("validator auto-populate pubKey invalid: %w", err)
		}
		target.PubKey = strings.ToLower(normalized)
	}

	target.AutoPopulateLocal = false

	if err := s.validate(); err != nil {
		target.Address = originalAddress
		target.PubKey = originalPubKey
		target.AutoPopulateLocal = originalFlag
		return false, fmt.Errorf("validate resolved spec: %w", err)
	}

	return true, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}
