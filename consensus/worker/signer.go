package worker

import (
	"crypto/sha256"
	"fmt"

	"tendercore/consensus/sortition"
	"tendercore/consensus/types"
	"tendercore/crypto"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer is the worker's own signing identity: one secp256k1 key for votes
// and proposals (shared with the rest of the chain, per crypto.PrivateKey)
// and one VRF keypair for sortition (spec.md §4.3/§4.5 "engine_signer").
type Signer struct {
	key *crypto.PrivateKey
	vrf *sortition.Signer
}

// NewSigner pairs an existing chain key with a VRF keypair.
func NewSigner(key *crypto.PrivateKey, vrf *sortition.Signer) *Signer {
	return &Signer{key: key, vrf: vrf}
}

func (s *Signer) Address() [20]byte {
	var addr [20]byte
	copy(addr[:], s.key.PubKey().Address().Bytes())
	return addr
}

func (s *Signer) PublicKey() []byte {
	return ethcrypto.FromECDSAPub(s.key.PubKey().PublicKey)
}

func (s *Signer) VRF() *sortition.Signer { return s.vrf }

// signVote signs the canonical (round, block_hash) payload, matching what
// ApplyReportDoubleVote later recovers via ethcrypto.SigToPub.
func (s *Signer) signVote(round types.Round, blockHash []byte) (sig []byte, err error) {
	digest := voteDigest(round, blockHash)
	sig, err = ethcrypto.Sign(digest[:], s.key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("worker: sign vote: %w", err)
	}
	return sig, nil
}

func voteDigest(round types.Round, blockHash []byte) [32]byte {
	buf := make([]byte, 0, 24+len(blockHash))
	buf = appendUint64(buf, round.Height)
	buf = appendUint64(buf, round.View)
	buf = append(buf, byte(round.Step))
	buf = append(buf, blockHash...)
	return sha256.Sum256(buf)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}
