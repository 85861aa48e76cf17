package stake

import "fmt"

// Key layout mirrors spec.md §6 "Stake state keys": every key is namespaced
// by the custom action handler id, then a sub-namespace byte, following the
// same flat string-key-over-KV idiom as consensus/store.Store and
// consensus/potso/rewards.Ledger.
const (
	nsStakeholderIndex byte = 1 // {handler_id, 1, "StakeholderAddresses"}
	nsBalance          byte = 1 // {handler_id, 1, address}
	nsDelegation       byte = 2 // {handler_id, 2, address}
	nsCandidates       byte = 3 // {handler_id, 3}
	nsJail             byte = 4 // {handler_id, 4}
	nsBanned           byte = 5 // {handler_id, 5}
)

func stakeholderIndexKey(handlerID uint32) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d/StakeholderAddresses", handlerID, nsStakeholderIndex))
}

func balanceKey(handlerID uint32, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d/%x", handlerID, nsBalance, addr))
}

func delegationKey(handlerID uint32, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d/%x", handlerID, nsDelegation, addr))
}

func candidatesKey(handlerID uint32) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d", handlerID, nsCandidates))
}

func jailKey(handlerID uint32) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d", handlerID, nsJail))
}

func bannedKey(handlerID uint32) []byte {
	return []byte(fmt.Sprintf("stake/%d/%d", handlerID, nsBanned))
}
