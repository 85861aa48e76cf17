package stake

import (
	"testing"

	"tendercore/storage"
)

func addrOf(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestState(t *testing.T) *State {
	t.Helper()
	return New(storage.NewMemDB(), 7)
}

func TestTransferCCSMovesBalance(t *testing.T) {
	s := newTestState(t)
	from, to := addrOf(1), addrOf(2)
	if err := s.setBalance(from, 100); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if err := s.ApplyTransfer(TransferCCS{From: from, To: to, Quantity: 40}); err != nil {
		t.Fatalf("ApplyTransfer: %v", err)
	}
	fromBal, _ := s.getBalance(from)
	toBal, _ := s.getBalance(to)
	if fromBal != 60 || toBal != 40 {
		t.Fatalf("unexpected balances: from=%d to=%d", fromBal, toBal)
	}
}

func TestTransferCCSInsufficientBalance(t *testing.T) {
	s := newTestState(t)
	from, to := addrOf(1), addrOf(2)
	if err := s.ApplyTransfer(TransferCCS{From: from, To: to, Quantity: 1}); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

type fakeValidators struct{ members map[[20]byte]bool }

func (f fakeValidators) ContainsAddress(addr [20]byte) bool { return f.members[addr] }

func TestDelegateRequiresCurrentValidator(t *testing.T) {
	s := newTestState(t)
	from, to := addrOf(1), addrOf(2)
	s.setBalance(from, 100)
	err := s.ApplyDelegate(DelegateCCS{From: from, To: to, Quantity: 10}, fakeValidators{members: map[[20]byte]bool{}})
	if err != ErrNotAValidator {
		t.Fatalf("expected ErrNotAValidator, got %v", err)
	}
	err = s.ApplyDelegate(DelegateCCS{From: from, To: to, Quantity: 10}, fakeValidators{members: map[[20]byte]bool{to: true}})
	if err != nil {
		t.Fatalf("ApplyDelegate: %v", err)
	}
	delegations, _ := s.getDelegations(from)
	if len(delegations) != 1 || delegations[0].Amount != 10 {
		t.Fatalf("unexpected delegations: %+v", delegations)
	}
}

func TestRevokeReturnsBalance(t *testing.T) {
	s := newTestState(t)
	from, to := addrOf(1), addrOf(2)
	s.setBalance(from, 100)
	s.ApplyDelegate(DelegateCCS{From: from, To: to, Quantity: 30}, fakeValidators{members: map[[20]byte]bool{to: true}})
	if err := s.ApplyRevoke(Revoke{From: from, To: to, Quantity: 10}); err != nil {
		t.Fatalf("ApplyRevoke: %v", err)
	}
	bal, _ := s.getBalance(from)
	if bal != 80 {
		t.Fatalf("balance after revoke = %d, want 80", bal)
	}
	if err := s.ApplyRevoke(Revoke{From: from, To: to, Quantity: 1000}); err != ErrInsufficientDelegation {
		t.Fatalf("expected ErrInsufficientDelegation, got %v", err)
	}
}

func TestSelfNominateRejectsBannedAddress(t *testing.T) {
	s := newTestState(t)
	addr := addrOf(9)
	s.setBalance(addr, 100)
	banned, _ := s.loadBanned()
	banned[addr] = true
	s.saveBanned(banned)
	err := s.ApplySelfNominate(SelfNominate{Address: addr, Deposit: 10, TermID: 1}, 50)
	if err != ErrBanned {
		t.Fatalf("expected ErrBanned, got %v", err)
	}
}

func TestSelfNominateRejectsOversizedMetadata(t *testing.T) {
	s := newTestState(t)
	addr := addrOf(9)
	meta := make([]byte, maxMetadataBytes+1)
	err := s.ApplySelfNominate(SelfNominate{Address: addr, Deposit: 1, Metadata: meta}, 0)
	if err != ErrMetadataTooLarge {
		t.Fatalf("expected ErrMetadataTooLarge, got %v", err)
	}
}

func TestFeeDistributeSumsToTotal(t *testing.T) {
	author := addrOf(1)
	stakes := []FeeShare{{Address: addrOf(2), Amount: 30}, {Address: addrOf(3), Amount: 70}}
	shares, authorAmount := FeeDistribute(author, 100, 150, stakes)
	var sum uint64 = authorAmount
	for _, sh := range shares {
		sum += sh.Amount
	}
	if sum != 150 {
		t.Fatalf("shares+author = %d, want 150", sum)
	}
	if authorAmount < 50 {
		t.Fatalf("author should get at least the 50 remainder, got %d", authorAmount)
	}
}

func TestFeeDistributeNoStakesGivesEverythingToAuthor(t *testing.T) {
	author := addrOf(1)
	_, authorAmount := FeeDistribute(author, 100, 150, nil)
	if authorAmount != 150 {
		t.Fatalf("authorAmount = %d, want 150", authorAmount)
	}
}
