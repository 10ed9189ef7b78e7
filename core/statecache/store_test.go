package statecache

import (
	"testing"

	"github.com/YouWishh/oceans-subnet/internal/testutil"
)

func openTestStore(t *testing.T) (*FileStore, *testutil.Sandbox) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })

	store, err := Open("file://" + sb.Root)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, sb
}

func TestPersistVotesIsIdempotentByNaturalKey(t *testing.T) {
	store, _ := openTestStore(t)

	snaps := []VoteSnapshot{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
		{VoterHotkey: "hk-b", BlockHeight: 100, VoterStake: 2.0, Weights: map[uint64]float64{1: 1.0}},
	}
	if err := store.PersistVotes(snaps); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := store.PersistVotes(snaps); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	got, err := store.LatestVotes()
	if err != nil {
		t.Fatalf("latest votes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after duplicate persist, got %d", len(got))
	}
}

func TestLatestVotesOrderedByBlockHeightThenIDDescending(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.PersistVotes([]VoteSnapshot{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
		{VoterHotkey: "hk-b", BlockHeight: 200, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
		{VoterHotkey: "hk-c", BlockHeight: 200, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
	}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := store.LatestVotes()
	if err != nil {
		t.Fatalf("latest votes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].VoterHotkey != "hk-c" || got[1].VoterHotkey != "hk-b" || got[2].VoterHotkey != "hk-a" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestVotesChangedReflectsNaturalKeyPresence(t *testing.T) {
	store, _ := openTestStore(t)

	changed, err := store.VotesChanged(100, "hk-a")
	if err != nil {
		t.Fatalf("votes changed: %v", err)
	}
	if !changed {
		t.Fatal("expected changed=true for unseen key")
	}

	if err := store.PersistVotes([]VoteSnapshot{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
	}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	changed, err = store.VotesChanged(100, "hk-a")
	if err != nil {
		t.Fatalf("votes changed: %v", err)
	}
	if changed {
		t.Fatal("expected changed=false after persisting the same natural key")
	}
}

func TestPersistLiquidityIsIdempotentByNaturalKey(t *testing.T) {
	store, _ := openTestStore(t)

	snaps := []LiquiditySnapshot{
		{WalletHotkey: "coldkey-1", SubnetID: 1, BlockHeight: 500, TaoValue: 10.5},
		{WalletHotkey: "coldkey-2", SubnetID: 1, BlockHeight: 500, TaoValue: 3.2},
	}
	if err := store.PersistLiquidity(snaps); err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if err := store.PersistLiquidity(snaps); err != nil {
		t.Fatalf("second persist: %v", err)
	}

	got, err := store.LatestLiquidity()
	if err != nil {
		t.Fatalf("latest liquidity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after duplicate persist, got %d", len(got))
	}
}

func TestStoreReplaysLogOnReopen(t *testing.T) {
	store, sb := openTestStore(t)

	if err := store.PersistVotes([]VoteSnapshot{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
	}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open("file://" + sb.Root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	changed, err := reopened.VotesChanged(100, "hk-a")
	if err != nil {
		t.Fatalf("votes changed: %v", err)
	}
	if changed {
		t.Fatal("expected replayed log to recognise the existing natural key")
	}

	got, err := reopened.LatestVotes()
	if err != nil {
		t.Fatalf("latest votes: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 replayed row, got %d", len(got))
	}
}
