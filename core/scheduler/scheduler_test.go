package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/YouWishh/oceans-subnet/core/chainadapter"
	"github.com/YouWishh/oceans-subnet/core/liquidityingest"
	"github.com/YouWishh/oceans-subnet/core/reward"
	"github.com/YouWishh/oceans-subnet/core/statecache"
	"github.com/YouWishh/oceans-subnet/core/voteclient"
	"github.com/YouWishh/oceans-subnet/core/voteingest"
	"github.com/YouWishh/oceans-subnet/internal/testutil"
)

func newCache(t *testing.T) *statecache.Cache {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })
	store, err := statecache.Open("file://" + sb.Root)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return statecache.New(store)
}

func TestEpochLengthStaysWithinAcceptedRangeDuringDiscovery(t *testing.T) {
	mock := chainadapter.NewMockAdapter()
	mock.Block = 1000
	mock.Tempos[7] = 100
	mock.NextEpochStarts[7] = 1100
	mock.Metagraphs[7] = chainadapter.Metagraph{UIDs: []uint64{1}, Coldkeys: []string{"ck1"}}

	cache := newCache(t)
	offlineClient := voteclient.NewHTTPVoteClient("TODO", map[uint64]struct{}{7: {}}, nil)
	votes := voteingest.New(offlineClient, cache, nil)
	liq := liquidityingest.New(mock, cache, 7, map[uint64]struct{}{7: {}}, 2, nil)
	calc := reward.New(cache, nil)

	sched := New(mock, votes, liq, calc, Config{
		Subnet:                7,
		NominalBlockTime:      10 * time.Millisecond,
		StatusLogIntervalBlks: 2,
	}, nil, nil)

	length, err := sched.discoverEpochLength(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if length != 100 && length != 101 {
		t.Fatalf("expected epoch length in {100,101}, got %d", length)
	}
}

func TestRunTickSubmitsWeightsAndAlwaysSyncs(t *testing.T) {
	mock := chainadapter.NewMockAdapter()
	mock.Block = 500
	mock.Metagraphs[7] = chainadapter.Metagraph{UIDs: []uint64{0, 1}, Coldkeys: []string{"ck-a", "ck-b"}}

	cache := newCache(t)
	cache.SetSubnetWeights(map[uint64]float64{1: 1.0})
	cache.SetLiquidity(map[uint64]map[uint64]float64{1: {0: 50, 1: 50}})

	offlineClient := voteclient.NewHTTPVoteClient("TODO", map[uint64]struct{}{7: {}}, nil)
	votes := voteingest.New(offlineClient, cache, nil)
	liq := liquidityingest.New(mock, cache, 7, map[uint64]struct{}{7: {}}, 2, nil)
	calc := reward.New(cache, nil)

	sched := New(mock, votes, liq, calc, Config{
		Subnet:           7,
		NominalBlockTime: time.Millisecond,
	}, nil, nil)

	// runTick itself never reads CurrentBlock, so only the finally-step sync
	// can consume this injected one-shot failure.
	mock.FailNext["CurrentBlock"] = context.DeadlineExceeded

	if err := sched.runTick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.Submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(mock.Submitted))
	}
	if _, pending := mock.FailNext["CurrentBlock"]; pending {
		t.Fatal("expected the finally-step chain sync to call CurrentBlock")
	}
	if sched.lastTick.RewardVectorSum <= 0 {
		t.Fatalf("expected a positive reward vector sum, got %v", sched.lastTick.RewardVectorSum)
	}
	if sched.lastTick.TickDuration <= 0 {
		t.Fatalf("expected a recorded tick duration, got %v", sched.lastTick.TickDuration)
	}
}

func TestStopCausesRunToExitPromptly(t *testing.T) {
	mock := chainadapter.NewMockAdapter()
	mock.Block = 0
	mock.Tempos[7] = 1000
	mock.NextEpochStarts[7] = 1000000
	mock.Metagraphs[7] = chainadapter.Metagraph{UIDs: []uint64{0}, Coldkeys: []string{"ck-a"}}

	cache := newCache(t)
	offlineClient := voteclient.NewHTTPVoteClient("TODO", map[uint64]struct{}{7: {}}, nil)
	votes := voteingest.New(offlineClient, cache, nil)
	liq := liquidityingest.New(mock, cache, 7, map[uint64]struct{}{7: {}}, 2, nil)
	calc := reward.New(cache, nil)

	sched := New(mock, votes, liq, calc, Config{
		Subnet:           7,
		NominalBlockTime: time.Millisecond,
	}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	sched.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to exit after Stop")
	}
}
