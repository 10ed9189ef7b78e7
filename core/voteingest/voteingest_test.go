package voteingest

import (
	"context"
	"testing"

	"github.com/YouWishh/oceans-subnet/core/statecache"
	"github.com/YouWishh/oceans-subnet/core/voteclient"
	"github.com/YouWishh/oceans-subnet/internal/testutil"
)

type fakeVoteClient struct {
	votes []voteclient.Vote
	err   error
}

func (f *fakeVoteClient) LatestVotes(ctx context.Context) ([]voteclient.Vote, error) {
	return f.votes, f.err
}

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

func TestFetchAndStoreAggregatesStakeWeightedMass(t *testing.T) {
	client := &fakeVoteClient{votes: []voteclient.Vote{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 2.0, Weights: map[uint64]float64{1: 1.0, 2: 1.0}},
		{VoterHotkey: "hk-b", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{2: 1.0}},
	}}
	cache := newCache(t)
	in := New(client, cache, nil)

	pairs, persisted, err := in.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if persisted != 2 {
		t.Fatalf("expected 2 persisted, got %d", persisted)
	}

	weights := cache.SubnetWeights()
	// raw[1]=2*1=2, raw[2]=2*1+1*1=3, total=5 -> subnet1=0.4, subnet2=0.6
	if weights[1] < 0.399 || weights[1] > 0.401 {
		t.Fatalf("expected subnet 1 weight ~0.4, got %v", weights[1])
	}
	if weights[2] < 0.599 || weights[2] > 0.601 {
		t.Fatalf("expected subnet 2 weight ~0.6, got %v", weights[2])
	}
}

func TestFetchAndStoreIsIdempotentAcrossCalls(t *testing.T) {
	client := &fakeVoteClient{votes: []voteclient.Vote{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
		{VoterHotkey: "hk-b", BlockHeight: 100, VoterStake: 1.0, Weights: map[uint64]float64{1: 1.0}},
	}}
	cache := newCache(t)
	in := New(client, cache, nil)

	_, persisted, err := in.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if persisted != 2 {
		t.Fatalf("expected 2 newly persisted on first call, got %d", persisted)
	}
	snaps, err := cache.LatestVotes()
	if err != nil {
		t.Fatalf("latest votes: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 persisted rows after first call, got %d", len(snaps))
	}

	_, persisted, err = in.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if persisted != 0 {
		t.Fatalf("expected 0 newly persisted on duplicate fetch, got %d", persisted)
	}
	snaps, err = cache.LatestVotes()
	if err != nil {
		t.Fatalf("latest votes: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected still 2 persisted rows after duplicate fetch, got %d", len(snaps))
	}
}

func TestFetchAndStoreEmptyResultPublishesEmptyWeights(t *testing.T) {
	client := &fakeVoteClient{votes: nil}
	cache := newCache(t)
	in := New(client, cache, nil)

	pairs, persisted, err := in.FetchAndStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("expected 0 pairs, got %d", len(pairs))
	}
	if persisted != 0 {
		t.Fatalf("expected 0 persisted, got %d", persisted)
	}
	if weights := cache.SubnetWeights(); len(weights) != 0 {
		t.Fatalf("expected empty subnet weights, got %+v", weights)
	}
}

func TestFetchAndStoreZeroMassVotesProduceEmptyWeights(t *testing.T) {
	client := &fakeVoteClient{votes: []voteclient.Vote{
		{VoterHotkey: "hk-a", BlockHeight: 100, VoterStake: 0, Weights: map[uint64]float64{1: 1.0}},
	}}
	cache := newCache(t)
	in := New(client, cache, nil)

	if _, _, err := in.FetchAndStore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	weights := cache.SubnetWeights()
	if len(weights) != 0 {
		t.Fatalf("expected empty subnet weights for zero-mass votes, got %+v", weights)
	}
}
