// Package voteingest implements the Vote Ingestor (§4.D): fetch via the
// Vote Client, aggregate stake-weighted subnet mass, persist one snapshot
// per voter, and publish the normalized subnet-weight vector to the State
// Cache. Grounded on core/validator_node.go's tick-driven ingest loop,
// re-pointed at votes instead of block proposals.
package voteingest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/core/statecache"
	"github.com/YouWishh/oceans-subnet/core/voteclient"
)

// VoteStake is one input vote's (stake, weights) pair, returned for
// visibility per §4.D step 6.
type VoteStake struct {
	VoterStake float64
	Weights    map[uint64]float64
}

// Ingestor runs the fetch-aggregate-persist-publish pipeline (§4.D).
type Ingestor struct {
	client voteclient.VoteClient
	cache  *statecache.Cache
	log    *logrus.Entry
}

// New builds an Ingestor over the given Vote Client and State Cache.
func New(client voteclient.VoteClient, cache *statecache.Cache, log *logrus.Entry) *Ingestor {
	return &Ingestor{client: client, cache: cache, log: log}
}

// FetchAndStore implements the six-step algorithm of §4.D. The returned
// pairs cover every fetched vote (§4.D step 6's visibility requirement);
// persisted reports how many of those were newly written to the State
// Cache, for callers that need a snapshot-count metric rather than an
// input-vote count.
func (in *Ingestor) FetchAndStore(ctx context.Context) (pairs []VoteStake, persisted int, err error) {
	votes, err := in.client.LatestVotes(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("voteingest: fetch votes: %w", err)
	}

	if len(votes) == 0 {
		in.cache.SetSubnetWeights(map[uint64]float64{})
		in.cache.SetLatestVotesScratch(nil)
		return nil, 0, nil
	}

	raw := make(map[uint64]float64)
	for _, v := range votes {
		for subnet, w := range v.Weights {
			raw[subnet] += v.VoterStake * w
		}
	}

	total := 0.0
	for _, mass := range raw {
		total += mass
	}

	subnetWeights := make(map[uint64]float64)
	if total > 0 {
		for subnet, mass := range raw {
			subnetWeights[subnet] = mass / total
		}
	} else if in.log != nil {
		in.log.Warn("voteingest: total subnet mass is zero, publishing empty subnet_weights")
	}
	in.cache.SetSubnetWeights(subnetWeights)

	toPersist := make([]statecache.VoteSnapshot, 0, len(votes))
	pairs = make([]VoteStake, 0, len(votes))
	for _, v := range votes {
		changed, err := in.cache.VotesChanged(v.BlockHeight, v.VoterHotkey)
		if err != nil {
			return nil, 0, fmt.Errorf("voteingest: votes_changed: %w", err)
		}
		if changed {
			toPersist = append(toPersist, statecache.VoteSnapshot{
				VoterHotkey: v.VoterHotkey,
				BlockHeight: v.BlockHeight,
				VoterStake:  v.VoterStake,
				Weights:     v.Weights,
			})
		}
		pairs = append(pairs, VoteStake{VoterStake: v.VoterStake, Weights: v.Weights})
	}

	if err := in.cache.PersistVotes(toPersist); err != nil {
		return nil, 0, fmt.Errorf("voteingest: persist votes: %w", err)
	}
	in.cache.SetLatestVotesScratch(toPersist)

	return pairs, len(toPersist), nil
}
