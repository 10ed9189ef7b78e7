// Package reward implements the Reward Calculator (§4.F): combine the
// cached vote-weighted subnet vector with the liquidity map into a
// normalized uid -> reward mapping. Grounded on core/validator_node.go's
// two-pass score-then-normalize reward loop, re-pointed at liquidity
// instead of uptime scores.
package reward

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/core/chainadapter"
	"github.com/YouWishh/oceans-subnet/core/statecache"
)

// Calculator computes the reward vector described in §4.F.
type Calculator struct {
	cache *statecache.Cache
	log   *logrus.Entry
}

// New builds a Calculator reading from the given State Cache.
func New(cache *statecache.Cache, log *logrus.Entry) *Calculator {
	return &Calculator{cache: cache, log: log}
}

// Compute implements §4.F: master subnet vector construction, per-miner
// liquidity-weighted accumulation, and normalize-or-uniform-fallback.
func (c *Calculator) Compute(meta chainadapter.Metagraph) (map[uint64]float64, error) {
	master := c.masterSubnetVector()
	c.cache.SetMasterSubnetWeights(master)

	liquidity := c.cache.Liquidity()
	reward := make(map[uint64]float64)

	subnets := make([]uint64, 0, len(master))
	for s := range master {
		subnets = append(subnets, s)
	}
	sort.Slice(subnets, func(i, j int) bool { return subnets[i] < subnets[j] })

	for _, subnet := range subnets {
		weight := master[subnet]
		if weight <= 0 {
			continue
		}
		lps := liquidity[subnet]
		if len(lps) == 0 {
			continue
		}

		total := 0.0
		for _, lp := range lps {
			total += lp
		}
		if total <= 0 {
			continue
		}

		uids := make([]uint64, 0, len(lps))
		for uid := range lps {
			uids = append(uids, uid)
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

		for _, uid := range uids {
			lp := lps[uid]
			if lp <= 0 {
				continue
			}
			reward[uid] += (lp / total) * weight
		}
	}

	sum := 0.0
	for _, r := range reward {
		sum += r
	}
	if sum > 0 {
		for uid := range reward {
			reward[uid] /= sum
		}
		return reward, nil
	}

	if c.log != nil {
		c.log.Warn("reward: computed reward sums to zero, falling back to a uniform distribution")
	}
	if len(meta.UIDs) == 0 {
		return map[uint64]float64{}, nil
	}
	uniform := make(map[uint64]float64, len(meta.UIDs))
	share := 1.0 / float64(len(meta.UIDs))
	for _, uid := range meta.UIDs {
		uniform[uid] = share
	}
	return uniform, nil
}

// masterSubnetVector builds the master vector from the latest scratch
// votes, normalizing each voter's weights before scaling by stake, or
// falls back to the raw subnet_weights vector when there are no fresh
// votes (§4.F).
func (c *Calculator) masterSubnetVector() map[uint64]float64 {
	votes := c.cache.LatestVotesScratch()
	if len(votes) == 0 {
		fallback := c.cache.SubnetWeights()
		if fallback == nil {
			return map[uint64]float64{}
		}
		return fallback
	}

	raw := make(map[uint64]float64)
	totalStake := 0.0
	for _, v := range votes {
		if v.VoterStake <= 0 || len(v.Weights) == 0 {
			continue
		}
		sv := 0.0
		for _, w := range v.Weights {
			sv += w
		}
		if sv <= 0 {
			continue
		}
		for subnet, w := range v.Weights {
			raw[subnet] += v.VoterStake * (w / sv)
		}
		totalStake += v.VoterStake
	}

	if totalStake <= 0 {
		return map[uint64]float64{}
	}
	master := make(map[uint64]float64, len(raw))
	for subnet, mass := range raw {
		master[subnet] = mass / totalStake
	}
	return master
}
