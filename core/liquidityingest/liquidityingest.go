// Package liquidityingest implements the Liquidity Ingestor (§4.E): for
// each active subnet, fan out bounded-concurrency queries across the
// coldkeys of one designated "source" subnet, aggregate canonical TAO
// amounts, persist new (coldkey, subnet, block) snapshots, and publish the
// subnet -> uid -> amount map. Grounded on the bounded worker-pool pattern
// in core/validator_node.go's per-peer sync fan-out, re-pointed at
// per-coldkey liquidity queries.
package liquidityingest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/core/chainadapter"
	"github.com/YouWishh/oceans-subnet/core/statecache"
)

// Ingestor runs the identity-resolution + bounded-concurrency fetch +
// persist + publish pipeline of §4.E.
type Ingestor struct {
	chain          chainadapter.ChainAdapter
	cache          *statecache.Cache
	sourceSubnet   uint64
	activeSubnets  map[uint64]struct{}
	maxConcurrency int
	log            *logrus.Entry

	// uidIndex[subnet][coldkey] = uid, populated lazily, never evicted
	// during a run (§4.E).
	uidIndex map[uint64]map[string]uint64
	mu       sync.Mutex
}

// New builds an Ingestor. sourceSubnet is the validator's own subnet, whose
// metagraph supplies the coldkeys queried across every target subnet.
func New(chain chainadapter.ChainAdapter, cache *statecache.Cache, sourceSubnet uint64, activeSubnets map[uint64]struct{}, maxConcurrency int, log *logrus.Entry) *Ingestor {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Ingestor{
		chain:          chain,
		cache:          cache,
		sourceSubnet:   sourceSubnet,
		activeSubnets:  activeSubnets,
		maxConcurrency: maxConcurrency,
		log:            log,
		uidIndex:       make(map[uint64]map[string]uint64),
	}
}

// FetchAndStore implements §4.E. If subnet is nil, every configured active
// subnet is processed in ascending order; otherwise only the given subnet,
// which must belong to ACTIVE_SUBNETS. Subnet 0 is always refused.
func (in *Ingestor) FetchAndStore(ctx context.Context, subnet *uint64, block *uint64) ([]statecache.LiquiditySnapshot, error) {
	var targets []uint64
	if subnet != nil {
		if *subnet == 0 {
			if in.log != nil {
				in.log.Warn("liquidityingest: subnet 0 is always refused")
			}
			return nil, nil
		}
		if _, ok := in.activeSubnets[*subnet]; !ok {
			if in.log != nil {
				in.log.WithField("subnet", *subnet).Warn("liquidityingest: requested subnet is not active")
			}
			return nil, nil
		}
		targets = []uint64{*subnet}
	} else {
		for s := range in.activeSubnets {
			if s == 0 {
				continue
			}
			targets = append(targets, s)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	}

	coldkeys, err := in.sourceColdkeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("liquidityingest: resolve source coldkeys: %w", err)
	}

	published := make(map[uint64]map[uint64]float64)
	var newlyPersisted []statecache.LiquiditySnapshot

	for _, target := range targets {
		amounts, err := in.fetchSubnet(ctx, target, coldkeys, block)
		if err != nil {
			return nil, fmt.Errorf("liquidityingest: subnet %d: %w", target, err)
		}

		var toPersist []statecache.LiquiditySnapshot
		subnetPublished := make(map[uint64]float64)
		blockForSnapshot := uint64(0)
		if block != nil {
			blockForSnapshot = *block
		}

		for coldkey, taoValue := range amounts {
			if taoValue <= 0 {
				continue
			}

			changed, err := in.cache.LiquidityChanged(coldkey, target, blockForSnapshot)
			if err != nil {
				return nil, fmt.Errorf("liquidityingest: liquidity_changed: %w", err)
			}
			if changed {
				toPersist = append(toPersist, statecache.LiquiditySnapshot{
					WalletHotkey: coldkey,
					SubnetID:     target,
					TaoValue:     taoValue,
					BlockHeight:  blockForSnapshot,
				})
			}

			uid, ok := in.resolveUID(ctx, coldkey, target)
			if !ok {
				continue
			}
			subnetPublished[uid] = taoValue
		}

		if err := in.cache.PersistLiquidity(toPersist); err != nil {
			return nil, fmt.Errorf("liquidityingest: persist: %w", err)
		}
		newlyPersisted = append(newlyPersisted, toPersist...)
		published[target] = subnetPublished
	}

	in.cache.SetLiquidity(published)
	return newlyPersisted, nil
}

// sourceColdkeys fetches the source subnet's metagraph once, deduplicating
// preserving first occurrence (§4.E).
func (in *Ingestor) sourceColdkeys(ctx context.Context) ([]string, error) {
	meta, err := in.chain.Metagraph(ctx, in.sourceSubnet, nil, true)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	if _, ok := in.uidIndex[in.sourceSubnet]; !ok {
		in.uidIndex[in.sourceSubnet] = make(map[string]uint64)
	}
	seen := make(map[string]struct{}, len(meta.Coldkeys))
	out := make([]string, 0, len(meta.Coldkeys))
	for i, ck := range meta.Coldkeys {
		in.uidIndex[in.sourceSubnet][ck] = meta.UIDs[i]
		if _, dup := seen[ck]; dup {
			continue
		}
		seen[ck] = struct{}{}
		out = append(out, ck)
	}
	in.mu.Unlock()

	return out, nil
}

// fetchSubnet queries every coldkey's positions on target under a bounded
// semaphore; a single failed query yields an empty position list and a
// warning, never aborting the subnet (§4.E).
func (in *Ingestor) fetchSubnet(ctx context.Context, target uint64, coldkeys []string, block *uint64) (map[string]float64, error) {
	sem := make(chan struct{}, in.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	amounts := make(map[string]float64, len(coldkeys))

	for _, coldkey := range coldkeys {
		wg.Add(1)
		sem <- struct{}{}
		go func(coldkey string) {
			defer wg.Done()
			defer func() { <-sem }()

			positions, err := in.chain.Liquidity(ctx, coldkey, target, block)
			if err != nil {
				if in.log != nil {
					in.log.WithError(err).WithFields(logrus.Fields{
						"coldkey": coldkey, "subnet": target,
					}).Warn("liquidityingest: coldkey query failed, treating as empty")
				}
				positions = nil
			}

			sum := 0.0
			for _, p := range positions {
				sum += p.Liquidity
			}

			mu.Lock()
			amounts[coldkey] = sum
			mu.Unlock()
		}(coldkey)
	}
	wg.Wait()

	return amounts, nil
}

// resolveUID returns the uid for coldkey on target, populating the lazy
// never-evicted index by reading target's metagraph the first time a new
// coldkey is seen there (§4.E).
func (in *Ingestor) resolveUID(ctx context.Context, coldkey string, target uint64) (uint64, bool) {
	in.mu.Lock()
	if idx, ok := in.uidIndex[target]; ok {
		if uid, ok := idx[coldkey]; ok {
			in.mu.Unlock()
			return uid, true
		}
	}
	in.mu.Unlock()
	return in.populateAndResolve(ctx, coldkey, target)
}

func (in *Ingestor) populateAndResolve(ctx context.Context, coldkey string, target uint64) (uint64, bool) {
	meta, err := in.chain.Metagraph(ctx, target, nil, true)
	if err != nil {
		if in.log != nil {
			in.log.WithError(err).WithField("subnet", target).Warn("liquidityingest: target metagraph fetch failed")
		}
		return 0, false
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if _, ok := in.uidIndex[target]; !ok {
		in.uidIndex[target] = make(map[string]uint64)
	}
	for i, ck := range meta.Coldkeys {
		if _, already := in.uidIndex[target][ck]; !already {
			in.uidIndex[target][ck] = meta.UIDs[i]
		}
	}
	uid, ok := in.uidIndex[target][coldkey]
	return uid, ok
}
