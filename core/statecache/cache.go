package statecache

import "sync"

// Cache wraps a Store with the mutable scratch vectors the pipeline stages
// hand off within one epoch tick (§3, §4.C). Each field is replaced by
// whole-value assignment by its producer; readers observe the most recent
// complete value. The scheduler runs D/E/F strictly serially within a tick
// (§4.G, §5), so the mutex here only guards against a concurrent reader
// such as the status server observing a half-written value.
type Cache struct {
	Store

	mu sync.RWMutex

	subnetWeights       map[uint64]float64
	masterSubnetWeights map[uint64]float64
	liquidity           map[uint64]map[uint64]float64
	latestVotes         []VoteSnapshot
}

// New wraps store with empty scratch vectors.
func New(store Store) *Cache {
	return &Cache{Store: store}
}

// SubnetWeights returns the current stake-weighted subnet vote vector (§4.D).
func (c *Cache) SubnetWeights() map[uint64]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subnetWeights
}

// SetSubnetWeights replaces the subnet vote vector atomically.
func (c *Cache) SetSubnetWeights(v map[uint64]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subnetWeights = v
}

// MasterSubnetWeights returns the Reward Calculator's published subnet
// vector (§4.F), distinct from the raw vote-derived one.
func (c *Cache) MasterSubnetWeights() map[uint64]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.masterSubnetWeights
}

// SetMasterSubnetWeights replaces the master subnet vector atomically.
func (c *Cache) SetMasterSubnetWeights(v map[uint64]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.masterSubnetWeights = v
}

// Liquidity returns the current subnet -> uid -> tao_value map (§4.E).
func (c *Cache) Liquidity() map[uint64]map[uint64]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.liquidity
}

// SetLiquidity replaces the liquidity map atomically.
func (c *Cache) SetLiquidity(v map[uint64]map[uint64]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.liquidity = v
}

// LatestVotesScratch returns the most recent fetch list (distinct from the
// durable Store.LatestVotes — this is the in-memory list set by step 5 of
// §4.D's algorithm).
func (c *Cache) LatestVotesScratch() []VoteSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latestVotes
}

// SetLatestVotesScratch replaces the scratch vote list atomically.
func (c *Cache) SetLatestVotesScratch(v []VoteSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestVotes = v
}
