// Package chainadapter is the read-only facade over the chain node (§4.A):
// current block, tempo, next epoch boundary, metagraphs, liquidity
// positions, and weight submission. Grounded on core/validator_node.go's
// chain-facing surface, re-pointed at a subtensor-style JSON-RPC endpoint
// instead of Synnergy's in-process consensus engine.
package chainadapter

import "context"

// LiquidityPosition is one coldkey's position on a subnet, convertible to
// the canonical TAO unit (§3).
type LiquidityPosition struct {
	Liquidity float64 `json:"liquidity"`
}

// Metagraph is the ordered pair of parallel uid/coldkey sequences for one
// subnet at a given block (§3).
type Metagraph struct {
	UIDs      []uint64
	Coldkeys  []string
	Block     uint64
}

// ColdkeyForUID returns the coldkey at the given uid's index, or "" if the
// uid is not present.
func (m Metagraph) ColdkeyForUID(uid uint64) (string, bool) {
	for i, u := range m.UIDs {
		if u == uid {
			return m.Coldkeys[i], true
		}
	}
	return "", false
}

// UIDForColdkey returns the first uid registered to the given coldkey.
func (m Metagraph) UIDForColdkey(coldkey string) (uint64, bool) {
	for i, ck := range m.Coldkeys {
		if ck == coldkey {
			return m.UIDs[i], true
		}
	}
	return 0, false
}

// ChainAdapter is the read-only facade described in §4.A. All methods may
// fail transiently; implementations are expected to retry internally with
// bounded exponential backoff (§5) rather than push that policy onto
// callers.
type ChainAdapter interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	Tempo(ctx context.Context, subnet uint64) (uint64, error)
	NextEpochStart(ctx context.Context, subnet uint64) (uint64, error)
	Metagraph(ctx context.Context, subnet uint64, block *uint64, lite bool) (Metagraph, error)
	Liquidity(ctx context.Context, coldkey string, subnet uint64, block *uint64) ([]LiquidityPosition, error)
	SubmitWeights(ctx context.Context, subnet uint64, uids []uint64, weights []float64, version uint64) error
}

// EpochLength derives L per §4.A: L = n - (h - h mod t); accept L in
// {t, t+1}, else fall back to t+1 (the chain sometimes includes a boundary
// block, producing an off-by-one that is re-probed every new epoch).
func EpochLength(tempo, currentBlock, nextEpochStart uint64) uint64 {
	epochFloor := currentBlock - (currentBlock % tempo)
	var length uint64
	if nextEpochStart >= epochFloor {
		length = nextEpochStart - epochFloor
	}
	if length == tempo || length == tempo+1 {
		return length
	}
	return tempo + 1
}
