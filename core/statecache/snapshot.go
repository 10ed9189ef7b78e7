// Package statecache is the durable store of vote and liquidity snapshots,
// plus the in-memory scratch vectors the pipeline stages hand off between
// each other within one epoch tick. It is grounded on core/ledger.go's
// append-only WAL (replay-into-index-on-open, dedup by natural key)
// translated from block records to vote/liquidity snapshots.
package statecache

import "time"

// VoteSnapshot is one persisted voter record (§3). Natural dedup key:
// (VoterHotkey, BlockHeight).
type VoteSnapshot struct {
	ID          uint64             `json:"id"`
	VoterHotkey string             `json:"voter_hotkey"`
	BlockHeight uint64             `json:"block_height"`
	VoterStake  float64            `json:"voter_stake"`
	Weights     map[uint64]float64 `json:"weights"`
	Timestamp   time.Time          `json:"ts"`
}

// LiquiditySnapshot is one persisted (coldkey, subnet, block) record (§3).
// Natural dedup key: (WalletHotkey, SubnetID, BlockHeight).
type LiquiditySnapshot struct {
	ID          uint64    `json:"id"`
	WalletHotkey string   `json:"wallet_hotkey"`
	SubnetID    uint64    `json:"subnet_id"`
	TaoValue    float64   `json:"tao_value"`
	BlockHeight uint64    `json:"block_height"`
	Timestamp   time.Time `json:"ts"`
}

func voteKey(hotkey string, block uint64) string {
	return hotkey + "\x00" + uitoa(block)
}

func liquidityKey(wallet string, subnet, block uint64) string {
	return wallet + "\x00" + uitoa(subnet) + "\x00" + uitoa(block)
}

func uitoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
