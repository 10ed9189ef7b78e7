package chainadapter

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SubtensorAdapter implements ChainAdapter against a subtensor-style node
// reachable over JSON-RPC-over-websocket (§6: "the underlying blockchain
// client ... out of scope" names the protocol; this is the concrete
// implementation SPEC_FULL.md's ambient stack plugs in behind it).
type SubtensorAdapter struct {
	rpc *wsClient
	log *logrus.Entry
}

// NewSubtensorAdapter dials lazily; the first RPC call establishes the
// connection.
func NewSubtensorAdapter(endpoint string, log *logrus.Entry) *SubtensorAdapter {
	return &SubtensorAdapter{rpc: newWSClient(endpoint, log), log: log}
}

func (a *SubtensorAdapter) CurrentBlock(ctx context.Context) (uint64, error) {
	var block uint64
	if err := a.rpc.call(ctx, "chain_getHeader", nil, &block); err != nil {
		return 0, err
	}
	return block, nil
}

func (a *SubtensorAdapter) Tempo(ctx context.Context, subnet uint64) (uint64, error) {
	var tempo uint64
	if err := a.rpc.call(ctx, "subnetInfo_getTempo", []interface{}{subnet}, &tempo); err != nil {
		return 0, err
	}
	return tempo, nil
}

func (a *SubtensorAdapter) NextEpochStart(ctx context.Context, subnet uint64) (uint64, error) {
	var next uint64
	if err := a.rpc.call(ctx, "subnetInfo_getNextEpochStart", []interface{}{subnet}, &next); err != nil {
		return 0, err
	}
	return next, nil
}

type metagraphWire struct {
	UIDs     []uint64 `json:"uids"`
	Coldkeys []string `json:"coldkeys"`
	Block    uint64   `json:"block"`
}

func (a *SubtensorAdapter) Metagraph(ctx context.Context, subnet uint64, block *uint64, lite bool) (Metagraph, error) {
	params := []interface{}{subnet, lite}
	if block != nil {
		params = append(params, *block)
	}
	var wire metagraphWire
	if err := a.rpc.call(ctx, "subnetInfo_getMetagraph", params, &wire); err != nil {
		return Metagraph{}, err
	}
	return Metagraph{UIDs: wire.UIDs, Coldkeys: wire.Coldkeys, Block: wire.Block}, nil
}

func (a *SubtensorAdapter) Liquidity(ctx context.Context, coldkey string, subnet uint64, block *uint64) ([]LiquidityPosition, error) {
	params := []interface{}{coldkey, subnet}
	if block != nil {
		params = append(params, *block)
	}
	var positions []LiquidityPosition
	if err := a.rpc.call(ctx, "liquidity_getPositions", params, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (a *SubtensorAdapter) SubmitWeights(ctx context.Context, subnet uint64, uids []uint64, weights []float64, version uint64) error {
	params := []interface{}{subnet, uids, weights, version}
	return a.rpc.call(ctx, "subtensorModule_setWeights", params, nil)
}

// Close releases the underlying websocket connection.
func (a *SubtensorAdapter) Close() error {
	return a.rpc.Close()
}
