package chainadapter

import (
	"context"
	"sync"
)

// MockAdapter is an in-memory ChainAdapter test double, grounded on the
// fake-clock style test doubles used across the pack's consensus tests.
type MockAdapter struct {
	mu sync.Mutex

	Block          uint64
	Tempos         map[uint64]uint64
	NextEpochStarts map[uint64]uint64
	Metagraphs     map[uint64]Metagraph
	Liquidities    map[string][]LiquidityPosition // key: coldkey|subnet

	Submitted []SubmittedWeights
	FailNext  map[string]error
}

// SubmittedWeights records one call to SubmitWeights for assertions.
type SubmittedWeights struct {
	Subnet  uint64
	UIDs    []uint64
	Weights []float64
	Version uint64
}

// NewMockAdapter builds an empty mock.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		Tempos:          make(map[uint64]uint64),
		NextEpochStarts: make(map[uint64]uint64),
		Metagraphs:      make(map[uint64]Metagraph),
		Liquidities:     make(map[string][]LiquidityPosition),
		FailNext:        make(map[string]error),
	}
}

func liquidityKey(coldkey string, subnet uint64) string {
	return coldkey + "|" + uitoa(subnet)
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

func (m *MockAdapter) CurrentBlock(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext["CurrentBlock"]; err != nil {
		delete(m.FailNext, "CurrentBlock")
		return 0, err
	}
	return m.Block, nil
}

func (m *MockAdapter) Tempo(ctx context.Context, subnet uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Tempos[subnet], nil
}

func (m *MockAdapter) NextEpochStart(ctx context.Context, subnet uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.NextEpochStarts[subnet], nil
}

func (m *MockAdapter) Metagraph(ctx context.Context, subnet uint64, block *uint64, lite bool) (Metagraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext["Metagraph"]; err != nil {
		delete(m.FailNext, "Metagraph")
		return Metagraph{}, err
	}
	return m.Metagraphs[subnet], nil
}

func (m *MockAdapter) Liquidity(ctx context.Context, coldkey string, subnet uint64, block *uint64) ([]LiquidityPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := liquidityKey(coldkey, subnet)
	if err := m.FailNext[key]; err != nil {
		delete(m.FailNext, key)
		return nil, err
	}
	return m.Liquidities[key], nil
}

func (m *MockAdapter) SubmitWeights(ctx context.Context, subnet uint64, uids []uint64, weights []float64, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNext["SubmitWeights"]; err != nil {
		delete(m.FailNext, "SubmitWeights")
		return err
	}
	m.Submitted = append(m.Submitted, SubmittedWeights{Subnet: subnet, UIDs: uids, Weights: weights, Version: version})
	return nil
}
