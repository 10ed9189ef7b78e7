// Package scheduler implements the Epoch Scheduler (§4.G): a cooperatively
// cancellable state machine that detects epoch length, sleeps until the
// first block of each new epoch, runs the D->E->F pipeline, and submits
// the result. Grounded on core/validator_node.go's consensus driver loop,
// re-pointed at epoch ticks instead of block proposal rounds.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/core/chainadapter"
	"github.com/YouWishh/oceans-subnet/core/liquidityingest"
	"github.com/YouWishh/oceans-subnet/core/reward"
	"github.com/YouWishh/oceans-subnet/core/voteingest"
)

// State names the scheduler's position in the state machine (§4.G).
type State int

const (
	StateInit State = iota
	StateBootstrap
	StateWaitingForHead
	StateEpochHead
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateBootstrap:
		return "bootstrap"
	case StateWaitingForHead:
		return "waiting_for_head"
	case StateEpochHead:
		return "epoch_head"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StatusCallback is invoked with a point-in-time snapshot after every
// pipeline tick (State bootstrap or epoch head), for each status line
// emitted while waiting for the next epoch head (State waiting_for_head),
// and once on stop (State stopping).
type StatusCallback func(Status)

// Status is the information surfaced to StatusCallback.
type Status struct {
	State        State
	EpochIndex   uint64
	Block        uint64
	Bootstrapped bool
	LastError    error

	VoteSnapshotsPersisted      uint64
	LiquiditySnapshotsPersisted uint64
	RewardVectorSum             float64
	TickDuration                time.Duration
}

// Scheduler runs the state machine of §4.G against one subnet.
type Scheduler struct {
	chain   chainadapter.ChainAdapter
	votes   *voteingest.Ingestor
	liq     *liquidityingest.Ingestor
	rewards *reward.Calculator
	log     *logrus.Entry

	subnet                uint64
	weightsVersion        uint64
	nominalBlockTime      time.Duration
	statusLogIntervalBlks uint64
	onStatus              StatusCallback

	epochIndex uint64
	shouldExit chan struct{}
	lastTick   Status
}

// Config bundles the scheduler's tunables, read from the resolved process
// configuration (§6).
type Config struct {
	Subnet                uint64
	WeightsVersion        uint64
	NominalBlockTime      time.Duration
	StatusLogIntervalBlks uint64
}

// New wires the scheduler's collaborators.
func New(chain chainadapter.ChainAdapter, votes *voteingest.Ingestor, liq *liquidityingest.Ingestor, rewards *reward.Calculator, cfg Config, log *logrus.Entry, onStatus StatusCallback) *Scheduler {
	interval := cfg.StatusLogIntervalBlks
	if interval == 0 {
		interval = 2
	}
	return &Scheduler{
		chain:                 chain,
		votes:                 votes,
		liq:                   liq,
		rewards:               rewards,
		log:                   log,
		subnet:                cfg.Subnet,
		weightsVersion:        cfg.WeightsVersion,
		nominalBlockTime:      cfg.NominalBlockTime,
		statusLogIntervalBlks: interval,
		onStatus:              onStatus,
		shouldExit:            make(chan struct{}),
	}
}

// Stop requests a graceful exit at the next cooperative checkpoint (§4.G
// Stopping state).
func (s *Scheduler) Stop() {
	select {
	case <-s.shouldExit:
	default:
		close(s.shouldExit)
	}
}

func (s *Scheduler) stopped() bool {
	select {
	case <-s.shouldExit:
		return true
	default:
		return false
	}
}

// Run drives the state machine until Stop is called or ctx is cancelled.
// It always performs the one-shot bootstrap run first (§4.G Init,
// Bootstrap).
func (s *Scheduler) Run(ctx context.Context) error {
	epochLen, err := s.discoverEpochLength(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: discover epoch length: %w", err)
	}

	bootstrapErr := s.runTick(ctx)
	s.reportStatus(StateBootstrap, bootstrapErr)
	if bootstrapErr != nil {
		if s.log != nil {
			s.log.WithError(bootstrapErr).Warn("scheduler: bootstrap tick failed, continuing to wait for epoch head")
		}
		s.sleepBackoff(ctx)
	}

	for {
		if s.stopped() || ctx.Err() != nil {
			s.reportStatus(StateStopping, nil)
			return ctx.Err()
		}

		epochLen, err = s.waitForHead(ctx, epochLen)
		if err != nil {
			return err
		}
		if s.stopped() || ctx.Err() != nil {
			s.reportStatus(StateStopping, nil)
			return ctx.Err()
		}

		s.epochIndex++
		tickErr := s.runTick(ctx)
		s.reportStatus(StateEpochHead, tickErr)
		if tickErr != nil && s.log != nil {
			s.log.WithError(tickErr).Error("scheduler: epoch head tick failed")
		}
	}
}

// discoverEpochLength implements §4.A's epoch-length derivation for the
// scheduler's own subnet.
func (s *Scheduler) discoverEpochLength(ctx context.Context) (uint64, error) {
	tempo, err := s.chain.Tempo(ctx, s.subnet)
	if err != nil {
		return 0, err
	}
	block, err := s.chain.CurrentBlock(ctx)
	if err != nil {
		return 0, err
	}
	next, err := s.chain.NextEpochStart(ctx, s.subnet)
	if err != nil {
		return 0, err
	}
	return chainadapter.EpochLength(tempo, block, next), nil
}

// waitForHead implements the WaitingForHead state: compute the next epoch
// boundary, sleep in bounded increments while emitting status, and
// re-probe the epoch length once the head is reached (it may shift by ±1).
func (s *Scheduler) waitForHead(ctx context.Context, epochLen uint64) (uint64, error) {
	var target uint64
	for {
		if s.stopped() || ctx.Err() != nil {
			return epochLen, ctx.Err()
		}

		block, err := s.chain.CurrentBlock(ctx)
		if err != nil {
			s.sleepBackoff(ctx)
			continue
		}

		if target == 0 {
			target = (block - (block % epochLen)) + epochLen
		}
		if block >= target {
			return s.discoverEpochLength(ctx)
		}

		remaining := target - block
		increment := remaining / 2
		if increment < 1 {
			increment = 1
		}
		if increment > 30 {
			increment = 30
		}

		if s.onStatus != nil && remaining%s.statusLogIntervalBlks == 0 {
			s.onStatus(Status{State: StateWaitingForHead, EpochIndex: s.epochIndex, Block: block})
		}

		sleepFor := time.Duration(increment) * s.nominalBlockTime
		// safety factor: never sleep past the target, so a fast chain
		// does not cause us to overshoot into the next epoch unchecked.
		sleepFor = sleepFor * 9 / 10

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return epochLen, ctx.Err()
		case <-s.shouldExit:
			timer.Stop()
			return epochLen, nil
		case <-timer.C:
		}
	}
}

// runTick runs D -> E -> F -> submit strictly serially, then always
// attempts a finally-step chain sync regardless of pipeline outcome
// (§4.G EpochHead).
func (s *Scheduler) runTick(ctx context.Context) error {
	start := time.Now()
	defer s.finallySync(ctx)
	s.lastTick = Status{}

	_, votesPersisted, err := s.votes.FetchAndStore(ctx)
	if err != nil {
		return fmt.Errorf("vote ingest: %w", err)
	}
	s.lastTick.VoteSnapshotsPersisted = uint64(votesPersisted)

	liqSnaps, err := s.liq.FetchAndStore(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("liquidity ingest: %w", err)
	}
	s.lastTick.LiquiditySnapshotsPersisted = uint64(len(liqSnaps))

	meta, err := s.chain.Metagraph(ctx, s.subnet, nil, false)
	if err != nil {
		return fmt.Errorf("fetch metagraph: %w", err)
	}

	rewardVec, err := s.rewards.Compute(meta)
	if err != nil {
		return fmt.Errorf("compute reward: %w", err)
	}

	uids := make([]uint64, 0, len(rewardVec))
	weights := make([]float64, 0, len(rewardVec))
	sum := 0.0
	for uid, w := range rewardVec {
		uids = append(uids, uid)
		weights = append(weights, w)
		sum += w
	}
	s.lastTick.RewardVectorSum = sum

	if err := s.chain.SubmitWeights(ctx, s.subnet, uids, weights, s.weightsVersion); err != nil {
		return fmt.Errorf("submit weights: %w", err)
	}
	s.lastTick.TickDuration = time.Since(start)
	return nil
}

// finallySync performs the wallet/chain sync step §4.G requires regardless
// of pipeline success, by re-reading the current block so the status
// surface reflects the chain's current head even on failure.
func (s *Scheduler) finallySync(ctx context.Context) {
	if _, err := s.chain.CurrentBlock(ctx); err != nil && s.log != nil {
		s.log.WithError(err).Warn("scheduler: finally-step chain sync failed")
	}
}

func (s *Scheduler) sleepBackoff(ctx context.Context) {
	timer := time.NewTimer(2 * time.Second)
	select {
	case <-ctx.Done():
		timer.Stop()
	case <-s.shouldExit:
		timer.Stop()
	case <-timer.C:
	}
}

func (s *Scheduler) reportStatus(state State, err error) {
	if s.onStatus == nil {
		return
	}
	status := s.lastTick
	status.State = state
	status.EpochIndex = s.epochIndex
	status.Bootstrapped = state != StateInit
	status.LastError = err
	s.onStatus(status)
}
