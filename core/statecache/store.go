package statecache

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/YouWishh/oceans-subnet/pkg/utils"
)

// Store is the durable half of the State Cache (§4.C): idempotent,
// append-only persistence with newest-first reads.
type Store interface {
	LatestVotes() ([]VoteSnapshot, error)
	LatestLiquidity() ([]LiquiditySnapshot, error)
	PersistVotes(snaps []VoteSnapshot) error
	PersistLiquidity(snaps []LiquiditySnapshot) error
	VotesChanged(blockHeight uint64, voterHotkey string) (bool, error)
	LiquidityChanged(wallet string, subnet, block uint64) (bool, error)
	Close() error
}

// FileStore is a JSONL append-only store: one file per entity, replayed
// into an in-memory dedup index on open. Grounded on core/ledger.go's
// write-ahead log, translated to two record kinds instead of one.
type FileStore struct {
	mu sync.Mutex

	votesPath      string
	liquidityPath  string
	votesFile      *os.File
	liquidityFile  *os.File

	votes       []VoteSnapshot
	voteIndex   map[string]struct{}
	nextVoteID  uint64

	liquidity      []LiquiditySnapshot
	liquidityIndex map[string]struct{}
	nextLiqID      uint64
}

// Open resolves a "file://<dir>" URI (the only scheme §6 requires), creates
// the directory if absent, and replays both JSONL files into memory.
func Open(dbURI string) (*FileStore, error) {
	dir := strings.TrimPrefix(dbURI, "file://")
	if dir == "" {
		return nil, fmt.Errorf("statecache: empty DB_URI directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("statecache: create data dir: %w", err)
	}

	s := &FileStore{
		votesPath:      filepath.Join(dir, "vote_snapshots.jsonl"),
		liquidityPath:  filepath.Join(dir, "liquidity_snapshots.jsonl"),
		voteIndex:      make(map[string]struct{}),
		liquidityIndex: make(map[string]struct{}),
	}

	if err := s.replayVotes(); err != nil {
		return nil, err
	}
	if err := s.replayLiquidity(); err != nil {
		return nil, err
	}

	vf, err := os.OpenFile(s.votesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("statecache: open vote log: %w", err)
	}
	s.votesFile = vf

	lf, err := os.OpenFile(s.liquidityPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		vf.Close()
		return nil, fmt.Errorf("statecache: open liquidity log: %w", err)
	}
	s.liquidityFile = lf

	return s, nil
}

func (s *FileStore) replayVotes() error {
	f, err := os.Open(s.votesPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("statecache: replay vote log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap VoteSnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return fmt.Errorf("statecache: corrupt vote log entry: %w", err)
		}
		key := voteKey(snap.VoterHotkey, snap.BlockHeight)
		s.voteIndex[key] = struct{}{}
		s.votes = append(s.votes, snap)
		if snap.ID >= s.nextVoteID {
			s.nextVoteID = snap.ID + 1
		}
	}
	return scanner.Err()
}

func (s *FileStore) replayLiquidity() error {
	f, err := os.Open(s.liquidityPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("statecache: replay liquidity log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap LiquiditySnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return fmt.Errorf("statecache: corrupt liquidity log entry: %w", err)
		}
		key := liquidityKey(snap.WalletHotkey, snap.SubnetID, snap.BlockHeight)
		s.liquidityIndex[key] = struct{}{}
		s.liquidity = append(s.liquidity, snap)
		if snap.ID >= s.nextLiqID {
			s.nextLiqID = snap.ID + 1
		}
	}
	return scanner.Err()
}

// LatestVotes returns all vote snapshots ordered (block_height DESC, id DESC).
func (s *FileStore) LatestVotes() ([]VoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VoteSnapshot, len(s.votes))
	copy(out, s.votes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			return out[i].BlockHeight > out[j].BlockHeight
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// LatestLiquidity returns all liquidity snapshots ordered (block_height DESC, id DESC).
func (s *FileStore) LatestLiquidity() ([]LiquiditySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LiquiditySnapshot, len(s.liquidity))
	copy(out, s.liquidity)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockHeight != out[j].BlockHeight {
			return out[i].BlockHeight > out[j].BlockHeight
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// PersistVotes bulk-inserts, atomically with respect to callers of this
// store, skipping any row whose natural key already exists (§4.C invariant).
func (s *FileStore) PersistVotes(snaps []VoteSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf strings.Builder
	toAppend := make([]VoteSnapshot, 0, len(snaps))
	batch := make(map[string]struct{}, len(snaps))
	nextID := s.nextVoteID
	for _, snap := range snaps {
		key := voteKey(snap.VoterHotkey, snap.BlockHeight)
		if _, exists := s.voteIndex[key]; exists {
			continue
		}
		if _, dup := batch[key]; dup {
			continue
		}
		snap.ID = nextID
		nextID++
		batch[key] = struct{}{}

		line, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("statecache: marshal vote snapshot: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		toAppend = append(toAppend, snap)
	}
	if len(toAppend) == 0 {
		return nil
	}
	if _, err := s.votesFile.WriteString(buf.String()); err != nil {
		return fmt.Errorf("statecache: append vote log: %w", err)
	}
	if err := s.votesFile.Sync(); err != nil {
		return fmt.Errorf("statecache: sync vote log: %w", err)
	}
	for key := range batch {
		s.voteIndex[key] = struct{}{}
	}
	s.nextVoteID = nextID
	s.votes = append(s.votes, toAppend...)
	return nil
}

// PersistLiquidity bulk-inserts, atomically with respect to callers of this
// store, skipping any row whose natural key already exists (§4.C invariant).
func (s *FileStore) PersistLiquidity(snaps []LiquiditySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf strings.Builder
	toAppend := make([]LiquiditySnapshot, 0, len(snaps))
	batch := make(map[string]struct{}, len(snaps))
	nextID := s.nextLiqID
	for _, snap := range snaps {
		key := liquidityKey(snap.WalletHotkey, snap.SubnetID, snap.BlockHeight)
		if _, exists := s.liquidityIndex[key]; exists {
			continue
		}
		if _, dup := batch[key]; dup {
			continue
		}
		snap.ID = nextID
		nextID++
		batch[key] = struct{}{}

		line, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("statecache: marshal liquidity snapshot: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		toAppend = append(toAppend, snap)
	}
	if len(toAppend) == 0 {
		return nil
	}
	if _, err := s.liquidityFile.WriteString(buf.String()); err != nil {
		return fmt.Errorf("statecache: append liquidity log: %w", err)
	}
	if err := s.liquidityFile.Sync(); err != nil {
		return fmt.Errorf("statecache: sync liquidity log: %w", err)
	}
	for key := range batch {
		s.liquidityIndex[key] = struct{}{}
	}
	s.nextLiqID = nextID
	s.liquidity = append(s.liquidity, toAppend...)
	return nil
}

// VotesChanged reports true iff no row with this natural key exists yet.
func (s *FileStore) VotesChanged(blockHeight uint64, voterHotkey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.voteIndex[voteKey(voterHotkey, blockHeight)]
	return !exists, nil
}

// LiquidityChanged reports true iff no row with this natural key exists yet.
func (s *FileStore) LiquidityChanged(wallet string, subnet, block uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.liquidityIndex[liquidityKey(wallet, subnet, block)]
	return !exists, nil
}

// Close releases the underlying file handles.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if err := utils.Wrap(s.votesFile.Close(), "close vote log"); err != nil {
		errs = append(errs, err)
	}
	if err := utils.Wrap(s.liquidityFile.Close(), "close liquidity log"); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("statecache: close: %v", errs)
	}
	return nil
}
