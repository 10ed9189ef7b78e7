package voteclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/internal/retry"
)

// VoteClient fetches the latest vote set from the off-chain vote API (§4.B).
type VoteClient interface {
	LatestVotes(ctx context.Context) ([]Vote, error)
}

// offlineSentinel is the configured endpoint value that switches the client
// into deterministic dummy-data mode (§4.B, §7): trim trailing slash,
// upper-case compare.
const offlineSentinel = "TODO"

// dummyBlockHeight is the fixed block height stamped on every offline vote.
const dummyBlockHeight uint64 = 6_073_385

var dummyHotkeys = []string{
	"5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty",
	"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
	"5FLSigC9HGRKVhB9FiEo4Y3koPsNmBmLJbpXg2mp1hXcS59Y",
	"5DAAnrj7VHTznn2AWBemMuyBwZWs6FNFjdyVXUeYum3PTXFy",
}

// HTTPVoteClient fetches votes over plain HTTP, retrying on transport
// failures and 5xx responses with the shared exponential-backoff helper
// (§4.B: "factor 2, no jitter, at most 5 attempts, only on transport/5xx").
type HTTPVoteClient struct {
	baseURL       string
	httpClient    *http.Client
	activeSubnets map[uint64]struct{}
	log           *logrus.Entry

	offline bool
}

// NewHTTPVoteClient builds a VoteClient from the resolved endpoint and the
// active subnet set used to size offline dummy weight vectors.
func NewHTTPVoteClient(endpoint string, activeSubnets map[uint64]struct{}, log *logrus.Entry) *HTTPVoteClient {
	trimmed := strings.TrimRight(endpoint, "/")
	return &HTTPVoteClient{
		baseURL:       trimmed,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		activeSubnets: activeSubnets,
		log:           log,
		offline:       strings.ToUpper(trimmed) == offlineSentinel,
	}
}

// LatestVotes returns the dummy vote set in offline mode, or fetches and
// decodes /votes/latest over HTTP otherwise.
func (c *HTTPVoteClient) LatestVotes(ctx context.Context) ([]Vote, error) {
	if c.offline {
		votes := dummyVotes(c.activeSubnets)
		if c.log != nil {
			c.log.WithField("count", len(votes)).Debug("vote client running in offline mode")
		}
		return votes, nil
	}

	url := c.baseURL + "/votes/latest"
	var body []byte

	err := retry.Do(ctx, 5, 500*time.Millisecond, isRetryableHTTPErr, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // transport error: retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("vote API returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return retry.Permanent(fmt.Errorf("vote API returned %d", resp.StatusCode))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.Permanent(err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch latest votes: %w", err)
	}

	votes, err := decodeVotes(body, func(reason string) {
		if c.log != nil {
			c.log.WithField("reason", reason).Debug("skipped malformed vote row")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode latest votes: %w", err)
	}

	if c.log != nil {
		preview := votes
		if len(preview) > 5 {
			preview = preview[:5]
		}
		for _, v := range preview {
			c.log.WithFields(logrus.Fields{
				"voter_hotkey": v.VoterHotkey,
				"voter_stake":  v.VoterStake,
			}).Debug("vote preview")
		}
	}

	return votes, nil
}

// dummyVotes builds the deterministic offline vote set: 4 fixed hotkeys,
// each voting with stake 1.0, split evenly across every active subnet.
func dummyVotes(activeSubnets map[uint64]struct{}) []Vote {
	ids := make([]uint64, 0, len(activeSubnets))
	for id := range activeSubnets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	weight := 0.0
	if len(ids) > 0 {
		weight = 1.0 / float64(len(ids))
	}
	weights := make(map[uint64]float64, len(ids))
	for _, id := range ids {
		weights[id] = weight
	}

	votes := make([]Vote, 0, len(dummyHotkeys))
	for _, hk := range dummyHotkeys {
		w := make(map[uint64]float64, len(weights))
		for k, v := range weights {
			w[k] = v
		}
		votes = append(votes, Vote{
			VoterHotkey: hk,
			BlockHeight: dummyBlockHeight,
			VoterStake:  1.0,
			Weights:     w,
		})
	}
	return votes
}

func isRetryableHTTPErr(err error) bool {
	return !retry.IsPermanent(err)
}
