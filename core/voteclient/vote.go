// Package voteclient retrieves the latest stake-weighted subnet vote set
// from the off-chain vote API, with a deterministic offline mode and
// bounded-retry HTTP transport, grounded on
// original_source/api/client.py and original_source/api/schemas.py.
package voteclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Vote is one voter's preference vector (§3).
type Vote struct {
	VoterHotkey string
	BlockHeight uint64
	VoterStake  float64
	Weights     map[uint64]float64
	Timestamp   *time.Time
}

// wireVote mirrors the JSON shape served by /votes/latest, including the
// voter_stake/alpha_stake alias the spec requires the client to accept.
// Timestamp is the only optional field (§3): it is decoded separately so a
// malformed timestamp degrades to "no timestamp" and the row is kept, while
// any other field failing validation causes decodeVotes to skip the row.
type wireVote struct {
	VoterHotkey string             `json:"voter_hotkey"`
	BlockHeight uint64             `json:"block_height"`
	VoterStake  *float64           `json:"voter_stake"`
	AlphaStake  *float64           `json:"alpha_stake"`
	Weights     map[string]float64 `json:"weights"`
	Timestamp   json.RawMessage    `json:"timestamp"`
}

// requiredFieldError marks a failure in one of Vote's required fields;
// decodeVotes skips such a row and logs the reason, keeping the rest.
type requiredFieldError struct{ msg string }

func (e *requiredFieldError) Error() string { return e.msg }

// toVote validates shape (§3, §4.B) and converts. Every error it returns is
// a *requiredFieldError; an unparsable optional timestamp is dropped
// without an error.
func (w wireVote) toVote() (Vote, error) {
	hk := strings.TrimSpace(w.VoterHotkey)
	if len(hk) < 10 || len(hk) > 64 {
		return Vote{}, &requiredFieldError{fmt.Sprintf("voter_hotkey length %d out of [10,64]", len(hk))}
	}

	stake := w.VoterStake
	if stake == nil {
		stake = w.AlphaStake
	}
	if stake == nil {
		return Vote{}, &requiredFieldError{"missing voter_stake/alpha_stake"}
	}
	if *stake < 0 {
		return Vote{}, &requiredFieldError{fmt.Sprintf("voter_stake must be >= 0, got %v", *stake)}
	}

	if len(w.Weights) == 0 {
		return Vote{}, &requiredFieldError{"weights must not be empty"}
	}
	weights := make(map[uint64]float64, len(w.Weights))
	for k, v := range w.Weights {
		sid, err := parseSubnetID(k)
		if err != nil {
			return Vote{}, &requiredFieldError{fmt.Sprintf("weights key %q: %v", k, err)}
		}
		if v < 0 {
			return Vote{}, &requiredFieldError{fmt.Sprintf("weight for subnet %d must be >= 0, got %v", sid, v)}
		}
		weights[sid] = v
	}

	vote := Vote{
		VoterHotkey: hk,
		BlockHeight: w.BlockHeight,
		VoterStake:  *stake,
		Weights:     weights,
	}

	if len(w.Timestamp) > 0 && string(w.Timestamp) != "null" {
		var ts time.Time
		if err := json.Unmarshal(w.Timestamp, &ts); err == nil {
			vote.Timestamp = &ts
		}
		// malformed timestamp: silently dropped, it is optional.
	}

	return vote, nil
}

func parseSubnetID(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// decodeVotes parses a JSON array of wire votes, skipping individually
// malformed rows (§4.B, §7) and returning an error only when the payload
// itself is not a JSON array.
func decodeVotes(data []byte, onSkip func(reason string)) ([]Vote, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("expected JSON array from /votes/latest: %w", err)
	}

	votes := make([]Vote, 0, len(raw))
	for _, item := range raw {
		var wv wireVote
		if err := json.Unmarshal(item, &wv); err != nil {
			if onSkip != nil {
				onSkip(err.Error())
			}
			continue
		}
		v, err := wv.toVote()
		if err != nil {
			if onSkip != nil {
				onSkip(err.Error())
			}
			continue
		}
		votes = append(votes, v)
	}
	return votes, nil
}
