package chainadapter

import "testing"

func TestEpochLengthAcceptsTempoOrTempoPlusOne(t *testing.T) {
	// h=1000, t=100 -> epoch floor 1000; n=1100 -> L=100=t, accepted.
	if got := EpochLength(100, 1000, 1100); got != 100 {
		t.Fatalf("expected L=100, got %d", got)
	}
	// n=1101 -> L=101=t+1, accepted (boundary-block off-by-one).
	if got := EpochLength(100, 1000, 1101); got != 101 {
		t.Fatalf("expected L=101, got %d", got)
	}
}

func TestEpochLengthFallsBackOutsideAcceptedRange(t *testing.T) {
	// n way out of range -> fall back to t+1.
	if got := EpochLength(100, 1000, 2000); got != 101 {
		t.Fatalf("expected fallback L=101, got %d", got)
	}
}

func TestEpochLengthHandlesNextEpochStartBeforeFloor(t *testing.T) {
	// Defensive: n < epoch floor should not underflow, falls back to t+1.
	if got := EpochLength(100, 1050, 900); got != 101 {
		t.Fatalf("expected fallback L=101, got %d", got)
	}
}

func TestMetagraphLookupHelpers(t *testing.T) {
	m := Metagraph{UIDs: []uint64{1, 2, 3}, Coldkeys: []string{"ck1", "ck2", "ck3"}}

	if ck, ok := m.ColdkeyForUID(2); !ok || ck != "ck2" {
		t.Fatalf("expected ck2 for uid 2, got %q ok=%v", ck, ok)
	}
	if _, ok := m.ColdkeyForUID(99); ok {
		t.Fatal("expected no coldkey for unknown uid")
	}

	if uid, ok := m.UIDForColdkey("ck3"); !ok || uid != 3 {
		t.Fatalf("expected uid 3 for ck3, got %d ok=%v", uid, ok)
	}
	if _, ok := m.UIDForColdkey("unknown"); ok {
		t.Fatal("expected no uid for unknown coldkey")
	}
}

func TestMockAdapterSubmitWeightsRecordsCall(t *testing.T) {
	m := NewMockAdapter()
	if err := m.SubmitWeights(nil, 10, []uint64{1, 2}, []float64{0.5, 0.5}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(m.Submitted))
	}
	if m.Submitted[0].Subnet != 10 {
		t.Fatalf("expected subnet 10, got %d", m.Submitted[0].Subnet)
	}
}

func TestMockAdapterFailNextInjectsOneTimeError(t *testing.T) {
	m := NewMockAdapter()
	boom := errSentinel("boom")
	m.FailNext["CurrentBlock"] = boom

	if _, err := m.CurrentBlock(nil); err != boom {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := m.CurrentBlock(nil); err != nil {
		t.Fatalf("expected error cleared after first call, got %v", err)
	}
}

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
