package tc

import "testing"

func TestFormatRateForTC(t *testing.T) {
	cases := []struct {
		mbps uint64
		want string
	}{
		{0, "1mbit"},
		{1, "1mbit"},
		{100, "100mbit"},
	}
	for _, c := range cases {
		if got := FormatRateForTC(c.mbps); got != c.want {
			t.Errorf("FormatRateForTC(%d) = %q, want %q", c.mbps, got, c.want)
		}
	}
}

func TestFormatRateForTCFloat(t *testing.T) {
	cases := []struct {
		mbps float32
		want string
	}{
		{0.4, "1mbit"},
		{0, "1mbit"},
		{99.6, "100mbit"},
		{50.4, "50mbit"},
	}
	for _, c := range cases {
		if got := FormatRateForTCFloat(c.mbps); got != c.want {
			t.Errorf("FormatRateForTCFloat(%v) = %q, want %q", c.mbps, got, c.want)
		}
	}
}

func TestR2Q_NeverBelowBase(t *testing.T) {
	cases := []uint64{0, 1, 10, 100, 1000}
	for _, mbps := range cases {
		if got := R2Q(mbps); got < baseR2Q {
			t.Errorf("R2Q(%d) = %d, want >= %d", mbps, got, baseR2Q)
		}
	}
}

func TestR2Q_ScalesUpForHighBandwidth(t *testing.T) {
	low := R2Q(100)
	high := R2Q(10000)
	if high < low {
		t.Errorf("R2Q(10000) = %d should be >= R2Q(100) = %d", high, low)
	}
}

func TestQuantum_Bounds(t *testing.T) {
	// A tiny rate should floor at the MTU.
	if got := Quantum(1, R2Q(1000)); got != "1500" {
		t.Errorf("Quantum(1, ...) = %q, want floored at MTU 1500", got)
	}
	// A huge rate at a tiny r2q should cap at maxQuantumBytes.
	if got := Quantum(100000, 1); got != "200000" {
		t.Errorf("Quantum(100000, 1) = %q, want capped at %d", got, maxQuantumBytes)
	}
}

func TestQuantum_ZeroR2QFallsBackToBase(t *testing.T) {
	withZero := Quantum(1000, 0)
	withBase := Quantum(1000, baseR2Q)
	if withZero != withBase {
		t.Errorf("Quantum with r2q=0 = %q, want same as base r2q %q", withZero, withBase)
	}
}

func TestSQMRateFixup_RewritesBandwidth(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.SQM = []string{"cake", "bandwidth", "1000mbit", "diffserv4"}

	got := SQMRateFixup(50, cfg)
	want := []string{"cake", "bandwidth", "50mbit", "diffserv4"}
	if !equalTokens(got, want) {
		t.Errorf("SQMRateFixup = %v, want %v", got, want)
	}
}

func TestSQMRateFixup_AppendsBandwidthWhenAbsent(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.SQM = []string{"fq_codel"}

	got := SQMRateFixup(25, cfg)
	want := []string{"fq_codel", "bandwidth", "25mbit"}
	if !equalTokens(got, want) {
		t.Errorf("SQMRateFixup = %v, want %v", got, want)
	}
}

func TestSQMRateFixup_LowRateCakeGetsStretchedRTT(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.SQM = []string{"cake", "diffserv4"}

	got := SQMRateFixup(5, cfg)
	want := []string{"cake", "diffserv4", "bandwidth", "5mbit", "rtt", "300ms"}
	if !equalTokens(got, want) {
		t.Errorf("SQMRateFixup = %v, want %v", got, want)
	}
}

func TestSQMRateFixup_ExplicitRTTWins(t *testing.T) {
	cfg := testConfig()
	cfg.Queues.SQM = []string{"cake", "rtt", "50ms"}

	got := SQMRateFixup(5, cfg)
	want := []string{"cake", "rtt", "50ms", "bandwidth", "5mbit"}
	if !equalTokens(got, want) {
		t.Errorf("SQMRateFixup = %v, want %v", got, want)
	}
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
