// Package tc implements the Bakery: the subsystem that owns the intended
// HTB/SQM shaping topology for an ISP traffic-shaping box, computes the
// minimal ordered sequence of `tc` mutations needed to bring the kernel in
// line with it, and keeps the two in sync as circuits come and go.
package tc

import (
	"fmt"
	"math"
	"strings"

	"github.com/lqos-tc/bakery/internal/config"
)

const (
	mtuBytes           = 1500
	baseR2Q            = 10
	targetQuantumBytes = 60000
	maxQuantumBytes    = 200000
)

// FormatRateForTC renders an integer Mbps value as a `tc` rate token.
// Values below 1 Mbps are rounded up to 1, since `tc` rejects a zero rate.
func FormatRateForTC(mbps uint64) string {
	if mbps < 1 {
		mbps = 1
	}
	return fmt.Sprintf("%dmbit", mbps)
}

// FormatRateForTCFloat renders a float32 Mbps value as a `tc` rate token,
// rounding to the nearest integer Mbps (minimum 1).
func FormatRateForTCFloat(mbps float32) string {
	rounded := uint64(math.Round(float64(mbps)))
	return FormatRateForTC(rounded)
}

// R2Q computes the HTB r2q tuning knob for the largest link capacity in the
// system. HTB derives each class's quantum as rate/r2q; left at the kernel's
// default of 10, high-capacity links (multiple Gbps) produce quantums large
// enough that `tc` warns and DRR fairness degrades. R2Q scales upward so the
// resulting quantum stays near targetQuantumBytes regardless of rate, never
// dropping below the kernel's base of 10.
func R2Q(maxBandwidthMbps uint64) uint32 {
	if maxBandwidthMbps == 0 {
		maxBandwidthMbps = 1
	}
	rateBytesPerSec := float64(maxBandwidthMbps) * 1_000_000 / 8
	scaled := uint32(math.Ceil(rateBytesPerSec / targetQuantumBytes))
	if scaled < baseR2Q {
		return baseR2Q
	}
	return scaled
}

// Quantum computes the DRR byte credit per round for a class shaped at
// rateMbps under the given r2q, as a decimal byte-count string. It is
// lower-bounded at the MTU (1500 bytes) and upper-bounded to keep `tc` from
// warning about an oversized quantum.
func Quantum(rateMbps uint64, r2q uint32) string {
	if r2q == 0 {
		r2q = baseR2Q
	}
	rateBytesPerSec := float64(rateMbps) * 1_000_000 / 8
	q := rateBytesPerSec / float64(r2q)
	if q < mtuBytes {
		q = mtuBytes
	}
	if q > maxQuantumBytes {
		q = maxQuantumBytes
	}
	return fmt.Sprintf("%d", uint64(math.Round(q)))
}

// SQMAsVec tokenizes the configured SQM template, splitting any
// whitespace-joined entries into individual argv tokens.
func SQMAsVec(cfg *config.Config) []string {
	var tokens []string
	for _, entry := range cfg.Queues.SQM {
		tokens = append(tokens, strings.Fields(entry)...)
	}
	return tokens
}

// lowRateCeilingMbps is the ceiling below which cake gets a stretched rtt:
// at single-digit-Mbps rates the default 100ms window is too tight for the
// serialization delay of full-size packets, and cake's own docs recommend
// raising it.
const lowRateCeilingMbps = 10

// SQMRateFixup returns the SQM argv tokens for a leaf shaped at ceilingMbps,
// substituting the `bandwidth` parameter so the qdisc is sized for the
// circuit's actual ceiling rather than the template's default, and
// stretching cake's `rtt` for low-rate circuits.
func SQMRateFixup(ceilingMbps float32, cfg *config.Config) []string {
	tokens := SQMAsVec(cfg)
	out := make([]string, 0, len(tokens)+4)
	rate := FormatRateForTCFloat(ceilingMbps)

	for i := 0; i < len(tokens); i++ {
		out = append(out, tokens[i])
		if strings.EqualFold(tokens[i], "bandwidth") {
			// Skip the template's own bandwidth value, substitute ours.
			if i+1 < len(tokens) {
				i++
			}
			out = append(out, rate)
		}
	}
	if !containsFold(tokens, "bandwidth") {
		out = append(out, "bandwidth", rate)
	}
	if ceilingMbps < lowRateCeilingMbps &&
		len(tokens) > 0 && strings.EqualFold(tokens[0], "cake") &&
		!containsFold(tokens, "rtt") {
		out = append(out, "rtt", "300ms")
	}
	return out
}

func containsFold(tokens []string, want string) bool {
	for _, t := range tokens {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
