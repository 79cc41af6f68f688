package tc

import (
	"log/slog"
	"sync/atomic"

	"github.com/lqos-tc/bakery/internal/config"
)

// mqCreated is set once the encoder has produced the MqSetup argv; it does
// not track whether dispatching those commands succeeded. It is
// process-wide, held only in memory, read with relaxed ordering by other
// subsystems, and never reset in steady operation.
var mqCreated atomic.Bool

// MqCreated reports whether the encoder has produced the MqSetup argv in
// this process.
func MqCreated() bool { return mqCreated.Load() }

// ToCommands translates a Command into its `tc` argument vectors, in strict
// execution order. It returns (nil, false) when the command is non-emitting
// (batch control, activity/tick) or when the lazy policy suppresses it
// entirely (Builder + LazyFull on AddCircuit). Apart from setting the
// process-wide MqCreated flag for MqSetup, it depends only on its inputs
// and performs no I/O.
func ToCommands(cmd Command, cfg *config.Config, mode ExecutionMode, logger *slog.Logger) ([]ArgVec, bool) {
	switch cmd.Kind {
	case KindMqSetup:
		return mqSetup(cfg, cmd.QueuesAvailable, cmd.StickOffset), true
	case KindAddSite:
		return addSite(cfg, cmd), true
	case KindAddCircuit:
		return addCircuit(cfg, cmd, mode, logger)
	case KindChangeSiteSpeedLive:
		return changeSiteSpeedLive(cfg, cmd), true
	case KindStormGuardAdjustment:
		return stormGuardAdjustment(cmd), true
	default:
		return nil, false
	}
}

// ToPrune translates an AddCircuit command into the `tc` deletions that
// remove the circuit it describes. It is the only command kind to which
// pruning applies; any other kind yields (nil, false).
func ToPrune(cmd Command, cfg *config.Config, force bool, logger *slog.Logger) ([]ArgVec, bool) {
	if cmd.Kind != KindAddCircuit {
		if logger != nil {
			logger.Warn("ToPrune called on non-circuit command", "kind", cmd.Kind)
		}
		return nil, false
	}

	pruneHTB, pruneSQM, skip := pruneDecision(logger, force, cfg.Queues.LazyQueues)
	if skip {
		return nil, false
	}

	var out []ArgVec
	if pruneSQM {
		if !cfg.OnAStickMode {
			out = append(out, ArgVec{
				"qdisc", "del", "dev", cfg.InternetInterface(),
				"parent", Handle{Major: cmd.UpClassMajor, Minor: cmd.ClassMinor}.String(),
			})
		}
		out = append(out, ArgVec{
			"qdisc", "del", "dev", cfg.ISPInterface(),
			"parent", Handle{Major: cmd.ClassMajor, Minor: cmd.ClassMinor}.String(),
		})
	}
	if pruneHTB {
		out = append(out, ArgVec{
			"class", "del", "dev", cfg.ISPInterface(),
			"parent", cmd.ParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
		})
		out = append(out, ArgVec{
			"class", "del", "dev", cfg.InternetInterface(),
			"parent", cmd.UpParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
		})
	}
	return out, true
}

func mqSetup(cfg *config.Config, queuesAvailable, stickOffset uint64) []ArgVec {
	var out []ArgVec

	out = append(out, ArgVec{"qdisc", "del", "dev", cfg.ISPInterface(), "root"})
	if !cfg.OnAStickMode {
		out = append(out, ArgVec{"qdisc", "del", "dev", cfg.InternetInterface(), "root"})
	}

	sqm := SQMAsVec(cfg)
	r2q := R2Q(maxU64(cfg.Queues.UplinkBandwidthMbps, cfg.Queues.DownlinkBandwidthMbps))

	out = append(out, ArgVec{"qdisc", "replace", "dev", cfg.ISPInterface(), "root", "handle", MqRootHandle, "mq"})
	out = append(out, mqQueueBlock(cfg.ISPInterface(), 0, queuesAvailable, cfg.Queues.UplinkBandwidthMbps, r2q, sqm)...)

	if !cfg.OnAStickMode {
		out = append(out, ArgVec{"qdisc", "replace", "dev", cfg.InternetInterface(), "root", "handle", MqRootHandle, "mq"})
	}
	out = append(out, mqQueueBlock(cfg.InternetInterface(), stickOffset, queuesAvailable, cfg.Queues.DownlinkBandwidthMbps, r2q, sqm)...)

	mqCreated.Store(true)
	return out
}

// mqQueueBlock emits the five-command block (htb qdisc, main class, main
// SQM, default class, default SQM) for each queue index on one interface.
func mqQueueBlock(iface string, offset, count uint64, linkCapMbps uint64, r2q uint32, sqm []string) []ArgVec {
	var out []ArgVec
	for q := uint64(0); q < count; q++ {
		h := Handle{Major: uint16(q + offset + 1)}

		out = append(out, ArgVec{
			"qdisc", "add", "dev", iface,
			"parent", MqRootHandle + h.MajorID(),
			"handle", h.QdiscHandle(),
			"htb", "default", "2",
		})
		out = append(out, ArgVec{
			"class", "add", "dev", iface,
			"parent", h.QdiscHandle(),
			"classid", h.QdiscHandle() + "1",
			"htb", "rate", FormatRateForTC(linkCapMbps),
			"ceil", FormatRateForTC(linkCapMbps),
			"quantum", Quantum(linkCapMbps, r2q),
		})
		mainSQM := append(ArgVec{"qdisc", "add", "dev", iface, "parent", h.QdiscHandle() + "1"}, sqm...)
		out = append(out, mainSQM)

		defaultRate := (linkCapMbps - 1) / 4
		defaultCeil := linkCapMbps - 1
		out = append(out, ArgVec{
			"class", "add", "dev", iface,
			"parent", h.QdiscHandle() + "1",
			"classid", h.QdiscHandle() + "2",
			"htb", "rate", FormatRateForTC(defaultRate),
			"ceil", FormatRateForTC(defaultCeil),
			"prio", "5",
			"quantum", Quantum(linkCapMbps, r2q),
		})
		defaultSQM := append(ArgVec{"qdisc", "add", "dev", iface, "parent", h.QdiscHandle() + "2"}, sqm...)
		out = append(out, defaultSQM)
	}
	return out
}

func addSite(cfg *config.Config, cmd Command) []ArgVec {
	return []ArgVec{
		{
			"class", "replace", "dev", cfg.ISPInterface(),
			"parent", cmd.ParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
			"htb", "rate", FormatRateForTCFloat(cmd.DownloadMin),
			"ceil", FormatRateForTCFloat(cmd.DownloadMax),
			"prio", "3",
			"quantum", Quantum(uint64(cmd.DownloadMax), R2Q(cfg.Queues.DownlinkBandwidthMbps)),
		},
		{
			"class", "replace", "dev", cfg.InternetInterface(),
			"parent", cmd.UpParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
			"htb", "rate", FormatRateForTCFloat(cmd.UploadMin),
			"ceil", FormatRateForTCFloat(cmd.UploadMax),
			"prio", "3",
			"quantum", Quantum(uint64(cmd.UploadMax), R2Q(cfg.Queues.UplinkBandwidthMbps)),
		},
	}
}

func changeSiteSpeedLive(cfg *config.Config, cmd Command) []ArgVec {
	out := addSite(cfg, cmd)
	out[0][1] = "change"
	out[1][1] = "change"
	return out
}

func addCircuit(cfg *config.Config, cmd Command, mode ExecutionMode, logger *slog.Logger) ([]ArgVec, bool) {
	doHTB, doSQM, skip := materializeDecision(logger, mode, cfg.Queues.LazyQueues)
	if skip {
		return nil, false
	}

	var out []ArgVec
	if doHTB {
		out = append(out, ArgVec{
			"class", "replace", "dev", cfg.ISPInterface(),
			"parent", cmd.ParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
			"htb", "rate", FormatRateForTCFloat(cmd.DownloadMin),
			"ceil", FormatRateForTCFloat(cmd.DownloadMax),
			"prio", "3",
			"quantum", Quantum(uint64(cmd.DownloadMax), R2Q(cfg.Queues.DownlinkBandwidthMbps)),
		})
	}
	if doSQM && !cfg.Queues.MonitorOnly {
		sqmCmd := append(ArgVec{
			"qdisc", "replace", "dev", cfg.ISPInterface(),
			"parent", Handle{Major: cmd.ClassMajor, Minor: cmd.ClassMinor}.String(),
		}, SQMRateFixup(cmd.DownloadMax, cfg)...)
		out = append(out, sqmCmd)
	}
	if doHTB {
		out = append(out, ArgVec{
			"class", "replace", "dev", cfg.InternetInterface(),
			"parent", cmd.UpParentClassID.String(),
			"classid", Handle{Minor: cmd.ClassMinor}.ClassID(),
			"htb", "rate", FormatRateForTCFloat(cmd.UploadMin),
			"ceil", FormatRateForTCFloat(cmd.UploadMax),
			"prio", "3",
			"quantum", Quantum(uint64(cmd.UploadMax), R2Q(cfg.Queues.UplinkBandwidthMbps)),
		})
	}
	if doSQM && !cfg.Queues.MonitorOnly {
		sqmCmd := append(ArgVec{
			"qdisc", "replace", "dev", cfg.InternetInterface(),
			"parent", Handle{Major: cmd.UpClassMajor, Minor: cmd.ClassMinor}.String(),
		}, SQMRateFixup(cmd.UploadMax, cfg)...)
		out = append(out, sqmCmd)
	}
	return out, true
}

func stormGuardAdjustment(cmd Command) []ArgVec {
	floor := uint64(0)
	if cmd.NewRateMbps > 0 {
		floor = cmd.NewRateMbps - 1
	}
	return []ArgVec{{
		"class", "change", "dev", cmd.InterfaceName,
		"classid", cmd.ClassID,
		"htb", "rate", FormatRateForTC(floor),
		"ceil", FormatRateForTC(cmd.NewRateMbps),
	}}
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
