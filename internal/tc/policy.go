package tc

import (
	"log/slog"

	"github.com/lqos-tc/bakery/internal/config"
)

// materializeDecision reports whether a circuit's HTB class and SQM leaf
// should be emitted for AddCircuit, given the execution mode and the
// configured lazy tier.
func materializeDecision(logger *slog.Logger, mode ExecutionMode, lazy config.LazyQueueMode) (doHTB, doSQM, skip bool) {
	if mode == Builder {
		switch lazy {
		case "", config.LazyNo:
			return true, true, false
		case config.LazyHtb:
			return true, false, false
		case config.LazyFull:
			return false, false, true
		}
	} else {
		switch lazy {
		case "", config.LazyNo:
			if logger != nil {
				logger.Warn("live update encountered with lazy queues disabled; ignoring")
			}
			return false, false, false
		case config.LazyHtb:
			return false, true, false
		case config.LazyFull:
			return true, true, false
		}
	}
	return false, false, false
}

// pruneDecision reports whether a circuit's HTB class and/or SQM leaf
// should be removed. Force overrides the lazy tier and removes both.
func pruneDecision(logger *slog.Logger, force bool, lazy config.LazyQueueMode) (pruneHTB, pruneSQM, skip bool) {
	if force {
		return true, true, false
	}
	switch lazy {
	case "", config.LazyNo:
		if logger != nil {
			logger.Warn("prune requested with lazy queues disabled; nothing to do")
		}
		return false, false, true
	case config.LazyHtb:
		return false, true, false
	case config.LazyFull:
		return true, true, false
	}
	return false, false, true
}
