package tc

import (
	"io"
	"log/slog"
	"sync"

	"github.com/lqos-tc/bakery/internal/config"
)

// testConfig returns a two-interface configuration with no lazy
// materialization, suitable as a baseline for encoder and batch tests.
func testConfig() *config.Config {
	return &config.Config{
		ISPInterfaceName:      "isp",
		InternetInterfaceName: "internet",
		QueuesAvailable:       1,
		Queues: config.Queues{
			UplinkBandwidthMbps:   1000,
			DownlinkBandwidthMbps: 1000,
			LazyQueues:            config.LazyNo,
			SQM:                   []string{"cake", "diffserv4"},
		},
	}
}

// testStore wraps a config in a fresh snapshot store.
func testStore(cfg *config.Config) *config.Store {
	return config.NewStore(cfg)
}

// testLogger discards output; tests assert on return values, not log lines.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records every argv it's asked to run instead of shelling out.
// Safe for concurrent use: the executor dispatches from its own goroutine
// while tests inspect the recorded calls.
type fakeRunner struct {
	mu    sync.Mutex
	calls []ArgVec
	err   error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{}
}

func (f *fakeRunner) Run(argv ArgVec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, argv)
	return f.err
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) recorded() []ArgVec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ArgVec(nil), f.calls...)
}
