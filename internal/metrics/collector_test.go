package metrics

import (
	"testing"
	"time"

	"github.com/lqos-tc/bakery/internal/logging"
)

type fakeTopologySource struct {
	sites  int
	states map[string]int
}

func (f *fakeTopologySource) SiteCount() int                       { return f.sites }
func (f *fakeTopologySource) CircuitCountsByState() map[string]int { return f.states }

func TestCollector_Collect(t *testing.T) {
	logger := logging.New(logging.DefaultConfig())
	src := &fakeTopologySource{sites: 3, states: map[string]int{"full": 2, "virtual": 5}}
	c := NewCollector(logger, src, time.Minute)

	if !c.GetLastUpdate().IsZero() {
		t.Error("expected initial lastUpdate to be zero")
	}

	c.Collect()

	if c.GetLastUpdate().IsZero() {
		t.Error("expected lastUpdate to be set after Collect")
	}
	counts := c.GetCircuitCountsByState()
	if counts["full"] != 2 || counts["virtual"] != 5 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestCollector_Lifecycle(t *testing.T) {
	logger := logging.New(logging.DefaultConfig())
	src := &fakeTopologySource{sites: 1, states: map[string]int{"full": 1}}
	c := NewCollector(logger, src, 10*time.Millisecond)

	initialUpdate := c.GetLastUpdate()
	if !initialUpdate.IsZero() {
		t.Error("expected initial lastUpdate to be zero")
	}

	go c.Start()
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	finalUpdate := c.GetLastUpdate()
	if !finalUpdate.After(initialUpdate) {
		t.Error("expected lastUpdate to be updated after Start()")
	}
}

func TestCollector_NilSource(t *testing.T) {
	logger := logging.New(logging.DefaultConfig())
	c := NewCollector(logger, nil, time.Minute)

	c.Collect()
	if !c.GetLastUpdate().IsZero() {
		t.Error("expected no update with a nil source")
	}
}
