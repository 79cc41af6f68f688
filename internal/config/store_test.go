package config

import "testing"

func TestStore_ReplacePublishesNewSnapshot(t *testing.T) {
	first := DefaultConfig()
	first.ISPInterfaceName = "eth0"
	s := NewStore(first)

	if got := s.Get().ISPInterfaceName; got != "eth0" {
		t.Fatalf("initial snapshot isp_interface = %q, want eth0", got)
	}

	second := DefaultConfig()
	second.ISPInterfaceName = "eth2"
	s.Replace(second)

	if got := s.Get().ISPInterfaceName; got != "eth2" {
		t.Errorf("after Replace, isp_interface = %q, want eth2", got)
	}
}

func TestStore_SnapshotIsIsolatedFromCallerMutation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ISPInterfaceName = "eth0"
	s := NewStore(cfg)

	cfg.ISPInterfaceName = "mutated"
	cfg.Queues.SQM[0] = "mutated"

	snap := s.Get()
	if snap.ISPInterfaceName != "eth0" {
		t.Errorf("published snapshot saw caller mutation: %q", snap.ISPInterfaceName)
	}
	if snap.Queues.SQM[0] == "mutated" {
		t.Error("published snapshot aliased the caller's SQM slice")
	}
}

func TestStore_OldSnapshotSurvivesReplace(t *testing.T) {
	first := DefaultConfig()
	first.ISPInterfaceName = "eth0"
	s := NewStore(first)

	held := s.Get()
	second := DefaultConfig()
	second.ISPInterfaceName = "eth2"
	s.Replace(second)

	if held.ISPInterfaceName != "eth0" {
		t.Errorf("held snapshot changed across Replace: %q", held.ISPInterfaceName)
	}
}
