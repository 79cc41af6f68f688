package config

import "testing"

func TestDefaultConfigIsInvalidWithoutInterfaces(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err == nil {
		t.Fatal("expected default config to be invalid without interfaces set")
	}
}

func TestValidateRequiresInternetInterfaceUnlessOnAStick(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ISPInterfaceName = "eth0"
	cfg.Queues.UplinkBandwidthMbps = 1000
	cfg.Queues.DownlinkBandwidthMbps = 1000

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when internet_interface is missing and not on-a-stick")
	}

	cfg.OnAStickMode = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected on-a-stick config to validate, got %v", err)
	}
	if cfg.InternetInterface() != cfg.ISPInterface() {
		t.Fatalf("on-a-stick mode should share interfaces, got isp=%s internet=%s", cfg.ISPInterface(), cfg.InternetInterface())
	}
}

func TestLoadHCL(t *testing.T) {
	src := []byte(`
isp_interface     = "eth0"
internet_interface = "eth1"
on_a_stick_mode    = false

queues {
  uplink_bandwidth_mbps   = 1000
  downlink_bandwidth_mbps = 1000
  lazy_queues             = "htb"
  monitor_only            = false
  sqm                     = ["cake", "diffserv4"]
}
`)
	cfg, err := LoadHCL(src, "test.hcl")
	if err != nil {
		t.Fatalf("LoadHCL: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Queues.LazyQueues != LazyHtb {
		t.Fatalf("expected lazy_queues=htb, got %s", cfg.Queues.LazyQueues)
	}
	if len(cfg.Queues.SQM) != 2 {
		t.Fatalf("expected 2 SQM tokens, got %d", len(cfg.Queues.SQM))
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ISPInterfaceName = "eth0"
	clone := cfg.Clone()
	clone.Queues.SQM[0] = "fq_codel"
	if cfg.Queues.SQM[0] == "fq_codel" {
		t.Fatal("Clone should not alias the SQM slice")
	}
}
