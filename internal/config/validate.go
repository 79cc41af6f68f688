package config

import "fmt"

// Validate checks structural invariants the Bakery relies on before it
// will build a topology from this config.
func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.ISPInterfaceName == "" {
		return fmt.Errorf("isp_interface is required")
	}
	if !c.OnAStickMode && c.InternetInterfaceName == "" {
		return fmt.Errorf("internet_interface is required unless on_a_stick_mode is set")
	}
	if c.Queues.UplinkBandwidthMbps == 0 {
		return fmt.Errorf("queues.uplink_bandwidth_mbps must be > 0")
	}
	if c.Queues.DownlinkBandwidthMbps == 0 {
		return fmt.Errorf("queues.downlink_bandwidth_mbps must be > 0")
	}
	switch c.Queues.LazyQueues {
	case "", LazyNo, LazyHtb, LazyFull:
	default:
		return fmt.Errorf("queues.lazy_queues must be one of %q, %q, %q", LazyNo, LazyHtb, LazyFull)
	}
	if c.QueuesAvailable == 0 {
		return fmt.Errorf("queues_available must be > 0")
	}
	return nil
}
