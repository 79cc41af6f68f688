//go:build linux

package tc

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/lqos-tc/bakery/internal/config"
)

// ValidateInterfaces confirms the interfaces named in cfg exist before
// MqSetup is emitted, so a typo in the config fails fast with a clear error
// instead of surfacing as an opaque `tc` exit code.
func ValidateInterfaces(cfg *config.Config) error {
	if _, err := netlink.LinkByName(cfg.ISPInterface()); err != nil {
		return fmt.Errorf("isp interface %s not found: %w", cfg.ISPInterface(), err)
	}
	if cfg.OnAStickMode {
		return nil
	}
	if _, err := netlink.LinkByName(cfg.InternetInterface()); err != nil {
		return fmt.Errorf("internet interface %s not found: %w", cfg.InternetInterface(), err)
	}
	return nil
}
