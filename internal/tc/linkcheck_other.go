//go:build !linux

package tc

import "github.com/lqos-tc/bakery/internal/config"

// ValidateInterfaces is a no-op off Linux, where there is no netlink to
// query and no `tc` binary to drive in the first place.
func ValidateInterfaces(cfg *config.Config) error {
	return nil
}
