package tc

import "fmt"

// MqRootHandle is the constant root handle every MQ qdisc is created under.
const MqRootHandle = "7FFF:"

// Handle is a `tc` class/qdisc handle, a major:minor pair. Handles are
// allocated by the topology builder and are not reused across rebuilds
// unless the caller persists and replays them.
type Handle struct {
	Major uint16
	Minor uint16
}

// String renders the handle as `tc` expects for a classid or parent token:
// lowercase hex, no leading zeros beyond the `0x` prefix.
func (h Handle) String() string {
	return fmt.Sprintf("0x%x:0x%x", h.Major, h.Minor)
}

// IsRoot reports whether this handle addresses a qdisc root (minor 0).
func (h Handle) IsRoot() bool {
	return h.Minor == 0
}

// ClassID renders just the minor component as a classid token, e.g. "0x10",
// used where the major is implied by the parent (site and circuit classes
// share their parent's major and only carry a distinct minor).
func (h Handle) ClassID() string {
	return fmt.Sprintf("0x%x", h.Minor)
}

// QdiscHandle renders the major component as a qdisc handle token, e.g.
// "0x1:", the form used when a per-queue HTB qdisc's own handle (rather
// than a classid under it) is addressed.
func (h Handle) QdiscHandle() string {
	return fmt.Sprintf("0x%x:", h.Major)
}

// MajorID renders just the major component as a classid token, e.g. "0x3",
// used when addressing an MQ leaf by queue index (parent 7FFF:0x3).
func (h Handle) MajorID() string {
	return fmt.Sprintf("0x%x", h.Major)
}
