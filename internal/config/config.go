package config

// CurrentSchemaVersion is the schema version this loader writes and expects.
const CurrentSchemaVersion = "1.0"

// LazyQueueMode controls when HTB classes and SQM leaf qdiscs are created
// for a circuit relative to observed traffic.
type LazyQueueMode string

const (
	// LazyNo materializes HTB and SQM for every circuit up front.
	LazyNo LazyQueueMode = "no"
	// LazyHtb materializes HTB up front; SQM is deferred until activity.
	LazyHtb LazyQueueMode = "htb"
	// LazyFull defers both HTB and SQM until activity is observed.
	LazyFull LazyQueueMode = "full"
)

// Queues holds the bandwidth and lazy-materialization settings that drive
// the Bakery's command encoder.
type Queues struct {
	UplinkBandwidthMbps   uint64        `hcl:"uplink_bandwidth_mbps" json:"uplink_bandwidth_mbps"`
	DownlinkBandwidthMbps uint64        `hcl:"downlink_bandwidth_mbps" json:"downlink_bandwidth_mbps"`
	LazyQueues            LazyQueueMode `hcl:"lazy_queues,optional" json:"lazy_queues,omitempty"`
	MonitorOnly           bool          `hcl:"monitor_only,optional" json:"monitor_only"`
	// SQM is the tokenized leaf qdisc template, e.g. ["cake", "bandwidth", "1000mbit", "diffserv4"].
	SQM []string `hcl:"sqm,optional" json:"sqm,omitempty"`
}

// Config is the top-level Bakery configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// ISPInterfaceName carries download traffic towards subscribers (interface_a).
	ISPInterfaceName string `hcl:"isp_interface" json:"isp_interface"`
	// InternetInterfaceName carries upload traffic towards the internet (interface_b).
	// In on-a-stick mode this is ignored: both directions share ISPInterfaceName.
	InternetInterfaceName string `hcl:"internet_interface,optional" json:"internet_interface,omitempty"`
	// OnAStickMode collapses upload and download onto a single physical interface.
	OnAStickMode bool `hcl:"on_a_stick_mode,optional" json:"on_a_stick_mode"`
	// StickOffset is the queue-index offset applied to upload queues when on-a-stick.
	StickOffset uint64 `hcl:"stick_offset,optional" json:"stick_offset,omitempty"`

	Queues Queues `hcl:"queues,block" json:"queues"`

	// LqosDirectory is where the override file and other runtime state live.
	LqosDirectory string `hcl:"lqos_directory,optional" json:"lqos_directory,omitempty"`

	// QueuesAvailable is the number of hardware TX queues per interface to
	// create MQ children for.
	QueuesAvailable uint64 `hcl:"queues_available,optional" json:"queues_available,omitempty"`
}

// ISPInterface returns the interface name carrying download traffic.
func (c *Config) ISPInterface() string {
	return c.ISPInterfaceName
}

// InternetInterface returns the interface name carrying upload traffic. In
// on-a-stick mode this is the same interface as ISPInterface.
func (c *Config) InternetInterface() string {
	if c.OnAStickMode {
		return c.ISPInterfaceName
	}
	return c.InternetInterfaceName
}

// DefaultConfig returns sensible defaults for a two-interface deployment.
func DefaultConfig() *Config {
	return &Config{
		SchemaVersion:   CurrentSchemaVersion,
		QueuesAvailable: 1,
		LqosDirectory:   "/etc/lqos",
		Queues: Queues{
			LazyQueues: LazyNo,
			SQM:        []string{"cake", "diffserv4"},
		},
	}
}

// Clone returns a deep-enough copy of the config for snapshot-on-reload use.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Queues.SQM = append([]string(nil), c.Queues.SQM...)
	return &clone
}
