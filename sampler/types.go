// Package sampler polls the local machine for process and system metrics.
//
// Every section of a sample carries an explicit availability marker: a
// metric the platform could not provide is absent, never a misleading zero.
// CPU percentages and I/O rates need two observations, so they are
// unavailable on the first poll and on a process's first sighting.
package sampler

import "time"

// ProcStatus is the normalized scheduler state of a process.
type ProcStatus int

const (
	StatusUnknown ProcStatus = iota
	StatusRunning
	StatusSleeping
	StatusStopped
	StatusZombie
)

func (s ProcStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSleeping:
		return "sleeping"
	case StatusStopped:
		return "stopped"
	case StatusZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string name.
func (s ProcStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ProcessSample is one process observed during a poll.
type ProcessSample struct {
	PID  int32 `json:"pid"`
	PPID int32 `json:"ppid"`
	// PPIDKnown distinguishes a real parent pid of zero from a parent the
	// platform would not reveal.
	PPIDKnown bool `json:"ppid_known"`

	Name    string     `json:"name"`
	User    string     `json:"user,omitempty"`
	Cmdline string     `json:"cmdline,omitempty"`
	Status  ProcStatus `json:"status"`

	// CPUPercent is usage since the previous poll. CPUValid is false on a
	// process's first sighting.
	CPUPercent float64 `json:"cpu_percent"`
	CPUValid   bool    `json:"cpu_valid"`

	RSS        uint64  `json:"rss"`
	MemPercent float32 `json:"mem_percent"`
	MemValid   bool    `json:"mem_valid"`

	StartTime  time.Time `json:"start_time"`
	StartValid bool      `json:"start_valid"`

	Threads int32 `json:"threads"`

	// Unavailable names the fields that could not be read for this process,
	// typically for permission reasons.
	Unavailable []string `json:"unavailable,omitempty"`
}

// IsKernelThread reports whether a sample looks like a kernel thread:
// an empty command line under kthreadd (PID 2). Zombies also lose their
// command line, so they are never classified as kernel threads.
func IsKernelThread(p ProcessSample) bool {
	if p.Cmdline != "" || p.Status == StatusZombie {
		return false
	}
	return p.PID == 2 || (p.PPIDKnown && p.PPID == 2)
}

// CPUMetrics is the global CPU section of a sample.
type CPUMetrics struct {
	Sampled      bool      `json:"sampled"`
	TotalPercent float64   `json:"total_percent"`
	PerCore      []float64 `json:"per_core,omitempty"`
	Cores        int       `json:"cores"`
}

// MemoryMetrics covers RAM and swap.
type MemoryMetrics struct {
	Sampled     bool    `json:"sampled"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	Cached      uint64  `json:"cached"`
	UsedPercent float64 `json:"used_percent"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapPercent float64 `json:"swap_percent"`
}

// LoadMetrics is the load average triple.
type LoadMetrics struct {
	Sampled bool    `json:"sampled"`
	Load1   float64 `json:"load1"`
	Load5   float64 `json:"load5"`
	Load15  float64 `json:"load15"`
}

// NetInterface is one NIC's cumulative counters plus derived rates.
type NetInterface struct {
	Name      string `json:"name"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
	Errin     uint64 `json:"errin"`
	Errout    uint64 `json:"errout"`

	// Rates are bytes per second since the previous poll; meaningful only
	// when the parent NetMetrics has RatesValid set.
	RxRate float64 `json:"rx_rate"`
	TxRate float64 `json:"tx_rate"`
}

// NetMetrics aggregates all interfaces.
type NetMetrics struct {
	Sampled     bool           `json:"sampled"`
	RatesValid  bool           `json:"rates_valid"`
	Interfaces  []NetInterface `json:"interfaces,omitempty"`
	TotalRxRate float64        `json:"total_rx_rate"`
	TotalTxRate float64        `json:"total_tx_rate"`
}

// DiskVolume is one mounted filesystem.
type DiskVolume struct {
	Device      string  `json:"device"`
	Mount       string  `json:"mount"`
	Fstype      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskMetrics covers volume usage and aggregate I/O throughput.
type DiskMetrics struct {
	Sampled bool         `json:"sampled"`
	Volumes []DiskVolume `json:"volumes,omitempty"`

	// IOValid gates the cumulative counters and rates below; rates need a
	// previous poll.
	IOValid    bool    `json:"io_valid"`
	RatesValid bool    `json:"rates_valid"`
	ReadBytes  uint64  `json:"read_bytes"`
	WriteBytes uint64  `json:"write_bytes"`
	ReadRate   float64 `json:"read_rate"`
	WriteRate  float64 `json:"write_rate"`
}

// HostMetrics is static host identity plus uptime.
type HostMetrics struct {
	Sampled       bool      `json:"sampled"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform,omitempty"`
	KernelVersion string    `json:"kernel_version,omitempty"`
	UptimeSec     uint64    `json:"uptime_sec"`
	BootTime      time.Time `json:"boot_time"`
}

// SystemMetrics is the full machine-level section of a sample.
type SystemMetrics struct {
	CPU  CPUMetrics    `json:"cpu"`
	Mem  MemoryMetrics `json:"mem"`
	Load LoadMetrics   `json:"load"`
	Net  NetMetrics    `json:"net"`
	Disk DiskMetrics   `json:"disk"`
	Host HostMetrics   `json:"host"`

	// Warnings records sections that failed to read this poll.
	Warnings []string `json:"warnings,omitempty"`
}

// Sample is one complete poll of the machine.
type Sample struct {
	At        time.Time       `json:"at"`
	System    SystemMetrics   `json:"system"`
	Processes []ProcessSample `json:"processes"` // sorted by PID ascending
}
