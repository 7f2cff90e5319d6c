// Package iot discovers devices on the local network from the kernel ARP
// table. Devices are tracked across runs so the collector can report new
// arrivals and devices that dropped off the network. Optionally it probes
// a few well-known IoT service ports on each visible device.
package iot

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/proc-pulse/collectors"
)

const (
	collectorName        = "iot"
	collectorDescription = "Network devices from the ARP table, with optional service probes"

	defaultInterval = 60 * time.Second
	defaultTimeout  = 5 * time.Second

	arpTablePath = "/proc/net/arp"

	// probeDialTimeout bounds a single port probe.
	probeDialTimeout = 200 * time.Millisecond
)

// probePorts are the service ports checked when probing is enabled:
// MQTT, SSDP, CoAP and MQTT over TLS.
var probePorts = []uint32{1883, 1900, 5683, 8883}

// arpEntry is one complete row of the ARP table.
type arpEntry struct {
	IP     string
	MAC    string
	Device string
}

// deviceState tracks one device across runs.
type deviceState struct {
	mac      string
	lastSeen time.Time
	online   bool
}

// Config tunes the iot collector.
type Config struct {
	// Interval overrides the collection cadence when positive.
	Interval time.Duration
	// Timeout overrides the per-run deadline when positive.
	Timeout time.Duration
	// ProbePorts enables TCP probes of well-known IoT service ports on
	// every device visible in the ARP table.
	ProbePorts bool
}

// Collector implements collectors.Collector for network device discovery.
type Collector struct {
	config Config
	logger *slog.Logger

	// Overridable probes for testing.
	readARPTable func() ([]byte, error)
	dial         func(ctx context.Context, addr string) error

	mu       sync.Mutex
	devices  map[string]*deviceState
	baseline bool
}

// New creates an iot Collector.
// If logger is nil, a no-op logger is used.
func New(config Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Collector{
		config:       config,
		logger:       logger,
		readARPTable: readProcARP,
		dial:         dialTCP,
		devices:      make(map[string]*deviceState),
	}
}

// Name returns the collector's unique identifier.
func (c *Collector) Name() string {
	return collectorName
}

// Description returns a human-readable description of what this collector watches.
func (c *Collector) Description() string {
	return collectorDescription
}

// Interval returns the collection cadence.
func (c *Collector) Interval() time.Duration {
	if c.config.Interval > 0 {
		return c.config.Interval
	}
	return defaultInterval
}

// Timeout returns the per-run deadline.
func (c *Collector) Timeout() time.Duration {
	if c.config.Timeout > 0 {
		return c.config.Timeout
	}
	return defaultTimeout
}

// Collect reads the ARP table and diffs it against the device set from
// previous runs. The first run only establishes the baseline; later runs
// alert on new devices and on devices that went offline.
func (c *Collector) Collect(ctx context.Context) (*collectors.DomainSummary, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()

	raw, err := c.readARPTable()
	if err != nil {
		return nil, fmt.Errorf("iot: read arp table: %w", err)
	}
	entries := parseARPTable(raw)

	summary := collectors.NewSummary(collectorName)

	online := make(map[string]bool, len(entries))
	newDevices := 0
	for _, e := range entries {
		online[e.IP] = true
		st, known := c.devices[e.IP]
		if !known {
			st = &deviceState{mac: e.MAC}
			c.devices[e.IP] = st
			newDevices++
			if c.baseline {
				summary.AddAlert(collectors.SeverityInfo,
					fmt.Sprintf("new device %s (%s) on %s", e.IP, e.MAC, e.Device))
			}
		}
		st.mac = e.MAC
		st.lastSeen = started
		st.online = true
	}

	offline := 0
	for ip, st := range c.devices {
		if online[ip] {
			continue
		}
		if st.online && c.baseline {
			summary.AddAlert(collectors.SeverityLow,
				fmt.Sprintf("device %s (%s) went offline", ip, st.mac))
		}
		st.online = false
		offline++
	}
	c.baseline = true

	summary.Metrics["devices_online"] = float64(len(entries))
	summary.Metrics["devices_known"] = float64(len(c.devices))
	summary.Metrics["devices_new"] = float64(newDevices)
	summary.Metrics["devices_offline"] = float64(offline)

	if c.config.ProbePorts {
		summary.Metrics["open_ports"] = float64(c.probe(ctx, entries))
	}

	summary.CollectedAt = time.Now()
	summary.Elapsed = time.Since(started)

	c.logger.Debug("device scan complete",
		slog.Int("online", len(entries)),
		slog.Int("known", len(c.devices)),
		slog.Duration("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// probe dials every device/port pair concurrently and counts open ports.
func (c *Collector) probe(ctx context.Context, entries []arpEntry) int {
	type target struct {
		ip   string
		port uint32
	}
	targets := make([]target, 0, len(entries)*len(probePorts))
	for _, e := range entries {
		for _, port := range probePorts {
			targets = append(targets, target{ip: e.IP, port: port})
		}
	}

	open := make([]bool, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func(i int, tgt target) {
			defer wg.Done()
			addr := net.JoinHostPort(tgt.ip, strconv.Itoa(int(tgt.port)))
			if err := c.dial(ctx, addr); err == nil {
				open[i] = true
			}
		}(i, tgt)
	}
	wg.Wait()

	count := 0
	for _, ok := range open {
		if ok {
			count++
		}
	}
	return count
}

// parseARPTable extracts complete entries from /proc/net/arp content.
// Incomplete entries (flags 0x0 or a zero MAC) are skipped.
func parseARPTable(raw []byte) []arpEntry {
	var entries []arpEntry
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		ip, flags, mac, device := fields[0], fields[2], fields[3], fields[5]
		if flags == "0x0" || mac == "00:00:00:00:00:00" {
			continue
		}
		entries = append(entries, arpEntry{IP: ip, MAC: mac, Device: device})
	}
	return entries
}

func readProcARP() ([]byte, error) {
	return os.ReadFile(arpTablePath)
}

func dialTCP(ctx context.Context, addr string) error {
	d := net.Dialer{Timeout: probeDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Compile-time interface compliance check.
var _ collectors.Collector = (*Collector)(nil)
