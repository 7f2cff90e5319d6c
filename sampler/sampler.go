package sampler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// procHandle is the subset of per-process state the sampler reads. Handles
// are cached between polls so CPU percentages come out as deltas.
type procHandle interface {
	Name(ctx context.Context) (string, error)
	Ppid(ctx context.Context) (int32, error)
	Username(ctx context.Context) (string, error)
	Cmdline(ctx context.Context) (string, error)
	CPUPercent(ctx context.Context) (float64, error)
	MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error)
	MemoryPercent(ctx context.Context) (float32, error)
	Status(ctx context.Context) ([]string, error)
	CreateTime(ctx context.Context) (int64, error)
	NumThreads(ctx context.Context) (int32, error)
}

// gopsProc adapts *process.Process to procHandle.
type gopsProc struct {
	p *process.Process
}

func (g gopsProc) Name(ctx context.Context) (string, error)    { return g.p.NameWithContext(ctx) }
func (g gopsProc) Ppid(ctx context.Context) (int32, error)     { return g.p.PpidWithContext(ctx) }
func (g gopsProc) Username(ctx context.Context) (string, error) {
	return g.p.UsernameWithContext(ctx)
}
func (g gopsProc) Cmdline(ctx context.Context) (string, error) { return g.p.CmdlineWithContext(ctx) }
func (g gopsProc) CPUPercent(ctx context.Context) (float64, error) {
	return g.p.PercentWithContext(ctx, 0)
}
func (g gopsProc) MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error) {
	return g.p.MemoryInfoWithContext(ctx)
}
func (g gopsProc) MemoryPercent(ctx context.Context) (float32, error) {
	return g.p.MemoryPercentWithContext(ctx)
}
func (g gopsProc) Status(ctx context.Context) ([]string, error) { return g.p.StatusWithContext(ctx) }
func (g gopsProc) CreateTime(ctx context.Context) (int64, error) {
	return g.p.CreateTimeWithContext(ctx)
}
func (g gopsProc) NumThreads(ctx context.Context) (int32, error) {
	return g.p.NumThreadsWithContext(ctx)
}

// Sampler polls the machine. It is not safe for concurrent Poll calls; the
// engine drives it from a single goroutine.
type Sampler struct {
	logger *slog.Logger

	// Overridable probes for testing.
	cpuPercent func(ctx context.Context, percpu bool) ([]float64, error)
	cpuCounts  func(ctx context.Context) (int, error)
	virtualMem func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	swapMem    func(ctx context.Context) (*mem.SwapMemoryStat, error)
	loadAvg    func(ctx context.Context) (*load.AvgStat, error)
	partitions func(ctx context.Context) ([]disk.PartitionStat, error)
	diskIO     func(ctx context.Context) (map[string]disk.IOCountersStat, error)
	diskUsage  func(ctx context.Context, path string) (*disk.UsageStat, error)
	netIO      func(ctx context.Context) ([]gopsnet.IOCountersStat, error)
	hostInfo   func(ctx context.Context) (*host.InfoStat, error)
	listPids   func(ctx context.Context) ([]int32, error)
	openProc   func(ctx context.Context, pid int32) (procHandle, error)
	kill       func(pid int32) error
	now        func() time.Time

	firstPoll bool
	procs     map[int32]procHandle

	prevNetAt  time.Time
	prevNet    map[string]gopsnet.IOCountersStat
	prevDiskAt time.Time
	prevDiskR  uint64
	prevDiskW  uint64
}

// New creates a Sampler backed by the local machine.
// If logger is nil, a no-op logger is used.
func New(logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Sampler{
		logger: logger,
		cpuPercent: func(ctx context.Context, percpu bool) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 0, percpu)
		},
		cpuCounts: func(ctx context.Context) (int, error) {
			return cpu.CountsWithContext(ctx, true)
		},
		virtualMem: mem.VirtualMemoryWithContext,
		swapMem:    mem.SwapMemoryWithContext,
		loadAvg:    load.AvgWithContext,
		partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		},
		diskIO: func(ctx context.Context) (map[string]disk.IOCountersStat, error) {
			return disk.IOCountersWithContext(ctx)
		},
		diskUsage: disk.UsageWithContext,
		netIO: func(ctx context.Context) ([]gopsnet.IOCountersStat, error) {
			return gopsnet.IOCountersWithContext(ctx, true)
		},
		hostInfo: host.InfoWithContext,
		listPids: process.PidsWithContext,
		openProc: func(ctx context.Context, pid int32) (procHandle, error) {
			p, err := process.NewProcessWithContext(ctx, pid)
			if err != nil {
				return nil, err
			}
			return gopsProc{p: p}, nil
		},
		kill:      killProcess,
		now:       time.Now,
		firstPoll: true,
		procs:     make(map[int32]procHandle),
	}
}

// Poll takes one complete sample. System sections are best effort: a section
// that fails to read is marked unsampled and noted in Warnings. Poll returns
// an error only when no section and no process could be read at all.
func (s *Sampler) Poll(ctx context.Context) (*Sample, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	at := s.now()
	var sys SystemMetrics
	var warnings []string

	warn := func(section string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s: %v", section, err))
	}

	sys.CPU = s.readCPU(ctx, warn)
	sys.Mem = s.readMemory(ctx, warn)
	sys.Load = s.readLoad(ctx, warn)
	sys.Net = s.readNetwork(ctx, at, warn)
	sys.Disk = s.readDisk(ctx, at, warn)
	sys.Host = s.readHost(ctx, warn)

	procs := s.readProcesses(ctx, warn)
	sys.Warnings = warnings

	if !sys.CPU.Sampled && !sys.Mem.Sampled && !sys.Load.Sampled &&
		!sys.Net.Sampled && !sys.Disk.Sampled && !sys.Host.Sampled &&
		len(procs) == 0 {
		return nil, fmt.Errorf("sampler: no readable metric source: %s", strings.Join(warnings, "; "))
	}

	s.firstPoll = false

	s.logger.Debug("poll complete",
		slog.Int("processes", len(procs)),
		slog.Int("warnings", len(warnings)),
		slog.Bool("cpu", sys.CPU.Sampled),
	)

	return &Sample{At: at, System: sys, Processes: procs}, nil
}

// Kill sends an immediate kill signal to pid.
func (s *Sampler) Kill(pid int32) error {
	return s.kill(pid)
}

func (s *Sampler) readCPU(ctx context.Context, warn func(string, error)) CPUMetrics {
	var m CPUMetrics

	total, err := s.cpuPercent(ctx, false)
	if err != nil {
		warn("cpu", err)
		return m
	}
	perCore, err := s.cpuPercent(ctx, true)
	if err != nil {
		warn("cpu percore", err)
	}
	if cores, err := s.cpuCounts(ctx); err == nil {
		m.Cores = cores
	} else if len(perCore) > 0 {
		m.Cores = len(perCore)
	}

	// Percentages are deltas against the previous call; the first poll only
	// seeds the counters.
	if s.firstPoll {
		return m
	}

	if len(total) > 0 {
		m.TotalPercent = clampPercent(total[0])
	}
	m.PerCore = make([]float64, len(perCore))
	for i, v := range perCore {
		m.PerCore[i] = clampPercent(v)
	}
	m.Sampled = true
	return m
}

func (s *Sampler) readMemory(ctx context.Context, warn func(string, error)) MemoryMetrics {
	var m MemoryMetrics

	vm, err := s.virtualMem(ctx)
	if err != nil {
		warn("memory", err)
		return m
	}
	m.Total = vm.Total
	m.Used = vm.Used
	m.Available = vm.Available
	m.Cached = vm.Cached
	m.UsedPercent = clampPercent(vm.UsedPercent)
	m.Sampled = true

	if swap, err := s.swapMem(ctx); err != nil {
		warn("swap", err)
	} else {
		m.SwapTotal = swap.Total
		m.SwapUsed = swap.Used
		m.SwapPercent = clampPercent(swap.UsedPercent)
	}
	return m
}

func (s *Sampler) readLoad(ctx context.Context, warn func(string, error)) LoadMetrics {
	var m LoadMetrics

	avg, err := s.loadAvg(ctx)
	if err != nil {
		warn("load", err)
		return m
	}
	m.Load1 = avg.Load1
	m.Load5 = avg.Load5
	m.Load15 = avg.Load15
	m.Sampled = true
	return m
}

func (s *Sampler) readNetwork(ctx context.Context, at time.Time, warn func(string, error)) NetMetrics {
	var m NetMetrics

	counters, err := s.netIO(ctx)
	if err != nil {
		warn("network", err)
		return m
	}
	m.Sampled = true

	elapsed := at.Sub(s.prevNetAt).Seconds()
	haveRates := s.prevNet != nil && elapsed > 0

	for _, c := range counters {
		iface := NetInterface{
			Name:      c.Name,
			RxBytes:   c.BytesRecv,
			TxBytes:   c.BytesSent,
			RxPackets: c.PacketsRecv,
			TxPackets: c.PacketsSent,
			Errin:     c.Errin,
			Errout:    c.Errout,
		}
		if haveRates {
			if prev, ok := s.prevNet[c.Name]; ok {
				iface.RxRate = counterRate(c.BytesRecv, prev.BytesRecv, elapsed)
				iface.TxRate = counterRate(c.BytesSent, prev.BytesSent, elapsed)
			}
		}
		// Loopback traffic is excluded from the machine totals.
		if haveRates && c.Name != "lo" {
			m.TotalRxRate += iface.RxRate
			m.TotalTxRate += iface.TxRate
		}
		m.Interfaces = append(m.Interfaces, iface)
	}
	m.RatesValid = haveRates

	next := make(map[string]gopsnet.IOCountersStat, len(counters))
	for _, c := range counters {
		next[c.Name] = c
	}
	s.prevNet = next
	s.prevNetAt = at

	return m
}

func (s *Sampler) readDisk(ctx context.Context, at time.Time, warn func(string, error)) DiskMetrics {
	var m DiskMetrics

	parts, err := s.partitions(ctx)
	if err != nil {
		warn("disk", err)
	} else {
		seen := make(map[string]bool)
		for _, p := range parts {
			if seen[p.Mountpoint] {
				continue
			}
			seen[p.Mountpoint] = true
			usage, err := s.diskUsage(ctx, p.Mountpoint)
			if err != nil || usage.Total == 0 {
				continue
			}
			m.Volumes = append(m.Volumes, DiskVolume{
				Device:      p.Device,
				Mount:       p.Mountpoint,
				Fstype:      p.Fstype,
				Total:       usage.Total,
				Used:        usage.Used,
				UsedPercent: clampPercent(usage.UsedPercent),
			})
			m.Sampled = true
		}
	}

	counters, err := s.diskIO(ctx)
	if err != nil {
		warn("disk io", err)
		return m
	}
	m.Sampled = true

	var readBytes, writeBytes uint64
	for _, c := range counters {
		readBytes += c.ReadBytes
		writeBytes += c.WriteBytes
	}
	m.IOValid = true
	m.ReadBytes = readBytes
	m.WriteBytes = writeBytes

	elapsed := at.Sub(s.prevDiskAt).Seconds()
	if !s.prevDiskAt.IsZero() && elapsed > 0 {
		m.ReadRate = counterRate(readBytes, s.prevDiskR, elapsed)
		m.WriteRate = counterRate(writeBytes, s.prevDiskW, elapsed)
		m.RatesValid = true
	}
	s.prevDiskR = readBytes
	s.prevDiskW = writeBytes
	s.prevDiskAt = at

	return m
}

func (s *Sampler) readHost(ctx context.Context, warn func(string, error)) HostMetrics {
	var m HostMetrics

	info, err := s.hostInfo(ctx)
	if err != nil {
		warn("host", err)
		return m
	}
	m.Hostname = info.Hostname
	m.Platform = strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
	m.KernelVersion = info.KernelVersion
	m.UptimeSec = info.Uptime
	if info.BootTime > 0 {
		m.BootTime = time.Unix(int64(info.BootTime), 0)
	}
	m.Sampled = true
	return m
}

func (s *Sampler) readProcesses(ctx context.Context, warn func(string, error)) []ProcessSample {
	pids, err := s.listPids(ctx)
	if err != nil {
		warn("processes", err)
		return nil
	}

	alive := make(map[int32]bool, len(pids))
	samples := make([]ProcessSample, 0, len(pids))

	for _, pid := range pids {
		alive[pid] = true
		h, isNew, err := s.handleFor(ctx, pid)
		if err != nil {
			// Gone between enumeration and open.
			continue
		}
		ps, ok := s.readProcess(ctx, pid, h, isNew)
		if !ok {
			delete(s.procs, pid)
			continue
		}
		samples = append(samples, ps)
	}

	// Drop handles for processes that have exited so the cache stays bounded.
	for pid := range s.procs {
		if !alive[pid] {
			delete(s.procs, pid)
		}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].PID < samples[j].PID })
	return samples
}

// handleFor returns the cached handle for pid, opening one on first sight.
func (s *Sampler) handleFor(ctx context.Context, pid int32) (procHandle, bool, error) {
	if h, ok := s.procs[pid]; ok {
		return h, false, nil
	}
	h, err := s.openProc(ctx, pid)
	if err != nil {
		return nil, false, err
	}
	s.procs[pid] = h
	return h, true, nil
}

// readProcess reads every field of one process. A failed Name read means
// the process vanished mid-poll and the whole sample is dropped; any other
// failed field is recorded in Unavailable and the sample kept.
func (s *Sampler) readProcess(ctx context.Context, pid int32, h procHandle, isNew bool) (ProcessSample, bool) {
	ps := ProcessSample{PID: pid}

	name, err := h.Name(ctx)
	if err != nil {
		return ps, false
	}
	ps.Name = name

	if ppid, err := h.Ppid(ctx); err != nil {
		ps.Unavailable = append(ps.Unavailable, "ppid")
	} else {
		ps.PPID = ppid
		ps.PPIDKnown = true
	}

	if user, err := h.Username(ctx); err != nil {
		ps.Unavailable = append(ps.Unavailable, "user")
	} else {
		ps.User = user
	}

	if cmdline, err := h.Cmdline(ctx); err != nil {
		ps.Unavailable = append(ps.Unavailable, "cmdline")
	} else {
		ps.Cmdline = cmdline
	}

	// The first read only seeds the delta state.
	cpuPct, err := h.CPUPercent(ctx)
	switch {
	case err != nil:
		ps.Unavailable = append(ps.Unavailable, "cpu")
	case !isNew:
		ps.CPUPercent = cpuPct
		ps.CPUValid = true
	}

	if mi, err := h.MemoryInfo(ctx); err != nil || mi == nil {
		ps.Unavailable = append(ps.Unavailable, "memory")
	} else {
		ps.RSS = mi.RSS
		ps.MemValid = true
		if pct, err := h.MemoryPercent(ctx); err == nil {
			ps.MemPercent = pct
		}
	}

	if status, err := h.Status(ctx); err != nil || len(status) == 0 {
		ps.Status = StatusUnknown
		ps.Unavailable = append(ps.Unavailable, "status")
	} else {
		ps.Status = normalizeStatus(status[0])
	}

	if created, err := h.CreateTime(ctx); err != nil {
		ps.Unavailable = append(ps.Unavailable, "start_time")
	} else {
		ps.StartTime = time.UnixMilli(created)
		ps.StartValid = true
	}

	if threads, err := h.NumThreads(ctx); err != nil {
		ps.Unavailable = append(ps.Unavailable, "threads")
	} else {
		ps.Threads = threads
	}

	return ps, true
}

// normalizeStatus maps platform status strings onto the ProcStatus enum.
// Unrecognized states come through as StatusUnknown rather than being
// dropped.
func normalizeStatus(raw string) ProcStatus {
	switch strings.ToLower(raw) {
	case process.Running:
		return StatusRunning
	case process.Sleep, process.Idle, process.Wait, process.Lock, process.Blocked:
		return StatusSleeping
	case process.Stop:
		return StatusStopped
	case process.Zombie:
		return StatusZombie
	default:
		return StatusUnknown
	}
}

// counterRate derives a per-second rate from two cumulative counter reads.
// A counter that went backwards (reset or wrapped) yields zero.
func counterRate(cur, prev uint64, elapsedSec float64) float64 {
	if cur < prev || elapsedSec <= 0 {
		return 0
	}
	return float64(cur-prev) / elapsedSec
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
