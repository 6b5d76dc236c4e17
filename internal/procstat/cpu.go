// Package procstat samples CPU and memory utilization from the kernel's
// procfs counters (/proc/stat and /proc/meminfo).
//
// All sampling is fail-soft: unreadable or malformed sources produce zero
// values and a DEBUG log line, never an error to the caller. The display
// loop keeps running and simply shows 0% for that tick.
package procstat

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	appLog "epdstats/internal/log"
)

// DefaultProcRoot is where procfs is mounted on a normal Linux host.
const DefaultProcRoot = "/proc"

// ErrMalformed is returned by the parsers when a source line does not have
// the expected shape.
var ErrMalformed = errors.New("procstat: malformed input")

// CPUCounters holds the cumulative jiffy counters from the aggregate "cpu"
// line of /proc/stat. Fields past idle are zero on kernels that omit them.
type CPUCounters struct {
	User    uint64
	Nice    uint64
	System  uint64
	Idle    uint64
	IOWait  uint64
	IRQ     uint64
	SoftIRQ uint64
	Steal   uint64
}

// IdleAll is idle + iowait.
func (c CPUCounters) IdleAll() uint64 {
	return c.Idle + c.IOWait
}

// NonIdle is user + nice + system + irq + softirq + steal.
func (c CPUCounters) NonIdle() uint64 {
	return c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
}

// Total is IdleAll + NonIdle.
func (c CPUCounters) Total() uint64 {
	return c.IdleAll() + c.NonIdle()
}

// ParseCPULine parses the aggregate "cpu" line of /proc/stat.
//
// At least four numeric fields (user nice system idle) are required. The
// guest/guest_nice columns, and anything after them, are ignored.
func ParseCPULine(line string) (CPUCounters, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "cpu" {
		return CPUCounters{}, fmt.Errorf("%w: missing aggregate cpu label", ErrMalformed)
	}

	var vals [8]uint64
	n := 0
	for _, f := range fields[1:] {
		if n == len(vals) {
			break
		}
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			// Same as a scanf conversion stopping: keep what was parsed so far.
			break
		}
		vals[n] = v
		n++
	}
	if n < 4 {
		return CPUCounters{}, fmt.Errorf("%w: %d cpu fields, need at least 4", ErrMalformed, n)
	}

	return CPUCounters{
		User:    vals[0],
		Nice:    vals[1],
		System:  vals[2],
		Idle:    vals[3],
		IOWait:  vals[4],
		IRQ:     vals[5],
		SoftIRQ: vals[6],
		Steal:   vals[7],
	}, nil
}

// CPUSampler turns successive /proc/stat reads into utilization
// percentages. The previous sample lives in the struct rather than in
// package state, so each sampler (and each test) has its own history.
//
// A CPUSampler is safe for concurrent use.
type CPUSampler struct {
	path string

	mu        sync.Mutex
	hasPrev   bool
	prevTotal uint64
	prevIdle  uint64
}

// NewCPUSampler creates a sampler reading <procRoot>/stat. An empty
// procRoot means DefaultProcRoot.
func NewCPUSampler(procRoot string) *CPUSampler {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	return &CPUSampler{path: filepath.Join(procRoot, "stat")}
}

// Sample reads the counters and returns CPU utilization in percent.
//
// The first successful call after construction or Reset only records the
// counters and returns 0. Read or parse failures return 0 and leave the
// stored history untouched.
func (s *CPUSampler) Sample() float64 {
	c, err := readCPU(s.path)
	if err != nil {
		appLog.Debug("cpu sample skipped", "path", s.path, "reason", err)
		return 0
	}
	return s.Observe(c)
}

// Observe feeds one set of counters through the delta calculation. Sample
// uses it after reading the file; tests and alternate sources can call it
// directly.
func (s *CPUSampler) Observe(c CPUCounters) float64 {
	total := c.Total()
	idle := c.IdleAll()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasPrev {
		s.seed(total, idle)
		return 0
	}

	// Counters went backwards: the source was reset (or wrapped). Start over.
	if total < s.prevTotal || idle < s.prevIdle {
		appLog.Debug("cpu counters went backwards, reseeding",
			"prev_total", s.prevTotal, "total", total)
		s.seed(total, idle)
		return 0
	}

	totalDiff := total - s.prevTotal
	idleDiff := idle - s.prevIdle
	s.seed(total, idle)

	if totalDiff == 0 {
		return 0
	}
	if idleDiff > totalDiff {
		// Only possible with inconsistent counters; report idle.
		return 0
	}

	pct := float64(totalDiff-idleDiff) * 100.0 / float64(totalDiff)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Reset forgets the previous sample. The next Sample returns 0.
func (s *CPUSampler) Reset() {
	s.mu.Lock()
	s.hasPrev = false
	s.prevTotal = 0
	s.prevIdle = 0
	s.mu.Unlock()
}

func (s *CPUSampler) seed(total, idle uint64) {
	s.hasPrev = true
	s.prevTotal = total
	s.prevIdle = idle
}

func readCPU(path string) (CPUCounters, error) {
	f, err := os.Open(path)
	if err != nil {
		return CPUCounters{}, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return CPUCounters{}, err
		}
		return CPUCounters{}, fmt.Errorf("%w: empty stat file", ErrMalformed)
	}
	return ParseCPULine(sc.Text())
}
