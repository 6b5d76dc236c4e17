package procstat

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appLog "epdstats/internal/log"
)

// MemInfo holds the two /proc/meminfo fields we care about, in kB.
type MemInfo struct {
	TotalKB     uint64
	AvailableKB uint64
}

// MemoryUsage is what the dashboard shows: integer megabytes plus a percentage.
type MemoryUsage struct {
	Percent float64 `json:"percent"`
	UsedMB  int     `json:"used_mb"`
	TotalMB int     `json:"total_mb"`
}

// Usage converts kB counters to MB (integer division by 1024) and computes
// used = total - available. A zero total yields a zero percentage instead of
// a division by zero.
func (m MemInfo) Usage() MemoryUsage {
	totalMB := int(m.TotalKB / 1024)
	availMB := int(m.AvailableKB / 1024)
	usedMB := totalMB - availMB

	u := MemoryUsage{UsedMB: usedMB, TotalMB: totalMB}
	if totalMB > 0 {
		u.Percent = float64(usedMB) * 100.0 / float64(totalMB)
	}
	return u
}

// ParseMeminfo scans "Label: value kB" records for MemTotal and
// MemAvailable. Missing labels stay 0; unparsable values are skipped.
func ParseMeminfo(r io.Reader) (MemInfo, error) {
	var m MemInfo
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		var dst *uint64
		switch fields[0] {
		case "MemTotal:":
			dst = &m.TotalKB
		case "MemAvailable:":
			dst = &m.AvailableKB
		default:
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		*dst = v
	}
	return m, sc.Err()
}

// MemSampler reads <procRoot>/meminfo. It keeps no history.
type MemSampler struct {
	path string
}

// NewMemSampler creates a sampler; empty procRoot means DefaultProcRoot.
func NewMemSampler(procRoot string) *MemSampler {
	if procRoot == "" {
		procRoot = DefaultProcRoot
	}
	return &MemSampler{path: filepath.Join(procRoot, "meminfo")}
}

// Sample returns current memory usage, or zeros when meminfo is unreadable.
func (s *MemSampler) Sample() MemoryUsage {
	f, err := os.Open(s.path)
	if err != nil {
		appLog.Debug("memory sample skipped", "path", s.path, "reason", err)
		return MemoryUsage{}
	}
	defer f.Close()

	m, err := ParseMeminfo(f)
	if err != nil {
		appLog.Debug("meminfo read incomplete", "path", s.path, "reason", err)
	}
	if m.TotalKB == 0 {
		appLog.Debug("meminfo has no MemTotal", "path", s.path)
	}
	return m.Usage()
}
