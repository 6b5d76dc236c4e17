// Package hostinfo collects the secondary dashboard lines (hostname, uptime,
// load, root filesystem usage) through gopsutil.
package hostinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	appLog "epdstats/internal/log"
)

// Info is a best-effort snapshot; fields that could not be read are zero.
type Info struct {
	Hostname    string        `json:"hostname"`
	Uptime      time.Duration `json:"uptime_ns"`
	Load1       float64       `json:"load1"`
	DiskPercent float64       `json:"disk_percent"`
}

// Reader reads Info. The function fields are swapped out in tests.
type Reader struct {
	DiskPath string

	hostInfo  func(ctx context.Context) (*host.InfoStat, error)
	loadAvg   func(ctx context.Context) (*load.AvgStat, error)
	diskUsage func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewReader returns a Reader for the live system.
func NewReader(diskPath string) *Reader {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Reader{
		DiskPath:  diskPath,
		hostInfo:  host.InfoWithContext,
		loadAvg:   load.AvgWithContext,
		diskUsage: disk.UsageWithContext,
	}
}

// Read never fails; errors are logged at DEBUG and the field left zero.
func (r *Reader) Read(ctx context.Context) Info {
	var info Info

	if hi, err := r.hostInfo(ctx); err != nil {
		appLog.Debug("hostinfo: host info unavailable", "err", err)
	} else {
		info.Hostname = hi.Hostname
		info.Uptime = time.Duration(hi.Uptime) * time.Second
	}

	if la, err := r.loadAvg(ctx); err != nil {
		appLog.Debug("hostinfo: load average unavailable", "err", err)
	} else {
		info.Load1 = la.Load1
	}

	if du, err := r.diskUsage(ctx, r.DiskPath); err != nil {
		appLog.Debug("hostinfo: disk usage unavailable", "path", r.DiskPath, "err", err)
	} else {
		info.DiskPercent = du.UsedPercent
	}

	return info
}

// FormatUptime renders d compactly for a narrow panel: "3d 4h", "5h 12m", "42m".
func FormatUptime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	mins := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
