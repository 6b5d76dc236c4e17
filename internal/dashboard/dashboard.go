// Package dashboard lays out the pages drawn on the 122x250 panel.
//
// Every Render function clears the framebuffer to white first, so a page is
// a pure function of its input and can be pushed as either a full or a
// partial refresh.
package dashboard

import (
	"fmt"
	"image/color"
	"strings"

	"epdstats/internal/battery"
	"epdstats/internal/fb"
	"epdstats/internal/flight"
	"epdstats/internal/hostinfo"
	"epdstats/internal/procstat"
	"epdstats/internal/text"
)

// Bar geometry shared by the CPU, memory and battery rows.
const (
	BarX      = 2
	BarWidth  = 100
	BarHeight = 8

	CPUBarY     = 50
	MemBarY     = 95
	BatteryBarY = 197
)

var (
	ink   = color.Black
	paper = color.White
)

// Stats is everything the stats page shows.
type Stats struct {
	CPU     float64              `json:"cpu_percent"`
	Mem     procstat.MemoryUsage `json:"memory"`
	Host    hostinfo.Info        `json:"host"`
	Battery *battery.Status      `json:"battery,omitempty"`
	Update  int                  `json:"update"`
}

func label(f *fb.Framebuffer, x, y int, s string, face text.Face) {
	text.Draw(f, x, y, s, face, ink, paper)
}

// RenderStats draws the system stats page.
func RenderStats(f *fb.Framebuffer, s Stats) {
	f.Fill(true)

	label(f, 2, 2, "System Stats", text.Small)

	label(f, 2, 30, fmt.Sprintf("CPU: %.1f%%", s.CPU), text.Small)
	label(f, 2, 70, fmt.Sprintf("Memory: %.1f%%", s.Mem.Percent), text.Small)
	label(f, 2, 85, fmt.Sprintf("%dMB / %dMB", s.Mem.UsedMB, s.Mem.TotalMB), text.Small)

	// Bars after labels; a label's background box must not cut a bar.
	f.DrawBar(BarX, CPUBarY, BarWidth, BarHeight, s.CPU)
	f.DrawBar(BarX, MemBarY, BarWidth, BarHeight, s.Mem.Percent)

	y := 115
	if s.Host.Hostname != "" {
		label(f, 2, y, fitWidth(s.Host.Hostname, f.Width()-2), text.Small)
		y += 15
	}
	label(f, 2, y, "Up: "+hostinfo.FormatUptime(s.Host.Uptime), text.Small)
	y += 15
	label(f, 2, y, fmt.Sprintf("Load: %.2f", s.Host.Load1), text.Small)
	y += 15
	label(f, 2, y, fmt.Sprintf("Disk: %.0f%%", s.Host.DiskPercent), text.Small)

	if s.Battery != nil {
		label(f, 2, 182, fmt.Sprintf("Batt: %d%%", s.Battery.Percent), text.Small)
		f.DrawBar(BarX, BatteryBarY, BarWidth, BarHeight, float64(s.Battery.Percent))
	}

	label(f, 2, 230, fmt.Sprintf("Update: %d", s.Update), text.Small)
}

// RenderSplash draws the start-up frame.
func RenderSplash(f *fb.Framebuffer) {
	f.Fill(true)
	y := drawWrapped(f, 5, 50, "System Stats Monitor", text.Small)
	drawWrapped(f, 5, y+20, "Starting display...", text.Small)
}

// RenderFlight draws a single flight card.
func RenderFlight(f *fb.Framebuffer, fl flight.Info) {
	f.Fill(true)

	label(f, 5, 5, fl.Number, text.Large)
	label(f, 5, 36, fitWidth(fl.Departure, f.Width()-5), text.Small)
	label(f, 5, 52, fitWidth(fl.Arrival, f.Width()-5), text.Small)
	label(f, 5, 72, fmt.Sprintf("Alt: %d ft", fl.Altitude), text.Small)
	label(f, 5, 90, fmt.Sprintf("Speed: %d knots", fl.Speed), text.Small)
}

// RenderFlightList draws the "Tracked Flights" board, one line per flight.
func RenderFlightList(f *fb.Framebuffer, fls []flight.Info) {
	f.Fill(true)

	label(f, 2, 10, "Tracked Flights:", text.Small)
	y := 30
	for _, fl := range fls {
		if y+text.Small.Height() > f.Height() {
			break
		}
		label(f, 2, y, fmt.Sprintf("%s %dft", fl.Number, fl.Altitude), text.Small)
		y += 20
	}
}

// drawWrapped draws s word-wrapped to the panel width and returns the y of
// the last line drawn.
func drawWrapped(f *fb.Framebuffer, x, y int, s string, face text.Face) int {
	max := f.Width() - x
	line := ""
	lineY := y
	flush := func() {
		if line != "" {
			label(f, x, lineY, line, face)
			lineY += face.Height() + 2
			line = ""
		}
	}
	for _, w := range strings.Fields(s) {
		next := w
		if line != "" {
			next = line + " " + w
		}
		if text.Width(next, face) > max && line != "" {
			flush()
			next = w
		}
		line = next
	}
	flush()
	return lineY - face.Height() - 2
}

// fitWidth truncates s with a trailing "." so it fits in max pixels.
func fitWidth(s string, max int) string {
	if text.Width(s, text.Small) <= max {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && text.Width(string(r)+".", text.Small) > max {
		r = r[:len(r)-1]
	}
	return string(r) + "."
}
