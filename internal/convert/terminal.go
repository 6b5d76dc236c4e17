package convert

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"epdstats/internal/fb"
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("244"))
	captionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Terminal renders f with half-block characters, two pixel rows per text
// line, inside a rounded border. caption goes underneath.
func Terminal(f *fb.Framebuffer, caption string) string {
	var sb strings.Builder
	for y := 0; y < f.Height(); y += 2 {
		for x := 0; x < f.Width(); x++ {
			top := f.Bit(x, y) == 0
			bottom := y+1 < f.Height() && f.Bit(x, y+1) == 0
			sb.WriteString(halfBlock(top, bottom))
		}
		if y+2 < f.Height() {
			sb.WriteByte('\n')
		}
	}

	out := frameStyle.Render(sb.String())
	if caption != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, captionStyle.Render(caption))
	}
	return out
}

// halfBlock maps a pair of vertically stacked pixels to one cell.
// Ink is drawn; paper is left as a space.
func halfBlock(top, bottom bool) string {
	switch {
	case top && bottom:
		return "█"
	case top:
		return "▀"
	case bottom:
		return "▄"
	default:
		return " "
	}
}

// Caption is the default caption for a rendered frame.
func Caption(page string, update int, mode string) string {
	return fmt.Sprintf("%s · update %d · %s refresh", page, update, mode)
}
