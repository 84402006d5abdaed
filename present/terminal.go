package present

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// halfBlock draws the upper pixel as foreground and the lower as background,
// so one terminal row shows two frame rows.
const halfBlock = "▀"

// Terminal renders frames as colored half blocks. Present only stores the
// frame; View renders it, so the TUI can redraw on its own schedule.
type Terminal struct {
	last   []byte
	width  uint32
	height uint32
	scale  int
	mu     sync.Mutex
}

// NewTerminal creates a renderer; scale > 1 downsamples by that factor.
func NewTerminal(width, height uint32, scale int) *Terminal {
	if scale < 1 {
		scale = 1
	}
	return &Terminal{width: width, height: height, scale: scale}
}

// Present implements driver.Presenter.
func (t *Terminal) Present(frame []byte) error {
	if err := checkFrame(frame, t.width, t.height); err != nil {
		return err
	}
	t.mu.Lock()
	t.last = append(t.last[:0], frame...)
	t.mu.Unlock()
	return nil
}

// Size returns the rendered size in terminal cells.
func (t *Terminal) Size() (cols, rows int) {
	cols = (int(t.width) + t.scale - 1) / t.scale
	lines := (int(t.height) + t.scale - 1) / t.scale
	return cols, (lines + 1) / 2
}

// View renders the last frame, or an empty screen before the first.
func (t *Terminal) View() string {
	t.mu.Lock()
	frame := append([]byte(nil), t.last...)
	t.mu.Unlock()

	cols, rows := t.Size()
	if len(frame) == 0 {
		return strings.Repeat(strings.Repeat(" ", cols)+"\n", rows)
	}
	return Render(frame, t.width, t.height, t.scale)
}

// Render draws an RGBA frame. It is exported for one-shot rendering of
// snapshot frames.
func Render(frame []byte, width, height uint32, scale int) string {
	if scale < 1 {
		scale = 1
	}
	w, h := int(width), int(height)
	var b strings.Builder

	for y := 0; y < h; y += 2 * scale {
		for x := 0; x < w; x += scale {
			style := lipgloss.NewStyle().Foreground(pixel(frame, w, x, y))
			if y+scale < h {
				style = style.Background(pixel(frame, w, x, y+scale))
			}
			b.WriteString(style.Render(halfBlock))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func pixel(frame []byte, width, x, y int) lipgloss.Color {
	i := (y*width + x) * bytesPerPixel
	const hex = "0123456789abcdef"
	buf := []byte{'#', 0, 0, 0, 0, 0, 0}
	for c := 0; c < 3; c++ {
		v := frame[i+c]
		buf[1+2*c] = hex[v>>4]
		buf[2+2*c] = hex[v&0x0f]
	}
	return lipgloss.Color(buf)
}
