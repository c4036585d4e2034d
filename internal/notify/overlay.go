package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	apperrors "alert-delivery/internal/errors"
	"alert-delivery/internal/models"
)

// Toast is one visual notification.
type Toast struct {
	Variant   models.Tone
	Title     string
	Body      string
	Symbol    string
	Position  models.ToastPosition
	AutoClose time.Duration // 0 keeps the toast until dismissed
	CreatedAt time.Time
}

// Expired reports whether the toast has auto-closed by now.
func (t Toast) Expired(now time.Time) bool {
	return t.AutoClose > 0 && now.Sub(t.CreatedAt) >= t.AutoClose
}

// Overlay is a terminal toast stack.
type Overlay struct {
	out          io.Writer
	toasts       []Toast
	maxVisible   int
	colorEnabled bool
	mounted      bool
	mu           sync.RWMutex
	now          func() time.Time
}

// NewOverlay creates an overlay writing each toast to out as it arrives.
// A nil out leaves the overlay unmounted.
func NewOverlay(out io.Writer, maxVisible int, colorEnabled bool) *Overlay {
	if maxVisible <= 0 {
		maxVisible = 5
	}
	return &Overlay{
		out:          out,
		toasts:       make([]Toast, 0, maxVisible),
		maxVisible:   maxVisible,
		colorEnabled: colorEnabled,
		mounted:      out != nil,
		now:          time.Now,
	}
}

// Render prints a toast and adds it to the stack once written.
func (o *Overlay) Render(ctx context.Context, t Toast) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.mounted {
		return apperrors.ErrRendererUnavailable
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = o.now()
	}
	if !t.Position.Valid() {
		t.Position = models.DefaultPosition
	}

	// Remove expired toasts
	now := o.now()
	active := make([]Toast, 0, len(o.toasts)+1)
	for _, existing := range o.toasts {
		if !existing.Expired(now) {
			active = append(active, existing)
		}
	}
	active = append(active, t)

	// Keep only maxVisible toasts
	if len(active) > o.maxVisible {
		active = active[len(active)-o.maxVisible:]
	}

	// A toast that never reached the terminal is not on screen.
	if _, err := fmt.Fprintln(o.out, FormatToast(t, o.colorEnabled)); err != nil {
		return fmt.Errorf("writing toast: %w", err)
	}
	o.toasts = active
	return nil
}

// Unmount detaches the overlay; later Render calls fail.
func (o *Overlay) Unmount() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mounted = false
	o.toasts = o.toasts[:0]
}

// Visible returns the toasts that have not auto-closed, oldest first.
func (o *Overlay) Visible() []Toast {
	o.mu.RLock()
	defer o.mu.RUnlock()

	now := o.now()
	visible := make([]Toast, 0, len(o.toasts))
	for _, t := range o.toasts {
		if !t.Expired(now) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Clear dismisses every toast.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.toasts = o.toasts[:0]
}

const boxWidth = 75

// Box draws the visible stack. Top positions put the newest toast first,
// bottom positions put it last.
func (o *Overlay) Box() string {
	visible := o.Visible()
	if len(visible) == 0 {
		return ""
	}

	newest := visible[len(visible)-1]
	if newest.Position.Top() {
		for i, j := 0, len(visible)-1; i < j; i, j = i+1, j-1 {
			visible[i], visible[j] = visible[j], visible[i]
		}
	}

	var sb strings.Builder
	sb.WriteString("┌─ Alerts " + strings.Repeat("─", boxWidth-7) + "┐\n")
	for _, t := range visible {
		// Color codes would break the padding, so the box is always plain.
		line := FormatToast(t, false)
		if utf8.RuneCountInString(line) > boxWidth {
			line = string([]rune(line)[:boxWidth-3]) + "..."
		}
		pad := boxWidth - utf8.RuneCountInString(line)
		sb.WriteString("│ " + line + strings.Repeat(" ", pad) + " │\n")
	}
	sb.WriteString("└" + strings.Repeat("─", boxWidth+2) + "┘")
	return sb.String()
}

// FormatToast formats a toast as a single terminal line.
func FormatToast(t Toast, colorEnabled bool) string {
	var sb strings.Builder

	timestamp := t.CreatedAt.Format("15:04:05")

	var indicator, color, resetColor string
	if colorEnabled {
		resetColor = "\033[0m"
	}

	switch t.Variant {
	case models.ToneSuccess:
		indicator = "▲ SUCCESS"
		if colorEnabled {
			color = "\033[32m" // Green
		}
	case models.ToneWarning:
		indicator = "▼ WARNING"
		if colorEnabled {
			color = "\033[33m" // Yellow
		}
	case models.ToneError:
		indicator = "✖ ERROR"
		if colorEnabled {
			color = "\033[31m" // Red
		}
	default:
		indicator = "● INFO"
		if colorEnabled {
			color = "\033[36m" // Cyan
		}
	}

	sb.WriteString(fmt.Sprintf("%s[%s] %s%s", color, timestamp, indicator, resetColor))

	if t.Title != "" {
		sb.WriteString(fmt.Sprintf(" | %s", t.Title))
	}
	if t.Body != "" {
		sb.WriteString(fmt.Sprintf(" | %s", t.Body))
	}

	return sb.String()
}
