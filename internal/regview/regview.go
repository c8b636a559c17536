// Package regview prints register values broken down into their fields.
package regview

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"

	"github.com/tinyrange/cpusysregs/internal/sysreg"
)

// Options controls rendering.
type Options struct {
	// Color enables SGR styling.
	Color bool
	// Width truncates the meaning column when positive.
	Width int
	// All prints fields whose value is zero.
	All bool
}

// AutoColor reports whether f is a terminal and NO_COLOR is unset.
func AutoColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the width of f, or 0 when f is not a terminal.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

type styles struct {
	name, set, reserved, dim ansi.Style
	on                       bool
}

func newStyles(color bool) styles {
	return styles{
		name:     ansi.Style{}.Bold(),
		set:      ansi.Style{}.ForegroundColor(ansi.Green),
		reserved: ansi.Style{}.ForegroundColor(ansi.Yellow),
		dim:      ansi.Style{}.Faint(),
		on:       color,
	}
}

func (s styles) apply(st ansi.Style, text string) string {
	if !s.on {
		return text
	}
	return st.Styled(text)
}

func bits(f sysreg.Field) string {
	if f.MSB == f.LSB {
		return fmt.Sprintf("[%d]", f.MSB)
	}
	return fmt.Sprintf("[%d:%d]", f.MSB, f.LSB)
}

func pad(s string, width int) string {
	if n := ansi.StringWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// Render writes the header line of e followed by one line per field.
func Render(w io.Writer, e sysreg.Entry, v sysreg.Value, opts Options) error {
	st := newStyles(opts.Color)

	header := fmt.Sprintf("%s = %s", st.apply(st.name, e.Name), v.Format(e.Width()))
	if e.Section != "" {
		header += st.apply(st.dim, " ("+e.Section+")")
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	if len(e.Fields) == 0 {
		_, err := fmt.Fprintln(w, st.apply(st.dim, "  no field layout"))
		return err
	}

	var bitsWidth, nameWidth int
	for _, f := range e.Fields {
		bitsWidth = max(bitsWidth, ansi.StringWidth(bits(f)))
		nameWidth = max(nameWidth, ansi.StringWidth(f.Name))
	}

	for _, f := range e.Fields {
		raw := f.Extract(v)
		if raw == 0 && !opts.All {
			continue
		}
		meaning := f.Meaning(raw)
		style := st.set
		if len(f.Values) > 0 {
			if _, ok := f.Values[raw]; !ok {
				style = st.reserved
			}
		}

		prefix := fmt.Sprintf("  %s %s %#-6x ", pad(bits(f), bitsWidth), pad(f.Name, nameWidth), raw)
		if opts.Width > 0 {
			if room := opts.Width - ansi.StringWidth(prefix); room > 3 {
				meaning = ansi.Truncate(meaning, room, "…")
			}
		}
		if raw == 0 {
			style = st.dim
		}
		if _, err := fmt.Fprintln(w, prefix+st.apply(style, meaning)); err != nil {
			return err
		}
	}
	return nil
}

// Summary is a one-line description of e used by register listings.
func Summary(e sysreg.Entry) string {
	var parts []string
	parts = append(parts, e.Width().String(), e.Access.String())
	if e.Requires != 0 {
		parts = append(parts, "needs "+e.Requires.String())
	}
	parts = append(parts, "EL0 "+e.EL0.String())
	return strings.Join(parts, ", ")
}

// Table writes one aligned row per entry: name, section and Summary.
func Table(w io.Writer, entries []sysreg.Entry, color bool) error {
	st := newStyles(color)
	var nameWidth, secWidth int
	for _, e := range entries {
		nameWidth = max(nameWidth, ansi.StringWidth(e.Name))
		secWidth = max(secWidth, ansi.StringWidth(e.Section))
	}
	for _, e := range entries {
		line := fmt.Sprintf("0x%02x  %s  %s  %s",
			uint8(e.ID),
			st.apply(st.name, pad(e.Name, nameWidth)),
			st.apply(st.dim, pad(e.Section, secWidth)),
			Summary(e),
		)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
