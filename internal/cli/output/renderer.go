// Package output renders CLI results as text, JSON, or YAML.
// Mode auto picks text on a TTY and JSON otherwise, so piped invocations
// stay machine-readable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Mode selects the output format.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeText Mode = "text"
	ModeJSON Mode = "json"
	ModeYAML Mode = "yaml"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out   io.Writer
	errW  io.Writer
	mode  Mode
	color bool
}

// NewRenderer creates a renderer. Mode auto resolves against the out
// writer: text when it is a terminal, JSON otherwise.
func NewRenderer(out, errW io.Writer, mode Mode) *Renderer {
	resolved := mode
	if resolved == "" || resolved == ModeAuto {
		if isTerminal(out) {
			resolved = ModeText
		} else {
			resolved = ModeJSON
		}
	}

	color := isTerminal(out) && termenv.ColorProfile() != termenv.Ascii

	return &Renderer{out: out, errW: errW, mode: resolved, color: color}
}

// Mode returns the resolved output mode.
func (r *Renderer) Mode() Mode { return r.mode }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Textf writes formatted text output. No-op outside text mode so
// structured output stays clean.
func (r *Renderer) Textf(format string, args ...any) {
	if r.mode == ModeText {
		fmt.Fprintf(r.out, format, args...)
	}
}

// Errorf writes formatted text to the error stream regardless of mode.
func (r *Renderer) Errorf(format string, args ...any) {
	fmt.Fprintf(r.errW, format, args...)
}

// Pass renders a pass marker, styled on capable terminals.
func (r *Renderer) Pass(s string) string {
	if r.color {
		return passStyle.Render(s)
	}
	return s
}

// Fail renders a failure marker, styled on capable terminals.
func (r *Renderer) Fail(s string) string {
	if r.color {
		return failStyle.Render(s)
	}
	return s
}

// Dim renders de-emphasized text.
func (r *Renderer) Dim(s string) string {
	if r.color {
		return dimStyle.Render(s)
	}
	return s
}

// Structured writes v as JSON or YAML depending on mode. In text mode the
// caller is expected to have rendered already; Structured is then a no-op.
func (r *Renderer) Structured(v any) error {
	switch r.mode {
	case ModeJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case ModeYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = r.out.Write(data)
		return err
	default:
		return nil
	}
}

// Table renders a table in text mode.
func (r *Renderer) Table(header []string, rows [][]string) {
	if r.mode != ModeText {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, c := range row {
			tr[i] = c
		}
		t.AppendRow(tr)
	}

	t.Render()
}
