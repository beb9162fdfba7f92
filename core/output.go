package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Printer renders inspection reports and status lines for the CLI.
type Printer struct {
	JSON   bool
	Writer io.Writer
}

// NewPrinter creates a Printer writing to stdout.
func NewPrinter(jsonMode bool) *Printer {
	return &Printer{JSON: jsonMode, Writer: os.Stdout}
}

func (p *Printer) writeJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(p.Writer, "{\"error\": %q}\n", err.Error())
		return
	}
	fmt.Fprintln(p.Writer, string(b))
}

// PrintMetadata writes an inspection report: the summary line, then each
// category with its fields. Fields cleared on upload are marked.
func (p *Printer) PrintMetadata(m *Metadata) {
	if p.JSON {
		report := struct {
			*Metadata
			Summary string `json:"summary"`
		}{m, m.Summary()}
		if report.Fields == nil {
			report.Metadata = &Metadata{Name: m.Name, Format: m.Format, Fields: []MetaField{}}
		}
		p.writeJSON(report)
		return
	}

	fmt.Fprintf(p.Writer, "%s (%s): %s\n", m.Name, m.Format, m.Summary())
	order, groups := m.categories()
	for _, cat := range order {
		fmt.Fprintf(p.Writer, "\n── %s ──\n", cat)
		for _, f := range groups[cat] {
			line := fmt.Sprintf("  %-30s %s", f.Key+":", f.Value)
			if f.Redacted {
				line += " [redacted on upload]"
			}
			fmt.Fprintln(p.Writer, line)
		}
	}
}

// PrintFormats renders the format registry.
func (p *Printer) PrintFormats(formats []FormatInfo) {
	if p.JSON {
		p.writeJSON(formats)
		return
	}
	row := func(label, value string) {
		fmt.Fprintf(p.Writer, "  %-16s %s\n", label+":", value)
	}
	for _, fi := range formats {
		fmt.Fprintf(p.Writer, "── %s (%s) ──\n", fi.Name, fi.Family)
		row("Extensions", strings.Join(fi.Extensions, " "))
		for _, ct := range fi.ContentTypes {
			row("Content type", ct)
		}
		if len(fi.RedactedFields) > 0 {
			row("Redacts", strings.Join(fi.RedactedFields, ", "))
		}
		if fi.Notes != "" {
			row("Notes", fi.Notes)
		}
		fmt.Fprintln(p.Writer)
	}
}

// Line writes a status line. Status lines are suppressed in JSON mode so
// output stays machine readable.
func (p *Printer) Line(format string, args ...interface{}) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Writer, format+"\n", args...)
}

// Fail writes err to w in the form the CLI uses for fatal errors.
func Fail(w io.Writer, err error) {
	fmt.Fprintf(w, "surgery: %v\n", err)
}

// ResolveOutPath returns dst if non-empty, otherwise "<name>.clean<ext>"
// next to src.
func ResolveOutPath(src, dst string) string {
	if dst != "" {
		return dst
	}
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + ".clean" + ext
}
