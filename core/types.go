// Package core defines the shared types, interfaces, errors and format registry
// for docsurgery.
package core

import "fmt"

// Family identifies a container family that has a sanitizer.
type Family string

const (
	FamilyPDF            Family = "pdf"
	FamilyWordprocessing Family = "ooxml-wordprocessing"
	FamilySpreadsheet    Family = "ooxml-spreadsheet"
	FamilyOpenDocument   Family = "opendocument"
	FamilyZIP            Family = "zip"

	FamilyJPEG Family = "jpeg"
	FamilyMP3  Family = "mp3"
	FamilyMP4  Family = "mp4"
)

// IsOOXML reports whether the family is an Office Open XML package.
func (f Family) IsOOXML() bool {
	return f == FamilyWordprocessing || f == FamilySpreadsheet
}

// MetaField is one metadata item found in a payload.
type MetaField struct {
	Key      string `json:"key"`      // e.g. "creator", "Title", "Artist"
	Value    string `json:"value"`
	Category string `json:"category"` // e.g. "Core Properties", "XMP", "ID3"
	Redacted bool   `json:"redacted"` // cleared by Sanitize
}

// Metadata holds the metadata found in a single payload.
type Metadata struct {
	Name   string      `json:"file"`
	Format string      `json:"format"` // e.g. "PDF", "OOXML"
	Fields []MetaField `json:"fields"`
}

// Add appends a field, skipping empty values.
func (m *Metadata) Add(key, value, category string, redacted bool) {
	if value == "" {
		return
	}
	m.Fields = append(m.Fields, MetaField{Key: key, Value: value, Category: category, Redacted: redacted})
}

// Redacted returns the fields Sanitize clears.
func (m *Metadata) Redacted() []MetaField {
	var out []MetaField
	for _, f := range m.Fields {
		if f.Redacted {
			out = append(out, f)
		}
	}
	return out
}

// Summary reports how many of the fields found are cleared on upload.
func (m *Metadata) Summary() string {
	if len(m.Fields) == 0 {
		return "no metadata found"
	}
	return fmt.Sprintf("%d of %d fields cleared on upload", len(m.Redacted()), len(m.Fields))
}

// categories groups fields by category, in order of first appearance.
func (m *Metadata) categories() (order []string, groups map[string][]MetaField) {
	groups = make(map[string][]MetaField)
	for _, f := range m.Fields {
		if _, ok := groups[f.Category]; !ok {
			order = append(order, f.Category)
		}
		groups[f.Category] = append(groups[f.Category], f)
	}
	return order, groups
}

// FormatInfo describes what a family sanitizer handles.
type FormatInfo struct {
	Name           string   // "OOXML"
	Family         Family   // FamilyWordprocessing
	Extensions     []string // [".docx", ".docm"]
	ContentTypes   []string
	RedactedFields []string // Fields the sanitizer clears or removes
	Notes          string
}

// Sanitizer is the interface every container family implements.
type Sanitizer interface {
	// Sanitize returns a new buffer with identifying metadata removed.
	// The input is never modified.
	Sanitize(data []byte) ([]byte, error)
	// Info returns family capabilities.
	Info() FormatInfo
}

// Inspector is implemented by sanitizers that can report metadata before
// it is removed.
type Inspector interface {
	Inspect(data []byte) (*Metadata, error)
}

// OOXMLStrategy selects how OOXML core properties are cleared.
type OOXMLStrategy string

const (
	// StrategySurgery clears element text in docProps/core.xml in place.
	StrategySurgery OOXMLStrategy = "surgery"
	// StrategyProperties decodes the core properties record, clears its
	// string properties and renders the part again.
	StrategyProperties OOXMLStrategy = "properties"
)
