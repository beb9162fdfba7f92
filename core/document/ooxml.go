package document

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/richardlehane/mscfb"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/core/archive"
)

// ─── OPC (DOCX / XLSX) ───────────────────────────────────────────────────────

const (
	ooxmlFormat  = "OOXML"
	corePartName = "docProps/core.xml"
	appPartName  = "docProps/app.xml"
)

var (
	// errLegacyCompound is returned for well-formed OLE2 binary Office files
	// declared under an OOXML content type.
	errLegacyCompound = errors.New("legacy compound document, not an OOXML package")

	// errCorruptCompound is returned when the OLE2 signature is present but
	// the compound file structure cannot be read.
	errCorruptCompound = errors.New("corrupt compound file")
)

// legacyStreams maps the main stream of a binary Office file to its application.
var legacyStreams = map[string]string{
	"WordDocument":        "Word",
	"Workbook":            "Excel",
	"Book":                "Excel",
	"PowerPoint Document": "PowerPoint",
}

// checkLegacy rejects CFB payloads. A readable compound file is reported
// as a legacy document naming its application when the main stream is
// known; an unreadable one is reported as corrupt.
func checkLegacy(data []byte) error {
	if !core.IsCompoundBinary(data) {
		return nil
	}
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return core.Malformed(ooxmlFormat, fmt.Errorf("%w: %w", errCorruptCompound, err))
	}
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if app, ok := legacyStreams[entry.Name]; ok && len(entry.Path) == 0 {
			return core.Malformed(ooxmlFormat, fmt.Errorf("%w (binary %s file)", errLegacyCompound, app))
		}
	}
	return core.Malformed(ooxmlFormat, errLegacyCompound)
}

func (h *Handler) sanitizeOOXML(data []byte) ([]byte, error) {
	if err := checkLegacy(data); err != nil {
		return nil, err
	}
	r, err := archive.Open(data, ooxmlFormat)
	if err != nil {
		return nil, err
	}
	if archive.Find(r, corePartName) == nil {
		h.logger.Debug("package has no core properties part")
	}

	out, err := archive.Rebuild(r, ooxmlFormat, func(f *zip.File) ([]byte, bool, error) {
		if f.Name != corePartName {
			return nil, false, nil
		}
		part, err := archive.ReadMember(f, h.limit, ooxmlFormat)
		if err != nil {
			return nil, false, err
		}
		cleaned, err := h.clearCoreProperties(part)
		if err != nil {
			return nil, false, &core.ContainerError{Format: ooxmlFormat, Member: f.Name,
				Err: fmt.Errorf("%w: %w", core.ErrMalformedContainer, err)}
		}
		return cleaned, true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := archive.VerifyMembers(r, out, ooxmlFormat); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) clearCoreProperties(part []byte) ([]byte, error) {
	if h.strategy == core.StrategyProperties {
		props, err := DecodeCoreProperties(part)
		if err != nil {
			return nil, err
		}
		props.Clear()
		return props.Render(), nil
	}
	out, n, err := clearElementText(part, exactMatch(CoreRedactedFields))
	if err != nil {
		return nil, err
	}
	h.logger.Debug("cleared core properties", "strategy", h.strategy, "elements", n)
	return out, nil
}

// CoreProperties is the docProps/core.xml record. A nil field is absent
// from the part.
type CoreProperties struct {
	XMLName        xml.Name `xml:"coreProperties"`
	Category       *string  `xml:"category"`
	ContentStatus  *string  `xml:"contentStatus"`
	Creator        *string  `xml:"creator"`
	Description    *string  `xml:"description"`
	Identifier     *string  `xml:"identifier"`
	Keywords       *string  `xml:"keywords"`
	Language       *string  `xml:"language"`
	LastModifiedBy *string  `xml:"lastModifiedBy"`
	Subject        *string  `xml:"subject"`
	Title          *string  `xml:"title"`
	Version        *string  `xml:"version"`

	Revision    *string `xml:"revision"`
	LastPrinted *string `xml:"lastPrinted"`
	Created     *string `xml:"created"`
	Modified    *string `xml:"modified"`
}

// coreProperty binds a property name to its XML prefix and record field.
type coreProperty struct {
	name   string
	prefix string
	field  func(*CoreProperties) **string
}

// coreProperties lists every property in render order.
var coreProperties = []coreProperty{
	{"category", "cp", func(p *CoreProperties) **string { return &p.Category }},
	{"contentStatus", "cp", func(p *CoreProperties) **string { return &p.ContentStatus }},
	{"creator", "dc", func(p *CoreProperties) **string { return &p.Creator }},
	{"description", "dc", func(p *CoreProperties) **string { return &p.Description }},
	{"identifier", "dc", func(p *CoreProperties) **string { return &p.Identifier }},
	{"keywords", "cp", func(p *CoreProperties) **string { return &p.Keywords }},
	{"language", "dc", func(p *CoreProperties) **string { return &p.Language }},
	{"lastModifiedBy", "cp", func(p *CoreProperties) **string { return &p.LastModifiedBy }},
	{"subject", "dc", func(p *CoreProperties) **string { return &p.Subject }},
	{"title", "dc", func(p *CoreProperties) **string { return &p.Title }},
	{"version", "cp", func(p *CoreProperties) **string { return &p.Version }},
	{"revision", "cp", func(p *CoreProperties) **string { return &p.Revision }},
	{"lastPrinted", "cp", func(p *CoreProperties) **string { return &p.LastPrinted }},
	{"created", "dcterms", func(p *CoreProperties) **string { return &p.Created }},
	{"modified", "dcterms", func(p *CoreProperties) **string { return &p.Modified }},
}

// DecodeCoreProperties parses a core properties part.
func DecodeCoreProperties(part []byte) (*CoreProperties, error) {
	var p CoreProperties
	if err := xml.Unmarshal(part, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Clear empties every property in CorePropertyFields that is present.
func (p *CoreProperties) Clear() {
	empty := ""
	for _, cp := range coreProperties {
		if !contains(CorePropertyFields, cp.name) {
			continue
		}
		if f := cp.field(p); *f != nil {
			*f = &empty
		}
	}
}

const corePropertiesHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
	`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
	`xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`

const corePropertiesFooter = `</cp:coreProperties>`

// Render writes the record as a core properties part. Absent properties are
// omitted, cleared ones are written as empty elements.
func (p *CoreProperties) Render() []byte {
	var b strings.Builder
	b.WriteString(corePropertiesHeader)
	for _, cp := range coreProperties {
		v := *cp.field(p)
		if v == nil {
			continue
		}
		tag := cp.prefix + ":" + cp.name
		b.WriteString("<" + tag)
		if cp.prefix == "dcterms" {
			b.WriteString(` xsi:type="dcterms:W3CDTF"`)
		}
		if *v == "" {
			b.WriteString("/>")
			continue
		}
		b.WriteString(">")
		_ = xml.EscapeText(&b, []byte(*v))
		b.WriteString("</" + tag + ">")
	}
	b.WriteString(corePropertiesFooter)
	return []byte(b.String())
}

func (h *Handler) inspectOOXML(data []byte, m *core.Metadata) (*core.Metadata, error) {
	if err := checkLegacy(data); err != nil {
		return nil, err
	}
	r, err := archive.Open(data, ooxmlFormat)
	if err != nil {
		return nil, err
	}
	redacted := CoreRedactedFields
	if h.strategy == core.StrategyProperties {
		redacted = CorePropertyFields
	}

	if f := archive.Find(r, corePartName); f != nil {
		part, err := archive.ReadMember(f, h.limit, ooxmlFormat)
		if err != nil {
			return nil, err
		}
		if err := elementTexts(part, func(local, text string) {
			m.Add(local, text, "Core Properties", contains(redacted, local))
		}); err != nil {
			return nil, core.Malformed(ooxmlFormat, err)
		}
	}
	if f := archive.Find(r, appPartName); f != nil {
		part, err := archive.ReadMember(f, h.limit, ooxmlFormat)
		if err != nil {
			return nil, err
		}
		// app.xml is left in place; unreadable parts are skipped.
		_ = elementTexts(part, func(local, text string) {
			if contains(appPropertyFields, local) {
				m.Add(local, text, "App Properties", false)
			}
		})
	}
	return m, nil
}

var appPropertyFields = []string{
	"Application", "Company", "AppVersion", "Manager", "Template",
	"TotalTime", "Pages", "Words", "Characters", "Paragraphs",
}
