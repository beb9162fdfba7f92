package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/ankit-chaubey/docsurgery/core"
)

// ─── PDF ─────────────────────────────────────────────────────────────────────

const pdfFormat = "PDF"

// pdfInfoFields are the standard Info dictionary keys.
var pdfInfoFields = []string{
	"Title", "Author", "Subject", "Keywords",
	"Creator", "Producer", "CreationDate", "ModDate", "Trapped",
}

var disableConfigDir sync.Once

func pdfConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Optimize = false
	conf.OptimizeResourceDicts = false
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// readPDF parses and validates data without optimizing it, so duplicate
// fonts and images stay separate objects. pdfcpu panics on some malformed
// inputs; those are reported as malformed containers.
func readPDF(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, core.Malformed(pdfFormat, fmt.Errorf("parser panic: %v", r))
		}
	}()
	ctx, err = api.ReadContext(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, core.Malformed(pdfFormat, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, core.Malformed(pdfFormat, err)
	}
	return ctx, nil
}

// sanitizePDF removes the catalog's XMP metadata stream and the trailer's
// Info dictionary, then writes the document again.
func (h *Handler) sanitizePDF(data []byte) (out []byte, err error) {
	ctx, err := readPDF(data)
	if err != nil {
		return nil, err
	}

	root, err := ctx.Catalog()
	if err != nil {
		return nil, core.Malformed(pdfFormat, err)
	}
	if obj := root.Delete("Metadata"); obj != nil {
		h.freeObject(ctx, obj, "XMP metadata stream")
	} else {
		h.logger.Debug("pdf has no XMP metadata stream")
	}

	if ctx.Info != nil {
		h.freeObject(ctx, *ctx.Info, "Info dictionary")
		ctx.Info = nil
		ctx.Title, ctx.Author, ctx.Subject, ctx.Creator = "", "", "", ""
	} else {
		h.logger.Debug("pdf has no Info dictionary")
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, core.Malformed(pdfFormat, fmt.Errorf("writer panic: %v", r))
		}
	}()
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, core.Malformed(pdfFormat, err)
	}
	return buf.Bytes(), nil
}

func (h *Handler) freeObject(ctx *model.Context, obj types.Object, what string) {
	ir, ok := obj.(types.IndirectRef)
	if !ok {
		h.logger.Debug("removed direct object", "object", what)
		return
	}
	objNr := ir.ObjectNumber.Value()
	if err := ctx.FreeObject(objNr); err != nil {
		h.logger.Debug("could not free object", "object", what, "number", objNr, "error", err)
		return
	}
	h.logger.Debug("removed object", "object", what, "number", objNr)
}

func (h *Handler) inspectPDF(data []byte, m *core.Metadata) (*core.Metadata, error) {
	ctx, err := readPDF(data)
	if err != nil {
		return nil, err
	}
	m.Add("Version", ctx.VersionString(), "PDF Structure", false)
	m.Add("Pages", fmt.Sprintf("%d", ctx.PageCount), "PDF Structure", false)

	if ctx.Info != nil {
		info, err := ctx.DereferenceDict(*ctx.Info)
		if err == nil {
			keys := make([]string, 0, len(info))
			for k := range info {
				keys = append(keys, k)
			}
			sort.Slice(keys, func(i, j int) bool {
				return fieldRank(keys[i]) < fieldRank(keys[j])
			})
			for _, k := range keys {
				m.Add(k, pdfValueString(info[k]), "PDF Info", true)
			}
		}
	}

	if root, err := ctx.Catalog(); err == nil {
		if _, ok := root.Find("Metadata"); ok {
			m.Add("XMP stream", "present", "PDF XMP", true)
			if xmp := extractPDFXMP(data); xmp != nil {
				parseXMPInto(xmp, m)
			}
		}
	}
	return m, nil
}

// fieldRank orders standard Info keys first, the rest alphabetically after.
func fieldRank(k string) string {
	for i, f := range pdfInfoFields {
		if f == k {
			return fmt.Sprintf("0%02d", i)
		}
	}
	return "1" + k
}

func pdfValueString(o types.Object) string {
	switch v := o.(type) {
	case types.StringLiteral:
		return decodePDFString(string(v))
	case types.HexLiteral:
		h := strings.Join(strings.Fields(string(v)), "")
		if len(h)%2 != 0 {
			return ""
		}
		return hexToString(h)
	case types.Name:
		return string(v)
	case nil:
		return ""
	}
	return o.String()
}

func decodePDFString(s string) string {
	// Handle basic PDF escape sequences
	s = strings.ReplaceAll(s, `\n`, "\n")
	s = strings.ReplaceAll(s, `\r`, "\r")
	s = strings.ReplaceAll(s, `\t`, "\t")
	s = strings.ReplaceAll(s, `\(`, "(")
	s = strings.ReplaceAll(s, `\)`, ")")
	s = strings.ReplaceAll(s, `\\`, "\\")
	// Strip BOM for UTF-16
	if len(s) >= 2 && s[0] == '\xFE' && s[1] == '\xFF' {
		return utf16BEToString([]byte(s[2:]))
	}
	return s
}

func utf16BEToString(b []byte) string {
	var runes []rune
	for i := 0; i+1 < len(b); i += 2 {
		r := rune(uint16(b[i])<<8 | uint16(b[i+1]))
		if r == 0 {
			break
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func hexToString(h string) string {
	b := make([]byte, len(h)/2)
	for i := range b {
		var byt byte
		fmt.Sscanf(h[i*2:i*2+2], "%02x", &byt)
		b[i] = byt
	}
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		return utf16BEToString(b[2:])
	}
	return string(b)
}

// extractPDFXMP finds an uncompressed XMP packet in the raw file. XMP
// streams are normally stored unfiltered so other tools can read them.
func extractPDFXMP(data []byte) []byte {
	start := bytes.Index(data, []byte("<?xpacket begin="))
	if start < 0 {
		start = bytes.Index(data, []byte("<x:xmpmeta"))
	}
	if start < 0 {
		return nil
	}
	end := bytes.Index(data[start:], []byte("<?xpacket end="))
	if end < 0 {
		end = bytes.Index(data[start:], []byte("</x:xmpmeta>"))
		if end >= 0 {
			end += len("</x:xmpmeta>")
		}
	} else {
		end += len("<?xpacket end=")
		endClose := bytes.Index(data[start+end:], []byte(">"))
		if endClose >= 0 {
			end += endClose + 1
		}
	}
	if end < 0 {
		return nil
	}
	return data[start : start+end]
}

func parseXMPInto(data []byte, m *core.Metadata) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var current string
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "li", "Alt", "Seq", "Bag":
				// rdf containers: keep the enclosing property name
			default:
				current = t.Name.Local
			}
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if val != "" && current != "" &&
				current != "xmpmeta" && current != "RDF" && current != "Description" {
				m.Add("xmp:"+current, val, "PDF XMP", true)
			}
		}
	}
}
