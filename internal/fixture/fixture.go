// Package fixture builds small in-memory documents for tests.
package fixture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/klauspost/compress/zip"
)

// Member is one archive entry.
type Member struct {
	Name    string
	Body    []byte
	Store   bool // stored instead of deflated
	Comment string
}

// Modified is the timestamp written on every fixture member.
var Modified = time.Date(2021, 3, 4, 10, 20, 30, 0, time.UTC)

// Zip builds an archive from members, in order.
func Zip(comment string, members ...Member) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, m := range members {
		hdr := &zip.FileHeader{
			Name:     m.Name,
			Method:   zip.Deflate,
			Modified: Modified,
			Comment:  m.Comment,
		}
		if m.Store {
			hdr.Method = zip.Store
		}
		fw, err := w.CreateHeader(hdr)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write(m.Body); err != nil {
			panic(err)
		}
	}
	if comment != "" {
		if err := w.SetComment(comment); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Read returns the decompressed members of an archive, keyed by name, plus
// the names in archive order.
func Read(data []byte) (map[string][]byte, []string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string][]byte, len(r.File))
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			return nil, nil, err
		}
		var b bytes.Buffer
		_, err = b.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return nil, nil, err
		}
		out[f.Name] = b.Bytes()
		names = append(names, f.Name)
	}
	return out, names, nil
}

// Comment returns the archive comment.
func Comment(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	return r.Comment, nil
}

const (
	Creator = "TRA"
	Title   = "Extract Document Metadata"
)

// CoreXML is a docProps/core.xml part carrying identifying properties.
var CoreXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:title>` + Title + `</dc:title><dc:subject>Anti-dumping</dc:subject><dc:creator>` + Creator + `</dc:creator><cp:keywords>steel</cp:keywords><dc:description>draft</dc:description><cp:lastModifiedBy>` + Creator + `</cp:lastModifiedBy><cp:revision>4</cp:revision><dcterms:created xsi:type="dcterms:W3CDTF">2021-03-04T10:20:30Z</dcterms:created><dcterms:modified xsi:type="dcterms:W3CDTF">2021-03-05T08:00:00Z</dcterms:modified><cp:category/></cp:coreProperties>`)

var contentTypesXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/></Types>`)

var relsXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/></Relationships>`)

// AppXML is a docProps/app.xml part.
var AppXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"><Application>Microsoft Office Word</Application><Company>Trade Remedies</Company></Properties>`)

// DocumentXML is the body of the DOCX fixture.
var DocumentXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Body text written by TRA</w:t></w:r></w:p></w:body></w:document>`)

// SheetXML is the only worksheet of the XLSX fixture.
var SheetXML = []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>42</t></is></c></row></sheetData></worksheet>`)

// DOCX builds a word-processing package whose core part is core.
func DOCX(core []byte) []byte {
	return Zip("",
		Member{Name: "[Content_Types].xml", Body: contentTypesXML},
		Member{Name: "_rels/.rels", Body: relsXML},
		Member{Name: "docProps/core.xml", Body: core},
		Member{Name: "docProps/app.xml", Body: AppXML},
		Member{Name: "word/document.xml", Body: DocumentXML},
	)
}

// XLSX builds a spreadsheet package whose core part is core.
func XLSX(core []byte) []byte {
	return Zip("",
		Member{Name: "[Content_Types].xml", Body: contentTypesXML},
		Member{Name: "_rels/.rels", Body: relsXML},
		Member{Name: "docProps/core.xml", Body: core},
		Member{Name: "xl/worksheets/sheet1.xml", Body: SheetXML},
		Member{Name: "xl/media/image1.png", Body: []byte("\x89PNG\r\n\x1a\nnot really an image"), Store: true},
	)
}

// MetaXML is an ODF meta.xml part carrying identifying properties.
var MetaXML = []byte(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-meta xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:meta="urn:oasis:names:tc:opendocument:xmlns:meta:1.0" xmlns:dc="http://purl.org/dc/elements/1.1/" office:version="1.2"><office:meta><meta:initial-creator>` + Creator + `</meta:initial-creator><dc:creator>` + Creator + `</dc:creator><dc:title>` + Title + `</dc:title><dc:subject>Anti-dumping</dc:subject><dc:description>draft</dc:description><meta:creation-date>2021-03-04T10:20:30</meta:creation-date><meta:generator>LibreOffice/7.1</meta:generator><meta:document-statistic meta:page-count="1"/></office:meta></office:document-meta>`)

// ContentXML is the body of the ODF fixtures.
var ContentXML = []byte(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text><text:p>Body text written by TRA</text:p></office:text></office:body></office:document-content>`)

// ODF builds an OpenDocument package of the given mimetype.
func ODF(mimetype string, meta []byte, comment string) []byte {
	return Zip(comment,
		Member{Name: "mimetype", Body: []byte(mimetype), Store: true},
		Member{Name: "content.xml", Body: ContentXML},
		Member{Name: "meta.xml", Body: meta},
		Member{Name: "META-INF/manifest.xml", Body: []byte(`<?xml version="1.0" encoding="UTF-8"?><manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"/>`)},
	)
}

const xmpPacket = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"><rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:creator><rdf:Seq><rdf:li>` + Creator + `</rdf:li></rdf:Seq></dc:creator><dc:title><rdf:Alt><rdf:li xml:lang="x-default">` + Title + `</rdf:li></rdf:Alt></dc:title></rdf:Description></rdf:RDF></x:xmpmeta>
<?xpacket end="w"?>`

// PDF builds a one-page document with an XMP metadata stream and an Info
// dictionary, both naming Creator and Title.
func PDF() []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R /Metadata 4 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
		fmt.Sprintf("<< /Type /Metadata /Subtype /XML /Length %d >>\nstream\n%s\nendstream", len(xmpPacket), xmpPacket),
		"<< /Title (" + Title + ") /Author (" + Creator + ") /Producer (fixture) >>",
	}
	return assemblePDF(objs, "/Root 1 0 R /Info 5 0 R")
}

// PlainPDF builds a one-page document with neither XMP nor Info.
func PlainPDF() []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}
	return assemblePDF(objs, "/Root 1 0 R")
}

// TwoFontPDF builds a two-page document whose pages use separate but
// identical Helvetica font objects, 5 0 R on the first page and 6 0 R on
// the second. It carries an Info dictionary.
func TwoFontPDF() []byte {
	page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> >>"
	font := "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		fmt.Sprintf(page, 5),
		fmt.Sprintf(page, 6),
		font,
		font,
		"<< /Title (" + Title + ") /Author (" + Creator + ") >>",
	}
	return assemblePDF(objs, "/Root 1 0 R /Info 7 0 R")
}

func assemblePDF(objs []string, trailer string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, trailer, xref)
	return b.Bytes()
}

// BrokenCompoundFile carries the OLE2 signature but a zeroed header, so
// the sector shift is illegal.
var BrokenCompoundFile = append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)

const (
	cfbSector     = 512
	cfbFree       = 0xFFFFFFFF
	cfbEndOfChain = 0xFFFFFFFE
	cfbFATSector  = 0xFFFFFFFD
	cfbNoStream   = 0xFFFFFFFF
)

// CompoundFile builds a version 3 compound file whose root storage holds
// one empty stream named stream, such as "WordDocument" for a legacy .doc
// or "Workbook" for a legacy .xls. Sector 0 is the FAT and sector 1 the
// directory.
func CompoundFile(stream string) []byte {
	le := binary.LittleEndian
	out := make([]byte, 3*cfbSector)

	hdr := out[:cfbSector]
	copy(hdr, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le.PutUint16(hdr[24:], 0x003E) // minor version
	le.PutUint16(hdr[26:], 3)      // major version
	le.PutUint16(hdr[28:], 0xFFFE) // little endian
	le.PutUint16(hdr[30:], 9)      // sector shift
	le.PutUint16(hdr[32:], 6)      // mini sector shift
	le.PutUint32(hdr[44:], 1)      // FAT sectors
	le.PutUint32(hdr[48:], 1)      // first directory sector
	le.PutUint32(hdr[56:], 4096)   // mini stream cutoff
	le.PutUint32(hdr[60:], cfbEndOfChain)
	le.PutUint32(hdr[68:], cfbEndOfChain)
	le.PutUint32(hdr[76:], 0)
	for off := 80; off < cfbSector; off += 4 {
		le.PutUint32(hdr[off:], cfbFree)
	}

	fat := out[cfbSector : 2*cfbSector]
	for off := 0; off < cfbSector; off += 4 {
		le.PutUint32(fat[off:], cfbFree)
	}
	le.PutUint32(fat[0:], cfbFATSector)
	le.PutUint32(fat[4:], cfbEndOfChain)

	dir := out[2*cfbSector:]
	dirEntry(dir[0:128], "Root Entry", 5, 1)
	dirEntry(dir[128:256], stream, 2, cfbNoStream)
	for off := 256; off < cfbSector; off += 128 {
		le.PutUint32(dir[off+68:], cfbNoStream)
		le.PutUint32(dir[off+72:], cfbNoStream)
		le.PutUint32(dir[off+76:], cfbNoStream)
	}
	return out
}

func dirEntry(b []byte, name string, objectType byte, child uint32) {
	le := binary.LittleEndian
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		le.PutUint16(b[i*2:], u)
	}
	le.PutUint16(b[64:], uint16((len(units)+1)*2))
	b[66] = objectType
	b[67] = 1 // black
	le.PutUint32(b[68:], cfbNoStream)
	le.PutUint32(b[72:], cfbNoStream)
	le.PutUint32(b[76:], child)
	le.PutUint32(b[116:], cfbEndOfChain)
}
