package core

import (
	"bytes"
	"path"
	"strings"
)

// Content types with a sanitizer. Other systems send these strings, so
// existing entries must keep their family.
const (
	TypePDF            = "application/pdf"
	TypeDOCX           = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeMSWord         = "application/msword"
	TypeDOCM           = "application/vnd.ms-word.document.macroenabled.12"
	TypeXLSX           = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	TypeMSExcel        = "application/vnd.ms-excel"
	TypeXLSM           = "application/vnd.ms-excel.sheet.macroenabled.12"
	TypeXLSB           = "application/vnd.ms-excel.sheet.binary.macroenabled.12"
	TypeODT            = "application/vnd.oasis.opendocument.text"
	TypeODS            = "application/vnd.oasis.opendocument.spreadsheet"
	TypeZIP            = "application/zip"
	TypeJPEG           = "image/jpeg"
	TypeMP3            = "audio/mpeg"
	TypeMP4            = "video/mp4"
	TypeOctetStream    = "application/octet-stream"
	TypeCompoundBinary = "application/x-ole-storage"
)

// familyMap is the dispatch table.
var familyMap = map[string]Family{
	TypePDF: FamilyPDF,

	TypeDOCX:   FamilyWordprocessing,
	TypeMSWord: FamilyWordprocessing,
	TypeDOCM:   FamilyWordprocessing,

	TypeXLSX:    FamilySpreadsheet,
	TypeMSExcel: FamilySpreadsheet,
	TypeXLSM:    FamilySpreadsheet,
	TypeXLSB:    FamilySpreadsheet,

	TypeODT: FamilyOpenDocument,
	TypeODS: FamilyOpenDocument,

	TypeZIP: FamilyZIP,
}

// extendedFamilyMap holds opt-in additions to the dispatch table.
var extendedFamilyMap = map[string]Family{
	TypeJPEG: FamilyJPEG,
	TypeMP3:  FamilyMP3,
	TypeMP4:  FamilyMP4,
}

// NormalizeContentType lowercases a declared content type and drops any
// parameters ("; charset=...").
func NormalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// FamilyFor returns the family responsible for a declared content type.
// ok is false for types without a sanitizer; that is the pass-through path,
// not an error.
func FamilyFor(contentType string) (Family, bool) {
	f, ok := familyMap[NormalizeContentType(contentType)]
	return f, ok
}

// ExtendedFamilyFor is FamilyFor plus the opt-in families.
func ExtendedFamilyFor(contentType string) (Family, bool) {
	ct := NormalizeContentType(contentType)
	if f, ok := familyMap[ct]; ok {
		return f, true
	}
	f, ok := extendedFamilyMap[ct]
	return f, ok
}

// extMap maps lowercase extensions to content types.
var extMap = map[string]string{
	".pdf":  TypePDF,
	".docx": TypeDOCX,
	".docm": TypeDOCM,
	".doc":  TypeMSWord,
	".xlsx": TypeXLSX,
	".xlsm": TypeXLSM,
	".xlsb": TypeXLSB,
	".xls":  TypeMSExcel,
	".odt":  TypeODT,
	".ods":  TypeODS,
	".zip":  TypeZIP,
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".mp3":  TypeMP3,
	".mp4":  TypeMP4,
	".m4v":  TypeMP4,
}

// GuessContentType returns the content type for a file or archive member
// name, based on its extension. Unknown extensions map to
// application/octet-stream.
func GuessContentType(name string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
	if ct, ok := extMap[ext]; ok {
		return ct
	}
	return TypeOctetStream
}

// SniffContentType identifies a payload from its magic bytes. ZIP payloads
// are reported as application/zip; the declared type or file name decides
// whether they are an Office package. Returns application/octet-stream when
// nothing matches.
func SniffContentType(b []byte) string {
	if len(b) < 4 {
		return TypeOctetStream
	}
	switch {
	// PDF: %PDF
	case bytes.HasPrefix(b, []byte("%PDF")):
		return TypePDF
	// ZIP-based (DOCX/XLSX/ODT/...): PK\x03\x04, or PK\x05\x06 for an empty archive
	case bytes.HasPrefix(b, []byte("PK\x03\x04")), bytes.HasPrefix(b, []byte("PK\x05\x06")):
		return TypeZIP
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return TypeJPEG
	// MP4: size then "ftyp"
	case len(b) >= 8 && string(b[4:8]) == "ftyp":
		return TypeMP4
	// MP3: ID3 tag or FF FB / FF F3 / FF F2 sync
	case bytes.HasPrefix(b, []byte("ID3")):
		return TypeMP3
	case b[0] == 0xFF && (b[1]&0xE0 == 0xE0):
		return TypeMP3
	// OLE compound file (legacy .doc/.xls): D0 CF 11 E0 A1 B1 1A E1
	case bytes.HasPrefix(b, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		return TypeCompoundBinary
	}
	return TypeOctetStream
}

// IsCompoundBinary reports whether b starts with the OLE compound file signature.
func IsCompoundBinary(b []byte) bool {
	return SniffContentType(b) == TypeCompoundBinary
}
