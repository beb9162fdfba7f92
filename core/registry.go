package core

import "sort"

// formatInfo describes every family for listings. Adapters return the same
// records from Info().
var formatInfo = map[Family]FormatInfo{
	FamilyPDF: {
		Name:         "PDF",
		Family:       FamilyPDF,
		Extensions:   []string{".pdf"},
		ContentTypes: []string{TypePDF},
		RedactedFields: []string{
			"XMP metadata stream", "Info dictionary",
		},
		Notes: "Catalog /Metadata and trailer /Info are removed; everything else is rewritten unchanged.",
	},
	FamilyWordprocessing: {
		Name:         "OOXML word-processing",
		Family:       FamilyWordprocessing,
		Extensions:   []string{".docx", ".docm", ".doc"},
		ContentTypes: []string{TypeDOCX, TypeMSWord, TypeDOCM},
		RedactedFields: []string{
			"creator", "comments", "lastModifiedBy", "manager",
			"identifier", "title", "subject", "description",
		},
		Notes: "OPC ZIP container. Only docProps/core.xml changes. Legacy binary .doc is rejected.",
	},
	FamilySpreadsheet: {
		Name:         "OOXML spreadsheet",
		Family:       FamilySpreadsheet,
		Extensions:   []string{".xlsx", ".xlsm", ".xlsb", ".xls"},
		ContentTypes: []string{TypeXLSX, TypeMSExcel, TypeXLSM, TypeXLSB},
		RedactedFields: []string{
			"creator", "comments", "lastModifiedBy", "manager",
			"identifier", "title", "subject", "description",
		},
		Notes: "OPC ZIP container. Only docProps/core.xml changes. Legacy binary .xls is rejected.",
	},
	FamilyOpenDocument: {
		Name:           "OpenDocument",
		Family:         FamilyOpenDocument,
		Extensions:     []string{".odt", ".ods"},
		ContentTypes:   []string{TypeODT, TypeODS},
		RedactedFields: []string{"*creator*", "*title*", "*description*", "*subject*"},
		Notes:          "ODF ZIP container. Only meta.xml changes; the archive comment is kept.",
	},
	FamilyZIP: {
		Name:         "ZIP",
		Family:       FamilyZIP,
		Extensions:   []string{".zip"},
		ContentTypes: []string{TypeZIP},
		Notes:        "Members with a recognised extension are sanitized recursively; the rest are copied raw.",
	},
	FamilyJPEG: {
		Name:           "JPEG",
		Family:         FamilyJPEG,
		Extensions:     []string{".jpg", ".jpeg"},
		ContentTypes:   []string{TypeJPEG},
		RedactedFields: []string{"EXIF (APP1)", "XMP (APP1)", "IPTC (APP13)", "Comment (COM)"},
		Notes:          "Opt-in. Image data is untouched.",
	},
	FamilyMP3: {
		Name:           "MP3",
		Family:         FamilyMP3,
		Extensions:     []string{".mp3"},
		ContentTypes:   []string{TypeMP3},
		RedactedFields: []string{"ID3v2 tag", "ID3v1 tag"},
		Notes:          "Opt-in. Audio frames are untouched.",
	},
	FamilyMP4: {
		Name:           "MP4",
		Family:         FamilyMP4,
		Extensions:     []string{".mp4", ".m4v"},
		ContentTypes:   []string{TypeMP4},
		RedactedFields: []string{"moov/udta", "moov/meta", "moov/trak/udta", "top-level meta"},
		Notes:          "Opt-in. Metadata boxes become free boxes of the same size so media offsets stay valid.",
	},
}

// InfoFor returns the FormatInfo for a family.
func InfoFor(f Family) FormatInfo {
	return formatInfo[f]
}

// Formats lists every family, sorted by name.
func Formats() []FormatInfo {
	out := make([]FormatInfo, 0, len(formatInfo))
	for _, fi := range formatInfo {
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
