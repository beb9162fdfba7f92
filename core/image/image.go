// Package image sanitizes JPEG images: EXIF, XMP, IPTC and comment segments
// are dropped, the image data is left untouched.
package image

import (
	"bytes"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/ankit-chaubey/docsurgery/core"
)

const jpegFormat = "JPEG"

// Handler sanitizes JPEG payloads.
type Handler struct {
	logger hclog.Logger
}

// New returns a JPEG Handler. A nil logger discards output.
func New(logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{logger: logger}
}

func (h *Handler) Info() core.FormatInfo {
	return core.InfoFor(core.FamilyJPEG)
}

// ─── JPEG Strip ──────────────────────────────────────────────────────────────

// Metadata segments removed on sanitize. APP2 (ICC) and APP14 (Adobe) are
// kept because they change how the image renders.
var jpegMetaMarkers = map[byte]string{
	0xE1: "APP1",  // EXIF / XMP
	0xED: "APP13", // IPTC / Photoshop
	0xFE: "COM",   // comment
}

const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerSOS = 0xDA
)

// jpegSegment is the raw span of one marker segment, marker bytes included.
type jpegSegment struct {
	marker     byte
	start, end int
}

// payload returns the segment body after the length field.
func (s jpegSegment) payload(data []byte) []byte {
	if s.end-s.start < 4 {
		return nil
	}
	return data[s.start+4 : s.end]
}

var errNotJPEG = errors.New("missing start-of-image marker")

// parseJPEGSegments splits the header segments up to and including SOS.
// tail is the offset where entropy-coded data begins.
func parseJPEGSegments(data []byte) (segs []jpegSegment, tail int, err error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, 0, errNotJPEG
	}
	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return nil, 0, fmt.Errorf("expected marker at offset %d", i)
		}
		// fill bytes
		for i+1 < len(data) && data[i+1] == 0xFF {
			i++
		}
		if i+1 >= len(data) {
			return nil, 0, fmt.Errorf("truncated marker at offset %d", i)
		}
		marker := data[i+1]

		switch {
		case marker == markerEOI:
			segs = append(segs, jpegSegment{marker: marker, start: i, end: i + 2})
			return segs, i + 2, nil
		case marker == 0x01, marker >= 0xD0 && marker <= 0xD7:
			segs = append(segs, jpegSegment{marker: marker, start: i, end: i + 2})
			i += 2
			continue
		}

		if i+4 > len(data) {
			return nil, 0, fmt.Errorf("truncated segment length at offset %d", i)
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		end := i + 2 + segLen
		if segLen < 2 || end > len(data) {
			return nil, 0, fmt.Errorf("segment 0x%02X at offset %d overruns the file", marker, i)
		}
		segs = append(segs, jpegSegment{marker: marker, start: i, end: end})
		i = end
		if marker == markerSOS {
			return segs, i, nil
		}
	}
	return nil, 0, errors.New("no start-of-scan marker")
}

// Sanitize drops metadata segments and copies everything else verbatim.
func (h *Handler) Sanitize(data []byte) ([]byte, error) {
	segs, tail, err := parseJPEGSegments(data)
	if err != nil {
		return nil, core.Malformed(jpegFormat, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	buf.Write(data[:2])
	dropped := 0
	for _, seg := range segs {
		if _, drop := jpegMetaMarkers[seg.marker]; drop {
			dropped++
			continue
		}
		buf.Write(data[seg.start:seg.end])
	}
	buf.Write(data[tail:])
	h.logger.Debug("jpeg sanitized", "segments_dropped", dropped)
	return buf.Bytes(), nil
}

// ─── JPEG Inspect ────────────────────────────────────────────────────────────

var (
	exifPrefix = []byte("Exif\x00\x00")
	xmpPrefix  = []byte("http://ns.adobe.com/xap/1.0/\x00")
	iptcPrefix = []byte("Photoshop 3.0\x00")
)

// Inspect lists EXIF tags (via goexif), XMP properties, IPTC datasets and
// comments.
func (h *Handler) Inspect(data []byte) (*core.Metadata, error) {
	segs, _, err := parseJPEGSegments(data)
	if err != nil {
		return nil, core.Malformed(jpegFormat, err)
	}
	m := &core.Metadata{Format: h.Info().Name}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		h.logger.Debug("no readable exif", "error", err)
	} else if x != nil {
		if err := x.Walk(exifWalker{m: m}); err != nil {
			h.logger.Debug("exif walk stopped", "error", err)
		}
	}

	for _, seg := range segs {
		body := seg.payload(data)
		switch {
		case seg.marker == 0xE1 && bytes.HasPrefix(body, xmpPrefix):
			parseXMPInto(body[len(xmpPrefix):], m)
		case seg.marker == 0xED && bytes.HasPrefix(body, iptcPrefix):
			parseIPTCInto(body[len(iptcPrefix):], m)
		case seg.marker == 0xFE:
			m.Add("Comment", string(body), "Comment", true)
		case seg.marker == 0xE1 && !bytes.HasPrefix(body, exifPrefix):
			m.Add("APP1", fmt.Sprintf("%d bytes", len(body)), "Segments", true)
		}
	}
	return m, nil
}

type exifWalker struct {
	m *core.Metadata
}

func (w exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	// Remove surrounding quotes from string values
	if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
		val = val[1 : len(val)-1]
	}
	w.m.Add(string(name), val, "EXIF", true)
	return nil
}

// ─── XMP ─────────────────────────────────────────────────────────────────────

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
			default:
				current = t.Name.Local
			}
			for _, attr := range t.Attr {
				if strings.HasPrefix(attr.Name.Local, "xmlns") || attr.Name.Space == "xmlns" || attr.Name.Local == "about" {
					continue
				}
				m.Add("xmp:"+attr.Name.Local, attr.Value, "XMP", true)
			}
		case xml.CharData:
			val := strings.TrimSpace(string(t))
			if current != "" && current != "xmpmeta" && current != "RDF" && current != "Description" {
				m.Add("xmp:"+current, val, "XMP", true)
			}
		}
	}
}

// ─── IPTC ─────────────────────────────────────────────────────────────────────

var iptcFieldNames = map[byte]string{
	0x05: "ObjectName",
	0x0F: "Category",
	0x19: "Keywords",
	0x37: "DigitalCreationDate",
	0x3C: "Byline",
	0x46: "City",
	0x55: "Country",
	0x69: "Headline",
	0x6E: "Credit",
	0x73: "Source",
	0x74: "CopyrightNotice",
	0x76: "Contact",
	0x78: "Caption",
	0x7A: "CaptionWriter",
}

func parseIPTCInto(data []byte, m *core.Metadata) {
	// Walk "8BIM" Photoshop resource blocks to find IPTC (0x0404)
	i := 0
	for i+8 < len(data) {
		if !bytes.Equal(data[i:i+4], []byte("8BIM")) {
			i++
			continue
		}
		resType := binary.BigEndian.Uint16(data[i+4 : i+6])
		nameLen := int(data[i+6])
		if nameLen%2 == 0 {
			nameLen++
		}
		i += 7 + nameLen
		if i+4 > len(data) {
			break
		}
		blockLen := int(binary.BigEndian.Uint32(data[i : i+4]))
		i += 4
		if resType == 0x0404 && i+blockLen <= len(data) {
			parseIPTCBlock(data[i:i+blockLen], m)
		}
		i += blockLen
		if blockLen%2 != 0 {
			i++
		}
	}
}

func parseIPTCBlock(data []byte, m *core.Metadata) {
	i := 0
	for i+5 <= len(data) {
		if data[i] != 0x1C {
			i++
			continue
		}
		dataset := data[i+2]
		length := int(binary.BigEndian.Uint16(data[i+3 : i+5]))
		i += 5
		if i+length > len(data) {
			break
		}
		if name, ok := iptcFieldNames[dataset]; ok {
			m.Add(name, string(data[i:i+length]), "IPTC", true)
		}
		i += length
	}
}
