// Package video sanitizes MP4 files. User-data and metadata boxes are
// overwritten in place with free boxes of the same size, so chunk offsets
// into mdat stay valid and media data is never moved.
package video

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
)

const mp4Format = "MP4"

// maxBoxDepth bounds recursion into container boxes.
const maxBoxDepth = 8

// Handler sanitizes MP4 payloads.
type Handler struct {
	logger hclog.Logger
}

// New returns an MP4 Handler. A nil logger discards output.
func New(logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{logger: logger}
}

func (h *Handler) Info() core.FormatInfo {
	return core.InfoFor(core.FamilyMP4)
}

// iTunes metadata atom names → human-readable
var itunesAtomNames = map[string]string{
	"\xa9nam": "Title",
	"\xa9ART": "Artist",
	"\xa9alb": "Album",
	"\xa9day": "Year",
	"\xa9gen": "Genre",
	"\xa9cmt": "Comment",
	"\xa9lyr": "Lyrics",
	"\xa9too": "EncodingTool",
	"\xa9wrt": "Composer",
	"\xa9aut": "Author",
	"\xa9xyz": "Location",
	"aART":    "AlbumArtist",
	"cprt":    "Copyright",
	"desc":    "Description",
	"ldes":    "LongDescription",
	"tvsh":    "TVShowName",
	"tvsn":    "TVSeason",
	"tves":    "TVEpisode",
	"tven":    "TVEpisodeName",
	"purl":    "PodcastURL",
	"catg":    "Category",
	"keyw":    "Keywords",
}

// box is one ISO BMFF box located in a buffer.
type box struct {
	typ   string
	start int // offset of the size field
	body  int // offset of the payload
	end   int // offset just past the box
}

var errShortBox = errors.New("box header runs past its parent")

// readBoxes lists the boxes in data[start:end].
func readBoxes(data []byte, start, end int) ([]box, error) {
	var boxes []box
	for pos := start; pos < end; {
		if end-pos < 8 {
			return nil, errShortBox
		}
		size := uint64(binary.BigEndian.Uint32(data[pos:]))
		b := box{typ: string(data[pos+4 : pos+8]), start: pos, body: pos + 8}
		switch size {
		case 0:
			size = uint64(end - pos)
		case 1:
			if end-pos < 16 {
				return nil, errShortBox
			}
			size = binary.BigEndian.Uint64(data[pos+8:])
			b.body = pos + 16
		}
		if size < uint64(b.body-pos) || size > uint64(end-pos) {
			return nil, fmt.Errorf("box %q at %d: size %d does not fit", b.typ, pos, size)
		}
		b.end = pos + int(size)
		boxes = append(boxes, b)
		pos = b.end
	}
	return boxes, nil
}

// metaChildren returns where the children of a meta box start. ISO meta is
// a full box with four bytes of version and flags; QuickTime meta is not.
func metaChildren(data []byte, b box) int {
	if b.end-b.body >= 8 && string(data[b.body+4:b.body+8]) == "hdlr" {
		return b.body
	}
	return b.body + 4
}

// metadataBoxes returns the boxes that carry descriptive metadata: the
// top-level meta, udta and meta under moov, and udta and meta under each trak.
func metadataBoxes(data []byte) ([]box, error) {
	top, err := readBoxes(data, 0, len(data))
	if err != nil {
		return nil, err
	}
	if len(top) == 0 || (top[0].typ != "ftyp" && top[0].typ != "free" && top[0].typ != "skip") {
		return nil, errors.New("missing ftyp box")
	}

	var found []box
	for _, b := range top {
		switch b.typ {
		case "meta":
			found = append(found, b)
		case "moov":
			children, err := readBoxes(data, b.body, b.end)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				switch c.typ {
				case "udta", "meta":
					found = append(found, c)
				case "trak":
					trak, err := readBoxes(data, c.body, c.end)
					if err != nil {
						return nil, err
					}
					for _, t := range trak {
						if t.typ == "udta" || t.typ == "meta" {
							found = append(found, t)
						}
					}
				}
			}
		}
	}
	return found, nil
}

// Sanitize turns every metadata box into a zero-filled free box.
func (h *Handler) Sanitize(data []byte) ([]byte, error) {
	boxes, err := metadataBoxes(data)
	if err != nil {
		return nil, core.Malformed(mp4Format, err)
	}
	out := make([]byte, len(data))
	copy(out, data)
	for _, b := range boxes {
		copy(out[b.start+4:b.start+8], "free")
		for i := b.body; i < b.end; i++ {
			out[i] = 0
		}
	}
	h.logger.Debug("mp4 sanitized", "boxes", len(boxes))
	return out, nil
}

// Inspect reports the container brand and duration plus every metadata
// item found in the boxes Sanitize clears.
func (h *Handler) Inspect(data []byte) (*core.Metadata, error) {
	boxes, err := metadataBoxes(data)
	if err != nil {
		return nil, core.Malformed(mp4Format, err)
	}
	m := &core.Metadata{Format: mp4Format}

	top, _ := readBoxes(data, 0, len(data))
	for _, b := range top {
		switch b.typ {
		case "ftyp":
			if b.end-b.body >= 4 {
				m.Add("Brand", strings.TrimSpace(string(data[b.body:b.body+4])), "MP4 Container", false)
			}
		case "moov":
			children, _ := readBoxes(data, b.body, b.end)
			for _, c := range children {
				if c.typ == "mvhd" {
					m.Add("Duration", mvhdDuration(data[c.body:c.end]), "MP4 Container", false)
				}
			}
		}
	}

	for _, b := range boxes {
		inspectBox(data, b, m, 0)
	}
	return m, nil
}

func mvhdDuration(p []byte) string {
	var scale, dur uint64
	switch {
	case len(p) >= 20 && p[0] == 0:
		scale = uint64(binary.BigEndian.Uint32(p[12:16]))
		dur = uint64(binary.BigEndian.Uint32(p[16:20]))
	case len(p) >= 32 && p[0] == 1:
		scale = uint64(binary.BigEndian.Uint32(p[20:24]))
		dur = binary.BigEndian.Uint64(p[24:32])
	}
	if scale == 0 {
		return ""
	}
	return formatDuration(int(dur / scale))
}

func inspectBox(data []byte, b box, m *core.Metadata, depth int) {
	if depth > maxBoxDepth {
		return
	}
	start := b.body
	switch b.typ {
	case "meta":
		start = metaChildren(data, b)
	case "udta", "ilst":
	default:
		return
	}
	children, err := readBoxes(data, start, b.end)
	if err != nil {
		return
	}
	for _, c := range children {
		payload := data[c.body:c.end]
		switch {
		case c.typ == "meta" || c.typ == "ilst" || c.typ == "udta":
			inspectBox(data, c, m, depth+1)
		case c.typ == "----":
			if key, val := parseFreeformAtom(payload); key != "" {
				m.Add(key, val, "iTunes Custom", true)
			}
		case itunesAtomNames[c.typ] != "":
			val := extractiTunesData(payload)
			if val == "" && b.typ == "udta" {
				val = quickTimeText(payload)
			}
			m.Add(itunesAtomNames[c.typ], val, "iTunes Metadata", true)
		case b.typ == "udta" && c.typ != "free" && c.typ != "skip":
			m.Add(c.typ, fmt.Sprintf("%d bytes", len(payload)), "User Data", true)
		}
	}
}

func extractiTunesData(data []byte) string {
	// data atom: 4 size + 4 "data" + 1 version + 3 flags + 4 locale + value
	if len(data) < 16 {
		return ""
	}
	if string(data[4:8]) != "data" {
		return ""
	}
	return strings.TrimRight(string(data[16:]), "\x00")
}

// quickTimeText decodes a classic QuickTime user-data string: a 16-bit
// length, a 16-bit language code, then the text.
func quickTimeText(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	n := int(binary.BigEndian.Uint16(data[0:2]))
	if 4+n > len(data) {
		return ""
	}
	return string(data[4 : 4+n])
}

func parseFreeformAtom(data []byte) (key, val string) {
	// Walk mean / name / data sub-atoms
	i := 0
	var domain, name, value string
	for i+8 < len(data) {
		size := int(binary.BigEndian.Uint32(data[i : i+4]))
		typ := string(data[i+4 : i+8])
		if size < 12 || i+size > len(data) {
			break
		}
		payload := data[i+12 : i+size]
		switch typ {
		case "mean":
			domain = string(payload)
		case "name":
			name = string(payload)
		case "data":
			if len(payload) >= 4 {
				value = string(payload[4:])
			}
		}
		i += size
	}
	if name != "" && value != "" {
		if domain != "" {
			key = domain + ":" + name
		} else {
			key = name
		}
		val = value
	}
	return
}

func formatDuration(seconds int) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
