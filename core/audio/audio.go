// Package audio sanitizes MP3 files by removing ID3v2 and ID3v1 tags. Audio
// frames are copied unchanged.
package audio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
)

const mp3Format = "MP3"

// Handler sanitizes MP3 payloads.
type Handler struct {
	logger hclog.Logger
}

// New returns an MP3 Handler. A nil logger discards output.
func New(logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{logger: logger}
}

func (h *Handler) Info() core.FormatInfo {
	return core.InfoFor(core.FamilyMP3)
}

// ─── MP3 Strip ───────────────────────────────────────────────────────────────

const (
	id3v2HeaderLen = 10
	id3v1Len       = 128
)

var errTruncatedTag = errors.New("ID3v2 tag runs past the end of the file")

// id3v2Len returns the full length of a leading ID3v2 tag, header and
// footer included, or 0 when there is none.
func id3v2Len(data []byte) (int, error) {
	if len(data) < id3v2HeaderLen || !bytes.HasPrefix(data, []byte("ID3")) {
		return 0, nil
	}
	size := 0
	for _, b := range data[6:10] {
		if b&0x80 != 0 {
			return 0, errors.New("ID3v2 size is not synchsafe")
		}
		size = size<<7 | int(b)
	}
	n := id3v2HeaderLen + size
	if data[5]&0x10 != 0 {
		n += id3v2HeaderLen
	}
	if n > len(data) {
		return 0, errTruncatedTag
	}
	return n, nil
}

// hasID3v1 reports whether data ends with a 128 byte ID3v1 tag.
func hasID3v1(data []byte, from int) bool {
	return len(data)-from >= id3v1Len && bytes.HasPrefix(data[len(data)-id3v1Len:], []byte("TAG"))
}

// Sanitize removes a leading ID3v2 tag and a trailing ID3v1 tag.
func (h *Handler) Sanitize(data []byte) ([]byte, error) {
	start, err := id3v2Len(data)
	if err != nil {
		return nil, core.Malformed(mp3Format, err)
	}
	if start > 0 {
		t, err := id3v2.ParseReader(bytes.NewReader(data[:start]), id3v2.Options{Parse: true})
		if err != nil {
			return nil, core.Malformed(mp3Format, fmt.Errorf("parsing ID3v2 tag: %w", err))
		}
		h.logger.Debug("dropping ID3v2 tag", "version", t.Version(), "frames", len(t.AllFrames()), "bytes", start)
	}

	end := len(data)
	if hasID3v1(data, start) {
		end -= id3v1Len
		h.logger.Debug("dropping ID3v1 tag")
	}
	if start == 0 && end == len(data) && !looksLikeMPEG(data) {
		return nil, core.Malformed(mp3Format, errors.New("no ID3 tag or MPEG frame sync"))
	}
	return append([]byte(nil), data[start:end]...), nil
}

// looksLikeMPEG checks for an MPEG audio frame sync at the start of data.
func looksLikeMPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// ─── MP3 Inspect ─────────────────────────────────────────────────────────────

// Inspect reads tags with dhowden/tag.
func (h *Handler) Inspect(data []byte) (*core.Metadata, error) {
	m := &core.Metadata{Format: h.Info().Name}
	t, err := tag.ReadFrom(bytes.NewReader(data))
	if errors.Is(err, tag.ErrNoTagsFound) {
		return m, nil
	}
	if err != nil {
		return nil, core.Malformed(mp3Format, err)
	}

	cat := string(t.Format())
	if cat == "" {
		cat = "Audio Tags"
	}
	add := func(key, val string) { m.Add(key, val, cat, true) }

	add("Title", t.Title())
	add("Artist", t.Artist())
	add("Album", t.Album())
	add("AlbumArtist", t.AlbumArtist())
	add("Composer", t.Composer())
	add("Genre", t.Genre())
	add("Comment", t.Comment())
	if t.Year() != 0 {
		add("Year", fmt.Sprintf("%d", t.Year()))
	}
	if track, total := t.Track(); track != 0 {
		s := fmt.Sprintf("%d", track)
		if total != 0 {
			s = fmt.Sprintf("%d/%d", track, total)
		}
		add("TrackNumber", s)
	}

	raw := t.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := raw[k]
		switch strings.ToLower(k) {
		case "title", "artist", "album", "albumartist", "composer",
			"genre", "comment", "year", "track",
			"tit2", "tpe1", "talb", "tpe2", "tcom", "tcon", "tyer", "tdrc", "trck":
			continue
		}
		var s string
		switch vt := v.(type) {
		case nil:
			continue
		case string:
			s = vt
		case []string:
			s = strings.Join(vt, "; ")
		case int:
			s = fmt.Sprintf("%d", vt)
		default:
			b, _ := json.Marshal(v)
			s = string(b)
		}
		if len(s) < 512 {
			m.Add(k, s, cat+" (raw)", true)
		}
	}
	return m, nil
}
