package document

import (
	"fmt"

	"github.com/klauspost/compress/zip"

	"github.com/ankit-chaubey/docsurgery/core"
	"github.com/ankit-chaubey/docsurgery/core/archive"
)

// ─── ODF ─────────────────────────────────────────────────────────────────────

const (
	odfFormat    = "OpenDocument"
	metaPartName = "meta.xml"
)

func (h *Handler) sanitizeODF(data []byte) ([]byte, error) {
	r, err := archive.Open(data, odfFormat)
	if err != nil {
		return nil, err
	}
	if archive.Find(r, metaPartName) == nil {
		h.logger.Debug("document has no meta.xml")
	}

	out, err := archive.Rebuild(r, odfFormat, func(f *zip.File) ([]byte, bool, error) {
		if f.Name != metaPartName {
			return nil, false, nil
		}
		part, err := archive.ReadMember(f, h.limit, odfFormat)
		if err != nil {
			return nil, false, err
		}
		cleaned, n, err := clearElementText(part, substringMatch(ODFRedactedFields))
		if err != nil {
			return nil, false, &core.ContainerError{Format: odfFormat, Member: f.Name,
				Err: fmt.Errorf("%w: %w", core.ErrMalformedContainer, err)}
		}
		h.logger.Debug("cleared meta.xml", "elements", n)
		return cleaned, true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := archive.VerifyMembers(r, out, odfFormat); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) inspectODF(data []byte, m *core.Metadata) (*core.Metadata, error) {
	r, err := archive.Open(data, odfFormat)
	if err != nil {
		return nil, err
	}
	if f := archive.Find(r, "mimetype"); f != nil {
		if b, err := archive.ReadMember(f, 256, odfFormat); err == nil {
			m.Add("mimetype", string(b), "ODF Package", false)
		}
	}
	f := archive.Find(r, metaPartName)
	if f == nil {
		return m, nil
	}
	part, err := archive.ReadMember(f, h.limit, odfFormat)
	if err != nil {
		return nil, err
	}
	match := substringMatch(ODFRedactedFields)
	if err := elementTexts(part, func(local, text string) {
		m.Add(local, text, "ODF Metadata", match(local))
	}); err != nil {
		return nil, core.Malformed(odfFormat, err)
	}
	return m, nil
}
